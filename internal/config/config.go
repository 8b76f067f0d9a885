package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Bot struct {
		Token       string `yaml:"token"`
		AdminID     int64  `yaml:"admin_id"`
		ImagesDir   string `yaml:"images_dir"`
		PageSize    int    `yaml:"page_size"`
		ResultDelay string `yaml:"result_delay"`
	} `yaml:"bot"`
	Promo struct {
		Delay   string `yaml:"delay"`
		Backend string `yaml:"backend"`
	} `yaml:"promo"`
	Storage struct {
		Driver      string `yaml:"driver"`
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresURL string `yaml:"postgres_url"`
	} `yaml:"storage"`
	Redis struct {
		Addr       string `yaml:"addr"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		SessionTTL string `yaml:"session_ttl"`
	} `yaml:"redis"`
	Catalog struct {
		Path       string `yaml:"path"`
		PostgresID string `yaml:"postgres_id"`
	} `yaml:"catalog"`
	HTTP struct {
		Addr           string   `yaml:"addr"`
		JWTSecret      string   `yaml:"jwt_secret"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"http"`
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	PromoTimer = "timer"
	PromoQueue = "queue"
)

// Load reads YAML config from path, loads .env if present and applies environment overrides.
// A missing config file is not an error; defaults and the environment are used instead.
func Load(path string) (Config, error) {
	cfg := Config{}
	_ = godotenv.Load()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return cfg, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Bot.Token = v
	}
	if v := os.Getenv("ADMIN_ID"); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("ADMIN_ID: %w", err)
		}
		cfg.Bot.AdminID = id
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.PostgresURL = v
		if cfg.Storage.Driver == "" {
			cfg.Storage.Driver = DriverPostgres
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.HTTP.JWTSecret = v
	}
	if v := os.Getenv("LOG_MODE"); v != "" {
		cfg.Log.Mode = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "/data/bot.db"
	}
	if cfg.Promo.Backend == "" {
		cfg.Promo.Backend = PromoTimer
	}
	if cfg.Bot.PageSize <= 0 {
		cfg.Bot.PageSize = 700
	}
	if cfg.Bot.ImagesDir == "" {
		cfg.Bot.ImagesDir = "images"
	}
	if cfg.Log.Mode == "" {
		cfg.Log.Mode = "prod"
	}
}

// Validate reports the first setting that prevents the bot from starting.
func (c Config) Validate() error {
	if c.Bot.Token == "" {
		return errors.New("bot token is not set (BOT_TOKEN)")
	}
	if c.Bot.AdminID == 0 {
		return errors.New("admin id is not set (ADMIN_ID)")
	}
	switch c.Storage.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Storage.PostgresURL == "" {
			return errors.New("postgres driver selected but storage.postgres_url is empty")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Promo.Backend {
	case PromoTimer:
	case PromoQueue:
		if c.Redis.Addr == "" {
			return errors.New("queue promo backend requires redis.addr")
		}
	default:
		return fmt.Errorf("unknown promo backend %q", c.Promo.Backend)
	}
	if c.HTTP.Addr != "" && c.HTTP.JWTSecret == "" {
		return errors.New("http.addr is set but http.jwt_secret is empty")
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
