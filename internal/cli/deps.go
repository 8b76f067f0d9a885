package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"traffic-light-bot/internal/app"
	"traffic-light-bot/internal/catalog"
	"traffic-light-bot/internal/config"
	"traffic-light-bot/internal/infra/memory"
	"traffic-light-bot/internal/infra/postgres"
	redisinfra "traffic-light-bot/internal/infra/redis"
	"traffic-light-bot/internal/infra/sqlite"
	"traffic-light-bot/internal/logging"
)

const (
	catalogCacheTTL   = 10 * time.Minute
	defaultSessionTTL = 24 * time.Hour
	pingTimeout       = 5 * time.Second
)

// backends holds the connections shared by the stores. Close releases whatever was opened.
type backends struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}
	if cfg.Storage.PostgresURL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Storage.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
	}
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := b.redis.Ping(pingCtx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}
	return b, nil
}

func (b *backends) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

// loadCatalog prefers a YAML file, then a Postgres row (cached in Redis when available), then
// the embedded default.
func loadCatalog(ctx context.Context, cfg config.Config, b *backends, log *logging.Logger) (*catalog.Catalog, error) {
	switch {
	case cfg.Catalog.Path != "":
		log.Info("loading catalog from file", "path", cfg.Catalog.Path)
		return catalog.Load(cfg.Catalog.Path)
	case cfg.Catalog.PostgresID != "":
		if b.pool == nil {
			return nil, fmt.Errorf("catalog.postgres_id is set but storage.postgres_url is empty")
		}
		var loader redisinfra.CatalogLoader = postgres.NewCatalogLoader(b.pool)
		if b.redis != nil {
			loader = redisinfra.NewCatalogCache(b.redis, loader, catalogCacheTTL)
		}
		log.Info("loading catalog from postgres", "id", cfg.Catalog.PostgresID)
		return loader.LoadCatalog(ctx, cfg.Catalog.PostgresID)
	default:
		return catalog.Default()
	}
}

// openUserStore returns the configured durable store and its release func.
func openUserStore(ctx context.Context, cfg config.Config, b *backends, log *logging.Logger) (app.UserStore, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if err := runMigrations(ctx, cfg, log); err != nil {
			return nil, nil, err
		}
		return postgres.NewUserStore(b.pool), func() {}, nil
	case config.DriverMemory:
		log.Warn("using in-memory user store; data is lost on restart")
		return memory.NewUserStore(), func() {}, nil
	default:
		store, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
}

// sessionStores uses Redis when configured so that sessions survive restarts.
func sessionStores(cfg config.Config, b *backends) (app.SessionRepository, app.PageRepository) {
	if b.redis == nil {
		return memory.NewSessionStore(), memory.NewPageStore()
	}
	ttl := config.TTLDuration(cfg.Redis.SessionTTL, defaultSessionTTL)
	return redisinfra.NewSessionStore(b.redis, ttl), redisinfra.NewPageStore(b.redis, ttl)
}
