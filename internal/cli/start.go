package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"traffic-light-bot/internal/app"
	"traffic-light-bot/internal/config"
	"traffic-light-bot/internal/events"
	"traffic-light-bot/internal/logging"
	"traffic-light-bot/internal/promo"
	transport "traffic-light-bot/internal/transport/http"
	"traffic-light-bot/internal/transport/telegram"
)

const (
	defaultPromoDelay  = 24 * time.Hour
	defaultResultDelay = 2 * time.Second
	shutdownTimeout    = 5 * time.Second
)

// NewStartCmd builds the CLI subcommand that runs the bot.
func NewStartCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the Telegram bot and the operator API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), *configPath)
		},
	}
}

func runStart(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	adminCore := logging.NewAdminCore(zapcore.ErrorLevel)
	log, err := logging.New(cfg.Log.Mode, adminCore)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	cat, err := loadCatalog(ctx, cfg, b, log)
	if err != nil {
		return err
	}
	users, closeUsers, err := openUserStore(ctx, cfg, b, log)
	if err != nil {
		return err
	}
	defer closeUsers()
	sessions, pages := sessionStores(cfg, b)

	client, err := telegram.Connect(cfg.Bot.Token)
	if err != nil {
		return err
	}
	log.Info("authorized on telegram", "bot", client.Self.UserName)
	messenger := telegram.NewMessenger(client)
	hub := events.NewHub()

	g, gctx := errgroup.WithContext(ctx)

	sender := promo.NewSender(users, messenger, cat.Messages.Promo, cat.Messages.PlaceholderName, log.With("component", "promo"))
	delay := config.TTLDuration(cfg.Promo.Delay, defaultPromoDelay)
	var scheduler app.PromoScheduler
	switch cfg.Promo.Backend {
	case config.PromoQueue:
		queue := promo.NewQueueScheduler(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, sender, users, delay, log.With("component", "promo"))
		defer queue.Close()
		g.Go(func() error { return queue.Run(gctx) })
		scheduler = queue
	default:
		timers := promo.NewTimerScheduler(sender, users, delay, promo.WithTimerLogger(log.With("component", "promo")))
		defer timers.Stop()
		armed, err := timers.Rearm(ctx)
		if err != nil {
			log.Error("rearm pending promos failed", "error", err)
		} else if armed > 0 {
			log.Info("pending promos rearmed", "count", armed)
		}
		scheduler = timers
	}

	service := app.NewQuizService(cat, sessions, pages, users,
		app.WithPageSize(cfg.Bot.PageSize),
		app.WithNotifiers(telegram.NewAdminNotifier(messenger, cfg.Bot.AdminID, cat.Messages), hub),
		app.WithPromo(scheduler),
		app.WithLogger(log.With("component", "quiz")),
	)
	bot := telegram.NewBot(client, service, telegram.Options{
		AdminID:     cfg.Bot.AdminID,
		ImagesDir:   cfg.Bot.ImagesDir,
		ResultDelay: config.TTLDuration(cfg.Bot.ResultDelay, defaultResultDelay),
	}, log.With("component", "telegram"))

	g.Go(func() error {
		return adminCore.Run(gctx, func(ctx context.Context, text string) error {
			return messenger.SendText(ctx, cfg.Bot.AdminID, text)
		})
	})
	g.Go(func() error { return bot.Run(gctx) })

	if cfg.HTTP.Addr != "" {
		gin.SetMode(gin.ReleaseMode)
		router := transport.NewRouter(service, hub, transport.Options{
			AdminID:        cfg.Bot.AdminID,
			JWTSecret:      cfg.HTTP.JWTSecret,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
		}, log.With("component", "http"))
		server := transport.NewServer(cfg.HTTP.Addr, router)

		g.Go(func() error {
			log.Info("starting operator api", "addr", cfg.HTTP.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	log.Info("bot started", "storage", cfg.Storage.Driver, "promo", cfg.Promo.Backend, "questions", cat.Len())
	err = g.Wait()
	log.Info("bot stopped")
	return err
}
