package telegram

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"traffic-light-bot/internal/catalog"
	"traffic-light-bot/internal/domain"
	"traffic-light-bot/internal/logging"
)

// Quiz is the set of use cases the bot drives.
type Quiz interface {
	Catalog() *catalog.Catalog
	Greet(ctx context.Context, profile domain.UserProfile) (bool, error)
	StartTest(ctx context.Context, profile domain.UserProfile, chatID int64) (domain.StartOutcome, error)
	SubmitAnswer(ctx context.Context, profile domain.UserProfile, points int) (domain.AnswerOutcome, error)
	ShowPage(ctx context.Context, userID int64, page int) (domain.PageOutcome, error)
	RecentUsers(ctx context.Context, limit int) ([]domain.UserRecord, error)
}

type updatesSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Options struct {
	AdminID     int64
	ImagesDir   string
	ResultDelay time.Duration
}

// Bot routes Telegram updates to the quiz service. Each update runs in its own goroutine.
type Bot struct {
	api      api
	updates  updatesSource
	quiz     Quiz
	messages catalog.Messages
	intro    string
	opts     Options
	log      *logging.Logger
	wg       sync.WaitGroup
}

// Connect logs in with token and returns the raw client.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPI(token)
}

func NewBot(client *tgbotapi.BotAPI, quiz Quiz, opts Options, log *logging.Logger) *Bot {
	return newBot(client, client, quiz, opts, log)
}

func newBot(a api, updates updatesSource, quiz Quiz, opts Options, log *logging.Logger) *Bot {
	if log == nil {
		log = logging.NewNop()
	}
	cat := quiz.Catalog()
	return &Bot{
		api:      a,
		updates:  updates,
		quiz:     quiz,
		messages: cat.Messages,
		intro:    cat.Intro,
		opts:     opts,
		log:      log,
	}
}

// Run long-polls for updates until ctx is done, then waits for running handlers.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.updates.GetUpdatesChan(u)
	defer b.wg.Wait()

	b.log.Info("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			b.updates.StopReceivingUpdates()
			b.log.Info("telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.wg.Add(1)
			go func(update tgbotapi.Update) {
				defer b.wg.Done()
				b.HandleUpdate(ctx, update)
			}(update)
		}
	}
}

// HandleUpdate processes a single update. Failures are logged, never returned.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	log := b.log.With("update_id", update.UpdateID, "corr_id", uuid.NewString())
	defer func() {
		if r := recover(); r != nil {
			log.Error("update handler panicked", "panic", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, log, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		b.handleMessage(ctx, log, update.Message)
	}
}

func profileOf(u *tgbotapi.User) domain.UserProfile {
	return domain.UserProfile{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
