package promo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"traffic-light-bot/internal/logging"
)

const (
	TypePromoSend = "promo:send"
	promoQueue    = "default"
)

type promoPayload struct {
	UserID int64 `json:"user_id"`
	ChatID int64 `json:"chat_id"`
}

// TaskID is the queue-wide id of a user's promo task.
func TaskID(userID int64) string {
	return "promo:" + strconv.FormatInt(userID, 10)
}

// QueueScheduler defers promos through asynq so they survive restarts.
type QueueScheduler struct {
	client *asynq.Client
	server *asynq.Server
	sender *Sender
	store  Store
	delay  time.Duration
	now    func() time.Time
	log    *logging.Logger
}

func NewQueueScheduler(redisOpt asynq.RedisClientOpt, sender *Sender, store Store, delay time.Duration, log *logging.Logger) *QueueScheduler {
	if log == nil {
		log = logging.NewNop()
	}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		Queues:      map[string]int{promoQueue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Warn("promo task failed", "type", task.Type(), "error", err)
		}),
		Logger: &asynqLogger{log: log},
	})
	return &QueueScheduler{
		client: asynq.NewClient(redisOpt),
		server: server,
		sender: sender,
		store:  store,
		delay:  delay,
		now:    time.Now,
		log:    log,
	}
}

// Schedule enqueues the promo task. An already queued task for the user wins.
func (q *QueueScheduler) Schedule(ctx context.Context, userID, chatID int64) error {
	payload, err := json.Marshal(promoPayload{UserID: userID, ChatID: chatID})
	if err != nil {
		return fmt.Errorf("marshal promo payload: %w", err)
	}

	task := asynq.NewTask(TypePromoSend, payload)
	info, err := q.client.EnqueueContext(ctx, task,
		asynq.Queue(promoQueue),
		asynq.ProcessIn(q.delay),
		asynq.TaskID(TaskID(userID)),
		asynq.MaxRetry(0),
		asynq.Timeout(fireTimeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		q.log.Debug("promo already queued", "user_id", userID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue promo task: %w", err)
	}
	q.log.Debug("promo queued", "user_id", userID, "task_id", info.ID)

	if err := q.store.SchedulePromo(ctx, userID, chatID, q.now().Add(q.delay)); err != nil {
		return fmt.Errorf("persist promo due time: %w", err)
	}
	return nil
}

// HandleTask processes a promo:send task.
func (q *QueueScheduler) HandleTask(ctx context.Context, task *asynq.Task) error {
	var p promoPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode promo payload: %v: %w", err, asynq.SkipRetry)
	}
	return q.sender.Fire(ctx, p.UserID, p.ChatID)
}

// Run processes promo tasks until ctx is done.
func (q *QueueScheduler) Run(ctx context.Context) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePromoSend, q.HandleTask)
	if err := q.server.Start(mux); err != nil {
		return fmt.Errorf("start promo worker: %w", err)
	}
	<-ctx.Done()
	q.server.Shutdown()
	return nil
}

func (q *QueueScheduler) Close() error {
	return q.client.Close()
}

type asynqLogger struct {
	log *logging.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
