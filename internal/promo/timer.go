package promo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"traffic-light-bot/internal/logging"
)

const fireTimeout = 30 * time.Second

// TimerScheduler arms one in-process timer per user. Due times are persisted so Rearm can
// restore them after a restart.
type TimerScheduler struct {
	sender *Sender
	store  Store
	delay  time.Duration
	now    func() time.Time
	log    *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[int64]*time.Timer
	stopped bool
}

type TimerOption func(*TimerScheduler)

// WithTimerClock is used by tests for deterministic due times.
func WithTimerClock(now func() time.Time) TimerOption {
	return func(s *TimerScheduler) { s.now = now }
}

func WithTimerLogger(l *logging.Logger) TimerOption {
	return func(s *TimerScheduler) {
		if l != nil {
			s.log = l
		}
	}
}

func NewTimerScheduler(sender *Sender, store Store, delay time.Duration, opts ...TimerOption) *TimerScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &TimerScheduler{
		sender:  sender,
		store:   store,
		delay:   delay,
		now:     time.Now,
		log:     logging.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[int64]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule arms the promo for the user. A user with a pending timer keeps the earlier one.
func (s *TimerScheduler) Schedule(ctx context.Context, userID, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	if _, ok := s.pending[userID]; ok {
		return nil
	}

	s.armLocked(userID, chatID, s.delay)
	// the timer stays armed even if persisting the due time fails
	if err := s.store.SchedulePromo(ctx, userID, chatID, s.now().Add(s.delay)); err != nil {
		return fmt.Errorf("persist promo due time: %w", err)
	}
	return nil
}

// Rearm restores persisted, unsent promos. Overdue ones fire right away.
func (s *TimerScheduler) Rearm(ctx context.Context) (int, error) {
	pending, err := s.store.PendingPromos(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending promos: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	armed := 0
	now := s.now()
	for _, p := range pending {
		if s.stopped {
			break
		}
		if _, ok := s.pending[p.UserID]; ok {
			continue
		}
		wait := p.DueAt.Sub(now)
		if wait < 0 {
			wait = 0
		}
		s.armLocked(p.UserID, p.ChatID, wait)
		armed++
	}
	return armed, nil
}

// Fire runs a delivery attempt immediately.
func (s *TimerScheduler) Fire(ctx context.Context, userID, chatID int64) error {
	return s.sender.Fire(ctx, userID, chatID)
}

// Pending is the number of armed timers.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels all timers and waits for running deliveries.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.cancel()
}

func (s *TimerScheduler) armLocked(userID, chatID int64, wait time.Duration) {
	var t *time.Timer
	t = time.AfterFunc(wait, func() {
		s.mu.Lock()
		if s.stopped || s.pending[userID] != t {
			s.mu.Unlock()
			return
		}
		delete(s.pending, userID)
		s.wg.Add(1)
		s.mu.Unlock()
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, fireTimeout)
		defer cancel()
		if err := s.sender.Fire(ctx, userID, chatID); err != nil {
			s.log.Warn("promo attempt failed", "user_id", userID, "error", err)
		}
	})
	s.pending[userID] = t
}
