package app

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"traffic-light-bot/internal/catalog"
	"traffic-light-bot/internal/domain"
	"traffic-light-bot/internal/logging"
)

// SessionRepository abstracts how in-progress sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	Get(ctx context.Context, userID int64) (domain.Session, bool, error)
	Save(ctx context.Context, session domain.Session) error
	Delete(ctx context.Context, userID int64) error
}

// PageRepository keeps the cumulative result pages of a finished test per user.
type PageRepository interface {
	Get(ctx context.Context, userID int64) ([]string, bool, error)
	Save(ctx context.Context, userID int64, pages []string) error
	Delete(ctx context.Context, userID int64) error
}

// UserStore is the durable user/score table.
type UserStore interface {
	// EnsureUser inserts the user unless it exists and reports whether a row was created.
	EnsureUser(ctx context.Context, profile domain.UserProfile) (bool, error)
	DisplayName(ctx context.Context, userID int64, fallback string) (string, error)
	IsPromoSent(ctx context.Context, userID int64) (bool, error)
	MarkPromoSent(ctx context.Context, userID int64) error
	SetScore(ctx context.Context, userID int64, score int) error
	ListRecent(ctx context.Context, limit int) ([]domain.UserRecord, error)
	// SchedulePromo persists a due time unless one is already pending.
	SchedulePromo(ctx context.Context, userID, chatID int64, dueAt time.Time) error
	PendingPromos(ctx context.Context) ([]domain.PendingPromo, error)
}

// PromoScheduler arms the deferred promotional message.
type PromoScheduler interface {
	Schedule(ctx context.Context, userID, chatID int64) error
}

// Notifier receives operator-facing lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, event domain.Event) error
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	catalog   *catalog.Catalog
	sessions  SessionRepository
	pages     PageRepository
	users     UserStore
	promo     PromoScheduler
	notifiers []Notifier
	log       *logging.Logger
	locks     userLocks
	pageSize  int
	now       func() time.Time
	shuffle   ShuffleFunc
}

type Option func(*QuizService)

// WithPageSize sets the result page size in characters.
func WithPageSize(size int) Option {
	return func(s *QuizService) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithNotifiers adds event receivers.
func WithNotifiers(n ...Notifier) Option {
	return func(s *QuizService) { s.notifiers = append(s.notifiers, n...) }
}

// WithPromo sets the deferred notification scheduler.
func WithPromo(p PromoScheduler) Option {
	return func(s *QuizService) { s.promo = p }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *QuizService) { s.log = l }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithShuffle replaces the option shuffler, e.g. with a no-op in tests.
func WithShuffle(fn ShuffleFunc) Option {
	return func(s *QuizService) { s.shuffle = fn }
}

func NewQuizService(cat *catalog.Catalog, sessions SessionRepository, pages PageRepository, users UserStore, opts ...Option) *QuizService {
	s := &QuizService{
		catalog:  cat,
		sessions: sessions,
		pages:    pages,
		users:    users,
		log:      logging.NewNop(),
		pageSize: 700,
		now:      time.Now,
		shuffle:  rand.Shuffle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the question catalog the service runs on.
func (s *QuizService) Catalog() *catalog.Catalog {
	return s.catalog
}

// Greet records a user on first contact.
func (s *QuizService) Greet(ctx context.Context, profile domain.UserProfile) (bool, error) {
	created, err := s.users.EnsureUser(ctx, profile)
	if err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}
	if created {
		s.emit(ctx, domain.Event{Type: domain.EventNewUser, User: profile, At: s.now()})
	}
	return created, nil
}

// StartTest resets the user's session to the first question, replacing any session in progress.
func (s *QuizService) StartTest(ctx context.Context, profile domain.UserProfile, chatID int64) (domain.StartOutcome, error) {
	unlock := s.locks.lock(profile.ID)
	out, events, err := s.startLocked(ctx, profile, chatID)
	unlock()

	s.emit(ctx, events...)
	return out, err
}

func (s *QuizService) startLocked(ctx context.Context, profile domain.UserProfile, chatID int64) (domain.StartOutcome, []domain.Event, error) {
	_, existing, err := s.sessions.Get(ctx, profile.ID)
	if err != nil {
		return domain.StartOutcome{}, nil, fmt.Errorf("load session: %w", err)
	}
	lc := newLifecycle(stateNotStarted)
	if existing {
		s.log.Debug("restarting test in progress", "user_id", profile.ID)
		lc = newLifecycle(stateInProgress)
	}
	if err := advance(ctx, lc, eventStart); err != nil {
		return domain.StartOutcome{}, nil, err
	}

	now := s.now()
	if err := s.sessions.Save(ctx, domain.Session{UserID: profile.ID, StartedAt: now}); err != nil {
		return domain.StartOutcome{}, nil, fmt.Errorf("save session: %w", err)
	}

	var events []domain.Event
	created, err := s.users.EnsureUser(ctx, profile)
	if err != nil {
		return domain.StartOutcome{}, nil, fmt.Errorf("ensure user: %w", err)
	}
	if created {
		events = append(events, domain.Event{Type: domain.EventNewUser, User: profile, At: now})
	}
	events = append(events, domain.Event{Type: domain.EventTestStarted, User: profile, At: now})

	if s.promo != nil {
		if err := s.promo.Schedule(ctx, profile.ID, chatID); err != nil {
			s.log.Warn("schedule promo failed", "user_id", profile.ID, "error", err)
		}
	}

	return domain.StartOutcome{Question: s.render(0), NewUser: created}, events, nil
}

// SubmitAnswer adds points to the session and advances it. An answer without a session
// starts a fresh one first. The last answer completes the test and removes the session; if
// completing fails the session is kept so the answer can be retried.
func (s *QuizService) SubmitAnswer(ctx context.Context, profile domain.UserProfile, points int) (domain.AnswerOutcome, error) {
	unlock := s.locks.lock(profile.ID)
	out, events, err := s.answerLocked(ctx, profile, points)
	unlock()

	s.emit(ctx, events...)
	return out, err
}

func (s *QuizService) answerLocked(ctx context.Context, profile domain.UserProfile, points int) (domain.AnswerOutcome, []domain.Event, error) {
	session, ok, err := s.sessions.Get(ctx, profile.ID)
	if err != nil {
		return domain.AnswerOutcome{}, nil, fmt.Errorf("load session: %w", err)
	}
	lc := newLifecycle(stateInProgress)
	if !ok {
		s.log.Debug("answer without session, starting fresh", "user_id", profile.ID)
		lc = newLifecycle(stateNotStarted)
		if err := advance(ctx, lc, eventStart); err != nil {
			return domain.AnswerOutcome{}, nil, err
		}
		session = domain.Session{UserID: profile.ID, StartedAt: s.now()}
	}

	session.Score += points
	session.CurrentIndex++

	if session.CurrentIndex < s.catalog.Len() {
		if err := advance(ctx, lc, eventAnswer); err != nil {
			return domain.AnswerOutcome{}, nil, err
		}
		if err := s.sessions.Save(ctx, session); err != nil {
			return domain.AnswerOutcome{}, nil, fmt.Errorf("save session: %w", err)
		}
		return domain.AnswerOutcome{Kind: domain.NextQuestion, Question: s.render(session.CurrentIndex)}, nil, nil
	}

	if err := advance(ctx, lc, eventFinish); err != nil {
		return domain.AnswerOutcome{}, nil, err
	}
	// the stored session still points at the last question, so a failed finish can be retried
	result, err := s.finish(ctx, profile.ID, session.Score)
	if err != nil {
		return domain.AnswerOutcome{}, nil, err
	}
	if err := s.sessions.Delete(ctx, profile.ID); err != nil {
		s.log.Warn("delete finished session failed", "user_id", profile.ID, "error", err)
	}
	event := domain.Event{
		Type:  domain.EventTestFinished,
		User:  profile,
		Score: result.Score,
		Tier:  result.Tier.Key(),
		At:    s.now(),
	}
	return domain.AnswerOutcome{Kind: domain.TestFinished, Result: result}, []domain.Event{event}, nil
}

func (s *QuizService) finish(ctx context.Context, userID int64, score int) (domain.Result, error) {
	tier := domain.ClassifyTier(score)
	tr := s.catalog.ResultFor(tier)
	pages := Split(tr.Text, s.pageSize)

	// a single page is already the last one, nothing to keep
	if len(pages) > 1 {
		if err := s.pages.Save(ctx, userID, pages); err != nil {
			return domain.Result{}, fmt.Errorf("save result pages: %w", err)
		}
	} else if err := s.pages.Delete(ctx, userID); err != nil {
		return domain.Result{}, fmt.Errorf("clear result pages: %w", err)
	}

	if err := s.users.SetScore(ctx, userID, score); err != nil {
		return domain.Result{}, fmt.Errorf("set score: %w", err)
	}

	return domain.Result{
		Score:   score,
		Tier:    tier,
		Caption: catalog.Format(s.catalog.Messages.ScoreCaption, "label", tr.Label, "score", strconv.Itoa(score)),
		Image:   tr.Image,
		Pages:   pages,
	}, nil
}

// ShowPage returns the requested result page. Showing the last page drops the cached set.
func (s *QuizService) ShowPage(ctx context.Context, userID int64, page int) (domain.PageOutcome, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	pages, ok, err := s.pages.Get(ctx, userID)
	if err != nil {
		return domain.PageOutcome{}, fmt.Errorf("load result pages: %w", err)
	}
	if !ok || len(pages) == 0 {
		return domain.PageOutcome{Kind: domain.PageUnavailable}, nil
	}
	if page < 0 || page >= len(pages) {
		return domain.PageOutcome{Kind: domain.PageIgnored, Page: page, Total: len(pages)}, nil
	}
	if page == len(pages)-1 {
		if err := s.pages.Delete(ctx, userID); err != nil {
			return domain.PageOutcome{}, fmt.Errorf("delete result pages: %w", err)
		}
	}
	return domain.PageOutcome{Kind: domain.PageShown, Page: page, Total: len(pages), Text: pages[page]}, nil
}

// RecentUsers lists the newest users for the operator.
func (s *QuizService) RecentUsers(ctx context.Context, limit int) ([]domain.UserRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.users.ListRecent(ctx, limit)
}

// Question renders the question at index with a fresh option order.
func (s *QuizService) Question(index int) (domain.RenderedQuestion, bool) {
	if _, ok := s.catalog.Question(index); !ok {
		return domain.RenderedQuestion{}, false
	}
	return s.render(index), true
}

func (s *QuizService) render(index int) domain.RenderedQuestion {
	q, _ := s.catalog.Question(index)
	return RenderQuestion(q, s.catalog.Len(), s.shuffle)
}

func (s *QuizService) emit(ctx context.Context, events ...domain.Event) {
	for _, ev := range events {
		for _, n := range s.notifiers {
			if err := n.Notify(ctx, ev); err != nil {
				s.log.Warn("notify failed", "event", ev.Type, "user_id", ev.User.ID, "error", err)
			}
		}
	}
}
