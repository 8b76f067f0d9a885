package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"traffic-light-bot/internal/domain"
)

// UserStore keeps user records in process memory. Useful for tests and local runs.
type UserStore struct {
	mu    sync.RWMutex
	now   func() time.Time
	seq   int64
	users map[int64]*userRow
}

type userRow struct {
	record domain.UserRecord
	seq    int64
}

func NewUserStore() *UserStore {
	return NewUserStoreWithClock(time.Now)
}

// NewUserStoreWithClock allows deterministic timestamps in tests.
func NewUserStoreWithClock(now func() time.Time) *UserStore {
	return &UserStore{now: now, users: make(map[int64]*userRow)}
}

func (s *UserStore) EnsureUser(_ context.Context, p domain.UserProfile) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[p.ID]; ok {
		return false, nil
	}
	s.seq++
	s.users[p.ID] = &userRow{
		seq: s.seq,
		record: domain.UserRecord{
			ID:        p.ID,
			Username:  p.Username,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			CreatedAt: s.now().UTC(),
		},
	}
	return true, nil
}

func (s *UserStore) DisplayName(_ context.Context, userID int64, fallback string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if row, ok := s.users[userID]; ok && row.record.FirstName != "" {
		return row.record.FirstName, nil
	}
	return fallback, nil
}

func (s *UserStore) IsPromoSent(_ context.Context, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.users[userID]
	return ok && row.record.PromoSent, nil
}

func (s *UserStore) MarkPromoSent(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.users[userID]; ok {
		row.record.PromoSent = true
		row.record.PromoDueAt = nil
	}
	return nil
}

func (s *UserStore) SetScore(_ context.Context, userID int64, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.users[userID]; ok {
		v := score
		row.record.Score = &v
	}
	return nil
}

func (s *UserStore) ListRecent(_ context.Context, limit int) ([]domain.UserRecord, error) {
	s.mu.RLock()
	rows := make([]userRow, 0, len(s.users))
	for _, row := range s.users {
		rows = append(rows, *row)
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]domain.UserRecord, len(rows))
	for i, row := range rows {
		out[i] = row.record
	}
	return out, nil
}

// SchedulePromo keeps a due time that is still ahead; a past one was already attempted and is replaced.
func (s *UserStore) SchedulePromo(_ context.Context, userID, chatID int64, dueAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.users[userID]
	if !ok || row.record.PromoSent {
		return nil
	}
	if row.record.PromoDueAt != nil && row.record.PromoDueAt.After(s.now()) {
		return nil
	}
	due := dueAt.UTC()
	row.record.PromoDueAt = &due
	row.record.PromoChatID = chatID
	return nil
}

func (s *UserStore) PendingPromos(_ context.Context) ([]domain.PendingPromo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PendingPromo
	for _, row := range s.users {
		if row.record.PromoSent || row.record.PromoDueAt == nil {
			continue
		}
		out = append(out, domain.PendingPromo{UserID: row.record.ID, ChatID: row.record.PromoChatID, DueAt: *row.record.PromoDueAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

// Get returns a copy of the stored record.
func (s *UserStore) Get(userID int64) (domain.UserRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.users[userID]
	if !ok {
		return domain.UserRecord{}, false
	}
	return row.record, true
}
