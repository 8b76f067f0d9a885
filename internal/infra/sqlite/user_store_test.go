package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"traffic-light-bot/internal/domain"
)

func openTestStore(t *testing.T) *UserStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "bot.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEnsureUserFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	created, err := store.EnsureUser(ctx, domain.UserProfile{ID: 1, Username: "anna", FirstName: "Anna"})
	if err != nil || !created {
		t.Fatalf("expected user created, created=%v err=%v", created, err)
	}
	created, err = store.EnsureUser(ctx, domain.UserProfile{ID: 1, Username: "other", FirstName: "Other"})
	if err != nil || created {
		t.Fatalf("expected existing user kept, created=%v err=%v", created, err)
	}

	name, err := store.DisplayName(ctx, 1, "friend")
	if err != nil || name != "Anna" {
		t.Fatalf("expected first name Anna, got %q err=%v", name, err)
	}
	if name, _ := store.DisplayName(ctx, 99, "friend"); name != "friend" {
		t.Fatalf("expected fallback for unknown user, got %q", name)
	}

	_, _ = store.EnsureUser(ctx, domain.UserProfile{ID: 2, Username: "noname"})
	if name, _ := store.DisplayName(ctx, 2, "friend"); name != "friend" {
		t.Fatalf("expected fallback for empty first name, got %q", name)
	}
}

func TestPromoFlagAndSchedule(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	_, _ = store.EnsureUser(ctx, domain.UserProfile{ID: 7, FirstName: "Ivan"})

	if sent, _ := store.IsPromoSent(ctx, 7); sent {
		t.Fatalf("expected fresh user without promo")
	}

	first := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return first.Add(-24 * time.Hour) }
	if err := store.SchedulePromo(ctx, 7, 700, first); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	_ = store.SchedulePromo(ctx, 7, 701, first.Add(time.Hour))

	pending, err := store.PendingPromos(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ChatID != 700 || !pending[0].DueAt.Equal(first) {
		t.Fatalf("expected earliest schedule kept, got %+v", pending)
	}

	if err := store.MarkPromoSent(ctx, 7); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if sent, _ := store.IsPromoSent(ctx, 7); !sent {
		t.Fatalf("expected promo flag set")
	}
	if pending, _ := store.PendingPromos(ctx); len(pending) != 0 {
		t.Fatalf("expected no pending promos after send, got %+v", pending)
	}
	_ = store.SchedulePromo(ctx, 7, 700, first)
	if pending, _ := store.PendingPromos(ctx); len(pending) != 0 {
		t.Fatalf("expected sent user never rescheduled")
	}
}

func TestSchedulePromoReplacesPastDueTime(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	_, _ = store.EnsureUser(ctx, domain.UserProfile{ID: 8, FirstName: "Olga"})

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	_ = store.SchedulePromo(ctx, 8, 800, now.Add(time.Hour))

	now = now.Add(48 * time.Hour)
	next := now.Add(24 * time.Hour)
	if err := store.SchedulePromo(ctx, 8, 801, next); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	pending, err := store.PendingPromos(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ChatID != 801 || !pending[0].DueAt.Equal(next) {
		t.Fatalf("expected past due time replaced, got %+v", pending)
	}
}

func TestListRecentNewestFirstWithScore(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	for i := int64(1); i <= 12; i++ {
		_, _ = store.EnsureUser(ctx, domain.UserProfile{ID: i, Username: "u"})
	}
	_ = store.SetScore(ctx, 12, 40)

	users, err := store.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 10 || users[0].ID != 12 || users[9].ID != 3 {
		t.Fatalf("unexpected order %+v", users)
	}
	if users[0].Score == nil || *users[0].Score != 40 {
		t.Fatalf("expected score 40 for newest user")
	}
	if users[1].Score != nil {
		t.Fatalf("expected no score before a finished test")
	}
	if users[0].CreatedAt.IsZero() {
		t.Fatalf("expected created_at parsed")
	}
}

func TestOpenUpgradesLegacyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO users (telegram_id, username, first_name, created_at) VALUES (5, 'old', 'Old', '2024-01-02T03:04:05.123456')`); err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}
	_ = db.Close()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open legacy: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.SetScore(ctx, 5, 20); err != nil {
		t.Fatalf("set score on upgraded table: %v", err)
	}
	users, err := store.ListRecent(ctx, 10)
	if err != nil || len(users) != 1 {
		t.Fatalf("list: %v %+v", err, users)
	}
	if users[0].CreatedAt.Year() != 2024 || users[0].Score == nil || *users[0].Score != 20 {
		t.Fatalf("unexpected upgraded row %+v", users[0])
	}
}
