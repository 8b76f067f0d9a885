package memory

import (
	"context"
	"testing"

	"traffic-light-bot/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	if _, ok, _ := store.Get(ctx, 1); ok {
		t.Fatalf("expected no session")
	}
	if err := store.Save(ctx, domain.Session{UserID: 1, CurrentIndex: 2, Score: 7}); err != nil {
		t.Fatalf("save: %v", err)
	}
	session, ok, err := store.Get(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("expected session present, ok=%v err=%v", ok, err)
	}
	if session.CurrentIndex != 2 || session.Score != 7 {
		t.Fatalf("unexpected session %+v", session)
	}

	if err := store.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected session removed")
	}
}

func TestPageStoreCopiesInput(t *testing.T) {
	ctx := context.Background()
	store := NewPageStore()

	pages := []string{"a", "ab"}
	if err := store.Save(ctx, 5, pages); err != nil {
		t.Fatalf("save: %v", err)
	}
	pages[0] = "mutated"

	got, ok, _ := store.Get(ctx, 5)
	if !ok || got[0] != "a" {
		t.Fatalf("expected stored copy, got %v", got)
	}

	_ = store.Delete(ctx, 5)
	if _, ok, _ := store.Get(ctx, 5); ok {
		t.Fatalf("expected pages removed")
	}
}
