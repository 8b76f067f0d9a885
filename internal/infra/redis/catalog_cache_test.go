package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"traffic-light-bot/internal/catalog"
)

type countingLoader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (l *countingLoader) LoadCatalog(_ context.Context, _ string) (*catalog.Catalog, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	return catalog.Default()
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func TestCatalogCacheLoadsOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	loader := &countingLoader{}
	cache := NewCatalogCache(newClient(mr), loader, time.Minute)

	first, err := cache.LoadCatalog(ctx, "main")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader called once, got %d", loader.count())
	}
	if !mr.Exists("quizbot:catalog:main") {
		t.Fatalf("expected catalog cached in redis")
	}

	second, err := cache.LoadCatalog(ctx, "main")
	if err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.count())
	}
	if second.Len() != first.Len() || second.Questions[5].Index != 5 {
		t.Fatalf("cached catalog differs: %d questions", second.Len())
	}

	if err := cache.Invalidate(ctx, "main"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = cache.LoadCatalog(ctx, "main")
	if loader.count() != 2 {
		t.Fatalf("expected reload after invalidate, got %d", loader.count())
	}
}

func TestCatalogCachePropagatesLoaderError(t *testing.T) {
	mr := miniredis.RunT(t)
	boom := errors.New("db down")
	cache := NewCatalogCache(newClient(mr), &countingLoader{err: boom}, time.Minute)

	if _, err := cache.LoadCatalog(context.Background(), "main"); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if mr.Exists("quizbot:catalog:main") {
		t.Fatalf("expected nothing cached on error")
	}
}
