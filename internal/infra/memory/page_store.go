package memory

import (
	"context"
	"sync"
)

// PageStore is an in-memory implementation of app.PageRepository.
type PageStore struct {
	mu    sync.RWMutex
	pages map[int64][]string
}

func NewPageStore() *PageStore {
	return &PageStore{
		pages: make(map[int64][]string),
	}
}

func (s *PageStore) Get(_ context.Context, userID int64) ([]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages, ok := s.pages[userID]
	return pages, ok, nil
}

func (s *PageStore) Save(_ context.Context, userID int64, pages []string) error {
	cp := make([]string, len(pages))
	copy(cp, pages)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[userID] = cp
	return nil
}

func (s *PageStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pages, userID)
	return nil
}
