package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// PageStore keeps the cumulative result pages as a list per user.
type PageStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPageStore(client *redis.Client, ttl time.Duration) *PageStore {
	return &PageStore{client: client, ttl: ttl}
}

func (s *PageStore) Get(ctx context.Context, userID int64) ([]string, bool, error) {
	pages, err := s.client.LRange(ctx, s.key(userID), 0, -1).Result()
	if err != nil {
		return nil, false, fmt.Errorf("load result pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, false, nil
	}
	return pages, true, nil
}

// Save replaces any previous page set atomically.
func (s *PageStore) Save(ctx context.Context, userID int64, pages []string) error {
	key := s.key(userID)
	values := make([]interface{}, len(pages))
	for i, p := range pages {
		values[i] = p
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save result pages: %w", err)
	}
	return nil
}

func (s *PageStore) Delete(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("delete result pages: %w", err)
	}
	return nil
}

func (s *PageStore) key(userID int64) string {
	return "quizbot:pages:" + strconv.FormatInt(userID, 10)
}
