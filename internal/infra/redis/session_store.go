package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"traffic-light-bot/internal/domain"
)

// SessionStore keeps in-progress sessions in Redis so they survive a bot restart.
// Each session is a hash: HSET quizbot:session:{userID} index .. score .. started_at ..
// An idle session expires after ttl.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Get(ctx context.Context, userID int64) (domain.Session, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("load session: %w", err)
	}
	if len(fields) == 0 {
		return domain.Session{}, false, nil
	}

	session := domain.Session{UserID: userID}
	if session.CurrentIndex, err = strconv.Atoi(fields["index"]); err != nil {
		return domain.Session{}, false, fmt.Errorf("decode session index: %w", err)
	}
	if session.Score, err = strconv.Atoi(fields["score"]); err != nil {
		return domain.Session{}, false, fmt.Errorf("decode session score: %w", err)
	}
	if raw := fields["started_at"]; raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			session.StartedAt = time.Unix(unix, 0).UTC()
		}
	}
	return session, true, nil
}

func (s *SessionStore) Save(ctx context.Context, session domain.Session) error {
	key := s.key(session.UserID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"index", session.CurrentIndex,
			"score", session.Score,
			"started_at", session.StartedAt.Unix(),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) key(userID int64) string {
	return "quizbot:session:" + strconv.FormatInt(userID, 10)
}
