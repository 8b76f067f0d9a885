// Package postgres holds the Postgres-backed user store, catalog loader and migrations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"traffic-light-bot/internal/domain"
)

// UserStore keeps users in the table created by migrations.
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) EnsureUser(ctx context.Context, p domain.UserProfile) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO users (telegram_id, username, first_name, last_name)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''))
		ON CONFLICT (telegram_id) DO NOTHING`,
		p.ID, p.Username, p.FirstName, p.LastName)
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *UserStore) DisplayName(ctx context.Context, userID int64, fallback string) (string, error) {
	var name *string
	err := s.pool.QueryRow(ctx, `SELECT first_name FROM users WHERE telegram_id=$1`, userID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return fallback, fmt.Errorf("load first name: %w", err)
	}
	if name == nil || *name == "" {
		return fallback, nil
	}
	return *name, nil
}

func (s *UserStore) IsPromoSent(ctx context.Context, userID int64) (bool, error) {
	var sent bool
	err := s.pool.QueryRow(ctx, `SELECT promo_sent FROM users WHERE telegram_id=$1`, userID).Scan(&sent)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load promo flag: %w", err)
	}
	return sent, nil
}

func (s *UserStore) MarkPromoSent(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET promo_sent = TRUE, promo_due_at = NULL WHERE telegram_id=$1`, userID)
	if err != nil {
		return fmt.Errorf("mark promo sent: %w", err)
	}
	return nil
}

func (s *UserStore) SetScore(ctx context.Context, userID int64, score int) error {
	if _, err := s.pool.Exec(ctx, `UPDATE users SET score=$2 WHERE telegram_id=$1`, userID, score); err != nil {
		return fmt.Errorf("set score: %w", err)
	}
	return nil
}

func (s *UserStore) ListRecent(ctx context.Context, limit int) ([]domain.UserRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT telegram_id, username, first_name, last_name, created_at, promo_sent, score, promo_due_at, promo_chat_id
		FROM users ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []domain.UserRecord
	for rows.Next() {
		var (
			rec                   domain.UserRecord
			username, first, last *string
			score                 *int32
			chatID                *int64
		)
		if err := rows.Scan(&rec.ID, &username, &first, &last, &rec.CreatedAt, &rec.PromoSent, &score, &rec.PromoDueAt, &chatID); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		rec.Username = deref(username)
		rec.FirstName = deref(first)
		rec.LastName = deref(last)
		if score != nil {
			v := int(*score)
			rec.Score = &v
		}
		if chatID != nil {
			rec.PromoChatID = *chatID
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SchedulePromo keeps a due time that is still ahead; a past one was already attempted and is replaced.
func (s *UserStore) SchedulePromo(ctx context.Context, userID, chatID int64, dueAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET promo_due_at=$2, promo_chat_id=$3
		WHERE telegram_id=$1 AND NOT promo_sent AND (promo_due_at IS NULL OR promo_due_at <= NOW())`,
		userID, dueAt.UTC(), chatID)
	if err != nil {
		return fmt.Errorf("schedule promo: %w", err)
	}
	return nil
}

func (s *UserStore) PendingPromos(ctx context.Context) ([]domain.PendingPromo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT telegram_id, COALESCE(promo_chat_id, telegram_id), promo_due_at
		FROM users
		WHERE NOT promo_sent AND promo_due_at IS NOT NULL
		ORDER BY promo_due_at`)
	if err != nil {
		return nil, fmt.Errorf("list pending promos: %w", err)
	}
	defer rows.Close()

	var out []domain.PendingPromo
	for rows.Next() {
		var p domain.PendingPromo
		if err := rows.Scan(&p.UserID, &p.ChatID, &p.DueAt); err != nil {
			return nil, fmt.Errorf("scan pending promo: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
