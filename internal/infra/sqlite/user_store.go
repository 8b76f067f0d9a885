// Package sqlite is the default durable user store: a single local database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"traffic-light-bot/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	telegram_id INTEGER UNIQUE,
	username TEXT,
	first_name TEXT,
	last_name TEXT,
	created_at TEXT,
	promo_sent INTEGER DEFAULT 0
)`

// columns added after the first release; older files are upgraded in place
var extraColumns = map[string]string{
	"score":         "INTEGER",
	"promo_due_at":  "TEXT",
	"promo_chat_id": "INTEGER",
}

type UserStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database file at path and prepares the schema.
func Open(path string) (*UserStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// pragmas below are per connection
	db.SetMaxOpenConns(1)

	store, err := NewUserStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func NewUserStore(db *sql.DB) (*UserStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	s := &UserStore{db: db, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *UserStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(users)`)
	if err != nil {
		return fmt.Errorf("inspect users table: %w", err)
	}
	existing := map[string]bool{}
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("scan table info: %w", err)
		}
		existing[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect users table: %w", err)
	}

	for _, name := range []string{"score", "promo_due_at", "promo_chat_id"} {
		if existing[name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE users ADD COLUMN %s %s", name, extraColumns[name])
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s: %w", name, err)
		}
	}
	return nil
}

func (s *UserStore) Close() error {
	return s.db.Close()
}

func (s *UserStore) EnsureUser(ctx context.Context, p domain.UserProfile) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (telegram_id, username, first_name, last_name, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, nullString(p.Username), nullString(p.FirstName), nullString(p.LastName), formatTime(s.now()),
	)
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	return n > 0, nil
}

func (s *UserStore) DisplayName(ctx context.Context, userID int64, fallback string) (string, error) {
	var name sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT first_name FROM users WHERE telegram_id = ?`, userID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return fallback, fmt.Errorf("load first name: %w", err)
	}
	if !name.Valid || name.String == "" {
		return fallback, nil
	}
	return name.String, nil
}

func (s *UserStore) IsPromoSent(ctx context.Context, userID int64) (bool, error) {
	var sent sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT promo_sent FROM users WHERE telegram_id = ?`, userID).Scan(&sent)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load promo flag: %w", err)
	}
	return sent.Valid && sent.Int64 != 0, nil
}

func (s *UserStore) MarkPromoSent(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET promo_sent = 1, promo_due_at = NULL WHERE telegram_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("mark promo sent: %w", err)
	}
	return nil
}

func (s *UserStore) SetScore(ctx context.Context, userID int64, score int) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET score = ? WHERE telegram_id = ?`, score, userID); err != nil {
		return fmt.Errorf("set score: %w", err)
	}
	return nil
}

func (s *UserStore) ListRecent(ctx context.Context, limit int) ([]domain.UserRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT telegram_id, username, first_name, last_name, created_at, promo_sent, score, promo_due_at, promo_chat_id
		FROM users ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []domain.UserRecord
	for rows.Next() {
		var (
			rec                          domain.UserRecord
			username, first, last, since sql.NullString
			sent, score, chatID          sql.NullInt64
			dueAt                        sql.NullString
		)
		if err := rows.Scan(&rec.ID, &username, &first, &last, &since, &sent, &score, &dueAt, &chatID); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		rec.Username = username.String
		rec.FirstName = first.String
		rec.LastName = last.String
		rec.CreatedAt = parseTime(since.String)
		rec.PromoSent = sent.Valid && sent.Int64 != 0
		if score.Valid {
			v := int(score.Int64)
			rec.Score = &v
		}
		if dueAt.Valid && dueAt.String != "" {
			t := parseTime(dueAt.String)
			rec.PromoDueAt = &t
		}
		rec.PromoChatID = chatID.Int64
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SchedulePromo keeps a due time that is still ahead; a past one was already attempted and is replaced.
func (s *UserStore) SchedulePromo(ctx context.Context, userID, chatID int64, dueAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET promo_due_at = ?, promo_chat_id = ?
		WHERE telegram_id = ? AND COALESCE(promo_sent, 0) = 0
		  AND (promo_due_at IS NULL OR promo_due_at <= ?)`,
		formatTime(dueAt), chatID, userID, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("schedule promo: %w", err)
	}
	return nil
}

func (s *UserStore) PendingPromos(ctx context.Context) ([]domain.PendingPromo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT telegram_id, COALESCE(promo_chat_id, telegram_id), promo_due_at
		FROM users
		WHERE COALESCE(promo_sent, 0) = 0 AND promo_due_at IS NOT NULL
		ORDER BY promo_due_at`)
	if err != nil {
		return nil, fmt.Errorf("list pending promos: %w", err)
	}
	defer rows.Close()

	var out []domain.PendingPromo
	for rows.Next() {
		var (
			p   domain.PendingPromo
			due string
		)
		if err := rows.Scan(&p.UserID, &p.ChatID, &due); err != nil {
			return nil, fmt.Errorf("scan pending promo: %w", err)
		}
		p.DueAt = parseTime(due)
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// fixed width so the text column sorts chronologically
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime also accepts the naive ISO timestamps written by earlier versions.
func parseTime(raw string) time.Time {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
