// Package promo sends the one-time promotional message some time after a user starts the test.
package promo

import (
	"context"
	"fmt"
	"html"
	"time"

	"traffic-light-bot/internal/catalog"
	"traffic-light-bot/internal/domain"
	"traffic-light-bot/internal/logging"
)

// Messenger delivers plain text to a chat.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Store is the part of the user store the schedulers need.
type Store interface {
	DisplayName(ctx context.Context, userID int64, fallback string) (string, error)
	IsPromoSent(ctx context.Context, userID int64) (bool, error)
	MarkPromoSent(ctx context.Context, userID int64) error
	SchedulePromo(ctx context.Context, userID, chatID int64, dueAt time.Time) error
	PendingPromos(ctx context.Context) ([]domain.PendingPromo, error)
}

// Sender performs a single promo delivery attempt.
type Sender struct {
	store       Store
	messenger   Messenger
	template    string
	placeholder string
	log         *logging.Logger
}

// NewSender builds a sender. template is HTML and may reference {name}; the name is escaped.
func NewSender(store Store, messenger Messenger, template, placeholder string, log *logging.Logger) *Sender {
	if log == nil {
		log = logging.NewNop()
	}
	return &Sender{
		store:       store,
		messenger:   messenger,
		template:    template,
		placeholder: placeholder,
		log:         log,
	}
}

// Fire sends the promo unless it was already sent. A failed send leaves the flag unset and is not retried.
func (s *Sender) Fire(ctx context.Context, userID, chatID int64) error {
	sent, err := s.store.IsPromoSent(ctx, userID)
	if err != nil {
		return fmt.Errorf("check promo flag: %w", err)
	}
	if sent {
		s.log.Debug("promo already sent", "user_id", userID)
		return nil
	}

	name, err := s.store.DisplayName(ctx, userID, s.placeholder)
	if err != nil {
		s.log.Warn("display name lookup failed", "user_id", userID, "error", err)
		name = s.placeholder
	}
	if name == "" {
		name = s.placeholder
	}

	if err := s.messenger.SendText(ctx, chatID, catalog.Format(s.template, "name", html.EscapeString(name))); err != nil {
		return fmt.Errorf("send promo to chat %d: %w", chatID, err)
	}
	if err := s.store.MarkPromoSent(ctx, userID); err != nil {
		return fmt.Errorf("mark promo sent: %w", err)
	}
	s.log.Info("promo sent", "user_id", userID)
	return nil
}
