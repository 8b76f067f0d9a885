// Package telegram adapts the quiz service to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// api is the part of *tgbotapi.BotAPI the bot uses.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// DeliveryError reports a message Telegram did not accept.
type DeliveryError struct {
	ChatID     int64
	Code       int
	RetryAfter int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("deliver to chat %d: telegram %d: %v", e.ChatID, e.Code, e.Err)
	}
	return fmt.Sprintf("deliver to chat %d: %v", e.ChatID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Permanent is true when retrying cannot help, e.g. the user blocked the bot.
func (e *DeliveryError) Permanent() bool {
	return e.Code == 400 || e.Code == 403
}

func deliveryError(chatID int64, err error) error {
	if err == nil {
		return nil
	}
	de := &DeliveryError{ChatID: chatID, Err: err}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		de.Code = apiErr.Code
		de.RetryAfter = apiErr.RetryAfter
	}
	return de
}

// Messenger sends HTML text messages. It satisfies promo.Messenger.
type Messenger struct {
	api api
}

func NewMessenger(a api) *Messenger {
	return &Messenger{api: a}
}

// SendText returns a *DeliveryError when Telegram rejects the message.
func (m *Messenger) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return &DeliveryError{ChatID: chatID, Err: err}
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := m.api.Send(msg)
	return deliveryError(chatID, err)
}
