package telegram

import (
	"context"
	"strconv"

	"traffic-light-bot/internal/catalog"
	"traffic-light-bot/internal/domain"
)

// TextSender is implemented by Messenger.
type TextSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// AdminNotifier tells the operator about new users and finished tests.
type AdminNotifier struct {
	sender   TextSender
	adminID  int64
	messages catalog.Messages
}

func NewAdminNotifier(sender TextSender, adminID int64, messages catalog.Messages) *AdminNotifier {
	return &AdminNotifier{sender: sender, adminID: adminID, messages: messages}
}

func (n *AdminNotifier) Notify(ctx context.Context, ev domain.Event) error {
	var text string
	switch ev.Type {
	case domain.EventNewUser:
		text = catalog.Format(n.messages.AdminNewUser, "user", UserLabel(ev.User))
	case domain.EventTestFinished:
		text = catalog.Format(n.messages.AdminFinished,
			"user", UserLabel(ev.User),
			"score", strconv.Itoa(ev.Score),
		)
	default:
		return nil
	}
	return n.sender.SendText(ctx, n.adminID, text)
}
