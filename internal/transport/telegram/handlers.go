package telegram

import (
	"context"
	"errors"
	"html"
	"os"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"traffic-light-bot/internal/app"
	"traffic-light-bot/internal/domain"
	"traffic-light-bot/internal/logging"
)

const recentUsersLimit = 10

func (b *Bot) handleMessage(ctx context.Context, log *logging.Logger, msg *tgbotapi.Message) {
	action, err := app.ParseText(msg.Text, b.messages.MenuButton)
	if err != nil {
		log.Debug("ignoring message", "user_id", msg.From.ID)
		return
	}
	profile := profileOf(msg.From)
	chatID := msg.Chat.ID

	switch action.Kind {
	case domain.ActionGreet:
		if _, err := b.quiz.Greet(ctx, profile); err != nil {
			log.Error("greet failed", "user_id", profile.ID, "error", err)
		}
		out := tgbotapi.NewMessage(chatID, b.messages.Greeting)
		out.ReplyMarkup = mainKeyboard(b.messages)
		b.send(log, out)
	case domain.ActionMenu:
		out := tgbotapi.NewMessage(chatID, b.messages.MenuPrompt)
		out.ReplyMarkup = menuKeyboard(b.messages)
		b.send(log, out)
	case domain.ActionAdminMenu:
		if profile.ID != b.opts.AdminID {
			b.send(log, tgbotapi.NewMessage(chatID, b.messages.AccessDenied))
			return
		}
		out := tgbotapi.NewMessage(chatID, b.messages.AdminMenu)
		out.ReplyMarkup = adminKeyboard(b.messages)
		b.send(log, out)
	}
}

func (b *Bot) handleCallback(ctx context.Context, log *logging.Logger, cq *tgbotapi.CallbackQuery) {
	action, err := app.ParseCallback(cq.Data)
	switch {
	case errors.Is(err, domain.ErrBadInput):
		alert := b.messages.BadButton
		if action.Kind == domain.ActionAnswer {
			alert = b.messages.BadAnswer
		}
		b.answer(log, tgbotapi.NewCallbackWithAlert(cq.ID, alert))
		return
	case err != nil:
		log.Debug("unknown callback", "data", cq.Data)
		b.answer(log, tgbotapi.NewCallback(cq.ID, ""))
		return
	}
	if cq.Message == nil {
		b.answer(log, tgbotapi.NewCallback(cq.ID, ""))
		return
	}

	profile := profileOf(cq.From)
	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID

	switch action.Kind {
	case domain.ActionStartTest:
		b.onStartTest(ctx, log, cq, profile, chatID)
	case domain.ActionAnswer:
		b.onAnswer(ctx, log, cq, profile, chatID, messageID, action.Points)
	case domain.ActionMorePages:
		b.onMorePages(ctx, log, cq, profile, chatID, messageID, action.Page)
	case domain.ActionRecentUsers:
		b.onRecentUsers(ctx, log, cq, profile, chatID)
	default:
		b.answer(log, tgbotapi.NewCallback(cq.ID, ""))
	}
}

func (b *Bot) onStartTest(ctx context.Context, log *logging.Logger, cq *tgbotapi.CallbackQuery, profile domain.UserProfile, chatID int64) {
	out, err := b.quiz.StartTest(ctx, profile, chatID)
	if err != nil {
		log.Error("start test failed", "user_id", profile.ID, "error", err)
		b.answer(log, tgbotapi.NewCallback(cq.ID, ""))
		return
	}
	log.Info("test started", "user_id", profile.ID, "new_user", out.NewUser)

	intro := tgbotapi.NewMessage(chatID, b.intro)
	intro.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	b.send(log, intro)

	question := tgbotapi.NewMessage(chatID, questionText(b.messages, out.Question))
	question.ReplyMarkup = questionKeyboard(out.Question)
	b.send(log, question)
	b.answer(log, tgbotapi.NewCallback(cq.ID, ""))
}

func (b *Bot) onAnswer(ctx context.Context, log *logging.Logger, cq *tgbotapi.CallbackQuery, profile domain.UserProfile, chatID int64, messageID, points int) {
	out, err := b.quiz.SubmitAnswer(ctx, profile, points)
	if err != nil {
		log.Error("submit answer failed", "user_id", profile.ID, "error", err)
		b.answer(log, tgbotapi.NewCallback(cq.ID, ""))
		return
	}

	if out.Kind == domain.NextQuestion {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID,
			questionText(b.messages, out.Question), questionKeyboard(out.Question))
		edit.ParseMode = tgbotapi.ModeHTML
		b.request(log, edit)
		b.answer(log, tgbotapi.NewCallback(cq.ID, ""))
		return
	}

	// acknowledge before the result delays so the button stops spinning
	b.answer(log, tgbotapi.NewCallback(cq.ID, ""))
	log.Info("test finished", "user_id", profile.ID, "score", out.Result.Score, "tier", out.Result.Tier.Key())
	b.deliverResult(ctx, log, chatID, messageID, out.Result)
}

func (b *Bot) deliverResult(ctx context.Context, log *logging.Logger, chatID int64, messageID int, res domain.Result) {
	calculating := tgbotapi.NewEditMessageText(chatID, messageID, b.messages.Calculating)
	b.request(log, calculating)

	if err := sleepCtx(ctx, b.opts.ResultDelay); err != nil {
		return
	}
	b.sendPhoto(log, chatID, res)

	if err := sleepCtx(ctx, b.opts.ResultDelay); err != nil {
		return
	}
	if first := res.FirstPage(); first != "" {
		page := tgbotapi.NewMessage(chatID, html.EscapeString(first))
		if kb := pageKeyboard(b.messages, 0, len(res.Pages)); kb != nil {
			page.ReplyMarkup = *kb
		}
		b.send(log, page)
	}

	after := tgbotapi.NewMessage(chatID, b.messages.AfterResult)
	after.ReplyMarkup = mainKeyboard(b.messages)
	b.send(log, after)
}

// sendPhoto falls back to a text caption when the tier image is missing.
func (b *Bot) sendPhoto(log *logging.Logger, chatID int64, res domain.Result) {
	path := filepath.Join(b.opts.ImagesDir, res.Image)
	if _, err := os.Stat(path); err != nil {
		log.Warn("result image unavailable", "path", path, "error", err)
		b.send(log, tgbotapi.NewMessage(chatID, res.Caption))
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))
	photo.Caption = res.Caption
	photo.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(photo); err != nil {
		log.Warn("send photo failed", "chat_id", chatID, "error", deliveryError(chatID, err))
		b.send(log, tgbotapi.NewMessage(chatID, res.Caption))
	}
}

func (b *Bot) onMorePages(ctx context.Context, log *logging.Logger, cq *tgbotapi.CallbackQuery, profile domain.UserProfile, chatID int64, messageID, page int) {
	out, err := b.quiz.ShowPage(ctx, profile.ID, page)
	if err != nil {
		log.Error("show page failed", "user_id", profile.ID, "error", err)
		b.answer(log, tgbotapi.NewCallback(cq.ID, ""))
		return
	}

	switch out.Kind {
	case domain.PageUnavailable:
		b.answer(log, tgbotapi.NewCallbackWithAlert(cq.ID, b.messages.PagesExpired))
	case domain.PageIgnored:
		b.answer(log, tgbotapi.NewCallback(cq.ID, ""))
	case domain.PageShown:
		edit := tgbotapi.NewEditMessageText(chatID, messageID, html.EscapeString(out.Text))
		edit.ParseMode = tgbotapi.ModeHTML
		edit.ReplyMarkup = pageKeyboard(b.messages, out.Page, out.Total)
		b.request(log, edit)
		b.answer(log, tgbotapi.NewCallback(cq.ID, ""))
	}
}

func (b *Bot) onRecentUsers(ctx context.Context, log *logging.Logger, cq *tgbotapi.CallbackQuery, profile domain.UserProfile, chatID int64) {
	if profile.ID != b.opts.AdminID {
		log.Warn("recent users denied", "user_id", profile.ID)
		b.answer(log, tgbotapi.NewCallbackWithAlert(cq.ID, b.messages.AccessDenied))
		return
	}
	users, err := b.quiz.RecentUsers(ctx, recentUsersLimit)
	if err != nil {
		log.Error("list recent users failed", "error", err)
		b.answer(log, tgbotapi.NewCallback(cq.ID, ""))
		return
	}
	b.send(log, tgbotapi.NewMessage(chatID, RecentUsersText(b.messages, users)))
	b.answer(log, tgbotapi.NewCallback(cq.ID, ""))
}

func (b *Bot) send(log *logging.Logger, msg tgbotapi.MessageConfig) {
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		log.Warn("send message failed", "chat_id", msg.ChatID, "error", deliveryError(msg.ChatID, err))
	}
}

func (b *Bot) request(log *logging.Logger, c tgbotapi.Chattable) {
	if _, err := b.api.Request(c); err != nil {
		log.Warn("telegram request failed", "error", err)
	}
}

func (b *Bot) answer(log *logging.Logger, cb tgbotapi.CallbackConfig) {
	if _, err := b.api.Request(cb); err != nil {
		log.Debug("answer callback failed", "error", err)
	}
}
