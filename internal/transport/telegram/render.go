package telegram

import (
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"traffic-light-bot/internal/app"
	"traffic-light-bot/internal/catalog"
	"traffic-light-bot/internal/domain"
)

// UserLabel is how the operator sees a user: @username, a mention link, or the bare id.
func UserLabel(p domain.UserProfile) string {
	if p.Username != "" {
		return "@" + p.Username
	}
	if name := p.FullName(); name != "" {
		return `<a href="tg://user?id=` + strconv.FormatInt(p.ID, 10) + `">` + html.EscapeString(name) + `</a>`
	}
	return "ID: " + strconv.FormatInt(p.ID, 10)
}

func questionText(m catalog.Messages, q domain.RenderedQuestion) string {
	var b strings.Builder
	b.WriteString(catalog.Format(m.QuestionHeader,
		"n", strconv.Itoa(q.Index+1),
		"total", strconv.Itoa(q.Total),
	))
	b.WriteString("\n\n")
	b.WriteString(html.EscapeString(q.Prompt))
	b.WriteString("\n")
	for _, c := range q.Choices {
		b.WriteString("\n")
		b.WriteString(c.Letter)
		b.WriteString(") ")
		b.WriteString(html.EscapeString(c.Text))
	}
	return b.String()
}

func questionKeyboard(q domain.RenderedQuestion) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(q.Choices))
	for _, c := range q.Choices {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(c.Letter, app.AnswerData(c.Tag)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// pageKeyboard offers the next page, or nothing on the last one.
func pageKeyboard(m catalog.Messages, page, total int) *tgbotapi.InlineKeyboardMarkup {
	if page >= total-1 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(m.MoreButton, app.PageData(page+1))),
	)
	return &kb
}

func menuKeyboard(m catalog.Messages) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(m.StartButton, app.CallbackStartTest)),
	)
}

func adminKeyboard(m catalog.Messages) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(m.RecentUsersButton, app.CallbackRecentUsers)),
	)
}

func mainKeyboard(m catalog.Messages) tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(m.MenuButton)))
	kb.ResizeKeyboard = true
	return kb
}

// RecentUsersText renders the operator's list of latest users.
func RecentUsersText(m catalog.Messages, users []domain.UserRecord) string {
	if len(users) == 0 {
		return m.NoUsers
	}
	lines := make([]string, 0, len(users)+1)
	lines = append(lines, m.RecentUsersTitle+"\n")
	for i, u := range users {
		line := strconv.Itoa(i+1) + ". " + UserLabel(u.Profile())
		if u.Score != nil {
			line += catalog.Format(m.RecentUsersScore, "score", strconv.Itoa(*u.Score))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
