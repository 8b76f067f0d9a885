package app

import (
	"fmt"
	"strconv"
	"strings"

	"traffic-light-bot/internal/domain"
)

// Callback payloads understood by ParseCallback.
const (
	CallbackStartTest   = "start_test"
	CallbackRecentUsers = "admin_recent_users"
	AnswerPrefix        = "answer:"
	PagePrefix          = "result_page:"
)

// AnswerData builds the callback payload of an answer button.
func AnswerData(points int) string {
	return AnswerPrefix + strconv.Itoa(points)
}

// PageData builds the callback payload of a "show more" button.
func PageData(page int) string {
	return PagePrefix + strconv.Itoa(page)
}

// ParseCallback turns a raw callback payload into a typed action.
// A known prefix with a malformed argument returns the action kind together with ErrBadInput.
func ParseCallback(data string) (domain.Action, error) {
	switch {
	case data == CallbackStartTest:
		return domain.Action{Kind: domain.ActionStartTest}, nil
	case data == CallbackRecentUsers:
		return domain.Action{Kind: domain.ActionRecentUsers}, nil
	case strings.HasPrefix(data, AnswerPrefix):
		points, err := strconv.Atoi(strings.TrimPrefix(data, AnswerPrefix))
		if err != nil {
			return domain.Action{Kind: domain.ActionAnswer}, fmt.Errorf("%w: %q", domain.ErrBadInput, data)
		}
		return domain.Action{Kind: domain.ActionAnswer, Points: points}, nil
	case strings.HasPrefix(data, PagePrefix):
		page, err := strconv.Atoi(strings.TrimPrefix(data, PagePrefix))
		if err != nil {
			return domain.Action{Kind: domain.ActionMorePages}, fmt.Errorf("%w: %q", domain.ErrBadInput, data)
		}
		return domain.Action{Kind: domain.ActionMorePages, Page: page}, nil
	default:
		return domain.Action{}, fmt.Errorf("%w: %q", domain.ErrUnknownAction, data)
	}
}

// ParseText maps a text message to an action. menuButton is the reply keyboard label.
func ParseText(text, menuButton string) (domain.Action, error) {
	trimmed := strings.TrimSpace(text)
	command := trimmed
	if i := strings.IndexAny(command, " @"); i > 0 {
		command = command[:i]
	}
	switch {
	case command == "/start":
		return domain.Action{Kind: domain.ActionGreet}, nil
	case command == "/admin":
		return domain.Action{Kind: domain.ActionAdminMenu}, nil
	case menuButton != "" && trimmed == menuButton:
		return domain.Action{Kind: domain.ActionMenu}, nil
	default:
		return domain.Action{}, fmt.Errorf("%w: %q", domain.ErrUnknownAction, text)
	}
}
