package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"traffic-light-bot/internal/app"
	"traffic-light-bot/internal/catalog"
	"traffic-light-bot/internal/domain"
	"traffic-light-bot/internal/infra/memory"
)

const adminID = 900

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
	sendErr  error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, f.sendErr
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) texts() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeAPI) edits() []tgbotapi.EditMessageTextConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, c := range f.requests {
		if e, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeAPI) lastCallback(t *testing.T) tgbotapi.CallbackConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if cb, ok := f.requests[i].(tgbotapi.CallbackConfig); ok {
			return cb
		}
	}
	t.Fatalf("no callback answered")
	return tgbotapi.CallbackConfig{}
}

type fakeUpdates struct {
	ch      chan tgbotapi.Update
	stopped chan struct{}
}

func (f *fakeUpdates) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.ch }
func (f *fakeUpdates) StopReceivingUpdates()                                       { close(f.stopped) }

type harness struct {
	bot   *Bot
	api   *fakeAPI
	users *memory.UserStore
	cat   *catalog.Catalog
}

func newHarness(t *testing.T) harness {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	users := memory.NewUserStore()
	service := app.NewQuizService(cat, memory.NewSessionStore(), memory.NewPageStore(), users)
	fa := &fakeAPI{}
	bot := newBot(fa, &fakeUpdates{}, service, Options{AdminID: adminID, ImagesDir: t.TempDir()}, nil)
	return harness{bot: bot, api: fa, users: users, cat: cat}
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, UserName: "alice", FirstName: "Alice"},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}}
}

func callbackUpdate(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID, UserName: "alice", FirstName: "Alice"},
		Message: &tgbotapi.Message{MessageID: 77, Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}}
}

func TestStartCommandGreetsWithMenuKeyboard(t *testing.T) {
	h := newHarness(t)
	h.bot.HandleUpdate(context.Background(), textUpdate(1, "/start"))

	msgs := h.api.texts()
	if len(msgs) != 1 || msgs[0].Text != h.cat.Messages.Greeting {
		t.Fatalf("expected greeting, got %+v", msgs)
	}
	kb, ok := msgs[0].ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	if !ok || kb.Keyboard[0][0].Text != h.cat.Messages.MenuButton {
		t.Fatalf("expected reply keyboard with menu button, got %#v", msgs[0].ReplyMarkup)
	}
	if _, ok := h.users.Get(1); !ok {
		t.Fatalf("expected user recorded on /start")
	}
}

func TestMenuOffersStartButton(t *testing.T) {
	h := newHarness(t)
	h.bot.HandleUpdate(context.Background(), textUpdate(1, h.cat.Messages.MenuButton))

	msgs := h.api.texts()
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	kb, ok := msgs[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || *kb.InlineKeyboard[0][0].CallbackData != app.CallbackStartTest {
		t.Fatalf("expected start test button, got %#v", msgs[0].ReplyMarkup)
	}
}

func TestFullTestThroughCallbacks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.bot.HandleUpdate(ctx, callbackUpdate(1, app.CallbackStartTest))
	msgs := h.api.texts()
	if len(msgs) != 2 || msgs[0].Text != h.cat.Intro {
		t.Fatalf("expected intro and first question, got %d messages", len(msgs))
	}
	if !strings.HasPrefix(msgs[1].Text, "Вопрос 1 из 20") {
		t.Fatalf("unexpected first question %q", msgs[1].Text)
	}
	kb := msgs[1].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if len(kb.InlineKeyboard[0]) != 4 {
		t.Fatalf("expected 4 answer buttons, got %d", len(kb.InlineKeyboard[0]))
	}
	for _, btn := range kb.InlineKeyboard[0] {
		if a, err := app.ParseCallback(*btn.CallbackData); err != nil || a.Kind != domain.ActionAnswer {
			t.Fatalf("bad answer button %q", *btn.CallbackData)
		}
	}

	for i := 0; i < 20; i++ {
		h.bot.HandleUpdate(ctx, callbackUpdate(1, app.AnswerData(3)))
	}

	edits := h.api.edits()
	if len(edits) != 20 {
		t.Fatalf("expected 19 question edits and the calculating edit, got %d", len(edits))
	}
	if !strings.HasPrefix(edits[18].Text, "Вопрос 20 из 20") {
		t.Fatalf("unexpected last question edit %q", edits[18].Text)
	}
	if edits[19].Text != h.cat.Messages.Calculating {
		t.Fatalf("expected calculating notice, got %q", edits[19].Text)
	}

	msgs = h.api.texts()
	tail := msgs[len(msgs)-3:]
	if !strings.Contains(tail[0].Text, "60") {
		t.Fatalf("expected caption with the score, got %q", tail[0].Text)
	}
	more, ok := tail[1].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || *more.InlineKeyboard[0][0].CallbackData != app.PageData(1) {
		t.Fatalf("expected more button on first page, got %#v", tail[1].ReplyMarkup)
	}
	if tail[2].Text != h.cat.Messages.AfterResult {
		t.Fatalf("expected after result prompt, got %q", tail[2].Text)
	}
	rec, _ := h.users.Get(1)
	if rec.Score == nil || *rec.Score != 60 {
		t.Fatalf("expected stored score 60")
	}

	h.bot.HandleUpdate(ctx, callbackUpdate(1, app.PageData(1)))
	last := h.api.edits()[20]
	if last.ReplyMarkup != nil || last.MessageID != 77 {
		t.Fatalf("expected last page without keyboard, got %+v", last)
	}

	h.bot.HandleUpdate(ctx, callbackUpdate(1, app.PageData(1)))
	if cb := h.api.lastCallback(t); !cb.ShowAlert || cb.Text != h.cat.Messages.PagesExpired {
		t.Fatalf("expected expired alert, got %+v", cb)
	}
}

func TestMalformedCallbacksAlert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.bot.HandleUpdate(ctx, callbackUpdate(1, "answer:x"))
	if cb := h.api.lastCallback(t); !cb.ShowAlert || cb.Text != h.cat.Messages.BadAnswer {
		t.Fatalf("expected bad answer alert, got %+v", cb)
	}

	h.bot.HandleUpdate(ctx, callbackUpdate(1, "result_page:x"))
	if cb := h.api.lastCallback(t); !cb.ShowAlert || cb.Text != h.cat.Messages.BadButton {
		t.Fatalf("expected bad button alert, got %+v", cb)
	}

	h.bot.HandleUpdate(ctx, callbackUpdate(1, "nonsense"))
	if cb := h.api.lastCallback(t); cb.ShowAlert {
		t.Fatalf("expected silent answer for unknown data")
	}
	if len(h.api.texts()) != 0 {
		t.Fatalf("expected no messages for bad callbacks")
	}
}

func TestRecentUsersIsAdminOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.bot.HandleUpdate(ctx, textUpdate(1, "/start"))

	h.bot.HandleUpdate(ctx, callbackUpdate(1, app.CallbackRecentUsers))
	if cb := h.api.lastCallback(t); !cb.ShowAlert || cb.Text != h.cat.Messages.AccessDenied {
		t.Fatalf("expected access denied, got %+v", cb)
	}

	h.bot.HandleUpdate(ctx, callbackUpdate(adminID, app.CallbackRecentUsers))
	msgs := h.api.texts()
	last := msgs[len(msgs)-1]
	if !strings.Contains(last.Text, "1. @alice") || last.ParseMode != tgbotapi.ModeHTML {
		t.Fatalf("unexpected recent users message %+v", last)
	}

	h.bot.HandleUpdate(ctx, textUpdate(1, "/admin"))
	msgs = h.api.texts()
	if msgs[len(msgs)-1].Text != h.cat.Messages.AccessDenied {
		t.Fatalf("expected /admin denied for regular users")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	updates := &fakeUpdates{ch: make(chan tgbotapi.Update, 1), stopped: make(chan struct{})}
	h.bot.updates = updates

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx) }()

	updates.ch <- textUpdate(2, "/start")
	deadline := time.Now().Add(2 * time.Second)
	for len(h.api.texts()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("update was not handled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
	select {
	case <-updates.stopped:
	default:
		t.Fatalf("expected polling stopped")
	}
}

func TestUserLabel(t *testing.T) {
	cases := []struct {
		profile domain.UserProfile
		want    string
	}{
		{domain.UserProfile{ID: 1, Username: "bob", FirstName: "Bob"}, "@bob"},
		{domain.UserProfile{ID: 2, FirstName: "Tom", LastName: "<Jr>"}, `<a href="tg://user?id=2">Tom &lt;Jr&gt;</a>`},
		{domain.UserProfile{ID: 3}, "ID: 3"},
	}
	for _, c := range cases {
		if got := UserLabel(c.profile); got != c.want {
			t.Fatalf("UserLabel(%+v)=%q, want %q", c.profile, got, c.want)
		}
	}
}

type recordingSender struct {
	chatID int64
	texts  []string
}

func (r *recordingSender) SendText(_ context.Context, chatID int64, text string) error {
	r.chatID = chatID
	r.texts = append(r.texts, text)
	return nil
}

func TestAdminNotifierFormatsEvents(t *testing.T) {
	cat, _ := catalog.Default()
	sender := &recordingSender{}
	n := NewAdminNotifier(sender, adminID, cat.Messages)
	ctx := context.Background()
	user := domain.UserProfile{ID: 5, Username: "kate"}

	_ = n.Notify(ctx, domain.Event{Type: domain.EventNewUser, User: user})
	_ = n.Notify(ctx, domain.Event{Type: domain.EventTestStarted, User: user})
	_ = n.Notify(ctx, domain.Event{Type: domain.EventTestFinished, User: user, Score: 41})

	if sender.chatID != adminID || len(sender.texts) != 2 {
		t.Fatalf("expected two admin messages, got %v", sender.texts)
	}
	if !strings.Contains(sender.texts[0], "@kate") {
		t.Fatalf("unexpected new user text %q", sender.texts[0])
	}
	if sender.texts[1] != "Пользователь @kate, результат - 41" {
		t.Fatalf("unexpected finished text %q", sender.texts[1])
	}
}

func TestMessengerReturnsDeliveryError(t *testing.T) {
	fa := &fakeAPI{sendErr: &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}}
	m := NewMessenger(fa)

	err := m.SendText(context.Background(), 42, "hi")
	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if de.ChatID != 42 || de.Code != 403 || !de.Permanent() {
		t.Fatalf("unexpected delivery error %+v", de)
	}

	fa.sendErr = nil
	if err := m.SendText(context.Background(), 42, "hi"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}
