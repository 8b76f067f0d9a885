package domain

import (
	"strconv"
	"time"
)

// Option is a single scored answer of a question.
type Option struct {
	Text   string `json:"text" yaml:"text"`
	Points int    `json:"points" yaml:"points"`
}

// Question is an entry of the catalog. Index is its 0-based position.
type Question struct {
	Index   int      `json:"-" yaml:"-"`
	Prompt  string   `json:"prompt" yaml:"prompt"`
	Options []Option `json:"options" yaml:"options"`
}

// Session tracks a user's progress through the question list.
type Session struct {
	UserID       int64
	CurrentIndex int
	Score        int
	StartedAt    time.Time
}

// UserProfile is the identity a transport knows about the sender of an update.
type UserProfile struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// FullName joins first and last name, skipping empty parts.
func (p UserProfile) FullName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	default:
		return p.LastName
	}
}

// PlainLabel is @username, the full name or "ID: n", without markup.
func (p UserProfile) PlainLabel() string {
	if p.Username != "" {
		return "@" + p.Username
	}
	if name := p.FullName(); name != "" {
		return name
	}
	return "ID: " + strconv.FormatInt(p.ID, 10)
}

// UserRecord is the persisted view of a user.
type UserRecord struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username,omitempty"`
	FirstName   string     `json:"firstName,omitempty"`
	LastName    string     `json:"lastName,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	PromoSent   bool       `json:"promoSent"`
	Score       *int       `json:"score,omitempty"`
	PromoDueAt  *time.Time `json:"promoDueAt,omitempty"`
	PromoChatID int64      `json:"-"`
}

// Profile returns the identity part of the record.
func (r UserRecord) Profile() UserProfile {
	return UserProfile{ID: r.ID, Username: r.Username, FirstName: r.FirstName, LastName: r.LastName}
}

// PendingPromo is a persisted, not yet delivered deferred notification.
type PendingPromo struct {
	UserID int64
	ChatID int64
	DueAt  time.Time
}

// Choice is one rendered option of a question.
// Tag carries the option's point value; the letter only reflects display order.
type Choice struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
	Tag    int    `json:"tag"`
}

// RenderedQuestion is a question prepared for display.
type RenderedQuestion struct {
	Index   int      `json:"index"`
	Total   int      `json:"total"`
	Prompt  string   `json:"prompt"`
	Choices []Choice `json:"choices"`
}

// Result is the outcome of a completed test.
type Result struct {
	Score   int
	Tier    Tier
	Caption string
	Image   string
	// Pages are cumulative prefixes of the interpretation text.
	Pages []string
}

// FirstPage returns the initial page or an empty string for an empty result text.
func (r Result) FirstPage() string {
	if len(r.Pages) == 0 {
		return ""
	}
	return r.Pages[0]
}
