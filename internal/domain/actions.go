package domain

import "time"

// ActionKind tags an inbound user action.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionGreet
	ActionMenu
	ActionAdminMenu
	ActionStartTest
	ActionAnswer
	ActionMorePages
	ActionRecentUsers
)

// Action is a parsed inbound action. Points is set for ActionAnswer, Page for ActionMorePages.
type Action struct {
	Kind   ActionKind
	Points int
	Page   int
}

// AnswerKind tags the outcome of a submitted answer.
type AnswerKind int

const (
	NextQuestion AnswerKind = iota
	TestFinished
)

// AnswerOutcome is returned by the state machine after an answer.
type AnswerOutcome struct {
	Kind AnswerKind
	// Question is set for NextQuestion.
	Question RenderedQuestion
	// Result is set for TestFinished.
	Result Result
}

// StartOutcome is returned when a test is started.
type StartOutcome struct {
	Question RenderedQuestion
	NewUser  bool
}

// PageKind tags the outcome of a "show more" request.
type PageKind int

const (
	PageShown PageKind = iota
	PageUnavailable
	PageIgnored
)

// PageOutcome is returned for a "show more" request.
type PageOutcome struct {
	Kind  PageKind
	Page  int
	Total int
	Text  string
}

// HasMore reports whether a further page exists after the shown one.
func (o PageOutcome) HasMore() bool {
	return o.Kind == PageShown && o.Page < o.Total-1
}

// EventType names an operator-facing lifecycle event.
type EventType string

const (
	EventNewUser      EventType = "new_user"
	EventTestStarted  EventType = "test_started"
	EventTestFinished EventType = "test_finished"
)

// Event is broadcast to operator notifiers.
type Event struct {
	Type  EventType   `json:"type"`
	User  UserProfile `json:"user"`
	Score int         `json:"score,omitempty"`
	Tier  string      `json:"tier,omitempty"`
	At    time.Time   `json:"at"`
}
