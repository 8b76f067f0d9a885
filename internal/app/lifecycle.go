package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
)

// Session lifecycle states and the events moving between them.
const (
	stateNotStarted = "not_started"
	stateInProgress = "in_progress"
	stateCompleted  = "completed"

	eventStart  = "start"
	eventAnswer = "answer"
	eventFinish = "finish"
)

// newLifecycle builds the per-operation session machine. Only start leaves completed;
// answer and finish need a test in progress.
func newLifecycle(initial string) *fsm.FSM {
	return fsm.NewFSM(initial, fsm.Events{
		{Name: eventStart, Src: []string{stateNotStarted, stateInProgress, stateCompleted}, Dst: stateInProgress},
		{Name: eventAnswer, Src: []string{stateInProgress}, Dst: stateInProgress},
		{Name: eventFinish, Src: []string{stateInProgress}, Dst: stateCompleted},
	}, fsm.Callbacks{})
}

// advance fires event. Staying in the same state (answer, restart) is not an error.
func advance(ctx context.Context, lc *fsm.FSM, event string) error {
	err := lc.Event(ctx, event)
	var same fsm.NoTransitionError
	if err != nil && !errors.As(err, &same) {
		return fmt.Errorf("session %s from %s: %w", event, lc.Current(), err)
	}
	return nil
}
