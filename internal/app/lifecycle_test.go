package app

import (
	"context"
	"testing"
)

func TestLifecycleTransitions(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name    string
		from    string
		event   string
		want    string
		wantErr bool
	}{
		{"start fresh", stateNotStarted, eventStart, stateInProgress, false},
		{"restart in progress", stateInProgress, eventStart, stateInProgress, false},
		{"start after completion", stateCompleted, eventStart, stateInProgress, false},
		{"answer in progress", stateInProgress, eventAnswer, stateInProgress, false},
		{"finish in progress", stateInProgress, eventFinish, stateCompleted, false},
		{"answer before start", stateNotStarted, eventAnswer, stateNotStarted, true},
		{"finish before start", stateNotStarted, eventFinish, stateNotStarted, true},
		{"answer after completion", stateCompleted, eventAnswer, stateCompleted, true},
		{"finish twice", stateCompleted, eventFinish, stateCompleted, true},
	}
	for _, tc := range cases {
		lc := newLifecycle(tc.from)
		err := advance(ctx, lc, tc.event)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: expected error=%v, got %v", tc.name, tc.wantErr, err)
		}
		if lc.Current() != tc.want {
			t.Fatalf("%s: expected state %s, got %s", tc.name, tc.want, lc.Current())
		}
	}
}
