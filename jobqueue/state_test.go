package jobqueue

import (
	"encoding/json"
	"testing"
)

func TestJobStateNames(t *testing.T) {
	tests := []struct {
		state         JobState
		display, wire string
		final         bool
	}{
		{StatePending, "Pending", "pending", false},
		{StateInProgress, "InProgress", "in_progress", false},
		{StateCompleted, "Completed", "completed", true},
		{StateCancelled, "Cancelled", "cancelled", true},
		{StateError, "Error", "error", true},
		{JobState(99), "Unknown", "unknown", false},
		{JobState(-1), "Unknown", "unknown", false},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.display {
			t.Errorf("JobState(%d).String() = %q; want %q", int(tt.state), got, tt.display)
		}
		if got := tt.state.Wire(); got != tt.wire {
			t.Errorf("JobState(%d).Wire() = %q; want %q", int(tt.state), got, tt.wire)
		}
		if got := tt.state.Final(); got != tt.final {
			t.Errorf("JobState(%d).Final() = %v; want %v", int(tt.state), got, tt.final)
		}
	}
}

func TestJobStateJSON(t *testing.T) {
	for _, s := range []JobState{StatePending, StateInProgress, StateCompleted, StateCancelled, StateError} {
		data, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("Marshal(%v) error = %v", s, err)
		}
		var back JobState
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", data, err)
		}
		if back != s {
			t.Errorf("%s decoded as %v; want %v", data, back, s)
		}
	}

	var s JobState = StateError
	if err := json.Unmarshal([]byte(`"exploded"`), &s); err != nil {
		t.Fatal(err)
	}
	if s != StatePending {
		t.Errorf("unknown name decoded as %v; want Pending", s)
	}
	if err := json.Unmarshal([]byte(`3`), &s); err == nil {
		t.Error("a number should not decode as a state")
	}
}
