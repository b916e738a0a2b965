package jobqueue

import "encoding/json"

// JobState is where a job is in its lifecycle. Completed, Cancelled and Error
// are final.
type JobState int

const (
	StatePending JobState = iota
	StateInProgress
	StateCompleted
	StateCancelled
	StateError
)

// stateNames maps each state to its display and wire names.
var stateNames = [...]struct{ display, wire string }{
	StatePending:    {"Pending", "pending"},
	StateInProgress: {"InProgress", "in_progress"},
	StateCompleted:  {"Completed", "completed"},
	StateCancelled:  {"Cancelled", "cancelled"},
	StateError:      {"Error", "error"},
}

func (s JobState) valid() bool { return s >= 0 && int(s) < len(stateNames) }

func (s JobState) String() string {
	if !s.valid() {
		return "Unknown"
	}
	return stateNames[s].display
}

// Wire returns the name used in JSON and in health counts.
func (s JobState) Wire() string {
	if !s.valid() {
		return "unknown"
	}
	return stateNames[s].wire
}

// Final reports whether the job will not run again.
func (s JobState) Final() bool {
	return s == StateCompleted || s == StateCancelled || s == StateError
}

func (s JobState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Wire())
}

// UnmarshalJSON accepts the wire names. Anything else decodes as pending.
func (s *JobState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*s = StatePending
	for i, n := range stateNames {
		if n.wire == name {
			*s = JobState(i)
			break
		}
	}
	return nil
}
