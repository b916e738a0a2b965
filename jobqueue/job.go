package jobqueue

import (
	"context"
	"time"
)

// Job is one queued task invocation.
type Job struct {
	ID        string   `json:"id"`
	Command   string   `json:"command"`
	Arguments []string `json:"arguments"`
	Input     string   `json:"input"`
	// OriginalInput is the input as submitted, kept when a task rewrites Input.
	OriginalInput string `json:"original_input"`
	// Host is the resource the job contends for; see SetHostLimit.
	Host         string   `json:"host"`
	Stdout       []string `json:"-"`
	Dependencies []string `json:"dependencies"`
	State        JobState `json:"state"`

	Ctx    context.Context    `json:"-"`
	Cancel context.CancelFunc `json:"-"`

	// holdsSlot is set while a claimed job counts against its host limit.
	holdsSlot bool

	CreatedAt   time.Time `json:"created_at"`
	ClaimedAt   time.Time `json:"claimed_at"`
	CompletedAt time.Time `json:"completed_at"`
	ErroredAt   time.Time `json:"errored_at"`
}

func newJob(id, command string, arguments []string, input string, dependencies []string) *Job {
	j := &Job{
		ID:            id,
		Command:       command,
		Arguments:     arguments,
		Input:         input,
		OriginalInput: input,
		Host:          hostFor(command, input),
		Dependencies:  dependencies,
		State:         StatePending,
		CreatedAt:     time.Now(),
	}
	j.arm()
	return j
}

// arm gives the job a fresh cancellable context.
func (j *Job) arm() {
	j.Ctx, j.Cancel = context.WithCancel(context.Background())
}

// snapshot copies j with its own stdout slice.
func (j *Job) snapshot() *Job {
	c := *j
	c.Stdout = append([]string(nil), j.Stdout...)
	return &c
}

// rerun returns a pending copy of j under id with the submitted input and
// no output.
func (j *Job) rerun(id string) *Job {
	c := *j
	c.ID = id
	c.Input = j.OriginalInput
	c.Stdout = nil
	c.State = StatePending
	c.holdsSlot = false
	c.CreatedAt = time.Now()
	c.ClaimedAt, c.CompletedAt, c.ErroredAt = time.Time{}, time.Time{}, time.Time{}
	c.Arguments = append([]string(nil), j.Arguments...)
	c.Dependencies = append([]string(nil), j.Dependencies...)
	c.arm()
	return &c
}

// WorkflowTask is one job of a Workflow. Dependencies name other tasks of
// the same workflow, or existing jobs, by ID.
type WorkflowTask struct {
	ID           string   `json:"id"`
	Command      string   `json:"command"`
	Arguments    []string `json:"arguments"`
	Input        string   `json:"input"`
	Dependencies []string `json:"dependencies"`
}

// Workflow is a set of tasks submitted together, such as fetch, convert and
// publish for one scene.
type Workflow struct {
	Tasks []WorkflowTask `json:"tasks"`
}

// JobEvent is streamed to "job" subscribers whenever a job changes.
type JobEvent struct {
	UpdateType string `json:"updateType"`
	Job        Job    `json:"job"`
}

// StdoutEvent is streamed as "stdout-<job id>" for each output line.
type StdoutEvent struct {
	UpdateType string `json:"updateType"`
	Line       string `json:"line"`
}
