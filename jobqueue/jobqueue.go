// Package jobqueue holds conversion, fetch and publish jobs in memory,
// persists them to sqlite and releases them to runners in dependency order
// under per-host concurrency limits.
package jobqueue

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stevecastle/sarview/stream"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobExists   = errors.New("job with given ID already exists")
	// ErrBadState is returned for a transition the job's state does not allow.
	ErrBadState = errors.New("invalid job state")
)

// Queue is a thread-safe structure that manages Jobs with dependencies.
type Queue struct {
	mu       sync.Mutex
	Jobs     map[string]*Job
	JobOrder []string // submission order
	// Signal receives a job ID whenever a job may have become claimable.
	Signal        chan string
	Db            *sql.DB
	HostLimits    map[string]int
	RunningCounts map[string]int
}

// NewQueue returns an empty in-memory queue.
func NewQueue() *Queue {
	return &Queue{
		Jobs:          make(map[string]*Job),
		Signal:        make(chan string, 100),
		HostLimits:    make(map[string]int),
		RunningCounts: make(map[string]int),
	}
}

// NewQueueWithDB returns a queue persisted to db, restoring saved jobs.
func NewQueueWithDB(db *sql.DB) *Queue {
	q := NewQueue()
	q.Db = db
	if err := q.ensureSchema(); err != nil {
		log.Printf("Failed to create jobs table: %v", err)
		return q
	}
	if err := q.load(); err != nil {
		log.Printf("Failed to load jobs from database: %v", err)
	}
	return q
}

// signal wakes a runner without blocking when the channel is full; runners
// also poll.
func (q *Queue) signal(id string) {
	select {
	case q.Signal <- id:
	default:
	}
}

func publishListUpdate(updateType string, job *Job) {
	stream.Publish("job", JobEvent{UpdateType: updateType, Job: *job})
}

func (q *Queue) insertLocked(job *Job) {
	q.Jobs[job.ID] = job
	q.JobOrder = append(q.JobOrder, job.ID)
	q.persistLocked(job, "creation")
	q.signal(job.ID)
	publishListUpdate("create", job)
}

// AddJob queues a job and returns its ID. An empty id generates a UUID.
func (q *Queue) AddJob(id, command string, arguments []string, input string, dependencies []string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := q.Jobs[id]; exists {
		return "", fmt.Errorf("%s: %w", id, ErrJobExists)
	}
	q.insertLocked(newJob(id, command, arguments, input, dependencies))
	return id, nil
}

// AddWorkflow queues every task of w and returns the job IDs in task order.
// Task IDs become job IDs, so dependencies may refer to them. Nothing is
// queued if any ID is taken.
func (q *Queue) AddWorkflow(w Workflow) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]string, len(w.Tasks))
	seen := make(map[string]bool, len(w.Tasks))
	for i, t := range w.Tasks {
		id := t.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, exists := q.Jobs[id]; exists || seen[id] {
			return nil, fmt.Errorf("%s: %w", id, ErrJobExists)
		}
		seen[id] = true
		ids[i] = id
	}
	for i, t := range w.Tasks {
		q.insertLocked(newJob(ids[i], t.Command, t.Arguments, t.Input, t.Dependencies))
	}
	return ids, nil
}

// CopyJob queues a fresh run of job id with its submitted input.
func (q *Queue) CopyJob(id string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, exists := q.Jobs[id]
	if !exists {
		return "", fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	c := job.rerun(uuid.NewString())
	q.insertLocked(c)
	return c.ID, nil
}

// ClaimJob marks the first pending job whose dependencies have completed and
// whose host has a free slot as in progress, and returns it. It returns nil
// when no job is ready.
func (q *Queue) ClaimJob() (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range q.JobOrder {
		job := q.Jobs[id]
		if job.State != StatePending || !q.readyLocked(job) || !q.hasSlotLocked(job.Host) {
			continue
		}
		job.State = StateInProgress
		job.ClaimedAt = time.Now()
		q.RunningCounts[job.Host]++
		job.holdsSlot = true
		q.persistLocked(job, "claim")
		publishListUpdate("update", job)
		return job, nil
	}
	return nil, nil
}

// readyLocked reports whether every dependency of job exists and completed.
func (q *Queue) readyLocked(job *Job) bool {
	for _, dep := range job.Dependencies {
		d, ok := q.Jobs[dep]
		if !ok || d.State != StateCompleted {
			return false
		}
	}
	return true
}

// settle moves an in-progress job to a final state.
func (q *Queue) settle(id string, to JobState) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, exists := q.Jobs[id]
	if !exists {
		return fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	if job.State != StateInProgress {
		return fmt.Errorf("%s is %s, not in progress: %w", id, job.State, ErrBadState)
	}
	job.State = to
	switch to {
	case StateCompleted:
		job.CompletedAt = time.Now()
	case StateError:
		job.ErroredAt = time.Now()
	}
	q.freeSlotLocked(job)
	q.persistLocked(job, to.Wire())
	publishListUpdate("update", job)
	if to == StateCompleted {
		// dependants may now be ready
		q.signal(id)
	}
	return nil
}

// CompleteJob marks an in-progress job completed.
func (q *Queue) CompleteJob(id string) error { return q.settle(id, StateCompleted) }

// ErrorJob marks an in-progress job failed.
func (q *Queue) ErrorJob(id string) error { return q.settle(id, StateError) }

// CancelJob cancels a pending or running job. A running task sees its
// context cancelled and keeps its host slot until Release.
func (q *Queue) CancelJob(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, exists := q.Jobs[id]
	if !exists {
		return fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	if job.State.Final() {
		return fmt.Errorf("%s is already %s: %w", id, job.State, ErrBadState)
	}
	job.Cancel()
	job.State = StateCancelled
	q.persistLocked(job, "cancellation")
	publishListUpdate("update", job)
	return nil
}

// PushJobStdout appends a line to the job's output and streams it.
func (q *Queue) PushJobStdout(id string, line string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, exists := q.Jobs[id]
	if !exists {
		return fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	job.Stdout = append(job.Stdout, line)
	q.persistLocked(job, "output")
	stream.Publish("stdout-"+id, StdoutEvent{UpdateType: "stdout", Line: line})
	return nil
}

// GetJobs returns a copy of every job, newest first.
func (q *Queue) GetJobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := make([]Job, 0, len(q.JobOrder))
	for i := len(q.JobOrder) - 1; i >= 0; i-- {
		jobs = append(jobs, *q.Jobs[q.JobOrder[i]].snapshot())
	}
	return jobs
}

// GetJob returns a copy of the job with the given id, or nil.
func (q *Queue) GetJob(id string) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.Jobs[id]
	if !ok {
		return nil
	}
	return job.snapshot()
}

// Counts returns the number of jobs per state wire name, plus "total".
func (q *Queue) Counts() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := map[string]int{"total": len(q.Jobs)}
	for _, n := range stateNames {
		counts[n.wire] = 0
	}
	for _, job := range q.Jobs {
		counts[job.State.Wire()]++
	}
	return counts
}

func (q *Queue) dropLocked(id string) {
	delete(q.Jobs, id)
	if i := q.positionLocked(id); i >= 0 {
		q.JobOrder = append(q.JobOrder[:i], q.JobOrder[i+1:]...)
	}
	q.deleteStoredLocked(id)
	publishListUpdate("delete", &Job{ID: id})
}

// RemoveJob deletes a job in any state. A running job is cancelled first
// and keeps its host slot until Release.
func (q *Queue) RemoveJob(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, exists := q.Jobs[id]
	if !exists {
		return fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	if job.State == StateInProgress {
		job.Cancel()
	}
	q.dropLocked(id)
	return nil
}

// ClearNonRunningJobs removes every job that is not in progress and returns
// how many were removed.
func (q *Queue) ClearNonRunningJobs() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var drop []string
	for _, id := range q.JobOrder {
		if q.Jobs[id].State != StateInProgress {
			drop = append(drop, id)
		}
	}
	for _, id := range drop {
		q.dropLocked(id)
	}
	return len(drop), nil
}
