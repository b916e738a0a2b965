// Package runners executes queued jobs with the task registered for their
// command.
package runners

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/stevecastle/sarview/jobqueue"
	"github.com/stevecastle/sarview/tasks"
)

// PollInterval is how often runners look for claimable jobs without a
// signal, which covers freed host slots and finished dependencies.
var PollInterval = 2 * time.Second

// Runners starts every claimable job in its own goroutine. Concurrency is
// bounded by the queue's per-host limits, not by the runners.
type Runners struct {
	queue *jobqueue.Queue

	mu      sync.Mutex // serialises claims; also handed to tasks
	running int

	ctx    context.Context
	cancel context.CancelFunc
	loop   sync.WaitGroup
}

// New starts runners for queue.
func New(queue *jobqueue.Queue) *Runners {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runners{queue: queue, ctx: ctx, cancel: cancel}
	r.loop.Add(1)
	go r.listen()
	return r
}

func (r *Runners) listen() {
	defer r.loop.Done()
	poll := time.NewTicker(PollInterval)
	defer poll.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.queue.Signal:
		case <-poll.C:
		}
		r.CheckForJobs()
	}
}

// Shutdown stops claiming jobs. Jobs already running finish on their own;
// if the process exits first they are resumed from the start next launch.
// It is safe to call more than once.
func (r *Runners) Shutdown() {
	r.cancel()
	r.loop.Wait()
}

// Running returns the number of jobs executing now.
func (r *Runners) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// CheckForJobs claims and starts every job that is ready.
func (r *Runners) CheckForJobs() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claimAllLocked()
}

func (r *Runners) claimAllLocked() {
	for r.ctx.Err() == nil {
		job, err := r.queue.ClaimJob()
		if err != nil || job == nil {
			return
		}
		r.running++
		go r.run(job)
	}
}

func (r *Runners) run(j *jobqueue.Job) {
	defer func() {
		// a cancelled task holds its host slot until it returns
		r.queue.Release(j)
		r.mu.Lock()
		r.running--
		// the finished job may have freed a slot or a dependant
		r.claimAllLocked()
		r.mu.Unlock()
	}()

	task, ok := tasks.Lookup(j.Command)
	if !ok {
		r.queue.PushJobStdout(j.ID, "Task not found: "+j.Command)
		r.queue.ErrorJob(j.ID)
		return
	}
	if err := r.call(task, j); err != nil {
		log.Printf("Job %s (%s) failed: %v", j.ID, j.Command, err)
		r.settleFailed(j)
	}
}

// call runs the task, turning a panic into an error.
func (r *Runners) call(task tasks.Task, j *jobqueue.Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.queue.PushJobStdout(j.ID, fmt.Sprintf("Task panicked: %v", p))
			err = fmt.Errorf("panic in %s: %v", task.ID, p)
		}
	}()
	return task.Fn(j, r.queue, &r.mu)
}

// settleFailed marks a failed job cancelled when its context was cancelled
// and errored otherwise. A job the task already settled is left alone.
func (r *Runners) settleFailed(j *jobqueue.Job) {
	var err error
	if j.Ctx.Err() != nil {
		err = r.queue.CancelJob(j.ID)
	} else {
		err = r.queue.ErrorJob(j.ID)
	}
	if err != nil && !errors.Is(err, jobqueue.ErrBadState) && !errors.Is(err, jobqueue.ErrJobNotFound) {
		log.Printf("Failed to settle job %s: %v", j.ID, err)
	}
}
