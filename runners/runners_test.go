package runners

import (
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stevecastle/sarview/jobqueue"
	"github.com/stevecastle/sarview/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newQueue(t *testing.T) *jobqueue.Queue {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return jobqueue.NewQueueWithDB(db)
}

func start(t *testing.T, q *jobqueue.Queue) *Runners {
	t.Helper()
	r := New(q)
	t.Cleanup(r.Shutdown)
	return r
}

func fastPoll(t *testing.T) {
	saved := PollInterval
	PollInterval = 20 * time.Millisecond
	t.Cleanup(func() { PollInterval = saved })
}

func waitForState(t *testing.T, q *jobqueue.Queue, id string, want jobqueue.JobState) *jobqueue.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if job := q.GetJob(id); job != nil && job.State == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s state = %v; want %v", id, q.GetJob(id).State, want)
	return nil
}

func stdoutContains(job *jobqueue.Job, s string) bool {
	for _, line := range job.Stdout {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

// lingering holds test-linger tasks after cancellation, like a conversion
// stage that only checks its context when it finishes.
var lingering = make(chan struct{})

func init() {
	tasks.Register("test-linger", "Linger", func(j *jobqueue.Job, q *jobqueue.Queue, _ *sync.Mutex) error {
		<-j.Ctx.Done()
		<-lingering
		return j.Ctx.Err()
	})
	tasks.Register("test-complete", "Complete", func(j *jobqueue.Job, q *jobqueue.Queue, _ *sync.Mutex) error {
		return q.CompleteJob(j.ID)
	})
	tasks.Register("test-fail", "Fail", func(j *jobqueue.Job, q *jobqueue.Queue, _ *sync.Mutex) error {
		return errors.New("no swath in product")
	})
	tasks.Register("test-panic", "Panic", func(j *jobqueue.Job, q *jobqueue.Queue, _ *sync.Mutex) error {
		panic("boom")
	})
	tasks.Register("test-block", "Block", func(j *jobqueue.Job, q *jobqueue.Queue, _ *sync.Mutex) error {
		<-j.Ctx.Done()
		return j.Ctx.Err()
	})
}

func TestRunsWaitTask(t *testing.T) {
	q := newQueue(t)
	start(t, q)
	id, err := q.AddJob("", "wait", nil, "0", nil)
	require.NoError(t, err)
	waitForState(t, q, id, jobqueue.StateCompleted)
}

func TestUnknownCommandErrors(t *testing.T) {
	q := newQueue(t)
	start(t, q)
	id, _ := q.AddJob("", "despeckle", nil, "", nil)
	job := waitForState(t, q, id, jobqueue.StateError)
	assert.Contains(t, job.Stdout, "Task not found: despeckle")
}

func TestFailedTaskErrors(t *testing.T) {
	q := newQueue(t)
	start(t, q)
	id, _ := q.AddJob("", "test-fail", nil, "", nil)
	waitForState(t, q, id, jobqueue.StateError)
}

func TestPanicErrors(t *testing.T) {
	q := newQueue(t)
	start(t, q)
	id, _ := q.AddJob("", "test-panic", nil, "", nil)
	job := waitForState(t, q, id, jobqueue.StateError)
	assert.True(t, stdoutContains(job, "boom"), "stdout = %v", job.Stdout)
}

func TestCancelStopsRunningTask(t *testing.T) {
	q := newQueue(t)
	r := start(t, q)
	id, _ := q.AddJob("", "test-block", nil, "", nil)
	waitForState(t, q, id, jobqueue.StateInProgress)

	require.NoError(t, q.CancelJob(id))
	assert.Eventually(t, func() bool { return r.Running() == 0 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, jobqueue.StateCancelled, q.GetJob(id).State)
}

func TestHostLimitBoundsRunning(t *testing.T) {
	q := newQueue(t)
	q.SetHostLimit(jobqueue.HostLocal, 2)
	r := start(t, q)

	var ids []string
	for range 3 {
		id, _ := q.AddJob("", "test-block", nil, "", nil)
		ids = append(ids, id)
	}
	waitForState(t, q, ids[1], jobqueue.StateInProgress)
	assert.Equal(t, 2, r.Running())
	assert.Equal(t, jobqueue.StatePending, q.GetJob(ids[2]).State)

	// a freed slot is taken by the waiting job
	require.NoError(t, q.CancelJob(ids[0]))
	waitForState(t, q, ids[2], jobqueue.StateInProgress)
	for _, id := range ids[1:] {
		require.NoError(t, q.CancelJob(id))
	}
}

func TestCancelledTaskKeepsSlotUntilReturn(t *testing.T) {
	fastPoll(t)
	q := newQueue(t)
	r := start(t, q)

	first, _ := q.AddJob("", "test-linger", nil, "", nil)
	second, _ := q.AddJob("", "test-complete", nil, "", nil)
	waitForState(t, q, first, jobqueue.StateInProgress)

	require.NoError(t, q.CancelJob(first))
	time.Sleep(5 * PollInterval)
	assert.Equal(t, jobqueue.StatePending, q.GetJob(second).State, "slot is still held by the cancelled task")
	assert.Equal(t, 1, r.Running())

	close(lingering)
	waitForState(t, q, second, jobqueue.StateCompleted)
	assert.Equal(t, jobqueue.StateCancelled, q.GetJob(first).State)
}

func TestDependantsRunAfterParent(t *testing.T) {
	fastPoll(t)
	q := newQueue(t)
	start(t, q)

	ids, err := q.AddWorkflow(jobqueue.Workflow{Tasks: []jobqueue.WorkflowTask{
		{ID: "parent", Command: "test-complete"},
		{ID: "child", Command: "test-complete", Dependencies: []string{"parent"}},
		{ID: "orphan", Command: "test-complete", Dependencies: []string{"failed"}},
		{ID: "failed", Command: "test-fail"},
	}})
	require.NoError(t, err)
	require.Len(t, ids, 4)

	waitForState(t, q, "child", jobqueue.StateCompleted)
	waitForState(t, q, "failed", jobqueue.StateError)
	time.Sleep(3 * PollInterval)
	assert.Equal(t, jobqueue.StatePending, q.GetJob("orphan").State)
}

func TestShutdown(t *testing.T) {
	r := New(newQueue(t))
	done := make(chan struct{})
	go func() {
		r.Shutdown()
		r.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return")
	}
}
