package tasks

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stevecastle/sarview/jobqueue"
)

// waitTick is the wait task's reporting interval.
var waitTick = time.Second

// waitFn sleeps for the number of seconds in its input, five by default. It
// is useful for exercising dependencies and cancellation.
func waitFn(j *jobqueue.Job, q *jobqueue.Queue, _ *sync.Mutex) error {
	seconds, err := strconv.Atoi(strings.TrimSpace(j.Input))
	if err != nil || seconds < 0 {
		seconds = 5
	}
	tick := time.NewTicker(waitTick)
	defer tick.Stop()
	for elapsed := 1; elapsed <= seconds; elapsed++ {
		select {
		case <-j.Ctx.Done():
			canceled(q, j)
			return j.Ctx.Err()
		case <-tick.C:
			q.PushJobStdout(j.ID, fmt.Sprintf("Waited %d/%d seconds", elapsed, seconds))
		}
	}
	return q.CompleteJob(j.ID)
}
