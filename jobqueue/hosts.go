package jobqueue

import (
	"net/url"
	"strings"
)

// Hosts shared by every job of a kind.
const (
	HostLocal = "localhost"
	HostS3    = "s3"
)

// DefaultHostLimit applies to hosts without a SetHostLimit entry.
const DefaultHostLimit = 1

// hostFor names the resource a job contends for. Fetches are limited per
// remote host, publishes share the object store, everything else runs
// locally.
func hostFor(command, input string) string {
	switch command {
	case "fetch":
		u, err := url.Parse(input)
		if err == nil && u.Host != "" {
			return strings.TrimPrefix(u.Hostname(), "www.")
		}
	case "publish":
		return HostS3
	}
	return HostLocal
}

// SetHostLimit sets how many jobs for host may run at once.
func (q *Queue) SetHostLimit(host string, limit int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.HostLimits[host] = limit
}

func (q *Queue) hasSlotLocked(host string) bool {
	limit, ok := q.HostLimits[host]
	if !ok {
		limit = DefaultHostLimit
	}
	return q.RunningCounts[host] < limit
}

// Release frees the host slot of a job returned by ClaimJob once its task
// has returned. Jobs settled by CompleteJob or ErrorJob have already given
// their slot back; a cancelled or removed job holds it until then.
func (q *Queue) Release(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.freeSlotLocked(job) {
		q.signal(job.ID)
	}
}

func (q *Queue) freeSlotLocked(job *Job) bool {
	if !job.holdsSlot {
		return false
	}
	job.holdsSlot = false
	q.releaseLocked(job.Host)
	return true
}

func (q *Queue) releaseLocked(host string) {
	if q.RunningCounts[host] > 0 {
		q.RunningCounts[host]--
	}
}
