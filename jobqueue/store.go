package jobqueue

import (
	"encoding/json"
	"log"
	"time"
)

const jobsSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	command TEXT NOT NULL,
	arguments TEXT, -- JSON array
	input TEXT,
	original_input TEXT,
	host TEXT,
	stdout TEXT, -- JSON array
	dependencies TEXT, -- JSON array
	state INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	claimed_at DATETIME,
	completed_at DATETIME,
	errored_at DATETIME,
	job_order_position INTEGER
)`

const jobColumns = `id, command, arguments, input, original_input, host, stdout, dependencies, state,
	created_at, claimed_at, completed_at, errored_at, job_order_position`

func (q *Queue) ensureSchema() error {
	_, err := q.Db.Exec(jobsSchema)
	return err
}

func encodeList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeList(s string) []string {
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return []string{}
	}
	return v
}

func (q *Queue) positionLocked(id string) int {
	for i, jobID := range q.JobOrder {
		if jobID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes job to the database, logging failures. what names the
// change for the log line.
func (q *Queue) persistLocked(job *Job, what string) {
	if q.Db == nil {
		return
	}
	_, err := q.Db.Exec(`INSERT OR REPLACE INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Command, encodeList(job.Arguments), job.Input, job.OriginalInput,
		job.Host, encodeList(job.Stdout), encodeList(job.Dependencies), int(job.State),
		job.CreatedAt, job.ClaimedAt, job.CompletedAt, job.ErroredAt, q.positionLocked(job.ID))
	if err != nil {
		log.Printf("Failed to save %s of job %s: %v", what, job.ID, err)
	}
}

func (q *Queue) deleteStoredLocked(id string) {
	if q.Db == nil {
		return
	}
	if _, err := q.Db.Exec("DELETE FROM jobs WHERE id = ?", id); err != nil {
		log.Printf("Failed to remove job %s from database: %v", id, err)
	}
}

// load restores saved jobs in submission order. Jobs that were running when
// the process stopped go back to pending and run again from the start.
func (q *Queue) load() error {
	rows, err := q.Db.Query(`SELECT id, command, COALESCE(arguments, '[]'), COALESCE(input, ''),
		COALESCE(original_input, ''), COALESCE(host, ''), COALESCE(stdout, '[]'),
		COALESCE(dependencies, '[]'), state, created_at, claimed_at, completed_at, errored_at
		FROM jobs ORDER BY job_order_position`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var resumed []string
	for rows.Next() {
		var (
			job                    Job
			args, stdout, deps     string
			state                  int
			claimed, done, errored sqlTime
		)
		if err := rows.Scan(&job.ID, &job.Command, &args, &job.Input, &job.OriginalInput,
			&job.Host, &stdout, &deps, &state, &job.CreatedAt, &claimed, &done, &errored); err != nil {
			log.Printf("Error scanning job row: %v", err)
			continue
		}
		job.Arguments, job.Stdout, job.Dependencies = decodeList(args), decodeList(stdout), decodeList(deps)
		job.ClaimedAt, job.CompletedAt, job.ErroredAt = claimed.Time, done.Time, errored.Time
		job.State = JobState(state)
		if job.OriginalInput == "" {
			job.OriginalInput = job.Input
		}
		if job.Host == "" {
			job.Host = hostFor(job.Command, job.Input)
		}
		if job.State == StateInProgress {
			job.State = StatePending
			job.ClaimedAt = time.Time{}
			resumed = append(resumed, job.ID)
		}
		job.arm()
		q.Jobs[job.ID] = &job
		q.JobOrder = append(q.JobOrder, job.ID)
	}

	if len(resumed) > 0 {
		log.Printf("Resumed %d jobs that were in progress: %v", len(resumed), resumed)
		for _, id := range resumed {
			q.signal(id)
		}
	}
	return rows.Err()
}

// sqlTime scans a nullable DATETIME column.
type sqlTime struct{ time.Time }

func (t *sqlTime) Scan(v any) error {
	t.Time, _ = v.(time.Time)
	return nil
}

// SaveAllJobsToDB writes every job, for use at shutdown.
func (q *Queue) SaveAllJobsToDB() error {
	if q.Db == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range q.JobOrder {
		q.persistLocked(q.Jobs[id], "state")
	}
	return nil
}
