package jobqueue

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func setupTestQueue(t *testing.T) *Queue {
	return NewQueueWithDB(openDB(t))
}

func mustAdd(t *testing.T, q *Queue, id, command, input string, deps ...string) string {
	t.Helper()
	id, err := q.AddJob(id, command, nil, input, deps)
	if err != nil {
		t.Fatalf("AddJob(%q) error = %v", command, err)
	}
	return id
}

// claimID claims the next job and returns its ID, or "" when none is ready.
func claimID(t *testing.T, q *Queue) string {
	t.Helper()
	j, err := q.ClaimJob()
	if err != nil {
		t.Fatalf("ClaimJob() error = %v", err)
	}
	if j == nil {
		return ""
	}
	return j.ID
}
