package tasks

import (
	"errors"
	"fmt"
	"sync"

	"github.com/stevecastle/sarview/catalog"
	"github.com/stevecastle/sarview/jobqueue"
)

func cleanUpFn(j *jobqueue.Job, q *jobqueue.Queue, mu *sync.Mutex) error {
	ctx := j.Ctx
	q.PushJobStdout(j.ID, "Starting catalog cleanup - removing scenes whose output no longer exists")

	db, err := sceneDB(q)
	if err == nil && db == nil {
		err = errors.New("no database")
	}
	if err != nil {
		return failJob(q, j, "Catalog unavailable", err)
	}

	removed, err := catalog.Prune(ctx, db, func(n int) {
		q.PushJobStdout(j.ID, fmt.Sprintf("Progress: removed %d so far", n))
	})
	if canceled(q, j) {
		return ctx.Err()
	}
	if err != nil {
		return failJob(q, j, "Error during cleanup", err)
	}

	if len(removed) == 0 {
		q.PushJobStdout(j.ID, "No orphaned scenes found - catalog is clean!")
	} else {
		q.PushJobStdout(j.ID, fmt.Sprintf("Cleanup completed: removed %d scenes", len(removed)))
		for _, p := range removed {
			q.PushJobStdout(j.ID, "- "+p)
		}
	}

	q.CompleteJob(j.ID)
	return nil
}
