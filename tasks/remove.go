package tasks

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/stevecastle/sarview/catalog"
	"github.com/stevecastle/sarview/jobqueue"
)

// removeTask removes the newline separated products of its input from the
// catalog. With --delete-files the scene's output files are deleted as well.
func removeTask(j *jobqueue.Job, q *jobqueue.Queue, mu *sync.Mutex) error {
	ctx := j.Ctx
	deleteFiles := false
	for _, arg := range j.Arguments {
		if strings.TrimLeft(arg, "-") == "delete-files" {
			deleteFiles = true
		}
	}

	var products []string
	for _, line := range strings.Split(j.Input, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			products = append(products, line)
		}
	}
	if len(products) == 0 {
		return failJob(q, j, "Invalid input", errors.New("no products given"))
	}

	db, err := sceneDB(q)
	if err == nil && db == nil {
		err = errors.New("no database")
	}
	if err != nil {
		return failJob(q, j, "Catalog unavailable", err)
	}

	removed := 0
	for _, product := range products {
		if canceled(q, j) {
			return ctx.Err()
		}
		scene, err := catalog.Get(db, product)
		if err != nil {
			return failJob(q, j, "Lookup failed for "+product, err)
		}
		if scene == nil {
			q.PushJobStdout(j.ID, "Not in catalog: "+product)
			continue
		}
		if deleteFiles {
			for _, f := range scene.Files {
				if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
					q.PushJobStdout(j.ID, fmt.Sprintf("Could not delete %s: %v", f, err))
				}
			}
		}
		if _, err := catalog.Remove(ctx, db, product); err != nil {
			return failJob(q, j, "Remove failed for "+product, err)
		}
		removed++
		q.PushJobStdout(j.ID, "Removed "+product)
	}
	q.PushJobStdout(j.ID, fmt.Sprintf("Removed %d of %d scenes", removed, len(products)))

	q.CompleteJob(j.ID)
	return nil
}
