package tasks

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/stevecastle/sarview/batch"
	"github.com/stevecastle/sarview/jobqueue"
)

// batchTask converts every product directly under the input directory.
func batchTask(j *jobqueue.Job, q *jobqueue.Queue, mu *sync.Mutex) error {
	ctx := j.Ctx
	root := strings.TrimSpace(j.Input)
	if root == "" {
		return failJob(q, j, "Invalid input", errors.New("no directory given"))
	}
	opts, args, err := conversionOptions(j.Arguments)
	if err != nil {
		return failJob(q, j, "Invalid arguments", err)
	}
	db, dbErr := sceneDB(q)
	if dbErr != nil {
		q.PushJobStdout(j.ID, fmt.Sprintf("Warning: scenes will not be catalogued: %v", dbErr))
	}

	q.PushJobStdout(j.ID, fmt.Sprintf("Converting products in %s to %s (%s, %s)", root, args.out, opts.Selection, opts.Format))
	var (
		pmu   sync.Mutex
		done  int
		files []string
	)
	progress := func(input string, res *batch.Result, err error) {
		pmu.Lock()
		defer pmu.Unlock()
		done++
		switch {
		case err == nil:
			q.PushJobStdout(j.ID, fmt.Sprintf("[%d] %s -> %s", done, res.Product, res.Files[0]))
			files = append(files, res.Files...)
			if db != nil {
				if err := recordScene(ctx, db, res, opts); err != nil {
					q.PushJobStdout(j.ID, fmt.Sprintf("Warning: %s not catalogued: %v", res.Product, err))
				}
			}
		case batch.Skippable(err):
			q.PushJobStdout(j.ID, fmt.Sprintf("[%d] Skipped %s: %v", done, input, err))
		default:
			q.PushJobStdout(j.ID, fmt.Sprintf("[%d] Error %s: %v", done, input, err))
		}
	}

	rep, err := batch.Run(ctx, root, args.out, opts, progress)
	if canceled(q, j) {
		return ctx.Err()
	}
	q.PushJobStdout(j.ID, fmt.Sprintf("Processed %d, skipped %d, errors %d", rep.Processed, rep.Skipped, len(rep.Errors)))
	if err != nil {
		return failJob(q, j, "Batch stopped", err)
	}

	if args.publish && len(files) > 0 {
		id, err := queuePublish(q, j.ID, files)
		if err != nil {
			return failJob(q, j, "Cannot queue publish", err)
		}
		q.PushJobStdout(j.ID, "Queued publish job "+id)
	}

	q.CompleteJob(j.ID)
	return nil
}
