package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/stevecastle/sarview/appconfig"
	"github.com/stevecastle/sarview/downloads"
	"github.com/stevecastle/sarview/jobqueue"
)

// fetchTask downloads and unpacks a product archive. With --convert a
// convert job for the product is queued behind it; remaining arguments are
// passed to that job.
func fetchTask(j *jobqueue.Job, q *jobqueue.Queue, mu *sync.Mutex) error {
	ctx := j.Ctx
	url := strings.TrimSpace(j.Input)
	if !isURL(url) {
		return failJob(q, j, "Invalid input", errors.New("expected an http(s) URL"))
	}

	convert := false
	var passthrough []string
	for _, arg := range j.Arguments {
		if strings.TrimLeft(arg, "-") == "convert" {
			convert = true
			continue
		}
		passthrough = append(passthrough, arg)
	}

	q.PushJobStdout(j.ID, "Fetching "+url)
	product, err := downloads.GetManager().Fetch(ctx, j.ID, url, appconfig.Get().WorkPath)
	if canceled(q, j) {
		return ctx.Err()
	}
	if errors.Is(err, context.Canceled) {
		// the fetch alone was cancelled through the API
		q.PushJobStdout(j.ID, "Fetch was canceled")
		_ = q.CancelJob(j.ID)
		return nil
	}
	if err != nil {
		return failJob(q, j, "Fetch failed", err)
	}
	q.PushJobStdout(j.ID, "Product ready: "+product)

	if convert {
		id, err := q.AddJob("", "convert", passthrough, product, []string{j.ID})
		if err != nil {
			return failJob(q, j, "Cannot queue conversion", err)
		}
		q.PushJobStdout(j.ID, fmt.Sprintf("Queued convert job %s", id))
	}

	q.CompleteJob(j.ID)
	return nil
}
