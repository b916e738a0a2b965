package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/stevecastle/sarview/appconfig"
	"github.com/stevecastle/sarview/jobqueue"
	"github.com/stevecastle/sarview/objstore"
)

type publisher interface {
	PublishAll(ctx context.Context, files []string) ([]string, error)
}

// newPublisher is replaced in tests.
var newPublisher = func(ctx context.Context) (publisher, error) {
	p, err := objstore.NewS3Publisher(ctx, appconfig.Get().S3)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// publishTask uploads the newline separated files of its input.
func publishTask(j *jobqueue.Job, q *jobqueue.Queue, mu *sync.Mutex) error {
	ctx := j.Ctx
	var files []string
	for _, line := range strings.Split(j.Input, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	if len(files) == 0 {
		return failJob(q, j, "Invalid input", errors.New("no files to publish"))
	}

	p, err := newPublisher(ctx)
	if err != nil {
		return failJob(q, j, "Cannot publish", err)
	}
	q.PushJobStdout(j.ID, fmt.Sprintf("Publishing %d files", len(files)))
	keys, err := p.PublishAll(ctx, files)
	for i, k := range keys {
		q.PushJobStdout(j.ID, fmt.Sprintf("Uploaded %s -> %s", files[i], k))
	}
	if canceled(q, j) {
		return ctx.Err()
	}
	if err != nil {
		q.PushJobStdout(j.ID, "Upload failed: "+objstore.Describe(err))
		_ = q.ErrorJob(j.ID)
		return err
	}

	q.CompleteJob(j.ID)
	return nil
}
