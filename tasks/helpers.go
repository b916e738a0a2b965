package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stevecastle/sarview/batch"
	"github.com/stevecastle/sarview/catalog"
	"github.com/stevecastle/sarview/downloads"
	"github.com/stevecastle/sarview/jobqueue"
	"github.com/stevecastle/sarview/safe"
)

// failJob reports err on the job's stdout and moves it to the error state.
func failJob(q *jobqueue.Queue, j *jobqueue.Job, msg string, err error) error {
	q.PushJobStdout(j.ID, fmt.Sprintf("%s: %v", msg, err))
	_ = q.ErrorJob(j.ID)
	return err
}

// canceled settles a job whose context is done and reports whether it was.
func canceled(q *jobqueue.Queue, j *jobqueue.Job) bool {
	select {
	case <-j.Ctx.Done():
		q.PushJobStdout(j.ID, "Task was canceled")
		_ = q.CancelJob(j.ID)
		return true
	default:
		return false
	}
}

// jobArgs are the arguments every conversion task understands in addition to
// the rendering options.
type jobArgs struct {
	out     string
	publish bool
	rest    []string
}

func splitJobArgs(args []string, defaultOut string) jobArgs {
	a := jobArgs{out: defaultOut}
	for _, arg := range args {
		key, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		switch key {
		case "out", "o":
			a.out = value
		case "publish":
			a.publish = !hasValue || value == "true" || value == "1"
		default:
			a.rest = append(a.rest, arg)
		}
	}
	return a
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// resolveInput maps a convert job's input to a local path. URL inputs, and
// empty inputs following a fetch, resolve to the fetched product directory.
func resolveInput(j *jobqueue.Job, workDir string) (string, error) {
	input := strings.TrimSpace(j.Input)
	if input != "" && !isURL(input) {
		return input, nil
	}
	for _, dep := range j.Dependencies {
		if p, ok := downloads.GetManager().Get(dep); ok && p.Product != "" {
			if input == "" || p.URL == input {
				return p.Product, nil
			}
		}
	}
	if input == "" {
		return "", errors.New("no input")
	}
	found, err := safe.Find(downloads.ProductDir(workDir, input))
	if err != nil || len(found) == 0 {
		return "", fmt.Errorf("%s has not been fetched", input)
	}
	return found[0], nil
}

// sceneDB returns the queue database with the scenes table in place, or nil
// when the queue runs without one.
func sceneDB(q *jobqueue.Queue) (*sql.DB, error) {
	if q.Db == nil {
		return nil, nil
	}
	if err := catalog.EnsureSchema(q.Db); err != nil {
		return nil, err
	}
	return q.Db, nil
}

func recordScene(ctx context.Context, db *sql.DB, res *batch.Result, opts batch.Options) error {
	if db == nil || res == nil || len(res.Files) == 0 {
		return nil
	}
	return catalog.Record(ctx, db, catalog.Scene{
		Product:          res.Product,
		Source:           res.Input,
		Output:           res.Files[0],
		Files:            res.Files,
		Label:            res.Label,
		Platform:         res.Fields["PLATFORM"],
		AcquisitionStart: res.Fields["ACQUISITION_START"],
		Strategy:         opts.Pipeline.Strategy.String(),
		Format:           opts.Format.String(),
		Cols:             res.Cols,
		Rows:             res.Rows,
		ConvertedAt:      time.Now().UTC(),
	})
}

// queuePublish adds a publish job for files that runs after the job id.
func queuePublish(q *jobqueue.Queue, id string, files []string) (string, error) {
	return q.AddJob("", "publish", nil, strings.Join(files, "\n"), []string{id})
}
