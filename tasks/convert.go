package tasks

import (
	"fmt"
	"os"
	"sync"

	"github.com/stevecastle/sarview/appconfig"
	"github.com/stevecastle/sarview/batch"
	"github.com/stevecastle/sarview/jobqueue"
)

// conversionOptions builds the options for a job from the current
// configuration and the job's --key=value arguments.
func conversionOptions(args []string) (batch.Options, jobArgs, error) {
	cfg := appconfig.Get()
	a := splitJobArgs(args, cfg.OutputPath)
	opts, err := batch.FromConfig(cfg)
	if err != nil {
		return opts, a, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := opts.ApplyArgs(a.rest); err != nil {
		return opts, a, err
	}
	return opts, a, nil
}

// convertTask renders one SAFE product or raster into the output directory
// and records it in the scenes catalog.
func convertTask(j *jobqueue.Job, q *jobqueue.Queue, mu *sync.Mutex) error {
	ctx := j.Ctx
	opts, args, err := conversionOptions(j.Arguments)
	if err != nil {
		return failJob(q, j, "Invalid arguments", err)
	}
	input, err := resolveInput(j, appconfig.Get().WorkPath)
	if err != nil {
		return failJob(q, j, "Cannot resolve input", err)
	}
	if err := os.MkdirAll(args.out, 0755); err != nil {
		return failJob(q, j, "Cannot create output directory", err)
	}

	out := batch.OutputPath(args.out, batch.SceneName(input), opts.Format)
	q.PushJobStdout(j.ID, fmt.Sprintf("Converting %s (%s, %s, %s)", input, opts.Selection, opts.Pipeline.Strategy, opts.Format))
	res, err := batch.ConvertScene(ctx, input, out, opts)
	if canceled(q, j) {
		return ctx.Err()
	}
	if err != nil {
		return failJob(q, j, "Conversion failed", err)
	}
	q.PushJobStdout(j.ID, fmt.Sprintf("%s: %s, %dx%d", res.Product, res.Label, res.Cols, res.Rows))
	for _, f := range res.Files {
		q.PushJobStdout(j.ID, "Wrote "+f)
	}

	db, err := sceneDB(q)
	if err == nil {
		err = recordScene(ctx, db, res, opts)
	}
	if err != nil {
		q.PushJobStdout(j.ID, fmt.Sprintf("Warning: scene not catalogued: %v", err))
	}

	if args.publish {
		id, err := queuePublish(q, j.ID, res.Files)
		if err != nil {
			return failJob(q, j, "Cannot queue publish", err)
		}
		q.PushJobStdout(j.ID, "Queued publish job "+id)
	}

	q.CompleteJob(j.ID)
	return nil
}
