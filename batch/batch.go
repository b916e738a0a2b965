// Package batch converts SAR scenes to images: one scene at a time for the
// command line and job tasks, or every product in a directory with bounded
// concurrency.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/stevecastle/sarview/safe"
	"golang.org/x/sync/errgroup"
)

// SceneError records a scene that failed to convert.
type SceneError struct {
	Input string `json:"input"`
	Err   error  `json:"-"`
}

func (e SceneError) Error() string { return fmt.Sprintf("%s: %v", e.Input, e.Err) }

func (e SceneError) Unwrap() error { return e.Err }

// Report summarises a directory run.
type Report struct {
	Processed int          `json:"processed"`
	Skipped   int          `json:"skipped"`
	Errors    []SceneError `json:"errors"`
	Results   []*Result    `json:"-"`
}

// Skippable reports whether err means the input is not a scene the options
// can convert, as opposed to a failed conversion.
func Skippable(err error) bool {
	return errors.Is(err, safe.ErrNotProduct) ||
		errors.Is(err, safe.ErrUnsupportedProduct) ||
		errors.Is(err, safe.ErrMissingPolarization)
}

// Run converts every SAFE product directly under root into outDir, naming
// each image after its product. Entries that are not directories, and
// products that are unsupported or lack the selected polarizations, are
// skipped. With ContinueOnError unset the first failure cancels the run and
// is returned alongside the partial report. progress, when not nil, is called
// after each scene.
func Run(ctx context.Context, root, outDir string, opts Options, progress func(input string, res *Result, err error)) (Report, error) {
	var rep Report
	entries, err := os.ReadDir(root)
	if err != nil {
		return rep, err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return rep, err
	}

	var inputs []string
	for _, e := range entries {
		path := filepath.Join(root, e.Name())
		if !e.IsDir() {
			log.Printf("Skipping non-directory: %s", path)
			rep.Skipped++
			continue
		}
		inputs = append(inputs, path)
	}
	sort.Strings(inputs)
	log.Printf("Batch: %d candidate products in %s -> %s", len(inputs), root, outDir)

	limit := opts.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	for _, input := range inputs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out := OutputPath(outDir, SceneName(input), opts.Format)
			res, err := ConvertScene(gctx, input, out, opts)
			if progress != nil {
				progress(input, res, err)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				rep.Processed++
				rep.Results = append(rep.Results, res)
				return nil
			case Skippable(err):
				log.Printf("Skipping %s: %v", input, err)
				rep.Skipped++
				return nil
			case errors.Is(err, context.Canceled) && gctx.Err() != nil && ctx.Err() == nil:
				// another scene failed first
				return nil
			}
			log.Printf("Error processing %s: %v", input, err)
			rep.Errors = append(rep.Errors, SceneError{Input: input, Err: err})
			if !opts.ContinueOnError {
				return SceneError{Input: input, Err: err}
			}
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	sort.Slice(rep.Results, func(i, j int) bool { return rep.Results[i].Input < rep.Results[j].Input })
	log.Printf("Batch complete: processed %d, skipped %d, errors %d", rep.Processed, rep.Skipped, len(rep.Errors))
	return rep, err
}
