// Command sarview converts Sentinel-1 SAFE products and SAR rasters to
// georeferenced images, one scene or a whole directory at a time.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/stevecastle/sarview/appconfig"
	"github.com/stevecastle/sarview/batch"
	"github.com/stevecastle/sarview/objstore"
	"github.com/stevecastle/sarview/platform"
	"github.com/stevecastle/sarview/writers"
)

// optionFlags are forwarded to batch.Options.Set when given on the command
// line. Names match the option keys.
var optionFlags = []struct{ name, def, usage string }{
	{"format", "tiff", "output format: tiff|jpeg|png|raw"},
	{"bit-depth", "8", "output bit depth: 8|16"},
	{"autoscale", "clahe", "autoscale strategy: standard|robust|adaptive|equalized|tamed|clahe|default"},
	{"pol", "multiband", "polarization: vv|vh|hh|hv|multiband|sum|diff|ratio|n-diff|log-ratio"},
	{"size", "original", "long side in pixels, or original"},
	{"mode", "default", "synthetic RGB mode for multiband output"},
	{"concurrency", "1", "scenes converted at once in batch mode"},
}

var boolFlags = []struct {
	name  string
	def   bool
	usage string
}{
	{"pad", false, "pad resized output to a square canvas"},
	{"chart", false, "write a histogram chart next to each image"},
	{"sidecar", true, "write a JSON metadata sidecar next to each image"},
	{"continue-on-error", true, "keep converting after a scene fails in batch mode"},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// outputFor resolves -out for a single scene: an existing directory or a path
// ending in a separator receives <scene><ext>, anything else is the file.
func outputFor(out, input string, f writers.Format) string {
	name := batch.SceneName(input)
	if out == "" {
		return batch.OutputPath(filepath.Dir(strings.TrimRight(input, `/\`)), name, f)
	}
	if strings.HasSuffix(out, "/") || strings.HasSuffix(out, string(filepath.Separator)) {
		return batch.OutputPath(out, name, f)
	}
	if st, err := os.Stat(out); err == nil && st.IsDir() {
		return batch.OutputPath(out, name, f)
	}
	return out
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sarview", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "input SAFE product directory or raster file")
	out := fs.String("out", "", "output file or directory (batch mode: directory, default ./out)")
	root := fs.String("batch", "", "convert every SAFE product directly under this directory")
	useConfig := fs.Bool("use-config", false, "start from the processing settings in config.json")
	open := fs.Bool("open", false, "open the result when done")
	publish := fs.Bool("publish", false, "upload written files to the configured S3 bucket")
	for _, f := range optionFlags {
		fs.String(f.name, f.def, f.usage)
	}
	for _, f := range boolFlags {
		fs.Bool(f.name, f.def, f.usage)
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if (*in == "") == (*root == "") {
		fmt.Fprintln(stderr, "usage: sarview -in <product|raster> [-out file] | -batch <dir> [-out dir] [options]")
		fs.PrintDefaults()
		return 2
	}

	opts := batch.DefaultOptions()
	var cfg appconfig.Config
	if *useConfig || *publish {
		c, path, err := appconfig.Load()
		if err != nil {
			fmt.Fprintf(stderr, "config: %v\n", err)
			return 1
		}
		cfg = c
		log.Printf("Using config %s", path)
	}
	if *useConfig {
		o, err := batch.FromConfig(cfg)
		if err != nil {
			fmt.Fprintf(stderr, "config: %v\n", err)
			return 1
		}
		opts = o
	}
	var setErr error
	fs.Visit(func(f *flag.Flag) {
		if setErr != nil {
			return
		}
		switch f.Name {
		case "in", "out", "batch", "use-config", "open", "publish":
			return
		}
		setErr = opts.Set(f.Name, f.Value.String())
	})
	if setErr != nil {
		fmt.Fprintf(stderr, "invalid option: %v\n", setErr)
		return 2
	}

	var files []string
	var opened string
	code := 0
	if *in != "" {
		target := outputFor(*out, *in, opts.Format)
		res, err := batch.ConvertScene(ctx, *in, target, opts)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", *in, err)
			return 1
		}
		fmt.Fprintf(stdout, "%s: %s %dx%d\n", res.Product, res.Label, res.Cols, res.Rows)
		for _, f := range res.Files {
			fmt.Fprintln(stdout, f)
		}
		files = res.Files
		opened = res.Files[0]
	} else {
		dir := *out
		if dir == "" {
			dir = "out"
		}
		rep, err := batch.Run(ctx, *root, dir, opts, func(input string, res *batch.Result, err error) {
			if err == nil {
				fmt.Fprintf(stdout, "%s -> %s\n", res.Product, res.Files[0])
			}
		})
		for _, r := range rep.Results {
			files = append(files, r.Files...)
		}
		for _, e := range rep.Errors {
			fmt.Fprintf(stderr, "error: %v\n", e)
		}
		fmt.Fprintf(stdout, "processed %d, skipped %d, errors %d\n", rep.Processed, rep.Skipped, len(rep.Errors))
		if err != nil {
			fmt.Fprintf(stderr, "batch: %v\n", err)
			return 1
		}
		if len(rep.Errors) > 0 {
			code = 1
		}
		opened = dir
	}

	if *publish && len(files) > 0 {
		p, err := objstore.NewS3Publisher(ctx, cfg.S3)
		if err != nil {
			fmt.Fprintf(stderr, "publish: %v\n", err)
			return 1
		}
		keys, err := p.PublishAll(ctx, files)
		for _, k := range keys {
			fmt.Fprintf(stdout, "s3://%s/%s\n", p.Bucket, k)
		}
		if err != nil {
			fmt.Fprintf(stderr, "publish: %s\n", objstore.Describe(err))
			return 1
		}
	}

	if *open && opened != "" {
		if err := platform.OpenFile(opened); err != nil {
			log.Printf("Could not open %s: %v", opened, err)
		}
	}
	return code
}
