package batch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stevecastle/sarview/appconfig"
	"github.com/stevecastle/sarview/autoscale"
	"github.com/stevecastle/sarview/pipeline"
	"github.com/stevecastle/sarview/raster"
	"github.com/stevecastle/sarview/synrgb"
	"github.com/stevecastle/sarview/writers"
)

// Options controls how scenes are converted and written.
type Options struct {
	Pipeline  pipeline.Options
	Selection pipeline.Selection
	Format    writers.Format
	// Chart writes a histogram chart next to each image.
	Chart bool
	// Sidecar writes a JSON metadata file next to each image.
	Sidecar bool

	Concurrency     int
	ContinueOnError bool
}

// DefaultOptions converts the VV/VH pair to an 8-bit CLAHE GeoTIFF with a
// metadata sidecar, one scene at a time.
func DefaultOptions() Options {
	return Options{
		Pipeline:        pipeline.DefaultOptions(),
		Selection:       pipeline.Selection{Pair: true},
		Format:          writers.TIFF,
		Sidecar:         true,
		Concurrency:     1,
		ContinueOnError: true,
	}
}

// FromConfig builds options from the configured processing and batch settings.
func FromConfig(c appconfig.Config) (Options, error) {
	o := DefaultOptions()
	p := c.Processing
	for _, kv := range [][2]string{
		{"format", p.Format},
		{"bit-depth", p.BitDepth},
		{"autoscale", p.Strategy},
		{"size", p.Size},
		{"mode", p.Mode},
		{"pol", p.Polarization},
	} {
		if kv[1] == "" {
			continue
		}
		if err := o.Set(kv[0], kv[1]); err != nil {
			return Options{}, err
		}
	}
	o.Pipeline.Pad = p.Pad
	o.Chart = p.ReportChart
	o.Sidecar = p.Sidecar
	if c.Batch.Concurrency > 0 {
		o.Concurrency = c.Batch.Concurrency
	}
	o.ContinueOnError = c.Batch.ContinueOnError
	return o, nil
}

func parseBool(key, value string) (bool, error) {
	if value == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, value)
	}
	return b, nil
}

// Set applies one named option. Names match the command line flags.
func (o *Options) Set(key, value string) error {
	var err error
	switch strings.ToLower(key) {
	case "format", "f":
		o.Format, err = writers.ParseFormat(value)
	case "bit-depth", "bitdepth", "depth":
		o.Pipeline.Depth, err = raster.ParseBitDepth(value)
	case "autoscale", "strategy":
		o.Pipeline.Strategy, err = autoscale.ParseStrategy(value)
	case "size":
		o.Pipeline.TargetSize, err = appconfig.ParseSize(value)
	case "pad":
		o.Pipeline.Pad, err = parseBool(key, value)
	case "mode":
		o.Pipeline.Mode, err = synrgb.ParseMode(value)
	case "pol", "polarization":
		o.Selection, err = pipeline.ParsePolarization(value)
	case "chart":
		o.Chart, err = parseBool(key, value)
	case "sidecar":
		o.Sidecar, err = parseBool(key, value)
	case "concurrency":
		o.Concurrency, err = strconv.Atoi(value)
		if err == nil && o.Concurrency <= 0 {
			err = fmt.Errorf("concurrency must be positive, got %d", o.Concurrency)
		}
	case "continue-on-error":
		o.ContinueOnError, err = parseBool(key, value)
	default:
		return fmt.Errorf("unknown option %q", key)
	}
	return err
}

// ApplyArgs applies job arguments of the form --key=value. A bare --key sets
// a boolean option.
func (o *Options) ApplyArgs(args []string) error {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			return fmt.Errorf("unexpected argument %q", arg)
		}
		key, value, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if err := o.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}
