// Package pipeline runs the core stages over one scene: optional channel
// combination, dB conversion, statistics, autoscaling, composition and the
// geometric transform. It performs no I/O.
package pipeline

import (
	"fmt"
	"log"
	"strings"

	"github.com/stevecastle/sarview/autoscale"
	"github.com/stevecastle/sarview/geometry"
	"github.com/stevecastle/sarview/polar"
	"github.com/stevecastle/sarview/radiometry"
	"github.com/stevecastle/sarview/raster"
	"github.com/stevecastle/sarview/stats"
	"github.com/stevecastle/sarview/synrgb"
)

// Options selects how a scene is rendered.
type Options struct {
	Strategy   autoscale.Strategy `json:"strategy"`
	Depth      raster.BitDepth    `json:"depth"`
	TargetSize int                `json:"targetSize,omitempty"`
	Pad        bool               `json:"pad,omitempty"`
	// Op combines the two channels of a pair into one band. Nil renders the
	// pair as a synthetic RGB composite (8-bit) or two bands (16-bit).
	Op            *polar.Op   `json:"op,omitempty"`
	Mode          synrgb.Mode `json:"mode"`
	Polarizations []string    `json:"polarizations,omitempty"`
	// GeoTransform is the source affine transform, if the reader found one.
	GeoTransform *[6]float64 `json:"-"`
}

// DefaultOptions renders 8-bit CLAHE output at the source size without padding.
func DefaultOptions() Options {
	return Options{Strategy: autoscale.CLAHE, Depth: raster.Depth8}
}

func (o Options) pol(i int) string {
	if i < len(o.Polarizations) && o.Polarizations[i] != "" {
		return strings.ToUpper(o.Polarizations[i])
	}
	return [2]string{"VV", "VH"}[i]
}

// Output is everything the writers need for one rendered scene.
type Output struct {
	// Bands holds the single band, or both bands of 16-bit dual-band output.
	Bands []raster.Band
	// Composite is set for 8-bit dual-band output.
	Composite *raster.Composite
	Geometry  geometry.Result
	Snapshots []stats.Snapshot
	// GeoTransform is the source transform adjusted for resampling and padding.
	GeoTransform *[6]float64
	// Label describes the polarization content, e.g. "VV" or "SUM(VV, VH)".
	Label string
}

// Cols returns the output width.
func (o *Output) Cols() int { return o.Geometry.Cols }

// Rows returns the output height.
func (o *Output) Rows() int { return o.Geometry.Rows }

func (o *Output) adjust(opts Options) {
	if opts.GeoTransform != nil {
		gt := geometry.AdjustGeoTransform(*opts.GeoTransform, o.Geometry)
		o.GeoTransform = &gt
	}
}

// ProcessBand renders one channel.
func ProcessBand(grid raster.ComplexGrid, opts Options) (*Output, error) {
	db, mask := radiometry.ToDB(grid)
	snap := stats.Compute(db, mask)
	log.Printf("Statistics: %d valid of %d samples, range [%.2f, %.2f] dB", snap.Count, len(db.Data), snap.Min, snap.Max)

	band := autoscale.Apply(db, mask, snap, opts.Strategy, opts.Depth)
	geo, err := geometry.Transform(geometry.Request{Band1: band, TargetSize: opts.TargetSize, Pad: opts.Pad})
	if err != nil {
		return nil, fmt.Errorf("transform band: %w", err)
	}
	out := &Output{
		Bands:     geo.Bands,
		Geometry:  geo,
		Snapshots: []stats.Snapshot{snap},
		Label:     opts.pol(0),
	}
	out.adjust(opts)
	return out, nil
}

// ProcessPair renders a co-pol and cross-pol channel of the same scene.
func ProcessPair(co, cross raster.ComplexGrid, opts Options) (*Output, error) {
	if !co.SameShape(cross) {
		return nil, fmt.Errorf("pair %dx%d and %dx%d: %w", co.Cols, co.Rows, cross.Cols, cross.Rows, raster.ErrShapeMismatch)
	}
	if opts.Op != nil {
		combined, err := polar.Apply(*opts.Op, co, cross)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", *opts.Op, err)
		}
		out, err := ProcessBand(combined, opts)
		if err != nil {
			return nil, err
		}
		out.Label = opts.Op.Label(opts.pol(0), opts.pol(1))
		return out, nil
	}

	db1, m1 := radiometry.ToDB(co)
	db2, m2 := radiometry.ToDB(cross)
	s1 := stats.Compute(db1, m1)
	s2 := stats.Compute(db2, m2)
	label := fmt.Sprintf("MULTIBAND(%s, %s)", opts.pol(0), opts.pol(1))

	if opts.Depth == raster.Depth16 {
		b1 := autoscale.Apply(db1, m1, s1, opts.Strategy, raster.Depth16)
		b2 := autoscale.Apply(db2, m2, s2, opts.Strategy, raster.Depth16)
		geo, err := geometry.Transform(geometry.Request{Band1: b1, Band2: &b2, Dual: true, TargetSize: opts.TargetSize, Pad: opts.Pad})
		if err != nil {
			return nil, fmt.Errorf("transform bands: %w", err)
		}
		out := &Output{Bands: geo.Bands, Geometry: geo, Snapshots: []stats.Snapshot{s1, s2}, Label: label}
		out.adjust(opts)
		return out, nil
	}

	var b1, b2 raster.Band
	if opts.Strategy == autoscale.Tamed {
		b1 = autoscale.TamedRGB(db1, m1, s1, opts.pol(0))
		b2 = autoscale.TamedRGB(db2, m2, s2, opts.pol(1))
	} else {
		b1 = autoscale.Apply(db1, m1, s1, opts.Strategy, raster.Depth8)
		b2 = autoscale.Apply(db2, m2, s2, opts.Strategy, raster.Depth8)
	}

	var comp raster.Composite
	var err error
	if synrgb.ForStrategy(opts.Strategy) {
		log.Printf("Synthetic RGB: suppressing low backscatter for %s", opts.Strategy)
		comp, err = synrgb.ComposeSuppressed(b1, b2)
	} else {
		comp, err = synrgb.ComposeMode(opts.Mode, b1, b2)
	}
	if err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}
	comp, geo, err := geometry.TransformComposite(comp, opts.TargetSize, opts.Pad)
	if err != nil {
		return nil, fmt.Errorf("transform composite: %w", err)
	}
	out := &Output{Composite: &comp, Geometry: geo, Snapshots: []stats.Snapshot{s1, s2}, Label: label}
	out.adjust(opts)
	return out, nil
}
