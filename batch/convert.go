package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stevecastle/sarview/autoscale"
	"github.com/stevecastle/sarview/gdalio"
	"github.com/stevecastle/sarview/pipeline"
	"github.com/stevecastle/sarview/raster"
	"github.com/stevecastle/sarview/report"
	"github.com/stevecastle/sarview/safe"
	"github.com/stevecastle/sarview/writers"
)

// Result describes one converted scene.
type Result struct {
	Product string
	Input   string
	// Files lists every file written, image first.
	Files  []string
	Label  string
	Cols   int
	Rows   int
	Fields map[string]string
}

// OutputPath returns the image path for a scene named name in dir.
func OutputPath(dir, name string, f writers.Format) string {
	return filepath.Join(dir, name+f.Ext())
}

// SceneName returns the output base name for an input product or raster.
func SceneName(input string) string {
	base := filepath.Base(strings.TrimRight(input, `/\`))
	if safe.IsProduct(input) {
		return strings.TrimSuffix(strings.TrimSuffix(base, ".SAFE"), ".safe")
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// scene is a decoded input ready for the pipeline.
type scene struct {
	name       string
	channels   []string
	grids      []raster.ComplexGrid
	gt         *[6]float64
	projection string
	fields     func(label string) map[string]string
}

func openProduct(dir string, sel pipeline.Selection) (*scene, error) {
	p, err := safe.Open(dir)
	if err != nil {
		return nil, err
	}
	channels, err := sel.Resolve(p.Available())
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", p.Name(), err, safe.ErrMissingPolarization)
	}
	s := &scene{name: p.Name(), channels: channels}
	for _, ch := range channels {
		g, err := p.Channel(ch)
		if err != nil {
			return nil, err
		}
		s.grids = append(s.grids, g)
	}
	if gt, projection, ok := p.GeoTransform(); ok {
		s.gt = &gt
		s.projection = projection
	}
	s.fields = func(label string) map[string]string {
		return p.Meta.Fields(label, time.Now())
	}
	return s, nil
}

// openRaster reads the first band of a plain raster file. GDAL is used when
// compiled in, otherwise the file must be a TIFF the pure-Go decoder reads.
func openRaster(path string) (*scene, error) {
	s := &scene{name: SceneName(path), channels: []string{"BAND1"}}
	if gdalio.Available() {
		cols, rows, data, gt, projection, err := gdalio.ReadBand(path)
		if err != nil {
			return nil, err
		}
		g, err := raster.ComplexFromReal(rows, cols, data)
		if err != nil {
			return nil, err
		}
		s.grids = []raster.ComplexGrid{g}
		s.gt, s.projection = gt, projection
	} else {
		g, err := safe.ReadMeasurement(path)
		if err != nil {
			return nil, err
		}
		s.grids = []raster.ComplexGrid{g}
	}
	s.fields = func(label string) map[string]string {
		f := safe.Metadata{}.Fields(label, time.Now())
		for k, v := range f {
			if v == "" || v == "0" {
				delete(f, k)
			}
		}
		return f
	}
	return s, nil
}

// ConvertScene converts the SAFE product directory or raster file at input
// and writes the image to out together with its georeferencing, sidecar and
// chart files.
func ConvertScene(ctx context.Context, input, out string, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var s *scene
	var err error
	if st, statErr := os.Stat(input); statErr != nil {
		return nil, statErr
	} else if st.IsDir() {
		s, err = openProduct(input, opts.Selection)
	} else {
		s, err = openRaster(input)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	popts := opts.Pipeline
	popts.GeoTransform = s.gt
	popts.Polarizations = s.channels
	popts.Op = opts.Selection.Op

	var rendered *pipeline.Output
	if len(s.grids) == 2 {
		rendered, err = pipeline.ProcessPair(s.grids[0], s.grids[1], popts)
	} else {
		rendered, err = pipeline.ProcessBand(s.grids[0], popts)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	fields := s.fields(rendered.Label)
	files, err := writeOutput(out, rendered, s.channels, opts, fields, s.projection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	log.Printf("Converted %s -> %s (%s, %dx%d)", s.name, out, rendered.Label, rendered.Cols(), rendered.Rows())
	return &Result{
		Product: s.name,
		Input:   input,
		Files:   files,
		Label:   rendered.Label,
		Cols:    rendered.Cols(),
		Rows:    rendered.Rows(),
		Fields:  fields,
	}, nil
}

// gdalImage splits the rendered output into the planar bands GDAL writes.
func gdalImage(o *pipeline.Output) gdalio.Image {
	img := gdalio.Image{Cols: o.Cols(), Rows: o.Rows()}
	if o.Composite != nil {
		n := o.Composite.Rows * o.Composite.Cols
		for c := 0; c < 3; c++ {
			plane := make([]uint8, n)
			for i := range plane {
				plane[i] = o.Composite.Data[i*3+c]
			}
			img.Bands8 = append(img.Bands8, plane)
		}
		return img
	}
	for _, b := range o.Bands {
		if b.Depth == raster.Depth16 {
			img.Bands16 = append(img.Bands16, b.Data)
		} else {
			img.Bands8 = append(img.Bands8, b.Bytes())
		}
	}
	return img
}

// bandPath names the file of one band when bands are written separately.
func bandPath(path, pol string) string {
	ext := filepath.Ext(path)
	if strings.HasSuffix(path, ".sarg.zst") {
		ext = ".sarg.zst"
	}
	return strings.TrimSuffix(path, ext) + "_" + pol + ext
}

func writeImages(path string, o *pipeline.Output, channels []string, f writers.Format) ([]string, error) {
	switch {
	case o.Composite != nil:
		return []string{path}, writers.WriteComposite(path, *o.Composite, f)
	case len(o.Bands) == 1:
		return []string{path}, writers.WriteBand(path, o.Bands[0], f)
	case f == writers.Raw:
		return []string{path}, writers.WriteRawFile(path, writers.RawFromBands(o.Bands...))
	}
	var files []string
	for i, b := range o.Bands {
		name := fmt.Sprintf("B%d", i+1)
		if i < len(channels) {
			name = channels[i]
		}
		p := bandPath(path, name)
		if err := writers.WriteBand(p, b, f); err != nil {
			return files, err
		}
		files = append(files, p)
	}
	return files, nil
}

func writeOutput(path string, o *pipeline.Output, channels []string, opts Options, fields map[string]string, projection string) ([]string, error) {
	var files []string
	embedded := false
	if opts.Format == writers.TIFF && gdalio.Available() {
		if err := gdalio.WriteGeoTIFF(path, gdalImage(o), o.GeoTransform, projection, fields); err != nil {
			return nil, err
		}
		files = []string{path}
		embedded = true
	} else {
		images, err := writeImages(path, o, channels, opts.Format)
		if err != nil {
			return nil, err
		}
		files = images
	}

	if !embedded && opts.Format != writers.Raw && o.GeoTransform != nil {
		for _, img := range append([]string(nil), files...) {
			wf, err := writers.WriteWorldFile(img, *o.GeoTransform)
			if err != nil {
				return files, err
			}
			files = append(files, wf)
			prj, err := writers.WritePRJ(img, projection)
			if err != nil {
				return files, err
			}
			if prj != "" {
				files = append(files, prj)
			}
		}
	}

	if opts.Sidecar {
		sc, err := writers.WriteSidecar(path, fields, o.GeoTransform, projection)
		if err != nil {
			return files, err
		}
		files = append(files, sc)
	}

	if opts.Chart {
		chart := report.ChartPath(path)
		var series []report.Series
		for i, snap := range o.Snapshots {
			name := fmt.Sprintf("B%d", i+1)
			if i < len(channels) {
				name = channels[i]
			}
			series = append(series, report.Series{Name: name, Snapshot: snap, Params: autoscale.Select(snap, opts.Pipeline.Strategy)})
		}
		err := report.HistogramChart(chart, fmt.Sprintf("%s (%s)", filepath.Base(path), o.Label), series...)
		switch {
		case errors.Is(err, report.ErrNoHistogram):
			log.Printf("No chart for %s: %v", path, err)
		case err != nil:
			return files, err
		default:
			files = append(files, chart)
		}
	}
	return files, nil
}
