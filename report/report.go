// Package report draws diagnostic charts for rendered scenes.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/stevecastle/sarview/autoscale"
	"github.com/stevecastle/sarview/stats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ChartBins is the number of bars drawn per histogram.
const ChartBins = 128

// ErrNoHistogram is returned for snapshots of empty or flat grids.
var ErrNoHistogram = errors.New("snapshot has no histogram")

var (
	lowColor  = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	highColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
)

// ChartPath returns the chart file name for the image at path.
func ChartPath(image string) string {
	return strings.TrimSuffix(image, filepath.Ext(image)) + "_hist.png"
}

// Series is one channel drawn on a chart.
type Series struct {
	Name     string
	Snapshot stats.Snapshot
	Params   autoscale.Params
}

// HistogramChart plots the dB distribution of every series with vertical
// lines at its clip window and saves the chart to path. The image format
// follows the path extension.
func HistogramChart(path, title string, series ...Series) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Backscatter (dB)"
	p.Y.Label.Text = "Samples"
	p.Legend.Top = true

	drawn := 0
	for _, s := range series {
		h := s.Snapshot.Histogram
		if h == nil {
			continue
		}
		xys := make(plotter.XYs, len(h.Bins))
		w := h.Width()
		for i, c := range h.Bins {
			xys[i] = plotter.XY{X: h.Min + (float64(i)+0.5)*w, Y: float64(c)}
		}
		hist, err := plotter.NewHistogram(xys, ChartBins)
		if err != nil {
			return fmt.Errorf("histogram %s: %w", s.Name, err)
		}
		hist.FillColor = color.Gray{Y: uint8(0x80 + 0x30*drawn)}
		p.Add(hist)
		p.Legend.Add(s.Name, hist)

		var top float64
		for _, b := range hist.Bins {
			top = max(top, b.Weight)
		}
		for _, bound := range []struct {
			x   float64
			c   color.Color
			tag string
		}{
			{s.Params.Low, lowColor, "low"},
			{s.Params.High, highColor, "high"},
		} {
			l, err := plotter.NewLine(plotter.XYs{{X: bound.x, Y: 0}, {X: bound.x, Y: top}})
			if err != nil {
				return err
			}
			l.Color = bound.c
			l.Width = vg.Points(1.5)
			l.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			p.Add(l)
			p.Legend.Add(fmt.Sprintf("%s %s %.1f dB", s.Name, bound.tag, bound.x), l)
		}
		drawn++
	}
	if drawn == 0 {
		return ErrNoHistogram
	}
	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save chart: %w", err)
	}
	return nil
}
