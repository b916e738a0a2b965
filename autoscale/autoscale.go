// Package autoscale maps dB grids onto 8- or 16-bit display values.
//
// Every strategy reduces to a Params tuple picked from the distribution
// snapshot, followed by the same clip/gamma quantization. CLAHE is the
// exception: it normalizes with the Equalized window and then equalizes
// tile histograms instead of applying a gamma curve.
package autoscale

import (
	"log"
	"math"

	"github.com/stevecastle/sarview/raster"
	"github.com/stevecastle/sarview/stats"
)

// Params is the clip window and gamma chosen for a grid.
type Params struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Gamma float64 `json:"gamma"`
	// LocalEnhancement enables the 3x3 local contrast adjustment. No strategy sets it.
	LocalEnhancement bool `json:"localEnhancement"`
}

// Select derives the clip window and gamma for strategy from s.
func Select(s stats.Snapshot, strategy Strategy) Params {
	rng := s.Range()
	iqr := s.IQR()

	switch strategy {
	case Standard:
		switch {
		case rng < 15:
			w := math.Max(20, 0.8*rng)
			return Params{Low: s.Median - w/2, High: s.Median + w/2, Gamma: 1.1}
		case iqr < 5:
			return Params{Low: s.P25 - 2.5*iqr, High: s.P75 + 2.5*iqr, Gamma: 1.0}
		case rng > 40:
			return Params{
				Low:   math.Max(s.P02, s.Min+0.02*rng),
				High:  math.Min(s.P98, s.Max-0.02*rng),
				Gamma: 0.9,
			}
		default:
			return Params{Low: s.P02, High: s.P98, Gamma: 1.0}
		}
	case Robust:
		return Params{
			Low:   math.Max(math.Max(s.P25-2.5*iqr, s.P01), s.Min),
			High:  math.Min(math.Min(s.P75+2.5*iqr, s.P99), s.Max),
			Gamma: 1.0,
		}
	case Adaptive:
		skew := (s.Mean - s.Median) / math.Max(math.Abs(s.Std), 1)
		tail := (s.P99 - s.P95) / math.Max(s.P95-s.P75, 1)
		switch {
		case math.Abs(skew) > 0.5 && skew > 0:
			return Params{Low: s.P02, High: s.P98, Gamma: 0.9}
		case math.Abs(skew) > 0.5:
			return Params{Low: s.P05, High: s.P95, Gamma: 1.1}
		case tail > 2.0:
			return Params{Low: s.P10, High: s.P90, Gamma: 0.8}
		default:
			return Params{Low: s.P05, High: s.P95, Gamma: 1.0}
		}
	case Equalized, CLAHE:
		return Params{Low: s.P01, High: s.P99, Gamma: 1.0}
	case Tamed:
		return Params{Low: s.P25, High: s.P99, Gamma: 1.0}
	default:
		return Params{Low: s.P05, High: s.P95, Gamma: 1.0}
	}
}

// window re-clamps the clip bounds into [min, max] and returns them with the
// usable range, which is never below 1. A zero-width distribution keeps the
// selected window so a flat scene lands where the strategy centred it.
func window(s stats.Snapshot, p Params) (low, high, rng float64) {
	low, high = p.Low, p.High
	if s.Min < s.Max {
		low = math.Min(math.Max(low, s.Min), s.Max)
		high = math.Min(math.Max(high, s.Min), s.Max)
	}
	if high < low {
		high = low
	}
	return low, high, math.Max(high-low, 1.0)
}

// Apply quantizes db with strategy. It is a pure function of its inputs.
func Apply(db raster.Grid, mask raster.Mask, s stats.Snapshot, strategy Strategy, depth raster.BitDepth) raster.Band {
	p := Select(s, strategy)
	if strategy == CLAHE {
		return applyCLAHE(db, mask, s, p, depth)
	}
	return Quantize(db, mask, s, p, depth)
}

// Quantize maps every valid sample through the clip window and gamma curve.
// Invalid samples, and every sample of an empty snapshot, become 0.
func Quantize(db raster.Grid, mask raster.Mask, s stats.Snapshot, p Params, depth raster.BitDepth) raster.Band {
	out := raster.NewBand(db.Rows, db.Cols, depth)
	if s.Empty() {
		return out
	}
	low, high, rng := window(s, p)
	maxv := float64(depth.MaxValue())
	cols := db.Cols

	raster.ParallelRows(db.Rows, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < cols; x++ {
				i := y*cols + x
				if !mask.Data[i] {
					continue
				}
				v := db.Data[i]
				if p.LocalEnhancement {
					v = LocalEnhance(db, mask, x, y)
				}
				v = math.Min(math.Max(v, low), high)
				n := math.Pow((v-low)/rng, p.Gamma)
				out.Data[i] = uint16(math.Min(math.Max(math.Round(n*maxv), 0), maxv))
			}
		}
	})
	log.Printf("Autoscale: clip [%.2f, %.2f] dB, gamma %.2f, %d valid samples", low, high, p.Gamma, s.Count)
	return out
}

func applyCLAHE(db raster.Grid, mask raster.Mask, s stats.Snapshot, p Params, depth raster.BitDepth) raster.Band {
	if s.Empty() {
		return raster.NewBand(db.Rows, db.Cols, depth)
	}
	if s.Min == s.Max {
		// nothing to equalize
		return Quantize(db, mask, s, p, depth)
	}
	low, high, rng := window(s, p)
	norm := make([]float64, len(db.Data))
	for i, v := range db.Data {
		if mask.Data[i] {
			norm[i] = math.Min(math.Max((v-low)/rng, 0), 1)
		}
	}
	eq := Equalize(norm, mask, db.Rows, db.Cols)
	out := raster.NewBand(db.Rows, db.Cols, depth)
	maxv := float64(depth.MaxValue())
	for i, v := range eq {
		if mask.Data[i] {
			out.Data[i] = uint16(math.Min(math.Max(math.Round(v*maxv), 0), maxv))
		}
	}
	log.Printf("Autoscale: CLAHE over [%.2f, %.2f] dB, %d valid samples", low, high, s.Count)
	return out
}
