// Package stats computes distribution snapshots of dB grids: a single-pass
// mean/variance over the valid samples and percentile estimates read from a
// fixed-width histogram instead of a full sort.
package stats

import (
	"math"
	"sync"

	"github.com/stevecastle/sarview/raster"
)

// Bins is the number of histogram bins spanning [min, max].
const Bins = 4096

// Percentile levels carried by every snapshot.
var Levels = [...]float64{0.01, 0.02, 0.05, 0.10, 0.25, 0.50, 0.75, 0.90, 0.95, 0.98, 0.99}

// Snapshot summarizes the valid samples of one grid.
type Snapshot struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`

	P01    float64 `json:"p01"`
	P02    float64 `json:"p02"`
	P05    float64 `json:"p05"`
	P10    float64 `json:"p10"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
	P95    float64 `json:"p95"`
	P98    float64 `json:"p98"`
	P99    float64 `json:"p99"`

	// Histogram is nil when Count is zero or every valid sample is equal.
	Histogram *Histogram `json:"-"`
}

// Empty reports whether the snapshot was taken over zero valid samples.
func (s Snapshot) Empty() bool { return s.Count == 0 }

// Range returns max - min.
func (s Snapshot) Range() float64 { return s.Max - s.Min }

// IQR returns p75 - p25.
func (s Snapshot) IQR() float64 { return s.P75 - s.P25 }

// Percentiles returns the estimates in the order of Levels.
func (s Snapshot) Percentiles() []float64 {
	return []float64{s.P01, s.P02, s.P05, s.P10, s.P25, s.Median, s.P75, s.P90, s.P95, s.P98, s.P99}
}

func (s *Snapshot) setPercentiles(p []float64) {
	s.P01, s.P02, s.P05, s.P10, s.P25 = p[0], p[1], p[2], p[3], p[4]
	s.Median = p[5]
	s.P75, s.P90, s.P95, s.P98, s.P99 = p[6], p[7], p[8], p[9], p[10]
}

// Welford accumulates count, min, max, mean and variance in one pass.
type Welford struct {
	N    int
	Min  float64
	Max  float64
	Mean float64
	M2   float64
}

// Add folds one sample into the accumulator.
func (w *Welford) Add(v float64) {
	if w.N == 0 {
		w.Min, w.Max = v, v
	} else {
		if v < w.Min {
			w.Min = v
		}
		if v > w.Max {
			w.Max = v
		}
	}
	w.N++
	d := v - w.Mean
	w.Mean += d / float64(w.N)
	w.M2 += d * (v - w.Mean)
}

// Merge combines another accumulator into w (Chan et al. parallel update).
func (w *Welford) Merge(o Welford) {
	if o.N == 0 {
		return
	}
	if w.N == 0 {
		*w = o
		return
	}
	n := w.N + o.N
	d := o.Mean - w.Mean
	w.Mean += d * float64(o.N) / float64(n)
	w.M2 += o.M2 + d*d*float64(w.N)*float64(o.N)/float64(n)
	w.N = n
	w.Min = math.Min(w.Min, o.Min)
	w.Max = math.Max(w.Max, o.Max)
}

// Std returns the population standard deviation.
func (w Welford) Std() float64 {
	if w.N == 0 {
		return 0
	}
	return math.Sqrt(w.M2 / float64(w.N))
}

// Compute builds the snapshot of the valid samples of db.
func Compute(db raster.Grid, mask raster.Mask) Snapshot {
	var w Welford
	for i, v := range db.Data {
		if mask.Data[i] {
			w.Add(v)
		}
	}
	if w.N == 0 {
		return Snapshot{}
	}

	s := Snapshot{Count: w.N, Min: w.Min, Max: w.Max, Mean: w.Mean, Std: w.Std()}
	if w.Min == w.Max {
		p := make([]float64, len(Levels))
		for i, l := range Levels {
			if l >= 0.75 {
				p[i] = w.Max
			} else {
				p[i] = w.Min
			}
		}
		s.setPercentiles(p)
		return s
	}

	h := buildHistogram(db, mask, w.Min, w.Max)
	p := make([]float64, len(Levels))
	for i, l := range Levels {
		p[i] = h.Percentile(l, w.N)
	}
	s.setPercentiles(p)
	s.Histogram = h
	return s
}

// Histogram is a fixed-width histogram over [Min, Max].
type Histogram struct {
	Min  float64
	Max  float64
	Bins []uint64
}

// Width returns the value span covered by one bin.
func (h *Histogram) Width() float64 {
	return (h.Max - h.Min) / float64(len(h.Bins))
}

// Bin returns the bin index holding v.
func (h *Histogram) Bin(v float64) int {
	idx := int((v - h.Min) / h.Width())
	if idx < 0 {
		return 0
	}
	if idx >= len(h.Bins) {
		return len(h.Bins) - 1
	}
	return idx
}

// Percentile inverts the cumulative distribution at p for count samples,
// interpolating linearly inside the bin that holds the target rank.
func (h *Histogram) Percentile(p float64, count int) float64 {
	if count <= 0 {
		return 0
	}
	target := uint64(math.Floor(p * float64(count)))
	if target > uint64(count-1) {
		target = uint64(count - 1)
	}
	width := h.Width()
	var cum uint64
	for i, c := range h.Bins {
		if c > 0 && cum+c > target {
			frac := float64(target-cum) / float64(c)
			return h.Min + (float64(i)+frac)*width
		}
		cum += c
	}
	return h.Max
}

// buildHistogram counts valid samples into Bins bins. Rows are counted in
// parallel into private histograms and summed, which keeps the result exact.
func buildHistogram(db raster.Grid, mask raster.Mask, lo, hi float64) *Histogram {
	h := &Histogram{Min: lo, Max: hi, Bins: make([]uint64, Bins)}
	cols := db.Cols
	var mu sync.Mutex
	raster.ParallelRows(db.Rows, func(y0, y1 int) {
		local := make([]uint64, Bins)
		for i := y0 * cols; i < y1*cols; i++ {
			if mask.Data[i] {
				local[h.Bin(db.Data[i])]++
			}
		}
		mu.Lock()
		for i, c := range local {
			h.Bins[i] += c
		}
		mu.Unlock()
	})
	return h
}
