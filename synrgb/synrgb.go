// Package synrgb builds three-channel composites from two quantized 8-bit
// bands (co-pol in red, cross-pol in green, their gamma-mapped ratio in blue).
//
// Every per-pixel power is moved into lookup tables: two 256-entry tables for
// red and green and one 65,536-entry table for blue indexed by (b1<<8)|b2.
package synrgb

import (
	"fmt"
	"math"
	"sync"

	"github.com/stevecastle/sarview/autoscale"
	"github.com/stevecastle/sarview/raster"
)

const (
	gammaR    = 0.7
	gammaG    = 0.9
	gammaB    = 0.1
	blueScale = 0.24

	suppressedGammaR    = 1.15
	suppressedGammaG    = 1.10
	suppressedBlueScale = 0.18
	ratioEpsilon        = 8.0
	floorPercentile     = 0.05
	floorCushion        = 3
	floorCap            = 40
)

// LUTs holds the precomputed channel tables of the default composite.
type LUTs struct {
	R    [256]uint8
	G    [256]uint8
	Blue []uint8
}

var (
	lutsOnce sync.Once
	luts     *LUTs
)

// DefaultLUTs returns the process-wide default tables, building them on first use.
func DefaultLUTs() *LUTs {
	lutsOnce.Do(func() { luts = NewLUTs() })
	return luts
}

func toByte(v float64) uint8 {
	return uint8(math.Round(math.Min(math.Max(v, 0), 255)))
}

func gammaTable(gamma float64) [256]uint8 {
	var t [256]uint8
	for v := range t {
		t[v] = toByte(math.Pow(float64(v)/255, gamma) * 255)
	}
	return t
}

// NewLUTs builds the default tables. A zero band-2 sample yields blue 0; a
// green value that rounds to zero makes the ratio infinite, which clamps to 255.
func NewLUTs() *LUTs {
	l := &LUTs{R: gammaTable(gammaR), G: gammaTable(gammaG), Blue: make([]uint8, 1<<16)}
	for b1 := 0; b1 < 256; b1++ {
		for b2 := 1; b2 < 256; b2++ {
			ratio := float64(l.R[b1]) / float64(l.G[b2])
			l.Blue[b1<<8|b2] = toByte(math.Pow(ratio, gammaB) * 255 * blueScale)
		}
	}
	return l
}

func checkBands(b1, b2 raster.Band) error {
	if !b1.SameShape(b2) {
		return fmt.Errorf("composite of %dx%d and %dx%d bands: %w", b1.Cols, b1.Rows, b2.Cols, b2.Rows, raster.ErrShapeMismatch)
	}
	if b1.Depth != raster.Depth8 || b2.Depth != raster.Depth8 {
		return fmt.Errorf("composite needs 8-bit bands, got %s and %s", b1.Depth, b2.Depth)
	}
	return nil
}

// Compose builds the default composite of b1 (red) and b2 (green).
func Compose(b1, b2 raster.Band) (raster.Composite, error) {
	if err := checkBands(b1, b2); err != nil {
		return raster.Composite{}, err
	}
	l := DefaultLUTs()
	out := raster.NewComposite(b1.Rows, b1.Cols)
	for i := range b1.Data {
		v1, v2 := uint8(b1.Data[i]), uint8(b2.Data[i])
		out.Data[3*i] = l.R[v1]
		out.Data[3*i+1] = l.G[v2]
		out.Data[3*i+2] = l.Blue[int(v1)<<8|int(v2)]
	}
	return out, nil
}

// WaterFloor returns the level at roughly the 5th percentile of the
// combined histogram of both bands, plus a small cushion, capped at 40.
func WaterFloor(b1, b2 raster.Band) int {
	var hist [256]int
	for i := range b1.Data {
		hist[uint8(b1.Data[i])]++
		hist[uint8(b2.Data[i])]++
	}
	total := 2 * len(b1.Data)
	target := int(math.Floor(floorPercentile * float64(total)))
	level, cum := 0, 0
	for v, c := range hist {
		cum += c
		if cum > target {
			level = v
			break
		}
	}
	return min(level+floorCushion, floorCap)
}

// shiftedTable maps values at or below floor to 0 and rescales the rest into (0, 1] before gamma.
func shiftedTable(floor int, gamma float64) [256]uint8 {
	var t [256]uint8
	span := float64(255 - floor)
	for v := floor + 1; v < 256; v++ {
		t[v] = toByte(math.Pow(float64(v-floor)/span, gamma) * 255)
	}
	return t
}

// ComposeSuppressed builds a composite that blacks out low-backscatter pixels.
// Pixels where both bands sit at or below the water floor are pure black;
// the rest use floor-shifted gamma tables and a stabilized blue ratio.
func ComposeSuppressed(b1, b2 raster.Band) (raster.Composite, error) {
	if err := checkBands(b1, b2); err != nil {
		return raster.Composite{}, err
	}
	floor := WaterFloor(b1, b2)
	lr := shiftedTable(floor, suppressedGammaR)
	lg := shiftedTable(floor, suppressedGammaG)
	blue := make([]uint8, 1<<16)
	for v1 := 0; v1 < 256; v1++ {
		for v2 := 0; v2 < 256; v2++ {
			ratio := (float64(lr[v1]) + ratioEpsilon) / (float64(lg[v2]) + ratioEpsilon)
			blue[v1<<8|v2] = toByte(math.Pow(ratio, gammaB) * 255 * suppressedBlueScale)
		}
	}

	out := raster.NewComposite(b1.Rows, b1.Cols)
	raster.ParallelRows(b1.Rows, func(y0, y1 int) {
		for i := y0 * b1.Cols; i < y1*b1.Cols; i++ {
			v1, v2 := int(b1.Data[i]), int(b2.Data[i])
			if v1 <= floor && v2 <= floor {
				continue
			}
			out.Data[3*i] = lr[v1]
			out.Data[3*i+1] = lg[v2]
			out.Data[3*i+2] = blue[v1<<8|v2]
		}
	})
	return out, nil
}

// ForStrategy reports whether composites produced after strategy should use
// the suppressed variant.
func ForStrategy(s autoscale.Strategy) bool {
	return s == autoscale.Tamed || s == autoscale.CLAHE
}
