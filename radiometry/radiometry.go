// Package radiometry converts backscatter intensity to decibels and marks samples above the noise floor.
package radiometry

import (
	"math"

	"github.com/stevecastle/sarview/raster"
)

const (
	// MinMagnitude keeps log10 finite for zero and negative samples.
	MinMagnitude = 1e-10
	// NoiseFloorDB is the dB value a sample must exceed to count as valid.
	NoiseFloorDB = -50.0
)

// DB converts one intensity to decibels.
func DB(v float64) float64 {
	return 10 * math.Log10(math.Max(v, MinMagnitude))
}

// Valid reports whether a dB value is finite and above the noise floor.
func Valid(v float64) bool {
	return v > NoiseFloorDB && !math.IsInf(v, 1)
}

// ToDB converts the real component of every sample to dB and computes the validity mask.
func ToDB(g raster.ComplexGrid) (raster.Grid, raster.Mask) {
	db := raster.NewGrid(g.Rows, g.Cols)
	mask := raster.NewMask(g.Rows, g.Cols)
	cols := g.Cols
	raster.ParallelRows(g.Rows, func(y0, y1 int) {
		for i := y0 * cols; i < y1*cols; i++ {
			v := DB(real(g.Data[i]))
			db.Data[i] = v
			mask.Data[i] = Valid(v)
		}
	})
	return db, mask
}

// RealToDB is ToDB for real-valued samples.
func RealToDB(rows, cols int, values []float64) (raster.Grid, raster.Mask) {
	db := raster.NewGrid(rows, cols)
	mask := raster.NewMask(rows, cols)
	raster.ParallelRows(rows, func(y0, y1 int) {
		for i := y0 * cols; i < y1*cols; i++ {
			v := DB(values[i])
			db.Data[i] = v
			mask.Data[i] = Valid(v)
		}
	})
	return db, mask
}
