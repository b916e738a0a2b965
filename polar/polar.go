// Package polar combines two polarization channels of the same scene element by element.
package polar

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"github.com/stevecastle/sarview/raster"
)

// epsilon is the magnitude below which a denominator is treated as zero.
const epsilon = 1e-10

// Op selects an element-wise channel combination.
type Op int

const (
	Sum Op = iota
	Diff
	Ratio
	NDiff
	LogRatio
)

func (o Op) String() string {
	switch o {
	case Sum:
		return "sum"
	case Diff:
		return "diff"
	case Ratio:
		return "ratio"
	case NDiff:
		return "n-diff"
	case LogRatio:
		return "log-ratio"
	default:
		return "unknown"
	}
}

// ParseOp maps a command-line name onto an Op.
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(s) {
	case "sum":
		return Sum, nil
	case "diff", "difference":
		return Diff, nil
	case "ratio":
		return Ratio, nil
	case "n-diff", "ndiff", "normalized-diff", "normalized_diff":
		return NDiff, nil
	case "log-ratio", "logratio", "log_ratio":
		return LogRatio, nil
	}
	return 0, fmt.Errorf("unknown polarization operation %q", s)
}

// Label renders the polarization description written into image metadata,
// e.g. "SUM(VV, VH)".
func (o Op) Label(co, cross string) string {
	var name string
	switch o {
	case Sum:
		name = "SUM"
	case Diff:
		name = "DIFF"
	case Ratio:
		name = "RATIO"
	case NDiff:
		name = "NORM_DIFF"
	case LogRatio:
		name = "LOG_RATIO"
	default:
		return co + "," + cross
	}
	return fmt.Sprintf("%s(%s, %s)", name, strings.ToUpper(co), strings.ToUpper(cross))
}

// Apply runs op over a and b.
func Apply(op Op, a, b raster.ComplexGrid) (raster.ComplexGrid, error) {
	switch op {
	case Sum:
		return Add(a, b)
	case Diff:
		return Difference(a, b)
	case Ratio:
		return Divide(a, b)
	case NDiff:
		return NormalizedDifference(a, b)
	case LogRatio:
		return LogRatioDB(a, b)
	}
	return raster.ComplexGrid{}, fmt.Errorf("polarization operation %d: %w", int(op), raster.ErrNotImplemented)
}

func zipWith(a, b raster.ComplexGrid, fn func(x, y complex128) complex128) (raster.ComplexGrid, error) {
	if !a.SameShape(b) {
		return raster.ComplexGrid{}, fmt.Errorf("%dx%d vs %dx%d: %w", a.Rows, a.Cols, b.Rows, b.Cols, raster.ErrShapeMismatch)
	}
	out := raster.NewComplexGrid(a.Rows, a.Cols)
	for i := range a.Data {
		out.Data[i] = fn(a.Data[i], b.Data[i])
	}
	return out, nil
}

// Add returns a + b.
func Add(a, b raster.ComplexGrid) (raster.ComplexGrid, error) {
	return zipWith(a, b, func(x, y complex128) complex128 { return x + y })
}

// Difference returns a - b.
func Difference(a, b raster.ComplexGrid) (raster.ComplexGrid, error) {
	return zipWith(a, b, func(x, y complex128) complex128 { return x - y })
}

// Divide returns a / b, with 0 wherever |b| <= 1e-10.
func Divide(a, b raster.ComplexGrid) (raster.ComplexGrid, error) {
	return zipWith(a, b, func(x, y complex128) complex128 {
		if cmplx.Abs(y) > epsilon {
			return x / y
		}
		return 0
	})
}

// NormalizedDifference returns (a - b) / (a + b), with 0 wherever |a + b| <= 1e-10.
func NormalizedDifference(a, b raster.ComplexGrid) (raster.ComplexGrid, error) {
	return zipWith(a, b, func(x, y complex128) complex128 {
		s := x + y
		if cmplx.Abs(s) > epsilon {
			return (x - y) / s
		}
		return 0
	})
}

// LogRatioDB returns 10*log10(|a/b|) in the real part, with 0 wherever |b| <= 1e-10.
func LogRatioDB(a, b raster.ComplexGrid) (raster.ComplexGrid, error) {
	return zipWith(a, b, func(x, y complex128) complex128 {
		if cmplx.Abs(y) > epsilon {
			return complex(10*math.Log10(cmplx.Abs(x/y)), 0)
		}
		return 0
	})
}
