// Package raster holds the grid types shared by every stage of the SAR
// visualization pipeline, plus the error values the pipeline can return.
package raster

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is returned when two grids fed to a binary operation differ in size.
	ErrShapeMismatch = errors.New("grid shapes do not match")
	// ErrMissingBand is returned when 16-bit dual-band output is requested without a second band.
	ErrMissingBand = errors.New("second band required for dual-band output")
	// ErrResampleFailed wraps failures reported by the resampler.
	ErrResampleFailed = errors.New("resample failed")
	// ErrNotImplemented is returned by composition modes that only exist as placeholders.
	ErrNotImplemented = errors.New("not implemented")
)

// BitDepth is the sample width of a quantized band.
type BitDepth int

const (
	Depth8  BitDepth = 8
	Depth16 BitDepth = 16
)

// MaxValue returns the largest sample value representable at this depth.
func (d BitDepth) MaxValue() uint16 {
	if d == Depth16 {
		return 65535
	}
	return 255
}

func (d BitDepth) String() string {
	if d == Depth16 {
		return "u16"
	}
	return "u8"
}

// ParseBitDepth accepts "8", "u8", "16" or "u16".
func ParseBitDepth(s string) (BitDepth, error) {
	switch s {
	case "8", "u8", "U8":
		return Depth8, nil
	case "16", "u16", "U16":
		return Depth16, nil
	}
	return 0, fmt.Errorf("unknown bit depth %q", s)
}

// ComplexGrid is a row-major grid of complex backscatter samples.
type ComplexGrid struct {
	Rows int
	Cols int
	Data []complex128
}

// NewComplexGrid allocates a zeroed grid.
func NewComplexGrid(rows, cols int) ComplexGrid {
	return ComplexGrid{Rows: rows, Cols: cols, Data: make([]complex128, rows*cols)}
}

// ComplexFromReal wraps real samples as complex values with a zero imaginary part.
func ComplexFromReal(rows, cols int, values []float64) (ComplexGrid, error) {
	if len(values) != rows*cols {
		return ComplexGrid{}, fmt.Errorf("%d samples for %dx%d grid: %w", len(values), rows, cols, ErrShapeMismatch)
	}
	g := NewComplexGrid(rows, cols)
	for i, v := range values {
		g.Data[i] = complex(v, 0)
	}
	return g, nil
}

// SameShape reports whether g and o have identical dimensions.
func (g ComplexGrid) SameShape(o ComplexGrid) bool {
	return g.Rows == o.Rows && g.Cols == o.Cols && len(g.Data) == len(o.Data)
}

// Grid is a row-major grid of real values, used for dB data.
type Grid struct {
	Rows int
	Cols int
	Data []float64
}

func NewGrid(rows, cols int) Grid {
	return Grid{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// At returns the value at row y, column x.
func (g Grid) At(x, y int) float64 {
	return g.Data[y*g.Cols+x]
}

// Mask marks the samples of a dB grid that lie above the noise floor.
type Mask struct {
	Rows int
	Cols int
	Data []bool
}

func NewMask(rows, cols int) Mask {
	return Mask{Rows: rows, Cols: cols, Data: make([]bool, rows*cols)}
}

// Valid returns the number of true entries.
func (m Mask) Valid() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

// Band is a quantized single-channel grid. 8-bit bands keep every sample <= 255.
type Band struct {
	Rows  int
	Cols  int
	Depth BitDepth
	Data  []uint16
}

func NewBand(rows, cols int, depth BitDepth) Band {
	return Band{Rows: rows, Cols: cols, Depth: depth, Data: make([]uint16, rows*cols)}
}

// SameShape reports whether b and o have identical dimensions.
func (b Band) SameShape(o Band) bool {
	return b.Rows == o.Rows && b.Cols == o.Cols && len(b.Data) == len(o.Data)
}

// Bytes returns the samples of an 8-bit band as bytes. 16-bit samples are shifted down.
func (b Band) Bytes() []uint8 {
	out := make([]uint8, len(b.Data))
	for i, v := range b.Data {
		if b.Depth == Depth16 {
			out[i] = uint8(v >> 8)
		} else {
			out[i] = uint8(v)
		}
	}
	return out
}

// Composite is an interleaved RGB image built from two 8-bit bands.
type Composite struct {
	Rows int
	Cols int
	Data []uint8
}

func NewComposite(rows, cols int) Composite {
	return Composite{Rows: rows, Cols: cols, Data: make([]uint8, 3*rows*cols)}
}
