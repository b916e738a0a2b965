package raster

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRows(t *testing.T) {
	tests := []struct {
		h, workers int
		want       [][2]int
	}{
		{10, 3, [][2]int{{0, 4}, {4, 7}, {7, 10}}},
		{2, 8, [][2]int{{0, 1}, {1, 2}}},
		{5, 0, [][2]int{{0, 5}}},
		{0, 4, nil},
	}
	for _, tt := range tests {
		got := SplitRows(tt.h, tt.workers)
		assert.Equal(t, tt.want, got, "SplitRows(%d, %d)", tt.h, tt.workers)
	}
}

func TestParallelRowsCoversEveryRowOnce(t *testing.T) {
	const h = 97
	var seen [h]int32
	ParallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			atomic.AddInt32(&seen[y], 1)
		}
	})
	for y, n := range seen {
		assert.Equal(t, int32(1), n, "row %d", y)
	}
}

func TestComplexFromReal(t *testing.T) {
	g, err := ComplexFromReal(2, 2, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, complex(3, 0), g.Data[2])

	_, err = ComplexFromReal(2, 2, []float64{1})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestParseBitDepth(t *testing.T) {
	d, err := ParseBitDepth("u16")
	require.NoError(t, err)
	assert.Equal(t, uint16(65535), d.MaxValue())

	d, err = ParseBitDepth("8")
	require.NoError(t, err)
	assert.Equal(t, uint16(255), d.MaxValue())

	_, err = ParseBitDepth("12")
	assert.Error(t, err)
}

func TestBandBytes(t *testing.T) {
	b := Band{Rows: 1, Cols: 2, Depth: Depth16, Data: []uint16{0xff00, 0x0100}}
	assert.Equal(t, []uint8{0xff, 0x01}, b.Bytes())
}
