package polar

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stevecastle/sarview/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grid(vals ...complex128) raster.ComplexGrid {
	return raster.ComplexGrid{Rows: 1, Cols: len(vals), Data: vals}
}

func TestRatioByZeroIsZero(t *testing.T) {
	a := grid(1, 2, 3, 4)
	b := grid(0, 0, 0, 0)
	for _, op := range []Op{Ratio, LogRatio} {
		out, err := Apply(op, a, b)
		require.NoError(t, err)
		for i, v := range out.Data {
			assert.Equal(t, complex128(0), v, "%s[%d]", op, i)
			assert.False(t, cmplx.IsNaN(v) || cmplx.IsInf(v))
		}
	}
}

func TestOperations(t *testing.T) {
	a := grid(3, 1, 2)
	b := grid(1, 1, -2)
	tests := []struct {
		op   Op
		want []complex128
	}{
		{Sum, []complex128{4, 2, 0}},
		{Diff, []complex128{2, 0, 4}},
		{Ratio, []complex128{3, 1, -1}},
		{NDiff, []complex128{0.5, 0, 0}},
	}
	for _, tt := range tests {
		out, err := Apply(tt.op, a, b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, out.Data, "op %s", tt.op)
	}
}

func TestLogRatio(t *testing.T) {
	out, err := LogRatioDB(grid(100, complex(0, 10)), grid(1, 1))
	require.NoError(t, err)
	assert.InDelta(t, 20.0, real(out.Data[0]), 1e-9)
	assert.InDelta(t, 10.0, real(out.Data[1]), 1e-9)
	assert.Equal(t, 0.0, imag(out.Data[0]))
	assert.False(t, math.IsNaN(real(out.Data[1])))
}

func TestShapeMismatch(t *testing.T) {
	a := raster.NewComplexGrid(2, 3)
	b := raster.NewComplexGrid(3, 2)
	for _, op := range []Op{Sum, Diff, Ratio, NDiff, LogRatio} {
		_, err := Apply(op, a, b)
		assert.True(t, errors.Is(err, raster.ErrShapeMismatch), "op %s: %v", op, err)
	}
}

func TestParseOpAndLabel(t *testing.T) {
	tests := []struct {
		in    string
		want  Op
		label string
	}{
		{"sum", Sum, "SUM(VV, VH)"},
		{"diff", Diff, "DIFF(VV, VH)"},
		{"ratio", Ratio, "RATIO(VV, VH)"},
		{"n-diff", NDiff, "NORM_DIFF(VV, VH)"},
		{"log-ratio", LogRatio, "LOG_RATIO(VV, VH)"},
	}
	for _, tt := range tests {
		op, err := ParseOp(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, op)
		assert.Equal(t, tt.label, op.Label("vv", "vh"))
		assert.Equal(t, tt.in, op.String())
	}
	_, err := ParseOp("product")
	assert.Error(t, err)
}
