package pipeline

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stevecastle/sarview/autoscale"
	"github.com/stevecastle/sarview/polar"
	"github.com/stevecastle/sarview/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantScene(rows, cols int, v float64) raster.ComplexGrid {
	g := raster.NewComplexGrid(rows, cols)
	for i := range g.Data {
		g.Data[i] = complex(v, 0)
	}
	return g
}

func speckleScene(rows, cols int, seed int64, mean float64) raster.ComplexGrid {
	r := rand.New(rand.NewSource(seed))
	g := raster.NewComplexGrid(rows, cols)
	for i := range g.Data {
		g.Data[i] = complex(r.ExpFloat64()*mean, 0)
	}
	return g
}

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, autoscale.CLAHE, o.Strategy)
	assert.Equal(t, raster.Depth8, o.Depth)
	assert.Zero(t, o.TargetSize)
	assert.False(t, o.Pad)
	assert.Nil(t, o.Op)
}

func TestProcessBandFlatScene(t *testing.T) {
	opts := Options{Strategy: autoscale.Standard, Depth: raster.Depth8}
	out, err := ProcessBand(constantScene(8, 8, 1), opts)
	require.NoError(t, err)
	require.Len(t, out.Bands, 1)
	for _, v := range out.Bands[0].Data {
		assert.Equal(t, uint16(119), v)
	}
	assert.Equal(t, 8, out.Cols())
	assert.Equal(t, 8, out.Rows())
	assert.Equal(t, "VV", out.Label)
	require.Len(t, out.Snapshots, 1)
	assert.Equal(t, 64, out.Snapshots[0].Count)
}

func TestProcessBandIgnoresCorruptSample(t *testing.T) {
	g, err := raster.ComplexFromReal(2, 2, []float64{1, 2, math.Inf(1), 4})
	require.NoError(t, err)
	out, err := ProcessBand(g, Options{Strategy: autoscale.Standard, Depth: raster.Depth8})
	require.NoError(t, err)

	snap := out.Snapshots[0]
	assert.Equal(t, 3, snap.Count)
	for _, v := range append(snap.Percentiles(), snap.Mean, snap.Std, snap.Max) {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "snapshot %+v", snap)
	}
	assert.Zero(t, out.Bands[0].Data[2], "the corrupt sample is masked out")
	var lit int
	for _, v := range out.Bands[0].Data {
		if v > 0 {
			lit++
		}
	}
	assert.Positive(t, lit, "valid samples still render")
}

func TestProcessBandResizesAndAdjustsGeoTransform(t *testing.T) {
	gt := [6]float64{500000, 10, 0, 4600000, 0, -10}
	opts := Options{
		Strategy:     autoscale.Robust,
		Depth:        raster.Depth16,
		TargetSize:   32,
		Pad:          true,
		GeoTransform: &gt,
	}
	out, err := ProcessBand(speckleScene(32, 64, 1, 0.05), opts)
	require.NoError(t, err)
	assert.Equal(t, 32, out.Cols())
	assert.Equal(t, 32, out.Rows())
	assert.Equal(t, 8, out.Geometry.PadTop)
	assert.Equal(t, raster.Depth16, out.Bands[0].Depth)

	require.NotNil(t, out.GeoTransform)
	assert.Equal(t, [6]float64{500000, 20, 0, 4600160, 0, -20}, *out.GeoTransform)
	// source transform untouched
	assert.Equal(t, 10.0, gt[1])
}

func TestProcessPairShapeMismatch(t *testing.T) {
	_, err := ProcessPair(constantScene(4, 4, 1), constantScene(4, 5, 1), DefaultOptions())
	assert.True(t, errors.Is(err, raster.ErrShapeMismatch))
}

func TestProcessPairWithOperation(t *testing.T) {
	op := polar.Sum
	opts := DefaultOptions()
	opts.Op = &op
	opts.Polarizations = []string{"hh", "hv"}

	out, err := ProcessPair(speckleScene(16, 16, 2, 0.1), speckleScene(16, 16, 3, 0.02), opts)
	require.NoError(t, err)
	assert.Equal(t, "SUM(HH, HV)", out.Label)
	require.Len(t, out.Bands, 1)
	assert.Nil(t, out.Composite)
}

func TestProcessPairComposite(t *testing.T) {
	for _, st := range []autoscale.Strategy{autoscale.Tamed, autoscale.CLAHE, autoscale.Standard} {
		opts := DefaultOptions()
		opts.Strategy = st
		out, err := ProcessPair(speckleScene(20, 30, 4, 0.1), speckleScene(20, 30, 5, 0.02), opts)
		require.NoError(t, err, st.String())
		require.NotNil(t, out.Composite, st.String())
		assert.Len(t, out.Composite.Data, 3*20*30)
		assert.Empty(t, out.Bands)
		assert.Equal(t, "MULTIBAND(VV, VH)", out.Label)
		assert.Len(t, out.Snapshots, 2)
	}
}

func TestProcessPairSixteenBit(t *testing.T) {
	opts := DefaultOptions()
	opts.Depth = raster.Depth16
	opts.Strategy = autoscale.Default
	out, err := ProcessPair(speckleScene(10, 10, 6, 0.1), speckleScene(10, 10, 7, 0.02), opts)
	require.NoError(t, err)
	require.Len(t, out.Bands, 2)
	assert.Nil(t, out.Composite)
	for _, b := range out.Bands {
		assert.Equal(t, raster.Depth16, b.Depth)
	}
}

func TestParsePolarization(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		pair   bool
		hasOp  bool
		errMsg string
	}{
		{in: "vv", want: "vv"},
		{in: "HV", want: "hv"},
		{in: "multiband", want: "multiband", pair: true},
		{in: "", want: "multiband", pair: true},
		{in: "sum", want: "sum", pair: true, hasOp: true},
		{in: "log_ratio", want: "log-ratio", pair: true, hasOp: true},
		{in: "rgb", errMsg: "unknown polarization"},
	}
	for _, tt := range tests {
		sel, err := ParsePolarization(tt.in)
		if tt.errMsg != "" {
			assert.ErrorContains(t, err, tt.errMsg, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, sel.String(), tt.in)
		assert.Equal(t, tt.pair, sel.Pair, tt.in)
		assert.Equal(t, tt.hasOp, sel.Op != nil, tt.in)
	}
}

func TestSelectionResolve(t *testing.T) {
	multi := Selection{Pair: true}
	got, err := multi.Resolve([]string{"VH", "VV"})
	require.NoError(t, err)
	assert.Equal(t, []string{"VV", "VH"}, got)

	got, err = multi.Resolve([]string{"HH", "HV"})
	require.NoError(t, err)
	assert.Equal(t, []string{"HH", "HV"}, got)

	_, err = multi.Resolve([]string{"VV", "HV"})
	assert.Error(t, err)

	got, err = Selection{Channel: "VH"}.Resolve([]string{"VV", "VH"})
	require.NoError(t, err)
	assert.Equal(t, []string{"VH"}, got)

	_, err = Selection{Channel: "HH"}.Resolve([]string{"VV"})
	assert.Error(t, err)
}
