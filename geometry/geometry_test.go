package geometry

import (
	"errors"
	"testing"

	"github.com/stevecastle/sarview/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filledBand(rows, cols int, depth raster.BitDepth, v uint16) raster.Band {
	b := raster.NewBand(rows, cols, depth)
	for i := range b.Data {
		b.Data[i] = v
	}
	return b
}

func TestTargetDims(t *testing.T) {
	tests := []struct {
		cols, rows, target int
		wantC, wantR       int
		resampled          bool
	}{
		{100, 50, 200, 100, 50, false},
		{100, 50, 100, 100, 50, false},
		{1000, 500, 100, 100, 50, true},
		{500, 1000, 100, 50, 100, true},
		{333, 100, 100, 100, 30, true},
		{64, 64, 16, 16, 16, true},
		{80, 40, 0, 80, 40, false},
	}
	for _, tt := range tests {
		c, r, ok := TargetDims(tt.cols, tt.rows, tt.target)
		assert.Equal(t, tt.wantC, c, "%+v", tt)
		assert.Equal(t, tt.wantR, r, "%+v", tt)
		assert.Equal(t, tt.resampled, ok, "%+v", tt)
	}
}

func TestPadWideBand(t *testing.T) {
	b := filledBand(50, 100, raster.Depth8, 7)
	res, err := Transform(Request{Band1: b, Pad: true})
	require.NoError(t, err)

	assert.Equal(t, 100, res.Cols)
	assert.Equal(t, 100, res.Rows)
	assert.Equal(t, 0, res.PadLeft)
	assert.Equal(t, 25, res.PadTop)
	assert.Equal(t, 1.0, res.ScaleX)
	require.Len(t, res.Bands, 1)

	out := res.Bands[0]
	assert.Equal(t, uint16(0), out.Data[24*100+50])
	assert.Equal(t, uint16(7), out.Data[25*100])
	assert.Equal(t, uint16(7), out.Data[74*100+99])
	assert.Equal(t, uint16(0), out.Data[75*100])
}

func TestPadTallBand(t *testing.T) {
	b := filledBand(5, 2, raster.Depth16, 300)
	out, left, top := Pad(b)
	assert.Equal(t, 1, left)
	assert.Equal(t, 0, top)
	assert.Equal(t, 5, out.Cols)
	assert.Equal(t, raster.Depth16, out.Depth)
	assert.Equal(t, []uint16{0, 300, 300, 0, 0}, out.Data[:5])
}

func TestTransformLargerTargetIsNoOp(t *testing.T) {
	b := filledBand(40, 60, raster.Depth8, 1)
	res, err := Transform(Request{Band1: b, TargetSize: 500})
	require.NoError(t, err)
	assert.True(t, res.NoOp)
	assert.Equal(t, 60, res.Cols)
	assert.Equal(t, 40, res.Rows)
	assert.Equal(t, 1.0, res.ScaleX)
	assert.Equal(t, 1.0, res.ScaleY)
	assert.Equal(t, b, res.Bands[0])
}

func TestTransformMissingBand(t *testing.T) {
	b := filledBand(4, 4, raster.Depth16, 1)
	_, err := Transform(Request{Band1: b, Dual: true})
	assert.True(t, errors.Is(err, raster.ErrMissingBand))

	// 8-bit dual output does not need the second band
	_, err = Transform(Request{Band1: filledBand(4, 4, raster.Depth8, 1), Dual: true})
	assert.NoError(t, err)
}

func TestTransformResamplesBothBands(t *testing.T) {
	b1 := filledBand(32, 64, raster.Depth8, 100)
	b2 := filledBand(32, 64, raster.Depth8, 200)
	res, err := Transform(Request{Band1: b1, Band2: &b2, Dual: true, TargetSize: 32, Pad: true})
	require.NoError(t, err)

	assert.Equal(t, 32, res.Cols)
	assert.Equal(t, 32, res.Rows)
	assert.Equal(t, 0.5, res.ScaleX)
	assert.Equal(t, 0.5, res.ScaleY)
	assert.Equal(t, 8, res.PadTop)
	require.Len(t, res.Bands, 2)
	assert.InDelta(t, 100, float64(res.Bands[0].Data[16*32+16]), 1)
	assert.InDelta(t, 200, float64(res.Bands[1].Data[16*32+16]), 1)
	assert.Equal(t, uint16(0), res.Bands[1].Data[0])
}

func TestResize16ClearsLowByte(t *testing.T) {
	b := filledBand(20, 20, raster.Depth16, 0x80ff)
	out, err := Resize16(b, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, raster.Depth16, out.Depth)
	for _, v := range out.Data {
		assert.Equal(t, uint16(0), v&0xff)
		assert.InDelta(t, 0x80, float64(v>>8), 1)
	}
}

func TestResizeRejectsEmptyTarget(t *testing.T) {
	_, err := Resize8(filledBand(4, 4, raster.Depth8, 1), 0, 2)
	assert.True(t, errors.Is(err, raster.ErrResampleFailed))

	// 1000x1 down to 10 rounds the short side to zero
	_, err = Transform(Request{Band1: filledBand(1, 1000, raster.Depth8, 1), TargetSize: 10})
	assert.True(t, errors.Is(err, raster.ErrResampleFailed))
}

func TestAdjustGeoTransform(t *testing.T) {
	gt := [6]float64{100, 10, 0, 200, 0, -10}
	got := AdjustGeoTransform(gt, Result{ScaleX: 0.5, ScaleY: 0.5, PadTop: 25})
	assert.Equal(t, [6]float64{100, 20, 0, 700, 0, -20}, got)

	same := AdjustGeoTransform(gt, Result{ScaleX: 1, ScaleY: 1})
	assert.Equal(t, gt, same)
}

func TestTransformCompositePads(t *testing.T) {
	c := raster.NewComposite(2, 4)
	for i := range c.Data {
		c.Data[i] = 9
	}
	out, res, err := TransformComposite(c, 0, true)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Cols)
	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, 1, res.PadTop)
	assert.Equal(t, 0, res.PadLeft)
	require.Len(t, out.Data, 48)
	assert.Equal(t, []uint8{0, 0, 0}, out.Data[0:3])
	assert.Equal(t, []uint8{9, 9, 9}, out.Data[12:15])
	assert.Equal(t, []uint8{0, 0, 0}, out.Data[36:39])
}

func TestTransformCompositeResamples(t *testing.T) {
	c := raster.NewComposite(16, 32)
	for i := 0; i < len(c.Data); i += 3 {
		c.Data[i], c.Data[i+1], c.Data[i+2] = 200, 50, 10
	}
	out, res, err := TransformComposite(c, 8, false)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Cols)
	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, 0.25, res.ScaleX)
	require.Len(t, out.Data, 8*4*3)
	mid := 3 * (2*8 + 4)
	assert.InDelta(t, 200, float64(out.Data[mid]), 1)
	assert.InDelta(t, 50, float64(out.Data[mid+1]), 1)
}
