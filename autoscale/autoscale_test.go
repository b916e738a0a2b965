package autoscale

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stevecastle/sarview/raster"
	"github.com/stevecastle/sarview/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullMask(rows, cols int) raster.Mask {
	m := raster.NewMask(rows, cols)
	for i := range m.Data {
		m.Data[i] = true
	}
	return m
}

func constantGrid(rows, cols int, v float64) raster.Grid {
	g := raster.NewGrid(rows, cols)
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

func TestStandardFlatSceneIsMidRange(t *testing.T) {
	db := constantGrid(8, 8, 0)
	mask := fullMask(8, 8)
	s := stats.Compute(db, mask)

	out := Apply(db, mask, s, Standard, raster.Depth8)
	require.Len(t, out.Data, 64)
	first := out.Data[0]
	for _, v := range out.Data {
		assert.Equal(t, first, v)
	}
	assert.Greater(t, first, uint16(0))
	assert.Less(t, first, uint16(255))
	// 0 dB sits in the middle of the [-10, 10] window, raised to gamma 1.1
	assert.Equal(t, uint16(119), first)
}

func TestFlatSceneOtherStrategies(t *testing.T) {
	db := constantGrid(6, 5, -12)
	mask := fullMask(6, 5)
	s := stats.Compute(db, mask)

	for _, st := range []Strategy{Robust, Adaptive, Equalized, Tamed, CLAHE, Default} {
		for _, depth := range []raster.BitDepth{raster.Depth8, raster.Depth16} {
			out := Apply(db, mask, s, st, depth)
			first := out.Data[0]
			assert.True(t, first == 0 || first == depth.MaxValue(), "%s %s", st, depth)
			for _, v := range out.Data {
				assert.Equal(t, first, v, "%s %s", st, depth)
			}
		}
	}
}

func TestEmptySnapshotIsZero(t *testing.T) {
	db := constantGrid(4, 4, -80)
	mask := raster.NewMask(4, 4)
	s := stats.Compute(db, mask)
	require.True(t, s.Empty())

	for _, st := range Strategies() {
		out := Apply(db, mask, s, st, raster.Depth16)
		assert.Equal(t, make([]uint16, 16), out.Data, st.String())
	}
}

func rampGrid(rows, cols int) raster.Grid {
	g := raster.NewGrid(rows, cols)
	for i := range g.Data {
		g.Data[i] = -35 + 30*float64(i)/float64(len(g.Data)-1)
	}
	return g
}

func TestApplyIsDeterministic(t *testing.T) {
	db := rampGrid(40, 33)
	mask := fullMask(40, 33)
	mask.Data[7] = false
	s := stats.Compute(db, mask)

	for _, st := range Strategies() {
		a := Apply(db, mask, s, st, raster.Depth8)
		b := Apply(db, mask, s, st, raster.Depth8)
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("%s: outputs differ (-first +second):\n%s", st, diff)
		}
		assert.Equal(t, uint16(0), a.Data[7], st.String())
		for _, v := range a.Data {
			assert.LessOrEqual(t, v, uint16(255))
		}
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name     string
		snap     stats.Snapshot
		strategy Strategy
		want     Params
	}{
		{
			name:     "standard narrow range",
			snap:     stats.Snapshot{Min: -5, Max: 5, Median: 0},
			strategy: Standard,
			want:     Params{Low: -10, High: 10, Gamma: 1.1},
		},
		{
			name:     "standard tight iqr",
			snap:     stats.Snapshot{Min: -30, Max: -10, P25: -21, P75: -19},
			strategy: Standard,
			want:     Params{Low: -26, High: -14, Gamma: 1.0},
		},
		{
			name:     "standard wide range",
			snap:     stats.Snapshot{Min: -60, Max: 0, P02: -55, P25: -40, P75: -20, P98: -5},
			strategy: Standard,
			want:     Params{Low: -55, High: -5, Gamma: 0.9},
		},
		{
			name:     "standard otherwise",
			snap:     stats.Snapshot{Min: -30, Max: -5, P02: -28, P25: -22, P75: -12, P98: -7},
			strategy: Standard,
			want:     Params{Low: -28, High: -7, Gamma: 1.0},
		},
		{
			name:     "robust bounded by p01 and p99",
			snap:     stats.Snapshot{Min: -40, Max: 0, P01: -35, P25: -20, P75: -15, P99: -2},
			strategy: Robust,
			want:     Params{Low: -32.5, High: -2.5, Gamma: 1.0},
		},
		{
			name:     "adaptive right skew",
			snap:     stats.Snapshot{Mean: -10, Median: -15, Std: 5, P02: -25, P98: -2},
			strategy: Adaptive,
			want:     Params{Low: -25, High: -2, Gamma: 0.9},
		},
		{
			name:     "adaptive left skew",
			snap:     stats.Snapshot{Mean: -20, Median: -15, Std: 5, P05: -22, P95: -6},
			strategy: Adaptive,
			want:     Params{Low: -22, High: -6, Gamma: 1.1},
		},
		{
			name:     "adaptive heavy tail",
			snap:     stats.Snapshot{Mean: -15, Median: -15, Std: 5, P10: -20, P75: -10, P90: -8, P95: -9, P99: 0},
			strategy: Adaptive,
			want:     Params{Low: -20, High: -8, Gamma: 0.8},
		},
		{
			name:     "equalized",
			snap:     stats.Snapshot{P01: -33, P99: -4},
			strategy: Equalized,
			want:     Params{Low: -33, High: -4, Gamma: 1.0},
		},
		{
			name:     "clahe uses the equalized window",
			snap:     stats.Snapshot{P01: -33, P99: -4},
			strategy: CLAHE,
			want:     Params{Low: -33, High: -4, Gamma: 1.0},
		},
		{
			name:     "tamed",
			snap:     stats.Snapshot{P25: -18, P99: -3},
			strategy: Tamed,
			want:     Params{Low: -18, High: -3, Gamma: 1.0},
		},
		{
			name:     "default",
			snap:     stats.Snapshot{P05: -27, P95: -6},
			strategy: Default,
			want:     Params{Low: -27, High: -6, Gamma: 1.0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(tt.snap, tt.strategy)
			assert.InDelta(t, tt.want.Low, got.Low, 1e-9)
			assert.InDelta(t, tt.want.High, got.High, 1e-9)
			assert.InDelta(t, tt.want.Gamma, got.Gamma, 1e-9)
			assert.False(t, got.LocalEnhancement)
		})
	}
}

func TestQuantizeLinear(t *testing.T) {
	db := raster.Grid{Rows: 1, Cols: 6, Data: []float64{0, 5, 10, -3, 20, 7}}
	mask := fullMask(1, 6)
	mask.Data[5] = false
	s := stats.Snapshot{Count: 5, Min: -3, Max: 20}
	p := Params{Low: 0, High: 10, Gamma: 1}

	out := Quantize(db, mask, s, p, raster.Depth8)
	assert.Equal(t, []uint16{0, 128, 255, 0, 255, 0}, out.Data)

	out16 := Quantize(db, mask, s, p, raster.Depth16)
	assert.Equal(t, []uint16{0, 32768, 65535, 0, 65535, 0}, out16.Data)
}

func TestQuantizeReclampsWindow(t *testing.T) {
	db := raster.Grid{Rows: 1, Cols: 3, Data: []float64{-20, -15, -10}}
	mask := fullMask(1, 3)
	s := stats.Snapshot{Count: 3, Min: -20, Max: -10}
	// a window wider than the data collapses onto [min, max]
	out := Quantize(db, mask, s, Params{Low: -100, High: 100, Gamma: 1}, raster.Depth8)
	assert.Equal(t, []uint16{0, 128, 255}, out.Data)
}

func TestQuantizeLocalEnhancement(t *testing.T) {
	db := raster.Grid{Rows: 1, Cols: 3, Data: []float64{2, 4, 6}}
	mask := fullMask(1, 3)
	s := stats.Snapshot{Count: 3, Min: 0, Max: 10}
	p := Params{Low: 0, High: 10, Gamma: 1}

	plain := Quantize(db, mask, s, p, raster.Depth8)
	assert.Equal(t, []uint16{51, 102, 153}, plain.Data)

	// x=0 sees {2, 4}: 2*(1+0.1*(2-4)/2) = 1.8; the others sit on their median
	p.LocalEnhancement = true
	enhanced := Quantize(db, mask, s, p, raster.Depth8)
	assert.Equal(t, []uint16{46, 102, 153}, enhanced.Data)
}

// seamScene has a dark left half and a bright right half, each a small
// repeating texture, crossed every 8 rows by a constant -20 dB probe line.
func seamScene() (raster.Grid, raster.Mask) {
	const size = 128
	db := raster.NewGrid(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			base := -30.0
			if x >= size/2 {
				base = -10
			}
			v := base + float64(x%8+8*(y%8))*0.05
			if y%8 == 3 {
				v = -20
			}
			db.Data[y*size+x] = v
		}
	}
	return db, fullMask(size, size)
}

func TestCLAHEBlendsAcrossTiles(t *testing.T) {
	db, mask := seamScene()
	s := stats.Compute(db, mask)
	out := Apply(db, mask, s, CLAHE, raster.Depth8)

	for _, y := range []int{3, 35, 67, 123} {
		row := out.Data[y*128 : (y+1)*128]
		left, right := int(row[0]), int(row[127])
		require.Greater(t, left, right, "row %d", y)
		maxStep := (left-right)/4 + 1
		for x := 1; x < 128; x++ {
			step := int(row[x-1]) - int(row[x])
			assert.GreaterOrEqual(t, step, 0, "row %d col %d", y, x)
			assert.LessOrEqual(t, step, maxStep, "row %d col %d", y, x)
		}
	}
}

func TestCLAHEInvalidIsZero(t *testing.T) {
	db, mask := seamScene()
	for i := 0; i < len(mask.Data); i += 5 {
		mask.Data[i] = false
	}
	s := stats.Compute(db, mask)
	out := Apply(db, mask, s, CLAHE, raster.Depth16)
	for i, ok := range mask.Data {
		if !ok {
			assert.Equal(t, uint16(0), out.Data[i])
		}
	}
}

func TestEqualizeEmptyTileIsIdentity(t *testing.T) {
	norm := make([]float64, 16*16)
	mask := raster.NewMask(16, 16)
	for i := range norm {
		norm[i] = 0.5
	}
	mask.Data[0] = true
	eq := Equalize(norm, mask, 16, 16)
	assert.Equal(t, 0.0, eq[1])
	assert.Greater(t, eq[0], 0.0)
	assert.LessOrEqual(t, eq[0], 1.0)
}

func TestLocalEnhance(t *testing.T) {
	db := raster.Grid{Rows: 3, Cols: 3, Data: []float64{
		1, 2, 3,
		4, 10, 6,
		7, 8, 9,
	}}
	mask := fullMask(3, 3)
	// median 6, range 9
	assert.InDelta(t, 10*(1+0.1*4.0/9.0), LocalEnhance(db, mask, 1, 1), 1e-12)

	flat := constantGrid(3, 3, -4)
	assert.Equal(t, -4.0, LocalEnhance(flat, mask, 1, 1))
}

func TestLocalEnhanceSkipsInvalidNeighbours(t *testing.T) {
	db := raster.Grid{Rows: 1, Cols: 3, Data: []float64{-100, 2, 4}}
	mask := raster.Mask{Rows: 1, Cols: 3, Data: []bool{false, true, true}}
	// neighbourhood {2, 4}: median 4, range 2
	assert.InDelta(t, 2*(1+0.1*(2.0-4.0)/2.0), LocalEnhance(db, mask, 1, 0), 1e-12)
}

func TestTamedRGBPolarizationWindows(t *testing.T) {
	db := raster.Grid{Rows: 1, Cols: 4, Data: []float64{-25, -22, -15, -5}}
	mask := fullMask(1, 4)
	s := stats.Snapshot{Count: 4, Min: -25, Max: -5, P02: -24, P05: -22, P99: -5}

	co := TamedRGB(db, mask, s, "VV")
	cross := TamedRGB(db, mask, s, "vh")
	assert.Equal(t, raster.Depth8, co.Depth)
	// co-pol window [-24, -5]; cross-pol window [-22, -5]
	assert.Equal(t, uint16(0), co.Data[0])
	assert.Equal(t, uint16(27), co.Data[1])
	assert.Equal(t, uint16(0), cross.Data[1])
	assert.Equal(t, uint16(255), cross.Data[3])
	assert.True(t, IsCoPol(" hh "))
	assert.False(t, IsCoPol("HV"))
}

func TestParseStrategy(t *testing.T) {
	for _, st := range Strategies() {
		got, err := ParseStrategy(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}
	got, err := ParseStrategy(" CLAHE ")
	require.NoError(t, err)
	assert.Equal(t, CLAHE, got)
	_, err = ParseStrategy("vivid")
	assert.Error(t, err)

	var st Strategy
	require.NoError(t, st.UnmarshalText([]byte("Tamed")))
	assert.Equal(t, Tamed, st)
}
