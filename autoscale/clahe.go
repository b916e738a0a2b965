package autoscale

import (
	"math"
	"sync"

	"github.com/stevecastle/sarview/raster"
)

const (
	claheTiles     = 8
	claheBins      = 256
	claheClipLimit = 2.0
)

// tileCDF is the normalized cumulative distribution of one tile.
type tileCDF [claheBins]float64

func claheBin(v float64) int {
	b := int(math.Round(v * (claheBins - 1)))
	if b < 0 {
		return 0
	}
	if b >= claheBins {
		return claheBins - 1
	}
	return b
}

// Equalize runs contrast-limited adaptive histogram equalization over norm,
// a row-major grid of values in [0, 1]. The grid is split into an 8x8 layout
// of ceiling-sized tiles; each output value blends the CDFs of the four
// nearest tiles bilinearly. Invalid samples map to 0.
func Equalize(norm []float64, mask raster.Mask, rows, cols int) []float64 {
	out := make([]float64, len(norm))
	if rows == 0 || cols == 0 {
		return out
	}
	tileW := (cols + claheTiles - 1) / claheTiles
	tileH := (rows + claheTiles - 1) / claheTiles
	nx := (cols + tileW - 1) / tileW
	ny := (rows + tileH - 1) / tileH

	cdfs := make([]tileCDF, nx*ny)
	var wg sync.WaitGroup
	for ty := 0; ty < ny; ty++ {
		for tx := 0; tx < nx; tx++ {
			wg.Add(1)
			go func(tx, ty int) {
				defer wg.Done()
				x0, y0 := tx*tileW, ty*tileH
				x1, y1 := min(x0+tileW, cols), min(y0+tileH, rows)
				cdfs[ty*nx+tx] = buildTileCDF(norm, mask, cols, x0, y0, x1, y1)
			}(tx, ty)
		}
	}
	wg.Wait()

	raster.ParallelRows(rows, func(r0, r1 int) {
		for y := r0; y < r1; y++ {
			ty0, ty1, wy := tileCoord(y, tileH, ny)
			for x := 0; x < cols; x++ {
				i := y*cols + x
				if !mask.Data[i] {
					continue
				}
				tx0, tx1, wx := tileCoord(x, tileW, nx)
				b := claheBin(norm[i])
				top := (1-wx)*cdfs[ty0*nx+tx0][b] + wx*cdfs[ty0*nx+tx1][b]
				bottom := (1-wx)*cdfs[ty1*nx+tx0][b] + wx*cdfs[ty1*nx+tx1][b]
				out[i] = (1-wy)*top + wy*bottom
			}
		}
	})
	return out
}

// tileCoord locates pixel p between the centres of two neighbouring tiles and
// returns their indices and the weight of the second one.
func tileCoord(p, size, n int) (int, int, float64) {
	f := (float64(p)+0.5)/float64(size) - 0.5
	if f <= 0 {
		return 0, 0, 0
	}
	if f >= float64(n-1) {
		return n - 1, n - 1, 0
	}
	t0 := int(math.Floor(f))
	return t0, t0 + 1, f - float64(t0)
}

func buildTileCDF(norm []float64, mask raster.Mask, cols, x0, y0, x1, y1 int) tileCDF {
	var hist [claheBins]int
	total := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			i := y*cols + x
			if mask.Data[i] {
				hist[claheBin(norm[i])]++
				total++
			}
		}
	}

	var cdf tileCDF
	if total == 0 {
		for b := range cdf {
			cdf[b] = float64(b) / (claheBins - 1)
		}
		return cdf
	}

	limit := int(math.Max(1, claheClipLimit*float64(total)/claheBins))
	excess := 0
	for b, c := range hist {
		if c > limit {
			excess += c - limit
			hist[b] = limit
		}
	}
	inc, rem := excess/claheBins, excess%claheBins
	for b := range hist {
		hist[b] += inc
	}
	for b := 0; rem > 0; b = (b + 1) % claheBins {
		hist[b]++
		rem--
	}

	cum := 0
	for b, c := range hist {
		cum += c
		cdf[b] = float64(cum) / float64(total)
	}
	return cdf
}
