package autoscale

import (
	"sort"

	"github.com/stevecastle/sarview/raster"
)

// LocalEnhance stretches the sample at (x, y) away from the median of its
// valid 3x3 neighbourhood by a tenth of the neighbourhood range. Flat
// neighbourhoods return the sample unchanged.
func LocalEnhance(db raster.Grid, mask raster.Mask, x, y int) float64 {
	v := db.At(x, y)
	var nb [9]float64
	n := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if nx < 0 || ny < 0 || nx >= db.Cols || ny >= db.Rows {
				continue
			}
			i := ny*db.Cols + nx
			if mask.Data[i] {
				nb[n] = db.Data[i]
				n++
			}
		}
	}
	if n == 0 {
		return v
	}
	vals := nb[:n]
	sort.Float64s(vals)
	rng := vals[n-1] - vals[0]
	if rng <= 0 {
		return v
	}
	med := vals[n/2]
	return v * (1 + 0.1*(v-med)/rng)
}
