package autoscale

import (
	"math"
	"strings"

	"github.com/stevecastle/sarview/raster"
	"github.com/stevecastle/sarview/stats"
)

// IsCoPol reports whether pol names a like-polarized channel (VV or HH).
func IsCoPol(pol string) bool {
	switch strings.ToUpper(strings.TrimSpace(pol)) {
	case "VV", "HH":
		return true
	}
	return false
}

// TamedRGB quantizes one channel of a synthetic RGB composite to 8 bits.
// Co-polarized channels clip low at the smaller of p02 and p05, cross-polarized
// channels at p05, both at p99 on the high side.
func TamedRGB(db raster.Grid, mask raster.Mask, s stats.Snapshot, pol string) raster.Band {
	low := s.P05
	if IsCoPol(pol) {
		low = math.Min(s.P02, s.P05)
	}
	return Quantize(db, mask, s, Params{Low: low, High: s.P99, Gamma: 1.0}, raster.Depth8)
}
