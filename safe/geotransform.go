package safe

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// WGS84 is the projection of geotransforms fitted to geolocation grids.
const WGS84 = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`

// FitGeoTransform fits the affine transform
//
//	lon = gt[0] + pixel*gt[1] + line*gt[2]
//	lat = gt[3] + pixel*gt[4] + line*gt[5]
//
// to the tie points by least squares. At least three points are needed.
func FitGeoTransform(points []GridPoint) ([6]float64, error) {
	if len(points) < 3 {
		return [6]float64{}, fmt.Errorf("%d tie points, need at least 3", len(points))
	}
	a := mat.NewDense(len(points), 3, nil)
	b := mat.NewDense(len(points), 2, nil)
	for i, p := range points {
		a.SetRow(i, []float64{1, p.Pixel, p.Line})
		b.SetRow(i, []float64{p.Longitude, p.Latitude})
	}
	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		return [6]float64{}, fmt.Errorf("fit geotransform: %w", err)
	}
	return [6]float64{
		x.At(0, 0), x.At(1, 0), x.At(2, 0),
		x.At(0, 1), x.At(1, 1), x.At(2, 1),
	}, nil
}
