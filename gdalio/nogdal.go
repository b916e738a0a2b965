//go:build !godal

package gdalio

// Available reports whether GDAL support is compiled in.
func Available() bool { return false }

// WriteGeoTIFF needs GDAL.
func WriteGeoTIFF(path string, img Image, gt *[6]float64, projection string, metadata map[string]string) error {
	return ErrGDALRequired
}

// ReadBand needs GDAL.
func ReadBand(path string) (cols, rows int, data []float64, gt *[6]float64, projection string, err error) {
	return 0, 0, nil, nil, "", ErrGDALRequired
}
