// Package gdalio writes GeoTIFFs and reads raster bands through GDAL. It is
// compiled against GDAL only with the godal build tag; without it every
// function returns ErrGDALRequired and callers fall back to the pure-Go
// encoders.
package gdalio

import "errors"

// ErrGDALRequired is returned when the binary was built without GDAL support.
var ErrGDALRequired = errors.New("built without GDAL support (rebuild with -tags godal)")

// Image is one output raster: one or more bands of equal size, either 8-bit
// (Bands8) or 16-bit (Bands16).
type Image struct {
	Cols    int
	Rows    int
	Bands8  [][]uint8
	Bands16 [][]uint16
}

// BandCount returns the number of bands carried by img.
func (img Image) BandCount() int {
	if len(img.Bands16) > 0 {
		return len(img.Bands16)
	}
	return len(img.Bands8)
}
