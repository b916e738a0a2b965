//go:build godal

package gdalio

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"
)

var registerOnce sync.Once

func register() {
	registerOnce.Do(godal.RegisterAll)
}

// Available reports whether GDAL support is compiled in.
func Available() bool { return true }

// WriteGeoTIFF writes img to path with the geotransform, projection and
// metadata tags embedded.
func WriteGeoTIFF(path string, img Image, gt *[6]float64, projection string, metadata map[string]string) error {
	register()
	dtype := godal.Byte
	if len(img.Bands16) > 0 {
		dtype = godal.UInt16
	}
	ds, err := godal.Create(godal.GTiff, path, img.BandCount(), dtype, img.Cols, img.Rows)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	bands := ds.Bands()
	for i := 0; i < img.BandCount(); i++ {
		if dtype == godal.UInt16 {
			err = bands[i].Write(0, 0, img.Bands16[i], img.Cols, img.Rows)
		} else {
			err = bands[i].Write(0, 0, img.Bands8[i], img.Cols, img.Rows)
		}
		if err != nil {
			ds.Close()
			return fmt.Errorf("write band %d: %w", i+1, err)
		}
	}
	if gt != nil {
		if err := ds.SetGeoTransform(*gt); err != nil {
			ds.Close()
			return fmt.Errorf("set geotransform: %w", err)
		}
		if projection != "" {
			if err := ds.SetProjection(projection); err != nil {
				ds.Close()
				return fmt.Errorf("set projection: %w", err)
			}
		}
	}
	for k, v := range metadata {
		if err := ds.SetMetadata(k, v); err != nil {
			ds.Close()
			return fmt.Errorf("set metadata %s: %w", k, err)
		}
	}
	return ds.Close()
}

// ReadBand reads the first band of the raster at path as float samples,
// together with its geotransform and projection when present.
func ReadBand(path string) (cols, rows int, data []float64, gt *[6]float64, projection string, err error) {
	register()
	ds, err := godal.Open(path)
	if err != nil {
		return 0, 0, nil, nil, "", fmt.Errorf("open %s: %w", path, err)
	}
	defer ds.Close()
	st := ds.Structure()
	cols, rows = st.SizeX, st.SizeY
	data = make([]float64, cols*rows)
	if err := ds.Bands()[0].Read(0, 0, data, cols, rows); err != nil {
		return 0, 0, nil, nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	if t, err := ds.GeoTransform(); err == nil {
		gt = &t
	}
	return cols, rows, data, gt, ds.Projection(), nil
}
