package gdalio

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBandCount(t *testing.T) {
	assert.Equal(t, 2, Image{Bands8: make([][]uint8, 2)}.BandCount())
	assert.Equal(t, 1, Image{Bands16: make([][]uint16, 1)}.BandCount())
}

func TestWriteGeoTIFFWithoutGDAL(t *testing.T) {
	if Available() {
		t.Skip("GDAL support compiled in")
	}
	err := WriteGeoTIFF(filepath.Join(t.TempDir(), "x.tif"), Image{Cols: 1, Rows: 1, Bands8: [][]uint8{{1}}}, nil, "", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGDALRequired))
}
