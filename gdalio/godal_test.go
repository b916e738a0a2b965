//go:build godal

package gdalio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoTIFFRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.tif")
	gt := [6]float64{10, 0.1, 0, 45, 0, -0.1}
	img := Image{Cols: 3, Rows: 2, Bands16: [][]uint16{{1, 2, 3, 4, 5, 65535}}}
	require.NoError(t, WriteGeoTIFF(path, img, &gt, "", map[string]string{"PLATFORM": "S1A"}))

	cols, rows, data, readGT, _, err := ReadBand(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 2, rows)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 65535}, data)
	require.NotNil(t, readGT)
	assert.Equal(t, gt, *readGT)
}
