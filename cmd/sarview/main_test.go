package main

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stevecastle/sarview/writers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func writeRaster(t *testing.T, path string) {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, 16, 12))
	for i := 0; i < 16*12; i++ {
		v := uint16(100 + 13*i)
		img.Pix[2*i] = uint8(v >> 8)
		img.Pix[2*i+1] = uint8(v)
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, tiff.Encode(f, img, nil))
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunSingleScene(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "amplitude.tif")
	writeRaster(t, in)
	outDir := filepath.Join(dir, "out") + string(filepath.Separator)

	code, stdout, stderr := runCLI("-in", in, "-out", outDir, "-format", "png", "-bit-depth", "16", "-sidecar=false")
	require.Equal(t, 0, code, stderr)
	want := filepath.Join(dir, "out", "amplitude.png")
	assert.Contains(t, stdout, "amplitude: BAND1 16x12")
	assert.Contains(t, stdout, want)
	assert.FileExists(t, want)
	assert.NoFileExists(t, want+".json")
}

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "in")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.txt"), []byte("x"), 0o644))

	code, stdout, stderr := runCLI("-batch", root, "-out", filepath.Join(dir, "out"))
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "processed 0, skipped 2, errors 0")
	assert.DirExists(t, filepath.Join(dir, "out"))

	code, _, stderr = runCLI("-batch", filepath.Join(dir, "missing"), "-out", filepath.Join(dir, "out"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "batch:")
}

func TestRunUsageErrors(t *testing.T) {
	code, _, stderr := runCLI()
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage: sarview")

	code, _, _ = runCLI("-in", "a.tif", "-batch", "dir")
	assert.Equal(t, 2, code)

	code, _, stderr = runCLI("-in", "a.tif", "-autoscale", "magic")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "invalid option")

	code, _, stderr = runCLI("-in", filepath.Join(t.TempDir(), "missing.tif"))
	assert.Equal(t, 1, code)
	assert.True(t, strings.Contains(stderr, "missing.tif"), stderr)
}

func TestOutputFor(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join("/data", "scene.tif"), outputFor("", "/data/scene.tiff", writers.TIFF))
	assert.Equal(t, filepath.Join("/data", "S1A_X.png"), outputFor("", "/data/S1A_X.SAFE/", writers.PNG))
	assert.Equal(t, filepath.Join(dir, "scene.jpg"), outputFor(dir, "/data/scene.tif", writers.JPEG))
	assert.Equal(t, "/tmp/custom.tif", outputFor("/tmp/custom.tif", "/data/scene.tif", writers.TIFF))
}
