// Package geometry resamples and pads quantized bands and records how the
// output pixel grid relates to the source so geo-metadata can follow it.
package geometry

import (
	"fmt"
	"image"
	"log"
	"math"

	"github.com/nfnt/resize"
	"github.com/stevecastle/sarview/raster"
)

// Request describes one geometric transform. Band2 is only set for dual-band output.
type Request struct {
	Band1 raster.Band
	Band2 *raster.Band
	// Dual marks a two-band request; 16-bit dual-band output needs Band2.
	Dual bool
	// TargetSize is the requested long-side length in pixels; 0 keeps the source size.
	TargetSize int
	Pad        bool
}

// Result is the transformed band(s) plus the geometric record.
type Result struct {
	Cols    int
	Rows    int
	Bands   []raster.Band
	ScaleX  float64
	ScaleY  float64
	PadLeft int
	PadTop  int
	// NoOp is set when a target size larger than the source was ignored.
	NoOp bool
}

// TargetDims scales cols x rows so the long side equals target, rounding the
// short side. A target at or above the long side keeps the source size.
func TargetDims(cols, rows, target int) (int, int, bool) {
	long, short := max(cols, rows), min(cols, rows)
	if target <= 0 || target >= long {
		return cols, rows, false
	}
	s := int(math.Round(float64(short) * float64(target) / float64(long)))
	if cols >= rows {
		return target, s, true
	}
	return s, target, true
}

// Transform resamples and pads the requested bands.
func Transform(req Request) (Result, error) {
	b1 := req.Band1
	if req.Dual && b1.Depth == raster.Depth16 && req.Band2 == nil {
		return Result{}, raster.ErrMissingBand
	}
	bands := []raster.Band{b1}
	if req.Band2 != nil {
		if !b1.SameShape(*req.Band2) {
			return Result{}, fmt.Errorf("transform %dx%d and %dx%d bands: %w", b1.Cols, b1.Rows, req.Band2.Cols, req.Band2.Rows, raster.ErrShapeMismatch)
		}
		bands = append(bands, *req.Band2)
	}

	res := Result{Cols: b1.Cols, Rows: b1.Rows, Bands: bands, ScaleX: 1, ScaleY: 1}
	if req.TargetSize > 0 {
		c, r, resampled := TargetDims(b1.Cols, b1.Rows, req.TargetSize)
		if req.TargetSize > max(b1.Cols, b1.Rows) {
			log.Printf("Target size %d exceeds source long side %d, keeping %dx%d", req.TargetSize, max(b1.Cols, b1.Rows), b1.Cols, b1.Rows)
			res.NoOp = true
		}
		if resampled {
			for i, b := range res.Bands {
				out, err := Resize(b, c, r)
				if err != nil {
					return Result{}, err
				}
				res.Bands[i] = out
			}
			log.Printf("Resampled %dx%d to %dx%d", b1.Cols, b1.Rows, c, r)
			res.ScaleX = float64(c) / float64(b1.Cols)
			res.ScaleY = float64(r) / float64(b1.Rows)
			res.Cols, res.Rows = c, r
		}
	}

	if req.Pad {
		for i, b := range res.Bands {
			res.Bands[i], res.PadLeft, res.PadTop = Pad(b)
		}
		dim := max(res.Cols, res.Rows)
		res.Cols, res.Rows = dim, dim
	}
	return res, nil
}

// Resize resamples b to cols x rows with a Lanczos-3 kernel.
func Resize(b raster.Band, cols, rows int) (raster.Band, error) {
	if b.Depth == raster.Depth16 {
		return Resize16(b, cols, rows)
	}
	return Resize8(b, cols, rows)
}

// Resize8 resamples an 8-bit band.
func Resize8(b raster.Band, cols, rows int) (raster.Band, error) {
	src := image.NewGray(image.Rect(0, 0, b.Cols, b.Rows))
	for i, v := range b.Data {
		src.Pix[i] = uint8(v)
	}
	dst, err := lanczos(src, cols, rows)
	if err != nil {
		return raster.Band{}, err
	}
	out := raster.NewBand(rows, cols, b.Depth)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			out.Data[y*cols+x] = uint16(dst.GrayAt(dst.Rect.Min.X+x, dst.Rect.Min.Y+y).Y)
		}
	}
	return out, nil
}

// Resize16 resamples a 16-bit band through 8 bits: samples are shifted down,
// resampled and shifted back up, so the low byte of every output is zero.
func Resize16(b raster.Band, cols, rows int) (raster.Band, error) {
	narrow := raster.Band{Rows: b.Rows, Cols: b.Cols, Depth: raster.Depth8, Data: make([]uint16, len(b.Data))}
	for i, v := range b.Data {
		narrow.Data[i] = v >> 8
	}
	out, err := Resize8(narrow, cols, rows)
	if err != nil {
		return raster.Band{}, err
	}
	out.Depth = raster.Depth16
	for i, v := range out.Data {
		out.Data[i] = v << 8
	}
	return out, nil
}

func lanczos(src image.Image, cols, rows int) (dst *image.Gray, err error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("target %dx%d: %w", cols, rows, raster.ErrResampleFailed)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v: %w", r, raster.ErrResampleFailed)
		}
	}()
	img := resize.Resize(uint(cols), uint(rows), src, resize.Lanczos3)
	g, ok := img.(*image.Gray)
	if !ok {
		return nil, fmt.Errorf("unexpected image type %T: %w", img, raster.ErrResampleFailed)
	}
	return g, nil
}

// Pad centres b in a square canvas of its long side with a zero border and
// returns the left and top offsets.
func Pad(b raster.Band) (raster.Band, int, int) {
	dim := max(b.Cols, b.Rows)
	left, top := (dim-b.Cols)/2, (dim-b.Rows)/2
	out := raster.NewBand(dim, dim, b.Depth)
	for y := 0; y < b.Rows; y++ {
		copy(out.Data[(y+top)*dim+left:(y+top)*dim+left+b.Cols], b.Data[y*b.Cols:(y+1)*b.Cols])
	}
	return out, left, top
}

// AdjustGeoTransform rescales the pixel size of gt by the resampling factor
// and moves the origin out by the padding.
func AdjustGeoTransform(gt [6]float64, res Result) [6]float64 {
	if res.ScaleX > 0 {
		gt[1] /= res.ScaleX
	}
	if res.ScaleY > 0 {
		gt[5] /= res.ScaleY
	}
	gt[0] -= float64(res.PadLeft) * gt[1]
	gt[3] -= float64(res.PadTop) * gt[5]
	return gt
}
