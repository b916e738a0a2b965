package geometry

import (
	"fmt"
	"image"
	"log"

	"github.com/nfnt/resize"
	"github.com/stevecastle/sarview/raster"
	"golang.org/x/image/draw"
)

// CompositeImage wraps an interleaved RGB composite as an opaque RGBA image.
func CompositeImage(c raster.Composite) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, c.Cols, c.Rows))
	for i := 0; i < c.Rows*c.Cols; i++ {
		copy(img.Pix[4*i:4*i+3], c.Data[3*i:3*i+3])
		img.Pix[4*i+3] = 0xff
	}
	return img
}

func compositeFrom(img *image.RGBA) raster.Composite {
	b := img.Bounds()
	out := raster.NewComposite(b.Dy(), b.Dx())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			o := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			i := 3 * (y*b.Dx() + x)
			copy(out.Data[i:i+3], img.Pix[o:o+3])
		}
	}
	return out
}

// TransformComposite applies the same resample and pad rules as Transform to
// an RGB composite.
func TransformComposite(c raster.Composite, target int, pad bool) (raster.Composite, Result, error) {
	res := Result{Cols: c.Cols, Rows: c.Rows, ScaleX: 1, ScaleY: 1}
	img := CompositeImage(c)

	if target > 0 {
		cols, rows, resampled := TargetDims(c.Cols, c.Rows, target)
		if target > max(c.Cols, c.Rows) {
			log.Printf("Target size %d exceeds composite long side %d, keeping %dx%d", target, max(c.Cols, c.Rows), c.Cols, c.Rows)
			res.NoOp = true
		}
		if resampled {
			out, err := resizeRGBA(img, cols, rows)
			if err != nil {
				return raster.Composite{}, Result{}, err
			}
			img = out
			res.ScaleX = float64(cols) / float64(c.Cols)
			res.ScaleY = float64(rows) / float64(c.Rows)
			res.Cols, res.Rows = cols, rows
		}
	}

	if pad {
		dim := max(res.Cols, res.Rows)
		res.PadLeft, res.PadTop = (dim-res.Cols)/2, (dim-res.Rows)/2
		canvas := image.NewRGBA(image.Rect(0, 0, dim, dim))
		draw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, draw.Src)
		draw.Copy(canvas, image.Pt(res.PadLeft, res.PadTop), img, img.Bounds(), draw.Src, nil)
		img = canvas
		res.Cols, res.Rows = dim, dim
	}
	return compositeFrom(img), res, nil
}

func resizeRGBA(src *image.RGBA, cols, rows int) (dst *image.RGBA, err error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("target %dx%d: %w", cols, rows, raster.ErrResampleFailed)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v: %w", r, raster.ErrResampleFailed)
		}
	}()
	img := resize.Resize(uint(cols), uint(rows), src, resize.Lanczos3)
	out, ok := img.(*image.RGBA)
	if !ok {
		out = image.NewRGBA(image.Rect(0, 0, cols, rows))
		draw.Copy(out, image.Point{}, img, img.Bounds(), draw.Src, nil)
	}
	return out, nil
}
