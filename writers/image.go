package writers

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"os"

	"github.com/stevecastle/sarview/raster"
	"golang.org/x/image/tiff"
)

// JPEGQuality is the encoder quality used for every JPEG.
const JPEGQuality = 100

func bandImage(b raster.Band, keep16 bool) image.Image {
	r := image.Rect(0, 0, b.Cols, b.Rows)
	if b.Depth == raster.Depth16 && keep16 {
		img := image.NewGray16(r)
		for i, v := range b.Data {
			img.Pix[2*i] = uint8(v >> 8)
			img.Pix[2*i+1] = uint8(v)
		}
		return img
	}
	img := image.NewGray(r)
	copy(img.Pix, b.Bytes())
	return img
}

func compositeImage(c raster.Composite) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, c.Cols, c.Rows))
	for i := 0; i < c.Rows*c.Cols; i++ {
		copy(img.Pix[4*i:4*i+3], c.Data[3*i:3*i+3])
		img.Pix[4*i+3] = 0xff
	}
	return img
}

func encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case JPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	case PNG:
		return png.Encode(w, img)
	}
	return fmt.Errorf("format %s cannot encode images", f)
}

func writeFile(path string, fn func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := fn(bw); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteBand encodes one band. JPEG output of a 16-bit band keeps the high byte.
func WriteBand(path string, b raster.Band, f Format) error {
	err := writeFile(path, func(w io.Writer) error {
		if f == Raw {
			return WriteRaw(w, RawFromBands(b))
		}
		return encode(w, bandImage(b, f != JPEG), f)
	})
	if err != nil {
		return err
	}
	log.Printf("Wrote %s (%dx%d %s %s)", path, b.Cols, b.Rows, b.Depth, f)
	return nil
}

// WriteComposite encodes an RGB composite.
func WriteComposite(path string, c raster.Composite, f Format) error {
	err := writeFile(path, func(w io.Writer) error {
		if f == Raw {
			return WriteRaw(w, RawFromComposite(c))
		}
		return encode(w, compositeImage(c), f)
	})
	if err != nil {
		return err
	}
	log.Printf("Wrote %s (%dx%d RGB %s)", path, c.Cols, c.Rows, f)
	return nil
}
