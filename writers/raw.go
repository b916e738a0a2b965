package writers

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/klauspost/compress/zstd"
	"github.com/stevecastle/sarview/raster"
)

// rawMagic opens every raw container.
var rawMagic = [4]byte{'S', 'A', 'R', 'G'}

const rawVersion = 1

// ErrBadRaw is returned when a raw container cannot be decoded.
var ErrBadRaw = errors.New("malformed raw grid")

// RawGrid is the contents of a raw container: Channels planes of Rows x Cols
// samples stored pixel-interleaved.
type RawGrid struct {
	Rows     int
	Cols     int
	Channels int
	Depth    raster.BitDepth
	Data     []uint16
}

type rawHeader struct {
	Magic    [4]byte
	Version  uint8
	Depth    uint8
	Channels uint16
	Rows     uint32
	Cols     uint32
}

// RawFromBands interleaves one or more bands of equal shape.
func RawFromBands(bands ...raster.Band) RawGrid {
	if len(bands) == 0 {
		return RawGrid{}
	}
	b0 := bands[0]
	g := RawGrid{Rows: b0.Rows, Cols: b0.Cols, Channels: len(bands), Depth: b0.Depth}
	g.Data = make([]uint16, len(b0.Data)*len(bands))
	for c, b := range bands {
		for i, v := range b.Data {
			g.Data[i*len(bands)+c] = v
		}
	}
	return g
}

// RawFromComposite wraps an RGB composite as a three-channel 8-bit grid.
func RawFromComposite(c raster.Composite) RawGrid {
	g := RawGrid{Rows: c.Rows, Cols: c.Cols, Channels: 3, Depth: raster.Depth8, Data: make([]uint16, len(c.Data))}
	for i, v := range c.Data {
		g.Data[i] = uint16(v)
	}
	return g
}

// WriteRaw writes g as a zstd stream holding a fixed header followed by
// little-endian samples, one byte each at 8-bit depth and two at 16-bit.
func WriteRaw(w io.Writer, g RawGrid) error {
	if len(g.Data) != g.Rows*g.Cols*g.Channels {
		return fmt.Errorf("%d samples for %dx%dx%d: %w", len(g.Data), g.Rows, g.Cols, g.Channels, raster.ErrShapeMismatch)
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return err
	}
	h := rawHeader{
		Magic: rawMagic, Version: rawVersion, Depth: uint8(g.Depth),
		Channels: uint16(g.Channels), Rows: uint32(g.Rows), Cols: uint32(g.Cols),
	}
	if err := binary.Write(enc, binary.LittleEndian, h); err != nil {
		enc.Close()
		return err
	}
	var buf []byte
	if g.Depth == raster.Depth16 {
		buf = make([]byte, 2*len(g.Data))
		for i, v := range g.Data {
			binary.LittleEndian.PutUint16(buf[2*i:], v)
		}
	} else {
		buf = make([]byte, len(g.Data))
		for i, v := range g.Data {
			buf[i] = uint8(v)
		}
	}
	if _, err := enc.Write(buf); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadRaw decodes a container written by WriteRaw.
func ReadRaw(r io.Reader) (RawGrid, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return RawGrid{}, err
	}
	defer dec.Close()

	var h rawHeader
	if err := binary.Read(dec, binary.LittleEndian, &h); err != nil {
		return RawGrid{}, fmt.Errorf("read header: %w", err)
	}
	if h.Magic != rawMagic {
		return RawGrid{}, fmt.Errorf("magic %q: %w", h.Magic[:], ErrBadRaw)
	}
	if h.Version != rawVersion {
		return RawGrid{}, fmt.Errorf("version %d: %w", h.Version, ErrBadRaw)
	}
	depth := raster.BitDepth(h.Depth)
	if depth != raster.Depth8 && depth != raster.Depth16 {
		return RawGrid{}, fmt.Errorf("depth %d: %w", h.Depth, ErrBadRaw)
	}
	g := RawGrid{Rows: int(h.Rows), Cols: int(h.Cols), Channels: int(h.Channels), Depth: depth}
	n := g.Rows * g.Cols * g.Channels
	width := 1
	if depth == raster.Depth16 {
		width = 2
	}
	buf := make([]byte, n*width)
	if _, err := io.ReadFull(dec, buf); err != nil {
		return RawGrid{}, fmt.Errorf("read samples: %w", err)
	}
	g.Data = make([]uint16, n)
	for i := range g.Data {
		if width == 2 {
			g.Data[i] = binary.LittleEndian.Uint16(buf[2*i:])
		} else {
			g.Data[i] = uint16(buf[i])
		}
	}
	return g, nil
}

// Band extracts channel c as a band.
func (g RawGrid) Band(c int) (raster.Band, error) {
	if c < 0 || c >= g.Channels {
		return raster.Band{}, fmt.Errorf("channel %d of %d: %w", c, g.Channels, ErrBadRaw)
	}
	b := raster.NewBand(g.Rows, g.Cols, g.Depth)
	for i := range b.Data {
		b.Data[i] = g.Data[i*g.Channels+c]
	}
	return b, nil
}

// WriteRawFile writes g to path in the raw container format.
func WriteRawFile(path string, g RawGrid) error {
	err := writeFile(path, func(w io.Writer) error { return WriteRaw(w, g) })
	if err != nil {
		return err
	}
	log.Printf("Wrote %s (%dx%dx%d %s raw)", path, g.Cols, g.Rows, g.Channels, g.Depth)
	return nil
}
