// Package writers encodes rendered scenes to image files and writes the
// georeferencing and metadata files that travel with them.
package writers

import (
	"fmt"
	"strings"
)

// Format is an output image encoding.
type Format int

const (
	TIFF Format = iota
	JPEG
	PNG
	Raw
)

func (f Format) String() string {
	switch f {
	case TIFF:
		return "tiff"
	case JPEG:
		return "jpeg"
	case PNG:
		return "png"
	case Raw:
		return "raw"
	}
	return "unknown"
}

// Ext returns the file extension written for f, including the dot.
func (f Format) Ext() string {
	switch f {
	case JPEG:
		return ".jpg"
	case PNG:
		return ".png"
	case Raw:
		return ".sarg.zst"
	}
	return ".tif"
}

// ParseFormat maps a format name or file extension onto a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "tiff", "tif", "gtiff", "geotiff":
		return TIFF, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "raw", "sarg", "zst":
		return Raw, nil
	}
	return 0, fmt.Errorf("unknown output format %q", s)
}

func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Format) UnmarshalText(b []byte) error {
	v, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
