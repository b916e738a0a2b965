package synrgb

import (
	"fmt"
	"strings"

	"github.com/stevecastle/sarview/raster"
)

// Mode names a composition recipe.
type Mode int

const (
	Default Mode = iota
	RgbRatio
	SarUrban
	Enhanced
)

var modeNames = map[Mode]string{
	Default:  "default",
	RgbRatio: "rgb-ratio",
	SarUrban: "sar-urban",
	Enhanced: "enhanced",
}

func (m Mode) String() string {
	if n, ok := modeNames[m]; ok {
		return n
	}
	return "unknown"
}

// ParseMode maps a case-insensitive mode name onto a Mode.
// Underscores are accepted in place of dashes.
func ParseMode(name string) (Mode, error) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	if n == "" {
		return Default, nil
	}
	for m, v := range modeNames {
		if v == n || strings.ReplaceAll(v, "-", "") == n {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown synthetic RGB mode %q", name)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ComposeMode composes b1 and b2 with mode. Every mode currently resolves to
// the default recipe.
func ComposeMode(mode Mode, b1, b2 raster.Band) (raster.Composite, error) {
	switch mode {
	case Default, RgbRatio, SarUrban, Enhanced:
		return Compose(b1, b2)
	}
	return raster.Composite{}, fmt.Errorf("composite mode %d: %w", int(mode), raster.ErrNotImplemented)
}

// ComposeRgbRatio is the Copernicus "RGB ratio" recipe.
func ComposeRgbRatio(b1, b2 raster.Band) (raster.Composite, error) {
	return raster.Composite{}, fmt.Errorf("%s composite: %w", RgbRatio, raster.ErrNotImplemented)
}

// ComposeSarUrban is the Copernicus "SAR urban" recipe.
func ComposeSarUrban(b1, b2 raster.Band) (raster.Composite, error) {
	return raster.Composite{}, fmt.Errorf("%s composite: %w", SarUrban, raster.ErrNotImplemented)
}

// ComposeEnhanced is the Copernicus "enhanced visualization" recipe.
func ComposeEnhanced(b1, b2 raster.Band) (raster.Composite, error) {
	return raster.Composite{}, fmt.Errorf("%s composite: %w", Enhanced, raster.ErrNotImplemented)
}
