package pipeline

import (
	"fmt"
	"strings"

	"github.com/stevecastle/sarview/polar"
)

// Selection says which channels of a product are rendered and how.
type Selection struct {
	// Channel is set for single-polarization output.
	Channel string
	// Op combines a co-pol/cross-pol pair. Nil with Pair set renders both
	// channels as a multiband image.
	Op   *polar.Op
	Pair bool
}

// ParsePolarization accepts a channel name (vv, vh, hh, hv), "multiband" or a
// polarization operation name.
func ParsePolarization(s string) (Selection, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	switch n {
	case "vv", "vh", "hh", "hv":
		return Selection{Channel: strings.ToUpper(n)}, nil
	case "", "multiband", "multi-band", "dual":
		return Selection{Pair: true}, nil
	}
	op, err := polar.ParseOp(n)
	if err != nil {
		return Selection{}, fmt.Errorf("unknown polarization %q", s)
	}
	return Selection{Op: &op, Pair: true}, nil
}

func (s Selection) String() string {
	switch {
	case s.Op != nil:
		return s.Op.String()
	case s.Pair:
		return "multiband"
	}
	return strings.ToLower(s.Channel)
}

// pairs lists co-pol/cross-pol combinations in preference order.
var pairs = [][2]string{{"VV", "VH"}, {"HH", "HV"}}

// Resolve picks the channels to read from the available polarizations.
func (s Selection) Resolve(available []string) ([]string, error) {
	has := map[string]bool{}
	for _, p := range available {
		has[strings.ToUpper(p)] = true
	}
	if !s.Pair {
		if !has[s.Channel] {
			return nil, fmt.Errorf("polarization %s not in %v", s.Channel, available)
		}
		return []string{s.Channel}, nil
	}
	for _, p := range pairs {
		if has[p[0]] && has[p[1]] {
			return []string{p[0], p[1]}, nil
		}
	}
	return nil, fmt.Errorf("%s needs a co-pol/cross-pol pair, have %v", s, available)
}
