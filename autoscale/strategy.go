package autoscale

import (
	"fmt"
	"strings"
)

// Strategy selects how clip bounds and gamma are derived from a distribution snapshot.
type Strategy int

const (
	Standard Strategy = iota
	Robust
	Adaptive
	Equalized
	Tamed
	CLAHE
	Default
)

var strategyNames = map[Strategy]string{
	Standard:  "standard",
	Robust:    "robust",
	Adaptive:  "adaptive",
	Equalized: "equalized",
	Tamed:     "tamed",
	CLAHE:     "clahe",
	Default:   "default",
}

func (s Strategy) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return "unknown"
}

// ParseStrategy maps a case-insensitive name onto a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for s, v := range strategyNames {
		if v == n {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown autoscale strategy %q", name)
}

// MarshalText encodes the strategy by name.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a strategy name.
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Strategies lists every strategy in declaration order.
func Strategies() []Strategy {
	return []Strategy{Standard, Robust, Adaptive, Equalized, Tamed, CLAHE, Default}
}
