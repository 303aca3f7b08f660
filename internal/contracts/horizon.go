package contracts

import (
	"fmt"
	"strings"
)

// Horizon 예측 구간 (5 또는 30 거래일)
type Horizon string

const (
	Horizon5D  Horizon = "5d"
	Horizon30D Horizon = "30d"
)

// Horizons 모든 호라이즌 (순서 고정)
var Horizons = []Horizon{Horizon5D, Horizon30D}

// Length returns the fixed number of trading-day points in the horizon
func (h Horizon) Length() int {
	switch h {
	case Horizon5D:
		return 5
	case Horizon30D:
		return 30
	default:
		return 0
	}
}

// Valid reports whether h is one of the known horizons
func (h Horizon) Valid() bool {
	return h.Length() > 0
}

// ParseHorizon accepts "5d", "30d" and the "1mo" alias used by the screener
func ParseHorizon(s string) (Horizon, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "5d", "5":
		return Horizon5D, nil
	case "30d", "30", "1mo":
		return Horizon30D, nil
	default:
		return "", fmt.Errorf("%w: unknown horizon %q", ErrInvalidInput, s)
	}
}
