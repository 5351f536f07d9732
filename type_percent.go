package tradebook

import (
	"fmt"
	"math"
)

// Percent is a return in percent: 19.8 is +19.8%.
type Percent float64

// PercentOf returns 'pnl' relative to 'base', 0 when base is zero.
func PercentOf(pnl, base Money) Percent {
	if base.IsZero() {
		return 0
	}
	return Percent(pnl.DivMoney(base).Shift(2).InexactFloat64())
}

// Equal compares to the basis point.
func (p Percent) Equal(q Percent) bool { return math.Abs(float64(p-q)) < 0.0001 }

func (p Percent) String() string { return fmt.Sprintf("%.2f%%", float64(p)) }

// SignedString is String with a sign, and "-" for a flat return.
func (p Percent) SignedString() string {
	if s := fmt.Sprintf("%+.2f%%", float64(p)); s != "+0.00%" && s != "-0.00%" {
		return s
	}
	return "-"
}
