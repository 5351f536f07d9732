package tradebook

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrEmpty is returned when parsing an empty cell.
var ErrEmpty = errors.New("empty value")

// ParseDecimal parses a number as brokers write them: "1,234.50", "$12.3",
// "(100)" for negatives, "-" or "" for nothing.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || s == "--" {
		return decimal.Zero, ErrEmpty
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer(",", "", "$", "", " ", "", "+", "").Replace(s)
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "$")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", s)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// ParseAmount is like ParseDecimal but an empty cell is zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := ParseDecimal(s)
	if errors.Is(err, ErrEmpty) {
		return decimal.Zero, nil
	}
	return d, err
}

// ParseTime parses 's' with the first matching layout, in 'loc'.
func ParseTime(s string, loc *time.Location, layouts ...string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmpty
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}
