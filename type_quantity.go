package tradebook

import (
	"fmt"
	"reflect"

	"github.com/shopspring/decimal"
)

// Number is what Q and M accept.
type Number interface {
	~float32 | ~float64 | ~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64 | decimal.Decimal
}

func newDecimal[T Number](value T) decimal.Decimal {
	switch v := any(value).(type) {
	case decimal.Decimal:
		return v
	case float32:
		return decimal.NewFromFloat32(v)
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return decimal.NewFromFloat(rv.Float())
	case reflect.Int, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int())
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		return decimal.NewFromUint64(rv.Uint())
	}
	panic(fmt.Sprintf("unsupported number %T", value))
}

// Quantity is a number of shares or contracts.
//
// Executions always carry a positive quantity, positions carry a signed one
// (positive for long, negative for short).
type Quantity struct {
	value decimal.Decimal
}

// Q returns a quantity.
func Q[T Number](value T) Quantity {
	return Quantity{value: newDecimal(value)}
}

func (t Quantity) Equal(p Quantity) bool           { return t.value.Equal(p.value) }
func (t Quantity) LessThan(quantity Quantity) bool { return t.value.LessThan(quantity.value) }
func (t Quantity) Div(p Quantity) Quantity         { return Quantity{value: t.value.Div(p.value)} }
func (t Quantity) Mul(p Quantity) Quantity         { return Quantity{value: t.value.Mul(p.value)} }
func (t Quantity) Add(p Quantity) Quantity         { return Quantity{value: t.value.Add(p.value)} }
func (t Quantity) Sub(p Quantity) Quantity         { return Quantity{value: t.value.Sub(p.value)} }
func (t Quantity) GreaterThan(p Quantity) bool     { return t.value.GreaterThan(p.value) }
func (t Quantity) IsNegative() bool                { return t.value.IsNegative() }
func (t Quantity) IsPositive() bool                { return t.value.IsPositive() }
func (t Quantity) IsZero() bool                    { return t.value.IsZero() }
func (t Quantity) Abs() Quantity                   { return Quantity{value: t.value.Abs()} }
func (t Quantity) Neg() Quantity                   { return Quantity{value: t.value.Neg()} }
func (t Quantity) Decimal() decimal.Decimal        { return t.value }
func (q Quantity) String() string                  { return q.value.String() }

// MarshalJSON writes the quantity as a bare JSON number.
func (t Quantity) MarshalJSON() ([]byte, error) { return []byte(t.value.String()), nil }

func (t *Quantity) UnmarshalJSON(data []byte) error { return t.value.UnmarshalJSON(data) }
