package broker

import (
	"fmt"
	"strings"
	"time"

	"github.com/etnz/tradebook"
	"github.com/etnz/tradebook/date"
	"github.com/shopspring/decimal"
)

// thinkorswim reads the "Account Trade History" section of a thinkorswim
// account statement:
//
//	,Exec Time,Spread,Side,Qty,Pos Effect,Symbol,Exp,Strike,Type,Price,Net Price,Order Type
//
// Quantities are signed, options are spread over the Symbol, Exp, Strike and
// Type columns. Legs of a multi leg spread have an empty Exec Time.
type thinkorswim struct {
	loc  *time.Location
	last time.Time // exec time of the previous row, for spread legs
}

func (tos *thinkorswim) Normalize(r tradebook.Row) (*tradebook.Execution, error) {
	t := tos.last
	if s := r.Get("exec time"); s != "" {
		var err error
		t, err = parseTime(r, s, tos.loc, "1/2/06 15:04:05", "01/02/2006 15:04:05", "2006-01-02 15:04:05")
		if err != nil {
			return nil, err
		}
		tos.last = t
	}

	symbol := r.Get("symbol")
	c := cells{
		symbol: symbol,
		side:   tradebook.SideHints{Explicit: r.Get("side"), Quantity: r.Get("qty"), Signed: true},
		price:  r.Get("price"),
		time:   t,
	}
	switch typ := strings.ToUpper(r.Get("type")); typ {
	case "CALL", "PUT":
		instrument, err := tosOption(symbol, r.Get("exp"), r.Get("strike"), typ)
		if err != nil {
			return nil, &tradebook.RowError{Line: r.Line, Format: r.Format, Symbol: symbol, Err: err}
		}
		c.instrument = &instrument
	}
	return execution(r, c)
}

// tosOption builds an option from the thinkorswim columns, the expiration is
// written "17 JAN 25".
func tosOption(underlying, exp, strike, typ string) (tradebook.Instrument, error) {
	e, err := time.Parse("2 Jan 06", exp)
	if err != nil {
		return tradebook.Instrument{}, fmt.Errorf("invalid expiration %q", exp)
	}
	k, err := decimal.NewFromString(strings.TrimSpace(strike))
	if err != nil {
		return tradebook.Instrument{}, fmt.Errorf("invalid strike %q", strike)
	}
	ot := tradebook.Call
	if typ == "PUT" {
		ot = tradebook.Put
	}
	return tradebook.Instrument{
		Type:       tradebook.Option,
		Underlying: strings.ToUpper(strings.TrimSpace(underlying)),
		Strike:     k,
		Expiration: date.Of(e),
		OptionType: ot,
		Multiplier: decimal.NewFromInt(100),
	}, nil
}
