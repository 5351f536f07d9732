// Package broker maps the rows of each supported broker export into
// canonical executions.
//
// Each adapter only knows its broker's column names and quirks, the
// position arithmetic is shared and lives in the tradebook package.
package broker

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // exports are read in their exchange timezone

	"github.com/etnz/tradebook"
	"github.com/shopspring/decimal"
)

// Lookup returns the Normalizer for 'format'.
//
// 'loc' is the timezone of timestamps that do not carry one, UTC if nil.
func Lookup(format tradebook.Format, loc *time.Location) (tradebook.Normalizer, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch format {
	case tradebook.Generic:
		return &generic{loc: loc}, nil
	case tradebook.Schwab:
		return &schwab{loc: loc}, nil
	case tradebook.ThinkOrSwim:
		return &thinkorswim{loc: loc}, nil
	case tradebook.IBKR:
		return &ibkr{loc: loc}, nil
	case tradebook.Webull:
		return &webull{loc: loc}, nil
	case tradebook.Lightspeed:
		return &lightspeed{loc: loc}, nil
	case tradebook.Tradovate:
		return &tradovate{loc: loc}, nil
	}
	return nil, fmt.Errorf("%w %q", tradebook.ErrUnknownFormat, format)
}

// cells are the raw values of a row, once located by an adapter.
type cells struct {
	symbol     string
	side       tradebook.SideHints
	price      string
	commission []string // summed, sign ignored
	fees       []string // summed, sign ignored
	currency   string
	id         string
	time       time.Time

	// instrument overrides the decoding of the symbol.
	instrument *tradebook.Instrument
}

// errNoSymbol is reported for trade rows without a symbol.
var errNoSymbol = errors.New("missing symbol")

// execution builds the execution out of a row cells. Errors are
// tradebook.RowError.
func execution(r tradebook.Row, c cells) (*tradebook.Execution, error) {
	fail := func(err error) (*tradebook.Execution, error) {
		return nil, &tradebook.RowError{Line: r.Line, Format: r.Format, Symbol: c.symbol, Err: err}
	}

	raw := strings.ToUpper(strings.TrimSpace(c.symbol))
	if raw == "" {
		return fail(errNoSymbol)
	}
	side, qty, err := tradebook.InferSide(c.side)
	if err != nil {
		return fail(fmt.Errorf("invalid quantity: %w", err))
	}
	if !qty.IsPositive() {
		return fail(errors.New("quantity must be positive"))
	}
	price, err := tradebook.ParseDecimal(c.price)
	if err != nil {
		return fail(fmt.Errorf("invalid price: %w", err))
	}
	price = price.Abs()
	if !price.IsPositive() {
		return fail(errors.New("price must be positive"))
	}
	if c.time.IsZero() {
		return fail(errors.New("missing execution time"))
	}
	commission, err := sum(c.commission)
	if err != nil {
		return fail(fmt.Errorf("invalid commission: %w", err))
	}
	fees, err := sum(c.fees)
	if err != nil {
		return fail(fmt.Errorf("invalid fees: %w", err))
	}

	cur := strings.ToUpper(strings.TrimSpace(c.currency))
	if cur == "" {
		cur = tradebook.DefaultCurrency
	}
	var instrument tradebook.Instrument
	if c.instrument != nil {
		instrument = *c.instrument
	} else {
		instrument = tradebook.DecodeInstrument(raw, c.time)
	}

	return &tradebook.Execution{
		Symbol:     instrument.Code(),
		Side:       side,
		Quantity:   qty,
		Price:      tradebook.M(price, cur),
		Time:       c.time,
		Commission: tradebook.M(commission, cur),
		Fees:       tradebook.M(fees, cur),
		Broker:     r.Format,
		ExternalID: strings.TrimSpace(c.id),
		RawCode:    raw,
		Instrument: instrument,
	}, nil
}

// sum adds amounts, in absolute value: brokers disagree on the sign of fees.
func sum(amounts []string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, a := range amounts {
		d, err := tradebook.ParseAmount(a)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(d.Abs())
	}
	return total, nil
}

// parseTime parses a timestamp, reporting a RowError.
func parseTime(r tradebook.Row, s string, loc *time.Location, layouts ...string) (time.Time, error) {
	t, err := tradebook.ParseTime(s, loc, layouts...)
	if err != nil {
		return time.Time{}, &tradebook.RowError{Line: r.Line, Format: r.Format, Err: fmt.Errorf("invalid time: %w", err)}
	}
	return t, nil
}
