package tradebook

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// Side is the direction of a single execution.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Direction is the direction of a round-trip trade.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// opening returns the execution side that opens a trade in direction d.
func (d Direction) opening() Side {
	if d == Short {
		return Sell
	}
	return Buy
}

// Execution is one fill as reported by a broker, normalized.
type Execution struct {
	Symbol     string
	Side       Side
	Quantity   Quantity // always positive
	Price      Money    // per share or per contract, always positive
	Time       time.Time
	Commission Money
	Fees       Money
	Broker     Format
	ExternalID string // broker-native unique fill id, if any
	RawCode    string // the instrument code as found in the export
	Instrument Instrument

	// Origin is the identity of the broker fill this execution was carved from,
	// when a fill had to be split across a zero crossing.
	Origin string
}

// Signed returns the quantity with the sign of the side: positive for buys.
func (e Execution) Signed() Quantity {
	if e.Side == Sell {
		return e.Quantity.Neg()
	}
	return e.Quantity
}

// Notional returns quantity × price, without contract multiplier.
func (e Execution) Notional() Money { return e.Price.Mul(e.Quantity) }

// Cost returns commission and fees together.
func (e Execution) Cost() Money { return e.Commission.Add(e.Fees) }

// Currency returns the currency the execution was priced in.
func (e Execution) Currency() string {
	if c := e.Price.Currency(); c != "" {
		return c
	}
	return DefaultCurrency
}

// split carves 'q' out of e. Commission and fees are prorated, the tail keeps
// the rounding remainder. Both parts keep e's identity as origin.
func (e Execution) split(q Quantity) (head, tail Execution) {
	origin := e.Origin
	if origin == "" {
		origin = string(e.Identity())
	}

	head, tail = e, e
	head.Origin, tail.Origin = origin, origin

	head.Quantity = q
	head.Commission = e.Commission.Mul(q).Div(e.Quantity)
	head.Fees = e.Fees.Mul(q).Div(e.Quantity)

	tail.Quantity = e.Quantity.Sub(q)
	tail.Commission = e.Commission.Sub(head.Commission)
	tail.Fees = e.Fees.Sub(head.Fees)
	return head, tail
}

// SortExecutions sorts executions chronologically. The sort is stable so that
// fills sharing a timestamp keep their file order.
func SortExecutions(executions []Execution) {
	slices.SortStableFunc(executions, func(a, b Execution) int {
		return a.Time.Compare(b.Time)
	})
}

// GroupBySymbol splits executions per symbol, each group chronologically
// sorted. It returns the symbols in alphabetical order.
func GroupBySymbol(executions []Execution) (symbols []string, groups map[string][]Execution) {
	groups = make(map[string][]Execution)
	for _, e := range executions {
		if _, ok := groups[e.Symbol]; !ok {
			symbols = append(symbols, e.Symbol)
		}
		groups[e.Symbol] = append(groups[e.Symbol], e)
	}
	for _, g := range groups {
		SortExecutions(g)
	}
	slices.SortFunc(symbols, func(a, b string) int {
		return cmp.Compare(strings.ToUpper(a), strings.ToUpper(b))
	})
	return symbols, groups
}
