package tradebook

import (
	"slices"
	"time"
)

// Reconstructor replays one symbol's executions, in time order, into
// round-trip trades.
//
// The signed position after each Apply is always the signed sum of the
// applied executions (plus the seed). A trade is emitted only when the
// position comes back to exactly zero, and no trade ever spans a zero
// crossing.
type Reconstructor struct {
	symbol   string
	position Quantity
	known    KnownExecutions
	current  *roundTrip
}

// roundTrip is the in-progress trade.
type roundTrip struct {
	side          Direction
	entryNotional Money // Σ qty·price of the opening executions
	exitNotional  Money // Σ qty·price of the closing executions
	entryQty      Quantity
	exitQty       Quantity
	fees          Money
	executions    []Execution
	guard         DedupGuard
	instrument    Instrument
	first, last   time.Time

	existing      bool   // hydrated from a persisted open position
	sourceTradeID string // id of that position
	touched       bool   // at least one execution applied in this run
}

// NewReconstructor returns a reconstructor for 'symbol'.
//
// 'seed' is the currently open position for that symbol, if any. 'known'
// filters out executions already accounted for in persisted trades, it can be
// nil.
func NewReconstructor(symbol string, seed *OpenPosition, known KnownExecutions) *Reconstructor {
	r := &Reconstructor{symbol: symbol, known: known}
	if seed == nil || !seed.Quantity.IsPositive() {
		return r
	}
	rt := &roundTrip{
		side:          seed.Side,
		entryNotional: seed.EntryPrice.Mul(seed.Quantity),
		entryQty:      seed.Quantity,
		fees:          seed.Commission,
		executions:    slices.Clone(seed.Executions),
		instrument:    seed.Instrument,
		first:         seed.EntryTime,
		last:          seed.EntryTime,
		existing:      true,
		sourceTradeID: seed.TradeID,
	}
	for _, e := range seed.Executions {
		rt.guard.Add(e.Identity())
		rt.stretch(e.Time)
	}
	rt.replay(seed)
	r.current = rt
	r.position = seed.Quantity
	if seed.Side == Short {
		r.position = seed.Quantity.Neg()
	}
	return r
}

// Position returns the current signed position: positive long, negative short.
func (r *Reconstructor) Position() Quantity { return r.position }

// Apply processes the next execution and returns the trades it closed, most
// of the time none, one when the position goes flat, and two consecutive ones
// never (an overshoot closes one trade and opens the next).
func (r *Reconstructor) Apply(e Execution) []Trade {
	if !e.Quantity.IsPositive() {
		return nil
	}
	if r.known != nil && r.known.Seen(e.Identity()) {
		return nil
	}

	var closed []Trade
	for {
		if r.current == nil {
			r.open(e)
		}
		rt := r.current
		if rt.guard.Seen(e.Identity()) {
			return closed
		}

		// An execution on the closing side larger than the position would
		// cross zero: close with the exact remainder and reopen with the rest.
		if e.Side != rt.side.opening() && e.Quantity.GreaterThan(r.position.Abs()) {
			head, tail := e.split(r.position.Abs())
			r.take(head)
			closed = append(closed, r.close())
			e = tail
			continue
		}

		r.take(e)
		if r.position.IsZero() {
			closed = append(closed, r.close())
		}
		return closed
	}
}

// Finish returns the open position snapshot left after the last execution,
// or nil if the position is flat. A seeded position that no execution of this
// run touched is not returned: nothing changed.
func (r *Reconstructor) Finish() *Trade {
	rt := r.current
	if rt == nil || r.position.IsZero() || (rt.existing && !rt.touched) {
		return nil
	}
	mult := rt.instrument.multiplier()
	entryPrice := rt.entryNotional.Div(rt.entryQty)

	// realized part of partial exits
	realized := rt.exitNotional.Sub(entryPrice.Mul(rt.exitQty))
	if rt.side == Short {
		realized = realized.Neg()
	}
	pnl := realized.Mul(mult).Sub(rt.fees)

	return &Trade{
		Symbol:        r.symbol,
		Side:          rt.side,
		EntryTime:     rt.first,
		Quantity:      r.position.Abs(),
		EntryPrice:    entryPrice,
		PnL:           pnl,
		PnLPercent:    PercentOf(pnl, rt.entryNotional.Mul(mult)),
		Commission:    rt.fees,
		Executions:    rt.executions,
		Instrument:    rt.instrument,
		IsUpdate:      rt.existing,
		SourceTradeID: rt.sourceTradeID,
	}
}

// open starts a new trade in the direction of 'e'.
func (r *Reconstructor) open(e Execution) {
	side := Long
	if e.Side == Sell {
		side = Short
	}
	cur := e.Currency()
	r.current = &roundTrip{
		side:          side,
		entryNotional: M(0, cur),
		exitNotional:  M(0, cur),
		fees:          M(0, cur),
		instrument:    e.Instrument,
		first:         e.Time,
		last:          e.Time,
	}
}

// take appends e to the current trade and updates the accumulators.
func (r *Reconstructor) take(e Execution) {
	rt := r.current
	rt.guard.Add(e.Identity())
	rt.executions = append(rt.executions, e)
	rt.touched = true
	rt.stretch(e.Time)

	r.position = r.position.Add(e.Signed())

	if e.Side == rt.side.opening() {
		rt.entryNotional = rt.entryNotional.Add(e.Notional())
		rt.entryQty = rt.entryQty.Add(e.Quantity)
	} else {
		rt.exitNotional = rt.exitNotional.Add(e.Notional())
		rt.exitQty = rt.exitQty.Add(e.Quantity)
	}
	rt.fees = rt.fees.Add(e.Cost())
}

// close turns the current trade into a closed Trade and clears it.
func (r *Reconstructor) close() Trade {
	rt := r.current
	r.current = nil

	mult := rt.instrument.multiplier()
	entryValue := rt.entryNotional.Mul(mult)
	exitValue := rt.exitNotional.Mul(mult)

	var pnl Money
	if rt.side == Long {
		pnl = exitValue.Sub(entryValue).Sub(rt.fees)
	} else {
		pnl = entryValue.Sub(exitValue).Sub(rt.fees)
	}
	exitPrice := rt.exitNotional.Div(rt.exitQty)
	exitTime := rt.last

	return Trade{
		Symbol:        r.symbol,
		Side:          rt.side,
		EntryTime:     rt.first,
		ExitTime:      &exitTime,
		Quantity:      rt.entryQty,
		EntryPrice:    rt.entryNotional.Div(rt.entryQty),
		ExitPrice:     &exitPrice,
		PnL:           pnl,
		PnLPercent:    PercentOf(pnl, entryValue),
		Commission:    rt.fees,
		Executions:    rt.executions,
		Instrument:    rt.instrument,
		IsUpdate:      rt.existing,
		SourceTradeID: rt.sourceTradeID,
	}
}

// replay rebuilds the entry and exit accumulators from the seed executions,
// so that partial exits of a previous run count in the final pnl. The seed
// summary is kept when its executions do not add up to its quantity.
func (rt *roundTrip) replay(seed *OpenPosition) {
	if len(seed.Executions) == 0 {
		return
	}
	var net, entryQty, exitQty Quantity
	var entry, exit, fees Money
	for _, e := range seed.Executions {
		if e.Side == seed.Side.opening() {
			net = net.Add(e.Quantity)
			entryQty = entryQty.Add(e.Quantity)
			entry = entry.Add(e.Notional())
		} else {
			net = net.Sub(e.Quantity)
			exitQty = exitQty.Add(e.Quantity)
			exit = exit.Add(e.Notional())
		}
		fees = fees.Add(e.Cost())
	}
	if !net.Equal(seed.Quantity) || !entryQty.IsPositive() {
		return
	}
	rt.entryNotional, rt.entryQty = entry, entryQty
	rt.exitNotional, rt.exitQty = exit, exitQty
	rt.fees = fees
}

// stretch widens the [first, last] time window of the trade to t.
func (rt *roundTrip) stretch(t time.Time) {
	if t.IsZero() {
		return
	}
	if rt.first.IsZero() || t.Before(rt.first) {
		rt.first = t
	}
	if t.After(rt.last) {
		rt.last = t
	}
}

// Reconstruct replays 'executions', already sorted in time order, and returns
// the closed trades followed by the open position snapshot, if any.
func Reconstruct(symbol string, executions []Execution, seed *OpenPosition, known KnownExecutions) []Trade {
	r := NewReconstructor(symbol, seed, known)
	var trades []Trade
	for _, e := range executions {
		trades = append(trades, r.Apply(e)...)
	}
	if open := r.Finish(); open != nil {
		trades = append(trades, *open)
	}
	return trades
}
