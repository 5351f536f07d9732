package tradebook

import (
	"time"
)

// Trade is a round-trip trade: a position opened and, unless ExitTime is nil,
// flattened again.
type Trade struct {
	ID         string
	UserID     string
	Symbol     string
	Side       Direction
	EntryTime  time.Time
	ExitTime   *time.Time // nil while the position is open
	Quantity   Quantity   // gross quantity once closed, net remaining while open
	EntryPrice Money      // weighted over the opening executions
	ExitPrice  *Money     // weighted over the closing executions, nil while open
	PnL        Money
	PnLPercent Percent
	Commission Money // commission and fees of all executions
	Executions []Execution
	Instrument Instrument

	// IsUpdate tells the persistence layer to overwrite the stored trade
	// SourceTradeID instead of inserting a new one.
	IsUpdate      bool
	SourceTradeID string
}

// IsOpen reports whether the trade is still an open position.
func (t Trade) IsOpen() bool { return t.ExitTime == nil }

// Currency returns the currency of the trade prices.
func (t Trade) Currency() string {
	if c := t.EntryPrice.Currency(); c != "" {
		return c
	}
	return DefaultCurrency
}

// OpenPosition returns the snapshot that seeds the next reconstruction of an
// open trade. It returns false for closed trades.
func (t Trade) OpenPosition() (OpenPosition, bool) {
	if !t.IsOpen() {
		return OpenPosition{}, false
	}
	return OpenPosition{
		TradeID:    t.ID,
		Symbol:     t.Symbol,
		Side:       t.Side,
		Quantity:   t.Quantity,
		EntryPrice: t.EntryPrice,
		EntryTime:  t.EntryTime,
		Commission: t.Commission,
		Executions: t.Executions,
		Instrument: t.Instrument,
	}, true
}

// OpenPosition is a currently open trade as persisted by a previous import.
type OpenPosition struct {
	TradeID    string
	Symbol     string
	Side       Direction
	Quantity   Quantity // net open quantity, positive
	EntryPrice Money
	EntryTime  time.Time
	Commission Money
	Executions []Execution
	Instrument Instrument
}
