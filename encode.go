package tradebook

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/etnz/tradebook/date"
	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Trades are persisted as JSONL, one trade per line, with a fixed key order
// so that the files stay readable and diff friendly.

// MarshalJSON implements json.Marshaler.
func (i Instrument) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("type", i.Type)
	w.Optional("underlying", i.Underlying)
	if !i.Strike.IsZero() {
		w.Append("strike", i.Strike)
	}
	if !i.Expiration.IsZero() {
		w.Append("expiration", i.Expiration)
	}
	w.Optional("optionType", i.OptionType)
	if !i.Multiplier.IsZero() {
		w.Append("multiplier", i.Multiplier)
	}
	return w.MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *Instrument) UnmarshalJSON(data []byte) error {
	// jinstrument is the object read from the file using json parser.
	type jinstrument struct {
		Type       InstrumentType  `json:"type"`
		Underlying string          `json:"underlying"`
		Strike     decimal.Decimal `json:"strike"`
		Expiration date.Date       `json:"expiration"`
		OptionType OptionType      `json:"optionType"`
		Multiplier decimal.Decimal `json:"multiplier"`
	}
	var j jinstrument
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*i = Instrument(j)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (e Execution) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("time", e.Time)
	w.Append("symbol", e.Symbol)
	w.Append("side", e.Side)
	w.Append("quantity", e.Quantity)
	w.Append("price", e.Price.Decimal())
	w.Append("currency", e.Currency())
	w.OptionalMoney("commission", e.Commission)
	w.OptionalMoney("fees", e.Fees)
	w.Optional("broker", e.Broker)
	w.Optional("externalId", e.ExternalID)
	w.Optional("rawCode", e.RawCode)
	if e.Instrument.Type != "" && e.Instrument.Type != Stock {
		w.Append("instrument", e.Instrument)
	}
	w.Optional("origin", e.Origin)
	return w.MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Execution) UnmarshalJSON(data []byte) error {
	type jexecution struct {
		Time       time.Time       `json:"time"`
		Symbol     string          `json:"symbol"`
		Side       Side            `json:"side"`
		Quantity   decimal.Decimal `json:"quantity"`
		Price      decimal.Decimal `json:"price"`
		Currency   string          `json:"currency"`
		Commission decimal.Decimal `json:"commission"`
		Fees       decimal.Decimal `json:"fees"`
		Broker     Format          `json:"broker"`
		ExternalID string          `json:"externalId"`
		RawCode    string          `json:"rawCode"`
		Instrument *Instrument     `json:"instrument"`
		Origin     string          `json:"origin"`
	}
	var j jexecution
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	if j.Side != Buy && j.Side != Sell {
		return fmt.Errorf("invalid side %q", j.Side)
	}
	cur := j.Currency
	if cur == "" {
		cur = DefaultCurrency
	}
	instrument := Instrument{Type: Stock, Underlying: j.Symbol}
	if j.Instrument != nil {
		instrument = *j.Instrument
	}
	*e = Execution{
		Symbol:     j.Symbol,
		Side:       j.Side,
		Quantity:   Q(j.Quantity),
		Price:      M(j.Price, cur),
		Time:       j.Time,
		Commission: M(j.Commission, cur),
		Fees:       M(j.Fees, cur),
		Broker:     j.Broker,
		ExternalID: j.ExternalID,
		RawCode:    j.RawCode,
		Instrument: instrument,
		Origin:     j.Origin,
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Trade) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("id", t.ID)
	w.Optional("user", t.UserID)
	w.Append("symbol", t.Symbol)
	w.Append("side", t.Side)
	w.Append("entryTime", t.EntryTime)
	w.Optional("exitTime", t.ExitTime)
	w.Append("quantity", t.Quantity)
	w.Append("currency", t.Currency())
	w.Append("entryPrice", t.EntryPrice.Decimal())
	if t.ExitPrice != nil {
		w.Append("exitPrice", t.ExitPrice.Decimal())
	}
	w.Append("pnl", t.PnL.Decimal())
	w.Append("pnlPercent", decimal.NewFromFloat(float64(t.PnLPercent)).Round(4))
	w.Append("commission", t.Commission.Decimal())
	w.Append("instrument", t.Instrument)
	w.Optional("isUpdate", t.IsUpdate)
	w.Optional("sourceTradeId", t.SourceTradeID)
	w.Append("executions", t.Executions)
	return w.MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Trade) UnmarshalJSON(data []byte) error {
	type jtrade struct {
		ID            string           `json:"id"`
		UserID        string           `json:"user"`
		Symbol        string           `json:"symbol"`
		Side          Direction        `json:"side"`
		EntryTime     time.Time        `json:"entryTime"`
		ExitTime      *time.Time       `json:"exitTime"`
		Quantity      decimal.Decimal  `json:"quantity"`
		Currency      string           `json:"currency"`
		EntryPrice    decimal.Decimal  `json:"entryPrice"`
		ExitPrice     *decimal.Decimal `json:"exitPrice"`
		PnL           decimal.Decimal  `json:"pnl"`
		PnLPercent    float64          `json:"pnlPercent"`
		Commission    decimal.Decimal  `json:"commission"`
		Instrument    Instrument       `json:"instrument"`
		IsUpdate      bool             `json:"isUpdate"`
		SourceTradeID string           `json:"sourceTradeId"`
		Executions    []Execution      `json:"executions"`
	}
	var j jtrade
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	if j.Side != Long && j.Side != Short {
		return fmt.Errorf("invalid trade side %q", j.Side)
	}
	cur := j.Currency
	if cur == "" {
		cur = DefaultCurrency
	}
	*t = Trade{
		ID:            j.ID,
		UserID:        j.UserID,
		Symbol:        j.Symbol,
		Side:          j.Side,
		EntryTime:     j.EntryTime,
		ExitTime:      j.ExitTime,
		Quantity:      Q(j.Quantity),
		EntryPrice:    M(j.EntryPrice, cur),
		PnL:           M(j.PnL, cur),
		PnLPercent:    Percent(j.PnLPercent),
		Commission:    M(j.Commission, cur),
		Executions:    j.Executions,
		Instrument:    j.Instrument,
		IsUpdate:      j.IsUpdate,
		SourceTradeID: j.SourceTradeID,
	}
	if j.ExitPrice != nil {
		exit := M(*j.ExitPrice, cur)
		t.ExitPrice = &exit
	}
	return nil
}

// EncodeTrade writes a single trade as one JSON line.
func EncodeTrade(w io.Writer, t Trade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal trade %q: %w", t.ID, err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write trade: %w", err)
	}
	return nil
}

// EncodeTrades writes trades in JSONL format.
func EncodeTrades(w io.Writer, trades []Trade) error {
	for _, t := range trades {
		if err := EncodeTrade(w, t); err != nil {
			return err
		}
	}
	return nil
}

// DecodeTrades reads trades in JSONL format. Empty lines are ignored.
func DecodeTrades(r io.Reader) ([]Trade, error) {
	var trades []Trade
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for i := 1; scanner.Scan(); i++ {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var t Trade
		if err := json.Unmarshal(line, &t); err != nil {
			return nil, fmt.Errorf("format error on line %d: %w", i, err)
		}
		trades = append(trades, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading from input: %w", err)
	}
	return trades, nil
}
