package importer

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/etnz/tradebook"
	"github.com/etnz/tradebook/resolver"
)

// fakeResolver knows a fixed set of tickers, and counts its calls.
type fakeResolver struct {
	tickers map[string]string
	calls   int
}

func (f *fakeResolver) Resolve(_ context.Context, _ string, cusip string) (resolver.Resolution, error) {
	f.calls++
	if t, ok := f.tickers[cusip]; ok {
		return resolver.Resolution{CUSIP: cusip, Resolved: true, Mapping: resolver.Mapping{Ticker: t}}, nil
	}
	return resolver.Resolution{CUSIP: cusip, Queued: true}, nil
}

const roundTrip = `Date,Symbol,Side,Quantity,Price,Commission
2025-01-02 09:30:00,AAPL,BUY,100,10.00,1.00
2025-01-02 10:00:00,AAPL,SELL,100,12.00,1.00
`

func usd(v float64) tradebook.Money { return tradebook.M(v, "USD") }

func TestImport_RoundTrip(t *testing.T) {
	res, err := New().Import(context.Background(), []byte(roundTrip), Options{UserID: "u1"})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Format != tradebook.Generic || res.Rows != 2 || res.Executions != 2 {
		t.Errorf("Import() = format %s, %d rows, %d executions", res.Format, res.Rows, res.Executions)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("Import() returned %d trades, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.IsOpen() || tr.Side != tradebook.Long || tr.UserID != "u1" {
		t.Errorf("trade = open %v side %s user %q", tr.IsOpen(), tr.Side, tr.UserID)
	}
	if !tr.PnL.Equal(usd(198)) || !tr.PnLPercent.Equal(tradebook.Percent(19.8)) {
		t.Errorf("PnL = %v (%v%%), want 198 (19.8%%)", tr.PnL, tr.PnLPercent)
	}
}

// TestImport_ExistingPosition closes a position opened by a previous import.
func TestImport_ExistingPosition(t *testing.T) {
	open, err := New().Import(context.Background(), []byte(`Date,Symbol,Side,Quantity,Price
2025-01-02 09:30:00,AAPL,BUY,100,10
`), Options{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	seed, ok := open.Trades[0].OpenPosition()
	if !ok {
		t.Fatalf("first import = %+v, want an open position", open.Trades)
	}
	seed.TradeID = "t1"

	res, err := New().Import(context.Background(), []byte(`Date,Symbol,Side,Quantity,Price
2025-01-03 09:30:00,AAPL,SELL,100,11
`), Options{Positions: map[string]tradebook.OpenPosition{"AAPL": seed}})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("Import() returned %d trades, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.IsOpen() || !tr.IsUpdate || tr.SourceTradeID != "t1" || !tr.PnL.Equal(usd(100)) {
		t.Errorf("trade = open %v update %v source %q pnl %v", tr.IsOpen(), tr.IsUpdate, tr.SourceTradeID, tr.PnL)
	}
}

// TestImport_Resubmitted imports the same file twice.
func TestImport_Resubmitted(t *testing.T) {
	ctx := context.Background()
	book := tradebook.NewBook()
	first, _ := New().Import(ctx, []byte(roundTrip), Options{UserID: "u1"})
	book.Upsert("u1", first.Trades)

	again, err := New().Import(ctx, []byte(roundTrip), Options{
		UserID:    "u1",
		Positions: book.OpenPositions("u1"),
		Known:     book.Known("u1"),
	})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(again.Trades) != 0 {
		t.Errorf("second import returned %d trades, want none", len(again.Trades))
	}
}

func TestImport_Cusips(t *testing.T) {
	data := `Date,Symbol,Side,Quantity,Price
2025-01-02 09:30:00,037833100,BUY,10,150
2025-01-02 09:31:00,88160R101,BUY,5,200
2025-01-02 09:32:00,037833100,SELL,10,151
2025-01-02 09:33:00,88160R101,SELL,5,201
`
	r := &fakeResolver{tickers: map[string]string{"037833100": "AAPL"}}
	res, err := New(WithResolver(r)).Import(context.Background(), []byte(data), Options{UserID: "u1"})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if r.calls != 2 {
		t.Errorf("resolver called %d times, want once per identifier", r.calls)
	}
	if !slices.Equal(res.UnresolvedCusips, []string{"88160R101"}) {
		t.Errorf("UnresolvedCusips = %v", res.UnresolvedCusips)
	}
	var symbols []string
	for _, tr := range res.Trades {
		symbols = append(symbols, tr.Symbol)
	}
	// the unresolved identifier is kept as a placeholder.
	if want := []string{"88160R101", "AAPL"}; !slices.Equal(symbols, want) {
		t.Errorf("trade symbols = %v, want %v", symbols, want)
	}
	aapl := res.Trades[1]
	if e := aapl.Executions[0]; e.RawCode != "037833100" || e.Instrument.Underlying != "AAPL" {
		t.Errorf("execution = raw %q underlying %q", e.RawCode, e.Instrument.Underlying)
	}
}

func TestImport_Failures(t *testing.T) {
	data := `Date,Symbol,Side,Quantity,Price
2025-01-02 09:30:00,AAPL,BUY,10,abc
2025-01-02 09:31:00,AAPL,BUY,10,150
2025-01-02 09:32:00,AAPL,DIVIDEND,,
`
	res, err := New().Import(context.Background(), []byte(data), Options{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Rows != 3 || res.Executions != 1 || len(res.Trades) != 1 {
		t.Errorf("Import() = %d rows, %d executions, %d trades", res.Rows, res.Executions, len(res.Trades))
	}
	if len(res.Failures) != 1 || res.Failures[0].Line != 2 {
		t.Errorf("Failures = %v, want line 2", res.Failures)
	}
}

func TestImport_FormatError(t *testing.T) {
	_, err := New().Import(context.Background(), []byte("\n\n"), Options{})
	var ferr *tradebook.FormatError
	if !errors.As(err, &ferr) {
		t.Errorf("Import() error = %v, want a FormatError", err)
	}
}

// TestImport_NewestFirst checks that same day rows of a newest first export
// are replayed bottom up.
func TestImport_NewestFirst(t *testing.T) {
	data := `"Date","Action","Symbol","Description","Quantity","Price","Fees & Comm","Amount"
"01/02/2025","Sell","AAPL","APPLE INC","100","$12.00","",""
"01/02/2025","Buy","AAPL","APPLE INC","100","$10.00","",""
`
	res, err := New().Import(context.Background(), []byte(data), Options{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Format != tradebook.Schwab {
		t.Fatalf("Format = %s, want schwab", res.Format)
	}
	if len(res.Trades) != 1 || res.Trades[0].Side != tradebook.Long || !res.Trades[0].PnL.Equal(usd(200)) {
		t.Errorf("Trades = %+v, want a long trade with 200 pnl", res.Trades)
	}
}

// eur converts at a fixed rate of 2.
type eur struct{}

func (eur) Convert(_ context.Context, m tradebook.Money, _ time.Time) (tradebook.Money, error) {
	if m.Currency() != "EUR" {
		return m, errors.New("unsupported currency")
	}
	return tradebook.M(m.Decimal().Mul(tradebook.Q(2).Decimal()), "USD"), nil
}

func TestImport_Converter(t *testing.T) {
	data := `Date,Symbol,Side,Quantity,Price,Commission,Currency
2025-01-02 09:30:00,SAP,BUY,10,100,1,EUR
2025-01-02 09:31:00,SAP,SELL,10,110,1,EUR
2025-01-02 09:32:00,SAP,BUY,10,110,1,CHF
`
	res, err := New(WithConverter(eur{})).Import(context.Background(), []byte(data), Options{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(res.Failures) != 1 || res.Failures[0].Line != 4 {
		t.Errorf("Failures = %v, want the CHF row", res.Failures)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("Import() returned %d trades, want 1", len(res.Trades))
	}
	// (220-200)×10 - 4
	if tr := res.Trades[0]; !tr.PnL.Equal(usd(196)) {
		t.Errorf("PnL = %v, want 196 USD", tr.PnL)
	}
}
