package tradebook

import (
	"bytes"
	"strings"
	"testing"

	"github.com/etnz/tradebook/date"
	"github.com/shopspring/decimal"
)

func TestEncodeTrades(t *testing.T) {
	option := Instrument{
		Type:       Option,
		Underlying: "AAPL",
		Strike:     decimal.NewFromInt(150),
		Expiration: date.New(2025, 1, 17),
		OptionType: Call,
		Multiplier: decimal.NewFromInt(100),
	}
	b := withFees(buy(2, 1.5, 0), 1.3)
	b.Instrument, b.ExternalID, b.RawCode, b.Broker = option, "F-1", "AAPL  250117C00150000", IBKR
	s := sell(3, 2, 1)
	s.Instrument = option

	trades := Reconstruct("AAPL  250117C00150000", []Execution{b, s}, nil, nil)
	if len(trades) != 2 {
		t.Fatalf("Reconstruct() returned %d trades, want 2", len(trades))
	}
	trades = NewBook().Upsert("u1", trades)

	var buf bytes.Buffer
	if err := EncodeTrades(&buf, trades); err != nil {
		t.Fatalf("EncodeTrades() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("EncodeTrades() wrote %d lines, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], `{"id":"`+trades[0].ID+`","user":"u1","symbol":`) {
		t.Errorf("unexpected key order: %s", lines[0])
	}

	got, err := DecodeTrades(&buf)
	if err != nil {
		t.Fatalf("DecodeTrades() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("DecodeTrades() returned %d trades, want 2", len(got))
	}
	for i := range got {
		want := trades[i]
		if got[i].ID != want.ID || got[i].Side != want.Side || got[i].IsOpen() != want.IsOpen() {
			t.Errorf("trade #%d = %s %s open=%v, want %s %s open=%v", i, got[i].ID, got[i].Side, got[i].IsOpen(), want.ID, want.Side, want.IsOpen())
		}
		if !got[i].PnL.Equal(want.PnL) || !got[i].EntryPrice.Equal(want.EntryPrice) || !got[i].Quantity.Equal(want.Quantity) {
			t.Errorf("trade #%d amounts = %v %v %v, want %v %v %v", i, got[i].PnL, got[i].EntryPrice, got[i].Quantity, want.PnL, want.EntryPrice, want.Quantity)
		}
		if got[i].Instrument.Expiration != option.Expiration || !got[i].Instrument.Multiplier.Equal(option.Multiplier) {
			t.Errorf("trade #%d instrument = %+v", i, got[i].Instrument)
		}
		if len(got[i].Executions) != len(want.Executions) {
			t.Fatalf("trade #%d has %d executions, want %d", i, len(got[i].Executions), len(want.Executions))
		}
		for j, e := range got[i].Executions {
			if e.Identity() != want.Executions[j].Identity() {
				t.Errorf("execution identity = %q, want %q", e.Identity(), want.Executions[j].Identity())
			}
		}
	}
	if e := got[0].Executions[0]; e.ExternalID != "F-1" || e.Broker != IBKR || !e.Commission.Equal(USD(1.3)) {
		t.Errorf("execution = %+v", e)
	}
}

func TestDecodeTrades_Errors(t *testing.T) {
	tests := []string{
		`{"id":"x"`,
		`{"id":"x","side":"sideways"}`,
		`{"id":"x","side":"long","executions":[{"side":"hold"}]}`,
	}
	for _, in := range tests {
		if _, err := DecodeTrades(strings.NewReader(in)); err == nil {
			t.Errorf("DecodeTrades(%s) should fail", in)
		}
	}
	trades, err := DecodeTrades(strings.NewReader("\n\n"))
	if err != nil || len(trades) != 0 {
		t.Errorf("DecodeTrades(blank) = %v, %v", trades, err)
	}
}
