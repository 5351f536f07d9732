package tradebook

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestReconstruct_RoundTrip(t *testing.T) {
	// buy 100@10, sell 100@12, one dollar commission each.
	trades := Reconstruct("AAPL", []Execution{
		withFees(buy(100, 10, 0), 1),
		withFees(sell(100, 12, 1), 1),
	}, nil, nil)

	if len(trades) != 1 {
		t.Fatalf("Reconstruct() returned %d trades, want 1", len(trades))
	}
	tr := trades[0]
	if tr.IsOpen() {
		t.Fatal("trade should be closed")
	}
	if tr.Side != Long {
		t.Errorf("Side = %v, want %v", tr.Side, Long)
	}
	if want := USD(10); !tr.EntryPrice.Equal(want) {
		t.Errorf("EntryPrice = %v, want %v", tr.EntryPrice, want)
	}
	if want := USD(12); !tr.ExitPrice.Equal(want) {
		t.Errorf("ExitPrice = %v, want %v", tr.ExitPrice, want)
	}
	if want := USD(198); !tr.PnL.Equal(want) {
		t.Errorf("PnL = %v, want %v", tr.PnL, want)
	}
	if want := Percent(19.8); !tr.PnLPercent.Equal(want) {
		t.Errorf("PnLPercent = %v, want %v", tr.PnLPercent, want)
	}
	if want := USD(2); !tr.Commission.Equal(want) {
		t.Errorf("Commission = %v, want %v", tr.Commission, want)
	}
	if !tr.EntryTime.Equal(at(0)) || !tr.ExitTime.Equal(at(1)) {
		t.Errorf("times = [%v, %v], want [%v, %v]", tr.EntryTime, *tr.ExitTime, at(0), at(1))
	}
	if tr.IsUpdate {
		t.Error("a new trade must not be an update")
	}
}

func TestReconstruct_Short(t *testing.T) {
	trades := Reconstruct("AAPL", []Execution{
		sell(10, 50, 0),
		buy(4, 45, 1),
		buy(6, 40, 2),
	}, nil, nil)

	if len(trades) != 1 {
		t.Fatalf("Reconstruct() returned %d trades, want 1", len(trades))
	}
	tr := trades[0]
	if tr.Side != Short {
		t.Errorf("Side = %v, want %v", tr.Side, Short)
	}
	// exit = (4×45 + 6×40) / 10 = 42
	if want := USD(42); !tr.ExitPrice.Equal(want) {
		t.Errorf("ExitPrice = %v, want %v", tr.ExitPrice, want)
	}
	if want := USD(80); !tr.PnL.Equal(want) {
		t.Errorf("PnL = %v, want %v", tr.PnL, want)
	}
}

func TestReconstruct_WeightedPrices(t *testing.T) {
	trades := Reconstruct("AAPL", []Execution{
		buy(100, 10, 0),
		buy(50, 13, 1),
		sell(150, 12, 2),
	}, nil, nil)

	if len(trades) != 1 {
		t.Fatalf("Reconstruct() returned %d trades, want 1", len(trades))
	}
	tr := trades[0]
	if want := USD(11); !tr.EntryPrice.Equal(want) {
		t.Errorf("EntryPrice = %v, want %v", tr.EntryPrice, want)
	}
	if want := Q(150); !tr.Quantity.Equal(want) {
		t.Errorf("Quantity = %v, want %v", tr.Quantity, want)
	}
	if want := USD(150); !tr.PnL.Equal(want) {
		t.Errorf("PnL = %v, want %v", tr.PnL, want)
	}
	// pnl matches (exit-entry)×qty within a cent.
	diff := tr.ExitPrice.Sub(tr.EntryPrice).Mul(tr.Quantity).Sub(tr.PnL).Abs()
	if diff.GreaterThan(USD(0.01)) {
		t.Errorf("pnl drift = %v", diff)
	}
}

func TestReconstruct_ExistingOpenPosition(t *testing.T) {
	seed := &OpenPosition{
		TradeID:    "trade-1",
		Symbol:     "AAPL",
		Side:       Long,
		Quantity:   Q(50),
		EntryPrice: USD(20),
		EntryTime:  at(-60),
		Commission: USD(0),
	}
	trades := Reconstruct("AAPL", []Execution{sell(50, 25, 0)}, seed, nil)

	if len(trades) != 1 {
		t.Fatalf("Reconstruct() returned %d trades, want 1", len(trades))
	}
	tr := trades[0]
	if !tr.IsUpdate || tr.SourceTradeID != "trade-1" {
		t.Errorf("got IsUpdate=%v SourceTradeID=%q, want true %q", tr.IsUpdate, tr.SourceTradeID, "trade-1")
	}
	if want := USD(250); !tr.PnL.Equal(want) {
		t.Errorf("PnL = %v, want %v", tr.PnL, want)
	}
	if !tr.EntryTime.Equal(at(-60)) {
		t.Errorf("EntryTime = %v, want %v", tr.EntryTime, at(-60))
	}
}

func TestReconstruct_UntouchedSeed(t *testing.T) {
	seed := &OpenPosition{TradeID: "trade-1", Symbol: "AAPL", Side: Long, Quantity: Q(50), EntryPrice: USD(20), EntryTime: at(0)}
	r := NewReconstructor("AAPL", seed, nil)
	if got := r.Position(); !got.Equal(Q(50)) {
		t.Errorf("Position() = %v, want 50", got)
	}
	if got := r.Finish(); got != nil {
		t.Errorf("Finish() = %+v, want nil", got)
	}
}

func TestReconstruct_SeedPartiallyReduced(t *testing.T) {
	seed := &OpenPosition{TradeID: "trade-1", Symbol: "AAPL", Side: Short, Quantity: Q(30), EntryPrice: USD(10), EntryTime: at(0)}
	trades := Reconstruct("AAPL", []Execution{buy(10, 8, 1)}, seed, nil)
	if len(trades) != 1 {
		t.Fatalf("Reconstruct() returned %d trades, want 1", len(trades))
	}
	tr := trades[0]
	if !tr.IsOpen() || !tr.IsUpdate || tr.SourceTradeID != "trade-1" {
		t.Fatalf("got open=%v update=%v source=%q", tr.IsOpen(), tr.IsUpdate, tr.SourceTradeID)
	}
	if want := Q(20); !tr.Quantity.Equal(want) {
		t.Errorf("Quantity = %v, want %v", tr.Quantity, want)
	}
	// realized on the 10 covered shares.
	if want := USD(20); !tr.PnL.Equal(want) {
		t.Errorf("PnL = %v, want %v", tr.PnL, want)
	}
}

func TestReconstruct_ZeroCrossingSplits(t *testing.T) {
	r := NewReconstructor("AAPL", nil, nil)
	if got := r.Apply(buy(100, 10, 0)); len(got) != 0 {
		t.Fatalf("opening buy closed %d trades", len(got))
	}
	over := withFees(sell(150, 12, 1), 3)
	closed := r.Apply(over)
	if len(closed) != 1 {
		t.Fatalf("overshooting sell closed %d trades, want 1", len(closed))
	}
	tr := closed[0]
	if want := Q(100); !tr.Quantity.Equal(want) {
		t.Errorf("closed Quantity = %v, want %v", tr.Quantity, want)
	}
	// 2 of the 3 dollars of fees go with the 100 closing shares.
	if want := USD(198); !tr.PnL.Equal(want) {
		t.Errorf("closed PnL = %v, want %v", tr.PnL, want)
	}
	if got, want := r.Position(), Q(-50); !got.Equal(want) {
		t.Errorf("Position() = %v, want %v", got, want)
	}

	open := r.Finish()
	if open == nil {
		t.Fatal("Finish() = nil, want the remaining short")
	}
	if open.Side != Short || !open.Quantity.Equal(Q(50)) || !open.EntryPrice.Equal(USD(12)) {
		t.Errorf("open = %v %v@%v, want short 50@12", open.Side, open.Quantity, open.EntryPrice)
	}
	if want := USD(-1); !open.PnL.Equal(want) {
		t.Errorf("open PnL = %v, want %v", open.PnL, want)
	}

	// both parts remember the original fill.
	origin := string(over.Identity())
	last := tr.Executions[len(tr.Executions)-1]
	if last.Origin != origin || open.Executions[0].Origin != origin {
		t.Errorf("split parts origins = %q, %q, want %q", last.Origin, open.Executions[0].Origin, origin)
	}
}

func TestReconstruct_Dedup(t *testing.T) {
	t.Run("within a trade", func(t *testing.T) {
		e := buy(100, 10, 0)
		e.ExternalID = "X1"
		dup := buy(100, 10, 5) // different time, same broker id
		dup.ExternalID = "X1"
		r := NewReconstructor("AAPL", nil, nil)
		r.Apply(e)
		r.Apply(dup)
		if got := r.Position(); !got.Equal(Q(100)) {
			t.Errorf("Position() = %v, want 100", got)
		}
	})

	t.Run("resubmitted file", func(t *testing.T) {
		file := []Execution{buy(100, 10, 0), sell(100, 12, 1), buy(10, 11, 2)}
		first := Reconstruct("AAPL", file, nil, nil)
		if len(first) != 2 {
			t.Fatalf("first import returned %d trades, want 2", len(first))
		}

		book := NewBook()
		stored := book.Upsert("u1", first)
		seed, _ := stored[1].OpenPosition()
		second := Reconstruct("AAPL", file, &seed, book.Known("u1"))
		if len(second) != 0 {
			t.Errorf("second import returned %d trades, want 0: %+v", len(second), second)
		}
	})

	t.Run("split fill", func(t *testing.T) {
		file := []Execution{buy(100, 10, 0), sell(150, 12, 1)}
		first := Reconstruct("AAPL", file, nil, nil)
		if len(first) != 2 {
			t.Fatalf("first import returned %d trades, want 2", len(first))
		}
		book := NewBook()
		stored := book.Upsert("u1", first)
		seed, _ := stored[1].OpenPosition()
		if second := Reconstruct("AAPL", file, &seed, book.Known("u1")); len(second) != 0 {
			t.Errorf("second import returned %d trades, want 0", len(second))
		}
	})

	t.Run("same fill on another symbol", func(t *testing.T) {
		book := NewBook()
		book.Upsert("u1", Reconstruct("AAPL", []Execution{buy(100, 10, 0)}, nil, nil))
		e := buy(100, 10, 0)
		e.Symbol, e.RawCode, e.Instrument.Underlying = "MSFT", "MSFT", "MSFT"
		if got := Reconstruct("MSFT", []Execution{e}, nil, book.Known("u1")); len(got) != 1 {
			t.Errorf("Reconstruct() returned %d trades, want 1", len(got))
		}
	})
}

func TestReconstruct_SameTimestampCloses(t *testing.T) {
	trades := Reconstruct("AAPL", []Execution{buy(100, 10, 0), sell(100, 11, 0)}, nil, nil)
	if len(trades) != 1 {
		t.Fatalf("Reconstruct() returned %d trades, want 1", len(trades))
	}
	if trades[0].IsOpen() {
		t.Error("trade should be closed")
	}
	if want := USD(100); !trades[0].PnL.Equal(want) {
		t.Errorf("PnL = %v, want %v", trades[0].PnL, want)
	}
}

func TestReconstruct_IgnoresInvalidQuantities(t *testing.T) {
	r := NewReconstructor("AAPL", nil, nil)
	if got := r.Apply(buy(0, 10, 0)); got != nil {
		t.Errorf("Apply(zero quantity) = %v, want nil", got)
	}
	if r.Finish() != nil {
		t.Error("Finish() should be nil after no valid execution")
	}
}

func TestReconstruct_Multiplier(t *testing.T) {
	option := Instrument{
		Type:       Option,
		Underlying: "AAPL",
		Strike:     decimal.NewFromInt(150),
		OptionType: Call,
		Multiplier: decimal.NewFromInt(optionMultiplier),
	}
	b, s := buy(2, 1.5, 0), sell(2, 2.25, 1)
	b.Instrument, s.Instrument = option, option

	trades := Reconstruct("AAPL250117C00150000", []Execution{b, s}, nil, nil)
	if len(trades) != 1 {
		t.Fatalf("Reconstruct() returned %d trades, want 1", len(trades))
	}
	// (2.25-1.5) × 2 contracts × 100
	if want := USD(150); !trades[0].PnL.Equal(want) {
		t.Errorf("PnL = %v, want %v", trades[0].PnL, want)
	}
	if want := USD(1.5); !trades[0].EntryPrice.Equal(want) {
		t.Errorf("EntryPrice = %v, want %v (per contract, without multiplier)", trades[0].EntryPrice, want)
	}
}

// TestReconstruct_Invariants replays a long sequence and checks the position
// and trade invariants after every step.
func TestReconstruct_Invariants(t *testing.T) {
	sequence := []Execution{
		buy(10, 100, 0), buy(5, 101, 1), sell(15, 102, 2), // flat exactly
		sell(7, 99, 3), buy(20, 98, 4), // crosses zero
		sell(3, 97, 5), sell(10, 99, 6), // flat
		buy(1, 100, 7), sell(1, 100, 8), // flat
		buy(4, 100, 9),
	}
	r := NewReconstructor("AAPL", nil, nil)
	sum := Q(0)
	var trades []Trade
	for i, e := range sequence {
		closed := r.Apply(e)
		sum = sum.Add(e.Signed())
		if !r.Position().Equal(sum) {
			t.Fatalf("after #%d Position() = %v, want signed sum %v", i, r.Position(), sum)
		}
		for _, tr := range closed {
			var entry, exit Quantity
			for _, x := range tr.Executions {
				if x.Side == tr.Side.opening() {
					entry = entry.Add(x.Quantity)
				} else {
					exit = exit.Add(x.Quantity)
				}
			}
			if !entry.Equal(exit) {
				t.Errorf("trade closed at #%d is unbalanced: entry %v exit %v", i, entry, exit)
			}
			guard := NewDedupGuard()
			for _, x := range tr.Executions {
				if !guard.Add(x.Identity()) {
					t.Errorf("trade closed at #%d has duplicate execution %v", i, x.Identity())
				}
			}
		}
		trades = append(trades, closed...)
	}
	if len(trades) != 4 {
		t.Errorf("got %d closed trades, want 4", len(trades))
	}
	if open := r.Finish(); open == nil || !open.Quantity.Equal(Q(4)) {
		t.Errorf("Finish() = %v, want an open long of 4", open)
	}
}
