package tradebook

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBook_Upsert(t *testing.T) {
	b := NewBook()
	first := Reconstruct("AAPL", []Execution{buy(100, 10, 0), sell(60, 12, 1)}, nil, nil)
	stored := b.Upsert("u1", first)
	if len(stored) != 1 || stored[0].ID == "" {
		t.Fatalf("Upsert() = %+v, want one trade with an id", stored)
	}
	openID := stored[0].ID

	positions := b.OpenPositions("u1")
	seed, ok := positions["AAPL"]
	if !ok || seed.TradeID != openID || !seed.Quantity.Equal(Q(40)) {
		t.Fatalf("OpenPositions() = %+v, want AAPL 40 from %q", positions, openID)
	}
	if got := b.OpenPositions("u2"); len(got) != 0 {
		t.Errorf("OpenPositions(u2) = %v, want none", got)
	}

	second := Reconstruct("AAPL", []Execution{sell(40, 13, 2)}, &seed, b.Known("u1"))
	b.Upsert("u1", second)

	trades := b.Trades("u1")
	if len(trades) != 1 {
		t.Fatalf("Trades() returned %d trades, want the updated one only", len(trades))
	}
	tr := trades[0]
	if tr.ID != openID || tr.IsOpen() || tr.IsUpdate || tr.SourceTradeID != "" {
		t.Errorf("stored trade = id %q open %v update %v source %q", tr.ID, tr.IsOpen(), tr.IsUpdate, tr.SourceTradeID)
	}
	// 60×(12-10) + 40×(13-10)
	if want := USD(240); !tr.PnL.Equal(want) {
		t.Errorf("PnL = %v, want %v", tr.PnL, want)
	}
}

func TestBook_PatchSymbol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.jsonl")
	b, err := OpenBook(path)
	if err != nil {
		t.Fatalf("OpenBook() error = %v", err)
	}
	e := buy(10, 150, 0)
	e.Symbol, e.RawCode = "037833100", "037833100"
	e.Instrument.Underlying = "037833100"
	ctx := context.Background()
	if _, err := b.Store(ctx, "u1", Reconstruct("037833100", []Execution{e}, nil, nil)); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if _, err := b.Store(ctx, "u2", Reconstruct("MSFT", []Execution{buy(1, 400, 0)}, nil, nil)); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	n, err := b.PatchSymbol(context.Background(), "037833100", "AAPL")
	if err != nil {
		t.Fatalf("PatchSymbol() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PatchSymbol() = %d, want 1", n)
	}

	// the patch is saved.
	reloaded, err := OpenBook(path)
	if err != nil {
		t.Fatalf("OpenBook() error = %v", err)
	}
	trades := reloaded.Trades("u1")
	if len(trades) != 1 {
		t.Fatalf("reloaded %d trades, want 1", len(trades))
	}
	tr := trades[0]
	if tr.Symbol != "AAPL" || tr.Executions[0].Symbol != "AAPL" || tr.Instrument.Underlying != "AAPL" {
		t.Errorf("trade not patched: %s %s %s", tr.Symbol, tr.Executions[0].Symbol, tr.Instrument.Underlying)
	}
	if tr.Executions[0].RawCode != "037833100" {
		t.Errorf("RawCode = %q, the raw identifier must be kept", tr.Executions[0].RawCode)
	}
	if _, ok := reloaded.OpenPositions("u1")["AAPL"]; !ok {
		t.Error("patched open position should be found under its ticker")
	}

	if n, _ := b.PatchSymbol(context.Background(), "037833100", "AAPL"); n != 0 {
		t.Errorf("second PatchSymbol() = %d, want 0", n)
	}
}

func TestBook_Known(t *testing.T) {
	b := NewBook()
	e := buy(1, 10, 0)
	b.Upsert("u1", Reconstruct("AAPL", []Execution{e, sell(1, 11, 1)}, nil, nil))
	if !b.Known("u1").Seen(e.Identity()) {
		t.Error("Known(u1) should contain the stored execution")
	}
	if b.Known("u2").Seen(e.Identity()) {
		t.Error("Known(u2) should not contain another user's execution")
	}
}

// cusipTrade returns an open trade on a placeholder CUSIP symbol.
func cusipTrade() []Trade {
	e := buy(10, 150, 0)
	e.Symbol, e.RawCode = "037833100", "037833100"
	e.Instrument.Underlying = "037833100"
	return Reconstruct("037833100", []Execution{e}, nil, nil)
}

func mustOpen(t *testing.T, path string) *Book {
	t.Helper()
	b, err := OpenBook(path)
	if err != nil {
		t.Fatalf("OpenBook() error = %v", err)
	}
	return b
}

func TestBook_SharedFile(t *testing.T) {
	ctx := context.Background()
	msft := func() []Trade {
		e := buy(1, 400, 5)
		e.Symbol, e.Instrument.Underlying = "MSFT", "MSFT"
		return Reconstruct("MSFT", []Execution{e}, nil, nil)
	}

	t.Run("patch keeps a trade stored by another book", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "trades.jsonl")
		if _, err := mustOpen(t, path).Store(ctx, "u1", cusipTrade()); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
		worker := mustOpen(t, path)
		if _, err := mustOpen(t, path).Store(ctx, "u1", msft()); err != nil {
			t.Fatalf("Store() error = %v", err)
		}

		n, err := worker.PatchSymbol(ctx, "037833100", "AAPL")
		if err != nil || n != 1 {
			t.Fatalf("PatchSymbol() = %d, %v, want 1", n, err)
		}
		trades := mustOpen(t, path).Trades("u1")
		if len(trades) != 2 {
			t.Fatalf("reloaded %d trades, want 2", len(trades))
		}
		symbols := map[string]bool{}
		for _, tr := range trades {
			symbols[tr.Symbol] = true
		}
		if !symbols["AAPL"] || !symbols["MSFT"] {
			t.Errorf("reloaded symbols = %v, want AAPL and MSFT", symbols)
		}
	})

	t.Run("patch sees a trade stored after opening", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "trades.jsonl")
		worker := mustOpen(t, path)
		if _, err := mustOpen(t, path).Store(ctx, "u1", cusipTrade()); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
		if n, err := worker.PatchSymbol(ctx, "037833100", "AAPL"); err != nil || n != 1 {
			t.Errorf("PatchSymbol() = %d, %v, want 1", n, err)
		}
	})

	t.Run("store waits for the lock", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "trades.jsonl")
		if err := os.WriteFile(path+".lock", nil, 0o644); err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		if _, err := mustOpen(t, path).Store(ctx, "u1", msft()); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Store() error = %v, want %v", err, context.DeadlineExceeded)
		}
		if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("book written without the lock: %v", err)
		}
	})
}
