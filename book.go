package tradebook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Book is a trade store persisted as a JSONL file.
//
// It is the persistence collaborator of an import: it provides the open
// positions and the known executions that seed the reconstruction, stores
// the resulting trades, and rewrites placeholder symbols once an identifier
// gets resolved. A Book is safe for concurrent use.
type Book struct {
	mu     sync.Mutex
	path   string // empty for an in-memory book
	trades []Trade
}

// NewBook returns an empty in-memory book.
func NewBook() *Book { return &Book{} }

// OpenBook loads the book stored in 'path'. A missing file is an empty book
// that will be created on the first Store.
//
// Several books, possibly in several processes, can share a file: every
// change is applied to the current content of the file under a lock file.
func OpenBook(path string) (*Book, error) {
	b := &Book{path: path}
	if err := b.reload(); err != nil {
		return nil, err
	}
	return b, nil
}

// Path returns the file the book is stored in.
func (b *Book) Path() string { return b.path }

// lockStale is the age after which a lock file is considered left over by a
// dead process.
const lockStale = time.Minute

// lockRetry is the delay between two attempts to take the lock.
const lockRetry = 20 * time.Millisecond

// update applies 'change' to the current content of the book and writes it
// if 'change' reports a modification.
func (b *Book) update(ctx context.Context, change func() bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.path == "" {
		change()
		return nil
	}
	if dir := filepath.Dir(b.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create trade book folder: %w", err)
		}
	}
	unlock, err := b.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if err := b.reload(); err != nil {
		return err
	}
	if !change() {
		return nil
	}
	return b.save()
}

// lock creates the lock file of the book, waiting for other holders.
func (b *Book) lock(ctx context.Context) (unlock func(), err error) {
	name := b.path + ".lock"
	for {
		f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return func() { os.Remove(name) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("cannot lock trade book: %w", err)
		}
		if info, err := os.Stat(name); err == nil && time.Since(info.ModTime()) > lockStale {
			os.Remove(name)
			continue
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("cannot lock trade book: %w", ctx.Err())
		case <-time.After(lockRetry):
		}
	}
}

// reload replaces the trades in memory by the content of the file.
func (b *Book) reload() error {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		b.trades = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot read trade book: %w", err)
	}
	trades, err := DecodeTrades(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("cannot decode trade book %q: %w", b.path, err)
	}
	b.trades = trades
	return nil
}

func (b *Book) save() error {
	var buf bytes.Buffer
	if err := EncodeTrades(&buf, b.trades); err != nil {
		return err
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("cannot write trade book: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("cannot write trade book: %w", err)
	}
	return nil
}

// Trades returns a copy of the trades of 'userID', all trades if empty.
func (b *Book) Trades(userID string) []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()
	var trades []Trade
	for _, t := range b.trades {
		if userID == "" || t.UserID == userID {
			trades = append(trades, t)
		}
	}
	return trades
}

// OpenPositions returns the open trades of 'userID' by symbol.
func (b *Book) OpenPositions(userID string) map[string]OpenPosition {
	b.mu.Lock()
	defer b.mu.Unlock()
	positions := make(map[string]OpenPosition)
	for _, t := range b.trades {
		if t.UserID != userID {
			continue
		}
		if p, ok := t.OpenPosition(); ok {
			positions[t.Symbol] = p
		}
	}
	return positions
}

// Known returns the identities of all executions already stored for
// 'userID'.
func (b *Book) Known(userID string) *DedupGuard {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := new(DedupGuard)
	for _, t := range b.trades {
		if t.UserID != userID {
			continue
		}
		for _, e := range t.Executions {
			g.Add(e.Identity())
		}
	}
	return g
}

// Store stores trades for 'userID' as Upsert does, and writes the book.
func (b *Book) Store(ctx context.Context, userID string, trades []Trade) ([]Trade, error) {
	var stored []Trade
	err := b.update(ctx, func() bool {
		stored = b.upsert(userID, trades)
		return len(stored) > 0
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Upsert stores trades for 'userID' in memory.
//
// A trade with IsUpdate replaces the stored trade SourceTradeID and keeps its
// id, any other trade is inserted with a new id. It returns the trades as
// stored. A file-backed book discards upserted trades on its next Store or
// PatchSymbol: use Store to persist them.
func (b *Book) Upsert(userID string, trades []Trade) []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.upsert(userID, trades)
}

func (b *Book) upsert(userID string, trades []Trade) []Trade {
	stored := make([]Trade, 0, len(trades))
	for _, t := range trades {
		t.UserID = userID
		i := -1
		if t.IsUpdate && t.SourceTradeID != "" {
			i = slices.IndexFunc(b.trades, func(s Trade) bool { return s.ID == t.SourceTradeID })
		}
		if i >= 0 {
			t.ID = t.SourceTradeID
		} else if t.ID == "" {
			t.ID = uuid.NewString()
		}
		t.IsUpdate, t.SourceTradeID = false, ""
		if i >= 0 {
			b.trades[i] = t
		} else {
			b.trades = append(b.trades, t)
		}
		stored = append(stored, t)
	}
	return stored
}

// PatchSymbol renames 'raw' into 'ticker' in every trade and execution of
// every user, and writes the book. It returns the number of trades changed.
func (b *Book) PatchSymbol(ctx context.Context, raw, ticker string) (int, error) {
	if raw == "" || ticker == "" || raw == ticker {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := b.update(ctx, func() bool {
		n = b.rename(raw, ticker)
		return n > 0
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// rename renames 'raw' into 'ticker' and returns the number of trades
// changed.
func (b *Book) rename(raw, ticker string) int {
	n := 0
	for i := range b.trades {
		t := &b.trades[i]
		if t.Symbol != raw {
			continue
		}
		t.Symbol = ticker
		if t.Instrument.Underlying == raw {
			t.Instrument.Underlying = ticker
		}
		t.Executions = slices.Clone(t.Executions)
		for j := range t.Executions {
			e := &t.Executions[j]
			if e.Symbol == raw {
				e.Symbol = ticker
			}
			if e.Instrument.Underlying == raw {
				e.Instrument.Underlying = ticker
			}
		}
		n++
	}
	return n
}
