// Package importer turns a broker export into round-trip trades.
//
// An import detects the export format, normalizes each row into an
// execution, resolves CUSIP placeholder symbols, then reconstructs the trades
// of each symbol. Malformed rows and unresolved identifiers never abort an
// import: they are reported in the Result.
package importer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/etnz/tradebook"
	"github.com/etnz/tradebook/broker"
	"github.com/etnz/tradebook/resolver"
	"go.uber.org/zap"
)

// Resolver maps CUSIPs to tickers, it is implemented by resolver.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, userID, cusip string) (resolver.Resolution, error)
}

// Converter converts an amount into DefaultCurrency at a given time.
type Converter interface {
	Convert(ctx context.Context, amount tradebook.Money, on time.Time) (tradebook.Money, error)
}

// Options are the parameters of one import.
type Options struct {
	Format   tradebook.Format // Auto to detect it
	UserID   string
	Location *time.Location // timezone of naive timestamps, UTC if nil

	// Positions are the open positions by symbol, as persisted by previous
	// imports.
	Positions map[string]tradebook.OpenPosition
	// Known are the executions already accounted for by previous imports.
	Known tradebook.KnownExecutions
}

// Result is the outcome of an import.
type Result struct {
	Format           tradebook.Format
	Rows             int // data rows read
	Executions       int // trade rows normalized
	Trades           []tradebook.Trade
	UnresolvedCusips []string
	Failures         []*tradebook.RowError
}

// Importer runs imports. It is safe for concurrent use.
type Importer struct {
	resolver  Resolver
	converter Converter
	log       *zap.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithResolver resolves the CUSIP symbols with 'r'. Without it, CUSIPs are
// all reported unresolved.
func WithResolver(r Resolver) Option { return func(im *Importer) { im.resolver = r } }

// WithConverter converts foreign currency executions with 'c'.
func WithConverter(c Converter) Option { return func(im *Importer) { im.converter = c } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(im *Importer) { im.log = l } }

// New returns an Importer.
func New(opts ...Option) *Importer {
	im := &Importer{log: zap.NewNop()}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Import imports 'data'. Only a FormatError, or the cancellation of ctx,
// aborts it.
func (im *Importer) Import(ctx context.Context, data []byte, opts Options) (*Result, error) {
	res := new(Result)
	err := im.run(ctx, data, opts, res, nil)
	return res, err
}

// run fills 'res' as it goes, and passes the trades of each symbol to 'emit'
// as soon as they are reconstructed.
func (im *Importer) run(ctx context.Context, data []byte, opts Options, res *Result, emit func([]tradebook.Trade)) error {
	format := opts.Format
	if format == "" || format == tradebook.Auto {
		format = tradebook.DetectFormat(data)
	}
	res.Format = format
	log := im.log.With(zap.String("broker", string(format)), zap.String("user", opts.UserID))

	rows, err := tradebook.ReadRows(data, format)
	if err != nil {
		return err
	}
	res.Rows = len(rows)
	normalizer, err := broker.Lookup(format, opts.Location)
	if err != nil {
		return &tradebook.FormatError{Format: format, Err: err}
	}
	if nf, ok := normalizer.(tradebook.NewestFirst); ok && nf.NewestFirst() {
		slices.Reverse(rows)
	}

	resolved := make(map[string]resolver.Resolution)
	unresolved := make(map[string]bool)
	var executions []tradebook.Execution
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := normalizer.Normalize(row)
		if err != nil {
			res.Failures = append(res.Failures, rowError(row, err))
			log.Debug("row skipped", zap.Int("row", row.Line), zap.Error(err))
			continue
		}
		if e == nil {
			continue
		}
		if err := im.convert(ctx, e); err != nil {
			res.Failures = append(res.Failures, &tradebook.RowError{Line: row.Line, Format: format, Symbol: e.Symbol, Err: err})
			log.Warn("row skipped", zap.Int("row", row.Line), zap.String("symbol", e.Symbol), zap.Error(err))
			continue
		}
		if tradebook.IsCUSIP(e.Symbol) {
			r, ok := resolved[e.Symbol]
			if !ok {
				r = im.resolve(ctx, log, opts.UserID, e.Symbol)
				resolved[e.Symbol] = r
			}
			if r.Resolved {
				rename(e, r.Ticker)
			} else {
				unresolved[e.Symbol] = true
			}
		}
		executions = append(executions, *e)
	}
	res.Executions = len(executions)
	for cusip := range unresolved {
		res.UnresolvedCusips = append(res.UnresolvedCusips, cusip)
	}
	slices.Sort(res.UnresolvedCusips)

	symbols, groups := tradebook.GroupBySymbol(executions)
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		var seed *tradebook.OpenPosition
		if p, ok := opts.Positions[symbol]; ok {
			seed = &p
		}
		trades := tradebook.Reconstruct(symbol, groups[symbol], seed, opts.Known)
		for i := range trades {
			trades[i].UserID = opts.UserID
		}
		log.Debug("reconstructed", zap.String("symbol", symbol), zap.Int("executions", len(groups[symbol])), zap.Int("trades", len(trades)))
		res.Trades = append(res.Trades, trades...)
		if emit != nil && len(trades) > 0 {
			emit(trades)
		}
	}
	log.Info("imported", zap.Int("rows", res.Rows), zap.Int("executions", res.Executions), zap.Int("trades", len(res.Trades)),
		zap.Int("failures", len(res.Failures)), zap.Int("unresolved", len(res.UnresolvedCusips)))
	return nil
}

// resolve never fails: errors leave the identifier unresolved.
func (im *Importer) resolve(ctx context.Context, log *zap.Logger, userID, cusip string) resolver.Resolution {
	if im.resolver == nil {
		return resolver.Resolution{CUSIP: cusip}
	}
	r, err := im.resolver.Resolve(ctx, userID, cusip)
	if err != nil {
		log.Warn("cannot resolve", zap.String("cusip", cusip), zap.Error(err))
		return resolver.Resolution{CUSIP: cusip, Err: err}
	}
	return r
}

// convert prices 'e' in DefaultCurrency.
func (im *Importer) convert(ctx context.Context, e *tradebook.Execution) error {
	if im.converter == nil || e.Currency() == tradebook.DefaultCurrency {
		return nil
	}
	for _, m := range []*tradebook.Money{&e.Price, &e.Commission, &e.Fees} {
		if m.IsZero() && m.Currency() == "" {
			continue
		}
		c, err := im.converter.Convert(ctx, *m, e.Time)
		if err != nil {
			return fmt.Errorf("cannot convert %s: %w", m, err)
		}
		*m = c
	}
	return nil
}

// rename replaces a placeholder symbol, keeping it as RawCode.
func rename(e *tradebook.Execution, ticker string) {
	if e.RawCode == "" {
		e.RawCode = e.Symbol
	}
	if e.Instrument.Underlying == e.Symbol || e.Instrument.Underlying == "" {
		e.Instrument.Underlying = ticker
	}
	e.Symbol = ticker
}

func rowError(r tradebook.Row, err error) *tradebook.RowError {
	var re *tradebook.RowError
	if errors.As(err, &re) {
		return re
	}
	return &tradebook.RowError{Line: r.Line, Format: r.Format, Err: err}
}
