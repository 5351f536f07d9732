package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// EventKind is the kind of an Event.
type EventKind string

const (
	Resolved  EventKind = "resolved"
	Exhausted EventKind = "exhausted"
)

// Event notifies a user about one of their identifiers.
type Event struct {
	Kind   EventKind
	UserID string
	CUSIP  string
	Mapping
	// PatchedTotal is the number of trades rewritten with the ticker, all
	// users included.
	PatchedTotal int
	Err          error // *ExhaustedRetryError for Exhausted events
}

// SweepStats sums up a sweep.
type SweepStats struct {
	Claimed  int
	Resolved int
	Retried  int
	Failed   int
}

func (s SweepStats) String() string {
	return fmt.Sprintf("%d claimed, %d resolved, %d retried, %d failed", s.Claimed, s.Resolved, s.Retried, s.Failed)
}

// attempt is the state of one claimed item during a sweep.
type attempt struct {
	item     Item
	ticker   string
	source   Source
	inferred string // unconfirmed inferred ticker
	err      error
}

// Sweep claims the eligible queued identifiers and attempts to resolve them:
// the provider first, then at most one inference call per item. Inferred
// tickers are cross-checked with a single batch quote.
func (r *Resolver) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	items, err := r.queue.Claim(ctx, r.now(), r.batch)
	if err != nil {
		return stats, fmt.Errorf("cannot claim queued identifiers: %w", err)
	}
	stats.Claimed = len(items)
	if len(items) == 0 {
		return stats, nil
	}

	attempts := make([]*attempt, len(items))
	for i, it := range items {
		a := &attempt{item: it, err: errNoMatch}
		attempts[i] = a
		if r.provider == nil {
			continue
		}
		ticker, err := r.search(ctx, it.CUSIP)
		if err != nil {
			a.err = &ResolutionError{CUSIP: it.CUSIP, Err: err}
			continue
		}
		if ticker != "" {
			a.ticker, a.source = ticker, FromProvider
		}
	}

	var inferred []string
	if r.inference != nil {
		for _, a := range attempts {
			if a.ticker != "" {
				continue
			}
			t, err := r.inference.Infer(ctx, a.item.CUSIP)
			if err != nil {
				a.err = &ResolutionError{CUSIP: a.item.CUSIP, Err: fmt.Errorf("inference: %w", err)}
				continue
			}
			t = strings.ToUpper(strings.TrimSpace(t))
			if !inferredRegex.MatchString(t) {
				a.err = &ResolutionError{CUSIP: a.item.CUSIP, Err: fmt.Errorf("inference: invalid ticker %q", t)}
				continue
			}
			a.inferred = t
			inferred = append(inferred, t)
		}
	}
	quoted := r.quoted(ctx, inferred)

	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		switch {
		case a.ticker != "":
			err = r.complete(ctx, a.item, Mapping{Ticker: a.ticker, Source: FromProvider, Confidence: High, ResolvedAt: r.now()})
			stats.Resolved++
		case a.inferred != "":
			confidence := Low
			if quoted[a.inferred] {
				confidence = Medium
			}
			err = r.complete(ctx, a.item, Mapping{Ticker: a.inferred, Source: FromInference, Confidence: confidence, ResolvedAt: r.now()})
			stats.Resolved++
		default:
			var failed bool
			failed, err = r.fail(ctx, a.item, a.err)
			if failed {
				stats.Failed++
			} else {
				stats.Retried++
			}
		}
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// quoted returns the tickers the provider has a quote for.
func (r *Resolver) quoted(ctx context.Context, tickers []string) map[string]bool {
	known := make(map[string]bool)
	if r.provider == nil || len(tickers) == 0 {
		return known
	}
	quotes, err := r.provider.Quotes(ctx, tickers)
	if err != nil {
		// unconfirmed tickers are kept, with a low confidence.
		r.log.Warn("cannot confirm inferred tickers", zap.Strings("tickers", tickers), zap.Error(err))
	}
	for t, price := range quotes {
		known[t] = price.IsPositive()
	}
	return known
}

// complete stores a resolution, patches the trades and notifies the owners.
func (r *Resolver) complete(ctx context.Context, it Item, m Mapping) error {
	log := r.log.With(zap.String("cusip", it.CUSIP), zap.String("ticker", m.Ticker), zap.String("confidence", string(m.Confidence)))
	if err := r.remember(ctx, it.CUSIP, m, it.Users...); err != nil {
		return err
	}
	if _, err := r.queue.Complete(ctx, it.CUSIP, m, r.now()); err != nil {
		return fmt.Errorf("cannot complete %s: %w", it.CUSIP, err)
	}
	patched := 0
	if r.patcher != nil {
		n, err := r.patcher.PatchSymbol(ctx, it.CUSIP, m.Ticker)
		if err != nil {
			log.Error("cannot patch trades", zap.Error(err))
		}
		patched = n
	}
	log.Info("resolved", zap.Int("patched", patched))
	for _, u := range it.Users {
		r.emit(Event{Kind: Resolved, UserID: u, CUSIP: it.CUSIP, Mapping: m, PatchedTotal: patched})
	}
	return nil
}

// fail records a failed attempt, it returns true once the item is failed.
func (r *Resolver) fail(ctx context.Context, it Item, cause error) (bool, error) {
	updated, err := r.queue.Fail(ctx, it.CUSIP, cause, r.now())
	if err != nil {
		return false, fmt.Errorf("cannot fail %s: %w", it.CUSIP, err)
	}
	log := r.log.With(zap.String("cusip", it.CUSIP), zap.Int("attempts", updated.Attempts))
	if updated.Status != Failed {
		log.Debug("retry later", zap.Duration("backoff", r.policy.Backoff(updated.Attempts)), zap.Error(cause))
		return false, nil
	}
	exhausted := &ExhaustedRetryError{CUSIP: it.CUSIP, Attempts: updated.Attempts, Last: cause}
	log.Warn("resolution exhausted", zap.Error(exhausted))
	for _, u := range updated.Users {
		r.emit(Event{Kind: Exhausted, UserID: u, CUSIP: it.CUSIP, Err: exhausted})
	}
	return true, nil
}

func (r *Resolver) emit(e Event) {
	if r.events == nil {
		return
	}
	select {
	case r.events <- e:
	default:
		r.log.Warn("event dropped", zap.String("cusip", e.CUSIP), zap.String("user", e.UserID))
	}
}

// Worker runs sweeps on a schedule and whenever an identifier is enqueued.
//
// Only one sweep runs at a time: a trigger during a sweep makes it run one
// more pass when done.
type Worker struct {
	r        *Resolver
	cron     *cron.Cron
	schedule string

	mu      sync.Mutex
	running bool
	again   bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker returns a worker sweeping 'r' every 'interval'.
func NewWorker(r *Resolver, interval time.Duration) *Worker {
	return &Worker{
		r:        r,
		cron:     cron.New(),
		schedule: "@every " + interval.String(),
	}
}

// Start schedules the sweeps until Stop or until ctx is done.
func (w *Worker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	if _, err := w.cron.AddFunc(w.schedule, func() { w.trigger(ctx) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", w.schedule, err)
	}
	w.cron.Start()
	w.r.log.Info("resolver worker started", zap.String("schedule", w.schedule))

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.r.kick:
				w.trigger(ctx)
			}
		}
	}()
	return nil
}

// Stop stops the schedule and waits for the running sweep.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	<-w.cron.Stop().Done()
	w.wg.Wait()
	w.r.log.Info("resolver worker stopped")
}

// trigger runs a sweep, or asks the running one for another pass.
func (w *Worker) trigger(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.again = true
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	for {
		stats, err := w.r.Sweep(ctx)
		switch {
		case errors.Is(err, context.Canceled):
		case err != nil:
			w.r.log.Error("sweep failed", zap.Error(err))
		case stats.Claimed > 0:
			w.r.log.Info("sweep", zap.Int("claimed", stats.Claimed), zap.Int("resolved", stats.Resolved),
				zap.Int("retried", stats.Retried), zap.Int("failed", stats.Failed))
		}

		w.mu.Lock()
		if !w.again || ctx.Err() != nil {
			w.running = false
			w.mu.Unlock()
			return
		}
		w.again = false
		w.mu.Unlock()
	}
}
