// Package resolver maps CUSIP identifiers to ticker symbols.
//
// A lookup goes through a cache, then a market data provider. Identifiers
// that cannot be resolved right away are queued, and a worker retries them
// with backoff, falling back to text inference as a last resort. Once an
// identifier is resolved, the trades that still hold it as a placeholder
// symbol are patched.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/etnz/tradebook"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Source tells where a mapping comes from.
type Source string

const (
	FromProvider  Source = "provider"
	FromInference Source = "inference"
)

// Confidence grades a mapping.
type Confidence string

const (
	High   Confidence = "high"   // exact provider match
	Medium Confidence = "medium" // inferred, and quoted by the provider
	Low    Confidence = "low"    // inferred only
)

// Mapping is a resolved identifier.
type Mapping struct {
	Ticker     string
	Source     Source
	Confidence Confidence
	ResolvedAt time.Time
}

// Candidate is a security returned by a provider search.
type Candidate struct {
	Ticker   string
	Exchange string
	Name     string
	ISIN     string
	CUSIP    string
}

// Provider is a market data provider.
type Provider interface {
	// Search returns the securities matching an identifier.
	Search(ctx context.Context, identifier string) ([]Candidate, error)
	// Quotes returns the last price of the tickers it knows.
	Quotes(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error)
}

// Inference guesses a ticker from an identifier, typically with a language
// model. Its answer is unverified.
type Inference interface {
	Infer(ctx context.Context, cusip string) (string, error)
}

// Patcher rewrites the symbol of stored trades from a placeholder
// identifier to its ticker, and returns the number of trades changed.
type Patcher interface {
	PatchSymbol(ctx context.Context, raw, ticker string) (int, error)
}

// ErrNotQueued is returned when completing or failing an unknown item.
var ErrNotQueued = errors.New("identifier not queued")

// errNoMatch is the cause of an attempt where no source knew the identifier.
var errNoMatch = errors.New("no match")

var (
	// tickerRegex is what a US ticker looks like: BRK.B, BF-B, AAPL.
	tickerRegex = regexp.MustCompile(`^[A-Z]{1,5}([.-][A-Z]{1,2})?$`)
	// inferredRegex is the accepted shape of an inferred ticker.
	inferredRegex = regexp.MustCompile(`^[A-Z0-9.-]{1,10}$`)
)

// Resolution is the outcome of Resolve.
type Resolution struct {
	CUSIP    string
	Resolved bool
	Mapping
	Queued bool  // the identifier is waiting in the queue
	Err    error // the ResolutionError that queued it, if any
}

// Resolver resolves identifiers. It is safe for concurrent use, and meant to
// be created once per process.
type Resolver struct {
	cache     Cache
	queue     QueueStore
	provider  Provider
	inference Inference
	patcher   Patcher
	policy    Policy
	priority  int
	batch     int
	log       *zap.Logger
	now       func() time.Time

	kick   chan struct{}
	events chan Event
}

// Option configures a Resolver.
type Option func(*Resolver)

func WithProvider(p Provider) Option   { return func(r *Resolver) { r.provider = p } }
func WithInference(i Inference) Option { return func(r *Resolver) { r.inference = i } }
func WithPatcher(p Patcher) Option     { return func(r *Resolver) { r.patcher = p } }
func WithLogger(l *zap.Logger) Option  { return func(r *Resolver) { r.log = l } }
func WithPolicy(p Policy) Option       { return func(r *Resolver) { r.policy = p } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(r *Resolver) { r.now = now } }

// WithPriority sets the priority of identifiers queued by Resolve.
func WithPriority(p int) Option { return func(r *Resolver) { r.priority = p } }

// WithBatchSize sets the maximum number of items claimed per sweep pass.
func WithBatchSize(n int) Option { return func(r *Resolver) { r.batch = n } }

// WithEvents enables the Events channel, with 'buffer' slots. Events are
// dropped when the channel is full.
func WithEvents(buffer int) Option {
	return func(r *Resolver) { r.events = make(chan Event, buffer) }
}

// New returns a resolver over 'cache' and 'queue'.
func New(cache Cache, queue QueueStore, opts ...Option) *Resolver {
	r := &Resolver{
		cache:  cache,
		queue:  queue,
		policy: DefaultPolicy(),
		batch:  50,
		log:    zap.NewNop(),
		now:    time.Now,
		kick:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Events returns the channel of resolution events, nil unless WithEvents.
func (r *Resolver) Events() <-chan Event { return r.events }

// Resolve returns the ticker of 'cusip' for 'userID'.
//
// An identifier that neither the cache nor the provider knows is queued and
// returned unresolved, the caller keeps the raw identifier as symbol. Only
// cache and queue failures are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, userID, cusip string) (Resolution, error) {
	cusip = strings.ToUpper(strings.TrimSpace(cusip))
	log := r.log.With(zap.String("cusip", cusip), zap.String("user", userID))
	res := Resolution{CUSIP: cusip}

	for _, key := range []string{UserKey(userID, cusip), GlobalKey(cusip)} {
		m, ok, err := r.cache.Get(ctx, KindCUSIP, key)
		if err != nil {
			return res, fmt.Errorf("cache lookup %s: %w", key, err)
		}
		if ok {
			res.Resolved, res.Mapping = true, m
			return res, nil
		}
	}

	// a completed item is a durable mapping that outlives the cache.
	it, ok, err := r.queue.Get(ctx, cusip)
	if err != nil {
		return res, fmt.Errorf("queue lookup %s: %w", cusip, err)
	}
	if ok && it.Status == Completed {
		m := it.Mapping()
		if err := r.remember(ctx, cusip, m, userID); err != nil {
			return res, err
		}
		res.Resolved, res.Mapping = true, m
		return res, nil
	}

	// a queued identifier is left to the worker and its backoff.
	if r.provider != nil && !ok {
		ticker, err := r.search(ctx, cusip)
		switch {
		case err != nil:
			res.Err = &ResolutionError{CUSIP: cusip, Err: err}
			log.Warn("provider lookup failed, queued", zap.Error(err))
		case ticker != "":
			m := Mapping{Ticker: ticker, Source: FromProvider, Confidence: High, ResolvedAt: r.now()}
			if err := r.remember(ctx, cusip, m, userID); err != nil {
				return res, err
			}
			res.Resolved, res.Mapping = true, m
			return res, nil
		}
	}

	if _, err := r.Enqueue(ctx, cusip, userID, r.priority); err != nil {
		return res, err
	}
	res.Queued = true
	log.Debug("queued")
	return res, nil
}

// Enqueue queues 'cusip' for 'userID' and wakes the worker up. Enqueuing a
// failed identifier with a higher priority than its current one revives it.
func (r *Resolver) Enqueue(ctx context.Context, cusip, userID string, priority int) (Item, error) {
	cusip = strings.ToUpper(strings.TrimSpace(cusip))
	it, err := r.queue.Enqueue(ctx, cusip, userID, priority, r.now())
	if err != nil {
		return it, fmt.Errorf("cannot enqueue %s: %w", cusip, err)
	}
	select {
	case r.kick <- struct{}{}:
	default:
	}
	return it, nil
}

// Queue returns all the queued identifiers.
func (r *Resolver) Queue(ctx context.Context) ([]Item, error) { return r.queue.List(ctx) }

// search asks the provider, it returns "" when nothing matches.
func (r *Resolver) search(ctx context.Context, cusip string) (string, error) {
	candidates, err := r.provider.Search(ctx, cusip)
	if err != nil {
		return "", err
	}
	return pick(cusip, candidates), nil
}

// pick returns the ticker of the candidate carrying exactly 'cusip', or else
// the first ticker shaped one.
func pick(cusip string, candidates []Candidate) string {
	for _, c := range candidates {
		if c.Ticker == "" {
			continue
		}
		if strings.EqualFold(c.CUSIP, cusip) {
			return strings.ToUpper(c.Ticker)
		}
		if embedded, ok := tradebook.CUSIPFromISIN(c.ISIN); ok && embedded == cusip {
			return strings.ToUpper(c.Ticker)
		}
	}
	for _, c := range candidates {
		if t := strings.ToUpper(c.Ticker); tickerRegex.MatchString(t) {
			return t
		}
	}
	return ""
}

// remember writes the mapping in the global scope and in each user's.
func (r *Resolver) remember(ctx context.Context, cusip string, m Mapping, users ...string) error {
	keys := []string{GlobalKey(cusip)}
	for _, u := range users {
		keys = append(keys, UserKey(u, cusip))
	}
	for _, key := range keys {
		if err := r.cache.Set(ctx, KindCUSIP, key, m); err != nil {
			return fmt.Errorf("cache write %s: %w", key, err)
		}
	}
	return nil
}
