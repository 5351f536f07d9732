package resolver

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// Status is the state of a queue item.
type Status string

const (
	Pending    Status = "pending"
	Processing Status = "processing"
	Completed  Status = "completed"
	Failed     Status = "failed"
)

// Item is an identifier waiting for resolution.
type Item struct {
	CUSIP         string
	Users         []string // owning users, sorted
	Priority      int
	Status        Status
	Attempts      int
	LastAttemptAt time.Time
	ClaimedAt     time.Time
	LastError     string
	CreatedAt     time.Time

	// set once completed
	Ticker     string
	Source     Source
	Confidence Confidence
}

// Mapping returns the resolution of a completed item.
func (it Item) Mapping() Mapping {
	return Mapping{Ticker: it.Ticker, Source: it.Source, Confidence: it.Confidence, ResolvedAt: it.LastAttemptAt}
}

// QueueStore is the durable queue of identifiers to resolve.
//
// Transitions are pending → processing → completed, or back to pending with
// one more attempt, or failed once the attempts are exhausted. A failed item
// is only revived by an Enqueue with a strictly higher priority.
type QueueStore interface {
	// Enqueue adds 'userID' to the owners of 'cusip', creating the item if
	// needed. The priority only ever increases.
	Enqueue(ctx context.Context, cusip, userID string, priority int, now time.Time) (Item, error)
	// Claim marks up to 'limit' eligible items processing and returns them,
	// highest priority first.
	Claim(ctx context.Context, now time.Time, limit int) ([]Item, error)
	// Complete records the resolution of a claimed item.
	Complete(ctx context.Context, cusip string, m Mapping, now time.Time) (Item, error)
	// Fail records a failed attempt on a claimed item.
	Fail(ctx context.Context, cusip string, cause error, now time.Time) (Item, error)
	Get(ctx context.Context, cusip string) (Item, bool, error)
	List(ctx context.Context) ([]Item, error)
}

// MemoryQueue is an in-process QueueStore.
type MemoryQueue struct {
	mu     sync.Mutex
	policy Policy
	items  map[string]*Item
}

// NewMemoryQueue returns an empty queue applying 'policy'.
func NewMemoryQueue(policy Policy) *MemoryQueue {
	return &MemoryQueue{policy: policy, items: make(map[string]*Item)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, cusip, userID string, priority int, now time.Time) (Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[cusip]
	if !ok {
		it = &Item{CUSIP: cusip, Priority: priority, Status: Pending, CreatedAt: now}
		q.items[cusip] = it
	}
	if userID != "" {
		if i, found := slices.BinarySearch(it.Users, userID); !found {
			it.Users = slices.Insert(it.Users, i, userID)
		}
	}
	if priority > it.Priority {
		if it.Status == Failed {
			it.Status = Pending
			it.Attempts = 0
		}
		it.Priority = priority
	}
	return clone(it), nil
}

func (q *MemoryQueue) Claim(_ context.Context, now time.Time, limit int) ([]Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var eligible []*Item
	for _, it := range q.items {
		if q.policy.Eligible(*it, now) {
			eligible = append(eligible, it)
		}
	}
	slices.SortFunc(eligible, func(a, b *Item) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.CUSIP, b.CUSIP)
	})
	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}
	claimed := make([]Item, 0, len(eligible))
	for _, it := range eligible {
		it.Status = Processing
		it.ClaimedAt = now
		claimed = append(claimed, clone(it))
	}
	return claimed, nil
}

func (q *MemoryQueue) Complete(_ context.Context, cusip string, m Mapping, now time.Time) (Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[cusip]
	if !ok {
		return Item{}, ErrNotQueued
	}
	it.Status = Completed
	it.Attempts++
	it.LastAttemptAt = now
	it.LastError = ""
	it.Ticker, it.Source, it.Confidence = m.Ticker, m.Source, m.Confidence
	return clone(it), nil
}

func (q *MemoryQueue) Fail(_ context.Context, cusip string, cause error, now time.Time) (Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[cusip]
	if !ok {
		return Item{}, ErrNotQueued
	}
	it.Attempts++
	it.LastAttemptAt = now
	if cause != nil {
		it.LastError = cause.Error()
	}
	it.Status = Pending
	if it.Attempts >= q.policy.MaxAttempts {
		it.Status = Failed
	}
	return clone(it), nil
}

func (q *MemoryQueue) Get(_ context.Context, cusip string) (Item, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[cusip]
	if !ok {
		return Item{}, false, nil
	}
	return clone(it), true, nil
}

func (q *MemoryQueue) List(_ context.Context) ([]Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := make([]Item, 0, len(q.items))
	for _, it := range q.items {
		items = append(items, clone(it))
	}
	slices.SortFunc(items, func(a, b Item) int { return cmp.Compare(a.CUSIP, b.CUSIP) })
	return items, nil
}

func clone(it *Item) Item {
	c := *it
	c.Users = slices.Clone(it.Users)
	return c
}
