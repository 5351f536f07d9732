package tradebook

import (
	"fmt"
	"time"
)

// Identity identifies a broker fill across imports.
//
// It is the broker-native fill id when there is one, otherwise the tuple
// (instrument code, timestamp, quantity, price, fees). The instrument code is
// the raw code of the export, so a fill keeps its identity once its symbol
// is patched.
type Identity string

// Identity returns the identity of e.
func (e Execution) Identity() Identity {
	if e.Origin != "" {
		return Identity(e.Origin)
	}
	if e.ExternalID != "" {
		return Identity("id:" + e.ExternalID)
	}
	code := e.RawCode
	if code == "" {
		code = e.Symbol
	}
	return Identity(fmt.Sprintf("fill:%s|%s|%s|%s|%s",
		code,
		e.Time.UTC().Format(time.RFC3339Nano),
		e.Quantity.Decimal().String(),
		e.Price.Decimal().String(),
		e.Cost().Decimal().String(),
	))
}

// KnownExecutions reports whether an execution has already been accounted
// for, typically in a previously persisted trade.
type KnownExecutions interface {
	Seen(Identity) bool
}

// DedupGuard is a set of execution identities.
//
// Its zero value is ready to use.
type DedupGuard struct {
	seen map[Identity]struct{}
}

// NewDedupGuard returns a guard that already knows 'executions'.
func NewDedupGuard(executions ...Execution) *DedupGuard {
	g := new(DedupGuard)
	for _, e := range executions {
		g.Add(e.Identity())
	}
	return g
}

// Seen implements KnownExecutions.
func (g *DedupGuard) Seen(id Identity) bool {
	if g == nil {
		return false
	}
	_, ok := g.seen[id]
	return ok
}

// Add records id, it returns false if it was already there.
func (g *DedupGuard) Add(id Identity) bool {
	if g.seen == nil {
		g.seen = make(map[Identity]struct{})
	}
	if _, ok := g.seen[id]; ok {
		return false
	}
	g.seen[id] = struct{}{}
	return true
}

// Len returns the number of identities in the guard.
func (g *DedupGuard) Len() int {
	if g == nil {
		return 0
	}
	return len(g.seen)
}
