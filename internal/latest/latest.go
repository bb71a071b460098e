// Package latest discards responses that were overtaken by a newer request
// for the same logical resource.
package latest

import "sync"

// Ticket identifies one issued request.
type Ticket struct {
	Scope string
	Key   string
	seq   uint64
}

// Guard hands out tickets per scope. Only the most recently issued ticket
// of a scope is current; Invalidate makes every outstanding ticket of a
// scope stale.
type Guard struct {
	mu   sync.Mutex
	seqs map[string]uint64
	keys map[string]string
}

func NewGuard() *Guard {
	return &Guard{
		seqs: make(map[string]uint64),
		keys: make(map[string]string),
	}
}

// Issue records a new request for scope with the given parameters key.
func (g *Guard) Issue(scope, key string) Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seqs[scope]++
	g.keys[scope] = key
	return Ticket{Scope: scope, Key: key, seq: g.seqs[scope]}
}

// Current reports whether t is still the latest ticket of its scope.
func (g *Guard) Current(t Ticket) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return t.seq != 0 && g.seqs[t.Scope] == t.seq && g.keys[t.Scope] == t.Key
}

// Accept runs apply only if t is current, holding the guard so that no
// newer ticket can be issued in between. It reports whether apply ran.
func (g *Guard) Accept(t Ticket, apply func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t.seq == 0 || g.seqs[t.Scope] != t.seq || g.keys[t.Scope] != t.Key {
		return false
	}
	if apply != nil {
		apply()
	}
	return true
}

// Invalidate makes all outstanding tickets of scope stale.
func (g *Guard) Invalidate(scope string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seqs[scope]++
	delete(g.keys, scope)
}

// LastKey returns the parameters of the latest request issued for scope.
func (g *Guard) LastKey(scope string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k, ok := g.keys[scope]
	return k, ok
}
