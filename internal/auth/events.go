package auth

import (
	"sync"
	"time"
)

type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

type Event struct {
	Type    EventType
	Session *Session
	At      time.Time
}

// Broker fans auth state changes out to subscribers. Subscribers are
// called synchronously, outside the broker's lock, in no particular order.
type Broker struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]func(Event)
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[uint64]func(Event))}
}

// Subscribe registers fn and returns the function that removes it. The
// returned function is safe to call more than once.
func (b *Broker) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *Broker) Publish(e Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(e)
	}
}

func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// revocations remembers signed-out session ids until their tokens expire.
type revocations struct {
	mu  sync.Mutex
	ids map[string]time.Time
}

func newRevocations() *revocations {
	return &revocations{ids: make(map[string]time.Time)}
}

func (r *revocations) revoke(id string, exp time.Time) {
	r.mu.Lock()
	r.ids[id] = exp
	r.mu.Unlock()
}

func (r *revocations) revoked(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok
}

func (r *revocations) purge(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, exp := range r.ids {
		if !exp.After(now) {
			delete(r.ids, id)
			n++
		}
	}
	return n
}
