package roles

import (
	"context"
	"log/slog"
	"sync"

	"memberhub/internal/auth"
	"memberhub/internal/latest"
)

type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusLoading       Status = "loading"
	StatusResolved      Status = "resolved"
	StatusError         Status = "error"
)

// State is the role lifecycle of one user. Resolved is only meaningful
// when Status is StatusResolved.
type State struct {
	Status   Status
	Resolved Resolved
	Err      error
}

func (s State) resolved() bool { return s.Status == StatusResolved }

func (s State) HasRole(r Role) bool {
	if !s.resolved() {
		return false
	}
	for _, have := range s.Resolved.Roles {
		if have == r {
			return true
		}
	}
	return false
}

func (s State) HasAnyRole(rs ...Role) bool {
	for _, r := range rs {
		if s.HasRole(r) {
			return true
		}
	}
	return false
}

func (s State) HasPermission(c Capability) bool {
	return s.resolved() && s.Resolved.Permissions[c]
}

// Primary returns RoleNone unless the state is resolved.
func (s State) Primary() Role {
	if !s.resolved() {
		return RoleNone
	}
	return s.Resolved.Primary
}

// Tracker keeps the role state of signed-in users. It is created once and
// handed to whatever needs role decisions. Sign-out clears a user's state,
// sign-in forces a fresh resolution, and a resolution that finishes after
// a newer one started (or after an invalidation) is dropped.
type Tracker struct {
	resolver    *Resolver
	guard       *latest.Guard
	logger      *slog.Logger
	unsubscribe func()

	mu     sync.RWMutex
	states map[string]State
}

func NewTracker(resolver *Resolver, events *auth.Broker, logger *slog.Logger) *Tracker {
	t := &Tracker{
		resolver: resolver,
		guard:    latest.NewGuard(),
		logger:   logger,
		states:   make(map[string]State),
	}
	if events != nil {
		t.unsubscribe = events.Subscribe(t.onAuthEvent)
	}
	return t
}

func (t *Tracker) onAuthEvent(e auth.Event) {
	if e.Session == nil {
		return
	}
	switch e.Type {
	case auth.EventSignedIn, auth.EventSignedOut:
		t.Invalidate(e.Session.UserID)
	}
}

// Close detaches the tracker from the auth event stream.
func (t *Tracker) Close() {
	if t.unsubscribe != nil {
		t.unsubscribe()
	}
}

// State returns the current state of a user without resolving.
func (t *Tracker) State(userID string) State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.states[userID]; ok {
		return s
	}
	return State{Status: StatusUninitialized}
}

// Ensure returns the resolved state of the session's user, resolving it
// when it is not resolved yet.
func (t *Tracker) Ensure(ctx context.Context, sess *auth.Session) State {
	if sess != nil {
		if s := t.State(sess.UserID); s.Status == StatusResolved {
			return s
		}
	}
	return t.Resolve(ctx, sess)
}

// Resolve recomputes the state of the session's user. The caller always
// gets the outcome of its own fetch; only the newest resolution is stored.
func (t *Tracker) Resolve(ctx context.Context, sess *auth.Session) State {
	if sess == nil || sess.UserID == "" {
		return State{Status: StatusError, Err: auth.ErrUnauthenticated}
	}
	ticket := t.guard.Issue(sess.UserID, sess.ID)
	t.guard.Accept(ticket, func() {
		t.set(sess.UserID, State{Status: StatusLoading})
	})

	resolved, err := t.resolver.Resolve(ctx, sess)
	next := State{Status: StatusResolved, Resolved: resolved}
	if err != nil {
		next = State{Status: StatusError, Err: err}
	}
	if !t.guard.Accept(ticket, func() { t.set(sess.UserID, next) }) {
		// Not stored, but still the caller's own fresh answer.
		t.logger.Debug("discarding stale role resolution", "user", sess.UserID)
	}
	return next
}

// Invalidate clears the state of a user; in-flight resolutions for that
// user are discarded when they finish.
func (t *Tracker) Invalidate(userID string) {
	t.guard.Invalidate(userID)
	t.mu.Lock()
	delete(t.states, userID)
	t.mu.Unlock()
}

func (t *Tracker) set(userID string, s State) {
	t.mu.Lock()
	t.states[userID] = s
	t.mu.Unlock()
}
