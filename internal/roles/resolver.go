package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"memberhub/internal/auth"
	"memberhub/internal/retry"
)

// Fetcher reads the raw role rows of a user.
type Fetcher interface {
	ListForUser(ctx context.Context, userID string) ([]Role, error)
}

// FetchError reports that the roles of a user could not be loaded.
type FetchError struct {
	UserID string
	Cause  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch roles for user %s: %v", e.UserID, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// DefaultPolicy tries twice, half a second apart.
func DefaultPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, Backoff: retry.Fixed(500 * time.Millisecond)}
}

type Resolver struct {
	fetcher Fetcher
	policy  retry.Policy
	logger  *slog.Logger
}

func NewResolver(fetcher Fetcher, policy retry.Policy, logger *slog.Logger) *Resolver {
	return &Resolver{fetcher: fetcher, policy: policy, logger: logger}
}

// Resolve loads the roles of the session's user. It fails with
// auth.ErrUnauthenticated without a session and with *FetchError when the
// roles cannot be read; it never substitutes a previous result.
func (r *Resolver) Resolve(ctx context.Context, sess *auth.Session) (Resolved, error) {
	if sess == nil || sess.UserID == "" {
		return Resolved{}, auth.ErrUnauthenticated
	}
	policy := r.policy
	policy.OnRetry = func(attempt int, err error) {
		r.logger.Warn("role fetch failed, retrying", "err", err, "user", sess.UserID, "attempt", attempt)
	}
	var raw []Role
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		raw, err = r.fetcher.ListForUser(ctx, sess.UserID)
		return err
	})
	if err != nil {
		r.logger.Error("fetch roles", "err", err, "user", sess.UserID)
		return Resolved{}, &FetchError{UserID: sess.UserID, Cause: err}
	}
	return NewResolved(raw), nil
}

// IsFetchError reports whether err is a role fetch failure.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
