// Package login signs members in with nothing but their member number.
package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"memberhub/internal/auth"
	"memberhub/internal/members"
	"memberhub/internal/retry"
)

const genericMessage = "Please try again later. If the problem persists, contact support."

// MemberFinder is the part of the members store the flow needs.
type MemberFinder interface {
	FindByNumber(ctx context.Context, number string) (*members.Member, error)
	LinkAuthUser(ctx context.Context, id, authUserID string) error
}

type Authenticator interface {
	LoginOrSignup(ctx context.Context, memberNumber string) (*auth.Session, error)
	SignOut(ctx context.Context, sess *auth.Session) error
}

// Error is returned when every attempt failed. Message is safe to show
// to the member; Cause is for logs.
type Error struct {
	MemberNumber string
	Message      string
	Cause        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("login %s: %v", e.MemberNumber, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// DefaultPolicy tries three times, waiting 2s and then 4s.
func DefaultPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, Backoff: retry.Exponential(2 * time.Second)}
}

type Flow struct {
	Members MemberFinder
	Auth    Authenticator
	Policy  retry.Policy
	Logger  *slog.Logger
}

func New(m MemberFinder, a Authenticator, logger *slog.Logger) *Flow {
	return &Flow{Members: m, Auth: a, Policy: DefaultPolicy(), Logger: logger}
}

// Login finds the member, signs in (creating the account on first use)
// and links the account to the member record.
func (f *Flow) Login(ctx context.Context, memberNumber string) (*auth.Session, error) {
	number := members.NormalizeNumber(memberNumber)
	if number == "" {
		return nil, &Error{Message: "Please enter your member number.", Cause: members.ErrMemberNotFound}
	}

	var sess *auth.Session
	p := f.Policy
	p.OnRetry = func(attempt int, err error) {
		f.Logger.Warn("login attempt failed", "attempt", attempt, "member", number, "err", err)
	}
	err := retry.Do(ctx, p, func(ctx context.Context) error {
		s, err := f.attempt(ctx, number)
		if err != nil {
			return err
		}
		sess = s
		return nil
	})
	if err == nil {
		return sess, nil
	}

	f.Logger.Error("login failed", "member", number, "err", err)
	msg := genericMessage
	if errors.Is(err, members.ErrMemberNotFound) {
		msg = fmt.Sprintf("Member %s not found in our records. Please check your member number or contact support.", number)
	}
	return nil, &Error{MemberNumber: number, Message: msg, Cause: err}
}

func (f *Flow) attempt(ctx context.Context, number string) (*auth.Session, error) {
	m, err := f.Members.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, members.ErrMemberNotFound) {
			return nil, retry.Permanent(err)
		}
		return nil, fmt.Errorf("find member: %w", err)
	}
	sess, err := f.Auth.LoginOrSignup(ctx, m.MemberNumber)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if m.AuthUserID == nil || *m.AuthUserID == "" {
		if err := f.Members.LinkAuthUser(ctx, m.ID, sess.UserID); err != nil {
			if serr := f.Auth.SignOut(ctx, sess); serr != nil {
				f.Logger.Warn("sign out partial session", "err", serr)
			}
			return nil, fmt.Errorf("link auth user: %w", err)
		}
	}
	return sess, nil
}
