// Package analyzer reports, per member number, the records an admin needs
// to diagnose login and access problems: the member row, the linked
// account, its role rows and the assigned collector.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"memberhub/internal/api"
	"memberhub/internal/auth"
	"memberhub/internal/collectors"
	"memberhub/internal/members"
	"memberhub/internal/roles"
)

// MaxNumbers bounds one analysis request.
const MaxNumbers = 50

type MemberGetter interface {
	GetByNumber(ctx context.Context, number string) (*members.Member, error)
}

type AccountGetter interface {
	GetByID(ctx context.Context, id string) (*auth.User, error)
}

type RoleLister interface {
	ListForUser(ctx context.Context, userID string) ([]roles.Role, error)
}

type CollectorGetter interface {
	GetByID(ctx context.Context, id string) (*collectors.Collector, error)
}

// Result is the analysis of one member number. Lookups that could not run
// or failed leave their field nil and add a line to Errors.
type Result struct {
	MemberNumber string                `json:"member_number"`
	Member       *members.Member       `json:"member"`
	Account      *auth.User            `json:"account"`
	Roles        []roles.Role          `json:"roles"`
	PrimaryRole  roles.Role            `json:"primary_role"`
	Collector    *collectors.Collector `json:"collector"`
	Errors       []string              `json:"errors"`
}

type Analyzer struct {
	Members    MemberGetter
	Accounts   AccountGetter
	Roles      RoleLister
	Collectors CollectorGetter
	Logger     *slog.Logger
}

// Analyze looks up every number independently; one failing number does
// not affect the others.
func (a *Analyzer) Analyze(ctx context.Context, numbers []string) []Result {
	out := make([]Result, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, a.one(ctx, members.NormalizeNumber(n)))
	}
	return out
}

func (a *Analyzer) one(ctx context.Context, number string) Result {
	res := Result{MemberNumber: number, Roles: []roles.Role{}, PrimaryRole: roles.RoleNone, Errors: []string{}}
	fail := func(msg, what string, err error) {
		a.Logger.Error("analyze member", "err", err, "member_number", number, "lookup", what)
		res.Errors = append(res.Errors, msg)
	}

	m, err := a.Members.GetByNumber(ctx, number)
	switch {
	case errors.Is(err, members.ErrMemberNotFound):
		res.Errors = append(res.Errors, "Member not found.")
		return res
	case err != nil:
		fail("Could not load the member record.", "member", err)
		return res
	}
	res.Member = m

	if userID := members.Str(m.AuthUserID); userID == "" {
		res.Errors = append(res.Errors, "Member has no linked login account.")
	} else {
		u, err := a.Accounts.GetByID(ctx, userID)
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			res.Errors = append(res.Errors, "Linked login account does not exist.")
		case err != nil:
			fail("Could not load the login account.", "account", err)
		default:
			res.Account = u
		}

		rs, err := a.Roles.ListForUser(ctx, userID)
		if err != nil {
			fail("Could not load roles.", "roles", err)
		} else {
			resolved := roles.NewResolved(rs)
			res.Roles, res.PrimaryRole = resolved.Roles, resolved.Primary
		}
	}

	if cid := members.Str(m.CollectorID); cid != "" {
		c, err := a.Collectors.GetByID(ctx, cid)
		switch {
		case errors.Is(err, collectors.ErrCollectorNotFound):
			res.Errors = append(res.Errors, "Assigned collector does not exist.")
		case err != nil:
			fail("Could not load the collector.", "collector", err)
		default:
			res.Collector = c
		}
	}
	return res
}

type analyzeRequest struct {
	MemberNumbers []string `json:"member_numbers"`
}

// Handler serves POST /api/v1/system/analyze.
type Handler struct {
	Analyzer *Analyzer
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	var numbers []string
	for _, n := range req.MemberNumbers {
		if strings.TrimSpace(n) != "" {
			numbers = append(numbers, n)
		}
	}
	switch {
	case len(numbers) == 0:
		api.Error(w, http.StatusBadRequest, "Enter at least one member number.")
		return
	case len(numbers) > MaxNumbers:
		api.Error(w, http.StatusBadRequest, "Too many member numbers.")
		return
	}
	api.JSON(w, http.StatusOK, h.Analyzer.Analyze(r.Context(), numbers))
}
