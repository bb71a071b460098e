package roles

import (
	"context"
	"log/slog"
	"net/http"

	"memberhub/internal/api"
	"memberhub/internal/auth"
)

type contextKey string

const stateContextKey contextKey = "memberhub_roles"

func WithState(ctx context.Context, s State) context.Context {
	return context.WithValue(ctx, stateContextKey, s)
}

// StateFromContext returns the state placed by the role middleware, or an
// uninitialized state.
func StateFromContext(ctx context.Context) State {
	if s, ok := ctx.Value(stateContextKey).(State); ok {
		return s
	}
	return State{Status: StatusUninitialized}
}

// RequireTab only lets requests through whose user may see tab.
func RequireTab(t *Tracker, tab Tab, logger *slog.Logger) func(http.Handler) http.Handler {
	return gate(t, logger, func(s State) bool { return CanAccessTab(s, tab) })
}

// RequirePermission only lets requests through whose user holds c.
func RequirePermission(t *Tracker, c Capability, logger *slog.Logger) func(http.Handler) http.Handler {
	return gate(t, logger, func(s State) bool { return s.HasPermission(c) })
}

func gate(t *Tracker, logger *slog.Logger, allow func(State) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := auth.SessionFromContext(r.Context())
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			state := t.Ensure(r.Context(), sess)
			switch {
			case state.Status == StatusError:
				logger.Warn("access denied, roles unavailable", "err", state.Err, "user", sess.UserID, "path", r.URL.Path)
				api.Error(w, http.StatusServiceUnavailable, "Could not load your roles. Please try again.")
				return
			case !allow(state):
				api.Error(w, http.StatusForbidden, "You do not have access to this section.")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithState(r.Context(), state)))
		})
	}
}
