package roles

import (
	"log/slog"
	"net/http"
	"time"

	"memberhub/internal/api"
	"memberhub/internal/auth"
)

type meResponse struct {
	UserID       string      `json:"user_id"`
	Email        string      `json:"email"`
	MemberNumber string      `json:"member_number,omitempty"`
	ExpiresAt    time.Time   `json:"expires_at"`
	Status       Status      `json:"status"`
	Roles        []Role      `json:"roles"`
	PrimaryRole  Role        `json:"primary_role"`
	Permissions  Permissions `json:"permissions"`
	Tabs         []Tab       `json:"tabs"`
	Error        string      `json:"error,omitempty"`
}

// MeHandler describes the caller's identity and what they may see. A role
// fetch failure is reported in the body while every tab stays hidden.
type MeHandler struct {
	Tracker *Tracker
	Logger  *slog.Logger
}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	state := h.Tracker.Ensure(r.Context(), sess)
	resp := meResponse{
		UserID:       sess.UserID,
		Email:        sess.Email,
		MemberNumber: sess.Metadata.MemberNumber,
		ExpiresAt:    sess.ExpiresAt,
		Status:       state.Status,
		Roles:        []Role{},
		PrimaryRole:  state.Primary(),
		Permissions:  PermissionsFor(nil),
		Tabs:         AllowedTabs(state),
	}
	if state.Status == StatusResolved {
		resp.Roles = state.Resolved.Roles
		resp.Permissions = state.Resolved.Permissions
	}
	if state.Status == StatusError {
		h.Logger.Error("resolve roles for me", "err", state.Err, "user", sess.UserID)
		resp.Error = "Error fetching roles"
	}
	api.JSON(w, http.StatusOK, resp)
}
