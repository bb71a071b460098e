package roles

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"memberhub/internal/api"
)

// Writer changes the role rows of a user.
type Writer interface {
	Assign(ctx context.Context, userID, role string) error
	Revoke(ctx context.Context, userID string, role Role) error
}

// AdminHandler grants and revokes roles. Every change drops the user's
// cached state so the next request resolves the new role set.
//
//	POST   /api/v1/users/{id}/roles        {"role": "collector"}
//	DELETE /api/v1/users/{id}/roles/{role}
type AdminHandler struct {
	Store   Writer
	Tracker *Tracker
	Logger  *slog.Logger
}

type assignRequest struct {
	Role string `json:"role"`
}

func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		api.Error(w, http.StatusBadRequest, "Missing user id.")
		return
	}

	var (
		role Role
		err  error
	)
	switch r.Method {
	case http.MethodPost:
		var req assignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, "Invalid request body.")
			return
		}
		var ok bool
		if role, ok = ParseRole(req.Role); !ok {
			api.Error(w, http.StatusBadRequest, "Unknown role.")
			return
		}
		err = h.Store.Assign(r.Context(), userID, string(role))
	case http.MethodDelete:
		var ok bool
		if role, ok = ParseRole(r.PathValue("role")); !ok {
			api.Error(w, http.StatusBadRequest, "Unknown role.")
			return
		}
		err = h.Store.Revoke(r.Context(), userID, role)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err != nil {
		h.Logger.Error("change role", "err", err, "user", userID, "role", role, "method", r.Method)
		api.Error(w, http.StatusInternalServerError, "Could not update roles.")
		return
	}

	h.Tracker.Invalidate(userID)
	h.Logger.Info("role changed", "user", userID, "role", role, "method", r.Method)
	w.WriteHeader(http.StatusNoContent)
}
