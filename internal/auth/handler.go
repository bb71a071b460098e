package auth

import (
	"log/slog"
	"net/http"

	"memberhub/internal/api"
)

type LogoutHandler struct {
	Service *Service
	Logger  *slog.Logger
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if err := h.Service.SignOut(r.Context(), sess); err != nil {
		h.Logger.Error("sign out", "err", err, "user", sess.UserID)
		api.Error(w, http.StatusInternalServerError, "Failed to log out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type RefreshHandler struct {
	Service *Service
	Logger  *slog.Logger
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	fresh, err := h.Service.Refresh(r.Context(), sess)
	if err != nil {
		h.Logger.Error("refresh session", "err", err, "user", sess.UserID)
		api.Error(w, http.StatusInternalServerError, "Session refresh failed. Please log in again.")
		return
	}
	api.JSON(w, http.StatusOK, fresh)
}
