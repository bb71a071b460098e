package login

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"memberhub/internal/api"
)

type Handler struct {
	Flow   *Flow
	Logger *slog.Logger
}

type loginRequest struct {
	MemberNumber string `json:"member_number"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	sess, err := h.Flow.Login(r.Context(), req.MemberNumber)
	if err != nil {
		var lerr *Error
		if errors.As(err, &lerr) {
			api.Error(w, http.StatusUnauthorized, lerr.Message)
			return
		}
		h.Logger.Error("login", "err", err)
		api.Error(w, http.StatusInternalServerError, genericMessage)
		return
	}
	api.JSON(w, http.StatusOK, sess)
}
