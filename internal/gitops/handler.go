package gitops

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"memberhub/internal/api"
	"memberhub/internal/auth"
)

type pushResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type PushHandler struct {
	Service *Service
	Logger  *slog.Logger
}

func (h *PushHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		api.JSON(w, http.StatusUnauthorized, pushResponse{Error: "No authorization header"})
		return
	}
	var req PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		api.JSON(w, http.StatusBadRequest, pushResponse{Error: "Invalid request body"})
		return
	}
	res, err := h.Service.Push(r.Context(), sess.UserID, req)
	if err != nil {
		api.JSON(w, http.StatusBadRequest, pushResponse{Error: err.Error()})
		return
	}
	api.JSON(w, http.StatusOK, pushResponse{Success: true, Message: res.Message, Data: res.Ref})
}

type LogsHandler struct {
	Store  *Store
	Logger *slog.Logger
}

func (h *LogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil {
			limit = l
		}
	}
	logs, err := h.Store.List(r.Context(), limit)
	if err != nil {
		h.Logger.Error("list git operation logs", "err", err)
		api.Error(w, http.StatusInternalServerError, "Failed to fetch operation logs")
		return
	}
	api.JSON(w, http.StatusOK, logs)
}
