package members

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"memberhub/internal/api"
	"memberhub/internal/auth"
)

type ListHandler struct {
	Store  *Store
	Logger *slog.Logger
}

func (h *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	filter := Filter{
		Search: strings.TrimSpace(q.Get("search")),
		Order:  Order(q.Get("order")),
	}
	for _, c := range q["collector"] {
		if c != "" {
			filter.Collectors = append(filter.Collectors, c)
		}
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = l
		}
	}
	ms, err := h.Store.List(r.Context(), filter)
	if err != nil {
		h.Logger.Error("list members", "err", err)
		api.Error(w, http.StatusInternalServerError, "Could not load members.")
		return
	}
	api.JSON(w, http.StatusOK, ms)
}

type CountHandler struct {
	Store  *Store
	Logger *slog.Logger
}

func (h *CountHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	n, err := h.Store.Count(r.Context())
	if err != nil {
		h.Logger.Error("count members", "err", err)
		api.Error(w, http.StatusInternalServerError, "Could not count members.")
		return
	}
	api.JSON(w, http.StatusOK, []api.Count{{Label: "Total Members", Count: n}})
}

// DetailHandler serves /api/v1/members/{id}.
type DetailHandler struct {
	Store  *Store
	Logger *slog.Logger
}

func (h *DetailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	m, err := h.Store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			api.Error(w, http.StatusNotFound, "Member not found.")
			return
		}
		h.Logger.Error("get member", "err", err)
		api.Error(w, http.StatusInternalServerError, "Could not load member.")
		return
	}
	api.JSON(w, http.StatusOK, m)
}

type PaymentKind string

const (
	KindPayment   PaymentKind = "payment"
	KindYearly    PaymentKind = "yearly"
	KindEmergency PaymentKind = "emergency"
)

// PaymentHandler records one kind of payment against /api/v1/members/{id}.
type PaymentHandler struct {
	Store  *Store
	Kind   PaymentKind
	Logger *slog.Logger
	Now    func() time.Time
}

type paymentRequest struct {
	Amount  *float64   `json:"amount"`
	Type    string     `json:"type"`
	Date    *time.Time `json:"date"`
	DueDate *time.Time `json:"due_date"`
	Status  string     `json:"status"`
	Notes   string     `json:"notes"`
}

func (h *PaymentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.Amount != nil && *req.Amount < 0 {
		api.Error(w, http.StatusBadRequest, "Amount cannot be negative.")
		return
	}
	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now()
	}
	status := req.Status
	if status == "" {
		status = "pending"
	}

	id := r.PathValue("id")
	var err error
	switch h.Kind {
	case KindPayment:
		if req.Amount == nil || req.Type == "" {
			api.Error(w, http.StatusBadRequest, "Amount and payment type are required.")
			return
		}
		p := Payment{Amount: *req.Amount, Type: req.Type, Date: now, Notes: req.Notes}
		if req.Date != nil {
			p.Date = *req.Date
		}
		err = h.Store.RecordPayment(r.Context(), id, p)
	case KindYearly:
		y := YearlyPayment{Amount: DefaultYearlyAmount, DueDate: YearlyDueDate(now), Status: status}
		if req.Amount != nil {
			y.Amount = *req.Amount
		}
		if req.DueDate != nil {
			y.DueDate = *req.DueDate
		}
		err = h.Store.UpdateYearlyPayment(r.Context(), id, y)
	case KindEmergency:
		if req.Amount == nil || req.DueDate == nil {
			api.Error(w, http.StatusBadRequest, "Amount and due date are required.")
			return
		}
		err = h.Store.UpdateEmergencyCollection(r.Context(), id, EmergencyCollection{
			Amount: *req.Amount, DueDate: *req.DueDate, Status: status,
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			api.Error(w, http.StatusNotFound, "Member not found.")
			return
		}
		h.Logger.Error("update member payment", "err", err, "kind", h.Kind, "member", id)
		api.Error(w, http.StatusInternalServerError, "Could not save payment.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type profileResponse struct {
	Member   *Member         `json:"member"`
	Timeline []TimelineEntry `json:"timeline"`
}

// ProfileHandler returns the caller's own member record.
type ProfileHandler struct {
	Store  *Store
	Rule   OverdueRule
	Logger *slog.Logger
	Now    func() time.Time
}

func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	m, err := h.Store.FindProfile(r.Context(), sess.Metadata.MemberNumber, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			api.Error(w, http.StatusNotFound, "No member record is linked to this account.")
			return
		}
		h.Logger.Error("load profile", "err", err, "user", sess.UserID)
		api.Error(w, http.StatusInternalServerError, "Could not load your profile.")
		return
	}
	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now()
	}
	api.JSON(w, http.StatusOK, profileResponse{Member: m, Timeline: Timeline(m, h.Rule, now)})
}
