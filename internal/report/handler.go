package report

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"memberhub/internal/api"
	"memberhub/internal/members"
)

type MemberLister interface {
	List(ctx context.Context, f members.Filter) ([]members.Member, error)
}

// Handler serves GET /api/v1/reports/members[?collector=name].
type Handler struct {
	Members   MemberLister
	Generator *Generator
	Logger    *slog.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	filter := members.Filter{Order: members.OrderMemberNumber}
	title := "Complete Members List"
	if c := r.URL.Query().Get("collector"); c != "" {
		filter.Collectors = []string{c}
		title = "Members List - Collector: " + c
	}
	ms, err := h.Members.List(r.Context(), filter)
	if err != nil {
		h.Logger.Error("load members for report", "err", err)
		api.Error(w, http.StatusInternalServerError, "Could not load members.")
		return
	}

	var buf bytes.Buffer
	summary, err := h.Generator.Generate(&buf, title, ms)
	if err != nil {
		h.Logger.Error("generate report", "err", err, "members", len(ms))
		api.Error(w, http.StatusInternalServerError, "Failed to generate the report. Please try again.")
		return
	}
	now := time.Now()
	if h.Generator.Now != nil {
		now = h.Generator.Now()
	}
	h.Logger.Info("report generated", "sections", len(summary.Sections), "rows", summary.Rows, "pages", summary.Pages)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+Filename(now)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
