package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"memberhub/internal/analyzer"
	"memberhub/internal/api"
	"memberhub/internal/auth"
	"memberhub/internal/collectors"
	"memberhub/internal/gitops"
	"memberhub/internal/login"
	"memberhub/internal/members"
	"memberhub/internal/report"
	"memberhub/internal/roles"
)

// Deps are the services the router exposes.
type Deps struct {
	Logger      *slog.Logger
	Auth        *auth.Service
	Tracker     *roles.Tracker
	Login       *login.Flow
	Members     *members.Store
	Collectors  *collectors.Store
	Reports     *report.Generator
	Git         *gitops.Service
	GitLogs     *gitops.Store
	Analyzer    *analyzer.Analyzer
	RoleWriter  roles.Writer
	OverdueRule members.OverdueRule
	CORSOrigins []string
}

func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	logger := d.Logger

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth
	mux.Handle("POST /api/v1/auth/login", &login.Handler{Flow: d.Login, Logger: logger})

	secured := auth.JWTMiddleware(d.Auth)
	tab := func(t roles.Tab, h http.Handler) http.Handler {
		return secured(roles.RequireTab(d.Tracker, t, logger)(h))
	}
	can := func(c roles.Capability, h http.Handler) http.Handler {
		return secured(roles.RequirePermission(d.Tracker, c, logger)(h))
	}

	mux.Handle("POST /api/v1/auth/logout", secured(&auth.LogoutHandler{Service: d.Auth, Logger: logger}))
	mux.Handle("POST /api/v1/auth/refresh", secured(&auth.RefreshHandler{Service: d.Auth, Logger: logger}))
	mux.Handle("GET /api/v1/me", secured(&roles.MeHandler{Tracker: d.Tracker, Logger: logger}))
	mux.Handle("GET /api/v1/me/profile", secured(&members.ProfileHandler{Store: d.Members, Rule: d.OverdueRule, Logger: logger}))

	// Members
	mux.Handle("GET /api/v1/members", tab(roles.TabUsers, &members.ListHandler{Store: d.Members, Logger: logger}))
	mux.Handle("GET /api/v1/members/count", tab(roles.TabUsers, &members.CountHandler{Store: d.Members, Logger: logger}))
	mux.Handle("GET /api/v1/members/{id}", tab(roles.TabUsers, &members.DetailHandler{Store: d.Members, Logger: logger}))
	mux.Handle("PATCH /api/v1/members/{id}/payment", can(roles.CapCollectPayments,
		&members.PaymentHandler{Store: d.Members, Kind: members.KindPayment, Logger: logger}))
	mux.Handle("PATCH /api/v1/members/{id}/yearly", tab(roles.TabFinancials,
		&members.PaymentHandler{Store: d.Members, Kind: members.KindYearly, Logger: logger}))
	mux.Handle("PATCH /api/v1/members/{id}/emergency", tab(roles.TabFinancials,
		&members.PaymentHandler{Store: d.Members, Kind: members.KindEmergency, Logger: logger}))

	// Collectors and reports
	mux.Handle("GET /api/v1/collectors", tab(roles.TabCollectors, &collectors.ListHandler{Store: d.Collectors, Logger: logger}))
	mux.Handle("GET /api/v1/collectors/{name}/members", tab(roles.TabCollectors, &collectors.MembersHandler{Store: d.Collectors, Logger: logger}))
	mux.Handle("GET /api/v1/reports/members", tab(roles.TabCollectors, &report.Handler{Members: d.Members, Generator: d.Reports, Logger: logger}))

	// System
	mux.Handle("POST /api/v1/git/push", tab(roles.TabSystem, &gitops.PushHandler{Service: d.Git, Logger: logger}))
	mux.Handle("GET /api/v1/git/logs", tab(roles.TabSystem, &gitops.LogsHandler{Store: d.GitLogs, Logger: logger}))
	mux.Handle("POST /api/v1/system/analyze", tab(roles.TabSystem, &analyzer.Handler{Analyzer: d.Analyzer}))
	roleAdmin := &roles.AdminHandler{Store: d.RoleWriter, Tracker: d.Tracker, Logger: logger}
	mux.Handle("POST /api/v1/users/{id}/roles", tab(roles.TabSystem, roleAdmin))
	mux.Handle("DELETE /api/v1/users/{id}/roles/{role}", tab(roles.TabSystem, roleAdmin))

	var h http.Handler = mux
	h = requestLogger(logger)(h)
	h = middleware.Recoverer(h)
	h = middleware.RealIP(h)
	h = middleware.RequestID(h)
	return cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Client-Info", "Apikey"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	})(h)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
