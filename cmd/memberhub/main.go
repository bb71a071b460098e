package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"memberhub/internal/analyzer"
	"memberhub/internal/auth"
	"memberhub/internal/collectors"
	"memberhub/internal/config"
	"memberhub/internal/db"
	"memberhub/internal/gitops"
	"memberhub/internal/httpserver"
	"memberhub/internal/jobs"
	"memberhub/internal/logging"
	"memberhub/internal/login"
	"memberhub/internal/members"
	"memberhub/internal/report"
	"memberhub/internal/roles"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	rule, err := members.ParseOverdueRule(cfg.OverdueRule)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	dbConn, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()

	if cfg.ApplySchema {
		if err := db.ApplySchema(ctx, dbConn, cfg.SchemaDir); err != nil {
			log.Fatalf("apply schema: %v", err)
		}
	}

	userStore := auth.NewStore(dbConn)
	roleStore := roles.NewStore(dbConn)
	if cfg.SeedPath != "" {
		if err := userStore.SeedFromFile(ctx, cfg.SeedPath, roleStore); err != nil {
			log.Fatalf("seed accounts: %v", err)
		}
	}
	authSvc := auth.NewService(userStore, cfg.JWTSecret, cfg.SessionTTL)

	tracker := roles.NewTracker(roles.NewResolver(roleStore, roles.DefaultPolicy(), logger), authSvc.Events(), logger)
	defer tracker.Close()

	memberStore := members.NewStore(dbConn)
	collectorStore := collectors.NewStore(dbConn, memberStore)
	gitLogs := gitops.NewStore(dbConn)

	scheduler, err := jobs.NewScheduler(authSvc, gitLogs, cfg.GitLogRetention, logger)
	if err != nil {
		log.Fatalf("schedule jobs: %v", err)
	}
	scheduler.Start()

	memberAnalyzer := &analyzer.Analyzer{
		Members:    memberStore,
		Accounts:   userStore,
		Roles:      roleStore,
		Collectors: collectorStore,
		Logger:     logger,
	}

	handler := httpserver.NewRouter(httpserver.Deps{
		Logger:      logger,
		Auth:        authSvc,
		Tracker:     tracker,
		Login:       login.New(memberStore, authSvc, logger),
		Members:     memberStore,
		Collectors:  collectorStore,
		Reports:     &report.Generator{},
		Git:         gitops.NewService(gitLogs, cfg.GitHubToken, cfg.GitHubOwner, cfg.GitHubRepo, logger),
		GitLogs:     gitLogs,
		Analyzer:    memberAnalyzer,
		RoleWriter:  roleStore,
		OverdueRule: rule,
		CORSOrigins: cfg.CORSOrigins,
	})
	server := httpserver.New(cfg.HTTPAddr, handler, logger)

	if err := server.Run(ctx, 10*time.Second); err != nil {
		logger.Error("http server", "err", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	scheduler.Stop(stopCtx)
}
