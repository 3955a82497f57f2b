package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apihttp "prdash/internal/api/http"
	"prdash/internal/config"
	"prdash/internal/correlate"
	"prdash/internal/github"
	"prdash/internal/jira"
	"prdash/internal/repo/postgres"
	"prdash/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("prdash started")

	cfg, err := config.ParseConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.DB.ConnString(), logger)
	if err != nil {
		logger.Error("failed to connect to db", "error", err.Error())
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close db", "error", err.Error())
		}
	}()

	if err := postgres.RunMigrations(ctx, db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err.Error())
		os.Exit(1)
	}

	prRepo := postgres.NewPRRepo(db)

	ghClient := github.NewClient(cfg.GitHub.Token)
	source := &github.Source{
		Client:          ghClient,
		AllowedPrefixes: cfg.AllowedKeyPrefixes,
	}

	jiraClient := jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Email, cfg.Jira.APIToken)

	correlator := correlate.New(jiraClient, correlate.Config{
		ComponentRepos: cfg.ComponentRepos,
		JiraUsername:   cfg.Jira.Username,
		JiraEmail:      cfg.Jira.Email,
		GitHubUsername: cfg.GitHub.Username,
	}, logger, nil)

	poller, err := service.NewPoller(source, correlator, prRepo, cfg, logger)
	if err != nil {
		logger.Error("failed to build poller", "error", err.Error())
		os.Exit(1)
	}

	pathTable, err := service.LoadPathTable(cfg.TransitionPathFile, logger)
	if err != nil {
		logger.Error("failed to load transition path table", "error", err.Error())
		os.Exit(1)
	}

	resolver := service.NewTransitionResolver(jiraClient, prRepo, pathTable, cfg.Lanes, logger)
	trackerOps := service.NewTrackerOps(jiraClient, prRepo, cfg.ComponentRepos, logger)

	server := apihttp.NewServer(prRepo, resolver, trackerOps, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           apihttp.NewRouter(server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go poller.Run(ctx)

	go func() {
		if err := pathTable.Watch(ctx); err != nil {
			logger.Error("path table watcher stopped", "error", err.Error())
		}
	}()

	go func() {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err.Error())
	}

	logger.Info("prdash stopped")
}
