package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"foresttracker/internal/config"
	"foresttracker/internal/logger"
	"foresttracker/internal/routing"
	"foresttracker/internal/store"
	"foresttracker/pkg/report"
	"foresttracker/pkg/session"
	"foresttracker/pkg/upstream"
	"foresttracker/web"
)

func main() {
	cfg, err := config.Load() // env vars, optionally from ENV_FILE
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logger.Load(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionStore, closeStore, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("open session store", "store", cfg.SessionStore, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	backend, err := upstream.New(cfg.BackendURL, cfg.UpstreamTimeout, logger)
	if err != nil {
		logger.Error("upstream", "error", err)
		os.Exit(1)
	}

	pages, err := web.Pages()
	if err != nil {
		logger.Error("parse templates", "error", err)
		os.Exit(1)
	}

	r := routing.NewRouter(routing.Deps{
		Config:   cfg,
		Sessions: session.NewManager(sessionStore, cfg.SessionTTL, logger),
		Backend:  backend,
		Reports:  report.NewFileReader(cfg.ReportsFile, logger),
		Pages:    pages,
		Logger:   logger,
	})

	logger.Info("starting", "backend", cfg.BackendURL, "store", cfg.SessionStore)
	if err := routing.StartServer(ctx, ":"+cfg.Port, r, logger); err != nil {
		logger.Error("server failed", "error", err)
		closeStore()
		os.Exit(1)
	}
}
