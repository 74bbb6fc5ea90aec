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

	"github.com/go-co-op/gocron/v2"

	"github.com/dukerupert/stampcard/internal/auth"
	"github.com/dukerupert/stampcard/internal/config"
	"github.com/dukerupert/stampcard/internal/database"
	"github.com/dukerupert/stampcard/internal/logging"
	"github.com/dukerupert/stampcard/internal/server"
)

func main() {
	if err := config.LoadDotenv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	keyring, err := auth.NewKeyring(cfg.PINs())
	if err != nil {
		logger.Error("failed to configure operator PINs", "error", err)
		os.Exit(1)
	}
	for _, role := range []auth.Role{auth.RoleHost, auth.RoleGift} {
		if !keyring.Configured(role) {
			logger.Warn("no PIN configured, only admin can act as this role", "role", role)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(db, server.Config{
		Keyring:     keyring,
		ProgressTTL: cfg.ProgressTTL,
		Archive:     cfg.Archive,
	}, logger)

	// Background cleanup
	sched, err := gocron.NewScheduler()
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(srv.RateLimiter().Cleanup),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error("failed to schedule rate limiter cleanup", "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Shutdown()

	if err := srv.ArchiveManager().Start(ctx); err != nil {
		logger.Error("failed to start archive schedule", "error", err)
	}
	defer srv.ArchiveManager().Stop()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("stampcard listening", "addr", httpServer.Addr, "db", cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
