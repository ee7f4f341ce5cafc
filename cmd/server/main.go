// main is the entry point for the gigledger API server.
//
// It reads configuration from the environment (and an optional .env file),
// opens the SQLite database, opens the ledger on top of it, registers all
// HTTP routes, and serves until SIGINT or SIGTERM.
//
// ────────────────────────────────────────────────────────────────────
// LEARNING NOTE: how this file fits into the project
// ────────────────────────────────────────────────────────────────────
// This file is the "composition root", the single place where all the
// independent packages (config, db, ledger, notify, handlers, middleware)
// are wired together. Keeping this wiring in main.go means every other
// package stays easy to test in isolation.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Elizabethomito/gigledger/internal/config"
	"github.com/Elizabethomito/gigledger/internal/db"
	"github.com/Elizabethomito/gigledger/internal/handlers"
	"github.com/Elizabethomito/gigledger/internal/ledger"
	"github.com/Elizabethomito/gigledger/internal/logging"
	"github.com/Elizabethomito/gigledger/internal/middleware"
	"github.com/Elizabethomito/gigledger/internal/models"
	"github.com/Elizabethomito/gigledger/internal/notify"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// ── Configuration ────────────────────────────────────────────────
	// Real environment variables win over .env, so the same binary works
	// in development, CI, and production without recompiling.
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Database ─────────────────────────────────────────────────────
	// db.Open creates the file if it doesn't exist and runs all CREATE
	// TABLE IF NOT EXISTS migrations automatically.
	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	// ── Notifications ────────────────────────────────────────────────
	// Events leave the ledger only after their operation committed.
	hub := notify.NewHub(log)
	defer hub.Close()
	notifiers := notify.Multi{notify.Log{Logger: log}, hub}

	var audit *notify.AuditLog
	if cfg.AuditLogPath != "" {
		audit, err = notify.OpenAuditLog(cfg.AuditLogPath, log)
		if err != nil {
			return err
		}
		defer audit.Close()
		notifiers = append(notifiers, audit)
	}

	// ── Ledger ───────────────────────────────────────────────────────
	// The first start records OWNER_PRINCIPAL; later starts must match it.
	l, err := ledger.Open(ctx, db.NewStore(database), models.Principal(cfg.Owner),
		ledger.WithNotifier(notifiers),
		ledger.WithLogger(log),
	)
	if err != nil {
		return err
	}

	// ── Handlers ─────────────────────────────────────────────────────
	srv := &handlers.Server{
		DB:         database,
		Ledger:     l,
		Secret:     cfg.JWTSecret,
		Audit:      audit,
		Stream:     hub,
		EnableSeed: cfg.EnableSeed,
		Log:        log,
	}
	if cfg.OwnerPassword != "" {
		if err := srv.ProvisionOwner(ctx, cfg.OwnerPassword); err != nil {
			return err
		}
		log.Info("owner credentials provisioned", "owner", cfg.Owner)
	}

	// Logging wraps CORS so preflights show up in the access log too.
	handler := middleware.RequestLog(log)(middleware.CORS(srv.Routes()))

	httpServer := &http.Server{Addr: cfg.Addr, Handler: handler}
	errCh := make(chan error, 1)
	go func() {
		log.Info("gigledger API listening", "addr", cfg.Addr, "owner", cfg.Owner, "seed", cfg.EnableSeed)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	// Hijacked WebSocket connections are not tracked by Shutdown.
	hub.Close()
	return httpServer.Shutdown(shutdownCtx)
}
