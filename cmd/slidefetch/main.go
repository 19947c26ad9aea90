package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/use-agent/slidefetch/auth"
	"github.com/use-agent/slidefetch/config"
	"github.com/use-agent/slidefetch/crawler"
	"github.com/use-agent/slidefetch/download"
	"github.com/use-agent/slidefetch/models"
	"github.com/use-agent/slidefetch/resolve"
	"github.com/use-agent/slidefetch/search"
	"github.com/use-agent/slidefetch/session"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	logger, logClose, err := newLogger(cfg.Log)
	if err != nil {
		slog.Error("failed to initialise logging", "error", err)
		os.Exit(1)
	}
	defer logClose()

	logger.Info("slidefetch starting",
		"site", cfg.Site.BaseURL,
		"searchMode", cfg.Search.Mode,
		"authMode", cfg.Auth.Mode,
		"testMode", cfg.Download.TestMode,
	)

	// ── 3. Build the session and pipeline stages ────────────────────
	sess, err := session.New(cfg.Site, logger)
	if err != nil {
		logger.Error("failed to initialise session", "error", err)
		os.Exit(1)
	}

	ledger, err := download.OpenFileLedger(cfg.Download.LedgerPath)
	if err != nil {
		logger.Error("failed to open ledger", "error", err)
		os.Exit(1)
	}

	manager, err := download.NewManager(sess, ledger, cfg.Download, logger)
	if err != nil {
		logger.Error("failed to initialise download manager", "error", err)
		os.Exit(1)
	}

	authenticator := auth.New(sess, cfg.Site, cfg.Auth, logger)
	locator := search.New(sess, cfg.Site, cfg.Search, logger)
	resolver := resolve.New(sess, logger)

	// ── 4. Run one crawl-and-download pass ──────────────────────────
	c := crawler.New(authenticator, locator, resolver, manager, cfg.Search, cfg.Download, logger)

	creds := models.Credentials{Username: cfg.Auth.Username, Password: cfg.Auth.Password}
	if err := c.Run(context.Background(), creds); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}

	logger.Info("slidefetch finished")
}

// newLogger builds the injected slog.Logger from the LogConfig. The
// returned close function flushes the log file, if one is in use.
func newLogger(cfg config.LogConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closeFn = func() { f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), closeFn, nil
}
