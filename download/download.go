// Package download fetches PDF assets to local storage, deduplicating
// against both the filesystem and a persistent ledger, with bounded
// retries and exponential backoff on transient failures.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/use-agent/slidefetch/config"
	"github.com/use-agent/slidefetch/models"
	"github.com/use-agent/slidefetch/session"
)

const chunkSize = 8 * 1024

// Manager performs deduplicated, retrying PDF downloads.
type Manager struct {
	s      *session.Session
	ledger Ledger
	cfg    config.DownloadConfig
	log    *slog.Logger
}

// NewManager creates the output directory if needed and returns a
// Manager writing into it.
func NewManager(s *session.Session, ledger Ledger, cfg config.DownloadConfig, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("download: create output dir: %w", err)
	}
	return &Manager{s: s, ledger: ledger, cfg: cfg, log: logger}, nil
}

// Download fetches the PDF at rawURL into the output directory, named by
// the URL's final path segment. It is a no-op success when the file
// already exists or the URL is already in the ledger — no network call
// is made in either case. A 403 is permanent; other failures retry up to
// the configured bound with 2^attempt second backoff.
func (m *Manager) Download(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("download: parse url %q: %w", rawURL, err)
	}
	filename := path.Base(u.Path)
	if filename == "" || filename == "." || filename == "/" {
		return fmt.Errorf("download: no filename in url %q", rawURL)
	}
	dest := filepath.Join(m.cfg.OutputDir, filename)

	if _, err := os.Stat(dest); err == nil {
		m.log.Info("download: file already exists", "file", dest)
		return nil
	}
	if m.ledger.Contains(rawURL) {
		m.log.Info("download: already recorded", "url", rawURL)
		return nil
	}

	retries := m.cfg.Retries
	if retries <= 0 {
		retries = 3
	}

	var lastErr error
	lastStatus := 0
	for attempt := 0; attempt < retries; attempt++ {
		status, err := m.fetchOnce(ctx, rawURL, dest, filename)
		if err == nil {
			if err := m.ledger.Record(rawURL); err != nil {
				return err
			}
			m.log.Info("download: complete", "url", rawURL, "file", dest)
			return nil
		}
		if errors.Is(err, models.ErrAccessDenied) {
			m.log.Error("download: access denied", "url", rawURL)
			return err
		}
		lastErr = err
		lastStatus = status
		m.log.Warn("download: attempt failed", "url", rawURL, "attempt", attempt+1, "status", status, "error", err)

		if attempt < retries-1 {
			backoff := m.cfg.Backoff
			if backoff <= 0 {
				backoff = time.Second
			}
			if err := sleepCtx(ctx, backoff<<attempt); err != nil {
				return fmt.Errorf("download: %w", err)
			}
		}
	}

	return &models.DownloadError{URL: rawURL, StatusCode: lastStatus, Attempts: retries, Err: lastErr}
}

// fetchOnce performs one streamed attempt. The destination file is
// written directly; a mid-stream failure leaves a partial file behind
// but never a ledger entry, so a later run redoes the fetch.
func (m *Manager) fetchOnce(ctx context.Context, rawURL, dest, filename string) (int, error) {
	resp, err := m.s.Get(ctx, rawURL, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to the write below
	case resp.StatusCode == http.StatusForbidden:
		return resp.StatusCode, fmt.Errorf("download: %s: %w", rawURL, models.ErrAccessDenied)
	default:
		return resp.StatusCode, fmt.Errorf("download: %s: status %d", rawURL, resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("download: create %s: %w", dest, err)
	}

	var w io.Writer = f
	var bar *progressbar.ProgressBar
	if m.cfg.Progress {
		bar = progressbar.DefaultBytes(resp.ContentLength, filename)
		w = io.MultiWriter(f, bar)
	}

	buf := make([]byte, chunkSize)
	_, copyErr := io.CopyBuffer(w, resp.Body, buf)
	if bar != nil {
		bar.Finish()
	}
	if closeErr := f.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		return resp.StatusCode, fmt.Errorf("download: write %s: %w", dest, copyErr)
	}
	return resp.StatusCode, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
