// Package crawler drives one full retrieval pass: login, then
// page-by-page listing, per-presentation PDF resolution, and download,
// strictly in order. Only a login failure aborts the run; everything
// downstream degrades to skips and pagination stops.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/use-agent/slidefetch/auth"
	"github.com/use-agent/slidefetch/config"
	"github.com/use-agent/slidefetch/models"
	"github.com/use-agent/slidefetch/search"
)

// PDFResolver extracts the PDF link from a presentation page.
type PDFResolver interface {
	PDFURL(ctx context.Context, presentationURL string) (string, bool)
}

// Downloader fetches one PDF URL to local storage.
type Downloader interface {
	Download(ctx context.Context, url string) error
}

// Crawler wires the pipeline together for a single run.
type Crawler struct {
	auth       auth.Authenticator
	locator    search.Locator
	resolver   PDFResolver
	downloader Downloader
	search     config.SearchConfig
	download   config.DownloadConfig
	log        *slog.Logger
}

// New assembles a Crawler from its already-constructed stages.
func New(a auth.Authenticator, l search.Locator, r PDFResolver, d Downloader, searchCfg config.SearchConfig, downloadCfg config.DownloadConfig, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		auth:       a,
		locator:    l,
		resolver:   r,
		downloader: d,
		search:     searchCfg,
		download:   downloadCfg,
		log:        logger,
	}
}

// Run performs one login → paginate → resolve → download cycle. In test
// mode it stops after the configured number of successful downloads.
func (c *Crawler) Run(ctx context.Context, creds models.Credentials) error {
	if err := c.auth.Login(ctx, creds); err != nil {
		return fmt.Errorf("crawler: %w", err)
	}
	c.log.Info("crawler: logged in, searching for presentations")

	limit := c.download.TestLimit
	if limit <= 0 {
		limit = 2
	}

	downloaded := 0
	for page := 1; ; page++ {
		if c.search.MaxPages > 0 && page > c.search.MaxPages {
			c.log.Info("crawler: page cap reached", "pages", c.search.MaxPages)
			break
		}

		presentations, err := c.locator.ListPresentations(ctx, page)
		if err != nil {
			// Listing failure ends pagination; it never aborts the run.
			c.log.Error("crawler: listing failed", "page", page, "error", err)
			break
		}
		if len(presentations) == 0 {
			c.log.Info("crawler: no more presentations", "page", page)
			break
		}
		c.log.Info("crawler: processing page", "page", page, "presentations", len(presentations))

		for _, presURL := range presentations {
			pdfHref, ok := c.resolver.PDFURL(ctx, presURL)
			if !ok {
				continue
			}
			pdfURL, err := absoluteAgainst(presURL, pdfHref)
			if err != nil {
				c.log.Error("crawler: bad pdf href", "presentation", presURL, "href", pdfHref, "error", err)
				continue
			}

			if err := c.downloader.Download(ctx, pdfURL); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return fmt.Errorf("crawler: %w", err)
				}
				c.log.Error("crawler: download failed", "url", pdfURL, "error", err)
				continue
			}

			downloaded++
			c.log.Info("crawler: downloaded", "count", downloaded, "presentation", presURL)
			if c.download.TestMode && downloaded >= limit {
				c.log.Info("crawler: test mode limit reached", "downloads", downloaded)
				return nil
			}
		}
	}

	c.log.Info("crawler: finished", "downloads", downloaded)
	return nil
}

// absoluteAgainst resolves a possibly-relative href against the page it
// appeared on.
func absoluteAgainst(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	resolved, err := base.Parse(href)
	if err != nil {
		return "", err
	}
	return resolved.String(), nil
}
