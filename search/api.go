package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/use-agent/slidefetch/config"
	"github.com/use-agent/slidefetch/models"
	"github.com/use-agent/slidefetch/session"
)

// APILocator queries the JSON search endpoint instead of scraping the
// results page. Same filter semantics as the HTML strategy, plus the
// empty facet fields the API insists on receiving.
type APILocator struct {
	s    *session.Session
	site config.SiteConfig
	cfg  config.SearchConfig
	log  *slog.Logger
}

// NewAPI builds the API strategy directly, bypassing mode selection.
func NewAPI(s *session.Session, site config.SiteConfig, cfg config.SearchConfig, logger *slog.Logger) *APILocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &APILocator{s: s, site: site, cfg: cfg, log: logger}
}

// ListPresentations implements Locator.
func (l *APILocator) ListPresentations(ctx context.Context, page int) ([]string, error) {
	q := url.Values{
		"keyword":           {""},
		"type":              {"slide"},
		"desc":              {"true"},
		"page":              {strconv.Itoa(page)},
		"page_size":         {strconv.Itoa(l.cfg.PageSize)},
		"sortmode":          {"Date"},
		"matching":          {"AND"},
		"searched":          {"true"},
		"subtype":           {""},
		"subtype_sub_level": {""},
		"topic":             {""},
		"subtopic":          {""},
		"year":              {""},
		"conference":        {""},
	}

	headers := map[string]string{
		"Accept":           "application/json, text/javascript, */*; q=0.01",
		"X-Requested-With": "XMLHttpRequest",
		"Referer":          l.site.BaseURL + "/search",
	}

	resp, err := l.s.Get(ctx, l.site.BaseURL+"/api/v1/search?"+q.Encode(), headers)
	if err != nil {
		return nil, fmt.Errorf("search: api page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		l.log.Error("search: api unexpected status", "page", page, "status", resp.StatusCode)
		return nil, nil
	}

	var sr models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		l.log.Error("search: decode api response", "page", page, "error", err)
		return nil, nil
	}

	base, err := url.Parse(l.site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("search: parse base url: %w", err)
	}

	var urls []string
	for _, item := range sr.Data.Items {
		if item.URL == "" {
			continue
		}
		resolved, err := base.Parse(item.URL)
		if err != nil {
			continue
		}
		urls = append(urls, resolved.String())
		l.log.Info("search: found presentation", "url", resolved.String())
	}
	return urls, nil
}
