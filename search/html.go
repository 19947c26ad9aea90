package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/slidefetch/config"
	"github.com/use-agent/slidefetch/session"
)

// HTML structure the scraper hard-assumes on the search results page.
const (
	contentBlockSelector = "#block-tctmd-content"
	resultBlockSelector  = "div.search-page__results"
	slidePathFragment    = "/slide/"
)

// HTMLLocator scrapes the search results page for slide links.
type HTMLLocator struct {
	s    *session.Session
	site config.SiteConfig
	cfg  config.SearchConfig
	log  *slog.Logger
}

// NewHTML builds the HTML strategy directly, bypassing mode selection.
func NewHTML(s *session.Session, site config.SiteConfig, cfg config.SearchConfig, logger *slog.Logger) *HTMLLocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTMLLocator{s: s, site: site, cfg: cfg, log: logger}
}

// ListPresentations implements Locator.
func (l *HTMLLocator) ListPresentations(ctx context.Context, page int) ([]string, error) {
	q := url.Values{
		"keyword":   {""},
		"type":      {"slide"},
		"desc":      {"true"},
		"page":      {strconv.Itoa(page)},
		"page_size": {strconv.Itoa(l.cfg.PageSize)},
		"sortmode":  {"Date"},
		"matching":  {"AND"},
		"searched":  {"true"},
	}

	resp, err := l.s.Get(ctx, l.site.BaseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("search: page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		l.log.Error("search: unexpected status", "page", page, "status", resp.StatusCode)
		return nil, nil
	}

	base, err := url.Parse(l.site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("search: parse base url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		l.log.Error("search: parse results page", "page", page, "error", err)
		return nil, nil
	}

	urls := ExtractPresentationURLs(doc, base)
	if len(urls) == 0 {
		l.log.Debug("search: no presentations on page", "page", page)
	}
	for _, u := range urls {
		l.log.Info("search: found presentation", "url", u)
	}
	return urls, nil
}

// ExtractPresentationURLs pulls the slide detail-page URLs out of a
// parsed search results page. Within the content block, each result
// block contributes its first anchor whose path contains /slide/,
// resolved against base and de-duplicated in page order. A page missing
// the expected structure yields nil.
func ExtractPresentationURLs(doc *goquery.Document, base *url.URL) []string {
	content := doc.Find(contentBlockSelector)
	if content.Length() == 0 {
		return nil
	}

	var urls []string
	seen := make(map[string]struct{})

	content.Find(resultBlockSelector).Each(func(_ int, block *goquery.Selection) {
		link := block.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			return strings.Contains(href, slidePathFragment)
		}).First()

		href, ok := link.Attr("href")
		if !ok {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		abs := resolved.String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		urls = append(urls, abs)
	})

	return urls
}
