// Package resolve extracts the PDF asset link from a presentation detail
// page. A page without a PDF link is a skip for the caller, never an
// error.
package resolve

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/slidefetch/session"
)

// trackingAttr marks the site's instrumented download anchors. Anchors
// carrying it are preferred, but any .pdf anchor is accepted as a
// fallback since not every deck is instrumented.
const trackingAttr = "data-feathr-click-track"

// Resolver fetches presentation pages and pulls out their PDF link.
type Resolver struct {
	s   *session.Session
	log *slog.Logger
}

// New builds a Resolver. Pass a nil logger to use slog.Default().
func New(s *session.Session, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{s: s, log: logger}
}

// PDFURL fetches the presentation page and returns the href of its PDF
// download anchor verbatim — it may be relative or absolute, and the
// caller must resolve it before fetching. The second return is false
// when the page fetch fails or no PDF anchor exists.
func (r *Resolver) PDFURL(ctx context.Context, presentationURL string) (string, bool) {
	resp, err := r.s.Get(ctx, presentationURL, nil)
	if err != nil {
		r.log.Error("resolve: fetch presentation", "url", presentationURL, "error", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log.Error("resolve: unexpected status", "url", presentationURL, "status", resp.StatusCode)
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		r.log.Error("resolve: parse presentation page", "url", presentationURL, "error", err)
		return "", false
	}

	pdf, ok := ExtractPDFURL(doc)
	if !ok {
		r.log.Warn("resolve: no pdf link found", "url", presentationURL)
		return "", false
	}

	r.log.Info("resolve: found pdf link", "url", presentationURL, "pdf", pdf)
	return pdf, true
}

// ExtractPDFURL returns the href of the first anchor ending in .pdf,
// preferring anchors with the click-tracking attribute the site attaches
// to its download buttons.
func ExtractPDFURL(doc *goquery.Document) (string, bool) {
	if href, ok := firstPDFAnchor(doc.Find("a[" + trackingAttr + "='true']")); ok {
		return href, true
	}
	return firstPDFAnchor(doc.Find("a[href]"))
}

func firstPDFAnchor(sel *goquery.Selection) (string, bool) {
	var found string
	sel.EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok || !strings.HasSuffix(href, ".pdf") {
			return true
		}
		found = href
		return false
	})
	return found, found != ""
}
