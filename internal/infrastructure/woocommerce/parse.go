package woocommerce

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"orderwatch/internal/domain"
)

var orderIDExpr = regexp.MustCompile(`post=(\d+)`)

// ParseProcessingList extracts order candidates from the admin listing HTML.
// A row qualifies when its text carries the status label; the candidate id
// is derived from the row's first link. Rows whose link cannot be reduced to
// an order id are discarded rather than enqueued.
//
// A document without an orders table at all is a shape mismatch, not an
// empty listing: it is what a rejected login or a redesigned admin page
// looks like, and silently treating it as zero candidates would hide the
// outage forever.
func ParseProcessingList(html, statusLabel string) ([]domain.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	if doc.Find("table tbody").Length() == 0 {
		return nil, fmt.Errorf("%w: no orders table in listing page", domain.ErrSourceUnavailable)
	}

	candidates := make([]domain.Candidate, 0)
	seen := map[string]struct{}{}

	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		if !strings.Contains(row.Text(), statusLabel) {
			return
		}
		href, ok := row.Find("a").First().Attr("href")
		if !ok {
			return
		}
		id := OrderIDFromRef(href)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		candidates = append(candidates, domain.Candidate{ID: id, DetailRef: href})
	})

	return candidates, nil
}

// OrderIDFromRef derives the numeric order id from a detail link. Returns ""
// when the reference has no recognizable id.
func OrderIDFromRef(ref string) string {
	m := orderIDExpr.FindStringSubmatch(ref)
	if m == nil {
		return ""
	}
	return m[1]
}

// NormalizeDetail lower-cases detail content so marker matching is
// case-insensitive.
func NormalizeDetail(html string) string {
	return strings.ToLower(html)
}
