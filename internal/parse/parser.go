// Package parse extracts candidate listing records from fetched marketplace
// pages. Extraction is best-effort per field: malformed markup costs a field,
// never the page.
package parse

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cargoos/supplier-scout/internal/model"
)

// maxCandidatesPerPage caps a single page's yield; search pages list at most
// 60 offers, anything past that is navigation noise.
const maxCandidatesPerPage = 60

var yearsRe = regexp.MustCompile(`([0-9]{1,2})\s*年`)

// cardSelectors, in preference order. The first selector that yields
// anything wins; the bare detail-anchor scan is the last resort for pages
// whose class names rotated.
var cardSelectors = []string{
	".sm-offer-item",
	"div[class*='offer-item']",
	".offer-list-row",
}

// Extract turns a listing document into candidate records. A page that
// yields zero candidates is a valid outcome, reported as an empty slice and
// a debug log line, distinct from a fetch failure.
func Extract(doc *model.ListingDocument) ([]model.RawCandidate, error) {
	root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, eris.Wrap(err, "parse: read document")
	}

	var cands []model.RawCandidate
	for _, sel := range cardSelectors {
		root.Find(sel).EachWithBreak(func(_ int, card *goquery.Selection) bool {
			if c, ok := extractCard(card); ok {
				cands = append(cands, c)
			}
			return len(cands) < maxCandidatesPerPage
		})
		if len(cands) > 0 {
			break
		}
	}

	if len(cands) == 0 {
		cands = extractAnchors(root)
	}

	if len(cands) == 0 {
		zap.L().Debug("parse: page yielded zero candidates",
			zap.String("url", doc.URL),
			zap.String("mode", string(doc.Mode)),
			zap.Int("bytes", len(doc.Body)),
		)
	}
	return cands, nil
}

// extractCard pulls every known field out of one offer card. Only a missing
// listing URL disqualifies the card; everything else degrades to empty.
func extractCard(card *goquery.Selection) (model.RawCandidate, bool) {
	var c model.RawCandidate

	link := card.Find("a[href*='detail']").First()
	if link.Length() == 0 {
		link = card.Find("a[href]").First()
	}
	href, ok := link.Attr("href")
	if !ok || href == "" {
		return c, false
	}
	c.URL = absoluteURL(href)

	c.Title = firstText(card, ".title", ".offer-title", "a[title]")
	if c.Title == "" {
		c.Title = strings.TrimSpace(link.Text())
	}
	if t, ok := link.Attr("title"); ok && c.Title == "" {
		c.Title = strings.TrimSpace(t)
	}

	card.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok && src != "" {
			c.ImageURLs = append(c.ImageURLs, absoluteURL(src))
		}
	})

	c.PriceText = firstText(card, ".price", "[class*='price']")
	c.MOQText = firstText(card, ".moq", "[class*='moq']", "[class*='sale-quantity']")
	c.ShopName = firstText(card, ".company-name", ".shop-name", "[class*='company']")
	c.Location = firstText(card, ".location", ".address", "[class*='location']")
	c.Contacts = firstText(card, ".contact", "[class*='contact']")
	c.Packaging = firstText(card, ".pack", "[class*='packag']")

	card.Find(".tag, [class*='tag'] span, [class*='label']").Each(func(_ int, s *goquery.Selection) {
		if tag := strings.TrimSpace(s.Text()); tag != "" && len(c.Tags) < 10 {
			c.Tags = append(c.Tags, tag)
		}
	})
	card.Find("[class*='cert']").Each(func(_ int, s *goquery.Selection) {
		if cert := strings.TrimSpace(s.Text()); cert != "" {
			c.Certs = append(c.Certs, cert)
		}
	})

	if m := yearsRe.FindStringSubmatch(firstText(card, "[class*='year']", ".shop-age")); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			c.YearsActive = &n
		}
	}

	return c, true
}

// extractAnchors is the minimal fallback: any anchor pointing at an offer
// detail page with visible text becomes a bare candidate.
func extractAnchors(root *goquery.Document) []model.RawCandidate {
	var cands []model.RawCandidate
	root.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		text := strings.TrimSpace(a.Text())
		if strings.Contains(href, "detail") && text != "" {
			cands = append(cands, model.RawCandidate{
				Title: text,
				URL:   absoluteURL(href),
			})
		}
		return len(cands) < maxCandidatesPerPage
	})
	return cands
}

// firstText returns the trimmed text of the first selector that matches.
func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if node := s.Find(sel).First(); node.Length() > 0 {
			if text := strings.TrimSpace(node.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

// absoluteURL upgrades protocol-relative marketplace links.
func absoluteURL(href string) string {
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
