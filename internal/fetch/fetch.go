// Package fetch acquires raw listing-page documents, online via HTTP with an
// optional headless-render fallback, or offline from pre-captured snapshots.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/cargoos/supplier-scout/internal/model"
)

// Kind classifies a fetch failure.
type Kind string

const (
	KindTimeout           Kind = "fetch-timeout"
	KindBlocked           Kind = "fetch-blocked"
	KindNotFound          Kind = "not-found"
	KindRenderUnavailable Kind = "render-unavailable"
	KindUnavailable       Kind = "fetch-unavailable"
)

// Error is a classified fetch failure. The orchestrator records the Kind in
// the per-page failure manifest; the retry layer decides retryability from
// the wrapped cause.
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.URL)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err, or KindUnavailable when err is
// not a fetch error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnavailable
}

// IsBlocked reports whether err is an anti-bot block.
func IsBlocked(err error) bool {
	return KindOf(err) == KindBlocked
}

// Fetcher produces a raw listing document for one search page. All
// implementations share this contract; the render path is a capability
// selected by the Chain, not a subtype of the plain path.
type Fetcher interface {
	Fetch(ctx context.Context, q model.SearchQuery, page int) (*model.ListingDocument, error)
	Name() string
}

// SearchURL builds the marketplace search URL for a query and page index.
func SearchURL(base, query string, page int) string {
	v := url.Values{}
	v.Set("keywords", query)
	v.Set("page", strconv.Itoa(page))
	return base + "?" + v.Encode()
}
