package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MinConcurrency = 1
	MaxConcurrency = 10
	MaxPages       = 50
)

// ErrInvalidQuery is returned when a SearchQuery fails pre-flight validation.
var ErrInvalidQuery = errors.New("invalid-query")

// SearchQuery describes one search operation. Treated as immutable after
// Validate has accepted it.
type SearchQuery struct {
	Query       string        `json:"q"`
	Pages       int           `json:"pages"`
	Concurrency int           `json:"concurrency"`
	Timeout     time.Duration `json:"timeout"`

	// Acquisition.
	Online bool   `json:"online"`
	Render bool   `json:"render"` // allow headless-render fallback on blocked pages
	Proxy  string `json:"proxy,omitempty"`
	Cookie string `json:"cookie,omitempty"`

	// Result filters.
	FactoriesOnly bool     `json:"only_factories"`
	AuditedOnly   bool     `json:"audited_only"`
	MinYears      int      `json:"min_years"`
	MOQMax        *int     `json:"moq_max,omitempty"`
	PriceMin      *float64 `json:"price_min,omitempty"`
	PriceMax      *float64 `json:"price_max,omitempty"`
	Region        string   `json:"region,omitempty"`
}

// DefaultQuery returns a SearchQuery with the usual knobs set.
func DefaultQuery(q string) SearchQuery {
	return SearchQuery{
		Query:       q,
		Pages:       1,
		Concurrency: 3,
		Timeout:     15 * time.Second,
		Online:      true,
	}
}

// Validate checks the bounds the pipeline depends on. All violations are
// reported at once, wrapped in ErrInvalidQuery.
func (q SearchQuery) Validate() error {
	var problems []string
	if strings.TrimSpace(q.Query) == "" {
		problems = append(problems, "query text is empty")
	}
	if q.Pages < 1 || q.Pages > MaxPages {
		problems = append(problems, fmt.Sprintf("pages must be in [1,%d], got %d", MaxPages, q.Pages))
	}
	if q.Concurrency < MinConcurrency || q.Concurrency > MaxConcurrency {
		problems = append(problems, fmt.Sprintf("concurrency must be in [%d,%d], got %d", MinConcurrency, MaxConcurrency, q.Concurrency))
	}
	if q.Timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if q.MinYears < 0 {
		problems = append(problems, "min_years must be >= 0")
	}
	if q.MOQMax != nil && *q.MOQMax < 0 {
		problems = append(problems, "moq_max must be >= 0")
	}
	if q.PriceMin != nil && q.PriceMax != nil && *q.PriceMin > *q.PriceMax {
		problems = append(problems, "price_min must be <= price_max")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidQuery, strings.Join(problems, "; "))
	}
	return nil
}
