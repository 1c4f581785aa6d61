// Package model defines the core data types flowing through the discovery
// pipeline: queries, fetched documents, extracted candidates, and scored
// supplier items.
package model

import "time"

// FetchMode describes how a listing document was acquired.
type FetchMode string

const (
	FetchModeOnline   FetchMode = "online"
	FetchModeOffline  FetchMode = "offline-snapshot"
	FetchModeRendered FetchMode = "rendered"
)

// ListingDocument is a raw fetched search-results page plus provenance.
// It lives only between the fetcher and the parser and is discarded after
// extraction.
type ListingDocument struct {
	URL       string
	Mode      FetchMode
	Body      []byte
	FetchedAt time.Time
}

// RawCandidate is a single listing card as extracted from a page, before
// normalization and scoring. Every field is best-effort: a missing value is
// the zero value, never an error.
type RawCandidate struct {
	Title       string
	URL         string
	ImageURLs   []string
	PriceText   string
	MOQText     string
	ShopName    string
	Location    string
	Tags        []string
	Certs       []string
	YearsActive *int
	Contacts    string
	Packaging   string
}

// SupplierItem is the pipeline's terminal entity: one scored listing.
// Created once by the scoring engine and immutable afterwards. Field names
// on the wire match the public search API.
type SupplierItem struct {
	Title               string    `json:"title"`
	URL                 string    `json:"url"`
	ImageURLs           []string  `json:"image_urls,omitempty"`
	PriceMinCNY         *float64  `json:"price_min_cny"`
	PriceMaxCNY         *float64  `json:"price_max_cny"`
	MOQ                 *int      `json:"moq"`
	ShopName            string    `json:"shop_name,omitempty"`
	Location            string    `json:"location,omitempty"`
	Tags                []string  `json:"tags,omitempty"`
	IsFactory           bool      `json:"is_factory"`
	IsFactoryConfidence float64   `json:"is_factory_confidence"`
	Audited             bool      `json:"audited"`
	Certifications      []string  `json:"certifications,omitempty"`
	Evidence            []string  `json:"evidence,omitempty"`
	YearsActive         *int      `json:"years_active,omitempty"`
	Contacts            string    `json:"contacts,omitempty"`
	Packaging           string    `json:"packaging,omitempty"`
	Score               float64   `json:"score"`
	CapturedAt          time.Time `json:"captured_at"`
}

// PageFailure records one page of a multi-page search that produced no items
// because its fetch or snapshot read failed. Failures are collected, never
// propagated: a degraded result set beats an aborted search.
type PageFailure struct {
	Page   int    `json:"page"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}
