// Package search orchestrates the discovery pipeline: bounded page fan-out,
// extraction, normalization, scoring, and filtering, exposed as an ordered
// incremental stream and a batch wrapper over the same run.
package search

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cargoos/supplier-scout/internal/fetch"
	"github.com/cargoos/supplier-scout/internal/model"
	"github.com/cargoos/supplier-scout/internal/parse"
	"github.com/cargoos/supplier-scout/internal/scoring"
)

// ErrAllSourcesUnavailable is returned by Search when every requested page
// failed and not a single item could be produced.
var ErrAllSourcesUnavailable = errors.New("all-sources-unavailable")

// Event is one unit of streamed progress: exactly one of Item or Failure is
// set. Items within a page arrive in page order; ordering across pages is not
// defined.
type Event struct {
	Item    *model.SupplierItem
	Failure *model.PageFailure
}

// Orchestrator wires a fetcher, the scoring engine, and the active rule set
// into one pipeline. Safe for concurrent use.
type Orchestrator struct {
	fetcher fetch.Fetcher
	engine  *scoring.Engine
	rules   *scoring.Loader
}

func New(f fetch.Fetcher, engine *scoring.Engine, rules *scoring.Loader) *Orchestrator {
	return &Orchestrator{fetcher: f, engine: engine, rules: rules}
}

// StreamSearch validates the query and starts the pipeline, returning a
// channel that yields one Event per passing item and one per failed page.
// The channel is closed once all pages have settled or ctx is cancelled.
// The rule set is snapshotted once at start, so a concurrent reload never
// changes scoring mid-operation.
func (o *Orchestrator) StreamSearch(ctx context.Context, q model.SearchQuery) (<-chan Event, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	rs := o.rules.Current()
	opID := uuid.NewString()

	zap.L().Info("search: starting operation",
		zap.String("op", opID),
		zap.String("query", q.Query),
		zap.Int("pages", q.Pages),
		zap.Int("concurrency", q.Concurrency),
		zap.Bool("online", q.Online),
	)

	events := make(chan Event)
	go func() {
		defer close(events)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(q.Concurrency)
		for page := 1; page <= q.Pages; page++ {
			if gctx.Err() != nil {
				break
			}
			page := page
			g.Go(func() error {
				o.runPage(gctx, q, rs, opID, page, events)
				return nil
			})
		}
		_ = g.Wait()
		zap.L().Info("search: operation finished", zap.String("op", opID))
	}()
	return events, nil
}

// Search runs the stream to completion and returns items sorted by score
// descending, capture order ascending on ties. Page failures are collected,
// not propagated; the error is non-nil only for an invalid query or when
// every page failed.
func (o *Orchestrator) Search(ctx context.Context, q model.SearchQuery) ([]model.SupplierItem, []model.PageFailure, error) {
	events, err := o.StreamSearch(ctx, q)
	if err != nil {
		return nil, nil, err
	}

	var items []model.SupplierItem
	var failures []model.PageFailure
	for ev := range events {
		switch {
		case ev.Item != nil:
			items = append(items, *ev.Item)
		case ev.Failure != nil:
			failures = append(failures, *ev.Failure)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].Page < failures[j].Page
	})

	if len(items) == 0 && len(failures) == q.Pages {
		return nil, failures, ErrAllSourcesUnavailable
	}
	return items, failures, nil
}

func (o *Orchestrator) runPage(ctx context.Context, q model.SearchQuery, rs *scoring.RuleSet, opID string, page int, events chan<- Event) {
	if ctx.Err() != nil {
		return
	}
	doc, err := o.fetcher.Fetch(ctx, q, page)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		kind := string(fetch.KindOf(err))
		zap.L().Warn("search: page failed",
			zap.String("op", opID),
			zap.Int("page", page),
			zap.String("kind", kind),
			zap.Error(err),
		)
		emit(ctx, events, Event{Failure: &model.PageFailure{
			Page:   page,
			Kind:   kind,
			Reason: err.Error(),
		}})
		return
	}

	cands, err := parse.Extract(doc)
	if err != nil {
		zap.L().Warn("search: page extraction failed",
			zap.String("op", opID),
			zap.Int("page", page),
			zap.Error(err),
		)
		emit(ctx, events, Event{Failure: &model.PageFailure{
			Page:   page,
			Kind:   "parse-failed",
			Reason: err.Error(),
		}})
		return
	}
	if len(cands) == 0 {
		// A fetched page with no recognizable cards is valid, just empty.
		zap.L().Info("search: page yielded no candidates",
			zap.String("op", opID),
			zap.Int("page", page),
		)
		return
	}

	for _, cand := range cands {
		item := o.engine.Score(cand, rs)
		if !passes(q, item) {
			continue
		}
		if !emit(ctx, events, Event{Item: &item}) {
			return
		}
	}
}

// emit sends one event unless the operation has been cancelled. Reports
// whether the send happened.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// passes applies the query's result filters. Threshold filters only reject
// items whose value is known: a listing with no MOQ text is not excluded by
// an MOQ ceiling.
func passes(q model.SearchQuery, item model.SupplierItem) bool {
	if q.FactoriesOnly && !item.IsFactory {
		return false
	}
	if q.AuditedOnly && !item.Audited {
		return false
	}
	if q.MinYears > 0 && item.YearsActive != nil && *item.YearsActive < q.MinYears {
		return false
	}
	if q.MOQMax != nil && item.MOQ != nil && *item.MOQ > *q.MOQMax {
		return false
	}
	if q.PriceMin != nil && item.PriceMaxCNY != nil && *item.PriceMaxCNY < *q.PriceMin {
		return false
	}
	if q.PriceMax != nil && item.PriceMinCNY != nil && *item.PriceMinCNY > *q.PriceMax {
		return false
	}
	if q.Region != "" && !strings.Contains(item.Location, q.Region) {
		return false
	}
	return true
}
