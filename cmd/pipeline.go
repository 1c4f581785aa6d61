package main

import (
	"time"

	"github.com/cargoos/supplier-scout/internal/config"
	"github.com/cargoos/supplier-scout/internal/fetch"
	"github.com/cargoos/supplier-scout/internal/fx"
	"github.com/cargoos/supplier-scout/internal/resilience"
	"github.com/cargoos/supplier-scout/internal/scoring"
	"github.com/cargoos/supplier-scout/internal/search"
)

// buildPipeline wires the fetch chain, scoring engine, and rule loader from
// config. Shared by the search and serve commands.
func buildPipeline(cfg *config.Config) (*search.Orchestrator, *scoring.Loader) {
	retry := resilience.DefaultRetryConfig()
	if cfg.Fetch.MaxRetries > 0 {
		retry.MaxAttempts = cfg.Fetch.MaxRetries
	}

	online := fetch.NewHTTPFetcher(fetch.HTTPOptions{
		BaseURL:        cfg.Fetch.BaseURL,
		UserAgent:      cfg.Fetch.UserAgent,
		RequestsPerSec: cfg.Fetch.RequestsPerSec,
		Retry:          retry,
	})

	var render fetch.Fetcher
	if cfg.Render.Enabled {
		r := fetch.NewRenderFetcher(cfg.Fetch.BaseURL, cfg.Fetch.UserAgent)
		if cfg.Render.WaitAfterLoadSecs > 0 {
			r.WaitAfterLoad = time.Duration(cfg.Render.WaitAfterLoadSecs) * time.Second
		}
		render = r
	}

	offline := fetch.NewSnapshotFetcher(fetch.NewDirSnapshotStore(cfg.Offline.SnapshotDir))
	chain := fetch.NewChain(online, render, offline)

	rules := scoring.NewLoader(cfg.Scoring.RulesPath)
	engine := scoring.NewEngine(nil)

	return search.New(chain, engine, rules), rules
}

// buildFXCache wires the currency-rate cache over the CBR daily feed.
func buildFXCache(cfg *config.Config) *fx.Cache {
	opts := []fx.Option{fx.WithDir(cfg.FX.CacheDir)}
	if cfg.FX.TTL > 0 {
		opts = append(opts, fx.WithTTL(cfg.FX.TTL))
	}
	return fx.NewCache(fx.NewCBRSource(cfg.FX.CBRURL), opts...)
}
