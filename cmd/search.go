package main

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cargoos/supplier-scout/internal/model"
	"github.com/cargoos/supplier-scout/internal/search"
)

var (
	searchPages       int
	searchConcurrency int
	searchTimeoutSecs int
	searchOffline     bool
	searchRender      bool
	searchStream      bool
	searchProxy       string
	searchCookie      string

	searchFactoriesOnly bool
	searchAuditedOnly   bool
	searchMinYears      int
	searchMOQMax        int
	searchPriceMin      float64
	searchPriceMax      float64
	searchRegion        string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the marketplace and score supplier listings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("search"); err != nil {
			return err
		}

		q := buildQuery(args[0])
		orch, _ := buildPipeline(cfg)

		if searchStream {
			return streamToStdout(cmd, orch, q)
		}

		items, failures, err := orch.Search(cmd.Context(), q)
		if err != nil && !errors.Is(err, search.ErrAllSourcesUnavailable) {
			return err
		}
		for _, f := range failures {
			zap.L().Warn("page failed",
				zap.Int("page", f.Page),
				zap.String("kind", f.Kind),
				zap.String("reason", f.Reason),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(items); encErr != nil {
			return encErr
		}
		return err
	},
}

// streamToStdout prints one JSON line per item as it arrives.
func streamToStdout(cmd *cobra.Command, orch *search.Orchestrator, q model.SearchQuery) error {
	events, err := orch.StreamSearch(cmd.Context(), q)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for ev := range events {
		switch {
		case ev.Item != nil:
			if err := enc.Encode(ev.Item); err != nil {
				return err
			}
		case ev.Failure != nil:
			zap.L().Warn("page failed",
				zap.Int("page", ev.Failure.Page),
				zap.String("kind", ev.Failure.Kind),
				zap.String("reason", ev.Failure.Reason),
			)
		}
	}
	return nil
}

func buildQuery(text string) model.SearchQuery {
	q := model.DefaultQuery(text)
	q.Pages = cfg.Search.Pages
	q.Concurrency = cfg.Search.Concurrency
	q.Timeout = time.Duration(cfg.Search.TimeoutSecs) * time.Second
	q.Proxy = cfg.Fetch.Proxy
	q.Cookie = cfg.Fetch.Cookie
	q.Render = cfg.Render.Enabled

	if searchPages > 0 {
		q.Pages = searchPages
	}
	if searchConcurrency > 0 {
		q.Concurrency = searchConcurrency
	}
	if searchTimeoutSecs > 0 {
		q.Timeout = time.Duration(searchTimeoutSecs) * time.Second
	}
	if searchOffline {
		q.Online = false
	}
	if searchRender {
		q.Render = true
	}
	if searchProxy != "" {
		q.Proxy = searchProxy
	}
	if searchCookie != "" {
		q.Cookie = searchCookie
	}

	q.FactoriesOnly = searchFactoriesOnly
	q.AuditedOnly = searchAuditedOnly
	q.MinYears = searchMinYears
	if searchMOQMax > 0 {
		moq := searchMOQMax
		q.MOQMax = &moq
	}
	if searchPriceMin > 0 {
		p := searchPriceMin
		q.PriceMin = &p
	}
	if searchPriceMax > 0 {
		p := searchPriceMax
		q.PriceMax = &p
	}
	q.Region = searchRegion
	return q
}

func init() {
	searchCmd.Flags().IntVar(&searchPages, "pages", 0, "pages to fetch (default from config)")
	searchCmd.Flags().IntVar(&searchConcurrency, "concurrency", 0, "concurrent page fetches (default from config)")
	searchCmd.Flags().IntVar(&searchTimeoutSecs, "timeout", 0, "per-request timeout in seconds (default from config)")
	searchCmd.Flags().BoolVar(&searchOffline, "offline", false, "read pages from the snapshot directory instead of the network")
	searchCmd.Flags().BoolVar(&searchRender, "render", false, "allow headless-render fallback on blocked pages")
	searchCmd.Flags().BoolVar(&searchStream, "stream", false, "print items as JSON lines as they arrive")
	searchCmd.Flags().StringVar(&searchProxy, "proxy", "", "proxy URL for online fetches")
	searchCmd.Flags().StringVar(&searchCookie, "cookie", "", "cookie header for online fetches")

	searchCmd.Flags().BoolVar(&searchFactoriesOnly, "factories-only", false, "keep only listings classified as factories")
	searchCmd.Flags().BoolVar(&searchAuditedOnly, "audited-only", false, "keep only audited suppliers")
	searchCmd.Flags().IntVar(&searchMinYears, "min-years", 0, "minimum years on the platform")
	searchCmd.Flags().IntVar(&searchMOQMax, "moq-max", 0, "maximum acceptable MOQ")
	searchCmd.Flags().Float64Var(&searchPriceMin, "price-min", 0, "minimum price in CNY")
	searchCmd.Flags().Float64Var(&searchPriceMax, "price-max", 0, "maximum price in CNY")
	searchCmd.Flags().StringVar(&searchRegion, "region", "", "substring match on supplier location")

	rootCmd.AddCommand(searchCmd)
}
