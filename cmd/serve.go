package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cargoos/supplier-scout/internal/fx"
	"github.com/cargoos/supplier-scout/internal/model"
	"github.com/cargoos/supplier-scout/internal/scoring"
	"github.com/cargoos/supplier-scout/internal/search"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		orch, rules := buildPipeline(cfg)
		rates := buildFXCache(cfg)
		api := &apiServer{orch: orch, rules: rules, rates: rates}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/healthz", api.health)
		r.Get("/api/search", api.search)
		r.Get("/api/search/stream", api.searchStream)
		r.Get("/api/fx", api.fxRate)
		r.Post("/api/rules/reload", api.reloadRules)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go shutdownOnCancel(ctx, srv)

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// shutdownTimeout bounds how long in-flight requests may drain after a
// termination signal.
const shutdownTimeout = 10 * time.Second

// shutdownOnCancel waits for ctx and then drains the server. The signal
// context is already cancelled at that point, so the drain runs on its own
// deadline.
func shutdownOnCancel(ctx context.Context, srv *http.Server) {
	<-ctx.Done()
	zap.L().Info("shutting down server")

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

type apiServer struct {
	orch  *search.Orchestrator
	rules *scoring.Loader
	rates *fx.Cache
}

func (s *apiServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// search runs a batch search and returns items plus per-page failures.
func (s *apiServer) search(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	items, failures, err := s.orch.Search(r.Context(), q)
	switch {
	case errors.Is(err, model.ErrInvalidQuery):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, search.ErrAllSourcesUnavailable):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":    err.Error(),
			"failures": failures,
		})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":    items,
		"failures": failures,
	})
}

// searchStream emits one SSE event per item as the pipeline produces it.
// A client disconnect cancels the request context, which stops the run.
func (s *apiServer) searchStream(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	events, err := s.orch.StreamSearch(r.Context(), q)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrInvalidQuery) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		var name string
		var payload any
		switch {
		case ev.Item != nil:
			name, payload = "item", ev.Item
		case ev.Failure != nil:
			name, payload = "page_failure", ev.Failure
		default:
			continue
		}
		data, err := json.Marshal(payload)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
		flusher.Flush()
	}
	fmt.Fprint(w, "event: done\ndata: {}\n\n")
	flusher.Flush()
}

func (s *apiServer) fxRate(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		pair = "CNY/RUB"
	}
	rate, stale, err := s.rates.Get(r.Context(), pair)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pair":  pair,
		"rate":  rate,
		"stale": stale,
	})
}

func (s *apiServer) reloadRules(w http.ResponseWriter, r *http.Request) {
	rs, err := s.rules.Reload()
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "reloaded",
		"threshold":      rs.Threshold,
		"positive_rules": len(rs.Fit.Positive),
		"negative_rules": len(rs.Fit.Negative),
	})
}

// queryFromRequest maps URL query parameters onto a SearchQuery seeded from
// config defaults. Validation happens inside the orchestrator.
func queryFromRequest(r *http.Request) (model.SearchQuery, error) {
	vals := r.URL.Query()

	q := model.DefaultQuery(vals.Get("q"))
	q.Pages = cfg.Search.Pages
	q.Concurrency = cfg.Search.Concurrency
	q.Timeout = time.Duration(cfg.Search.TimeoutSecs) * time.Second
	q.Render = cfg.Render.Enabled
	q.Proxy = cfg.Fetch.Proxy
	q.Cookie = cfg.Fetch.Cookie

	var err error
	if q.Pages, err = intParam(vals.Get("pages"), q.Pages); err != nil {
		return q, fmt.Errorf("pages: %w", err)
	}
	if q.Concurrency, err = intParam(vals.Get("concurrency"), q.Concurrency); err != nil {
		return q, fmt.Errorf("concurrency: %w", err)
	}
	if vals.Get("offline") == "true" {
		q.Online = false
	}
	if vals.Get("render") == "true" {
		q.Render = true
	}

	q.FactoriesOnly = vals.Get("factories_only") == "true"
	q.AuditedOnly = vals.Get("audited_only") == "true"
	if q.MinYears, err = intParam(vals.Get("min_years"), 0); err != nil {
		return q, fmt.Errorf("min_years: %w", err)
	}
	if raw := vals.Get("moq_max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("moq_max: %w", err)
		}
		q.MOQMax = &n
	}
	if raw := vals.Get("price_min"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, fmt.Errorf("price_min: %w", err)
		}
		q.PriceMin = &f
	}
	if raw := vals.Get("price_max"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, fmt.Errorf("price_max: %w", err)
		}
		q.PriceMax = &f
	}
	q.Region = vals.Get("region")

	return q, nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
