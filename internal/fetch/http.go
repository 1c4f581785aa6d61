package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/cargoos/supplier-scout/internal/model"
	"github.com/cargoos/supplier-scout/internal/resilience"
)

const maxBodyBytes = 2 * 1024 * 1024

// HTTPOptions configures the online fetcher.
type HTTPOptions struct {
	BaseURL   string
	UserAgent string

	// RequestsPerSec paces requests toward the marketplace. Zero means the
	// default of 2 req/s.
	RequestsPerSec float64

	Retry resilience.RetryConfig
}

// HTTPFetcher acquires search pages over plain HTTP. Per-request timeout,
// cookie, and proxy come from the query; pacing and retries are fetcher-wide.
type HTTPFetcher struct {
	opts    HTTPOptions
	client  *http.Client
	limiter *rate.Limiter

	mu      sync.Mutex
	proxied map[string]*http.Client
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://s.1688.com/selloffer/offer_search.htm"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 2
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	return &HTTPFetcher{
		opts: opts,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
	}
}

func (f *HTTPFetcher) Name() string { return "http" }

// Fetch acquires one search page. Transient failures (timeouts, resets,
// 5xx) are retried with backoff; anti-bot blocks and hard 4xx are returned
// immediately, classified for the chain to act on.
func (f *HTTPFetcher) Fetch(ctx context.Context, q model.SearchQuery, page int) (*model.ListingDocument, error) {
	cfg := f.opts.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(f.Name(), "fetch page")
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*model.ListingDocument, error) {
		return f.fetchOnce(ctx, q, page)
	})
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, q model.SearchQuery, page int) (*model.ListingDocument, error) {
	target := SearchURL(f.opts.BaseURL, q.Query, page)

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: rate limiter wait")
	}

	reqCtx := ctx
	if q.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, q.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,ru;q=0.8,en;q=0.7")
	if q.Cookie != "" {
		req.Header.Set("Cookie", q.Cookie)
	}

	resp, err := f.clientFor(q).Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, &Error{Kind: KindTimeout, URL: target, Err: err}
		}
		return nil, eris.Wrap(err, "fetch: execute request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "fetch: read body")
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, &Error{Kind: KindBlocked, URL: target,
			Err: eris.Errorf("anti-bot block (%s), status %d", blockType, resp.StatusCode)}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &Error{Kind: KindNotFound, URL: target,
			Err: eris.Errorf("status %d", resp.StatusCode)}
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("fetch: status %d from %s", resp.StatusCode, target), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, &Error{Kind: KindUnavailable, URL: target,
			Err: eris.Errorf("status %d", resp.StatusCode)}
	}

	return &model.ListingDocument{
		URL:       target,
		Mode:      model.FetchModeOnline,
		Body:      body,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// clientFor returns the shared client, or a proxied one when the query
// carries proxy credentials. Proxied clients are memoized per proxy URL so
// the pages of one operation share connections.
func (f *HTTPFetcher) clientFor(q model.SearchQuery) *http.Client {
	if q.Proxy == "" {
		return f.client
	}
	proxyURL, err := url.Parse(q.Proxy)
	if err != nil {
		return f.client
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.proxied[q.Proxy]; ok {
		return c
	}
	c := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}
	if f.proxied == nil {
		f.proxied = make(map[string]*http.Client)
	}
	f.proxied[q.Proxy] = c
	return c
}
