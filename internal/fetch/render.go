package fetch

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/cargoos/supplier-scout/internal/model"
)

// RenderFetcher re-acquires a page through headless Chromium, letting
// client-side script populate the listing markup before capture. Used only
// as a fallback when the static document is blocked or empty.
type RenderFetcher struct {
	BaseURL   string
	UserAgent string

	// WaitAfterLoad gives scripts time to fill the result grid. Default 2s.
	WaitAfterLoad time.Duration
}

// NewRenderFetcher creates a RenderFetcher sharing the HTTP fetcher's target URL.
func NewRenderFetcher(baseURL, userAgent string) *RenderFetcher {
	return &RenderFetcher{
		BaseURL:       baseURL,
		UserAgent:     userAgent,
		WaitAfterLoad: 2 * time.Second,
	}
}

func (r *RenderFetcher) Name() string { return "render" }

// Fetch navigates headless Chromium to the search page and captures the
// rendered DOM. Any browser failure, including Chromium being absent from
// the host, is reported as render-unavailable.
func (r *RenderFetcher) Fetch(ctx context.Context, q model.SearchQuery, page int) (*model.ListingDocument, error) {
	target := SearchURL(r.BaseURL, q.Query, page)

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.Headless,
	}
	if r.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.UserAgent))
	}
	if q.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(q.Proxy))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if q.Timeout > 0 {
		var cancel context.CancelFunc
		browserCtx, cancel = context.WithTimeout(browserCtx, q.Timeout)
		defer cancel()
	}

	wait := r.WaitAfterLoad
	if wait <= 0 {
		wait = 2 * time.Second
	}

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(target),
		chromedp.Sleep(wait),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, &Error{Kind: KindRenderUnavailable, URL: target, Err: err}
	}

	zap.L().Debug("render: captured page",
		zap.String("url", target),
		zap.Int("bytes", len(html)),
	)

	return &model.ListingDocument{
		URL:       target,
		Mode:      model.FetchModeRendered,
		Body:      []byte(html),
		FetchedAt: time.Now().UTC(),
	}, nil
}
