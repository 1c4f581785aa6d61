package fetch

import (
	"context"

	"go.uber.org/zap"

	"github.com/cargoos/supplier-scout/internal/model"
)

// Chain routes each page acquisition to the right strategy: the snapshot
// store in offline mode, plain HTTP online, and the headless-render path
// when the static document is blocked or empty and the query allows it.
type Chain struct {
	online  Fetcher
	render  Fetcher
	offline Fetcher
}

// NewChain builds a Chain. render may be nil when no render capability is
// available on the host; the fallback is then skipped regardless of the
// query's render flag.
func NewChain(online, render, offline Fetcher) *Chain {
	return &Chain{online: online, render: render, offline: offline}
}

// Fetch acquires one page. The render fallback fires only for anti-bot
// blocks and empty dynamic shells; other failures (timeouts after retries,
// 404s) are returned as-is.
func (c *Chain) Fetch(ctx context.Context, q model.SearchQuery, page int) (*model.ListingDocument, error) {
	if !q.Online {
		return c.offline.Fetch(ctx, q, page)
	}

	doc, err := c.online.Fetch(ctx, q, page)
	switch {
	case err == nil && !IsEmptyShell(doc.Body):
		return doc, nil
	case err != nil && !IsBlocked(err):
		return nil, err
	}

	if !q.Render || c.render == nil {
		if err != nil {
			return nil, err
		}
		// Empty shell but no render capability: hand the shell to the
		// parser, which will report zero candidates.
		return doc, nil
	}

	zap.L().Info("fetch: falling back to headless render",
		zap.String("query", q.Query),
		zap.Int("page", page),
		zap.Bool("blocked", err != nil),
	)

	rendered, rerr := c.render.Fetch(ctx, q, page)
	if rerr != nil {
		// Keep the original block error when the render path also failed;
		// it names the root cause.
		if err != nil {
			return nil, err
		}
		return nil, rerr
	}
	return rendered, nil
}

func (c *Chain) Name() string { return "chain" }
