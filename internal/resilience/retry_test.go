package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargoos/supplier-scout/internal/model"
)

// fastRetry keeps backoff in the millisecond range so retry paths run in
// test time.
func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

// pageSource simulates a marketplace page fetch that fails a scripted number
// of times before producing a document.
type pageSource struct {
	failures int
	err      error
	calls    int
}

func (p *pageSource) fetch(_ context.Context) (*model.ListingDocument, error) {
	p.calls++
	if p.calls <= p.failures {
		return nil, p.err
	}
	return &model.ListingDocument{
		URL:  "https://example.test/search?page=1",
		Mode: model.FetchModeOnline,
		Body: []byte("<html>offers</html>"),
	}, nil
}

func TestDoVal_FirstAttemptSucceeds(t *testing.T) {
	src := &pageSource{}

	doc, err := DoVal(context.Background(), fastRetry(3), src.fetch)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, model.FetchModeOnline, doc.Mode)
	assert.Equal(t, 1, src.calls)
}

func TestDoVal_RecoversAfterGatewayErrors(t *testing.T) {
	src := &pageSource{
		failures: 2,
		err:      NewTransientError(errors.New("status 502 from search page"), 502),
	}

	doc, err := DoVal(context.Background(), fastRetry(3), src.fetch)
	require.NoError(t, err)
	assert.NotNil(t, doc)
	assert.Equal(t, 3, src.calls)
}

func TestDoVal_ExhaustsAttemptsOnPersistentOutage(t *testing.T) {
	src := &pageSource{
		failures: 10,
		err:      NewTransientError(errors.New("status 503 from search page"), 503),
	}

	doc, err := DoVal(context.Background(), fastRetry(3), src.fetch)
	require.Error(t, err)
	assert.Nil(t, doc, "failed retries must not leak a partial document")
	assert.Equal(t, 3, src.calls)

	var te *TransientError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 503, te.StatusCode)
}

func TestDoVal_AntiBotBlockNotRetried(t *testing.T) {
	// Blocks are permanent for the plain HTTP path; the chain handles them
	// through the render fallback, so retrying here would only hammer the
	// interstitial.
	src := &pageSource{
		failures: 10,
		err:      errors.New("fetch-blocked: anti-bot interstitial, status 403"),
	}

	_, err := DoVal(context.Background(), fastRetry(3), src.fetch)
	require.Error(t, err)
	assert.Equal(t, 1, src.calls)
}

func TestDo_ContextCancelledStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, fastRetry(5), func(context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("connection reset"), 0)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "no attempts after cancellation")
}

func TestDo_CustomShouldRetry(t *testing.T) {
	errRotateSession := errors.New("session cookie expired")

	cfg := fastRetry(3)
	cfg.ShouldRetry = func(err error) bool {
		return errors.Is(err, errRotateSession)
	}

	calls := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return errRotateSession
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "custom predicate overrides the transient check")

	// The same predicate rejects an otherwise-transient error.
	calls = 0
	err = Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return NewTransientError(errors.New("status 502"), 502)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, err error) {
		attempts = append(attempts, attempt)
		assert.Error(t, err)
	}

	src := &pageSource{
		failures: 2,
		err:      NewTransientError(errors.New("status 500"), 500),
	}
	_, err := DoVal(context.Background(), cfg, src.fetch)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDo_ZeroConfigGetsDefaults(t *testing.T) {
	calls := 0
	cfg := RetryConfig{InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return NewTransientError(errors.New("i/o timeout"), 0)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "MaxAttempts defaults to 3")
}

func TestComputeBackoff_GrowsPerAttempt(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Minute,
		Multiplier:     2.0,
	}

	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, cfg))
	assert.Equal(t, 400*time.Millisecond, computeBackoff(2, cfg))
}

func TestComputeBackoff_CappedAtMax(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     3 * time.Second,
		Multiplier:     10.0,
	}

	assert.Equal(t, 3*time.Second, computeBackoff(5, cfg))
}

func TestComputeBackoff_JitterStaysInRange(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Minute,
		Multiplier:     1.0,
		JitterFraction: 0.5,
	}

	for i := 0; i < 100; i++ {
		d := computeBackoff(0, cfg)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestRetryLogger(t *testing.T) {
	// Must not panic with the global logger in place.
	logFn := RetryLogger("http", "fetch page")
	assert.NotPanics(t, func() {
		logFn(1, errors.New("status 502"))
	})
}
