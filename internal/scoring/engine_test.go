package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargoos/supplier-scout/internal/model"
)

func factoryCand() model.RawCandidate {
	years := 5
	return model.RawCandidate{
		Title:       "源头工厂 塑料瓶 OEM ODM",
		URL:         "https://detail.1688.com/offer/123.html",
		PriceText:   "￥1.20-2.10",
		MOQText:     "起订量 500 个",
		ShopName:    "义乌市某塑料制品厂",
		Location:    "义乌",
		Tags:        []string{"源头工厂", "支持OEM", "实地认证"},
		YearsActive: &years,
	}
}

func traderCand() model.RawCandidate {
	years := 2
	return model.RawCandidate{
		Title:       "贸易公司 批发 帽子",
		URL:         "https://detail.1688.com/offer/456.html",
		PriceText:   "1.28 起",
		MOQText:     "MOQ 1000",
		ShopName:    "广州某贸易公司",
		Location:    "广州",
		Tags:        []string{"批发"},
		YearsActive: &years,
	}
}

func TestScore_FactoryCandidate(t *testing.T) {
	e := NewEngine(nil)
	rs := DefaultRuleSet()

	item := e.Score(factoryCand(), rs)

	assert.True(t, item.IsFactory)
	assert.GreaterOrEqual(t, item.IsFactoryConfidence, rs.Threshold)
	assert.True(t, item.Audited)
	require.NotNil(t, item.PriceMinCNY)
	require.NotNil(t, item.PriceMaxCNY)
	assert.InDelta(t, 1.20, *item.PriceMinCNY, 1e-9)
	assert.InDelta(t, 2.10, *item.PriceMaxCNY, 1e-9)
	require.NotNil(t, item.MOQ)
	assert.Equal(t, 500, *item.MOQ)
	assert.Greater(t, item.Score, 0.0)
	assert.False(t, item.CapturedAt.IsZero())

	// Evidence preserves rule order: positives first, in config order.
	assert.Equal(t, []string{"+源头工厂", "+支持OEM", "+audited", "+5年"}, item.Evidence)
}

func TestScore_TraderCandidate(t *testing.T) {
	e := NewEngine(nil)
	item := e.Score(traderCand(), DefaultRuleSet())

	assert.False(t, item.IsFactory)
	assert.False(t, item.Audited)
	assert.Contains(t, item.Evidence, "贸易")
	assert.Contains(t, item.Evidence, "批发")
}

func TestScore_Idempotent(t *testing.T) {
	e := NewEngine(nil)
	e.now = func() time.Time { return time.Unix(1700000000, 0) }
	rs := DefaultRuleSet()

	a := e.Score(factoryCand(), rs)
	b := e.Score(factoryCand(), rs)

	assert.Equal(t, a.Score, b.Score)
	assert.Equal(t, a.IsFactoryConfidence, b.IsFactoryConfidence)
	assert.Equal(t, a.Evidence, b.Evidence)
	assert.Equal(t, a, b)
}

func TestScore_MissingDataIsDeterministic(t *testing.T) {
	e := NewEngine(nil)
	e.now = func() time.Time { return time.Unix(1700000000, 0) }
	rs := DefaultRuleSet()

	bare := model.RawCandidate{URL: "https://detail.1688.com/offer/999.html"}
	a := e.Score(bare, rs)
	b := e.Score(bare, rs)

	assert.Equal(t, a, b)
	assert.Nil(t, a.PriceMinCNY)
	assert.Nil(t, a.MOQ)
	assert.Equal(t, 0.5, a.IsFactoryConfidence, "no markers matched: neutral midpoint")
	assert.Equal(t, a.URL, a.Title, "empty title falls back to the listing url")
	assert.Empty(t, a.Evidence)
}

func TestScore_MonotoneInPositiveWeight(t *testing.T) {
	e := NewEngine(nil)
	cand := factoryCand()

	base := DefaultRuleSet()
	boosted := DefaultRuleSet()
	// First positive rule (源头工厂) matches the candidate.
	boosted.Fit.Positive[0].Weight += 0.5

	lo := e.Score(cand, base)
	hi := e.Score(cand, boosted)
	assert.GreaterOrEqual(t, hi.IsFactoryConfidence, lo.IsFactoryConfidence)
}

func TestScore_ThresholdBoundary(t *testing.T) {
	e := NewEngine(nil)
	rs := DefaultRuleSet()
	rs.Threshold = 0.5

	// Candidate with no markers sits exactly at the neutral midpoint.
	item := e.Score(model.RawCandidate{Title: "plain listing", URL: "u"}, rs)
	assert.Equal(t, 0.5, item.IsFactoryConfidence)
	assert.True(t, item.IsFactory, "confidence equal to threshold counts as factory")
}

func TestScore_CustomCombiner(t *testing.T) {
	e := NewEngine(func(confidence, trust float64) float64 {
		return confidence * 50 // ignore trust entirely
	})
	item := e.Score(factoryCand(), DefaultRuleSet())
	assert.InDelta(t, item.IsFactoryConfidence*50, item.Score, 0.01)
}

func TestRound2_HalfToEven(t *testing.T) {
	assert.Equal(t, 0.12, round2(0.125))
	assert.Equal(t, 0.14, round2(0.135))
	assert.Equal(t, 0.5, round2(0.5))
}

func TestScore_NegotiablePriceStillScores(t *testing.T) {
	e := NewEngine(nil)
	cand := factoryCand()
	cand.PriceText = "价格面议"
	cand.MOQText = "no info"

	item := e.Score(cand, DefaultRuleSet())
	assert.Nil(t, item.PriceMinCNY)
	assert.Nil(t, item.PriceMaxCNY)
	assert.Nil(t, item.MOQ)
	assert.Greater(t, item.Score, 0.0, "missing price/MOQ must not zero the score")
}
