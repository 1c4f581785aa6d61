package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cargoos/supplier-scout/internal/model"
	"github.com/cargoos/supplier-scout/internal/normalize"
)

// Combiner folds the normalized fit confidence and the trust bonus into the
// exported 0-100 score.
type Combiner func(confidence, trust float64) float64

// LinearCombiner is the default: clamp the sum into [0,1] and scale to 100.
func LinearCombiner(confidence, trust float64) float64 {
	return clamp01(confidence+trust) * 100
}

// Engine scores candidates against a rule-set snapshot. Stateless and safe
// for concurrent use; every call is a pure function of (candidate, rules)
// except for the capture timestamp.
type Engine struct {
	combine Combiner
	now     func() time.Time
}

// NewEngine creates an Engine with the given combiner; nil selects
// LinearCombiner.
func NewEngine(combine Combiner) *Engine {
	if combine == nil {
		combine = LinearCombiner
	}
	return &Engine{combine: combine, now: time.Now}
}

// Score evaluates one candidate and materializes the terminal SupplierItem.
// Missing price, MOQ, or years data contributes its configured neutral
// weight; it never fails a candidate.
func (e *Engine) Score(cand model.RawCandidate, rs *RuleSet) model.SupplierItem {
	priceMin, priceMax := normalize.ParsePriceRange(cand.PriceText)
	moq := normalize.ParseMOQ(cand.MOQText)

	audited := isAudited(cand.Tags, rs.AuditedTags)
	text := cand.Title + " " + strings.Join(cand.Tags, " ")

	// Fit: signed weights summed over matching markers. Evidence preserves
	// rule order; the sum itself is order-independent.
	var fit float64
	var evidence []string
	for _, r := range rs.Fit.Positive {
		if strings.Contains(text, r.Pattern) {
			fit += r.Weight
			evidence = append(evidence, "+"+r.Pattern)
		}
	}
	for _, r := range rs.Fit.Negative {
		if strings.Contains(text, r.Pattern) {
			fit += r.Weight
			evidence = append(evidence, r.Pattern)
		}
	}

	confidence := clamp01((fit + 1.0) / 2.0)

	var trust float64
	if audited && rs.Trust.Audited != 0 {
		trust += rs.Trust.Audited
		evidence = append(evidence, "+audited")
	}
	if cand.YearsActive != nil && *cand.YearsActive > 0 && rs.Trust.YearsWeight != 0 {
		trust += rs.Trust.YearsWeight * float64(*cand.YearsActive)
		evidence = append(evidence, fmt.Sprintf("+%d年", *cand.YearsActive))
	}

	confidence = round2(confidence)
	score := round2(e.combine(confidence, trust))

	title := cand.Title
	if title == "" {
		title = cand.URL
	}

	return model.SupplierItem{
		Title:               title,
		URL:                 cand.URL,
		ImageURLs:           cand.ImageURLs,
		PriceMinCNY:         priceMin,
		PriceMaxCNY:         priceMax,
		MOQ:                 moq,
		ShopName:            cand.ShopName,
		Location:            cand.Location,
		Tags:                cand.Tags,
		IsFactory:           confidence >= rs.Threshold,
		IsFactoryConfidence: confidence,
		Audited:             audited,
		Certifications:      cand.Certs,
		Evidence:            evidence,
		YearsActive:         cand.YearsActive,
		Contacts:            cand.Contacts,
		Packaging:           cand.Packaging,
		Score:               score,
		CapturedAt:          e.now().UTC(),
	}
}

func isAudited(tags, auditedTags []string) bool {
	for _, t := range tags {
		for _, a := range auditedTags {
			if t == a {
				return true
			}
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// round2 rounds half-to-even at two decimals, the fixed rounding mode for
// every exported score field.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
