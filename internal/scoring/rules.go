// Package scoring evaluates extracted candidates against a configurable
// weighted-rule set, producing a factory-confidence estimate and a trust
// score with a human-auditable evidence trail.
package scoring

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Rule is one marker pattern with its signed weight. Patterns are matched
// as substrings against the candidate's title and tags.
type Rule struct {
	Pattern string  `yaml:"pattern"`
	Weight  float64 `yaml:"weight"`
}

// FitBlock holds the factory-fit markers. Order is significant for the
// evidence trail, not for the sum.
type FitBlock struct {
	Positive []Rule `yaml:"positive"`
	Negative []Rule `yaml:"negative"`
}

// TrustBlock holds weights for structured trust signals.
type TrustBlock struct {
	Audited     float64 `yaml:"audited"`
	YearsWeight float64 `yaml:"years_weight"`
}

// RuleSet is the full scoring configuration: rules as data, never code.
// Immutable once loaded; reloads swap in a fresh instance.
type RuleSet struct {
	Threshold float64    `yaml:"threshold"`
	Fit       FitBlock   `yaml:"fit"`
	Trust     TrustBlock `yaml:"trust"`

	// AuditedTags mark a listing as platform-audited when present.
	AuditedTags []string `yaml:"audited_tags"`
}

// DefaultRuleSet returns the built-in rules, used when no rules file is
// configured or readable.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		Threshold: 0.6,
		Fit: FitBlock{
			Positive: []Rule{
				{Pattern: "源头工厂", Weight: 1.0},
				{Pattern: "工厂直供", Weight: 0.9},
				{Pattern: "生产加工", Weight: 0.8},
				{Pattern: "自有工厂", Weight: 1.0},
				{Pattern: "支持OEM", Weight: 0.6},
				{Pattern: "支持ODM", Weight: 0.6},
				{Pattern: "可定制", Weight: 0.4},
			},
			Negative: []Rule{
				{Pattern: "贸易", Weight: -0.6},
				{Pattern: "批发", Weight: -0.4},
				{Pattern: "代理", Weight: -0.6},
			},
		},
		Trust: TrustBlock{
			Audited:     0.2,
			YearsWeight: 0.02,
		},
		AuditedTags: []string{"实地认证", "实力商家"},
	}
}

// Validate checks internal consistency of a rule set.
func (rs *RuleSet) Validate() error {
	var problems []string
	if rs.Threshold < 0 || rs.Threshold > 1 {
		problems = append(problems, fmt.Sprintf("threshold must be in [0,1], got %g", rs.Threshold))
	}
	for i, r := range rs.Fit.Positive {
		if r.Pattern == "" {
			problems = append(problems, fmt.Sprintf("fit.positive[%d]: empty pattern", i))
		}
		if r.Weight < 0 {
			problems = append(problems, fmt.Sprintf("fit.positive[%d] (%s): weight must be >= 0", i, r.Pattern))
		}
	}
	for i, r := range rs.Fit.Negative {
		if r.Pattern == "" {
			problems = append(problems, fmt.Sprintf("fit.negative[%d]: empty pattern", i))
		}
		if r.Weight > 0 {
			problems = append(problems, fmt.Sprintf("fit.negative[%d] (%s): weight must be <= 0", i, r.Pattern))
		}
	}
	if len(problems) > 0 {
		return eris.Errorf("scoring: rule set validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Loader owns the process-wide rule set. Concurrent scorers read a single
// consistent snapshot via Current; Reload swaps the whole set atomically so
// in-flight evaluations are never torn.
type Loader struct {
	path    string
	current atomic.Pointer[RuleSet]
}

// NewLoader creates a Loader reading from path. An empty path pins the
// built-in defaults. The initial load happens eagerly; a missing or invalid
// file falls back to defaults with a warning, matching the behavior callers
// expect at process start.
func NewLoader(path string) *Loader {
	l := &Loader{path: path}
	rs, err := l.read()
	if err != nil {
		zap.L().Warn("scoring: using built-in default rules",
			zap.String("path", path),
			zap.Error(err),
		)
		rs = DefaultRuleSet()
	}
	l.current.Store(rs)
	return l
}

// Current returns the active immutable rule-set snapshot.
func (l *Loader) Current() *RuleSet {
	return l.current.Load()
}

// Reload re-reads the rules file and swaps the snapshot. On failure the
// previous snapshot stays active and the error is returned.
func (l *Loader) Reload() (*RuleSet, error) {
	rs, err := l.read()
	if err != nil {
		return nil, err
	}
	l.current.Store(rs)
	zap.L().Info("scoring: rule set reloaded",
		zap.String("path", l.path),
		zap.Float64("threshold", rs.Threshold),
		zap.Int("positive_rules", len(rs.Fit.Positive)),
		zap.Int("negative_rules", len(rs.Fit.Negative)),
	)
	return rs, nil
}

func (l *Loader) read() (*RuleSet, error) {
	if l.path == "" {
		return DefaultRuleSet(), nil
	}
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, eris.Wrap(err, "scoring: read rules file")
	}
	rs := DefaultRuleSet()
	if err := yaml.Unmarshal(raw, rs); err != nil {
		return nil, eris.Wrap(err, "scoring: unmarshal rules file")
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}
