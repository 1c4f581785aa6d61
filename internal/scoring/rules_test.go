package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rulesYAML = `
threshold: 0.7
fit:
  positive:
    - pattern: 源头工厂
      weight: 1.0
    - pattern: 实力工厂
      weight: 0.8
  negative:
    - pattern: 贸易
      weight: -0.5
trust:
  audited: 0.3
  years_weight: 0.01
audited_tags:
  - 实地认证
`

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scoring_rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_EmptyPathUsesDefaults(t *testing.T) {
	l := NewLoader("")
	rs := l.Current()
	require.NotNil(t, rs)
	assert.Equal(t, 0.6, rs.Threshold)
	assert.NotEmpty(t, rs.Fit.Positive)
}

func TestLoader_ReadsFile(t *testing.T) {
	l := NewLoader(writeRules(t, rulesYAML))
	rs := l.Current()
	assert.Equal(t, 0.7, rs.Threshold)
	require.Len(t, rs.Fit.Positive, 2)
	assert.Equal(t, "实力工厂", rs.Fit.Positive[1].Pattern)
	assert.Equal(t, 0.3, rs.Trust.Audited)
}

func TestLoader_MissingFileFallsBackToDefaults(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"))
	rs := l.Current()
	require.NotNil(t, rs)
	assert.Equal(t, 0.6, rs.Threshold)
}

func TestLoader_ReloadSwapsSnapshot(t *testing.T) {
	path := writeRules(t, rulesYAML)
	l := NewLoader(path)
	before := l.Current()

	require.NoError(t, os.WriteFile(path, []byte("threshold: 0.9"), 0o644))
	after, err := l.Reload()
	require.NoError(t, err)
	assert.Equal(t, 0.9, after.Threshold)
	assert.Same(t, after, l.Current())

	// The old snapshot object is untouched: in-flight scorers holding it
	// keep a consistent view.
	assert.Equal(t, 0.7, before.Threshold)
}

func TestLoader_ReloadFailureKeepsPrevious(t *testing.T) {
	path := writeRules(t, rulesYAML)
	l := NewLoader(path)
	before := l.Current()

	require.NoError(t, os.WriteFile(path, []byte("threshold: [not a number"), 0o644))
	_, err := l.Reload()
	require.Error(t, err)
	assert.Same(t, before, l.Current())
}

func TestRuleSet_Validate(t *testing.T) {
	rs := DefaultRuleSet()
	require.NoError(t, rs.Validate())

	rs.Threshold = 1.5
	assert.Error(t, rs.Validate())

	rs = DefaultRuleSet()
	rs.Fit.Positive = append(rs.Fit.Positive, Rule{Pattern: "", Weight: 0.5})
	assert.Error(t, rs.Validate())

	rs = DefaultRuleSet()
	rs.Fit.Negative = append(rs.Fit.Negative, Rule{Pattern: "x", Weight: 0.5})
	assert.Error(t, rs.Validate(), "negative block must carry non-positive weights")
}
