package fetch

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot block detected.
type BlockType string

const (
	BlockNone    BlockType = ""
	BlockStatus  BlockType = "status"
	BlockCaptcha BlockType = "captcha"
	BlockJSShell BlockType = "js_shell"
)

// DetectBlock checks a marketplace response for signs of anti-bot protection.
// 1688 serves 403/429 on rate-limited sessions and redirects suspicious ones
// to a slide-captcha "punish" page; logged-out dynamic pages come back as a
// near-empty script shell.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return true, BlockStatus
	}

	lower := strings.ToLower(string(body))

	// Punish / slide-captcha page markers.
	if strings.Contains(lower, "punish") && strings.Contains(lower, "alibaba") ||
		strings.Contains(lower, "captcha") ||
		strings.Contains(lower, "滑动验证") ||
		strings.Contains(lower, "拖动下方滑块") {
		return true, BlockCaptcha
	}

	if IsEmptyShell(body) {
		return true, BlockJSShell
	}

	return false, BlockNone
}

// IsEmptyShell reports whether a 200 body is a near-empty document that only
// bootstraps client-side script, i.e. the listing data never arrived in the
// static HTML. Such pages are worth re-acquiring through the render path.
func IsEmptyShell(body []byte) bool {
	if len(body) >= 2048 {
		return false
	}
	lower := strings.ToLower(string(body))
	if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
		return true
	}
	return strings.Contains(lower, `meta http-equiv="refresh"`)
}
