// Package normalize turns raw Chinese marketplace strings (price ranges,
// minimum order quantities) into numbers. Every function in this package is
// total: unparsable input yields nil, never an error.
package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// Listings quote "negotiable" instead of a number; those carry no price at all.
var priceNegotiableMarkers = []string{"价格面议", "面议"}

var (
	priceRangeRe  = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*[-~]\s*([0-9]+(?:\.[0-9]+)?)`)
	priceSingleRe = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)`)
)

// ParsePriceRange extracts a CNY price range from raw listing text.
// A dash- or tilde-separated pair yields ordered bounds; a single number
// yields min = max = n; negotiable or unparsable text yields (nil, nil).
// Currency markers (¥ ￥ 元) and thousands separators are ignored, and
// full-width digits are folded before matching.
func ParsePriceRange(text string) (*float64, *float64) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	txt := fold(text)
	for _, marker := range priceNegotiableMarkers {
		if strings.Contains(txt, marker) {
			return nil, nil
		}
	}
	txt = strings.NewReplacer("¥", "", "￥", "", "元", "", ",", "").Replace(txt)

	if m := priceRangeRe.FindStringSubmatch(txt); m != nil {
		lo, err1 := strconv.ParseFloat(m[1], 64)
		hi, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil {
			if lo > hi {
				lo, hi = hi, lo
			}
			return &lo, &hi
		}
	}
	if m := priceSingleRe.FindStringSubmatch(txt); m != nil {
		if n, err := strconv.ParseFloat(m[1], 64); err == nil {
			hi := n
			return &n, &hi
		}
	}
	return nil, nil
}

// fold maps full-width digits, punctuation, and range separators to their
// half-width forms so one set of patterns covers both scripts.
func fold(s string) string {
	s = width.Narrow.String(s)
	return strings.NewReplacer("～", "~", "－", "-", "—", "-", "：", ":").Replace(s)
}
