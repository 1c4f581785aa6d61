package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	moqPhraseRe  = regexp.MustCompile(`(?i)(?:最小起订量|起订量|起批量|MOQ)[:：]?\s*([0-9]+)`)
	moqUnitRe    = regexp.MustCompile(`([0-9]+)\s*(?:个|件|只|套|箱|袋|双|台)`)
	moqNumericRe = regexp.MustCompile(`^[0-9]+$`)
)

// ParseMOQ extracts a minimum order quantity from raw listing text. It
// recognizes the usual Chinese phrasings (起订量, 起批量, 最小起订量) and the
// latin "MOQ" marker, then falls back to a quantity-with-unit pattern and
// finally to a bare number. No match returns nil; that is normal input,
// not a failure.
func ParseMOQ(text string) *int {
	txt := strings.TrimSpace(fold(text))
	if txt == "" {
		return nil
	}
	if m := moqPhraseRe.FindStringSubmatch(txt); m != nil {
		return atoiPtr(m[1])
	}
	if m := moqUnitRe.FindStringSubmatch(txt); m != nil {
		return atoiPtr(m[1])
	}
	if moqNumericRe.MatchString(txt) {
		return atoiPtr(txt)
	}
	return nil
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}
