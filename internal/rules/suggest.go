package rules

import (
	"regexp"
	"strings"
)

// Payment processor prefixes that obscure the real merchant name.
var processorPrefixes = []string{"APLPAY ", "SQ *", "SQ*", "TST* ", "TST*", "SP ", "PY*", "PP*", "GOOGLE *"}

var (
	trailingNumbersRe = regexp.MustCompile(`\s+\d{4,}.*$`)
	trailingStateRe   = regexp.MustCompile(`\s+[A-Za-z]{2}$`)
	storeNumberRe     = regexp.MustCompile(`\s+#\d+`)
	statementNoiseRe  = regexp.MustCompile(`\s+(DES|ID|INDN|CO ID):.*$`)
	regexMetaRe       = regexp.MustCompile(`([.*+?^${}()|[\]\\])`)
	nonAlphaRe        = regexp.MustCompile(`[^A-Za-z\s]`)
)

// SuggestPattern derives a candidate rule regex from an unmatched raw
// description: processor prefixes, store numbers and trailing location noise
// are stripped, regex metacharacters escaped, and the first few words joined
// with flexible whitespace.
func SuggestPattern(description string) string {
	desc := stripNoise(strings.ToUpper(description))
	if desc == "" {
		return ""
	}

	escaped := regexMetaRe.ReplaceAllString(desc, `\$1`)
	words := strings.Fields(escaped)
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.Join(words, `\s*`)
}

// SuggestName derives a readable merchant name from an unmatched raw
// description.
func SuggestName(description string) string {
	desc := nonAlphaRe.ReplaceAllString(stripNoise(description), " ")
	words := strings.Fields(desc)
	if len(words) > 3 {
		words = words[:3]
	}
	if len(words) == 0 {
		return "Unknown"
	}
	return titleCase(strings.Join(words, " "))
}

func stripNoise(desc string) string {
	upper := strings.ToUpper(desc)
	for _, prefix := range processorPrefixes {
		if strings.HasPrefix(upper, prefix) {
			desc = desc[len(prefix):]
			break
		}
	}
	desc = statementNoiseRe.ReplaceAllString(desc, "")
	desc = trailingNumbersRe.ReplaceAllString(desc, "")
	desc = storeNumberRe.ReplaceAllString(desc, "")
	desc = trailingStateRe.ReplaceAllString(desc, "")
	return strings.TrimSpace(desc)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
