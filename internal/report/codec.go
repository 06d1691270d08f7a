package report

import (
	"net/url"
	"sort"
	"strings"
)

// The URL form of one filter is <mode><typechar>:<urlencoded text>, terms
// joined by "&". The client-side report reads and writes the same encoding
// into the URL fragment.

var typeChars = map[FilterType]string{
	FilterCategory: "c",
	FilterMerchant: "m",
	FilterLocation: "l",
	FilterMonth:    "d",
	FilterTag:      "t",
}

var charTypes = map[string]FilterType{}

func init() {
	for ft, ch := range typeChars {
		charTypes[ch] = ft
	}
}

// EncodeFilters serializes a filter set canonically: terms are sorted by
// type, mode and text, so equivalent sets encode identically regardless of
// insertion order.
func EncodeFilters(filters []Filter) string {
	terms := make([]string, 0, len(filters))
	for _, f := range filters {
		mode := "+"
		if f.Mode == Exclude {
			mode = "-"
		}
		terms = append(terms, mode+typeChars[f.Type]+":"+url.QueryEscape(f.Text))
	}
	sort.Strings(terms)
	return strings.Join(terms, "&")
}

// DecodeFilters parses an encoded filter set. Malformed terms are returned
// as syntax errors for the caller to warn about; the valid remainder is
// still usable.
func DecodeFilters(encoded string) ([]Filter, []*SyntaxError) {
	if encoded == "" {
		return nil, nil
	}
	var filters []Filter
	var bad []*SyntaxError
	reject := func(term, msg string) {
		bad = append(bad, &SyntaxError{Term: term, Msg: msg})
	}

	for _, term := range strings.Split(encoded, "&") {
		if len(term) < 3 || term[2] != ':' {
			reject(term, "term is <mode><type>:<text>")
			continue
		}
		var mode Mode
		switch term[0] {
		case '+':
			mode = Include
		case '-':
			mode = Exclude
		default:
			reject(term, "mode must be + or -")
			continue
		}
		ft, ok := charTypes[string(term[1])]
		if !ok {
			reject(term, "unknown filter type")
			continue
		}
		text, err := url.QueryUnescape(term[3:])
		if err != nil {
			reject(term, "bad urlencoding")
			continue
		}
		f, err := NewFilter(ft, text, mode)
		if err != nil {
			if synErr, ok := err.(*SyntaxError); ok {
				bad = append(bad, synErr)
			} else {
				reject(term, err.Error())
			}
			continue
		}
		filters = append(filters, f)
	}
	return filters, bad
}
