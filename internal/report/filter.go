// Package report implements the filter and aggregation contract shared by
// the CLI renderers and the interactive report. The client-side JS mirrors
// this package exactly; any semantic difference between the two is a defect,
// so the predicates here stay small and table-like.
package report

import (
	"fmt"
	"regexp"
	"strings"

	"ledger/internal/core"
)

// FilterType names what a filter matches against.
type FilterType string

const (
	FilterMerchant FilterType = "merchant"
	FilterCategory FilterType = "category"
	FilterLocation FilterType = "location"
	FilterMonth    FilterType = "month"
	FilterTag      FilterType = "tag"
)

// Mode selects include (must match) or exclude (must not match).
type Mode string

const (
	Include Mode = "include"
	Exclude Mode = "exclude"
)

// Filter is one active filter term.
type Filter struct {
	Type FilterType `json:"type"`
	Text string     `json:"text"`
	Mode Mode       `json:"mode"`
}

// SyntaxError is a rejected filter term. Callers warn and drop the term
// instead of aborting, which keeps the live report interactive.
type SyntaxError struct {
	Term string
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid filter %q: %s", e.Term, e.Msg)
}

var monthKeyRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// NewFilter validates and builds one filter term.
func NewFilter(ft FilterType, text string, mode Mode) (Filter, error) {
	switch ft {
	case FilterMerchant, FilterCategory, FilterLocation, FilterTag:
	case FilterMonth:
		if err := validateMonthText(text); err != nil {
			return Filter{}, err
		}
	default:
		return Filter{}, &SyntaxError{Term: string(ft) + ":" + text, Msg: "unknown filter type"}
	}
	if strings.TrimSpace(text) == "" {
		return Filter{}, &SyntaxError{Term: string(ft) + ":" + text, Msg: "empty filter text"}
	}
	return Filter{Type: ft, Text: text, Mode: mode}, nil
}

func validateMonthText(text string) error {
	if start, end, ok := strings.Cut(text, ".."); ok {
		if !monthKeyRe.MatchString(start) || !monthKeyRe.MatchString(end) {
			return &SyntaxError{Term: text, Msg: "month range is YYYY-MM..YYYY-MM"}
		}
		if start > end {
			return &SyntaxError{Term: text, Msg: "month range start is after its end"}
		}
		return nil
	}
	if !monthKeyRe.MatchString(text) {
		return &SyntaxError{Term: text, Msg: "month is YYYY-MM"}
	}
	return nil
}

// matches evaluates one filter term against a transaction and its merchant.
// Merchant, category and tag terms test the merchant; location and month
// terms test the individual transaction.
func (f Filter) matches(m *core.Merchant, t core.Transaction) bool {
	switch f.Type {
	case FilterMerchant:
		return strings.EqualFold(f.Text, m.ID) || strings.EqualFold(f.Text, m.Name)
	case FilterCategory:
		needle := strings.ToLower(f.Text)
		return strings.Contains(strings.ToLower(m.Category), needle) ||
			strings.Contains(strings.ToLower(m.Subcategory), needle) ||
			strings.Contains(strings.ToLower(m.CategoryPath()), needle)
	case FilterLocation:
		return strings.EqualFold(f.Text, t.Location)
	case FilterMonth:
		if start, end, ok := strings.Cut(f.Text, ".."); ok {
			key := t.MonthKey()
			return key >= start && key <= end
		}
		return t.MonthKey() == f.Text
	case FilterTag:
		return m.HasTag(f.Text)
	}
	return false
}

// survives applies the full predicate: no exclude may match, and within
// every filter type that has include terms at least one must match.
func survives(m *core.Merchant, t core.Transaction, filters []Filter) bool {
	for _, f := range filters {
		if f.Mode == Exclude && f.matches(m, t) {
			return false
		}
	}
	byType := map[FilterType]bool{}
	matched := map[FilterType]bool{}
	for _, f := range filters {
		if f.Mode != Include {
			continue
		}
		byType[f.Type] = true
		if f.matches(m, t) {
			matched[f.Type] = true
		}
	}
	for ft := range byType {
		if !matched[ft] {
			return false
		}
	}
	return true
}

// View is the result of applying a filter set: a filtered copy of the
// dataset plus its aggregates. The input dataset is never touched.
type View struct {
	Sections   map[core.SectionID]map[string]*core.Merchant `json:"sections"`
	Aggregates Aggregates                                   `json:"aggregates"`
}

// Apply filters a dataset. It is pure: fresh output structures every call,
// no locking, safe to run concurrently against the same dataset.
func Apply(d *core.Dataset, filters []Filter) *View {
	view := &View{Sections: map[core.SectionID]map[string]*core.Merchant{}}
	for _, id := range core.Sections {
		view.Sections[id] = map[string]*core.Merchant{}
	}

	for sec, byID := range d.Sections {
		for id, m := range byID {
			var kept []core.Transaction
			for _, t := range m.Transactions {
				if survives(m, t, filters) {
					kept = append(kept, t)
				}
			}
			if len(kept) == 0 {
				continue
			}
			view.Sections[sec][id] = filteredCopy(m, kept)
		}
	}
	view.Aggregates = aggregate(view, d.NumMonths, filters)
	return view
}

// filteredCopy clones a merchant with only its surviving transactions,
// recomputing the counts that depend on them.
func filteredCopy(m *core.Merchant, kept []core.Transaction) *core.Merchant {
	clone := *m
	clone.Transactions = kept
	clone.Stats.Count = len(kept)
	clone.Stats.MonthsActive = len(clone.Months())
	return &clone
}
