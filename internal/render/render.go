// Package render turns a filtered view into the CLI's output formats. The
// three renderers share one merchant selection and ordering so switching
// formats never changes which spending is shown.
package render

import (
	"sort"
	"strings"

	"ledger/internal/core"
	"ledger/internal/report"
)

// Meta is the run context shown alongside the data.
type Meta struct {
	Year           int
	NumMonths      int
	Sources        []string
	HomeLocations  []string
	CurrencyFormat string
}

// Verbosity levels: 0 shows the decision only, 1 adds the classifier trace,
// 2 adds thresholds and the monthly-value formula.
const (
	VerbosityQuiet = 0
	VerbosityTrace = 1
	VerbosityFull  = 2
)

// sectionTitles in display order.
var sectionTitles = map[core.SectionID]string{
	core.SectionMonthly:  "Monthly Recurring",
	core.SectionVariable: "Variable Spending",
	core.SectionAnnual:   "Annual Bills",
	core.SectionPeriodic: "Periodic Payments",
	core.SectionTravel:   "Travel",
	core.SectionOneOff:   "One-Off Purchases",
	core.SectionUnknown:  "Unknown",
}

// SectionTitle returns the display heading for a section.
func SectionTitle(id core.SectionID) string { return sectionTitles[id] }

// ParseSections parses a comma-separated --only value. Unknown names are
// returned separately so the caller can warn and keep going.
func ParseSections(value string) ([]core.SectionID, []string) {
	var sections []core.SectionID
	var invalid []string
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		id := core.SectionID(part)
		if core.ValidSection(id) {
			sections = append(sections, id)
		} else {
			invalid = append(invalid, part)
		}
	}
	return sections, invalid
}

// sectionMerchants returns a section's merchants sorted by monthly value
// descending, merchant ID ascending on ties.
func sectionMerchants(view *report.View, id core.SectionID) []*core.Merchant {
	byID := view.Sections[id]
	merchants := make([]*core.Merchant, 0, len(byID))
	for _, m := range byID {
		merchants = append(merchants, m)
	}
	sort.Slice(merchants, func(i, j int) bool {
		if !merchants[i].MonthlyValue.Equal(merchants[j].MonthlyValue) {
			return merchants[i].MonthlyValue.GreaterThan(merchants[j].MonthlyValue)
		}
		return merchants[i].ID < merchants[j].ID
	})
	return merchants
}

// selectSections resolves the section display order, narrowed by an --only
// list when one is given.
func selectSections(only []core.SectionID) []core.SectionID {
	if len(only) == 0 {
		return core.Sections
	}
	var out []core.SectionID
	for _, id := range core.Sections {
		for _, want := range only {
			if id == want {
				out = append(out, id)
				break
			}
		}
	}
	return out
}
