// Package classify buckets merchants into spending sections from their
// transaction history alone. The decision procedure is deterministic and
// threshold-driven: identical histories always land in the same section,
// and every threshold is a named configuration value.
package classify

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// Classifier holds the tuning for one classification run.
type Classifier struct {
	Thresholds    Thresholds
	HomeLocations []string
}

func New(th Thresholds, homeLocations []string) *Classifier {
	return &Classifier{Thresholds: th, HomeLocations: homeLocations}
}

// Window returns the number of distinct months the transaction history
// covers, never less than 1.
func Window(merchants []*core.Merchant) int {
	months := map[string]bool{}
	for _, m := range merchants {
		for _, t := range m.Transactions {
			months[t.MonthKey()] = true
		}
	}
	if len(months) == 0 {
		return 1
	}
	return len(months)
}

// Classify assigns every merchant to a section and fills in its statistics,
// reasoning and monthly value. window is the observed window in months.
func (c *Classifier) Classify(merchants []*core.Merchant, window int) map[core.SectionID]map[string]*core.Merchant {
	if window < 1 {
		window = 1
	}
	sections := map[core.SectionID]map[string]*core.Merchant{}
	for _, id := range core.Sections {
		sections[id] = map[string]*core.Merchant{}
	}

	for _, m := range merchants {
		m.Stats = computeStats(m, c.Thresholds.LowCV)
		section, reasoning := c.classifyOne(m, window)
		m.Section = section
		m.Reasoning = reasoning
		m.MonthlyValue = c.monthlyValue(m, section, window, reasoning)
		sections[section][m.ID] = m
	}
	return sections
}

func computeStats(m *core.Merchant, lowCV float64) core.Stats {
	stats := core.Stats{
		Count:        len(m.Transactions),
		MonthsActive: len(m.Months()),
	}
	if stats.Count == 0 {
		stats.Consistent = true
		return stats
	}

	total := m.Total()
	stats.Mean = total.Div(decimal.NewFromInt(int64(stats.Count))).Round(core.DisplayPlaces)
	for _, t := range m.Transactions {
		if t.Amount.GreaterThan(stats.MaxPayment) {
			stats.MaxPayment = t.Amount
		}
	}

	// CV is the standard deviation of the individual amounts over their
	// mean; zero when there is only one payment.
	if stats.Count > 1 {
		mean, _ := total.Div(decimal.NewFromInt(int64(stats.Count))).Float64()
		if mean > 0 {
			var variance float64
			for _, t := range m.Transactions {
				amt, _ := t.Amount.Float64()
				variance += (amt - mean) * (amt - mean)
			}
			variance /= float64(stats.Count)
			stats.CV = math.Sqrt(variance) / mean
		}
	}
	stats.Consistent = stats.CV <= lowCV
	return stats
}

func (c *Classifier) classifyOne(m *core.Merchant, window int) (core.SectionID, *core.Reasoning) {
	th := c.Thresholds
	billMonths := maxInt(th.BillMinMonths, int(float64(window)*th.BillCoverage))
	monthlyMonths := maxInt(th.MonthlyMinMonths, int(float64(window)*th.MonthlyCoverage))

	r := &core.Reasoning{
		Thresholds: map[string]string{
			"monthly_months":      fmt.Sprintf("%d", monthlyMonths),
			"bill_months":         fmt.Sprintf("%d", billMonths),
			"low_cv":              fmt.Sprintf("%.2f", th.LowCV),
			"annual_max_months":   fmt.Sprintf("%d", th.AnnualMaxMonths),
			"periodic_max_months": fmt.Sprintf("%d", th.PeriodicMaxMonths),
			"cv":                  fmt.Sprintf("%.2f", m.Stats.CV),
			"months_active":       fmt.Sprintf("%d/%d", m.Stats.MonthsActive, window),
		},
	}
	decide := func(section core.SectionID, decision string) (core.SectionID, *core.Reasoning) {
		r.Decision = decision
		return section, r
	}

	if m.ID == core.UnknownMerchant || m.Stats.Count == 0 {
		return decide(core.SectionUnknown, "Unknown: no matching rule")
	}

	// Travel overrides every cadence-based bucket.
	if c.isTravelCategory(m.Category) {
		r.Trace = append(r.Trace, fmt.Sprintf("travel: category %s is a travel category", m.Category))
		return decide(core.SectionTravel, fmt.Sprintf("Travel: category is %s", m.Category))
	}
	if m.HasTag("travel") {
		r.Trace = append(r.Trace, "travel: merchant is tagged travel")
		return decide(core.SectionTravel, "Travel: tagged travel")
	}
	if loc, ok := c.travelLocation(m); ok {
		r.Trace = append(r.Trace, fmt.Sprintf("travel: transaction at non-home location %s", loc))
		return decide(core.SectionTravel, fmt.Sprintf("Travel: spending at non-home location %s", loc))
	}
	r.Trace = append(r.Trace, "not travel: no travel category, tag or location")

	if m.Stats.Count == 1 {
		r.Trace = append(r.Trace, "one-off: exactly one transaction")
		return decide(core.SectionOneOff, "One-off: single transaction")
	}
	r.Trace = append(r.Trace, fmt.Sprintf("not one-off: %d transactions", m.Stats.Count))

	if months := calendarMonths(m); len(months) == 1 && m.Stats.MonthsActive <= th.AnnualMaxMonths {
		r.Trace = append(r.Trace, fmt.Sprintf("annual: always month %d, active %d month(s)", months[0], m.Stats.MonthsActive))
		return decide(core.SectionAnnual, fmt.Sprintf("Annual: recurs every year in month %d", months[0]))
	}
	r.Trace = append(r.Trace, "not annual: no one-per-year cadence")

	coverageMonths := monthlyMonths
	billStyle := c.isBillCategory(m.Category)
	if billStyle {
		coverageMonths = billMonths
	}
	if m.Stats.MonthsActive >= coverageMonths {
		if m.Stats.CV <= th.LowCV {
			r.Trace = append(r.Trace, fmt.Sprintf("monthly: %d/%d months, CV %.2f <= %.2f", m.Stats.MonthsActive, window, m.Stats.CV, th.LowCV))
			return decide(core.SectionMonthly, fmt.Sprintf("Monthly: appears %d/%d months with stable amounts", m.Stats.MonthsActive, window))
		}
		r.Trace = append(r.Trace, fmt.Sprintf("not monthly: CV %.2f > %.2f", m.Stats.CV, th.LowCV))
	} else {
		r.Trace = append(r.Trace, fmt.Sprintf("not monthly: %d months < %d required", m.Stats.MonthsActive, coverageMonths))
	}

	if m.Stats.MonthsActive >= billMonths {
		r.Trace = append(r.Trace, fmt.Sprintf("variable: %d/%d months with CV %.2f", m.Stats.MonthsActive, window, m.Stats.CV))
		return decide(core.SectionVariable, fmt.Sprintf("Variable: appears %d/%d months with varying amounts", m.Stats.MonthsActive, window))
	}
	r.Trace = append(r.Trace, fmt.Sprintf("not variable by coverage: %d months < %d", m.Stats.MonthsActive, billMonths))

	if m.Stats.MonthsActive <= th.PeriodicMaxMonths {
		r.Trace = append(r.Trace, fmt.Sprintf("periodic: %d month(s) of irregular activity", m.Stats.MonthsActive))
		return decide(core.SectionPeriodic, fmt.Sprintf("Periodic: %d month(s) of irregular activity", m.Stats.MonthsActive))
	}

	r.Trace = append(r.Trace, "variable: default for discretionary spending")
	return decide(core.SectionVariable, "Variable: discretionary spending")
}

// monthlyValue derives the per-month budgeting figure for a merchant.
// Consistent monthly merchants use their average over active months; lumpy
// or sparse ones spread the total over the whole window.
func (c *Classifier) monthlyValue(m *core.Merchant, section core.SectionID, window int, r *core.Reasoning) decimal.Decimal {
	total := m.Total()
	if section == core.SectionMonthly && m.Stats.Consistent && m.Stats.MonthsActive > 0 {
		value := total.Div(decimal.NewFromInt(int64(m.Stats.MonthsActive))).Round(core.DisplayPlaces)
		r.CalcType = "avg"
		r.CalcReason = fmt.Sprintf("CV=%.2f (<%.2f), payments are consistent", m.Stats.CV, c.Thresholds.LowCV)
		r.CalcFormula = fmt.Sprintf("total / months active = %s / %d = %s", total, m.Stats.MonthsActive, value)
		return value
	}
	value := total.Div(decimal.NewFromInt(int64(window))).Round(core.DisplayPlaces)
	r.CalcType = "window"
	r.CalcReason = "spread over the full observed window"
	r.CalcFormula = fmt.Sprintf("total / window = %s / %d = %s", total, window, value)
	return value
}

// calendarMonths returns the distinct calendar months (1-12) the merchant
// is active in, sorted.
func calendarMonths(m *core.Merchant) []int {
	seen := map[int]bool{}
	var months []int
	for _, t := range m.Transactions {
		mo := int(t.Date.Month())
		if !seen[mo] {
			seen[mo] = true
			months = append(months, mo)
		}
	}
	return months
}

func (c *Classifier) isTravelCategory(category string) bool {
	return containsFold(c.Thresholds.TravelCategories, category)
}

func (c *Classifier) isBillCategory(category string) bool {
	return containsFold(c.Thresholds.BillCategories, category)
}

// travelLocation returns the first transaction location that reads as
// travel: an international code that is not one of the home locations.
func (c *Classifier) travelLocation(m *core.Merchant) (string, bool) {
	for _, t := range m.Transactions {
		if IsTravelLocation(t.Location, c.HomeLocations) {
			return t.Location, true
		}
	}
	return "", false
}

// usStates covers states plus DC and the territories that show up in card
// exports.
var usStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true,
	"CT": true, "DE": true, "FL": true, "GA": true, "HI": true, "ID": true,
	"IL": true, "IN": true, "IA": true, "KS": true, "KY": true, "LA": true,
	"ME": true, "MD": true, "MA": true, "MI": true, "MN": true, "MS": true,
	"MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true, "OK": true,
	"OR": true, "PA": true, "RI": true, "SC": true, "SD": true, "TN": true,
	"TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true, "DC": true, "PR": true, "VI": true, "GU": true,
}

// IsTravelLocation reports whether a 2-letter location code reads as travel.
// Only international codes count automatically; domestic out-of-state
// spending is marked travel through rules or tags instead.
func IsTravelLocation(location string, homeLocations []string) bool {
	if location == "" {
		return false
	}
	location = strings.ToUpper(location)
	if usStates[location] {
		return false
	}
	return !containsFold(homeLocations, location)
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
