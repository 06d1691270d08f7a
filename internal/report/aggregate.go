package report

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// Aggregates are the derived totals the renderers and charts consume. All
// sums are over display-rounded amounts, so the CLI and the client-side
// report agree to the cent.
type Aggregates struct {
	SectionTotals    map[core.SectionID]decimal.Decimal    `json:"sectionTotals"`
	GrandTotal       decimal.Decimal                       `json:"grandTotal"`
	MonthlyBudget    decimal.Decimal                       `json:"monthlyBudget"`
	BudgetMonths     int                                   `json:"budgetMonths"`
	NonRecurring     decimal.Decimal                       `json:"nonRecurring"`
	PerMonth         map[string]decimal.Decimal            `json:"perMonth"`
	PerCategory      map[string]decimal.Decimal            `json:"perCategory"`
	PerCategoryMonth map[string]map[string]decimal.Decimal `json:"perCategoryMonth"`
}

func aggregate(view *View, windowMonths int, filters []Filter) Aggregates {
	agg := Aggregates{
		SectionTotals:    map[core.SectionID]decimal.Decimal{},
		PerMonth:         map[string]decimal.Decimal{},
		PerCategory:      map[string]decimal.Decimal{},
		PerCategoryMonth: map[string]map[string]decimal.Decimal{},
	}
	for _, id := range core.Sections {
		agg.SectionTotals[id] = decimal.Zero
	}

	for sec, byID := range view.Sections {
		for _, m := range byID {
			total := m.Total()
			agg.SectionTotals[sec] = agg.SectionTotals[sec].Add(total)

			category := m.Category
			if category == "" {
				category = "Unknown"
			}
			agg.PerCategory[category] = agg.PerCategory[category].Add(total)
			if agg.PerCategoryMonth[category] == nil {
				agg.PerCategoryMonth[category] = map[string]decimal.Decimal{}
			}
			for _, t := range m.Transactions {
				key := t.MonthKey()
				agg.PerMonth[key] = agg.PerMonth[key].Add(t.Amount)
				agg.PerCategoryMonth[category][key] = agg.PerCategoryMonth[category][key].Add(t.Amount)
			}
		}
	}

	for _, id := range core.Sections {
		agg.GrandTotal = agg.GrandTotal.Add(agg.SectionTotals[id])
	}
	agg.NonRecurring = agg.SectionTotals[core.SectionAnnual].
		Add(agg.SectionTotals[core.SectionPeriodic]).
		Add(agg.SectionTotals[core.SectionTravel]).
		Add(agg.SectionTotals[core.SectionOneOff])

	agg.BudgetMonths = budgetMonths(filters, windowMonths)
	recurring := agg.SectionTotals[core.SectionMonthly].Add(agg.SectionTotals[core.SectionVariable])
	agg.MonthlyBudget = recurring.Div(decimal.NewFromInt(int64(agg.BudgetMonths))).Round(core.DisplayPlaces)
	return agg
}

// budgetMonths is the divisor of the monthly budget: the distinct months
// covered by month-include filters, else the observed window, never zero.
func budgetMonths(filters []Filter, windowMonths int) int {
	covered := map[string]bool{}
	for _, f := range filters {
		if f.Type != FilterMonth || f.Mode != Include {
			continue
		}
		for _, key := range ExpandMonths(f.Text) {
			covered[key] = true
		}
	}
	if len(covered) > 0 {
		return len(covered)
	}
	if windowMonths > 0 {
		return windowMonths
	}
	return 1
}

// ExpandMonths lists the month keys a month filter text covers: one key for
// an exact month, every month inclusive for a start..end range. Malformed
// text expands to nothing; validation happens in NewFilter.
func ExpandMonths(text string) []string {
	start, end, ok := strings.Cut(text, "..")
	if !ok {
		return []string{text}
	}
	from, err1 := time.Parse("2006-01", start)
	to, err2 := time.Parse("2006-01", end)
	if err1 != nil || err2 != nil || from.After(to) {
		return nil
	}
	var keys []string
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 1, 0) {
		keys = append(keys, cur.Format("2006-01"))
	}
	return keys
}
