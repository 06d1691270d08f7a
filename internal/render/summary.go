package render

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/report"
)

// Summary renders the compact fixed-width totals view.
func Summary(view *report.View, meta Meta, only []core.SectionID) string {
	var b strings.Builder
	title := fmt.Sprintf("SPENDING SUMMARY %d", meta.Year)
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")

	fmt.Fprintf(&b, "Monthly budget (monthly + variable, over %d month(s))\n", view.Aggregates.BudgetMonths)
	line(&b, "Monthly recurring", view.Aggregates.SectionTotals[core.SectionMonthly], meta)
	line(&b, "Variable spending", view.Aggregates.SectionTotals[core.SectionVariable], meta)
	line(&b, "Per month", view.Aggregates.MonthlyBudget, meta)
	b.WriteString("\n")

	b.WriteString("Non-recurring\n")
	line(&b, "Annual bills", view.Aggregates.SectionTotals[core.SectionAnnual], meta)
	line(&b, "Periodic payments", view.Aggregates.SectionTotals[core.SectionPeriodic], meta)
	line(&b, "Travel", view.Aggregates.SectionTotals[core.SectionTravel], meta)
	line(&b, "One-off purchases", view.Aggregates.SectionTotals[core.SectionOneOff], meta)
	line(&b, "Total", view.Aggregates.NonRecurring, meta)
	b.WriteString("\n")

	if unknown := view.Aggregates.SectionTotals[core.SectionUnknown]; unknown.IsPositive() {
		line(&b, "Unknown (unmatched)", unknown, meta)
		b.WriteString("\n")
	}
	line(&b, "GRAND TOTAL", view.Aggregates.GrandTotal, meta)

	if len(only) > 0 {
		names := make([]string, len(only))
		for i, id := range only {
			names[i] = string(id)
		}
		fmt.Fprintf(&b, "\n(sections: %s)\n", strings.Join(names, ", "))
	}
	return b.String()
}

func line(b *strings.Builder, label string, amount decimal.Decimal, meta Meta) {
	fmt.Fprintf(b, "  %-22s %14s\n", label, core.FormatCurrency(amount, meta.CurrencyFormat))
}
