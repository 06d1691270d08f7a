package render

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/report"
)

// Markdown renders a heading-per-section report with one merchant table per
// section.
func Markdown(view *report.View, meta Meta, only []core.SectionID, verbosity int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Spending Report %d\n\n", meta.Year)
	fmt.Fprintf(&b, "Window: %d month(s)", meta.NumMonths)
	if len(meta.Sources) > 0 {
		fmt.Fprintf(&b, " | Sources: %s", strings.Join(meta.Sources, ", "))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "- Monthly budget: %s (over %d month(s))\n",
		money(view.Aggregates.MonthlyBudget, meta), view.Aggregates.BudgetMonths)
	fmt.Fprintf(&b, "- Non-recurring: %s\n", money(view.Aggregates.NonRecurring, meta))
	fmt.Fprintf(&b, "- Grand total: %s\n\n", money(view.Aggregates.GrandTotal, meta))

	for _, id := range selectSections(only) {
		merchants := sectionMerchants(view, id)
		if len(merchants) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s (%s)\n\n", SectionTitle(id), money(view.Aggregates.SectionTotals[id], meta))
		b.WriteString("| Merchant | Category | Total | /month | Months | Txns |\n")
		b.WriteString("|---|---|---:|---:|---:|---:|\n")
		for _, m := range merchants {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %d |\n",
				m.Name, m.CategoryPath(),
				money(m.Total(), meta), money(m.MonthlyValue, meta),
				m.Stats.MonthsActive, m.Stats.Count)
		}
		b.WriteString("\n")

		if verbosity >= VerbosityTrace {
			for _, m := range merchants {
				if m.Reasoning == nil {
					continue
				}
				fmt.Fprintf(&b, "- **%s**: %s\n", m.Name, m.Reasoning.Decision)
				if verbosity >= VerbosityFull {
					for _, line := range m.Reasoning.Trace {
						fmt.Fprintf(&b, "  - %s\n", line)
					}
				}
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func money(amount decimal.Decimal, meta Meta) string {
	return core.FormatCurrencyDecimal(amount, meta.CurrencyFormat)
}
