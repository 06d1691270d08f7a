package render

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/report"
)

type jsonDocument struct {
	Year      int                          `json:"year"`
	NumMonths int                          `json:"numMonths"`
	Sources   []string                     `json:"sources,omitempty"`
	HomeLocs  []string                     `json:"homeLocations,omitempty"`
	Summary   jsonSummary                  `json:"summary"`
	Sections  map[string][]*jsonMerchant   `json:"sections"`
	PerMonth  map[string]decimal.Decimal   `json:"perMonth,omitempty"`
	ByCat     map[string]decimal.Decimal   `json:"perCategory,omitempty"`
}

type jsonSummary struct {
	GrandTotal    decimal.Decimal                    `json:"grandTotal"`
	MonthlyBudget decimal.Decimal                    `json:"monthlyBudget"`
	BudgetMonths  int                                `json:"budgetMonths"`
	NonRecurring  decimal.Decimal                    `json:"nonRecurring"`
	SectionTotals map[core.SectionID]decimal.Decimal `json:"sectionTotals"`
}

type jsonMerchant struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Category     string            `json:"category,omitempty"`
	Subcategory  string            `json:"subcategory,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Pattern      string            `json:"pattern,omitempty"`
	Total        decimal.Decimal   `json:"total"`
	Count        int               `json:"count"`
	MonthsActive int               `json:"monthsActive"`
	MonthlyValue decimal.Decimal   `json:"monthlyValue"`
	Decision     string            `json:"decision,omitempty"`
	Trace        []string          `json:"trace,omitempty"`
	Thresholds   map[string]string `json:"thresholds,omitempty"`
	CV           *float64          `json:"cv,omitempty"`
	CalcReason   string            `json:"calcReason,omitempty"`
	CalcFormula  string            `json:"calcFormula,omitempty"`
	Transactions []jsonTransaction `json:"transactions"`
}

type jsonTransaction struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Location    string          `json:"location,omitempty"`
	Source      string          `json:"source,omitempty"`
}

// JSON renders the full machine-readable report. Verbosity widens the
// per-merchant reasoning block, never the data itself.
func JSON(view *report.View, meta Meta, only []core.SectionID, verbosity int) ([]byte, error) {
	doc := jsonDocument{
		Year:      meta.Year,
		NumMonths: meta.NumMonths,
		Sources:   meta.Sources,
		HomeLocs:  meta.HomeLocations,
		Summary: jsonSummary{
			GrandTotal:    view.Aggregates.GrandTotal,
			MonthlyBudget: view.Aggregates.MonthlyBudget,
			BudgetMonths:  view.Aggregates.BudgetMonths,
			NonRecurring:  view.Aggregates.NonRecurring,
			SectionTotals: view.Aggregates.SectionTotals,
		},
		Sections: map[string][]*jsonMerchant{},
		PerMonth: view.Aggregates.PerMonth,
		ByCat:    view.Aggregates.PerCategory,
	}

	for _, id := range selectSections(only) {
		merchants := []*jsonMerchant{}
		for _, m := range sectionMerchants(view, id) {
			merchants = append(merchants, merchantJSON(m, verbosity))
		}
		doc.Sections[string(id)] = merchants
	}
	return json.MarshalIndent(doc, "", "  ")
}

func merchantJSON(m *core.Merchant, verbosity int) *jsonMerchant {
	out := &jsonMerchant{
		ID:           m.ID,
		Name:         m.Name,
		Category:     m.Category,
		Subcategory:  m.Subcategory,
		Tags:         m.Tags,
		Pattern:      m.Pattern,
		Total:        m.Total(),
		Count:        m.Stats.Count,
		MonthsActive: m.Stats.MonthsActive,
		MonthlyValue: m.MonthlyValue,
		Transactions: make([]jsonTransaction, 0, len(m.Transactions)),
	}
	for _, t := range m.Transactions {
		out.Transactions = append(out.Transactions, jsonTransaction{
			Date:        t.Date.Format("2006-01-02"),
			Description: t.RawDescription,
			Amount:      t.Amount,
			Location:    t.Location,
			Source:      t.Source,
		})
	}

	if m.Reasoning == nil {
		return out
	}
	out.Decision = m.Reasoning.Decision
	if verbosity >= VerbosityTrace {
		out.Trace = m.Reasoning.Trace
	}
	if verbosity >= VerbosityFull {
		out.Thresholds = m.Reasoning.Thresholds
		cv := m.Stats.CV
		out.CV = &cv
		out.CalcReason = m.Reasoning.CalcReason
		out.CalcFormula = m.Reasoning.CalcFormula
	}
	return out
}
