package classify

import (
	"fmt"
	"strings"
)

// Thresholds are the named tuning parameters of the section decision
// procedure. Every value can be overridden from the classification block in
// settings.yaml.
type Thresholds struct {
	// MonthlyCoverage is the share of the window a merchant must touch to
	// count as monthly; MonthlyMinMonths floors it for short windows.
	MonthlyCoverage  float64 `yaml:"monthly_coverage"`
	MonthlyMinMonths int     `yaml:"monthly_min_months"`

	// BillCoverage is the laxer share used for bill-style categories and
	// for the variable-by-coverage check.
	BillCoverage  float64 `yaml:"bill_coverage"`
	BillMinMonths int     `yaml:"bill_min_months"`

	// LowCV separates stable from lumpy payment histories.
	LowCV float64 `yaml:"low_cv"`

	// AnnualMaxMonths caps how many active months a one-per-year merchant
	// may have; PeriodicMaxMonths caps the periodic bucket.
	AnnualMaxMonths   int `yaml:"annual_max_months"`
	PeriodicMaxMonths int `yaml:"periodic_max_months"`

	// BillCategories get the BillCoverage threshold; TravelCategories
	// force the travel section.
	BillCategories   []string `yaml:"bill_categories"`
	TravelCategories []string `yaml:"travel_categories"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MonthlyCoverage:   0.75,
		MonthlyMinMonths:  3,
		BillCoverage:      0.50,
		BillMinMonths:     2,
		LowCV:             0.30,
		AnnualMaxMonths:   2,
		PeriodicMaxMonths: 4,
		BillCategories:    []string{"Bills", "Utilities", "Subscriptions"},
		TravelCategories:  []string{"Travel"},
	}
}

// Validate reports every out-of-range threshold at once.
func (t Thresholds) Validate() error {
	var problems []string
	if t.MonthlyCoverage <= 0 || t.MonthlyCoverage > 1 {
		problems = append(problems, fmt.Sprintf("monthly_coverage must be in (0, 1], got %g", t.MonthlyCoverage))
	}
	if t.BillCoverage <= 0 || t.BillCoverage > 1 {
		problems = append(problems, fmt.Sprintf("bill_coverage must be in (0, 1], got %g", t.BillCoverage))
	}
	if t.BillCoverage > t.MonthlyCoverage {
		problems = append(problems, "bill_coverage must not exceed monthly_coverage")
	}
	if t.MonthlyMinMonths < 1 {
		problems = append(problems, "monthly_min_months must be at least 1")
	}
	if t.BillMinMonths < 1 {
		problems = append(problems, "bill_min_months must be at least 1")
	}
	if t.LowCV <= 0 {
		problems = append(problems, fmt.Sprintf("low_cv must be positive, got %g", t.LowCV))
	}
	if t.AnnualMaxMonths < 1 {
		problems = append(problems, "annual_max_months must be at least 1")
	}
	if t.PeriodicMaxMonths < 1 {
		problems = append(problems, "periodic_max_months must be at least 1")
	}
	if len(problems) > 0 {
		return fmt.Errorf("classification thresholds: %s", strings.Join(problems, "; "))
	}
	return nil
}
