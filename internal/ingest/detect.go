package ingest

import (
	"fmt"
	"strings"

	"ledger/internal/core"
)

// Detection holds the column roles inferred from a CSV header row, plus the
// format string that would read the file.
type Detection struct {
	DateColumn        int
	DescriptionColumn int
	AmountColumn      int
	LocationColumn    int // -1 when absent
	Columns           int
	Format            string
}

var (
	dateHeaders     = []string{"date", "trans date", "transaction date", "posting date", "trans_date"}
	descHeaders     = []string{"description", "merchant", "payee", "memo", "name"}
	amountHeaders   = []string{"amount", "debit", "charge", "transaction amount", "payment"}
	locationHeaders = []string{"location", "city", "state", "city/state", "region"}
)

// DetectFormat infers date/description/amount/location columns from common
// header names (case-insensitive substring match) and builds a candidate
// format string. Missing required columns are a configuration error listing
// what could not be found.
func DetectFormat(header []string) (*Detection, error) {
	d := &Detection{DateColumn: -1, DescriptionColumn: -1, AmountColumn: -1, LocationColumn: -1, Columns: len(header)}

	for i, h := range header {
		switch {
		case d.DateColumn < 0 && matchHeader(h, dateHeaders):
			d.DateColumn = i
		case d.DescriptionColumn < 0 && matchHeader(h, descHeaders):
			d.DescriptionColumn = i
		case d.AmountColumn < 0 && matchHeader(h, amountHeaders):
			d.AmountColumn = i
		case d.LocationColumn < 0 && matchHeader(h, locationHeaders):
			d.LocationColumn = i
		}
	}

	var missing []string
	if d.DateColumn < 0 {
		missing = append(missing, "date")
	}
	if d.DescriptionColumn < 0 {
		missing = append(missing, "description")
	}
	if d.AmountColumn < 0 {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return nil, &core.ConfigError{
			Field:      "format",
			Value:      strings.Join(header, ","),
			Msg:        fmt.Sprintf("could not detect required columns: %s", strings.Join(missing, ", ")),
			Suggestion: "write an explicit format string for this source",
		}
	}

	tokens := make([]string, len(header))
	for i := range tokens {
		switch i {
		case d.DateColumn:
			tokens[i] = "{date:%m/%d/%Y}"
		case d.DescriptionColumn:
			tokens[i] = "{description}"
		case d.AmountColumn:
			tokens[i] = "{amount}"
		case d.LocationColumn:
			tokens[i] = "{location}"
		default:
			tokens[i] = "{_}"
		}
	}
	d.Format = strings.Join(tokens, ",")
	return d, nil
}

func matchHeader(header string, patterns []string) bool {
	h := strings.ToLower(strings.TrimSpace(header))
	for _, p := range patterns {
		if strings.Contains(h, p) {
			return true
		}
	}
	return false
}
