package core

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SectionID identifies a top-level spending bucket.
type SectionID string

const (
	SectionMonthly  SectionID = "monthly"
	SectionAnnual   SectionID = "annual"
	SectionPeriodic SectionID = "periodic"
	SectionVariable SectionID = "variable"
	SectionTravel   SectionID = "travel"
	SectionOneOff   SectionID = "oneoff"
	SectionUnknown  SectionID = "unknown"
)

// Sections lists all section IDs in display order.
var Sections = []SectionID{
	SectionMonthly,
	SectionVariable,
	SectionAnnual,
	SectionPeriodic,
	SectionTravel,
	SectionOneOff,
	SectionUnknown,
}

// ValidSection reports whether s names a known section.
func ValidSection(s SectionID) bool {
	for _, id := range Sections {
		if id == s {
			return true
		}
	}
	return false
}

// UnknownMerchant is the ID of the synthetic merchant that collects
// transactions no rule matched.
const UnknownMerchant = "unknown"

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrSkipRow       = errors.New("skip row")
)

// Transaction is one canonical expense record. It is immutable once built:
// every downstream stage reads it, none mutates it.
type Transaction struct {
	Date           time.Time       `json:"date"`
	RawDescription string          `json:"rawDescription"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Location       string          `json:"location,omitempty"`
	Source         string          `json:"source"`
}

// MonthKey returns the canonical YYYY-MM identifier for the transaction date.
func (t Transaction) MonthKey() string {
	return t.Date.Format("2006-01")
}

// NormalizeDescription case-folds and whitespace-collapses a raw description
// into the key that merchant rules match against.
func NormalizeDescription(raw string) string {
	return strings.Join(strings.Fields(strings.ToUpper(raw)), " ")
}

// Stats holds the per-merchant statistics the classifier derives from the
// transaction history.
type Stats struct {
	Count        int             `json:"count"`
	MonthsActive int             `json:"monthsActive"`
	Mean         decimal.Decimal `json:"mean"`
	CV           float64         `json:"cv"`
	MaxPayment   decimal.Decimal `json:"maxPayment"`
	Consistent   bool            `json:"consistent"`
}

// Reasoning records why a merchant landed in its section and how its monthly
// value was derived. The decision line is always populated; the trace is the
// ordered list of checks the classifier walked through.
type Reasoning struct {
	Decision    string            `json:"decision"`
	Trace       []string          `json:"trace,omitempty"`
	Thresholds  map[string]string `json:"thresholds,omitempty"`
	CalcType    string            `json:"calcType,omitempty"`
	CalcReason  string            `json:"calcReason,omitempty"`
	CalcFormula string            `json:"calcFormula,omitempty"`
}

// Merchant is the classified identity one or more transactions are assigned
// to. Tags and category come from the matched rule; the synthetic unknown
// merchant carries neither.
type Merchant struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Category        string          `json:"category,omitempty"`
	Subcategory     string          `json:"subcategory,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
	Pattern         string          `json:"pattern,omitempty"`
	Transactions    []Transaction   `json:"transactions"`
	RawDescriptions []string        `json:"rawDescriptions,omitempty"`
	Section         SectionID       `json:"section,omitempty"`
	Stats           Stats           `json:"stats"`
	MonthlyValue    decimal.Decimal `json:"monthlyValue"`
	Reasoning       *Reasoning      `json:"reasoning,omitempty"`
}

// Total sums the merchant's transaction amounts. Amounts are rounded to
// display precision at parse time, so partial sums and totals always agree.
func (m *Merchant) Total() decimal.Decimal {
	total := decimal.Zero
	for _, t := range m.Transactions {
		total = total.Add(t.Amount)
	}
	return total
}

// Months returns the sorted distinct month keys the merchant touches.
func (m *Merchant) Months() []string {
	seen := map[string]bool{}
	for _, t := range m.Transactions {
		seen[t.MonthKey()] = true
	}
	months := make([]string, 0, len(seen))
	for k := range seen {
		months = append(months, k)
	}
	sort.Strings(months)
	return months
}

// HasTag reports whether the merchant carries the given tag, ignoring case.
func (m *Merchant) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// CategoryPath renders "Category > Subcategory" for display and for the
// category filter's substring match.
func (m *Merchant) CategoryPath() string {
	if m.Subcategory == "" {
		return m.Category
	}
	return m.Category + " > " + m.Subcategory
}

// Dataset is the sectioned merchant dataset both renderers consume. It is
// rebuilt from scratch on every run and treated as immutable afterwards.
type Dataset struct {
	Sections      map[SectionID]map[string]*Merchant `json:"sections"`
	Year          int                                `json:"year"`
	NumMonths     int                                `json:"numMonths"`
	Sources       []string                           `json:"sources"`
	HomeLocations []string                           `json:"homeLocations,omitempty"`
}

// Merchants iterates all merchants across sections in a deterministic order
// (section display order, then merchant ID).
func (d *Dataset) Merchants() []*Merchant {
	var out []*Merchant
	for _, sec := range Sections {
		byID := d.Sections[sec]
		ids := make([]string, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			out = append(out, byID[id])
		}
	}
	return out
}

// Slug derives a stable merchant ID from a display name.
func Slug(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
