// Package ingest turns raw bank exports into canonical transactions. Each
// source declares a column format string; the compiled format extracts one
// transaction per row, skipping rows it cannot parse and counting them so a
// fully unreadable source surfaces as a configuration error instead of an
// empty dataset.
package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"ledger/internal/core"
)

// tokenKind identifies what a format token extracts from its column.
type tokenKind int

const (
	tokenDate tokenKind = iota
	tokenDescription
	tokenAmount
	tokenSkip
	tokenCapture
)

type token struct {
	kind   tokenKind
	layout string // tokenDate: Go time layout
	name   string // tokenCapture: capture name
	negate bool   // tokenAmount: {-amount}
}

// Format is a compiled column format. It maps CSV columns to transaction
// fields and is safe for concurrent use once compiled.
type Format struct {
	tokens       []token
	descTemplate string
	hasDesc      bool
}

// locationRe matches a trailing 2-letter state or country code.
var locationRe = regexp.MustCompile(`\s+([A-Z]{2})\s*$`)

// strftime directives accepted in {date:...} specs, mapped to Go layouts.
var strftimeToGo = strings.NewReplacer(
	"%Y", "2006",
	"%y", "06",
	"%m", "01",
	"%d", "02",
	"%b", "Jan",
	"%B", "January",
	"%H", "15",
	"%M", "04",
	"%S", "05",
)

// CompileFormat compiles a comma-separated column format string such as
//
//	{date:%m/%d/%Y},{description},{_},{amount}
//
// Tokens: {date:<fmt>} (strftime or Go layout), {description}, {amount},
// {-amount} (negates, for sources where charges are exported negative),
// {_} (discard), and {name} (capture for the description template).
//
// descTemplate, when non-empty, builds the description by substituting
// {name} captures instead of taking the description column directly.
func CompileFormat(format, descTemplate string) (*Format, error) {
	f := &Format{descTemplate: descTemplate}
	captures := map[string]bool{}
	var haveDate, haveAmount bool

	for _, part := range strings.Split(format, ",") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "{") || !strings.HasSuffix(part, "}") {
			return nil, formatErr(format, fmt.Sprintf("token %q is not of the form {...}", part),
				"tokens are {date:<fmt>}, {description}, {amount}, {-amount}, {_} or {name}")
		}
		body := part[1 : len(part)-1]

		switch {
		case body == "date" || strings.HasPrefix(body, "date:"):
			if haveDate {
				return nil, formatErr(format, "duplicate {date:...} token", "a format needs exactly one date column")
			}
			spec, ok := strings.CutPrefix(body, "date:")
			if !ok || spec == "" {
				return nil, formatErr(format, "{date} token is missing its format",
					`write {date:%m/%d/%Y} or {date:2006-01-02}`)
			}
			f.tokens = append(f.tokens, token{kind: tokenDate, layout: dateLayout(spec)})
			haveDate = true

		case body == "description":
			if f.hasDesc {
				return nil, formatErr(format, "duplicate {description} token", "a format needs at most one description column")
			}
			f.tokens = append(f.tokens, token{kind: tokenDescription})
			f.hasDesc = true

		case body == "amount" || body == "-amount":
			if haveAmount {
				return nil, formatErr(format, "duplicate amount token", "a format needs exactly one amount column")
			}
			f.tokens = append(f.tokens, token{kind: tokenAmount, negate: body == "-amount"})
			haveAmount = true

		case body == "_":
			f.tokens = append(f.tokens, token{kind: tokenSkip})

		case validCaptureName(body):
			if captures[body] {
				return nil, formatErr(format, fmt.Sprintf("duplicate capture {%s}", body), "capture names must be unique")
			}
			captures[body] = true
			f.tokens = append(f.tokens, token{kind: tokenCapture, name: body})

		default:
			return nil, formatErr(format, fmt.Sprintf("unknown token {%s}", body),
				"tokens are {date:<fmt>}, {description}, {amount}, {-amount}, {_} or {name}")
		}
	}

	if !haveDate {
		return nil, formatErr(format, "no {date:...} token", "every format needs a date column")
	}
	if !haveAmount {
		return nil, formatErr(format, "no {amount} token", "every format needs an amount column")
	}
	if !f.hasDesc && descTemplate == "" {
		return nil, formatErr(format, "no {description} token and no description template",
			"add {description} to the format or set columns.description")
	}

	// A template may only reference names the format captures.
	for _, name := range templateRefs(descTemplate) {
		if !captures[name] {
			return nil, &core.ConfigError{
				Field:      "columns.description",
				Value:      descTemplate,
				Msg:        fmt.Sprintf("references {%s}, which the format does not capture", name),
				Suggestion: fmt.Sprintf("add a {%s} token to the format string", name),
			}
		}
	}
	return f, nil
}

// ParseRow extracts one transaction from a CSV row. Failures return a
// core.RowError (with Row left for the caller to fill); zero-amount rows
// and credits return core.ErrSkipRow.
func (f *Format) ParseRow(row []string, sep core.DecimalSeparator) (core.Transaction, error) {
	if len(row) < len(f.tokens) {
		return core.Transaction{}, &core.RowError{
			Column: len(row),
			Err:    fmt.Errorf("expected %d columns, got %d", len(f.tokens), len(row)),
		}
	}

	var t core.Transaction
	captures := map[string]string{}
	for i, tok := range f.tokens {
		cell := strings.TrimSpace(row[i])
		switch tok.kind {
		case tokenDate:
			// Some exports append a weekday after the date.
			dateStr, _, _ := strings.Cut(cell, " ")
			d, err := time.Parse(tok.layout, dateStr)
			if err != nil {
				return core.Transaction{}, &core.RowError{Column: i, Err: fmt.Errorf("%w: %q", core.ErrInvalidDate, cell)}
			}
			t.Date = d
		case tokenDescription:
			t.RawDescription = cell
		case tokenAmount:
			amount, err := core.ParseAmount(cell, sep)
			if err != nil {
				return core.Transaction{}, &core.RowError{Column: i, Err: err}
			}
			if tok.negate {
				amount = amount.Neg()
			}
			t.Amount = amount
		case tokenCapture:
			captures[tok.name] = cell
		}
	}

	if f.descTemplate != "" {
		t.RawDescription = expandTemplate(f.descTemplate, captures)
	}
	if t.RawDescription == "" {
		return core.Transaction{}, core.ErrSkipRow
	}
	// Zero amounts carry no spend; negative amounts after sign resolution
	// are credits or refunds. Neither belongs in an expense dataset.
	if !t.Amount.IsPositive() {
		return core.Transaction{}, core.ErrSkipRow
	}

	t.Description = core.NormalizeDescription(t.RawDescription)
	if loc, ok := captures["location"]; ok && loc != "" {
		t.Location = strings.ToUpper(loc)
	} else {
		t.Location = ExtractLocation(t.RawDescription)
	}
	return t, nil
}

// Columns returns the number of columns the format consumes.
func (f *Format) Columns() int { return len(f.tokens) }

// ExtractLocation pulls a trailing 2-letter state or country code from a
// description, or returns "" when there is none.
func ExtractLocation(description string) string {
	if m := locationRe.FindStringSubmatch(description); m != nil {
		return m[1]
	}
	return ""
}

func dateLayout(spec string) string {
	if strings.Contains(spec, "%") {
		return strftimeToGo.Replace(spec)
	}
	return spec
}

func validCaptureName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return true
}

var templateRefRe = regexp.MustCompile(`\{(\w+)\}`)

func templateRefs(template string) []string {
	var names []string
	for _, m := range templateRefRe.FindAllStringSubmatch(template, -1) {
		names = append(names, m[1])
	}
	return names
}

func expandTemplate(template string, captures map[string]string) string {
	out := templateRefRe.ReplaceAllStringFunc(template, func(ref string) string {
		return captures[ref[1:len(ref)-1]]
	})
	return strings.TrimSpace(out)
}

func formatErr(format, msg, suggestion string) *core.ConfigError {
	return &core.ConfigError{Field: "format", Value: format, Msg: msg, Suggestion: suggestion}
}
