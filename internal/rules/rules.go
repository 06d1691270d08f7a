// Package rules implements the ordered first-match rule engine that assigns
// merchants, categories and tags to transactions. Rules come from a CSV file
// and are evaluated strictly in declaration order; inline modifiers narrow a
// regex match by amount or date.
package rules

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// modifierRe splits a pattern cell into "regex [mod,mod]" parts.
var modifierRe = regexp.MustCompile(`^(.*?)\s*\[([^\]]+)\]\s*$`)

// modifier is one inline predicate attached to a rule pattern.
type modifier struct {
	raw   string
	match func(core.Transaction) bool
}

// CompiledRule is one loaded rule. The regex matches case-insensitively
// against the normalized description; modifiers are checked only after the
// regex matches, and all of them must pass.
type CompiledRule struct {
	Pattern     string
	Merchant    string
	Category    string
	Subcategory string
	Tags        []string
	Line        int

	re        *regexp.Regexp
	modifiers []modifier
}

// Matches reports whether the rule fully matches the transaction, regex and
// modifiers both.
func (r *CompiledRule) Matches(t core.Transaction) bool {
	if !r.re.MatchString(t.Description) {
		return false
	}
	for _, m := range r.modifiers {
		if !m.match(t) {
			return false
		}
	}
	return true
}

// Modifiers returns the raw modifier expressions, for explain output.
func (r *CompiledRule) Modifiers() []string {
	out := make([]string, len(r.modifiers))
	for i, m := range r.modifiers {
		out[i] = m.raw
	}
	return out
}

// Matcher holds the ordered rule list.
type Matcher struct {
	rules []*CompiledRule
}

// Rules returns the rules in declaration order.
func (m *Matcher) Rules() []*CompiledRule { return m.rules }

// Classify returns the first rule whose regex and modifiers all match, or
// (nil, false) when nothing matches. A regex match with a failing modifier
// does not stop the scan.
func (m *Matcher) Classify(t core.Transaction) (*CompiledRule, bool) {
	for _, r := range m.rules {
		if r.Matches(t) {
			return r, true
		}
	}
	return nil, false
}

// Load reads a rule file. The CSV columns are
//
//	Pattern, Merchant, Category, Subcategory, Tags
//
// with pipe-separated tags and an optional "[mod,mod]" suffix on the
// pattern. Comment lines (#) and rows with empty patterns are skipped.
// An invalid regex or modifier is fatal and names the offending line.
func Load(path string) (*Matcher, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &core.ConfigError{
			Field:      "rules_file",
			Value:      path,
			Msg:        "cannot open rules file",
			Suggestion: "check the rules_file path in settings.yaml",
		}
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse reads rules from r; name is used in error messages.
func Parse(r io.Reader, name string) (*Matcher, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	m := &Matcher{}
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		line, _ := reader.FieldPos(0)
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(record[0]), "pattern") {
				continue
			}
		}
		if len(record) < 4 {
			return nil, ruleErr(name, line, record[0], "expected at least 4 columns (Pattern, Merchant, Category, Subcategory)")
		}
		pattern := strings.TrimSpace(record[0])
		if pattern == "" {
			continue
		}

		rule, err := compileRule(record, line)
		if err != nil {
			return nil, ruleErr(name, line, pattern, err.Error())
		}
		m.rules = append(m.rules, rule)
	}
	return m, nil
}

func compileRule(record []string, line int) (*CompiledRule, error) {
	pattern := strings.TrimSpace(record[0])

	var mods []modifier
	if sub := modifierRe.FindStringSubmatch(pattern); sub != nil {
		pattern = strings.TrimSpace(sub[1])
		for _, raw := range strings.Split(sub[2], ",") {
			mod, err := parseModifier(strings.TrimSpace(raw))
			if err != nil {
				return nil, err
			}
			mods = append(mods, mod)
		}
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %v", err)
	}

	rule := &CompiledRule{
		Pattern:     pattern,
		Merchant:    strings.TrimSpace(record[1]),
		Category:    strings.TrimSpace(record[2]),
		Subcategory: strings.TrimSpace(record[3]),
		Line:        line,
		re:          re,
		modifiers:   mods,
	}
	if len(record) > 4 {
		rule.Tags = splitTags(record[4])
	}
	return rule, nil
}

// parseModifier compiles one inline predicate. Grammar:
//
//	amount>N   amount<N   amount:LOW-HIGH   date=YYYY-MM-DD   month=M
func parseModifier(raw string) (modifier, error) {
	switch {
	case strings.HasPrefix(raw, "amount>"):
		n, err := decimal.NewFromString(strings.TrimPrefix(raw, "amount>"))
		if err != nil {
			return modifier{}, fmt.Errorf("invalid modifier %q: bad amount", raw)
		}
		return modifier{raw: raw, match: func(t core.Transaction) bool {
			return t.Amount.GreaterThan(n)
		}}, nil

	case strings.HasPrefix(raw, "amount<"):
		n, err := decimal.NewFromString(strings.TrimPrefix(raw, "amount<"))
		if err != nil {
			return modifier{}, fmt.Errorf("invalid modifier %q: bad amount", raw)
		}
		return modifier{raw: raw, match: func(t core.Transaction) bool {
			return t.Amount.LessThan(n)
		}}, nil

	case strings.HasPrefix(raw, "amount:"):
		low, high, ok := strings.Cut(strings.TrimPrefix(raw, "amount:"), "-")
		if !ok {
			return modifier{}, fmt.Errorf("invalid modifier %q: range is LOW-HIGH", raw)
		}
		lo, err1 := decimal.NewFromString(strings.TrimSpace(low))
		hi, err2 := decimal.NewFromString(strings.TrimSpace(high))
		if err1 != nil || err2 != nil || lo.GreaterThan(hi) {
			return modifier{}, fmt.Errorf("invalid modifier %q: range is LOW-HIGH", raw)
		}
		return modifier{raw: raw, match: func(t core.Transaction) bool {
			return t.Amount.GreaterThanOrEqual(lo) && t.Amount.LessThanOrEqual(hi)
		}}, nil

	case strings.HasPrefix(raw, "date="):
		d, err := time.Parse("2006-01-02", strings.TrimPrefix(raw, "date="))
		if err != nil {
			return modifier{}, fmt.Errorf("invalid modifier %q: date is YYYY-MM-DD", raw)
		}
		return modifier{raw: raw, match: func(t core.Transaction) bool {
			return t.Date.Year() == d.Year() && t.Date.YearDay() == d.YearDay()
		}}, nil

	case strings.HasPrefix(raw, "month="):
		var month int
		if _, err := fmt.Sscanf(strings.TrimPrefix(raw, "month="), "%d", &month); err != nil || month < 1 || month > 12 {
			return modifier{}, fmt.Errorf("invalid modifier %q: month is 1-12", raw)
		}
		return modifier{raw: raw, match: func(t core.Transaction) bool {
			return int(t.Date.Month()) == month
		}}, nil
	}
	return modifier{}, fmt.Errorf("unknown modifier %q", raw)
}

func splitTags(cell string) []string {
	seen := map[string]bool{}
	var tags []string
	for _, tag := range strings.Split(cell, "|") {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[strings.ToLower(tag)] {
			continue
		}
		seen[strings.ToLower(tag)] = true
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func ruleErr(name string, line int, value, msg string) *core.ConfigError {
	return &core.ConfigError{
		Field:      fmt.Sprintf("%s line %d", name, line),
		Value:      value,
		Msg:        msg,
		Suggestion: "fix the rule row; the format is Pattern, Merchant, Category, Subcategory, Tags",
	}
}
