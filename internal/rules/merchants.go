package rules

import (
	"sort"
	"strings"

	"ledger/internal/core"
)

// BuildMerchants groups classified transactions into merchants. Matched
// transactions take their identity from the first matching rule; unmatched
// ones collect under the synthetic unknown merchant, keeping their distinct
// raw descriptions for the discovery workflow.
func BuildMerchants(transactions []core.Transaction, m *Matcher) []*core.Merchant {
	byID := map[string]*core.Merchant{}
	rawSeen := map[string]map[string]bool{}

	add := func(merchant *core.Merchant, t core.Transaction) {
		merchant.Transactions = append(merchant.Transactions, t)
		if !rawSeen[merchant.ID][t.RawDescription] {
			rawSeen[merchant.ID][t.RawDescription] = true
			merchant.RawDescriptions = append(merchant.RawDescriptions, t.RawDescription)
		}
	}

	for _, t := range transactions {
		rule, ok := m.Classify(t)
		if !ok {
			u := byID[core.UnknownMerchant]
			if u == nil {
				u = &core.Merchant{ID: core.UnknownMerchant, Name: "Unknown"}
				byID[u.ID] = u
				rawSeen[u.ID] = map[string]bool{}
			}
			add(u, t)
			continue
		}

		id := core.Slug(rule.Merchant)
		merchant := byID[id]
		if merchant == nil {
			merchant = &core.Merchant{
				ID:          id,
				Name:        rule.Merchant,
				Category:    rule.Category,
				Subcategory: rule.Subcategory,
				Tags:        append([]string(nil), rule.Tags...),
				Pattern:     rule.Pattern,
			}
			byID[id] = merchant
			rawSeen[id] = map[string]bool{}
		} else {
			// Several rules can map to the same merchant name; the first
			// one keeps the category, later ones only contribute tags.
			merchant.Tags = mergeTags(merchant.Tags, rule.Tags)
		}
		add(merchant, t)
	}

	merchants := make([]*core.Merchant, 0, len(byID))
	for _, merchant := range byID {
		sort.SliceStable(merchant.Transactions, func(i, j int) bool {
			a, b := merchant.Transactions[i], merchant.Transactions[j]
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
			return a.Description < b.Description
		})
		sort.Strings(merchant.RawDescriptions)
		merchants = append(merchants, merchant)
	}
	sort.Slice(merchants, func(i, j int) bool { return merchants[i].ID < merchants[j].ID })
	return merchants
}

func mergeTags(existing, extra []string) []string {
	seen := map[string]bool{}
	for _, tag := range existing {
		seen[strings.ToLower(tag)] = true
	}
	changed := false
	for _, tag := range extra {
		if !seen[strings.ToLower(tag)] {
			seen[strings.ToLower(tag)] = true
			existing = append(existing, tag)
			changed = true
		}
	}
	if changed {
		sort.Strings(existing)
	}
	return existing
}
