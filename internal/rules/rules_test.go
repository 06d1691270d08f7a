package rules

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func mustParse(t *testing.T, content string) *Matcher {
	t.Helper()
	m, err := Parse(strings.NewReader(content), "rules.csv")
	require.NoError(t, err)
	return m
}

func txn(date, desc, amount string) core.Transaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{
		Date:           d,
		RawDescription: desc,
		Description:    core.NormalizeDescription(desc),
		Amount:         decimal.RequireFromString(amount),
	}
}

const sampleRules = `Pattern,Merchant,Category,Subcategory,Tags
# streaming first so it wins over the generic catch-all
NETFLIX,Netflix,Entertainment,Streaming,streaming|subscription
COSTCO [amount>200],Costco Big Trip,Food,Grocery,
COSTCO,Costco,Food,Grocery,
.*HI$,Hawaii Trip,Travel,Hawaii,travel
UBER [month=12],Uber Holidays,Transport,Rideshare,
UBER,Uber,Transport,Rideshare,
`

func TestParseSkipsCommentsAndHeader(t *testing.T) {
	m := mustParse(t, sampleRules)
	require.Len(t, m.Rules(), 6)
	assert.Equal(t, "NETFLIX", m.Rules()[0].Pattern)
	assert.Equal(t, []string{"streaming", "subscription"}, m.Rules()[0].Tags)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantIn  string
	}{
		{name: "invalid regex", content: "Pattern,Merchant,Category,Subcategory\n[NET,Netflix,A,B\n", wantIn: "line 2"},
		{name: "unknown modifier", content: "Pattern,Merchant,Category,Subcategory\nX [weekday=2],M,A,B\n", wantIn: "weekday=2"},
		{name: "bad amount range", content: "Pattern,Merchant,Category,Subcategory\nX [amount:90-10],M,A,B\n", wantIn: "LOW-HIGH"},
		{name: "bad month", content: "Pattern,Merchant,Category,Subcategory\nX [month=13],M,A,B\n", wantIn: "month"},
		{name: "bad date", content: "Pattern,Merchant,Category,Subcategory\nX [date=12/25/2025],M,A,B\n", wantIn: "YYYY-MM-DD"},
		{name: "too few columns", content: "Pattern,Merchant,Category,Subcategory\nX;M;A;B\n", wantIn: "4 columns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.content), "rules.csv")
			var cfgErr *core.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, cfgErr.Error(), tt.wantIn)
		})
	}
}

func TestClassifyFirstFullMatchWins(t *testing.T) {
	m := mustParse(t, sampleRules)

	// Regex match with a failing modifier falls through to the next rule.
	rule, ok := m.Classify(txn("2025-01-10", "COSTCO WHSE #44", "75.00"))
	require.True(t, ok)
	assert.Equal(t, "Costco", rule.Merchant)

	rule, ok = m.Classify(txn("2025-01-10", "COSTCO WHSE #44", "350.00"))
	require.True(t, ok)
	assert.Equal(t, "Costco Big Trip", rule.Merchant)

	// Boundary: amount>200 is strict.
	rule, ok = m.Classify(txn("2025-01-10", "COSTCO WHSE #44", "200.00"))
	require.True(t, ok)
	assert.Equal(t, "Costco", rule.Merchant)
}

func TestClassifyCaseInsensitive(t *testing.T) {
	m := mustParse(t, sampleRules)

	rule, ok := m.Classify(txn("2025-01-10", "netflix.com", "15.99"))
	require.True(t, ok)
	assert.Equal(t, "Netflix", rule.Merchant)
}

func TestClassifyMonthModifier(t *testing.T) {
	m := mustParse(t, sampleRules)

	rule, ok := m.Classify(txn("2025-12-20", "UBER TRIP", "30.00"))
	require.True(t, ok)
	assert.Equal(t, "Uber Holidays", rule.Merchant)

	rule, ok = m.Classify(txn("2025-06-20", "UBER TRIP", "30.00"))
	require.True(t, ok)
	assert.Equal(t, "Uber", rule.Merchant)
}

func TestClassifyDateAndRangeModifiers(t *testing.T) {
	m := mustParse(t, `Pattern,Merchant,Category,Subcategory
VENMO [date=2025-03-14],Birthday Dinner,Food,Restaurant
VENMO [amount:10-50],Venmo Small,Transfers,Venmo
VENMO,Venmo,Transfers,Venmo
`)

	rule, _ := m.Classify(txn("2025-03-14", "VENMO PAYMENT", "120.00"))
	assert.Equal(t, "Birthday Dinner", rule.Merchant)

	rule, _ = m.Classify(txn("2025-04-01", "VENMO PAYMENT", "50.00"))
	assert.Equal(t, "Venmo Small", rule.Merchant)

	rule, _ = m.Classify(txn("2025-04-01", "VENMO PAYMENT", "50.01"))
	assert.Equal(t, "Venmo", rule.Merchant)
}

func TestClassifyNoMatch(t *testing.T) {
	m := mustParse(t, sampleRules)
	_, ok := m.Classify(txn("2025-01-10", "MYSTERY SHOP", "10.00"))
	assert.False(t, ok)
}

func TestBuildMerchants(t *testing.T) {
	m := mustParse(t, sampleRules)
	merchants := BuildMerchants([]core.Transaction{
		txn("2025-02-01", "NETFLIX.COM", "15.99"),
		txn("2025-01-01", "NETFLIX.COM", "15.99"),
		txn("2025-01-10", "COSTCO WHSE #44", "75.00"),
		txn("2025-01-11", "MYSTERY SHOP", "10.00"),
		txn("2025-01-12", "OTHER MYSTERY", "20.00"),
		txn("2025-01-13", "MYSTERY SHOP", "5.00"),
	}, m)

	byID := map[string]*core.Merchant{}
	for _, merchant := range merchants {
		byID[merchant.ID] = merchant
	}

	netflix := byID["netflix"]
	require.NotNil(t, netflix)
	assert.Equal(t, "Entertainment", netflix.Category)
	assert.Equal(t, []string{"streaming", "subscription"}, netflix.Tags)
	// Transactions sorted by date.
	assert.Equal(t, "2025-01-01", netflix.Transactions[0].Date.Format("2006-01-02"))

	unknown := byID[core.UnknownMerchant]
	require.NotNil(t, unknown)
	assert.Empty(t, unknown.Category)
	assert.Len(t, unknown.Transactions, 3)
	assert.Equal(t, []string{"MYSTERY SHOP", "OTHER MYSTERY"}, unknown.RawDescriptions)
}

func TestSuggestPattern(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "SQ *BLUE BOTTLE COFFEE 12345 OAKLAND CA", want: `BLUE\s*BOTTLE\s*COFFEE`},
		{input: "TST* JOES PIZZA #442 NY", want: `JOES\s*PIZZA`},
		{input: "NETFLIX.COM", want: `NETFLIX\.COM`},
		{input: "ACH DES:PAYROLL ID:12345", want: "ACH"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SuggestPattern(tt.input), "input %q", tt.input)
	}
}

func TestSuggestName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "SQ *BLUE BOTTLE COFFEE 12345 OAKLAND CA", want: "Blue Bottle Coffee"},
		{input: "TST* JOES PIZZA #442 NY", want: "Joes Pizza"},
		{input: "12345", want: "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SuggestName(tt.input), "input %q", tt.input)
	}
}
