package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func tx(date string, amount string) Transaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return Transaction{Date: d, Amount: decimal.RequireFromString(amount)}
}

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercase", input: "netflix.com", want: "NETFLIX.COM"},
		{name: "collapse spaces", input: "  TST*  Joes   Pizza ", want: "TST* JOES PIZZA"},
		{name: "tabs and newlines", input: "A\tB\nC", want: "A B C"},
		{name: "empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDescription(tt.input))
		})
	}
}

func TestMerchantTotalAndMonths(t *testing.T) {
	m := &Merchant{Transactions: []Transaction{
		tx("2024-01-05", "15.99"),
		tx("2024-01-20", "4.01"),
		tx("2024-03-01", "10.00"),
	}}

	assert.Equal(t, "30", m.Total().String())
	assert.Equal(t, []string{"2024-01", "2024-03"}, m.Months())
}

func TestMerchantHasTag(t *testing.T) {
	m := &Merchant{Tags: []string{"Streaming", "essential"}}

	assert.True(t, m.HasTag("streaming"))
	assert.True(t, m.HasTag("ESSENTIAL"))
	assert.False(t, m.HasTag("travel"))
	assert.False(t, (&Merchant{}).HasTag("anything"))
}

func TestMerchantCategoryPath(t *testing.T) {
	m := &Merchant{Category: "Entertainment", Subcategory: "Streaming"}
	assert.Equal(t, "Entertainment > Streaming", m.CategoryPath())

	m.Subcategory = ""
	assert.Equal(t, "Entertainment", m.CategoryPath())
}

func TestDatasetMerchantsDeterministicOrder(t *testing.T) {
	d := &Dataset{Sections: map[SectionID]map[string]*Merchant{
		SectionVariable: {
			"costco": {ID: "costco"},
			"amazon": {ID: "amazon"},
		},
		SectionMonthly: {
			"netflix": {ID: "netflix"},
		},
	}}

	var ids []string
	for _, m := range d.Merchants() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"netflix", "amazon", "costco"}, ids)
}

func TestSlug(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "Netflix", want: "netflix"},
		{input: "Trader Joe's", want: "trader-joe-s"},
		{input: "  AT&T Wireless  ", want: "at-t-wireless"},
		{input: "SQ* Coffee #42", want: "sq-coffee-42"},
		{input: "---", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slug(tt.input))
	}
}

func TestValidSection(t *testing.T) {
	for _, s := range Sections {
		assert.True(t, ValidSection(s))
	}
	assert.False(t, ValidSection("weekly"))
}
