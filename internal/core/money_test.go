package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		sep     DecimalSeparator
		want    string
		wantErr bool
	}{
		{name: "plain", input: "15.99", sep: SeparatorDot, want: "15.99"},
		{name: "thousands dot sep", input: "1,234.56", sep: SeparatorDot, want: "1234.56"},
		{name: "currency symbol", input: "$42.00", sep: SeparatorDot, want: "42"},
		{name: "parentheses negative", input: "(100.00)", sep: SeparatorDot, want: "-100"},
		{name: "parentheses with symbol", input: "($15.99)", sep: SeparatorDot, want: "-15.99"},
		{name: "explicit minus", input: "-7.50", sep: SeparatorDot, want: "-7.5"},
		{name: "comma decimal", input: "1.234,56", sep: SeparatorComma, want: "1234.56"},
		{name: "comma decimal simple", input: "19,90", sep: SeparatorComma, want: "19.9"},
		{name: "euro symbol", input: "€1.000,00", sep: SeparatorComma, want: "1000"},
		{name: "rounds to cents", input: "10.999", sep: SeparatorDot, want: "11"},
		{name: "whitespace", input: "  3.14  ", sep: SeparatorDot, want: "3.14"},
		{name: "empty", input: "", sep: SeparatorDot, wantErr: true},
		{name: "garbage", input: "abc", sep: SeparatorDot, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input, tt.sep)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		format string
		want   string
	}{
		{name: "default dollar", amount: "1234.56", format: "", want: "$1,235"},
		{name: "explicit template", amount: "1234.56", format: "${amount}", want: "$1,235"},
		{name: "suffix template", amount: "1234.56", format: "{amount} zł", want: "1,235 zł"},
		{name: "small", amount: "9.4", format: "${amount}", want: "$9"},
		{name: "negative", amount: "-1500", format: "${amount}", want: "$-1,500"},
		{name: "millions", amount: "1234567", format: "${amount}", want: "$1,234,567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCurrency(decimal.RequireFromString(tt.amount), tt.format))
		})
	}
}

func TestFormatCurrencyDecimal(t *testing.T) {
	assert.Equal(t, "$1,234.56", FormatCurrencyDecimal(decimal.RequireFromString("1234.56"), "${amount}"))
	assert.Equal(t, "$0.50", FormatCurrencyDecimal(decimal.RequireFromString("0.5"), ""))
}
