package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/ingest"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validSettings = `
year: 2025
home_locations: [WA]
currency_format: "${amount}"
rules_file: merchant_categories.csv
classification:
  low_cv: 0.25
data_sources:
  - name: card
    file: data/card.csv
    type: amex
  - name: bank
    file: data/bank.csv
    format: "{date:%Y-%m-%d},{vendor},{type},{-amount}"
    decimal_separator: ","
    columns:
      description: "{vendor} ({type})"
  - name: archive
    file: data/archive.db
    type: sqlite
    table: expenses
    sqlite_columns:
      date: day
      description: payee
      amount: total
`

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeSettings(t, validSettings))
	require.NoError(t, err)

	assert.Equal(t, 2025, cfg.Year)
	assert.Equal(t, []string{"WA"}, cfg.HomeLocations)
	// Partial classification blocks keep the other defaults.
	assert.Equal(t, 0.25, cfg.Classification.LowCV)
	assert.Equal(t, 0.75, cfg.Classification.MonthlyCoverage)

	sources, err := cfg.Sources()
	require.NoError(t, err)
	require.Len(t, sources, 3)

	assert.Equal(t, ingest.KindCSV, sources[0].Kind)
	assert.True(t, sources[0].SkipHeader, "built-in amex format skips its header")
	assert.Equal(t, core.SeparatorComma, sources[1].Separator)
	assert.Equal(t, ingest.KindSQLite, sources[2].Kind)
	assert.Equal(t, "expenses", sources[2].Table)

	// Relative paths resolve against the settings directory.
	assert.True(t, filepath.IsAbs(cfg.RulesPath()))
	assert.True(t, filepath.IsAbs(sources[0].Path))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.NotEmpty(t, cfgErr.Suggestion)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	_, err := Load(writeSettings(t, `
year: 12
currency_format: "USD"
classification:
  low_cv: 0
data_sources:
  - name: broken
    file: data/x.csv
  - name: both
    file: data/y.csv
    type: amex
    format: "{date:%Y},{description},{amount}"
`))

	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	msg := cfgErr.Error()
	assert.Contains(t, msg, "year 12")
	assert.Contains(t, msg, "rules_file")
	assert.Contains(t, msg, "{amount}")
	assert.Contains(t, msg, "low_cv")
	assert.Contains(t, msg, "either type or format")
	assert.Contains(t, msg, "mutually exclusive")
}

func TestValidateSQLiteSource(t *testing.T) {
	_, err := Load(writeSettings(t, `
rules_file: rules.csv
data_sources:
  - name: db
    file: data/x.db
    type: sqlite
`))

	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "table is required")
	assert.Contains(t, cfgErr.Error(), "sqlite_columns.date")
}

func TestBadFormatStringSurfacesOnResolve(t *testing.T) {
	cfg, err := Load(writeSettings(t, `
rules_file: rules.csv
data_sources:
  - name: bank
    file: data/bank.csv
    format: "{date},{description},{amount}"
`))
	require.NoError(t, err)

	_, err = cfg.Sources()
	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Msg, "missing its format")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LEDGER_YEAR", "2024")
	t.Setenv("LEDGER_HOME_LOCATIONS", "wa, or")
	t.Setenv("LEDGER_CURRENCY_FORMAT", "{amount} zł")

	cfg, err := Load(writeSettings(t, validSettings))
	require.NoError(t, err)

	assert.Equal(t, 2024, cfg.Year)
	assert.Equal(t, []string{"WA", "OR"}, cfg.HomeLocations)
	assert.Equal(t, "{amount} zł", cfg.CurrencyFormat)
}
