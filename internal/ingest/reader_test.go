package ingest

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func csvSource(t *testing.T, name, path, format string, skipHeader bool) Source {
	t.Helper()
	f, err := CompileFormat(format, "")
	require.NoError(t, err)
	return Source{
		Name:       name,
		Path:       path,
		Kind:       KindCSV,
		Format:     f,
		Separator:  core.SeparatorDot,
		SkipHeader: skipHeader,
	}
}

func TestReadSource(t *testing.T) {
	path := writeCSV(t, "card.csv", `Date,Description,Amount
01/15/2025,NETFLIX.COM  CA,15.99
01/20/2025,AMAZON.COM,0.00
not a date,BROKEN ROW,10.00
02/15/2025,NETFLIX.COM  CA,15.99
`)
	src := csvSource(t, "card", path, "{date:%m/%d/%Y},{description},{amount}", true)

	txs, report, err := ReadSource(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, txs, 2)
	assert.Equal(t, "card", txs[0].Source)
	assert.Equal(t, "NETFLIX.COM CA", txs[0].Description)

	assert.Equal(t, 4, report.Rows)
	assert.Equal(t, 2, report.Parsed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 4, report.Errors[0].Row)
}

func TestReadSourceAllRowsFailedIsFatal(t *testing.T) {
	path := writeCSV(t, "bad.csv", `15.99;NETFLIX;01/15/2025
4.50;COFFEE;01/16/2025
`)
	src := csvSource(t, "bad", path, "{date:%m/%d/%Y},{description},{amount}", false)

	_, report, err := ReadSource(context.Background(), src)
	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 2, report.Failed)
}

func TestReadSourceMissingFile(t *testing.T) {
	src := csvSource(t, "gone", filepath.Join(t.TempDir(), "missing.csv"), "{date:%m/%d/%Y},{description},{amount}", false)

	_, _, err := ReadSource(context.Background(), src)
	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Field, "gone")
}

func TestReadAllMergesInSourceOrder(t *testing.T) {
	first := writeCSV(t, "first.csv", "01/10/2025,ALPHA,1.00\n01/11/2025,BETA,2.00\n")
	second := writeCSV(t, "second.csv", "01/12/2025,GAMMA,3.00\n")

	txs, reports, err := ReadAll(context.Background(), []Source{
		csvSource(t, "first", first, "{date:%m/%d/%Y},{description},{amount}", false),
		csvSource(t, "second", second, "{date:%m/%d/%Y},{description},{amount}", false),
	})
	require.NoError(t, err)

	require.Len(t, txs, 3)
	assert.Equal(t, "ALPHA", txs[0].Description)
	assert.Equal(t, "BETA", txs[1].Description)
	assert.Equal(t, "GAMMA", txs[2].Description)
	require.Len(t, reports, 2)
	assert.Equal(t, "first", reports[0].Source)
}

func TestReadSQLiteSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spending.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE expenses (day TEXT, payee TEXT, total REAL, region TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO expenses VALUES
		('2025-01-15', 'NETFLIX.COM', 15.99, 'CA'),
		('2025-01-20', 'REFUND', -5.00, ''),
		('bad date', 'BROKEN', 1.00, ''),
		('2025-02-03', 'HOTEL LISBOA', 310.00, 'PT')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src := Source{
		Name:      "bank",
		Path:      path,
		Kind:      KindSQLite,
		Separator: core.SeparatorDot,
		Table:     "expenses",
		Columns: SQLiteColumns{
			Date:        "day",
			Description: "payee",
			Amount:      "total",
			Location:    "region",
		},
	}

	txs, report, err := ReadSource(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, txs, 2)
	assert.Equal(t, "NETFLIX.COM", txs[0].Description)
	assert.Equal(t, "15.99", txs[0].Amount.String())
	assert.Equal(t, "CA", txs[0].Location)
	assert.Equal(t, "PT", txs[1].Location)
	assert.Equal(t, "bank", txs[1].Source)

	assert.Equal(t, 2, report.Parsed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)
}

func TestReadSQLiteBadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE other (x TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src := Source{
		Name:    "bank",
		Path:    path,
		Kind:    KindSQLite,
		Table:   "expenses",
		Columns: SQLiteColumns{Date: "day", Description: "payee", Amount: "total"},
	}

	_, _, err = ReadSource(context.Background(), src)
	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
