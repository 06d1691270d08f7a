package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ledger/internal/core"
)

const defaultSQLiteDateLayout = "2006-01-02"

// readSQLite reads transactions from a table in a local SQLite file. The
// database is opened read-only; row failures follow the same skip-and-count
// semantics as CSV sources.
func readSQLite(ctx context.Context, src Source) ([]core.Transaction, *SourceReport, error) {
	if _, err := os.Stat(src.Path); err != nil {
		return nil, nil, &core.ConfigError{
			Field:      "data_sources." + src.Name,
			Value:      src.Path,
			Msg:        "cannot open source database",
			Suggestion: "check the file path in settings.yaml",
		}
	}

	db, err := sql.Open("sqlite", "file:"+src.Path+"?mode=ro")
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", src.Path, err)
	}
	defer db.Close()

	cols := src.Columns
	selected := []string{
		quoteIdent(cols.Date),
		quoteIdent(cols.Description),
		"CAST(" + quoteIdent(cols.Amount) + " AS TEXT)",
	}
	if cols.Location != "" {
		selected = append(selected, quoteIdent(cols.Location))
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid",
		strings.Join(selected, ", "), quoteIdent(src.Table))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, &core.ConfigError{
			Field:      "data_sources." + src.Name,
			Value:      src.Table,
			Msg:        fmt.Sprintf("query failed: %v", err),
			Suggestion: "check the table and column names in settings.yaml",
		}
	}
	defer rows.Close()

	layout := src.DateLayout
	if layout == "" {
		layout = defaultSQLiteDateLayout
	}

	report := &SourceReport{Source: src.Name}
	var txs []core.Transaction
	rowNum := 0
	for rows.Next() {
		rowNum++
		report.Rows++

		var dateStr, desc, amountStr string
		var location sql.NullString
		dest := []any{&dateStr, &desc, &amountStr}
		if cols.Location != "" {
			dest = append(dest, &location)
		}
		if err := rows.Scan(dest...); err != nil {
			report.record(rowNum, &core.RowError{Err: err})
			continue
		}

		t, err := sqliteTransaction(dateStr, desc, amountStr, location.String, layout, src.Separator)
		if err != nil {
			report.record(rowNum, err)
			continue
		}
		t.Source = src.Name
		txs = append(txs, t)
		report.Parsed++
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", src.Path, err)
	}

	if report.allFailed() {
		return nil, report, &core.ConfigError{
			Field:      "data_sources." + src.Name,
			Value:      src.Table,
			Msg:        fmt.Sprintf("all %d rows failed to parse", report.Failed),
			Suggestion: "check the column mapping and date format in settings.yaml",
		}
	}
	return txs, report, nil
}

func sqliteTransaction(dateStr, desc, amountStr, location, layout string, sep core.DecimalSeparator) (core.Transaction, error) {
	date, err := time.Parse(layout, strings.TrimSpace(dateStr))
	if err != nil {
		return core.Transaction{}, &core.RowError{Column: 0, Err: fmt.Errorf("%w: %q", core.ErrInvalidDate, dateStr)}
	}
	amount, err := core.ParseAmount(amountStr, sep)
	if err != nil {
		return core.Transaction{}, &core.RowError{Column: 2, Err: err}
	}
	if !amount.IsPositive() {
		return core.Transaction{}, core.ErrSkipRow
	}
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return core.Transaction{}, core.ErrSkipRow
	}

	t := core.Transaction{
		Date:           date,
		RawDescription: desc,
		Description:    core.NormalizeDescription(desc),
		Amount:         amount,
	}
	if location != "" {
		t.Location = strings.ToUpper(strings.TrimSpace(location))
	} else {
		t.Location = ExtractLocation(desc)
	}
	return t, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
