package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"ledger/internal/core"
)

// Source kinds.
const (
	KindCSV    = "csv"
	KindSQLite = "sqlite"
)

// Source is one resolved input: a CSV file with a compiled format, or a
// read-only SQLite database with a table/column mapping.
type Source struct {
	Name       string
	Path       string
	Kind       string
	Format     *Format
	Separator  core.DecimalSeparator
	SkipHeader bool

	// SQLite sources only.
	Table      string
	Columns    SQLiteColumns
	DateLayout string
}

// SQLiteColumns names the table columns a SQLite source reads.
type SQLiteColumns struct {
	Date        string
	Description string
	Amount      string
	Location    string
}

// builtinFormat resolves a named bank-export shape to a format string.
type builtinFormat struct {
	format     string
	skipHeader bool
}

var builtinFormats = map[string]builtinFormat{
	// Standard card export: Date, Description, Amount; charges positive.
	"amex": {format: "{date:%m/%d/%Y},{description},{amount}", skipHeader: true},
	// Checking export: Date, Description, Amount, Running Balance; debits
	// recorded negative.
	"boa": {format: "{date:%m/%d/%Y},{description},{-amount},{_}", skipHeader: true},
}

// ResolveFormat returns the compiled format for either a built-in name or an
// explicit format string.
func ResolveFormat(nameOrFormat, descTemplate string) (*Format, bool, error) {
	if b, ok := builtinFormats[nameOrFormat]; ok {
		f, err := CompileFormat(b.format, descTemplate)
		return f, b.skipHeader, err
	}
	f, err := CompileFormat(nameOrFormat, descTemplate)
	return f, false, err
}

// BuiltinFormats lists the known named formats.
func BuiltinFormats() []string {
	names := make([]string, 0, len(builtinFormats))
	for name := range builtinFormats {
		names = append(names, name)
	}
	return names
}

// maxReportedRowErrors caps the per-source error detail kept for logging;
// the totals are always exact.
const maxReportedRowErrors = 10

// SourceReport accounts for what happened while reading one source.
type SourceReport struct {
	Source  string
	Rows    int // data rows seen
	Parsed  int // transactions produced
	Skipped int // zero-amount rows and credits
	Failed  int // rows that did not parse
	Errors  []*core.RowError
}

func (r *SourceReport) record(row int, err error) {
	if errors.Is(err, core.ErrSkipRow) {
		r.Skipped++
		return
	}
	r.Failed++
	var rowErr *core.RowError
	if errors.As(err, &rowErr) {
		rowErr.Row = row
		if len(r.Errors) < maxReportedRowErrors {
			r.Errors = append(r.Errors, rowErr)
		}
	}
}

// allFailed reports whether every parseable row in the source failed, which
// almost always means the format string does not match the file.
func (r *SourceReport) allFailed() bool {
	return r.Failed > 0 && r.Parsed == 0 && r.Skipped == 0
}

// ReadSource reads every transaction from one source. Row failures are
// counted in the report and skipped; a source where all rows fail returns a
// configuration error instead.
func ReadSource(ctx context.Context, src Source) ([]core.Transaction, *SourceReport, error) {
	if src.Kind == KindSQLite {
		return readSQLite(ctx, src)
	}

	f, err := os.Open(src.Path)
	if err != nil {
		return nil, nil, &core.ConfigError{
			Field:      "data_sources." + src.Name,
			Value:      src.Path,
			Msg:        "cannot open source file",
			Suggestion: "check the file path in settings.yaml",
		}
	}
	defer f.Close()

	report := &SourceReport{Source: src.Name}
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var txs []core.Transaction
	rowNum := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", src.Path, err)
		}
		rowNum++
		if rowNum == 1 && src.SkipHeader {
			continue
		}
		report.Rows++

		t, err := src.Format.ParseRow(row, src.Separator)
		if err != nil {
			report.record(rowNum, err)
			continue
		}
		t.Source = src.Name
		txs = append(txs, t)
		report.Parsed++
	}

	if report.allFailed() {
		return nil, report, &core.ConfigError{
			Field:      "data_sources." + src.Name,
			Value:      src.Path,
			Msg:        fmt.Sprintf("all %d rows failed to parse", report.Failed),
			Suggestion: "the format string probably does not match this file; run `ledger inspect` against it",
		}
	}
	return txs, report, nil
}

// ReadAll reads every source concurrently and merges the results in source
// declaration order, row order within each source. The merge order never
// affects classification; it only keeps output deterministic.
func ReadAll(ctx context.Context, sources []Source) ([]core.Transaction, []*SourceReport, error) {
	perSource := make([][]core.Transaction, len(sources))
	reports := make([]*SourceReport, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			txs, report, err := ReadSource(ctx, src)
			if err != nil {
				return err
			}
			perSource[i] = txs
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var all []core.Transaction
	for _, txs := range perSource {
		all = append(all, txs...)
	}
	return all, reports, nil
}
