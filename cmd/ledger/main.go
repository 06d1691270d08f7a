package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/classify"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/core"
	apphttp "ledger/internal/http"
	"ledger/internal/ingest"
	applog "ledger/internal/log"
	"ledger/internal/render"
	"ledger/internal/report"
	"ledger/internal/rules"
)

const usage = `Usage: ledger <command> [flags]

Commands:
  run       classify transactions and print a report (default)
  serve     start the interactive report server
  discover  suggest rules for unmatched transactions
  inspect   guess the format of a CSV export

Run 'ledger <command> -h' for command flags.`

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	args := os.Args[1:]
	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runCmd(args, logger)
	case "serve":
		err = serveCmd(args, logger)
	case "discover":
		err = discoverCmd(args, logger)
	case "inspect":
		err = inspectCmd(args)
	case "help", "-h", "--help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", applog.FieldError, err)
		os.Exit(1)
	}
}

// buildDataset runs the full pipeline: read every source, match rules,
// classify merchants into sections.
func buildDataset(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*core.Dataset, render.Meta, error) {
	sources, err := cfg.Sources()
	if err != nil {
		return nil, render.Meta{}, err
	}

	matcher, err := rules.Load(cfg.RulesPath())
	if err != nil {
		return nil, render.Meta{}, err
	}
	logger.Info("rules loaded", applog.FieldRules, len(matcher.Rules()))

	txns, reports, err := ingest.ReadAll(ctx, sources)
	if err != nil {
		return nil, render.Meta{}, err
	}
	var names []string
	for i, rep := range reports {
		names = append(names, sources[i].Name)
		for _, rowErr := range rep.Errors {
			logger.Warn("row skipped", applog.FieldSource, rep.Source, applog.FieldError, rowErr)
		}
		logger.Info("source read",
			applog.FieldSource, rep.Source,
			applog.FieldRows, rep.Rows,
			applog.FieldParsed, rep.Parsed,
			applog.FieldSkipped, rep.Skipped,
			applog.FieldFailed, rep.Failed)
	}

	merchants := rules.BuildMerchants(txns, matcher)
	window := classify.Window(merchants)
	classifier := classify.New(cfg.Classification, cfg.HomeLocations)
	sections := classifier.Classify(merchants, window)
	logger.Info("classified", applog.FieldMerchants, len(merchants), "window_months", window)

	ds := &core.Dataset{
		Sections:      sections,
		Year:          cfg.Year,
		NumMonths:     window,
		Sources:       names,
		HomeLocations: cfg.HomeLocations,
	}
	meta := render.Meta{
		Year:           cfg.Year,
		NumMonths:      window,
		Sources:        names,
		HomeLocations:  cfg.HomeLocations,
		CurrencyFormat: cfg.CurrencyFormat,
	}
	return ds, meta, nil
}

func runCmd(args []string, logger *applog.Logger) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "settings.yaml", "settings file")
	format := fs.String("format", "summary", "output format: summary, markdown or json")
	verbose := fs.Bool("v", false, "show classification decisions")
	veryVerbose := fs.Bool("vv", false, "show full classification reasoning")
	only := fs.String("only", "", "comma-separated sections to show")
	category := fs.String("category", "", "include filter on category")
	merchant := fs.String("merchant", "", "include filter on merchant id or name")
	tags := fs.String("tags", "", "comma-separated include filters on tags")
	month := fs.String("month", "", "include filter on month (YYYY-MM or YYYY-MM..YYYY-MM)")
	location := fs.String("location", "", "include filter on location code")
	filtersArg := fs.String("filters", "", "encoded filter set, as produced by the web report URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	verbosity := render.VerbosityQuiet
	if *verbose {
		verbosity = render.VerbosityTrace
	}
	if *veryVerbose {
		verbosity = render.VerbosityFull
	}

	filters, err := collectFilters(*filtersArg, *category, *merchant, *tags, *month, *location, logger)
	if err != nil {
		return err
	}

	sections, invalid := render.ParseSections(*only)
	for _, name := range invalid {
		logger.Warn("unknown section ignored", applog.FieldSection, name)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	ds, meta, err := buildDataset(context.Background(), cfg, logger)
	if err != nil {
		return err
	}

	view := report.Apply(ds, filters)

	switch *format {
	case "json":
		out, err := render.JSON(view, meta, sections, verbosity)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	case "markdown":
		fmt.Print(render.Markdown(view, meta, sections, verbosity))
	case "summary":
		fmt.Print(render.Summary(view, meta, sections))
	default:
		return &core.ConfigError{Field: "format", Value: *format,
			Msg: "must be summary, markdown or json"}
	}
	return nil
}

// collectFilters merges the named convenience flags with an encoded set.
// Terms that fail to decode are dropped with a warning, matching the server.
func collectFilters(encoded, category, merchant, tags, month, location string, logger *applog.Logger) ([]report.Filter, error) {
	filters, rejects := report.DecodeFilters(encoded)
	for _, rej := range rejects {
		logger.Warn("dropped filter term", applog.FieldError, rej)
	}

	add := func(ft report.FilterType, text string) error {
		if text == "" {
			return nil
		}
		f, err := report.NewFilter(ft, text, report.Include)
		if err != nil {
			return err
		}
		filters = append(filters, f)
		return nil
	}

	if err := add(report.FilterCategory, category); err != nil {
		return nil, err
	}
	if err := add(report.FilterMerchant, merchant); err != nil {
		return nil, err
	}
	if err := add(report.FilterMonth, month); err != nil {
		return nil, err
	}
	if err := add(report.FilterLocation, location); err != nil {
		return nil, err
	}
	for _, tag := range strings.Split(tags, ",") {
		if err := add(report.FilterTag, strings.TrimSpace(tag)); err != nil {
			return nil, err
		}
	}
	return filters, nil
}

func serveCmd(args []string, logger *applog.Logger) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "settings.yaml", "settings file")
	addr := fs.String("addr", "", "listen address (overrides settings)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	listen := cfg.Addr
	if *addr != "" {
		listen = *addr
	}
	if listen == "" {
		listen = ":8080"
	}

	ds, meta, err := buildDataset(context.Background(), cfg, logger)
	if err != nil {
		return err
	}

	srv := apphttp.NewServer(listen, ds, meta, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("starting report server", "addr", listen, applog.FieldYear, cfg.Year)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("server stopped")
	return nil
}

// discoverCmd lists unmatched descriptions by total spend and prints a
// candidate rule line for each, ready to paste into the rules file.
func discoverCmd(args []string, logger *applog.Logger) error {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	configPath := fs.String("config", "settings.yaml", "settings file")
	top := fs.Int("top", 20, "number of suggestions to print")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	ds, _, err := buildDataset(context.Background(), cfg, logger)
	if err != nil {
		return err
	}

	unknown, ok := ds.Sections[core.SectionUnknown][core.UnknownMerchant]
	if !ok || len(unknown.Transactions) == 0 {
		fmt.Println("No unmatched transactions.")
		return nil
	}

	type candidate struct {
		raw   string
		total decimal.Decimal
		count int
	}
	byDesc := map[string]*candidate{}
	for _, t := range unknown.Transactions {
		c, ok := byDesc[t.RawDescription]
		if !ok {
			c = &candidate{raw: t.RawDescription}
			byDesc[t.RawDescription] = c
		}
		c.total = c.total.Add(t.Amount)
		c.count++
	}

	candidates := make([]*candidate, 0, len(byDesc))
	for _, c := range byDesc {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].total.Equal(candidates[j].total) {
			return candidates[i].total.GreaterThan(candidates[j].total)
		}
		return candidates[i].raw < candidates[j].raw
	})
	if len(candidates) > *top {
		candidates = candidates[:*top]
	}

	fmt.Printf("%d unmatched descriptions. Suggested rules:\n\n", len(byDesc))
	for _, c := range candidates {
		fmt.Printf("# %s  (%d txns, total %s)\n", c.raw, c.count, c.total.StringFixed(2))
		fmt.Printf("%s,%s,,,\n\n", rules.SuggestPattern(c.raw), rules.SuggestName(c.raw))
	}
	return nil
}

// inspectCmd reads a CSV header and reports which columns look like date,
// description, amount and location, plus the format string to configure.
func inspectCmd(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return &core.ConfigError{Field: "inspect", Msg: "expects exactly one CSV file argument"}
	}
	path := fs.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		return &core.ConfigError{Field: "inspect", Value: path, Msg: "cannot open file"}
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &core.ConfigError{Field: "inspect", Value: path, Msg: "file is empty"}
		}
		return err
	}

	det, err := ingest.DetectFormat(header)
	if err != nil {
		return err
	}

	fmt.Printf("Columns (%d):\n", det.Columns)
	for i, h := range header {
		role := ""
		switch i {
		case det.DateColumn:
			role = "  <- date"
		case det.DescriptionColumn:
			role = "  <- description"
		case det.AmountColumn:
			role = "  <- amount"
		case det.LocationColumn:
			role = "  <- location"
		}
		fmt.Printf("  %2d: %s%s\n", i, h, role)
	}
	fmt.Printf("\nSuggested source entry:\n\n")
	fmt.Printf("  - name: %s\n", strings.TrimSuffix(strings.ToLower(sanitizeName(path)), ".csv"))
	fmt.Printf("    file: %s\n", path)
	fmt.Printf("    format: \"%s\"\n", det.Format)
	fmt.Printf("    skip_header: true\n")
	return nil
}

func sanitizeName(path string) string {
	base := path
	if idx := strings.LastIndexAny(base, "/\\"); idx >= 0 {
		base = base[idx+1:]
	}
	return base
}
