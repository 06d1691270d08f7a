// Package config loads settings.yaml and resolves it into runnable pieces:
// compiled source formats, the rules file path and the classification
// thresholds. Validation collects every problem before failing so one run
// reports the whole broken config, not just the first field.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"ledger/internal/classify"
	"ledger/internal/core"
	"ledger/internal/ingest"
)

// Config is the parsed settings.yaml.
type Config struct {
	Year           int                 `yaml:"year"`
	HomeLocations  []string            `yaml:"home_locations"`
	CurrencyFormat string              `yaml:"currency_format"`
	RulesFile      string              `yaml:"rules_file"`
	Addr           string              `yaml:"addr"`
	Classification classify.Thresholds `yaml:"classification"`
	DataSources    []SourceConfig      `yaml:"data_sources"`

	// baseDir anchors relative paths to the settings file's directory.
	baseDir string
}

// SourceConfig is one data_sources entry. Type names either a built-in
// export shape (amex, boa), "sqlite", or is left empty when an explicit
// format string is given.
type SourceConfig struct {
	Name             string        `yaml:"name"`
	File             string        `yaml:"file"`
	Type             string        `yaml:"type"`
	Format           string        `yaml:"format"`
	DecimalSeparator string        `yaml:"decimal_separator"`
	Columns          ColumnsConfig `yaml:"columns"`
	SkipHeader       *bool         `yaml:"skip_header"`

	// SQLite sources.
	Table         string            `yaml:"table"`
	SQLiteColumns map[string]string `yaml:"sqlite_columns"`
	DateFormat    string            `yaml:"date_format"`
}

// ColumnsConfig holds the optional description template that combines named
// captures into the final description.
type ColumnsConfig struct {
	Description string `yaml:"description"`
}

// Load reads, overrides and validates a settings file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.ConfigError{
			Field:      "settings",
			Value:      path,
			Msg:        "cannot read settings file",
			Suggestion: "pass -config with the path to settings.yaml",
		}
	}

	cfg := &Config{
		Year:           2025,
		CurrencyFormat: "${amount}",
		Classification: classify.DefaultThresholds(),
		baseDir:        filepath.Dir(path),
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, &core.ConfigError{
			Field:      "settings",
			Value:      path,
			Msg:        fmt.Sprintf("invalid yaml: %v", err),
			Suggestion: "check indentation and quoting in settings.yaml",
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets LEDGER_* variables override the file, which keeps one
// settings.yaml usable across machines.
func (c *Config) applyEnv() {
	if v := os.Getenv("LEDGER_YEAR"); v != "" {
		if year, err := strconv.Atoi(v); err == nil {
			c.Year = year
		}
	}
	if v := os.Getenv("LEDGER_RULES_FILE"); v != "" {
		c.RulesFile = v
	}
	if v := os.Getenv("LEDGER_CURRENCY_FORMAT"); v != "" {
		c.CurrencyFormat = v
	}
	if v := os.Getenv("LEDGER_HOME_LOCATIONS"); v != "" {
		c.HomeLocations = nil
		for _, loc := range strings.Split(v, ",") {
			if loc = strings.TrimSpace(loc); loc != "" {
				c.HomeLocations = append(c.HomeLocations, strings.ToUpper(loc))
			}
		}
	}
	if v := os.Getenv("LEDGER_ADDR"); v != "" {
		c.Addr = v
	}
}

// Validate checks everything that can be checked without touching source
// files and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Year < 1970 || c.Year > 2200 {
		problems = append(problems, fmt.Sprintf("year %d is out of range", c.Year))
	}
	if c.RulesFile == "" {
		problems = append(problems, "rules_file is required")
	}
	if !strings.Contains(c.CurrencyFormat, "{amount}") {
		problems = append(problems, fmt.Sprintf("currency_format %q must contain {amount}", c.CurrencyFormat))
	}
	if len(c.DataSources) == 0 {
		problems = append(problems, "at least one data_sources entry is required")
	}
	if err := c.Classification.Validate(); err != nil {
		problems = append(problems, err.Error())
	}

	seen := map[string]bool{}
	for i, src := range c.DataSources {
		label := src.Name
		if label == "" {
			label = fmt.Sprintf("data_sources[%d]", i)
			problems = append(problems, fmt.Sprintf("%s: name is required", label))
		}
		if seen[src.Name] && src.Name != "" {
			problems = append(problems, fmt.Sprintf("%s: duplicate source name", label))
		}
		seen[src.Name] = true
		if src.File == "" {
			problems = append(problems, fmt.Sprintf("%s: file is required", label))
		}
		problems = append(problems, src.validate(label)...)
	}

	if len(problems) > 0 {
		return &core.ConfigError{
			Field:      "settings",
			Msg:        strings.Join(problems, "; "),
			Suggestion: "fix settings.yaml and run again",
		}
	}
	return nil
}

func (s *SourceConfig) validate(label string) []string {
	var problems []string
	switch {
	case s.Type == ingest.KindSQLite:
		if s.Format != "" {
			problems = append(problems, fmt.Sprintf("%s: sqlite sources take table/sqlite_columns, not a format string", label))
		}
		if s.Table == "" {
			problems = append(problems, fmt.Sprintf("%s: table is required for sqlite sources", label))
		}
		for _, col := range []string{"date", "description", "amount"} {
			if s.SQLiteColumns[col] == "" {
				problems = append(problems, fmt.Sprintf("%s: sqlite_columns.%s is required", label, col))
			}
		}
	case s.Type == "" && s.Format == "":
		problems = append(problems, fmt.Sprintf("%s: either type or format is required", label))
	case s.Type != "" && s.Format != "":
		problems = append(problems, fmt.Sprintf("%s: type and format are mutually exclusive", label))
	}
	if sep := s.DecimalSeparator; sep != "" && sep != "." && sep != "," {
		problems = append(problems, fmt.Sprintf("%s: decimal_separator must be \".\" or \",\"", label))
	}
	return problems
}

// Sources compiles every data_sources entry into a runnable ingest source.
func (c *Config) Sources() ([]ingest.Source, error) {
	sources := make([]ingest.Source, 0, len(c.DataSources))
	for _, sc := range c.DataSources {
		src, err := c.resolveSource(sc)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func (c *Config) resolveSource(sc SourceConfig) (ingest.Source, error) {
	src := ingest.Source{
		Name:      sc.Name,
		Path:      c.resolvePath(sc.File),
		Kind:      ingest.KindCSV,
		Separator: core.SeparatorDot,
	}
	if sc.DecimalSeparator == string(core.SeparatorComma) {
		src.Separator = core.SeparatorComma
	}

	if sc.Type == ingest.KindSQLite {
		src.Kind = ingest.KindSQLite
		src.Table = sc.Table
		src.DateLayout = sc.DateFormat
		src.Columns = ingest.SQLiteColumns{
			Date:        sc.SQLiteColumns["date"],
			Description: sc.SQLiteColumns["description"],
			Amount:      sc.SQLiteColumns["amount"],
			Location:    sc.SQLiteColumns["location"],
		}
		return src, nil
	}

	nameOrFormat := sc.Format
	if sc.Type != "" {
		nameOrFormat = sc.Type
	}
	format, skipHeader, err := ingest.ResolveFormat(nameOrFormat, sc.Columns.Description)
	if err != nil {
		return ingest.Source{}, fmt.Errorf("data_sources.%s: %w", sc.Name, err)
	}
	src.Format = format
	src.SkipHeader = skipHeader
	if sc.SkipHeader != nil {
		src.SkipHeader = *sc.SkipHeader
	}
	return src, nil
}

// RulesPath returns the rules file path resolved against the settings
// file's directory.
func (c *Config) RulesPath() string { return c.resolvePath(c.RulesFile) }

func (c *Config) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.baseDir, p)
}
