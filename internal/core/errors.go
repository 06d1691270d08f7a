package core

import "fmt"

// ConfigError is a fatal configuration problem. It always carries the
// offending value and an actionable suggestion so the CLI can tell the user
// what to fix instead of just failing.
type ConfigError struct {
	Field      string
	Value      string
	Msg        string
	Suggestion string
}

func (e *ConfigError) Error() string {
	s := e.Field + ": " + e.Msg
	if e.Value != "" {
		s += fmt.Sprintf(" (got %q)", e.Value)
	}
	if e.Suggestion != "" {
		s += "; " + e.Suggestion
	}
	return s
}

// RowError is a recoverable per-row parse failure. Sources count these and
// keep going; a source where every row fails is promoted to a ConfigError.
type RowError struct {
	Row    int
	Column int
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d, column %d: %v", e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
