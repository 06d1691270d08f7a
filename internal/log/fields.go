package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldSource     = "source"
	FieldRows       = "rows"
	FieldParsed     = "parsed"
	FieldSkipped    = "skipped"
	FieldFailed     = "failed"
	FieldMerchants  = "merchants"
	FieldRules      = "rules"
	FieldSection    = "section"
	FieldFilters    = "filters"
	FieldYear       = "year"
)

// Components defines standard component names
const (
	ComponentApp  = "app"
	ComponentHTTP = "http"
)
