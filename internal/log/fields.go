package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldFiscalYear    = "fiscal_year"
	FieldAccountID     = "account_id"
	FieldAccountNumber = "account_number"
	FieldFund          = "fund"
	FieldEnterprise    = "enterprise"
	FieldCount         = "count"
	FieldDuration      = "duration_ms"
	FieldCacheKey      = "cache_key"
	FieldCacheHit      = "cache_hit"
	FieldFilePath      = "file_path"
	FieldProgress      = "progress"
	FieldStage         = "stage"
	FieldRunID         = "run_id"
	FieldMessageKind   = "message_kind"
	FieldMessageID     = "message_id"
	FieldSheetsRef     = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentBudget    = "budget"
	ComponentImport    = "import"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentEvents    = "events"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentBackend   = "backend"
	ComponentScheduler = "scheduler"
	ComponentHTTP      = "http"
)

// Operations defines standard operation names
const (
	OpRefresh  = "refresh"
	OpUpdate   = "update"
	OpImport   = "import"
	OpPublish  = "publish"
	OpValidate = "validate"
	OpParse    = "parse"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithAccount adds budget account fields
func (f LogFields) WithAccount(id int64, number string, fiscalYear int) LogFields {
	f[FieldAccountID] = id
	f[FieldAccountNumber] = number
	f[FieldFiscalYear] = fiscalYear
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
