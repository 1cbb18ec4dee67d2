package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldIntent     = "intent"
	FieldSource     = "source"
	FieldRows       = "rows"
	FieldDocumentID = "document_id"
)

// Components
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentStorage   = "storage"
	ComponentImport    = "import"
	ComponentChat      = "chat"
	ComponentAnalytics = "analytics"
	ComponentCache     = "cache"
	ComponentJobs      = "jobs"
	ComponentEvents    = "events"
)

// Operations
const (
	OpMigrate = "migrate"
	OpImport  = "import"
	OpQuery   = "query"
	OpExport  = "export"
	OpRefresh = "refresh"
	OpSweep   = "sweep"
)

// Fields is a small builder for structured log attributes.
type Fields map[string]any

// NewFields creates an empty field set.
func NewFields() Fields {
	return make(Fields)
}

func (f Fields) WithRequestID(id string) Fields {
	f[FieldRequestID] = id
	return f
}

func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f Fields) WithOperation(op string) Fields {
	f[FieldOperation] = op
	return f
}

// WithHTTP adds request and response fields for an access log line.
func (f Fields) WithHTTP(method, path string, status int, durationMs int64) Fields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = status
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts the fields to slog key/value pairs.
func (f Fields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
