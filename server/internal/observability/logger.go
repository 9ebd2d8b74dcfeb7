package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// LogFieldOpID is the field name for the operation ID.
	LogFieldOpID = "op_id"
	// LogFieldOperation is the field name for the operation kind.
	LogFieldOperation = "operation"
	// LogFieldSemester is the field name for the semester.
	LogFieldSemester = "semester"
	// LogFieldSubjectID is the field name for the subject ID.
	LogFieldSubjectID = "subject_id"
	// LogFieldDate is the field name for the calendar date.
	LogFieldDate = "date"
	// LogFieldStatus is the field name for the attendance status.
	LogFieldStatus = "status"
	// LogFieldDuration is the field name for duration in milliseconds.
	LogFieldDuration = "duration_ms"
	// LogFieldErrorCode is the field name for error code.
	LogFieldErrorCode = "error_code"
)

// OperationContext represents one ledger mutation with structured logging.
type OperationContext struct {
	OpID      string
	Operation string
	Semester  int
	SubjectID string
	Date      string
	StartTime time.Time
	Logger    *slog.Logger
}

// NewOperationContext creates an operation context with a generated ID.
// A nil logger falls back to slog.Default.
func NewOperationContext(logger *slog.Logger, operation string, semester int, subjectID, date string) *OperationContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &OperationContext{
		OpID:      uuid.New().String(),
		Operation: operation,
		Semester:  semester,
		SubjectID: subjectID,
		Date:      date,
		StartTime: time.Now(),
		Logger:    logger,
	}
}

// WithFields returns a logger carrying the operation fields and attrs.
func (o *OperationContext) WithFields(attrs ...slog.Attr) *slog.Logger {
	combined := o.attrs(attrs...)
	args := make([]any, 0, len(combined))
	for _, attr := range combined {
		args = append(args, attr)
	}
	return o.Logger.With(args...)
}

// Info logs an info message.
func (o *OperationContext) Info(msg string, attrs ...slog.Attr) {
	o.Logger.LogAttrs(context.Background(), slog.LevelInfo, msg, o.attrs(attrs...)...)
}

// Debug logs a debug message.
func (o *OperationContext) Debug(msg string, attrs ...slog.Attr) {
	o.Logger.LogAttrs(context.Background(), slog.LevelDebug, msg, o.attrs(attrs...)...)
}

// Warn logs a warning message.
func (o *OperationContext) Warn(msg string, attrs ...slog.Attr) {
	o.Logger.LogAttrs(context.Background(), slog.LevelWarn, msg, o.attrs(attrs...)...)
}

// Error logs an error message with the error.
func (o *OperationContext) Error(msg string, err error, attrs ...slog.Attr) {
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	o.Logger.LogAttrs(context.Background(), slog.LevelError, msg, o.attrs(attrs...)...)
}

// Duration returns the elapsed time since the operation started.
func (o *OperationContext) Duration() time.Duration {
	return time.Since(o.StartTime)
}

// DurationAttr returns the elapsed time as a log attribute.
func (o *OperationContext) DurationAttr() slog.Attr {
	return slog.Int64(LogFieldDuration, o.Duration().Milliseconds())
}

func (o *OperationContext) attrs(extra ...slog.Attr) []slog.Attr {
	base := []slog.Attr{
		slog.String(LogFieldOpID, o.OpID),
		slog.String(LogFieldOperation, o.Operation),
		slog.Int(LogFieldSemester, o.Semester),
	}
	if o.SubjectID != "" {
		base = append(base, slog.String(LogFieldSubjectID, o.SubjectID))
	}
	if o.Date != "" {
		base = append(base, slog.String(LogFieldDate, o.Date))
	}
	return append(base, extra...)
}

type ctxKey struct{}

// WithOperationContext adds the operation context to the context.
func WithOperationContext(ctx context.Context, op *OperationContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, op)
}

// FromContext extracts the operation context from the context.
func FromContext(ctx context.Context) (*OperationContext, bool) {
	op, ok := ctx.Value(ctxKey{}).(*OperationContext)
	return op, ok
}
