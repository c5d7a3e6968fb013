package errors

import (
	stderrors "errors"
	"fmt"
)

// GraphIndexError is the structured error type for graphindex.
// It carries what the CLI needs to explain a failure: a stable code, a
// category, and an optional suggestion.
type GraphIndexError struct {
	// Code is the unique error code (e.g., "ERR_302_BACKEND_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *GraphIndexError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *GraphIndexError) Unwrap() error {
	return e.Cause
}

// Is matches another GraphIndexError by code.
func (e *GraphIndexError) Is(target error) bool {
	if t, ok := target.(*GraphIndexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail and returns the error for chaining.
func (e *GraphIndexError) WithDetail(key, value string) *GraphIndexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets the user hint and returns the error for chaining.
func (e *GraphIndexError) WithSuggestion(suggestion string) *GraphIndexError {
	e.Suggestion = suggestion
	return e
}

// New creates a GraphIndexError. Category, severity and retryability derive from the code.
func New(code string, message string, cause error) *GraphIndexError {
	return &GraphIndexError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a GraphIndexError from err, using its message. Wrap(code, nil) is nil.
func Wrap(code string, err error) *GraphIndexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration error.
func ConfigError(message string, cause error) *GraphIndexError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// BackendError creates a retryable search-backend error.
func BackendError(message string, cause error) *GraphIndexError {
	return New(ErrCodeBackendUnavailable, message, cause)
}

// GraphError creates a retryable graph-database error.
func GraphError(message string, cause error) *GraphIndexError {
	return New(ErrCodeGraphUnavailable, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *GraphIndexError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *GraphIndexError {
	return New(ErrCodeInternal, message, cause)
}

// As finds the first GraphIndexError in err's chain.
func As(err error) (*GraphIndexError, bool) {
	var ge *GraphIndexError
	if stderrors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// IsRetryable reports whether err's chain contains a retryable GraphIndexError.
func IsRetryable(err error) bool {
	ge, ok := As(err)
	return ok && ge.Retryable
}

// IsFatal reports whether err's chain contains a fatal GraphIndexError.
func IsFatal(err error) bool {
	ge, ok := As(err)
	return ok && ge.Severity == SeverityFatal
}

// GetCode returns the code of the first GraphIndexError in err's chain, or "".
func GetCode(err error) string {
	if ge, ok := As(err); ok {
		return ge.Code
	}
	return ""
}
