package errors

import (
	"errors"
	"fmt"
)

// VaultError is the structured error type for vaultsearch.
// It carries a code, a category derived from the code, and optional
// user-facing context.
type VaultError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *VaultError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *VaultError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a VaultError with the same code.
func (e *VaultError) Is(target error) bool {
	if t, ok := target.(*VaultError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *VaultError) WithDetail(key, value string) *VaultError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *VaultError) WithSuggestion(suggestion string) *VaultError {
	e.Suggestion = suggestion
	return e
}

// New creates a new VaultError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *VaultError {
	return &VaultError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a VaultError from an existing error.
// The error's message becomes the VaultError message.
func Wrap(code string, err error) *VaultError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinel values for errors.Is comparisons. Only the code is compared.
var (
	ErrIndexNotReady      = New(ErrCodeIndexNotReady, "index not ready", nil)
	ErrMalformedSnapshot  = New(ErrCodeMalformedSnapshot, "malformed snapshot", nil)
	ErrUnsupportedContent = New(ErrCodeUnsupportedContent, "unsupported content", nil)
	ErrReindexSuperseded  = New(ErrCodeReindexSuperseded, "reindex superseded by a newer run", nil)
	ErrFileNotFound       = New(ErrCodeFileNotFound, "file not found", nil)
)

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *VaultError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ReadError creates a retryable file read error.
func ReadError(path string, cause error) *VaultError {
	return New(ErrCodeFileReadFailed, "failed to read "+path, cause).WithDetail("path", path)
}

// SnapshotError creates a malformed snapshot error.
func SnapshotError(message string, cause error) *VaultError {
	return New(ErrCodeMalformedSnapshot, message, cause).
		WithSuggestion("Run 'vaultsearch index --force' to rebuild the index")
}

// UnsupportedContent creates an error for binary or non-plain-text files.
func UnsupportedContent(path string) *VaultError {
	return New(ErrCodeUnsupportedContent, "not a plain-text file: "+path, nil).WithDetail("path", path)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *VaultError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *VaultError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if any VaultError in the chain has the Retryable flag set.
func IsRetryable(err error) bool {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a VaultError.
// Returns empty string if not a VaultError.
func GetCode(err error) string {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// GetCategory extracts the category from a VaultError.
func GetCategory(err error) Category {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Category
	}
	return ""
}
