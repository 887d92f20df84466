package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeUnsupportedAlgorithm = "UNSUPPORTED_ALGORITHM"
	ErrCodeInvalidParameter     = "INVALID_PARAMETER"
	ErrCodeDetachFailure        = "DETACH_FAILURE"
	ErrCodeSinkUnavailable      = "SINK_UNAVAILABLE"
	ErrCodeLinkCycle            = "LINK_CYCLE"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeStore                = "STORE_ERROR"
	ErrCodeVault                = "VAULT_ERROR"
)

// KeyfobError is the structured error type for all keyfob operations.
type KeyfobError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Key     string         `json:"key,omitempty"`
	Cause   error          `json:"-"`
}

func (e *KeyfobError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("[%s] key %s: %s", e.Code, e.Key, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *KeyfobError) Unwrap() error {
	return e.Cause
}

// NewError creates a new KeyfobError.
func NewError(code, message string) *KeyfobError {
	return &KeyfobError{Code: code, Message: message}
}

// NewErrorf creates a new KeyfobError with a formatted message.
func NewErrorf(code, format string, args ...any) *KeyfobError {
	return &KeyfobError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithKey attaches a lookup key to the error.
func (e *KeyfobError) WithKey(key string) *KeyfobError {
	e.Key = key
	return e
}

// WithCause attaches an underlying cause.
func (e *KeyfobError) WithCause(err error) *KeyfobError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *KeyfobError) WithDetails(details map[string]any) *KeyfobError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first *KeyfobError in err's chain, "" otherwise.
func CodeOf(err error) string {
	var ke *KeyfobError
	if errors.As(err, &ke) {
		return ke.Code
	}
	return ""
}

// IsNotFound reports whether err carries the NOT_FOUND code.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}
