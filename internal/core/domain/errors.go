// Package domain defines the core domain models for amrsnap.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a reconstruction error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "AMR-SNAP-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with fmt.Sprintf formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Catalog Errors (SNAP, HDR)
// ============================================================================

var (
	// ErrIndexOutOfRange indicates a snapshot index beyond the discovered count.
	ErrIndexOutOfRange = NewDomainError("AMR-SNAP-4040", "snapshot index out of range")

	// ErrHeaderCorrupt indicates a probe file without a usable header dataset.
	ErrHeaderCorrupt = NewDomainError("AMR-HDR-4220", "snapshot header corrupt")
)

// ============================================================================
// Shard & Payload Errors (SHRD, PAY)
// ============================================================================

var (
	// ErrShardMissing indicates a rank shard absent although the header's
	// rank count says it should exist.
	ErrShardMissing = NewDomainError("AMR-SHRD-4041", "rank shard missing")

	// ErrPayloadShapeMismatch indicates a payload whose element count or
	// bounds disagree with its bounding box or the target array.
	ErrPayloadShapeMismatch = NewDomainError("AMR-PAY-4221", "payload shape mismatch")

	// ErrPayloadMissing indicates a box or record dataset that is not present.
	ErrPayloadMissing = NewDomainError("AMR-PAY-4042", "payload dataset missing")
)

// ============================================================================
// System & Argument Errors (IO, ARG)
// ============================================================================

var (
	// ErrFileOpenFailure indicates an I/O-level failure opening or reading a file.
	ErrFileOpenFailure = NewDomainError("AMR-IO-5000", "file open failure")

	// ErrInvalidArgument indicates a malformed query (fields, direction, level).
	ErrInvalidArgument = NewDomainError("AMR-ARG-4000", "invalid argument")

	// ErrUnknownKind indicates an unrecognised snapshot kind name.
	ErrUnknownKind = NewDomainError("AMR-ARG-4001", "unknown snapshot kind")
)
