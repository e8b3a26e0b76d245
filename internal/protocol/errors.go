package protocol

import (
	"errors"
	"fmt"

	"github.com/trailmark/trailmark/internal/entity"
)

// Error represents a failure of a create, update, or verify operation.
//
// Pipeline errors include:
//   - Validation: input payload cannot be normalized
//   - Hash mismatch: ledger confirmed a digest other than the computed one
//   - Integrity violation: a pre-update or explicit verify flagged the record
//   - Ledger call failed: anchoring or fetch did not complete
//
// Error includes structured fields for diagnostics and recovery.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Kind identifies the affected entity kind.
	Kind entity.Kind

	// EntityID identifies the affected entity.
	EntityID string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes pipeline errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates the input could not be normalized.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeHashMismatch indicates the ledger confirmed a digest other
	// than the locally computed one. The record was not persisted.
	ErrCodeHashMismatch ErrorCode = "HASH_MISMATCH"

	// ErrCodeIntegrityViolation indicates verification classified the
	// record as anything other than valid.
	ErrCodeIntegrityViolation ErrorCode = "INTEGRITY_VIOLATION"

	// ErrCodeLedgerCallFailed indicates an anchoring or fetch call did
	// not complete.
	ErrCodeLedgerCallFailed ErrorCode = "LEDGER_CALL_FAILED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Kind != "" && e.EntityID != "" {
		return fmt.Sprintf("%s: %s (kind=%s, id=%s)", e.Code, e.Message, e.Kind, e.EntityID)
	}
	if e.Kind != "" {
		return fmt.Sprintf("%s: %s (kind=%s)", e.Code, e.Message, e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsValidationError returns true if the error is a validation error.
// Uses errors.As to handle wrapped errors.
func IsValidationError(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == ErrCodeValidation
}

// IsHashMismatch returns true if the error is a confirmed-digest mismatch.
// Uses errors.As to handle wrapped errors.
func IsHashMismatch(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == ErrCodeHashMismatch
}

// IsIntegrityViolation returns true if the error is an integrity violation.
// Uses errors.As to handle wrapped errors.
func IsIntegrityViolation(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == ErrCodeIntegrityViolation
}

// IsLedgerFailure returns true if the error is a failed ledger call.
// Uses errors.As to handle wrapped errors.
func IsLedgerFailure(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == ErrCodeLedgerCallFailed
}

// NewValidationError creates an Error for a payload that failed to
// normalize.
func NewValidationError(kind entity.Kind, id string, cause error) *Error {
	return &Error{
		Code:     ErrCodeValidation,
		Message:  "input payload failed normalization",
		Kind:     kind,
		EntityID: id,
		Err:      cause,
	}
}

// NewHashMismatchError creates an Error for a ledger confirmation that
// disagrees with the computed digest.
func NewHashMismatchError(kind entity.Kind, id string, computed, confirmed string) *Error {
	return &Error{
		Code:     ErrCodeHashMismatch,
		Message:  fmt.Sprintf("ledger confirmed %s, computed %s", confirmed, computed),
		Kind:     kind,
		EntityID: id,
	}
}

// NewIntegrityViolationError creates an Error for a record that failed
// verification.
func NewIntegrityViolationError(kind entity.Kind, id string, label string) *Error {
	return &Error{
		Code:     ErrCodeIntegrityViolation,
		Message:  fmt.Sprintf("record classified as %s", label),
		Kind:     kind,
		EntityID: id,
	}
}

// NewLedgerFailureError creates an Error for an anchoring or fetch call
// that did not complete.
func NewLedgerFailureError(kind entity.Kind, id string, cause error) *Error {
	return &Error{
		Code:     ErrCodeLedgerCallFailed,
		Message:  "ledger call failed",
		Kind:     kind,
		EntityID: id,
		Err:      cause,
	}
}
