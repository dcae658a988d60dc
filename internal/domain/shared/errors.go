// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")
	ErrUnknownVariant  = errors.New("unknown variant tag")
	ErrVariantMismatch = errors.New("field does not belong to variant")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrTerminalState   = errors.New("entity is in a terminal state")

	// Concurrency errors
	ErrStaleVersion = errors.New("stale version")

	// External service errors
	ErrNetwork            = errors.New("network error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "goal", "cycle", "competency"
	Op      string // Operation that failed, e.g., "Patch", "AddEvidence"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Goal domain errors
var (
	ErrGoalNotFound       = NewDomainError("goal", "Find", ErrNotFound, "goal not found")
	ErrInvalidGoalVariant = NewDomainError("goal", "Validate", ErrUnknownVariant, "unrecognized goal type tag")
	ErrGoalPatchMismatch  = NewDomainError("goal", "Patch", ErrVariantMismatch, "patch fields do not match goal variant")
)

// Cycle domain errors
var (
	ErrCycleNotFound    = NewDomainError("cycle", "Find", ErrNotFound, "cycle not found")
	ErrNoActiveCycle    = NewDomainError("cycle", "Current", ErrNotFound, "no active cycle")
	ErrCycleArchived    = NewDomainError("cycle", "Mutate", ErrTerminalState, "cycle is archived")
	ErrCycleBadStatus   = NewDomainError("cycle", "Transition", ErrStateTransition, "invalid cycle status transition")
	ErrCycleBadInterval = NewDomainError("cycle", "Validate", ErrInvalidInput, "cycle end date must be after start date")
)

// Competency domain errors
var (
	ErrCompetencyNotFound   = NewDomainError("competency", "Find", ErrNotFound, "competency not found")
	ErrInvalidEvidenceType  = NewDomainError("competency", "Validate", ErrUnknownVariant, "unrecognized evidence type")
	ErrInvalidLevel         = NewDomainError("competency", "Validate", ErrValueOutOfRange, "level must be between 1 and 5")
	ErrTargetBelowCurrent   = NewDomainError("competency", "Validate", ErrInvalidInput, "target level below current level")
	ErrProgressionComplete  = NewDomainError("competency", "AddEvidence", ErrTerminalState, "competency progression already complete")
	ErrInvalidEvidenceTitle = NewDomainError("competency", "Validate", ErrEmptyValue, "evidence title is required")
)

// Activity domain errors
var (
	ErrActivityNotFound       = NewDomainError("activity", "Find", ErrNotFound, "activity not found")
	ErrInvalidActivityVariant = NewDomainError("activity", "Validate", ErrUnknownVariant, "unrecognized activity type tag")
)

// XP domain errors
var (
	ErrInvalidXPAmount   = NewDomainError("xp", "Award", ErrNegativeValue, "xp amount must be positive")
	ErrMissingSourceID   = NewDomainError("xp", "Award", ErrEmptyValue, "ledger entry requires a source id")
	ErrInvalidLevelCurve = NewDomainError("xp", "Configure", ErrInvalidInput, "level curve must be monotonically increasing")
)

// Remote service errors
var (
	ErrRemoteUnavailable     = NewDomainError("cycleapi", "Request", ErrServiceUnavailable, "cycle service is unavailable")
	ErrRemoteTimeout         = NewDomainError("cycleapi", "Request", ErrTimeout, "cycle service request timeout")
	ErrRemoteInvalidResponse = NewDomainError("cycleapi", "Parse", ErrInvalidFormat, "invalid response from cycle service")
	ErrRemoteRateLimited     = NewDomainError("cycleapi", "Request", ErrRateLimited, "cycle service rate limit exceeded")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrUnknownVariant) ||
		errors.Is(err, ErrVariantMismatch)
}

// IsNetwork checks if the error came from the remote service transport.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}
