// Package errors holds the error definitions shared by every stage component.
//
// This file provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - A collector for configuration validation errors
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Storage errors
	ErrBlobNotFound = errors.New("blob not found")
	ErrStorage      = errors.New("storage error")

	// Cluster errors
	ErrConnectionFailed    = errors.New("connection failed")
	ErrUnsupportedEndpoint = errors.New("unsupported cluster endpoint")
	ErrClientClosed        = errors.New("cluster client is closed")

	// Dataset errors
	ErrMalformedCSV     = errors.New("malformed CSV")
	ErrEmptyDataset     = errors.New("empty dataset")
	ErrColumnNotFound   = errors.New("column not found")
	ErrSchemaMismatch   = errors.New("schema mismatch")
	ErrInvalidPartition = errors.New("invalid partition")

	// Analysis errors
	ErrRenderFailed = errors.New("render failed")

	// Pipeline errors
	ErrWriteBackFailed = errors.New("write-back failed")
	ErrPanic           = errors.New("panic recovered")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingField  = errors.New("missing required field")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// IsLoadError returns true if err means the dataset could not be loaded.
func IsLoadError(err error) bool {
	return errors.Is(err, ErrBlobNotFound) ||
		errors.Is(err, ErrMalformedCSV) ||
		errors.Is(err, ErrEmptyDataset)
}

// IsClusterError returns true if err came from the compute cluster handle.
func IsClusterError(err error) bool {
	return errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrUnsupportedEndpoint) ||
		errors.Is(err, ErrClientClosed)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewColumnNotFound creates a column-not-found error with context.
func NewColumnNotFound(column string) error {
	return fmt.Errorf("column '%s': %w", column, ErrColumnNotFound)
}

// NewBlobNotFound creates a blob-not-found error with context.
func NewBlobNotFound(bucket, key string) error {
	return fmt.Errorf("s3://%s/%s: %w", bucket, key, ErrBlobNotFound)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the collected errors for errors.Is/As support.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}
