// Package exception provides the error types used by blobtosql.
// Every failure that terminates a run is reported as a *BatchError carrying the module it
// originated in and a Category, so that the orchestrator and the CLI can tell transient
// infrastructure failures apart from data problems that need an operator.
package exception

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Category classifies a BatchError.
type Category string

const (
	// CategoryTransient covers infrastructure that is temporarily unreachable (queue, store, storage).
	CategoryTransient Category = "transient"
	// CategoryConstraint covers data/constraint failures such as a duplicate primary key.
	CategoryConstraint Category = "constraint"
	// CategoryMalformedInput covers archives and rows that cannot be interpreted.
	CategoryMalformedInput Category = "malformed_input"
	// CategoryConflict covers a checkpoint that was changed by someone else.
	CategoryConflict Category = "conflict"
	// CategoryLease covers a dataset lease held by another run, or a lost lease.
	CategoryLease Category = "lease"
	// CategoryConfig covers invalid configuration.
	CategoryConfig Category = "config"
)

// Sentinel errors. BatchErrors of the matching category wrap them so errors.Is works.
var (
	ErrOptimisticLockingFailure = errors.New("optimistic locking failure")
	ErrLeaseHeld                = errors.New("lease held by another owner")
	ErrLeaseLost                = errors.New("lease lost")
	ErrMalformedInput           = errors.New("malformed input")
	ErrDuplicateKey             = errors.New("duplicate key")
)

// BatchError is an error raised while processing a dataset.
type BatchError struct {
	// Module is the component the error occurred in (e.g. "source", "loader", "checkpoint").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped cause.
	OriginalErr error
	// Category classifies the error.
	Category Category
	// StackTrace is captured at construction time for debugging.
	StackTrace string

	retryable bool
}

// NewBatchError creates a BatchError of the given category.
// Transient errors are marked retryable; everything else is not.
func NewBatchError(module, message string, originalErr error, category Category) *BatchError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		Category:    category,
		StackTrace:  string(buf[:n]),
		retryable:   category == CategoryTransient,
	}
}

// NewBatchErrorf is NewBatchError with a formatted message.
func NewBatchErrorf(module string, category Category, originalErr error, format string, a ...interface{}) *BatchError {
	return NewBatchError(module, fmt.Sprintf(format, a...), originalErr, category)
}

// NewOptimisticLockingFailureException reports a checkpoint compare-and-set that lost.
func NewOptimisticLockingFailureException(module, message string, originalErr error) *BatchError {
	return NewBatchError(module, message, join(ErrOptimisticLockingFailure, originalErr), CategoryConflict)
}

// NewMalformedInputError reports an archive or row that cannot be interpreted.
func NewMalformedInputError(module, message string, originalErr error) *BatchError {
	return NewBatchError(module, message, join(ErrMalformedInput, originalErr), CategoryMalformedInput)
}

// NewDuplicateKeyError reports a primary key violation in the destination table.
func NewDuplicateKeyError(module, message string, originalErr error) *BatchError {
	return NewBatchError(module, message, join(ErrDuplicateKey, originalErr), CategoryConstraint)
}

// NewLeaseHeldError reports that another run owns the dataset lease.
func NewLeaseHeldError(module, message string, originalErr error) *BatchError {
	return NewBatchError(module, message, join(ErrLeaseHeld, originalErr), CategoryLease)
}

func join(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return errors.Join(sentinel, cause)
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Is / errors.As.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns whether retrying the failed operation may succeed.
func (e *BatchError) IsRetryable() bool {
	return e.retryable
}

// IsBatchError reports whether err (or anything it wraps) is a *BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// CategoryOf returns the category of the outermost BatchError in err's chain.
// Errors that are not BatchErrors are reported as transient.
func CategoryOf(err error) Category {
	var be *BatchError
	if errors.As(err, &be) {
		return be.Category
	}
	return CategoryTransient
}

// IsTemporary determines if an error is temporary (e.g. network error, DB connection loss).
// A BatchError's retryable flag takes precedence over message heuristics.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.IsRetryable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "EOF")
}

// IsFatal determines if an error needs operator intervention before a rerun can succeed.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var be *BatchError
	if errors.As(err, &be) {
		return !be.IsRetryable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "invalid argument") ||
		strings.Contains(errStr, "permission denied")
}

// IsOptimisticLockingFailure determines if an error indicates a lost checkpoint compare-and-set.
func IsOptimisticLockingFailure(err error) bool {
	return errors.Is(err, ErrOptimisticLockingFailure)
}

// ExtractErrorMessage returns the BatchError message, or err.Error() for other errors.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}
