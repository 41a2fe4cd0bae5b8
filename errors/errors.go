// Package errors provides the error taxonomy shared by the sync engine,
// the local store and the remote client.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents the type of error that occurred
type ErrorCode string

const (
	ErrCodeNetworkFailure    ErrorCode = "NETWORK_FAILURE"
	ErrCodeStorageFailure    ErrorCode = "STORAGE_FAILURE"
	ErrCodeValidationFailure ErrorCode = "VALIDATION_FAILURE"
)

// Kind is a coarse classification used by callers that only care about
// how to react to an error, not where it came from.
type Kind string

const (
	KindUnknown     Kind = ""
	KindInvalid     Kind = "invalid"
	KindNotFound    Kind = "not_found"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal"
	KindRejected    Kind = "rejected"
)

// Operation represents the type of sync operation
type Operation string

const (
	OpRefresh        Operation = "refresh"
	OpAddOnline      Operation = "add_online"
	OpEnqueue        Operation = "enqueue_offline"
	OpProcessPending Operation = "process_pending"
	OpObserve        Operation = "observe"
	OpStore          Operation = "store"
	OpLoad           Operation = "load"
	OpListProducts   Operation = "list_products"
	OpCreateProduct  Operation = "create_product"
	OpSchedule       Operation = "schedule"
	OpValidate       Operation = "validate"
	OpClose          Operation = "close"
)

// SyncError represents an error that occurred inside the sync core.
type SyncError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g., "store", "remote")
	Component string

	// Underlying error
	Err error

	// Whether the operation can be retried
	Retryable bool

	// Error code for the error type
	Code ErrorCode

	Kind Kind

	// Metadata for additional context (HTTP status, field names, ...)
	Metadata map[string]interface{}
}

func (e *SyncError) Error() string {
	var msg string
	if e.Component != "" {
		msg = fmt.Sprintf("%s operation failed in %s component", e.Op, e.Component)
	} else {
		msg = fmt.Sprintf("%s operation failed", e.Op)
	}

	if e.Code != "" {
		msg += fmt.Sprintf(" [%s]", e.Code)
	}

	return msg + fmt.Sprintf(": %v", e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// WithMetadata sets a metadata key and returns the error for chaining.
func (e *SyncError) WithMetadata(key string, value interface{}) *SyncError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// NewStorageError creates a new storage-related SyncError. Storage errors
// are fatal to the current operation and never retried by the core.
func NewStorageError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeStorageFailure,
		Kind:      KindInternal,
		Op:        op,
		Component: "store",
		Err:       cause,
		Retryable: false,
	}
}

// NewValidationError creates a new validation-related SyncError
func NewValidationError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeValidationFailure,
		Kind:      KindInvalid,
		Op:        op,
		Err:       cause,
		Retryable: false,
	}
}

// NewNetworkError creates a new network-related SyncError
func NewNetworkError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeNetworkFailure,
		Kind:      KindUnavailable,
		Op:        op,
		Component: "remote",
		Err:       cause,
		Retryable: true,
	}
}

// NewRemoteError creates a RemoteError for a response the server actually
// sent. status is the HTTP status code, or 0 when no response arrived.
func NewRemoteError(op Operation, status int, message string, cause error) *SyncError {
	e := NewNetworkError(op, cause)
	e.Retryable = RetryableStatus(status)
	if status != 0 && !e.Retryable {
		e.Kind = KindRejected
	}
	e.WithMetadata("status", status)
	if message != "" {
		e.WithMetadata("message", message)
	}
	return e
}

// RetryableStatus reports whether a response status is worth retrying.
// Zero means the request never got a response.
func RetryableStatus(status int) bool {
	switch {
	case status == 0:
		return true
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}

// New creates a new SyncError
func New(op Operation, err error) *SyncError {
	return &SyncError{
		Op:  op,
		Err: err,
	}
}

// NewWithComponent creates a new SyncError with component information
func NewWithComponent(op Operation, component string, err error) *SyncError {
	return &SyncError{
		Op:        op,
		Component: component,
		Err:       err,
	}
}

// IsRetryable checks if an error is a retryable SyncError
func IsRetryable(err error) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Retryable
	}
	return false
}

// IsStorage reports whether err is (or wraps) a StorageError.
func IsStorage(err error) bool {
	return hasCode(err, ErrCodeStorageFailure)
}

// IsRemote reports whether err is (or wraps) a RemoteError.
func IsRemote(err error) bool {
	return hasCode(err, ErrCodeNetworkFailure)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidationFailure)
}

// StatusOf returns the HTTP status recorded on a RemoteError, or 0.
func StatusOf(err error) int {
	var syncErr *SyncError
	if !errors.As(err, &syncErr) || syncErr.Metadata == nil {
		return 0
	}
	status, _ := syncErr.Metadata["status"].(int)
	return status
}

func hasCode(err error, code ErrorCode) bool {
	var syncErr *SyncError
	for err != nil {
		if !errors.As(err, &syncErr) {
			return false
		}
		if syncErr.Code == code {
			return true
		}
		err = syncErr.Err
	}
	return false
}

// Is and As are re-exported so callers importing this package under the
// name "errors" keep access to the standard helpers.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
