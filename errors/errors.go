// Package errors provides the structured error type shared by the sync engine,
// the transports and the persistence backends.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents the type of error that occurred
type ErrorCode string

const (
	ErrCodeNetworkFailure    ErrorCode = "NETWORK_FAILURE"
	ErrCodeStorageFailure    ErrorCode = "STORAGE_FAILURE"
	ErrCodeValidationFailure ErrorCode = "VALIDATION_FAILURE"
	ErrCodeRejected          ErrorCode = "REJECTED"
	ErrCodeUnsupportedOp     ErrorCode = "UNSUPPORTED_OPERATION"
	ErrCodeRemoteFailure     ErrorCode = "REMOTE_FAILURE"
)

// Kind classifies an error by what the caller can do about it.
type Kind string

const (
	KindInternal    Kind = "internal"
	KindInvalid     Kind = "invalid"
	KindTransient   Kind = "transient"
	KindRejected    Kind = "rejected"
	KindPermanent   Kind = "permanent"
	KindNotFound    Kind = "not_found"
	KindUnsupported Kind = "unsupported"
	KindClosed      Kind = "closed"
)

// Operation represents the operation during which an error occurred
type Operation string

const (
	OpCreate    Operation = "create"
	OpUpdate    Operation = "update"
	OpDelete    Operation = "delete"
	OpAddTag    Operation = "add_tag"
	OpRemoveTag Operation = "remove_tag"
	OpDrain     Operation = "drain"
	OpFetch     Operation = "fetch"
	OpValidate  Operation = "validate"
	OpPersist   Operation = "persist"
	OpLoad      Operation = "load"
	OpClose     Operation = "close"
)

// Component names the package or subsystem that produced an error.
type Component string

// ErrNotFound is returned by persistence backends when a key has never been saved.
var ErrNotFound = stderrors.New("not found")

// SyncError represents an error that occurred while mutating, draining or persisting
// a resource store.
type SyncError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g., "synckit", "transport/http")
	Component string

	// Kind drives how the store surfaces the error
	Kind Kind

	// Underlying error
	Err error

	// Whether the operation can be retried
	Retryable bool

	// Error code for the error type
	Code ErrorCode

	// Metadata for additional context
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

	if e.Err == nil {
		return msg
	}
	return msg + fmt.Sprintf(": %v", e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// E builds a SyncError from its arguments. Recognised argument types are
// Operation, Component, Kind, ErrorCode, map[string]interface{} (metadata),
// error (the cause) and string (a message that wraps the cause, or becomes the
// cause when none is given). Unknown types are ignored.
func E(args ...interface{}) error {
	e := &SyncError{}
	var msg string
	for _, arg := range args {
		switch a := arg.(type) {
		case Operation:
			e.Op = a
		case Component:
			e.Component = string(a)
		case Kind:
			e.Kind = a
		case ErrorCode:
			e.Code = a
		case map[string]interface{}:
			e.Metadata = a
		case *SyncError:
			cp := *a
			e.Err = &cp
		case error:
			e.Err = a
		case string:
			msg = a
		}
	}

	if msg != "" {
		if e.Err != nil {
			e.Err = fmt.Errorf("%s: %w", msg, e.Err)
		} else {
			e.Err = stderrors.New(msg)
		}
	}

	// Inherit classification from a wrapped SyncError when not given explicitly.
	var inner *SyncError
	if e.Err != nil && stderrors.As(e.Err, &inner) {
		if e.Kind == "" {
			e.Kind = inner.Kind
		}
		if e.Code == "" {
			e.Code = inner.Code
		}
		e.Retryable = inner.Retryable
	}
	if e.Kind == KindTransient {
		e.Retryable = true
	}
	return e
}

// Op is a short conversion helper used with E.
func Op(name string) Operation { return Operation(name) }

// NewStorageError creates a new storage-related SyncError
func NewStorageError(op Operation, component Component, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeStorageFailure,
		Kind:      KindInternal,
		Op:        op,
		Component: string(component),
		Err:       cause,
		Retryable: true,
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
		Kind:      KindTransient,
		Op:        op,
		Component: "transport",
		Err:       cause,
		Retryable: true,
	}
}

// NewRejectedError creates a SyncError for a business-rule rejection by the remote
// side. Rejections are never retried automatically.
func NewRejectedError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeRejected,
		Kind:      KindRejected,
		Op:        op,
		Component: "transport",
		Err:       cause,
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

// KindOf returns the Kind of the outermost SyncError in err's chain that has one,
// or KindInternal when err carries no classification.
func KindOf(err error) Kind {
	for err != nil {
		var syncErr *SyncError
		if !stderrors.As(err, &syncErr) {
			break
		}
		if syncErr.Kind != "" {
			return syncErr.Kind
		}
		err = syncErr.Err
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable checks if an error is a retryable SyncError
func IsRetryable(err error) bool {
	var syncErr *SyncError
	if stderrors.As(err, &syncErr) {
		return syncErr.Retryable
	}
	return false
}
