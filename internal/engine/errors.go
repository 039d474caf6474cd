package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/idsync/internal/snapshot"
	"github.com/roach88/idsync/internal/store"
)

// Error is a failure reported by the engine, either per record (inside a
// Report) or for a whole run (returned directly).
type Error struct {
	// Code identifies the error category.
	Code ErrorCode `json:"code"`

	// Message is a human-readable description, including the cause.
	Message string `json:"message"`

	// Key identifies the affected record, when there is one.
	Key string `json:"key,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeStoreWrite indicates a single update call failed. The batch continues.
	ErrCodeStoreWrite ErrorCode = "STORE_WRITE"

	// ErrCodeMissingKey indicates a record needing an update has no usable key.
	ErrCodeMissingKey ErrorCode = "MISSING_KEY"

	// ErrCodeDuplicateKey indicates a record needing an update shares its key
	// with another record, so a keyed update cannot address it alone.
	ErrCodeDuplicateKey ErrorCode = "DUPLICATE_KEY"

	// ErrCodeStoreUnavailable indicates the store could not be read before any write.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"

	// ErrCodeFileUnavailable indicates a snapshot file could not be read or written.
	ErrCodeFileUnavailable ErrorCode = "FILE_UNAVAILABLE"

	// ErrCodeInvalidSpec indicates a field specification is unusable.
	ErrCodeInvalidSpec ErrorCode = "INVALID_SPEC"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s (key=%s)", e.Code, e.Message, e.Key)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err means a store or snapshot file could
// not be reached. Uses errors.As to handle wrapped errors, and also matches
// the store and snapshot sentinels directly.
func IsUnavailable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeStoreUnavailable || e.Code == ErrCodeFileUnavailable
	}
	return errors.Is(err, store.ErrUnavailable) || errors.Is(err, snapshot.ErrFileUnavailable)
}

// IsStoreWrite reports whether err is a per-record write failure.
func IsStoreWrite(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeStoreWrite
}

func newWriteError(key string, err error) *Error {
	return &Error{
		Code:    ErrCodeStoreWrite,
		Message: fmt.Sprintf("update failed: %v", err),
		Key:     key,
		Err:     err,
	}
}

func newUnavailableError(what string, err error) *Error {
	return &Error{
		Code:    ErrCodeStoreUnavailable,
		Message: fmt.Sprintf("cannot read %s: %v", what, err),
		Err:     err,
	}
}

func newFileError(path string, err error) *Error {
	return &Error{
		Code:    ErrCodeFileUnavailable,
		Message: fmt.Sprintf("snapshot %s: %v", path, err),
		Err:     err,
	}
}

func newSpecError(format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidSpec,
		Message: fmt.Sprintf(format, args...),
	}
}
