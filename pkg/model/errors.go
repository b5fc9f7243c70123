package model

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a document is not found
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned when trying to create a document that already exists
	ErrExists = errors.New("document already exists")
	// ErrInvalidDocument is returned when a document fails validation
	ErrInvalidDocument = errors.New("invalid document")
	// ErrControllerClosed is returned when filter state is mutated after the
	// owning view was torn down. It always indicates a lifecycle bug in the caller.
	ErrControllerClosed = errors.New("filter controller is closed")
	// ErrMirrorClosed is returned when opening an already closed mirror
	ErrMirrorClosed = errors.New("mirror is closed")
	// ErrUnknownView is returned when a view name is not configured
	ErrUnknownView = errors.New("unknown view")
	// ErrPermissionDenied is returned when the caller role may not perform an operation
	ErrPermissionDenied = errors.New("permission denied")
	// ErrCanceled is returned when the operation is canceled by the client
	ErrCanceled = errors.New("operation canceled")
)

// WrapError wraps storage errors to model errors.
// It converts context.Canceled and context.DeadlineExceeded to ErrCanceled.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsCanceled(err) {
		return ErrCanceled
	}
	return err
}

// IsCanceled returns true if the error is due to context cancellation or deadline exceeded.
// It checks both direct context errors and wrapped errors (e.g., from MongoDB driver).
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrCanceled) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "context canceled") || strings.Contains(errStr, "context deadline exceeded")
}
