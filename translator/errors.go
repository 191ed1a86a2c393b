// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translator

import "fmt"

// ErrorKind categorizes translation errors.
type ErrorKind uint8

const (
	// ErrInvalidState indicates a call made in the wrong translator state.
	ErrInvalidState ErrorKind = iota

	// ErrInternal indicates a broken pass invariant or a tree that fails
	// validation after a pass. It never describes a user error.
	ErrInternal

	// ErrUnsupported indicates a construct the rewrites cannot express.
	ErrUnsupported

	// ErrResourceLimit indicates the shader exceeds an implementation limit.
	ErrResourceLimit
)

// String returns a human-readable error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidState:
		return "InvalidState"
	case ErrInternal:
		return "Internal"
	case ErrUnsupported:
		return "Unsupported"
	case ErrResourceLimit:
		return "ResourceLimit"
	default:
		return "Unknown"
	}
}

// Error represents a translation failure.
type Error struct {
	// Kind categorizes the error.
	Kind ErrorKind

	// Message provides details about the error.
	Message string

	// Pass names the rewrite step that failed, if any.
	Pass string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Pass != "" {
		return fmt.Sprintf("translator %s in %s: %s", e.Kind, e.Pass, e.Message)
	}
	return fmt.Sprintf("translator %s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsInternal returns true if the error is ErrInternal.
func (e *Error) IsInternal() bool {
	return e.Kind == ErrInternal
}

// IsUnsupported returns true if the error is ErrUnsupported.
func (e *Error) IsUnsupported() bool {
	return e.Kind == ErrUnsupported
}

// IsResourceLimit returns true if the error is ErrResourceLimit.
func (e *Error) IsResourceLimit() bool {
	return e.Kind == ErrResourceLimit
}

// IsInvalidState returns true if the error is ErrInvalidState.
func (e *Error) IsInvalidState() bool {
	return e.Kind == ErrInvalidState
}
