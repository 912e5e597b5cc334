// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package perr implements the error taxonomy from the spec's error
// handling design: a closed set of sentinel kinds that the boundary maps
// to HTTP status classes, with errors.Is/errors.As support via wrapping
// rather than ad hoc string errors.
package perr

import (
	"errors"
	"fmt"
)

// Kind is one of the seven error classes in the error handling design.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindLlmUnavailable Kind = "llm_unavailable"
	KindCancelled     Kind = "cancelled"
	KindInternal      Kind = "internal"
)

// Error is the concrete type every taxonomy error wraps. It carries a
// Kind for boundary mapping and an optional wrapped cause for context.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, perr.NotFound) style sentinel comparisons
// by comparing Kind rather than identity.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is comparisons. Callers write:
//
//	if errors.Is(err, perr.NotFound) { ... }
var (
	NotFound       = &Error{Kind: KindNotFound}
	Conflict       = &Error{Kind: KindConflict}
	LlmUnavailable = &Error{Kind: KindLlmUnavailable}
	Cancelled      = &Error{Kind: KindCancelled}
	ValidationErr  = &Error{Kind: KindValidation}
	Internal       = &Error{Kind: KindInternal}
)

// NewValidation wraps cause (may be nil) as a boundary-facing
// ValidationError.
func NewValidation(msg string, cause error) error {
	return &Error{Kind: KindValidation, Message: msg, Cause: cause}
}

// NewNotFound builds a NotFound error for the named entity.
func NewNotFound(entity string, id any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

// NewConflict wraps a uniqueness-constraint violation. Callers typically
// recover from this locally (treat as no-op) per the propagation policy.
func NewConflict(msg string, cause error) error {
	return &Error{Kind: KindConflict, Message: msg, Cause: cause}
}

// NewLlmUnavailable wraps an exhausted-retries LLM failure.
func NewLlmUnavailable(msg string, cause error) error {
	return &Error{Kind: KindLlmUnavailable, Message: msg, Cause: cause}
}

// NewCancelled wraps a caller-abandoned request.
func NewCancelled(cause error) error {
	return &Error{Kind: KindCancelled, Message: "request cancelled", Cause: cause}
}

// NewInternal wraps any unclassified exception. The message passed here
// must never be surfaced verbatim to callers — only Kind and a generic
// message reach the boundary response; full context goes to logs.
func NewInternal(msg string, cause error) error {
	return &Error{Kind: KindInternal, Message: msg, Cause: cause}
}

// KindOf extracts the Kind of err, defaulting to KindInternal if err is
// not a *Error (or wraps one).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
