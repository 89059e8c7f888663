// Package apperrors defines the stable error taxonomy shared by every
// component of the control plane (spec §7). Callers match on Kind, not on
// error string content.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is one of the stable, documented error categories.
type Kind string

const (
	KindValidation            Kind = "validation"
	KindConflict              Kind = "conflict"
	KindNotFound              Kind = "not_found"
	KindReferential           Kind = "referential"
	KindStoreUnavailable      Kind = "store_unavailable"
	KindRendering             Kind = "rendering"
	KindBackupFailed          Kind = "backup_failed"
	KindFilesystemFailed      Kind = "filesystem_failed"
	KindResolverUnavailable   Kind = "resolver_unavailable"
	KindResolverRejected      Kind = "resolver_rejected_config"
	KindTimeout               Kind = "timeout"
	KindRollbackSucceeded     Kind = "rollback_succeeded"
	KindFatal                 Kind = "fatal"
	KindRateLimited           Kind = "rate_limited"
	KindPermissionDenied      Kind = "permission_denied"
)

// Error is the single error type returned across component boundaries.
// Field/Reason/Suggestion are populated for Validation and Conflict errors
// per spec §7's "{field, reason, suggestion}" triple; the rest are nil/empty
// where they don't apply.
type Error struct {
	Kind       Kind
	Field      string
	Reason     string
	Suggestion string
	Err        error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %q): %s", e.Kind, e.Reason, e.Field, e.Suggestion)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so errors.Is
// matches two *Error values on Kind alone. The package-level Is(err, kind)
// function is the usual way callers check a kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// Validation builds a field-level validation error with an actionable
// suggestion, the shape every DNS validator (§C2) and CRUD entry point (§C1)
// returns for bad input.
func Validation(field, reason, suggestion string) *Error {
	return &Error{Kind: KindValidation, Field: field, Reason: reason, Suggestion: suggestion}
}

// Conflict builds a uniqueness/concurrency conflict error for a specific field.
func Conflict(field, reason string) *Error {
	return &Error{Kind: KindConflict, Field: field, Reason: reason}
}

// NotFound builds a not-found error naming the missing entity.
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf("%s %q not found", entity, id)}
}

// Referential builds a referential-integrity error (e.g. deleting a zone
// that still owns records).
func Referential(parent, child string) *Error {
	return &Error{Kind: KindReferential, Reason: fmt.Sprintf("%s is referenced by %s", parent, child)}
}

// Wrap attaches a Kind to an underlying error without discarding it.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

// HTTPStatus maps a Kind to the status code the HTTP collaborator binding
// returns for it (spec §7's failure taxonomy, spec §6's HTTP surface).
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation, KindReferential:
		return 422
	case KindConflict, KindRollbackSucceeded:
		return 409
	case KindNotFound:
		return 404
	case KindPermissionDenied:
		return 403
	case KindRateLimited:
		return 429
	case KindTimeout, KindResolverUnavailable, KindStoreUnavailable:
		return 503
	case KindFatal, KindBackupFailed, KindFilesystemFailed, KindRendering, KindResolverRejected:
		return 500
	default:
		return 500
	}
}
