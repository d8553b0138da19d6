package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies directory failures surfaced to callers.
type ErrorKind string

// Error kinds returned by directory operations.
const (
	KindNotFound           ErrorKind = "not_found"
	KindDuplicateID        ErrorKind = "duplicate_id"
	KindDuplicateName      ErrorKind = "duplicate_name"
	KindScopeMismatch      ErrorKind = "scope_mismatch"
	KindHasDependents      ErrorKind = "has_dependents"
	KindInvalidInput       ErrorKind = "invalid_input"
	KindStorageUnavailable ErrorKind = "storage_unavailable"
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateID        = errors.New("duplicate id")
	ErrDuplicateName      = errors.New("duplicate name")
	ErrScopeMismatch      = errors.New("scope mismatch")
	ErrHasDependents      = errors.New("has dependents")
	ErrInvalidInput       = errors.New("invalid input")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

var kindSentinels = map[ErrorKind]error{
	KindNotFound:           ErrNotFound,
	KindDuplicateID:        ErrDuplicateID,
	KindDuplicateName:      ErrDuplicateName,
	KindScopeMismatch:      ErrScopeMismatch,
	KindHasDependents:      ErrHasDependents,
	KindInvalidInput:       ErrInvalidInput,
	KindStorageUnavailable: ErrStorageUnavailable,
}

// Error is the typed failure returned by the integrity enforcer, the stores
// and the service.
type Error struct {
	Kind    ErrorKind
	Entity  EntityType
	Ref     string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		switch {
		case e.Entity != "" && e.Ref != "":
			msg = fmt.Sprintf("%s %q: %s", e.Entity, e.Ref, kindSentinels[e.Kind])
		case e.Entity != "":
			msg = fmt.Sprintf("%s: %s", e.Entity, kindSentinels[e.Kind])
		default:
			msg = string(e.Kind)
		}
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinel so callers can write errors.Is(err, ErrNotFound).
func (e *Error) Is(target error) bool {
	if sentinel, ok := kindSentinels[e.Kind]; ok && sentinel == target {
		return true
	}
	if other, ok := target.(*Error); ok {
		return other.Kind == e.Kind && (other.Entity == "" || other.Entity == e.Entity)
	}
	return false
}

// KindOf extracts the error kind, or "" when err is not a directory error.
func KindOf(err error) ErrorKind {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind
	}
	return ""
}

// NotFound reports a missing school, college or student.
func NotFound(entity EntityType, ref string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, Ref: ref, Message: fmt.Sprintf("%s %q not found", entity, ref)}
}

// DuplicateID reports an identifier that is already taken.
func DuplicateID(entity EntityType, id string) *Error {
	return &Error{Kind: KindDuplicateID, Entity: entity, Ref: id, Message: fmt.Sprintf("%s id %q already exists", entity, id)}
}

// DuplicateName reports a name collision within scope.
func DuplicateName(entity EntityType, name string) *Error {
	return &Error{Kind: KindDuplicateName, Entity: entity, Ref: name, Message: fmt.Sprintf("%s name %q already exists", entity, name)}
}

// ScopeMismatch reports a reference crossing school boundaries.
func ScopeMismatch(entity EntityType, ref, message string) *Error {
	return &Error{Kind: KindScopeMismatch, Entity: entity, Ref: ref, Message: message}
}

// HasDependents reports a blocked deletion.
func HasDependents(entity EntityType, ref string, count int) *Error {
	return &Error{Kind: KindHasDependents, Entity: entity, Ref: ref, Message: fmt.Sprintf("cannot delete %s %q: %d dependent record(s)", entity, ref, count)}
}

// InvalidInput reports a malformed request.
func InvalidInput(entity EntityType, message string) *Error {
	return &Error{Kind: KindInvalidInput, Entity: entity, Message: message}
}

// StorageUnavailable wraps a backend failure.
func StorageUnavailable(op string, err error) *Error {
	return &Error{Kind: KindStorageUnavailable, Message: op, Err: err}
}
