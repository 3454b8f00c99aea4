package ledger

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes ledger errors. The values are stable and appear in
// journal records and CLI output.
type ErrorKind string

const (
	// NotFound: a referenced asset or participant does not exist.
	NotFound ErrorKind = "NOT_FOUND"

	// AlreadyExists: the identity is already registered.
	AlreadyExists ErrorKind = "ALREADY_EXISTS"

	// PermissionDenied: the caller does not own the target record.
	PermissionDenied ErrorKind = "PERMISSION_DENIED"

	// InvalidArgument: malformed date, unknown participant kind, bad arity.
	InvalidArgument ErrorKind = "INVALID_ARGUMENT"

	// Unavailable: the university has no reward left to transfer.
	Unavailable ErrorKind = "UNAVAILABLE"
)

// Error is a rule violation reported to the caller. Store and encoding
// failures are never wrapped in an Error.
type Error struct {
	Kind    ErrorKind
	Message string

	// ID is the asset or identity the error is about, if any.
	ID string
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s (id=%s)", e.Kind, e.Message, e.ID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errorf builds an Error of the given kind.
func Errorf(kind ErrorKind, id, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), ID: id}
}

// KindOf returns the kind of a ledger error anywhere in err's chain, or
// "" for any other error.
func KindOf(err error) ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// IsNotFound reports whether err is a NotFound ledger error.
func IsNotFound(err error) bool { return KindOf(err) == NotFound }

// IsAlreadyExists reports whether err is an AlreadyExists ledger error.
func IsAlreadyExists(err error) bool { return KindOf(err) == AlreadyExists }

// IsPermissionDenied reports whether err is a PermissionDenied ledger error.
func IsPermissionDenied(err error) bool { return KindOf(err) == PermissionDenied }

// IsInvalidArgument reports whether err is an InvalidArgument ledger error.
func IsInvalidArgument(err error) bool { return KindOf(err) == InvalidArgument }

// IsUnavailable reports whether err is an Unavailable ledger error.
func IsUnavailable(err error) bool { return KindOf(err) == Unavailable }
