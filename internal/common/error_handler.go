package common

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every error the catalog core can surface. The kinds
// map 1:1 onto the CLI exit codes and the REST envelope behavior.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindAmbiguous
	KindPermissionDenied
	KindInvalidArgument
	KindPrecondition
	KindConflict
	KindTimeout
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindAmbiguous:
		return "Ambiguous"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindPrecondition:
		return "Precondition"
	case KindConflict:
		return "Conflict"
	case KindTimeout:
		return "Timeout"
	case KindInternal:
		return "Internal"
	}
	return "Unknown"
}

// CatalogError carries a kind plus a single-sentence message suitable for the
// error envelope. It supports errors.Is against the exported sentinels.
type CatalogError struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *CatalogError) Error() string { return e.Message }

func (e *CatalogError) Unwrap() error { return e.cause }

func (e *CatalogError) Is(target error) bool {
	t, ok := target.(*CatalogError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is. Constructors below attach concrete messages.
var (
	ErrNotFound         = &CatalogError{Kind: KindNotFound, Message: "not found"}
	ErrAmbiguous        = &CatalogError{Kind: KindAmbiguous, Message: "ambiguous reference"}
	ErrPermissionDenied = &CatalogError{Kind: KindPermissionDenied, Message: "permission denied"}
	ErrInvalidArgument  = &CatalogError{Kind: KindInvalidArgument, Message: "invalid argument"}
	ErrPrecondition     = &CatalogError{Kind: KindPrecondition, Message: "precondition failed"}
	ErrConflict         = &CatalogError{Kind: KindConflict, Message: "conflict"}
	ErrTimeout          = &CatalogError{Kind: KindTimeout, Message: "timed out"}
	ErrInternal         = &CatalogError{Kind: KindInternal, Message: "internal error"}
)

func NewErrNotFound(format string, args ...any) error {
	return &CatalogError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewErrAmbiguous(format string, args ...any) error {
	return &CatalogError{Kind: KindAmbiguous, Message: fmt.Sprintf(format, args...)}
}

func NewErrPermissionDenied(format string, args ...any) error {
	return &CatalogError{Kind: KindPermissionDenied, Message: fmt.Sprintf(format, args...)}
}

func NewErrInvalidArgument(format string, args ...any) error {
	return &CatalogError{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func NewErrPrecondition(format string, args ...any) error {
	return &CatalogError{Kind: KindPrecondition, Message: fmt.Sprintf(format, args...)}
}

func NewErrConflict(format string, args ...any) error {
	return &CatalogError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NewErrTimeout(format string, args ...any) error {
	return &CatalogError{Kind: KindTimeout, Message: fmt.Sprintf(format, args...)}
}

func NewErrInternal(format string, args ...any) error {
	return &CatalogError{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// NewInternalServerError wraps adaptor and scheduler I/O failures. The cause
// is kept for logging; the message is what callers may surface.
func NewInternalServerError(cause error, format string, args ...any) error {
	return &CatalogError{Kind: KindInternal, Message: fmt.Sprintf(format, args...), cause: cause}
}

func IsErrNotFound(err error) bool         { return errors.Is(err, ErrNotFound) }
func IsErrAmbiguous(err error) bool        { return errors.Is(err, ErrAmbiguous) }
func IsErrPermissionDenied(err error) bool { return errors.Is(err, ErrPermissionDenied) }
func IsErrInvalidArgument(err error) bool  { return errors.Is(err, ErrInvalidArgument) }
func IsErrPrecondition(err error) bool     { return errors.Is(err, ErrPrecondition) }
func IsErrConflict(err error) bool         { return errors.Is(err, ErrConflict) }
func IsErrTimeout(err error) bool          { return errors.Is(err, ErrTimeout) }
func IsErrInternal(err error) bool         { return errors.Is(err, ErrInternal) }

// KindOf returns the classification of err, or KindInternal for errors that
// did not originate in the core.
func KindOf(err error) ErrorKind {
	var ce *CatalogError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// ExitCode maps an error onto the CLI contract: 0 success, 1 malformed
// arguments, 2 permission denied, 3 not found, 4 lock or concurrency
// conflict, 5 internal.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindInvalidArgument, KindPrecondition:
		return 1
	case KindPermissionDenied:
		return 2
	case KindNotFound, KindAmbiguous:
		return 3
	case KindTimeout, KindConflict:
		return 4
	default:
		return 5
	}
}
