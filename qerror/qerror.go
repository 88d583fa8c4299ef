// Package qerror defines the error kinds a match can fail with.
package qerror

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies which of the closed set of error categories a Error
// belongs to.
type Kind int

const (
	// InvalidArgument means a caller passed a value that is out of range
	// or otherwise nonsensical (e.g. a negative check_at_least).
	InvalidArgument Kind = iota
	// InvalidOperation means a Query or PostList tree was built in a way
	// that violates a construction invariant.
	InvalidOperation
	// Network means a remote shard could not be reached or returned a
	// malformed response.
	Network
	// NetworkTimeout means a remote shard did not respond within the
	// configured time budget.
	NetworkTimeout
	// Serialisation means a wire-format frame failed to encode or decode.
	Serialisation
	// Unimplemented means the requested feature is recognised but not
	// supported by this Database/SubMatch.
	Unimplemented
	// WildcardError means a wildcard or edit-distance expansion exceeded
	// its configured limit.
	WildcardError
	// DocNotFound means a document id has no corresponding document in
	// the Database it was requested from.
	DocNotFound
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case InvalidOperation:
		return "InvalidOperation"
	case Network:
		return "Network"
	case NetworkTimeout:
		return "NetworkTimeout"
	case Serialisation:
		return "Serialisation"
	case Unimplemented:
		return "Unimplemented"
	case WildcardError:
		return "WildcardError"
	case DocNotFound:
		return "DocNotFound"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned across shard/remote
// boundaries. Compare against a Kind with errors.As, not string matching.
type Error struct {
	Kind  Kind
	Shard string
	cause error
}

func (e *Error) Error() string {
	if e.Shard != "" {
		return fmt.Sprintf("%s: %s: %v", e.Shard, e.Kind, e.cause)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind wrapping msg.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, cause: errors.New(msg)}
}

// Wrap builds an Error of the given kind wrapping err with additional
// context.
func Wrap(kind Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.Wrap(err, msg)}
}

// WithShard returns a copy of e annotated with the shard identity that
// produced it.
func (e *Error) WithShard(shard string) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Shard = shard
	return &cp
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
