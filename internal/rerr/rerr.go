// Package rerr defines the error taxonomy shared by every layer of the
// repository runtime: driver adapters, the connection pool, both tiers,
// and the façade all classify failures into one of a fixed set of kinds
// rather than returning ad-hoc error types.
package rerr

import (
	"errors"
	"fmt"
)

// Kind is the semantic classification of a failure, independent of which
// backend produced it.
type Kind string

const (
	// Broken indicates a connectivity or auth-class failure: the cache or
	// database is unreachable, credentials are rejected, the database is
	// missing, or the backend reports too many connections. Retryable at
	// the caller layer.
	Broken Kind = "broken"

	// Sql indicates a server-side query error (syntax, constraint
	// violation, etc). The connection that produced it is not evicted.
	Sql Kind = "sql"

	// CacheStore indicates a setex failure after a successful (or
	// skipped) get. Never fails the user call.
	CacheStore Kind = "cache_store"

	// Saturation indicates the pool had no free connection and was
	// already at max_size when the acquire wait expired.
	Saturation Kind = "saturation"

	// ConfigOutOfRange indicates a resolved configuration value outside
	// its valid range, detected at construction time.
	ConfigOutOfRange Kind = "config_out_of_range"

	// Unknown is the catch-all for anything that doesn't fit the kinds
	// above. Never swallowed; always surfaced.
	Unknown Kind = "unknown"
)

// Error is the concrete error type carried through the repository
// runtime. It pairs a Kind with the underlying cause so callers can both
// branch on classification (errors.Is against the Is* sentinels, or
// errors.As against *Error) and still see the original message.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, rerr.Broken) style checks via the Is* helpers
// below.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// sentinel returns a zero-cause *Error of the given kind, suitable as the
// target of errors.Is(err, rerr.IsBroken).
func sentinel(k Kind) *Error { return &Error{Kind: k} }

var (
	IsBroken           = sentinel(Broken)
	IsSql              = sentinel(Sql)
	IsCacheStore       = sentinel(CacheStore)
	IsSaturation       = sentinel(Saturation)
	IsConfigOutOfRange = sentinel(ConfigOutOfRange)
	IsUnknown          = sentinel(Unknown)
)

// KindOf extracts the Kind of err if it is (or wraps) an *Error, returns
// the empty Kind for a nil err, and Unknown otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return ""
	}
	return Unknown
}
