// Package errs classifies errors into the kinds the HTTP layer maps onto
// status codes: Validation, NotFound, Storage, Serialization, Timeout,
// Unauthorized. Components return ordinary wrapped errors; GetKind
// inspects the chain with errors.Is/As.
package errs

import "errors"

// Kind is one of the six error classes the service distinguishes.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindStorage
	KindSerialization
	KindTimeout
	KindUnauthorized
)

// classified wraps an error with an explicit Kind.
type classified struct {
	kind Kind
	err  error
}

func (c *classified) Error() string { return c.err.Error() }
func (c *classified) Unwrap() error { return c.err }

// Wrap tags err with kind. A nil err returns nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}

	return &classified{kind: kind, err: err}
}

// Validation tags err as a Validation failure.
func Validation(err error) error { return Wrap(KindValidation, err) }

// NotFound tags err as a NotFound failure.
func NotFound(err error) error { return Wrap(KindNotFound, err) }

// Storage tags err as a Storage failure.
func Storage(err error) error { return Wrap(KindStorage, err) }

// Serialization tags err as a Serialization failure.
func Serialization(err error) error { return Wrap(KindSerialization, err) }

// Timeout tags err as a Timeout failure (only ever raised from retry
// loops when a wrapping deadline fires).
func Timeout(err error) error { return Wrap(KindTimeout, err) }

// Unauthorized tags err as an Unauthorized failure.
func Unauthorized(err error) error { return Wrap(KindUnauthorized, err) }

// GetKind walks the error chain for an explicit Kind tag, defaulting to
// KindStorage for untagged errors — an unclassified failure is treated as
// an internal/storage failure (5xx) rather than silently as 200.
func GetKind(err error) Kind {
	var c *classified

	if errors.As(err, &c) {
		return c.kind
	}

	return KindStorage
}
