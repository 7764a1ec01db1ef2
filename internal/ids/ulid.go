// Package ids generates and parses the store's entity identifiers.
//
// Every entity bears a 128-bit, lexicographically-sortable, time-ordered
// unique identifier serialized as Crockford Base32 (ULID). Identifiers
// produced by a single source are monotonically increasing even when
// minted within the same millisecond.
package ids

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a 128-bit time-ordered identifier.
type ID string

// Empty is the zero value; no entity ever carries it.
const Empty ID = ""

// ErrInvalidID is returned when a string fails to parse as a well-formed ID.
var ErrInvalidID = errors.New("ids: invalid identifier")

// Source mints monotonically increasing IDs. A Source is safe for
// concurrent use; entropy and monotonicity state are guarded by a mutex,
// matching the single-writer-per-process assumption of a ULID monotonic
// reader.
type Source struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewSource creates an ID source seeded from crypto/rand.
func NewSource() *Source {
	return &Source{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// New mints a new ID using the current wall-clock time.
func (s *Source) New() ID {
	return s.NewAt(time.Now())
}

// NewAt mints a new ID timestamped at t, preserving monotonicity for IDs
// minted within the same millisecond by this Source.
func (s *Source) NewAt(t time.Time) ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := ulid.MustNew(ulid.Timestamp(t), s.entropy)

	return ID(u.String())
}

// Parse validates that s is a well-formed ID.
func Parse(s string) (ID, error) {
	if _, err := ulid.ParseStrict(s); err != nil {
		return Empty, ErrInvalidID
	}

	return ID(s), nil
}

// Time extracts the embedded creation timestamp of an ID.
func Time(id ID) (time.Time, error) {
	u, err := ulid.ParseStrict(string(id))
	if err != nil {
		return time.Time{}, ErrInvalidID
	}

	return ulid.Time(u.Time()), nil
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// Valid reports whether id is non-empty and well-formed.
func (id ID) Valid() bool {
	if id == Empty {
		return false
	}

	_, err := ulid.ParseStrict(string(id))

	return err == nil
}
