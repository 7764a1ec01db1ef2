// Package temporal provides the bi-temporal primitives shared by every
// entity and fact in the store: a valid-time/tx-time stamp, a half-open
// time range, and the timeshift predicate used to reconstruct a past view
// of the world.
package temporal

import "time"

// Stamp carries both temporal axes of a fact.
//
// ValidTime is when the fact was true in the world. TxTime is when the
// system learned of it. Both are stored millisecond-truncated UTC.
type Stamp struct {
	ValidTime time.Time `json:"valid_time"`
	TxTime    time.Time `json:"tx_time"`
}

// NewStamp truncates both timestamps to millisecond UTC.
func NewStamp(validTime, txTime time.Time) Stamp {
	return Stamp{ValidTime: truncate(validTime), TxTime: truncate(txTime)}
}

// Now returns a Stamp with both axes set to the current instant.
func Now() Stamp {
	n := truncate(time.Now())

	return Stamp{ValidTime: n, TxTime: n}
}

func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Range is a half-open interval [Start, End). A nil End means unbounded.
type Range struct {
	Start time.Time
	End   *time.Time
}

// Contains reports whether t falls within the range.
func (r Range) Contains(t time.Time) bool {
	t = truncate(t)
	if t.Before(truncate(r.Start)) {
		return false
	}

	if r.End == nil {
		return true
	}

	return t.Before(truncate(*r.End))
}

// Timeshift reconstructs the store's view of the world as of a given
// (valid_time, tx_time) coordinate.
type Timeshift struct {
	ValidTime time.Time
	TxTime    time.Time
}

// Satisfies reports whether fact f is visible under this Timeshift:
// fact.valid_time ≤ ts.valid_time ∧ fact.tx_time ≤ ts.tx_time.
func (ts Timeshift) Satisfies(f Stamp) bool {
	vt := truncate(ts.ValidTime)
	tt := truncate(ts.TxTime)

	return !f.ValidTime.After(vt) && !f.TxTime.After(tt)
}
