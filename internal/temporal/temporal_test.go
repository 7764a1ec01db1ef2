package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRangeContainsUnbounded(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := Range{Start: start}

	assert.True(t, r.Contains(start))
	assert.True(t, r.Contains(start.Add(100*365*24*time.Hour)))
	assert.False(t, r.Contains(start.Add(-time.Millisecond)))
}

func TestRangeContainsHalfOpen(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	r := Range{Start: start, End: &end}

	assert.True(t, r.Contains(start))
	assert.True(t, r.Contains(end.Add(-time.Millisecond)))
	assert.False(t, r.Contains(end), "end is exclusive")
}

func TestTimeshiftSatisfies(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	ts := Timeshift{ValidTime: base, TxTime: base}

	atOrBefore := Stamp{ValidTime: base, TxTime: base}
	assert.True(t, ts.Satisfies(atOrBefore))

	after := Stamp{ValidTime: base.Add(time.Millisecond), TxTime: base}
	assert.False(t, ts.Satisfies(after), "valid_time after timeshift must not satisfy")

	txAfter := Stamp{ValidTime: base, TxTime: base.Add(time.Millisecond)}
	assert.False(t, ts.Satisfies(txAfter), "tx_time after timeshift must not satisfy")
}

func TestStampTruncatesToMillisecond(t *testing.T) {
	withNanos := time.Date(2026, 1, 1, 0, 0, 0, 999999, time.UTC)

	s := NewStamp(withNanos, withNanos)
	assert.Equal(t, time.Duration(0), s.ValidTime.Sub(withNanos.Truncate(time.Millisecond)))
}
