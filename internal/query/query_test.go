package query_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liminalqa/liminal/internal/entity"
	"github.com/liminalqa/liminal/internal/ids"
	"github.com/liminalqa/liminal/internal/query"
	"github.com/liminalqa/liminal/internal/store"
	"github.com/liminalqa/liminal/internal/temporal"
)

func newTestDB(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(store.DefaultConfig(filepath.Join(t.TempDir(), "liminal.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func factAgo(id ids.ID, entityRef ids.ID, attr entity.Attribute, minutesAgo time.Duration) entity.Fact {
	t := time.Now().Add(-minutesAgo)

	return entity.Fact{
		ID: id, EntityRef: entityRef, Attribute: attr.String(), Value: 1,
		Time: temporal.NewStamp(t, t),
	}
}

func TestQuery_AllFacts(t *testing.T) {
	db := newTestDB(t)
	src := ids.NewSource()
	e1, e2 := src.New(), src.New()

	require.NoError(t, db.PutFact(factAgo(src.New(), e1, entity.AttrTestStatus, 10*time.Minute)))
	require.NoError(t, db.PutFact(factAgo(src.New(), e1, entity.AttrTestDuration, 5*time.Minute)))
	require.NoError(t, db.PutFact(factAgo(src.New(), e2, entity.AttrTestStatus, 3*time.Minute)))

	result, err := query.New().Execute(db)
	require.NoError(t, err)
	require.Equal(t, 3, result.Total)
}

func TestQuery_ByEntityIDs(t *testing.T) {
	db := newTestDB(t)
	src := ids.NewSource()
	e1, e2 := src.New(), src.New()

	require.NoError(t, db.PutFact(factAgo(src.New(), e1, entity.AttrTestStatus, 10*time.Minute)))
	require.NoError(t, db.PutFact(factAgo(src.New(), e1, entity.AttrTestDuration, 5*time.Minute)))
	require.NoError(t, db.PutFact(factAgo(src.New(), e2, entity.AttrTestStatus, 3*time.Minute)))

	result, err := query.New().ForEntities(e1).Execute(db)
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)

	for _, f := range result.Facts {
		require.Equal(t, e1, f.EntityRef)
	}
}

func TestQuery_WithLimit(t *testing.T) {
	db := newTestDB(t)
	src := ids.NewSource()
	e1 := src.New()

	require.NoError(t, db.PutFact(factAgo(src.New(), e1, entity.AttrTestStatus, 10*time.Minute)))
	require.NoError(t, db.PutFact(factAgo(src.New(), e1, entity.AttrTestDuration, 5*time.Minute)))
	require.NoError(t, db.PutFact(factAgo(src.New(), e1, entity.AttrTestStatus, 3*time.Minute)))

	result, err := query.New().WithLimit(2).Execute(db)
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
	require.Len(t, result.Facts, 2)
}

func TestQuery_WithValidTimeRange(t *testing.T) {
	db := newTestDB(t)
	src := ids.NewSource()
	e1 := src.New()

	require.NoError(t, db.PutFact(factAgo(src.New(), e1, entity.AttrTestStatus, 20*time.Minute)))
	require.NoError(t, db.PutFact(factAgo(src.New(), e1, entity.AttrTestDuration, 10*time.Minute)))
	require.NoError(t, db.PutFact(factAgo(src.New(), e1, entity.AttrTestStatus, 5*time.Minute)))

	start := time.Now().Add(-12 * time.Minute)
	end := time.Now()

	result, err := query.New().WithValidTimeRange(temporal.Range{Start: start, End: &end}).Execute(db)
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
}

func TestQuery_WithTimeshift(t *testing.T) {
	// Only the fact already known at the shifted coordinate is visible.
	db := newTestDB(t)
	src := ids.NewSource()
	e1 := src.New()

	require.NoError(t, db.PutFact(factAgo(src.New(), e1, entity.AttrTestStatus, 20*time.Minute)))
	require.NoError(t, db.PutFact(factAgo(src.New(), e1, entity.AttrTestDuration, 10*time.Minute)))
	require.NoError(t, db.PutFact(factAgo(src.New(), e1, entity.AttrTestStatus, 5*time.Minute)))

	shiftPoint := time.Now().Add(-12 * time.Minute)

	result, err := query.New().
		WithTimeshift(temporal.Timeshift{ValidTime: shiftPoint, TxTime: shiftPoint}).
		Execute(db)
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
}

func TestQuery_CombinedFilters(t *testing.T) {
	db := newTestDB(t)
	src := ids.NewSource()
	e1, e2 := src.New(), src.New()

	require.NoError(t, db.PutFact(factAgo(src.New(), e1, entity.AttrTestStatus, 20*time.Minute)))
	require.NoError(t, db.PutFact(factAgo(src.New(), e1, entity.AttrTestDuration, 10*time.Minute)))
	require.NoError(t, db.PutFact(factAgo(src.New(), e2, entity.AttrTestStatus, 8*time.Minute)))
	require.NoError(t, db.PutFact(factAgo(src.New(), e2, entity.AttrTestDuration, 5*time.Minute)))

	start := time.Now().Add(-15 * time.Minute)

	result, err := query.New().
		ForEntities(e1).
		WithValidTimeRange(temporal.Range{Start: start}).
		WithLimit(1).
		Execute(db)
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	require.Equal(t, e1, result.Facts[0].EntityRef)
}

func TestQuery_MonotonicUnderNewFacts(t *testing.T) {
	// Adding facts never removes previously-returned facts from a past
	// query's result set when re-run at an equal or later tx_time.
	db := newTestDB(t)
	src := ids.NewSource()
	e1 := src.New()

	older := factAgo(src.New(), e1, entity.AttrTestStatus, 10*time.Minute)
	require.NoError(t, db.PutFact(older))

	shift := temporal.Timeshift{ValidTime: time.Now(), TxTime: time.Now()}

	before, err := query.New().WithTimeshift(shift).Execute(db)
	require.NoError(t, err)
	require.Equal(t, 1, before.Total)

	require.NoError(t, db.PutFact(factAgo(src.New(), e1, entity.AttrTestDuration, 5*time.Minute)))

	after, err := query.New().WithTimeshift(shift).Execute(db)
	require.NoError(t, err)

	seen := make(map[ids.ID]bool, after.Total)
	for _, f := range after.Facts {
		seen[f.ID] = true
	}

	for _, f := range before.Facts {
		require.True(t, seen[f.ID], "fact %s vanished from a re-run query", f.ID)
	}
}

func TestQuery_EmptyFilterReturnsAllFacts(t *testing.T) {
	db := newTestDB(t)

	result, err := query.New().Execute(db)
	require.NoError(t, err)
	require.Equal(t, 0, result.Total)
	require.Empty(t, result.Facts)
}
