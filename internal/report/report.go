// Package report implements the report query: five read-only aggregates
// over a Run's Tests and Signals, composed from the fact store's entity
// and query surfaces into a single Reflection value.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/liminalqa/liminal/internal/entity"
	"github.com/liminalqa/liminal/internal/errs"
	"github.com/liminalqa/liminal/internal/ids"
)

// causalityWindow bounds the causality walk to signals within ±30s of a
// failed Test's completion instant.
const causalityWindow = 30 * time.Second

// topSlowLimit caps the slow-tests aggregate at its top 10.
const topSlowLimit = 10

// entitySource is the read surface the report query depends on, kept
// separate from the write-side store.
type entitySource interface {
	GetEntity(id ids.ID) (entity.Entity, error)
	GetEntitiesByType(kind entity.Kind) ([]ids.ID, error)
}

// Reflection is the pure value a Report Query produces for one Run.
type Reflection struct {
	RunID           ids.ID
	PlanName        string
	StartedAt       time.Time
	EndedAt         *time.Time
	Summary         Summary
	Timeline        []TimelineBucket
	TopSlowTests    []SlowTest
	CausalityTrails []CausalityTrail
}

// Summary counts Tests in a Run by their final status.
type Summary struct {
	Total   int
	Passed  int
	Failed  int
	Flake   int
	Timeout int
	Skip    int
}

// TimelineBucket counts Tests completing in one minute-wide bucket, by
// status.
type TimelineBucket struct {
	Bucket time.Time
	Status entity.TestStatus
	Count  int
}

// SlowTest is one row of the top-slow-tests aggregate.
type SlowTest struct {
	Name       string
	Suite      string
	DurationMs int64
	Status     entity.TestStatus
}

// CausalityTrail is the set of Signals surrounding one failed Test's
// completion instant.
type CausalityTrail struct {
	TestName     string
	TestFailedAt time.Time
	Signals      []NearbySignal
}

// NearbySignal is one Signal within a CausalityTrail's window, annotated
// with its signed offset from the failure instant.
type NearbySignal struct {
	Kind            entity.SignalKind
	At              time.Time
	LatencyMs       *float64
	TimeDiffSeconds int
}

// Query composes the five aggregates of a Run's Tests and Signals into a
// Reflection.
func Query(src entitySource, runID ids.ID) (*Reflection, error) {
	runEntity, err := src.GetEntity(runID)
	if err != nil {
		return nil, errs.Storage(fmt.Errorf("report: load run %s: %w", runID, err))
	}

	run, ok := runEntity.(entity.Run)
	if !ok {
		return nil, errs.NotFound(fmt.Errorf("report: run %s not found", runID))
	}

	tests, err := testsForRun(src, runID)
	if err != nil {
		return nil, err
	}

	signals, err := signalsByTestRef(src, tests)
	if err != nil {
		return nil, err
	}

	return &Reflection{
		RunID:           runID,
		PlanName:        run.PlanName,
		StartedAt:       run.StartedAt,
		EndedAt:         run.EndedAt,
		Summary:         summarize(tests),
		Timeline:        timeline(tests),
		TopSlowTests:    topSlow(tests),
		CausalityTrails: causalityWalk(tests, signals),
	}, nil
}

func testsForRun(src entitySource, runID ids.ID) ([]entity.Test, error) {
	testIDs, err := src.GetEntitiesByType(entity.KindTest)
	if err != nil {
		return nil, errs.Storage(fmt.Errorf("report: list tests: %w", err))
	}

	var tests []entity.Test

	for _, id := range testIDs {
		e, err := src.GetEntity(id)
		if err != nil {
			return nil, errs.Storage(fmt.Errorf("report: load test %s: %w", id, err))
		}

		t, ok := e.(entity.Test)
		if !ok || t.RunRef != runID {
			continue
		}

		tests = append(tests, t)
	}

	return tests, nil
}

func signalsByTestRef(src entitySource, tests []entity.Test) (map[ids.ID][]entity.Signal, error) {
	signalIDs, err := src.GetEntitiesByType(entity.KindSignal)
	if err != nil {
		return nil, errs.Storage(fmt.Errorf("report: list signals: %w", err))
	}

	wanted := make(map[ids.ID]struct{}, len(tests))
	for _, t := range tests {
		wanted[t.ID] = struct{}{}
	}

	out := make(map[ids.ID][]entity.Signal)

	for _, id := range signalIDs {
		e, err := src.GetEntity(id)
		if err != nil {
			return nil, errs.Storage(fmt.Errorf("report: load signal %s: %w", id, err))
		}

		s, ok := e.(entity.Signal)
		if !ok {
			continue
		}

		if _, want := wanted[s.TestRef]; want {
			out[s.TestRef] = append(out[s.TestRef], s)
		}
	}

	return out, nil
}

func summarize(tests []entity.Test) Summary {
	var s Summary

	for _, t := range tests {
		s.Total++

		// xfail counts toward Total only: an expected failure is neither
		// a pass nor a failure.
		switch t.Status {
		case entity.TestPass:
			s.Passed++
		case entity.TestFail:
			s.Failed++
		case entity.TestFlake:
			s.Flake++
		case entity.TestTimeout:
			s.Timeout++
		case entity.TestSkip:
			s.Skip++
		}
	}

	return s
}

func timeline(tests []entity.Test) []TimelineBucket {
	counts := make(map[time.Time]map[entity.TestStatus]int)

	for _, t := range tests {
		if t.CompletedAt.IsZero() {
			continue
		}

		bucket := t.CompletedAt.UTC().Truncate(time.Minute)

		if counts[bucket] == nil {
			counts[bucket] = make(map[entity.TestStatus]int)
		}

		counts[bucket][t.Status]++
	}

	var out []TimelineBucket

	for bucket, byStatus := range counts {
		for status, count := range byStatus {
			out = append(out, TimelineBucket{Bucket: bucket, Status: status, Count: count})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Bucket.Equal(out[j].Bucket) {
			return out[i].Bucket.Before(out[j].Bucket)
		}

		return out[i].Status < out[j].Status
	})

	return out
}

func topSlow(tests []entity.Test) []SlowTest {
	rows := make([]SlowTest, 0, len(tests))

	for _, t := range tests {
		rows = append(rows, SlowTest{Name: t.Name, Suite: t.Suite, DurationMs: t.DurationMs, Status: t.Status})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].DurationMs != rows[j].DurationMs {
			return rows[i].DurationMs > rows[j].DurationMs
		}

		return rows[i].Name < rows[j].Name
	})

	if len(rows) > topSlowLimit {
		rows = rows[:topSlowLimit]
	}

	return rows
}

func causalityWalk(tests []entity.Test, signalsByTest map[ids.ID][]entity.Signal) []CausalityTrail {
	var trails []CausalityTrail

	for _, t := range tests {
		if t.Status != entity.TestFail || t.CompletedAt.IsZero() {
			continue
		}

		var nearby []NearbySignal

		for _, s := range signalsByTest[t.ID] {
			diff := s.Timestamp.Sub(t.CompletedAt)
			if diff < -causalityWindow || diff > causalityWindow {
				continue
			}

			nearby = append(nearby, NearbySignal{
				Kind:            s.Kind,
				At:              s.Timestamp,
				LatencyMs:       s.LatencyMs,
				TimeDiffSeconds: int(diff.Round(time.Second).Seconds()),
			})
		}

		sort.Slice(nearby, func(i, j int) bool { return nearby[i].TimeDiffSeconds < nearby[j].TimeDiffSeconds })

		trails = append(trails, CausalityTrail{TestName: t.Name, TestFailedAt: t.CompletedAt, Signals: nearby})
	}

	return trails
}
