// Package ingest implements the ingest service: the only writer of new
// Tests, Signals, and Artifacts into the fact store. A single Batch call
// persists a Run and its children in a fixed order, running the flake
// and drift detectors and updating the metrics registry per completed
// Test.
package ingest

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/liminalqa/liminal/internal/detect"
	"github.com/liminalqa/liminal/internal/entity"
	"github.com/liminalqa/liminal/internal/errs"
	"github.com/liminalqa/liminal/internal/ids"
	"github.com/liminalqa/liminal/internal/metrics"
	"github.com/liminalqa/liminal/internal/temporal"
)

// flakeHistoryWindow and driftHistoryWindow are the (name, suite)
// history sampling depths: 20 runs for flake, 50 for drift.
const (
	flakeHistoryWindow = 20
	driftHistoryWindow = 50
)

// store is the subset of internal/store.Store the Ingest Service writes
// and reads through.
type store interface {
	PutEntity(e entity.Entity) error
	GetEntity(id ids.ID) (entity.Entity, error)
	GetEntitiesByType(kind entity.Kind) ([]ids.ID, error)
	PutFact(f entity.Fact) error
	FindTestByName(runID ids.ID, name string) (ids.ID, bool, error)
	RegisterTestName(runID ids.ID, name string, testID ids.ID) error
	Flush() error
}

// Service orchestrates batch ingestion.
type Service struct {
	store   store
	metrics *metrics.Registry
	ids     *ids.Source
	flake   detect.FlakeDetector
	drift   detect.DriftDetector
	log     *slog.Logger
}

// New builds a Service over store, recording detector findings to reg and
// logging to log.
func New(s store, reg *metrics.Registry, log *slog.Logger) *Service {
	return &Service{
		store:   s,
		metrics: reg,
		ids:     ids.NewSource(),
		flake:   detect.DefaultFlakeDetector(),
		drift:   detect.DefaultDriftDetector(),
		log:     log,
	}
}

// Batch persists a Run and its Tests, Signals, and Artifacts in the
// mandatory order: Run; Tests (+ per-test detectors and metrics); Signals;
// Artifacts; flush. On error it returns the counts successfully committed
// so far alongside the error, so clients can compute what to resend.
func (s *Service) Batch(in BatchInput) (*BatchResult, error) {
	result := &BatchResult{TestIDMap: map[string]ids.ID{}}

	runID, err := s.persistRun(in.Run)
	if err != nil {
		return result, err
	}

	result.Counts.Run = 1

	for _, t := range in.Tests {
		testID, err := s.persistTest(runID, t)
		if err != nil {
			return result, err
		}

		result.TestIDMap[t.Name] = testID
		result.Counts.Tests++
	}

	for _, sig := range in.Signals {
		if err := s.persistSignal(runID, result.TestIDMap, sig); err != nil {
			return result, err
		}

		result.Counts.Signals++
	}

	for _, art := range in.Artifacts {
		if err := s.persistArtifact(runID, result.TestIDMap, art); err != nil {
			return result, err
		}

		result.Counts.Artifacts++
	}

	if err := s.store.Flush(); err != nil {
		return result, errs.Storage(fmt.Errorf("ingest: flush: %w", err))
	}

	return result, nil
}

// PersistRun persists a standalone Run envelope (`POST /ingest/run`).
func (s *Service) PersistRun(in RunInput) (ids.ID, error) {
	return s.persistRun(in)
}

// PersistTests persists a standalone Tests envelope (`POST /ingest/tests`)
// against an already-open Run, returning the name→id map for every Test
// successfully committed and the count committed so far on error.
func (s *Service) PersistTests(runID ids.ID, in []TestInput) (map[string]ids.ID, int, error) {
	testIDMap := map[string]ids.ID{}

	for _, t := range in {
		testID, err := s.persistTest(runID, t)
		if err != nil {
			return testIDMap, len(testIDMap), err
		}

		testIDMap[t.Name] = testID
	}

	return testIDMap, len(testIDMap), nil
}

// PersistSignals persists a standalone Signals envelope
// (`POST /ingest/signals`), resolving each signal's test reference via its
// explicit TestID or a fallback lookup in the store's idx_test_name (no
// in-batch name map exists outside of `/ingest/batch`).
func (s *Service) PersistSignals(runID ids.ID, in []SignalInput) (int, error) {
	var committed int

	for _, sig := range in {
		if err := s.persistSignal(runID, nil, sig); err != nil {
			return committed, err
		}

		committed++
	}

	return committed, nil
}

// PersistArtifacts persists a standalone Artifacts envelope
// (`POST /ingest/artifacts`), mirroring PersistSignals' resolution chain.
func (s *Service) PersistArtifacts(runID ids.ID, in []ArtifactInput) (int, error) {
	var committed int

	for _, art := range in {
		if err := s.persistArtifact(runID, nil, art); err != nil {
			return committed, err
		}

		committed++
	}

	return committed, nil
}

// Flush forces durability of every write issued so far.
func (s *Service) Flush() error {
	return s.store.Flush()
}

func (s *Service) persistRun(in RunInput) (ids.ID, error) {
	id := in.ID
	if id == ids.Empty {
		id = s.ids.New()
	}

	run := entity.Run{
		ID: id, BuildRef: in.BuildRef, PlanName: in.PlanName, Env: in.Env,
		StartedAt: in.StartedAt, RunnerVersion: in.RunnerVersion,
	}

	if err := run.Validate(); err != nil {
		return ids.Empty, errs.Validation(err)
	}

	if err := s.store.PutEntity(run); err != nil {
		return ids.Empty, err
	}

	return id, nil
}

// persistTest registers (or resolves) a Test's identity, persists it, then
// runs its per-test post-processing: flake detection, drift detection, and
// metric observation.
func (s *Service) persistTest(runID ids.ID, in TestInput) (ids.ID, error) {
	if existingID, found, err := s.store.FindTestByName(runID, in.Name); err != nil {
		return ids.Empty, err
	} else if found {
		return existingID, nil
	}

	id := in.ID
	if id == ids.Empty {
		id = s.ids.New()
	}

	status := entity.ParseTestStatus(in.Status)

	t := entity.Test{
		ID: id, RunRef: runID, Name: in.Name, Suite: in.Suite, Guidance: in.Guidance,
		Status: status, DurationMs: in.DurationMs, Error: in.Error,
		StartedAt: in.StartedAt, CompletedAt: in.CompletedAt,
	}

	if err := t.Validate(); err != nil {
		return ids.Empty, errs.Validation(err)
	}

	if err := s.store.PutEntity(t); err != nil {
		return ids.Empty, err
	}

	if err := s.store.RegisterTestName(runID, in.Name, id); err != nil {
		return ids.Empty, err
	}

	if err := s.recordTestFacts(t); err != nil {
		return ids.Empty, err
	}

	s.postProcessTest(t)

	return id, nil
}

// recordTestFacts appends the test's outcome to the bi-temporal record:
// valid_time is backdated to the completion instant, tx_time is the
// ingest-side wall clock.
func (s *Service) recordTestFacts(t entity.Test) error {
	validTime := t.CompletedAt
	if validTime.IsZero() {
		validTime = time.Now()
	}

	stamp := temporal.NewStamp(validTime, time.Now())

	facts := []entity.Fact{
		{ID: s.ids.New(), EntityRef: t.ID, Attribute: entity.AttrTestStatus.String(), Value: string(t.Status), Time: stamp},
		{ID: s.ids.New(), EntityRef: t.ID, Attribute: entity.AttrTestDuration.String(), Value: t.DurationMs, Time: stamp},
	}

	for _, f := range facts {
		if err := s.store.PutFact(f); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) postProcessTest(t entity.Test) {
	s.metrics.ActiveTests.Inc()
	defer s.metrics.ActiveTests.Dec()

	history, err := s.testHistory(t.Name, t.Suite)
	if err != nil {
		s.log.Warn("ingest: failed to load test history", "test", t.Name, "error", err)
	} else {
		s.checkFlake(t, history)
		s.checkDrift(t, history)
	}

	s.metrics.ObserveTest(t.Name, t.Suite, string(t.Status), t.DurationMs, t.Status.IsPass())
}

// testHistory returns every prior Test sharing (name, suite), oldest
// first, including the just-persisted t.
func (s *Service) testHistory(name, suite string) ([]entity.Test, error) {
	testIDs, err := s.store.GetEntitiesByType(entity.KindTest)
	if err != nil {
		return nil, errs.Storage(fmt.Errorf("ingest: list tests: %w", err))
	}

	var history []entity.Test

	for _, id := range testIDs {
		e, err := s.store.GetEntity(id)
		if err != nil {
			return nil, errs.Storage(fmt.Errorf("ingest: load test %s: %w", id, err))
		}

		t, ok := e.(entity.Test)
		if !ok || t.Name != name || t.Suite != suite {
			continue
		}

		history = append(history, t)
	}

	sortTestsByCompletion(history)

	return history, nil
}

func sortTestsByCompletion(tests []entity.Test) {
	sort.SliceStable(tests, func(i, j int) bool {
		return tests[i].CompletedAt.Before(tests[j].CompletedAt)
	})
}

// checkFlake computes the flake score over the trailing flakeHistoryWindow
// runs and, if flaky, upserts the test's Resonance entity.
func (s *Service) checkFlake(t entity.Test, history []entity.Test) {
	window := history
	if len(window) > flakeHistoryWindow {
		window = window[len(window)-flakeHistoryWindow:]
	}

	statuses := make([]entity.TestStatus, len(window))
	for i, h := range window {
		statuses[i] = h.Status
	}

	if !s.flake.IsFlaky(statuses) {
		return
	}

	score := s.flake.Score(statuses)

	if err := s.upsertResonance(t, score); err != nil {
		s.log.Warn("ingest: failed to upsert resonance", "test", t.Name, "error", err)

		return
	}

	s.metrics.FindingsTotal.Inc()
}

func (s *Service) upsertResonance(t entity.Test, score float64) error {
	patternID := t.Suite + "/" + t.Name

	existing, err := s.findResonance(patternID)
	if err != nil {
		return err
	}

	now := t.CompletedAt

	if existing == nil {
		existing = &entity.Resonance{
			ID: s.ids.New(),
			Pattern: entity.Pattern{
				ID: patternID, Description: "status oscillation", FirstSeen: now,
			},
		}
	}

	existing.Pattern.Score = score
	existing.Pattern.Occurrences++
	existing.Pattern.LastSeen = now
	existing.AffectedTests = appendUnique(existing.AffectedTests, t.ID)

	if err := s.store.PutEntity(*existing); err != nil {
		return err
	}

	return s.store.PutFact(entity.Fact{
		ID:        s.ids.New(),
		EntityRef: existing.ID,
		Attribute: entity.AttrResonanceScore.String(),
		Value:     score,
		Time:      temporal.NewStamp(now, time.Now()),
	})
}

func (s *Service) findResonance(patternID string) (*entity.Resonance, error) {
	resonanceIDs, err := s.store.GetEntitiesByType(entity.KindResonance)
	if err != nil {
		return nil, errs.Storage(fmt.Errorf("ingest: list resonance: %w", err))
	}

	for _, id := range resonanceIDs {
		e, err := s.store.GetEntity(id)
		if err != nil {
			return nil, errs.Storage(fmt.Errorf("ingest: load resonance %s: %w", id, err))
		}

		r, ok := e.(entity.Resonance)
		if ok && r.Pattern.ID == patternID {
			return &r, nil
		}
	}

	return nil, nil
}

func appendUnique(existingIDs []ids.ID, id ids.ID) []ids.ID {
	for _, existing := range existingIDs {
		if existing == id {
			return existingIDs
		}
	}

	return append(existingIDs, id)
}

// checkDrift computes mean/stddev over the trailing driftHistoryWindow
// durations, updates the baseline gauges, and logs when the current
// duration drifts beyond the detector's threshold. The just-persisted
// test is excluded from its own baseline so an outlier does not dampen
// the z-score it is judged by.
func (s *Service) checkDrift(t entity.Test, history []entity.Test) {
	window := make([]entity.Test, 0, len(history))
	for _, h := range history {
		if h.ID != t.ID {
			window = append(window, h)
		}
	}

	if len(window) > driftHistoryWindow {
		window = window[len(window)-driftHistoryWindow:]
	}

	if len(window) == 0 {
		return
	}

	durations := make([]float64, len(window))
	for i, h := range window {
		durations[i] = float64(h.DurationMs)
	}

	mean, stddev := s.drift.Stats(durations)
	s.metrics.SetBaseline(t.Name, t.Suite, mean, stddev)

	if s.drift.IsDrift(float64(t.DurationMs), mean, stddev) {
		s.log.Info("drift detected",
			"test", t.Name, "suite", t.Suite,
			"duration_ms", t.DurationMs, "mean_ms", mean, "stddev_ms", stddev,
		)
	}
}

// persistSignal resolves sig's test reference through the fallback
// chain: explicit TestID, then the in-batch name map, then
// idx_test_name.
func (s *Service) persistSignal(runID ids.ID, testIDMap map[string]ids.ID, sig SignalInput) error {
	testRef, err := s.resolveTestRef(runID, testIDMap, sig.TestID, sig.TestName)
	if err != nil {
		return err
	}

	id := sig.ID
	if id == ids.Empty {
		id = s.ids.New()
	}

	signal := entity.Signal{
		ID: id, TestRef: testRef, Kind: entity.ParseSignalKind(sig.Kind),
		Timestamp: sig.Timestamp, LatencyMs: sig.LatencyMs,
		PayloadRef: sig.PayloadRef, Metadata: sig.Metadata,
	}

	if err := signal.Validate(); err != nil {
		return errs.Validation(err)
	}

	return s.store.PutEntity(signal)
}

// persistArtifact mirrors persistSignal's identity resolution and write.
func (s *Service) persistArtifact(runID ids.ID, testIDMap map[string]ids.ID, art ArtifactInput) error {
	testRef, err := s.resolveTestRef(runID, testIDMap, art.TestID, art.TestName)
	if err != nil {
		return err
	}

	id := art.ID
	if id == ids.Empty {
		id = s.ids.New()
	}

	artifact := entity.Artifact{
		ID: id, TestRef: testRef, SHA256: art.SHA256, Path: art.Path,
		Size: art.Size, Mime: art.Mime, Kind: entity.ParseArtifactKind(art.Kind),
	}

	if err := artifact.Validate(); err != nil {
		return errs.Validation(err)
	}

	return s.store.PutEntity(artifact)
}

// resolveTestRef implements the four-step identity resolution fallback
// chain.
func (s *Service) resolveTestRef(runID ids.ID, testIDMap map[string]ids.ID, testID ids.ID, testName string) (ids.ID, error) {
	if testID != ids.Empty {
		return testID, nil
	}

	if id, ok := testIDMap[testName]; ok {
		return id, nil
	}

	id, found, err := s.store.FindTestByName(runID, testName)
	if err != nil {
		return ids.Empty, err
	}

	if !found {
		return ids.Empty, errs.NotFound(fmt.Errorf("ingest: test %q not found", testName))
	}

	return id, nil
}
