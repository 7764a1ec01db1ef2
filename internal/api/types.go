package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/liminalqa/liminal/internal/entity"
	"github.com/liminalqa/liminal/internal/ids"
	"github.com/liminalqa/liminal/internal/ingest"
	"github.com/liminalqa/liminal/internal/query"
	"github.com/liminalqa/liminal/internal/temporal"
)

// RunDTO is the wire shape of `POST /ingest/run`.
type RunDTO struct {
	ID            string            `json:"id,omitempty"`
	BuildRef      string            `json:"build_ref"`
	PlanName      string            `json:"plan_name"`
	Env           map[string]string `json:"env,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	RunnerVersion string            `json:"runner_version,omitempty"`
}

func (d RunDTO) toInput() (ingest.RunInput, error) {
	in := ingest.RunInput{
		PlanName:      d.PlanName,
		Env:           d.Env,
		StartedAt:     d.StartedAt,
		RunnerVersion: d.RunnerVersion,
	}

	if d.ID != "" {
		id, err := ids.Parse(d.ID)
		if err != nil {
			return ingest.RunInput{}, err
		}

		in.ID = id
	}

	if d.BuildRef != "" {
		buildRef, err := ids.Parse(d.BuildRef)
		if err != nil {
			return ingest.RunInput{}, err
		}

		in.BuildRef = buildRef
	}

	return in, nil
}

// TestDTO is the wire shape of one Test within `/ingest/tests` or
// `/ingest/batch`.
type TestDTO struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name"`
	Suite       string            `json:"suite,omitempty"`
	Guidance    string            `json:"guidance,omitempty"`
	Status      string            `json:"status"`
	DurationMs  int64             `json:"duration_ms"`
	Error       *entity.TestError `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
}

func (d TestDTO) toInput() (ingest.TestInput, error) {
	in := ingest.TestInput{
		Name:        d.Name,
		Suite:       d.Suite,
		Guidance:    d.Guidance,
		Status:      d.Status,
		DurationMs:  d.DurationMs,
		Error:       d.Error,
		StartedAt:   d.StartedAt,
		CompletedAt: d.CompletedAt,
	}

	if d.ID != "" {
		id, err := ids.Parse(d.ID)
		if err != nil {
			return ingest.TestInput{}, err
		}

		in.ID = id
	}

	return in, nil
}

// SignalDTO is the wire shape of one Signal within `/ingest/signals` or
// `/ingest/batch`. A set TestID is used as given; otherwise TestName must
// resolve to a known Test.
type SignalDTO struct {
	ID         string         `json:"id,omitempty"`
	TestID     string         `json:"test_id,omitempty"`
	TestName   string         `json:"test_name,omitempty"`
	Kind       string         `json:"kind"`
	Timestamp  time.Time      `json:"timestamp"`
	LatencyMs  *float64       `json:"latency_ms,omitempty"`
	PayloadRef string         `json:"payload_ref,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (d SignalDTO) toInput() (ingest.SignalInput, error) {
	in := ingest.SignalInput{
		TestName:   d.TestName,
		Kind:       d.Kind,
		Timestamp:  d.Timestamp,
		LatencyMs:  d.LatencyMs,
		PayloadRef: d.PayloadRef,
		Metadata:   d.Metadata,
	}

	if d.ID != "" {
		id, err := ids.Parse(d.ID)
		if err != nil {
			return ingest.SignalInput{}, err
		}

		in.ID = id
	}

	if d.TestID != "" {
		testID, err := ids.Parse(d.TestID)
		if err != nil {
			return ingest.SignalInput{}, err
		}

		in.TestID = testID
	}

	return in, nil
}

// ArtifactDTO is the wire shape of one Artifact within `/ingest/artifacts`
// or `/ingest/batch`.
type ArtifactDTO struct {
	ID       string `json:"id,omitempty"`
	TestID   string `json:"test_id,omitempty"`
	TestName string `json:"test_name,omitempty"`
	SHA256   string `json:"sha256"`
	Path     string `json:"path,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Mime     string `json:"mime,omitempty"`
	Kind     string `json:"kind"`
}

func (d ArtifactDTO) toInput() (ingest.ArtifactInput, error) {
	in := ingest.ArtifactInput{
		TestName: d.TestName,
		SHA256:   d.SHA256,
		Path:     d.Path,
		Size:     d.Size,
		Mime:     d.Mime,
		Kind:     d.Kind,
	}

	if d.ID != "" {
		id, err := ids.Parse(d.ID)
		if err != nil {
			return ingest.ArtifactInput{}, err
		}

		in.ID = id
	}

	if d.TestID != "" {
		testID, err := ids.Parse(d.TestID)
		if err != nil {
			return ingest.ArtifactInput{}, err
		}

		in.TestID = testID
	}

	return in, nil
}

// TestsRequest is the body of `POST /ingest/tests`.
type TestsRequest struct {
	RunID string    `json:"run_id"`
	Tests []TestDTO `json:"tests"`
}

// SignalsRequest is the body of `POST /ingest/signals`.
type SignalsRequest struct {
	RunID   string      `json:"run_id"`
	Signals []SignalDTO `json:"signals"`
}

// ArtifactsRequest is the body of `POST /ingest/artifacts`.
type ArtifactsRequest struct {
	RunID     string        `json:"run_id"`
	Artifacts []ArtifactDTO `json:"artifacts"`
}

// BatchRequest is the body of `POST /ingest/batch`.
type BatchRequest struct {
	Run       RunDTO        `json:"run"`
	Tests     []TestDTO     `json:"tests"`
	Signals   []SignalDTO   `json:"signals"`
	Artifacts []ArtifactDTO `json:"artifacts"`
}

func (req BatchRequest) toInput() (ingest.BatchInput, error) {
	runIn, err := req.Run.toInput()
	if err != nil {
		return ingest.BatchInput{}, err
	}

	in := ingest.BatchInput{Run: runIn}

	for _, t := range req.Tests {
		testIn, err := t.toInput()
		if err != nil {
			return ingest.BatchInput{}, err
		}

		in.Tests = append(in.Tests, testIn)
	}

	for _, s := range req.Signals {
		sigIn, err := s.toInput()
		if err != nil {
			return ingest.BatchInput{}, err
		}

		in.Signals = append(in.Signals, sigIn)
	}

	for _, a := range req.Artifacts {
		artIn, err := a.toInput()
		if err != nil {
			return ingest.BatchInput{}, err
		}

		in.Artifacts = append(in.Artifacts, artIn)
	}

	return in, nil
}

// DecodeBatchRequest decodes a raw JSON batch envelope into an
// ingest.BatchInput. It is exported so cmd/liminal-ingestd can apply the
// exact same DTO conversion the synchronous `/ingest/batch` handler uses
// when replaying a message off the async topic (internal/asyncingest).
func DecodeBatchRequest(payload []byte) (ingest.BatchInput, error) {
	var req BatchRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return ingest.BatchInput{}, fmt.Errorf("api: decode batch envelope: %w", err)
	}

	return req.toInput()
}

// asyncBatchResponse is the `202 Accepted` shape of
// `POST /ingest/batch/async`.
type asyncBatchResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// simpleResponse is the `{ok,message}` shape used by /ingest/run.
type simpleResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// countResponse is the `{ok,count}` shape used by /ingest/tests,
// /ingest/signals, /ingest/artifacts.
type countResponse struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

// countsDTO mirrors ingest.Counts for JSON output.
type countsDTO struct {
	Run       int `json:"run"`
	Tests     int `json:"tests"`
	Signals   int `json:"signals"`
	Artifacts int `json:"artifacts"`
}

func toCountsDTO(c ingest.Counts) countsDTO {
	return countsDTO{Run: c.Run, Tests: c.Tests, Signals: c.Signals, Artifacts: c.Artifacts}
}

// batchResponse is the success shape of `POST /ingest/batch`.
type batchResponse struct {
	OK        bool              `json:"ok"`
	Message   string            `json:"message,omitempty"`
	Counts    countsDTO         `json:"counts"`
	TestIDMap map[string]string `json:"test_id_map"`
}

// batchFailureResponse is the failure shape of `POST /ingest/batch`,
// carrying the partial-commit counts alongside the RFC 7807
// problem detail.
type batchFailureResponse struct {
	*ProblemDetail

	PartialCounts countsDTO `json:"partial_counts"`
}

func toTestIDMapDTO(m map[string]ids.ID) map[string]string {
	out := make(map[string]string, len(m))
	for name, id := range m {
		out[name] = id.String()
	}

	return out
}

// timeRangeDTO is the wire shape of a Query DSL time range.
type timeRangeDTO struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

func (d *timeRangeDTO) toRange() *temporal.Range {
	if d == nil {
		return nil
	}

	return &temporal.Range{Start: d.Start, End: d.End}
}

// timeshiftDTO is the wire shape of a Query DSL timeshift coordinate.
type timeshiftDTO struct {
	ValidTime time.Time `json:"valid_time"`
	TxTime    time.Time `json:"tx_time"`
}

// QueryRequest is the body of `POST /query`: the query DSL.
type QueryRequest struct {
	EntityIDs      []string      `json:"entity_ids,omitempty"`
	ValidTimeRange *timeRangeDTO `json:"valid_time_range,omitempty"`
	TxTimeRange    *timeRangeDTO `json:"tx_time_range,omitempty"`
	Timeshift      *timeshiftDTO `json:"timeshift,omitempty"`
	Limit          *int          `json:"limit,omitempty"`
}

func (req QueryRequest) toBuilder() (*query.Builder, error) {
	b := query.New()

	if len(req.EntityIDs) > 0 {
		parsed := make([]ids.ID, 0, len(req.EntityIDs))

		for _, raw := range req.EntityIDs {
			id, err := ids.Parse(raw)
			if err != nil {
				return nil, err
			}

			parsed = append(parsed, id)
		}

		b = b.ForEntities(parsed...)
	}

	if r := req.ValidTimeRange.toRange(); r != nil {
		b = b.WithValidTimeRange(*r)
	}

	if r := req.TxTimeRange.toRange(); r != nil {
		b = b.WithTxTimeRange(*r)
	}

	if req.Timeshift != nil {
		b = b.WithTimeshift(temporal.Timeshift{
			ValidTime: req.Timeshift.ValidTime,
			TxTime:    req.Timeshift.TxTime,
		})
	}

	if req.Limit != nil {
		b = b.WithLimit(*req.Limit)
	}

	return b, nil
}

// QueryResponse is the success shape of `POST /query`.
type QueryResponse struct {
	Facts []entity.Fact `json:"facts"`
	Total int           `json:"total"`
}

// healthResponse is the shape of `GET /health`.
type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}
