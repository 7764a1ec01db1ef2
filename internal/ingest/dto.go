package ingest

import (
	"time"

	"github.com/liminalqa/liminal/internal/entity"
	"github.com/liminalqa/liminal/internal/ids"
)

// RunInput is the wire shape of a Run envelope. ID is optional: callers
// that want idempotent retries supply their own run id and re-post the
// identical value; a blank ID is minted fresh.
type RunInput struct {
	ID            ids.ID
	BuildRef      ids.ID
	PlanName      string
	Env           map[string]string
	StartedAt     time.Time
	RunnerVersion string
}

// TestInput is the wire shape of one Test within a batch. ID is optional;
// re-posting the same (RunRef, Name) pair resolves to the existing test
// identity rather than creating a duplicate.
type TestInput struct {
	ID          ids.ID
	Name        string
	Suite       string
	Guidance    string
	Status      string // accepted case-insensitively with aliases, see entity.ParseTestStatus
	DurationMs  int64
	Error       *entity.TestError
	StartedAt   time.Time
	CompletedAt time.Time
}

// SignalInput is the wire shape of one Signal. A set TestID is used as
// given; otherwise TestName is resolved to a known Test; see resolveTestRef.
type SignalInput struct {
	ID         ids.ID
	TestID     ids.ID
	TestName   string
	Kind       string // accepted case-insensitively with aliases, see entity.ParseSignalKind
	Timestamp  time.Time
	LatencyMs  *float64
	PayloadRef string
	Metadata   map[string]any
}

// ArtifactInput is the wire shape of one Artifact; identity resolution
// matches SignalInput.
type ArtifactInput struct {
	ID       ids.ID
	TestID   ids.ID
	TestName string
	SHA256   string
	Path     string
	Size     int64
	Mime     string
	Kind     string // accepted case-insensitively, see entity.ParseArtifactKind
}

// BatchInput is the combined `/ingest/batch` envelope.
type BatchInput struct {
	Run       RunInput
	Tests     []TestInput
	Signals   []SignalInput
	Artifacts []ArtifactInput
}

// Counts tallies how many records of each kind were successfully
// committed. Returned in full on success, and as partial_counts on
// failure.
type Counts struct {
	Run       int
	Tests     int
	Signals   int
	Artifacts int
}

// BatchResult is the outcome of a Batch call.
type BatchResult struct {
	Counts    Counts
	TestIDMap map[string]ids.ID
}
