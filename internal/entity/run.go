package entity

import (
	"time"

	"github.com/liminalqa/liminal/internal/ids"
)

// Run is one execution of a test plan: a parent of Tests, Signals, and
// Artifacts. It is open iff EndedAt is nil; only open Runs accept child
// writes.
type Run struct {
	ID            ids.ID            `json:"id"`
	BuildRef      ids.ID            `json:"build_ref"`
	PlanName      string            `json:"plan_name"`
	Env           map[string]string `json:"env,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	EndedAt       *time.Time        `json:"ended_at,omitempty"`
	RunnerVersion string            `json:"runner_version,omitempty"`
	Extra         Extra             `json:"-"`
}

func (r Run) EntityID() ids.ID { return r.ID }
func (r Run) EntityKind() Kind { return KindRun }

// Open reports whether the Run still accepts child writes.
func (r Run) Open() bool {
	return r.EndedAt == nil
}

// Validate checks the required fields of a Run.
func (r Run) Validate() error {
	if r.BuildRef == ids.Empty {
		return ErrRunBuildRefEmpty
	}

	if r.PlanName == "" {
		return ErrRunPlanNameEmpty
	}

	return nil
}
