package entity

import (
	"time"

	"github.com/liminalqa/liminal/internal/ids"
)

// BuildStatus is the Build lifecycle state. Transitions move forward only;
// terminal states (Success, Failed, Cancelled) are immutable.
type BuildStatus string

const (
	BuildPending   BuildStatus = "pending"
	BuildRunning   BuildStatus = "running"
	BuildSuccess   BuildStatus = "success"
	BuildFailed    BuildStatus = "failed"
	BuildCancelled BuildStatus = "cancelled"
)

// Terminal reports whether the status cannot transition further.
func (s BuildStatus) Terminal() bool {
	switch s {
	case BuildSuccess, BuildFailed, BuildCancelled:
		return true
	default:
		return false
	}
}

func (s BuildStatus) valid() bool {
	switch s {
	case BuildPending, BuildRunning, BuildSuccess, BuildFailed, BuildCancelled:
		return true
	default:
		return false
	}
}

// Build is a parent of Runs, belonging to one System.
type Build struct {
	ID        ids.ID      `json:"id"`
	SystemRef ids.ID      `json:"system_ref"`
	Commit    string      `json:"commit"`
	Branch    string      `json:"branch,omitempty"`
	Status    BuildStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Extra     Extra       `json:"-"`
}

func (b Build) EntityID() ids.ID { return b.ID }
func (b Build) EntityKind() Kind { return KindBuild }

// Validate checks the required fields of a Build.
func (b Build) Validate() error {
	if b.SystemRef == ids.Empty {
		return ErrBuildSystemRefEmpty
	}

	if b.Commit == "" {
		return ErrBuildCommitEmpty
	}

	if !b.Status.valid() {
		return ErrBuildStatusInvalid
	}

	return nil
}
