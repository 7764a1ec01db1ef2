// Package entity defines the typed records persisted by the fact store:
// System, Build, Run, Test, Signal, Artifact, Resonance, and the Fact
// envelope that attaches attribute/value assertions to them.
//
// Serialization is schema-tolerant: missing optional fields keep their
// zero value, and top-level fields a decoder does not recognize are
// parked in the entity's Extra map and spliced back on encode (json.go),
// so records written by a newer schema survive a round-trip intact.
package entity

import "github.com/liminalqa/liminal/internal/ids"

// Kind identifies an entity's variant, used by the Fact Store's type index.
type Kind string

const (
	KindSystem    Kind = "system"
	KindBuild     Kind = "build"
	KindRun       Kind = "run"
	KindTest      Kind = "test"
	KindSignal    Kind = "signal"
	KindArtifact  Kind = "artifact"
	KindResonance Kind = "resonance"
)

// Entity is implemented by every persisted record.
type Entity interface {
	EntityID() ids.ID
	EntityKind() Kind
}
