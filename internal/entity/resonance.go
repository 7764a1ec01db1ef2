package entity

import (
	"time"

	"github.com/liminalqa/liminal/internal/ids"
)

// Pattern describes a derived stability pattern (flake, drift) recorded by
// a detector.
type Pattern struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Score       float64   `json:"score"`
	Occurrences int       `json:"occurrences"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// Resonance is a derived record upserted by the flake and drift
// detectors, never written by adapters directly. It holds no
// back-pointers to Runs; affected Tests are resolved by id lookup through
// the fact store on read.
type Resonance struct {
	ID            ids.ID   `json:"id"`
	Pattern       Pattern  `json:"pattern"`
	AffectedTests []ids.ID `json:"affected_tests"`
	Extra         Extra    `json:"-"`
}

func (r Resonance) EntityID() ids.ID { return r.ID }
func (r Resonance) EntityKind() Kind { return KindResonance }
