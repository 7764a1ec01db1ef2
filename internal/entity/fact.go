package entity

import (
	"fmt"

	"github.com/liminalqa/liminal/internal/ids"
	"github.com/liminalqa/liminal/internal/temporal"
)

// Attribute names a Fact's assertion. Blessed attributes carry a stable
// wire name; Custom carries any forward-compatible attribute the store
// has not yet been taught a name for. Separating the two means new
// attributes need no schema change.
type Attribute struct {
	name   string
	custom bool
}

// Blessed attribute constants, one per stable wire name this system
// currently understands.
var (
	AttrTestStatus     = Attribute{name: "test/status"}
	AttrTestDuration   = Attribute{name: "test/duration_ms"}
	AttrUIScreenshot   = Attribute{name: "ui/screenshot"}
	AttrAPIResponse    = Attribute{name: "api/response"}
	AttrBuildStatus    = Attribute{name: "build/status"}
	AttrRunClosed      = Attribute{name: "run/closed"}
	AttrResonanceScore = Attribute{name: "resonance/score"}
)

// CustomAttribute wraps a free-form attribute name not among the blessed
// set.
func CustomAttribute(name string) Attribute {
	return Attribute{name: name, custom: true}
}

// String returns the wire name of the attribute.
func (a Attribute) String() string {
	if a.custom {
		return "custom:" + a.name
	}

	return a.name
}

// Custom reports whether this is a free-form attribute.
func (a Attribute) Custom() bool {
	return a.custom
}

// Fact is an append-only attribute-value assertion about an entity at a
// bi-temporal coordinate.
type Fact struct {
	ID        ids.ID         `json:"id"`
	EntityRef ids.ID         `json:"entity_ref"`
	Attribute string         `json:"attribute"`
	Value     any            `json:"value"`
	Time      temporal.Stamp `json:"time"`
	Extra     Extra          `json:"-"`
}

// Validate checks the required fields of a Fact.
func (f Fact) Validate() error {
	if f.EntityRef == ids.Empty {
		return ErrFactEntityRefEmpty
	}

	if f.Attribute == "" {
		return ErrFactAttributeEmpty
	}

	return nil
}

// String implements fmt.Stringer for debugging/log output.
func (f Fact) String() string {
	return fmt.Sprintf("Fact{entity=%s attr=%s vt=%s tx=%s}",
		f.EntityRef, f.Attribute, f.Time.ValidTime, f.Time.TxTime)
}
