package entity

import "github.com/liminalqa/liminal/internal/ids"

// System is the root of the entity hierarchy: one per target software
// under test.
type System struct {
	ID         ids.ID `json:"id"`
	Name       string `json:"name"`
	Version    string `json:"version,omitempty"`
	Repository string `json:"repository,omitempty"`
	Extra      Extra  `json:"-"`
}

func (s System) EntityID() ids.ID { return s.ID }
func (s System) EntityKind() Kind { return KindSystem }

// Validate checks the required fields of a System.
func (s System) Validate() error {
	if s.Name == "" {
		return ErrSystemNameEmpty
	}

	return nil
}
