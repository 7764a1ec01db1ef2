package entity

import "encoding/json"

// Each entity round-trips through an alias type (same fields, no
// methods) so the custom codecs below cannot recurse. Decoding splits
// unrecognized top-level keys into the entity's Extra map; encoding
// splices them back, so fields written by a newer schema survive a
// store round-trip.

type (
	systemJSON    System
	buildJSON     Build
	runJSON       Run
	testJSON      Test
	signalJSON    Signal
	artifactJSON  Artifact
	resonanceJSON Resonance
	factJSON      Fact
)

func (s *System) UnmarshalJSON(data []byte) error {
	var decoded systemJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	extra, err := splitExtra(data, decoded)
	if err != nil {
		return err
	}

	*s = System(decoded)
	s.Extra = extra

	return nil
}

func (s System) MarshalJSON() ([]byte, error) {
	return mergeExtra(systemJSON(s), s.Extra)
}

func (b *Build) UnmarshalJSON(data []byte) error {
	var decoded buildJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	extra, err := splitExtra(data, decoded)
	if err != nil {
		return err
	}

	*b = Build(decoded)
	b.Extra = extra

	return nil
}

func (b Build) MarshalJSON() ([]byte, error) {
	return mergeExtra(buildJSON(b), b.Extra)
}

func (r *Run) UnmarshalJSON(data []byte) error {
	var decoded runJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	extra, err := splitExtra(data, decoded)
	if err != nil {
		return err
	}

	*r = Run(decoded)
	r.Extra = extra

	return nil
}

func (r Run) MarshalJSON() ([]byte, error) {
	return mergeExtra(runJSON(r), r.Extra)
}

func (t *Test) UnmarshalJSON(data []byte) error {
	var decoded testJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	extra, err := splitExtra(data, decoded)
	if err != nil {
		return err
	}

	*t = Test(decoded)
	t.Extra = extra

	return nil
}

func (t Test) MarshalJSON() ([]byte, error) {
	return mergeExtra(testJSON(t), t.Extra)
}

func (s *Signal) UnmarshalJSON(data []byte) error {
	var decoded signalJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	extra, err := splitExtra(data, decoded)
	if err != nil {
		return err
	}

	*s = Signal(decoded)
	s.Extra = extra

	return nil
}

func (s Signal) MarshalJSON() ([]byte, error) {
	return mergeExtra(signalJSON(s), s.Extra)
}

func (a *Artifact) UnmarshalJSON(data []byte) error {
	var decoded artifactJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	extra, err := splitExtra(data, decoded)
	if err != nil {
		return err
	}

	*a = Artifact(decoded)
	a.Extra = extra

	return nil
}

func (a Artifact) MarshalJSON() ([]byte, error) {
	return mergeExtra(artifactJSON(a), a.Extra)
}

func (r *Resonance) UnmarshalJSON(data []byte) error {
	var decoded resonanceJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	extra, err := splitExtra(data, decoded)
	if err != nil {
		return err
	}

	*r = Resonance(decoded)
	r.Extra = extra

	return nil
}

func (r Resonance) MarshalJSON() ([]byte, error) {
	return mergeExtra(resonanceJSON(r), r.Extra)
}

func (f *Fact) UnmarshalJSON(data []byte) error {
	var decoded factJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	extra, err := splitExtra(data, decoded)
	if err != nil {
		return err
	}

	*f = Fact(decoded)
	f.Extra = extra

	return nil
}

func (f Fact) MarshalJSON() ([]byte, error) {
	return mergeExtra(factJSON(f), f.Extra)
}
