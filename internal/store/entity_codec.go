package store

import (
	"encoding/json"
	"fmt"

	"github.com/liminalqa/liminal/internal/entity"
)

// entityEnvelope wraps an encoded entity with its Kind tag so GetEntity
// can dispatch to the right concrete type on decode. The entity codecs
// keep the blob schema-tolerant: missing optional fields default, and
// unrecognized fields ride along in the entity's Extra map rather than
// being dropped.
type entityEnvelope struct {
	Kind entity.Kind     `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func encodeEntity(e entity.Entity) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("store: encode entity: %w", err)
	}

	return json.Marshal(entityEnvelope{Kind: e.EntityKind(), Data: data})
}

func decodeEntity(blob []byte) (entity.Entity, error) {
	var env entityEnvelope

	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("store: decode entity envelope: %w", err)
	}

	switch env.Kind {
	case entity.KindSystem:
		var s entity.System

		if err := json.Unmarshal(env.Data, &s); err != nil {
			return nil, fmt.Errorf("store: decode system: %w", err)
		}

		return s, nil
	case entity.KindBuild:
		var b entity.Build

		if err := json.Unmarshal(env.Data, &b); err != nil {
			return nil, fmt.Errorf("store: decode build: %w", err)
		}

		return b, nil
	case entity.KindRun:
		var r entity.Run

		if err := json.Unmarshal(env.Data, &r); err != nil {
			return nil, fmt.Errorf("store: decode run: %w", err)
		}

		return r, nil
	case entity.KindTest:
		var t entity.Test

		if err := json.Unmarshal(env.Data, &t); err != nil {
			return nil, fmt.Errorf("store: decode test: %w", err)
		}

		return t, nil
	case entity.KindSignal:
		var sig entity.Signal

		if err := json.Unmarshal(env.Data, &sig); err != nil {
			return nil, fmt.Errorf("store: decode signal: %w", err)
		}

		return sig, nil
	case entity.KindArtifact:
		var a entity.Artifact

		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("store: decode artifact: %w", err)
		}

		return a, nil
	case entity.KindResonance:
		var res entity.Resonance

		if err := json.Unmarshal(env.Data, &res); err != nil {
			return nil, fmt.Errorf("store: decode resonance: %w", err)
		}

		return res, nil
	default:
		return nil, fmt.Errorf("store: unknown entity kind %q", env.Kind)
	}
}
