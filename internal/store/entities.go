package store

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/liminalqa/liminal/internal/entity"
	"github.com/liminalqa/liminal/internal/errs"
	"github.com/liminalqa/liminal/internal/ids"
)

// PutEntity persists e and its type-index entry in a single bbolt
// transaction.
func (s *Store) PutEntity(e entity.Entity) error {
	blob, err := encodeEntity(e)
	if err != nil {
		return errs.Serialization(err)
	}

	id := string(e.EntityID())
	kind := string(e.EntityKind())

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketEntities).Put([]byte(id), blob); err != nil {
			return err
		}

		return tx.Bucket(bucketIdxEntityType).Put(entityTypeKey(kind, id), []byte(id))
	})
	if err != nil {
		return errs.Storage(fmt.Errorf("store: put entity %s: %w", id, err))
	}

	return nil
}

// GetEntity looks up an entity by id, returning (nil, nil) if absent.
func (s *Store) GetEntity(id ids.ID) (entity.Entity, error) {
	var blob []byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketEntities).Get([]byte(id))
		if v != nil {
			blob = append([]byte(nil), v...)
		}

		return nil
	})
	if err != nil {
		return nil, errs.Storage(fmt.Errorf("store: get entity %s: %w", id, err))
	}

	if blob == nil {
		return nil, nil
	}

	e, err := decodeEntity(blob)
	if err != nil {
		return nil, errs.Serialization(err)
	}

	return e, nil
}

// GetEntitiesByType returns the ids of every entity of the given kind,
// via the idx_entity_type keyspace.
func (s *Store) GetEntitiesByType(kind entity.Kind) ([]ids.ID, error) {
	var out []ids.ID

	prefix := entityTypePrefix(string(kind))

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketIdxEntityType).Cursor()

		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			out = append(out, ids.ID(append([]byte(nil), v...)))
		}

		return nil
	})
	if err != nil {
		return nil, errs.Storage(fmt.Errorf("store: scan entities by type %s: %w", kind, err))
	}

	return out, nil
}

// FindTestByName resolves an (run_id, name) pair to the registered Test's
// id via idx_test_name, returning (Empty, false) if no such Test exists.
func (s *Store) FindTestByName(runID ids.ID, name string) (ids.ID, bool, error) {
	var found ids.ID

	key := testNameKey(string(runID), name)

	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketIdxTestName).Get(key)
		if v != nil {
			found = ids.ID(append([]byte(nil), v...))
		}

		return nil
	})
	if err != nil {
		return ids.Empty, false, errs.Storage(fmt.Errorf("store: find test by name: %w", err))
	}

	if found == ids.Empty {
		return ids.Empty, false, nil
	}

	return found, true, nil
}

// RegisterTestName records the (run_id, name) → test_id mapping. Callers
// must check FindTestByName first: a second registration of the same
// pair must resolve to the existing identity, not overwrite it.
func (s *Store) RegisterTestName(runID ids.ID, name string, testID ids.ID) error {
	key := testNameKey(string(runID), name)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIdxTestName).Put(key, []byte(testID))
	})
	if err != nil {
		return errs.Storage(fmt.Errorf("store: register test name: %w", err))
	}

	return nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}

	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}

	return true
}
