package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/liminalqa/liminal/internal/entity"
	"github.com/liminalqa/liminal/internal/errs"
	"github.com/liminalqa/liminal/internal/ids"
)

// PutFact writes the fact blob and both temporal-index entries in a
// single bbolt transaction. No per-fact transaction beyond this is
// required, since all writes here are additive and idempotent under
// fact-id uniqueness.
func (s *Store) PutFact(f entity.Fact) error {
	if err := f.Validate(); err != nil {
		return errs.Validation(err)
	}

	blob, err := json.Marshal(f)
	if err != nil {
		return errs.Serialization(fmt.Errorf("store: encode fact: %w", err))
	}

	factID := string(f.ID)
	entityID := string(f.EntityRef)
	validMs := f.Time.ValidTime.UnixMilli()
	txMs := f.Time.TxTime.UnixMilli()

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketFacts).Put([]byte(factID), blob); err != nil {
			return err
		}

		if err := tx.Bucket(bucketIdxValidTime).Put(
			timeIndexKey(validMs, entityID, factID), []byte(factID),
		); err != nil {
			return err
		}

		return tx.Bucket(bucketIdxTxTime).Put(
			timeIndexKey(txMs, entityID, factID), []byte(factID),
		)
	})
	if err != nil {
		return errs.Storage(fmt.Errorf("store: put fact %s: %w", factID, err))
	}

	return nil
}

// PutFactBatch writes each fact via PutFact without wrapping the batch
// in one transaction: partial failure leaves already-written facts
// queryable, which per-fact bbolt transactions give for free. Returns
// the number of facts successfully committed and the first error
// encountered, if any.
func (s *Store) PutFactBatch(facts []entity.Fact) (committed int, err error) {
	for _, f := range facts {
		if putErr := s.PutFact(f); putErr != nil {
			return committed, putErr
		}

		committed++
	}

	return committed, nil
}

// ScanFacts returns every fact in the store. An empty query filter maps
// to this.
func (s *Store) ScanFacts() ([]entity.Fact, error) {
	var out []entity.Fact

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFacts).ForEach(func(_, v []byte) error {
			var f entity.Fact
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}

			out = append(out, f)

			return nil
		})
	})
	if err != nil {
		return nil, errs.Storage(fmt.Errorf("store: scan facts: %w", err))
	}

	return out, nil
}

// ScanFactsByEntities returns every fact whose EntityRef is in ids. No
// dedicated secondary index keys facts by entity_ref, so this is a full
// scan filtered in memory, left open for a future index to narrow
// further.
func (s *Store) ScanFactsByEntities(entityIDs []ids.ID) ([]entity.Fact, error) {
	want := make(map[ids.ID]struct{}, len(entityIDs))
	for _, id := range entityIDs {
		want[id] = struct{}{}
	}

	var out []entity.Fact

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFacts).ForEach(func(_, v []byte) error {
			var f entity.Fact
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}

			if _, ok := want[f.EntityRef]; ok {
				out = append(out, f)
			}

			return nil
		})
	})
	if err != nil {
		return nil, errs.Storage(fmt.Errorf("store: scan facts by entities: %w", err))
	}

	return out, nil
}

// ScanFactsByValidTime returns every fact whose valid_time falls in
// [startMs, endMs). A nil endMs means unbounded, mirroring temporal.Range.
func (s *Store) ScanFactsByValidTime(startMs int64, endMs *int64) ([]entity.Fact, error) {
	var out []entity.Fact

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketIdxValidTime).Cursor()
		facts := tx.Bucket(bucketFacts)

		start := timeIndexPrefix(startMs)

		var endPrefix []byte
		if endMs != nil {
			endPrefix = timeIndexPrefix(*endMs)
		}

		for k, factID := c.Seek(start); k != nil; k, factID = c.Next() {
			if endPrefix != nil && string(k[:timeKeyWidth]) >= string(endPrefix) {
				break
			}

			v := facts.Get(factID)
			if v == nil {
				continue
			}

			var f entity.Fact
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}

			out = append(out, f)
		}

		return nil
	})
	if err != nil {
		return nil, errs.Storage(fmt.Errorf("store: scan facts by valid time: %w", err))
	}

	return out, nil
}
