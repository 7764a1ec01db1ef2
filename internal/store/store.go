// Package store implements the fact store: durable, crash-consistent
// storage of entities, facts, and the indexes that make the query engine
// efficient, backed by an embedded ordered KV store.
//
// The backend is go.etcd.io/bbolt. Each logical keyspace (entities,
// facts, idx_valid_time, idx_tx_time, idx_entity_type, idx_test_name) is
// a top-level bbolt bucket. bbolt's single-writer/many-reader transaction
// model gives the store's concurrency guarantee without any additional
// locking.
package store

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Bucket names, one per keyspace.
var (
	bucketEntities      = []byte("entities")
	bucketFacts         = []byte("facts")
	bucketIdxValidTime  = []byte("idx_valid_time")
	bucketIdxTxTime     = []byte("idx_tx_time")
	bucketIdxEntityType = []byte("idx_entity_type")
	bucketIdxTestName   = []byte("idx_test_name")

	allBuckets = [][]byte{
		bucketEntities, bucketFacts, bucketIdxValidTime,
		bucketIdxTxTime, bucketIdxEntityType, bucketIdxTestName,
	}
)

// Config configures a Store. The database path is the location named by
// the LIMINAL_DB_PATH environment variable.
type Config struct {
	Path        string
	OpenTimeout time.Duration
	ReadOnly    bool
}

// DefaultConfig returns sane defaults for a Store opened from disk.
func DefaultConfig(path string) Config {
	return Config{Path: path, OpenTimeout: 5 * time.Second}
}

// Store wraps a bbolt database handle, exposing the keyspace
// operations. It is safe for concurrent use.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) the bbolt database at cfg.Path and
// ensures every keyspace bucket exists.
func Open(cfg Config) (*Store, error) {
	db, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{
		Timeout:  cfg.OpenTimeout,
		ReadOnly: cfg.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Path, err)
	}

	if !cfg.ReadOnly {
		if err := db.Update(func(tx *bbolt.Tx) error {
			for _, b := range allBuckets {
				if _, err := tx.CreateBucketIfNotExists(b); err != nil {
					return fmt.Errorf("store: create bucket %s: %w", b, err)
				}
			}

			return nil
		}); err != nil {
			_ = db.Close()

			return nil, err
		}
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle. Safe to call once.
func (s *Store) Close() error {
	return s.db.Close()
}

// Flush forces durability of all writes made so far. bbolt fsyncs on
// every committed write transaction, so this is a liveness check rather
// than a required durability step — kept as an explicit operation of the
// store's contract.
func (s *Store) Flush() error {
	return s.db.Sync()
}

// HealthCheck verifies the store is reachable within the given context's
// deadline.
func (s *Store) HealthCheck(ctx context.Context) error {
	done := make(chan error, 1)

	go func() {
		done <- s.db.View(func(_ *bbolt.Tx) error { return nil })
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("store: health check: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("store: health check: %w", err)
		}

		return nil
	}
}

// Stats exposes bbolt's internal statistics for observability.
func (s *Store) Stats() bbolt.Stats {
	return s.db.Stats()
}
