// Package bbolt stores run checkpoints in a BoltDB file, one JSON document
// per run.
package bbolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/louisbranch/replaykit/internal/replay"
)

const checkpointBucket = "checkpoints"

var (
	// ErrPathRequired indicates a missing database path.
	ErrPathRequired = errors.New("storage path is required")
	// ErrRunIDRequired indicates a missing run id.
	ErrRunIDRequired = errors.New("run id is required")
	// ErrNotConfigured indicates a store without an open database.
	ErrNotConfigured = errors.New("storage is not configured")
)

// Store is a BoltDB-backed replay.CheckpointStore.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrPathRequired
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save persists the checkpoint of a run.
func (s *Store) Save(ctx context.Context, checkpoint replay.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	checkpoint.RunID = strings.TrimSpace(checkpoint.RunID)
	if checkpoint.RunID == "" {
		return ErrRunIDRequired
	}

	payload, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(checkpointBucket))
		if bucket == nil {
			return fmt.Errorf("checkpoint bucket is missing")
		}
		return bucket.Put([]byte(checkpoint.RunID), payload)
	})
}

// Get fetches the checkpoint of a run.
func (s *Store) Get(ctx context.Context, runID string) (replay.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return replay.Checkpoint{}, err
	}
	if s == nil || s.db == nil {
		return replay.Checkpoint{}, ErrNotConfigured
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return replay.Checkpoint{}, ErrRunIDRequired
	}

	var checkpoint replay.Checkpoint
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(checkpointBucket))
		if bucket == nil {
			return fmt.Errorf("checkpoint bucket is missing")
		}
		payload := bucket.Get([]byte(runID))
		if payload == nil {
			return replay.ErrCheckpointNotFound
		}
		if err := json.Unmarshal(payload, &checkpoint); err != nil {
			return fmt.Errorf("unmarshal checkpoint: %w", err)
		}
		return nil
	})
	if err != nil {
		return replay.Checkpoint{}, err
	}
	return checkpoint, nil
}

// RunIDs lists the stored runs in key order.
func (s *Store) RunIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(checkpointBucket))
		if bucket == nil {
			return fmt.Errorf("checkpoint bucket is missing")
		}
		return bucket.ForEach(func(key, _ []byte) error {
			ids = append(ids, string(key))
			return nil
		})
	})
	return ids, err
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(checkpointBucket)); err != nil {
			return fmt.Errorf("create checkpoint bucket: %w", err)
		}
		return nil
	})
}
