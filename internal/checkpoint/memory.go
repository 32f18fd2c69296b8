// Package checkpoint provides in-process checkpoint stores for resumable runs.
package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/louisbranch/replaykit/internal/effect"
	"github.com/louisbranch/replaykit/internal/replay"
)

var (
	// ErrRunIDRequired indicates a missing run id.
	ErrRunIDRequired = errors.New("run id is required")
	// ErrStoreRequired indicates a nil store.
	ErrStoreRequired = errors.New("checkpoint store is required")
)

// Memory stores checkpoints in memory.
type Memory struct {
	mu          sync.Mutex
	checkpoints map[string]replay.Checkpoint
}

// NewMemory creates a new in-memory checkpoint store.
func NewMemory() *Memory {
	return &Memory{
		checkpoints: make(map[string]replay.Checkpoint),
	}
}

// Get retrieves a checkpoint by run id.
func (m *Memory) Get(ctx context.Context, runID string) (replay.Checkpoint, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return replay.Checkpoint{}, err
		}
	}
	if m == nil {
		return replay.Checkpoint{}, ErrStoreRequired
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return replay.Checkpoint{}, ErrRunIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	checkpoint, ok := m.checkpoints[runID]
	if !ok {
		return replay.Checkpoint{}, replay.ErrCheckpointNotFound
	}
	return cloneCheckpoint(checkpoint), nil
}

// Save persists a checkpoint, replacing any previous one for the run.
func (m *Memory) Save(ctx context.Context, checkpoint replay.Checkpoint) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if m == nil {
		return ErrStoreRequired
	}
	runID := strings.TrimSpace(checkpoint.RunID)
	if runID == "" {
		return ErrRunIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.checkpoints == nil {
		m.checkpoints = make(map[string]replay.Checkpoint)
	}
	checkpoint.RunID = runID
	m.checkpoints[runID] = cloneCheckpoint(checkpoint)
	return nil
}

func cloneCheckpoint(source replay.Checkpoint) replay.Checkpoint {
	cloned := source
	cloned.Effects = effect.Clone(source.Effects)
	cloned.State = bytes.Clone(source.State)
	return cloned
}
