package checkpoint

import (
	"context"

	"github.com/louisbranch/replaykit/internal/replay"
)

// Fresh never resumes a run: every Get reports the checkpoint as missing, so
// each run starts from its initial state. Saves are written through to the
// wrapped store, replacing whatever it held for the run; without a wrapped
// store they are dropped.
type Fresh struct {
	store replay.CheckpointStore
}

// NewFresh wraps store, which may be nil.
func NewFresh(store replay.CheckpointStore) *Fresh {
	return &Fresh{store: store}
}

// Get always reports that no checkpoint exists.
func (f *Fresh) Get(ctx context.Context, _ string) (replay.Checkpoint, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return replay.Checkpoint{}, err
		}
	}
	return replay.Checkpoint{}, replay.ErrCheckpointNotFound
}

// Save records checkpoint in the wrapped store.
func (f *Fresh) Save(ctx context.Context, checkpoint replay.Checkpoint) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if f == nil || f.store == nil {
		return nil
	}
	return f.store.Save(ctx, checkpoint)
}

// Unwrap returns the wrapped store, or nil.
func (f *Fresh) Unwrap() replay.CheckpointStore {
	if f == nil {
		return nil
	}
	return f.store
}
