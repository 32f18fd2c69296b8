// Package replay resumes recorded runs: it loads the checkpoint of a run,
// replays its recorded effects, runs whatever the program does beyond them,
// and saves the extended record.
package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/replaykit/internal/effect"
	"github.com/louisbranch/replaykit/internal/interpreter"
)

var (
	// ErrStoreRequired indicates a missing checkpoint store.
	ErrStoreRequired = errors.New("checkpoint store is required")
	// ErrRunIDRequired indicates a missing run id.
	ErrRunIDRequired = errors.New("run id is required")
	// ErrProgramRequired indicates a missing program.
	ErrProgramRequired = errors.New("program is required")
	// ErrCheckpointNotFound indicates no checkpoint exists yet.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrDigestMismatch indicates a checkpoint whose effects do not match its digest.
	ErrDigestMismatch = errors.New("checkpoint digest mismatch")
)

// CheckpointStore manages run checkpoints.
type CheckpointStore interface {
	Get(ctx context.Context, runID string) (Checkpoint, error)
	Save(ctx context.Context, checkpoint Checkpoint) error
}

// Checkpoint is the durable record of a run: the effects it recorded and the
// shared state as it stood after them. Replayed calls do not run their side
// effects again, so a resumed run continues from this state rather than from
// the initial one.
type Checkpoint struct {
	RunID     string          `json:"run_id"`
	Effects   []effect.Node   `json:"effects"`
	State     json.RawMessage `json:"state"`
	Digest    string          `json:"digest"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Program is the top-level logic of a run.
type Program[S any] func(in *interpreter.Interpreter[S]) error

// Options configures a run.
type Options struct {
	// Logger logs run boundaries, and every call when Verbose is set.
	Logger  *log.Logger
	Verbose bool
	// Observer is notified of every executed and replayed call.
	Observer interpreter.Observer
	// Interpreter holds extra interpreter options, such as a tracer.
	Interpreter []interpreter.Option
	// Now overrides the checkpoint clock.
	Now func() time.Time
}

// Result captures the outcome of a run.
type Result[S any] struct {
	RunID    string
	State    S
	Effects  []effect.Node
	Digest   string
	Resumed  bool
	Executed int
	Replayed int
}

// Run resumes runID from its checkpoint, or starts it from initial, runs
// program and saves the extended checkpoint. A failed program saves nothing;
// whatever it already did to the state stays done.
func Run[S any](ctx context.Context, store CheckpointStore, runID string, initial S, program Program[S], options Options) (Result[S], error) {
	if store == nil {
		return Result[S]{}, ErrStoreRequired
	}
	if program == nil {
		return Result[S]{}, ErrProgramRequired
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return Result[S]{}, ErrRunIDRequired
	}

	result := Result[S]{RunID: runID, State: initial}
	var recorded []effect.Node
	checkpoint, err := store.Get(ctx, runID)
	switch {
	case errors.Is(err, ErrCheckpointNotFound):
	case err != nil:
		return result, fmt.Errorf("load checkpoint %s: %w", runID, err)
	default:
		if err := verify(checkpoint); err != nil {
			return result, err
		}
		var state S
		if err := json.Unmarshal(checkpoint.State, &state); err != nil {
			return result, fmt.Errorf("decode checkpoint state %s: %w", runID, err)
		}
		result.State = state
		result.Resumed = true
		recorded = checkpoint.Effects
	}

	stats := &interpreter.Stats{}
	opts := []interpreter.Option{interpreter.WithObserver(observers{stats, options.Observer})}
	if options.Verbose && options.Logger != nil {
		opts = append(opts, interpreter.WithLogger(options.Logger))
	}
	opts = append(opts, options.Interpreter...)

	logf(options.Logger, "run %s: %d recorded effects (resumed=%t)", runID, len(recorded), result.Resumed)
	in := interpreter.New(ctx, result.State, recorded, opts...)
	err = program(in)
	result.Executed = stats.Executed
	result.Replayed = stats.Replayed
	if err != nil {
		return result, err
	}

	result.Effects = in.Effects()
	result.Digest, err = effect.Digest(result.Effects)
	if err != nil {
		return result, fmt.Errorf("digest run %s: %w", runID, err)
	}
	state, err := json.Marshal(result.State)
	if err != nil {
		return result, fmt.Errorf("encode state %s: %w", runID, err)
	}
	now := time.Now
	if options.Now != nil {
		now = options.Now
	}
	if err := store.Save(ctx, Checkpoint{
		RunID:     runID,
		Effects:   result.Effects,
		State:     state,
		Digest:    result.Digest,
		UpdatedAt: now().UTC(),
	}); err != nil {
		return result, fmt.Errorf("save checkpoint %s: %w", runID, err)
	}
	logf(options.Logger, "run %s: executed %d, replayed %d, digest %s", runID, result.Executed, result.Replayed, result.Digest)
	return result, nil
}

// verify checks a loaded checkpoint against its digest, when it has one.
func verify(checkpoint Checkpoint) error {
	if checkpoint.Digest == "" {
		return nil
	}
	digest, err := effect.Digest(checkpoint.Effects)
	if err != nil {
		return fmt.Errorf("digest checkpoint %s: %w", checkpoint.RunID, err)
	}
	if digest != checkpoint.Digest {
		return fmt.Errorf("%w: %s: stored %s, computed %s", ErrDigestMismatch, checkpoint.RunID, checkpoint.Digest, digest)
	}
	return nil
}

type observers []interpreter.Observer

func (o observers) EffectExecuted(frame interpreter.Frame) {
	for _, observer := range o {
		if observer != nil {
			observer.EffectExecuted(frame)
		}
	}
}

func (o observers) EffectReplayed(frame interpreter.Frame) {
	for _, observer := range o {
		if observer != nil {
			observer.EffectReplayed(frame)
		}
	}
}

func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}
