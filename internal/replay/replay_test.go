package replay

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/replaykit/internal/effect"
	"github.com/louisbranch/replaykit/internal/interpreter"
)

type counter struct {
	Total int      `json:"total"`
	Notes []string `json:"notes"`
}

type fakeStore struct {
	checkpoints map[string]Checkpoint
	getErr      error
	saveErr     error
	saves       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{checkpoints: make(map[string]Checkpoint)}
}

func (s *fakeStore) Get(_ context.Context, runID string) (Checkpoint, error) {
	if s.getErr != nil {
		return Checkpoint{}, s.getErr
	}
	checkpoint, ok := s.checkpoints[runID]
	if !ok {
		return Checkpoint{}, ErrCheckpointNotFound
	}
	return checkpoint, nil
}

func (s *fakeStore) Save(_ context.Context, checkpoint Checkpoint) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.checkpoints[checkpoint.RunID] = checkpoint
	return nil
}

func add(amount int) func(*interpreter.Interpreter[*counter]) (int, error) {
	return func(in *interpreter.Interpreter[*counter]) (int, error) {
		c := in.State()
		c.Total += amount
		c.Notes = append(c.Notes, "added")
		return c.Total, nil
	}
}

func steps(amounts ...int) Program[*counter] {
	return func(in *interpreter.Interpreter[*counter]) error {
		for _, amount := range amounts {
			if _, err := interpreter.Apply(in, add(amount)); err != nil {
				return err
			}
		}
		return nil
	}
}

var fixedNow = func() time.Time { return time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC) }

func TestRun_FreshRunSavesCheckpoint(t *testing.T) {
	store := newFakeStore()
	result, err := Run(context.Background(), store, "run-1", &counter{}, steps(1, 2, 3), Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Resumed {
		t.Fatal("expected fresh run")
	}
	if result.Executed != 3 || result.Replayed != 0 {
		t.Fatalf("executed/replayed = %d/%d, want 3/0", result.Executed, result.Replayed)
	}
	if result.State.Total != 6 {
		t.Fatalf("total = %d, want 6", result.State.Total)
	}
	checkpoint, ok := store.checkpoints["run-1"]
	if !ok {
		t.Fatal("expected checkpoint to be saved")
	}
	if len(checkpoint.Effects) != 3 {
		t.Fatalf("checkpoint effects = %d, want 3", len(checkpoint.Effects))
	}
	if checkpoint.Digest != result.Digest || checkpoint.Digest == "" {
		t.Fatalf("checkpoint digest = %q, result digest = %q", checkpoint.Digest, result.Digest)
	}
	if string(checkpoint.State) != `{"total":6,"notes":["added","added","added"]}` {
		t.Fatalf("checkpoint state = %s", checkpoint.State)
	}
	if !checkpoint.UpdatedAt.Equal(fixedNow()) {
		t.Fatalf("updated at = %v", checkpoint.UpdatedAt)
	}
}

func TestRun_ResumeReplaysEverything(t *testing.T) {
	store := newFakeStore()
	first, err := Run(context.Background(), store, "run-1", &counter{}, steps(1, 2, 3), Options{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	second, err := Run(context.Background(), store, "run-1", &counter{}, steps(1, 2, 3), Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.Resumed {
		t.Fatal("expected resumed run")
	}
	if second.Executed != 0 || second.Replayed != 3 {
		t.Fatalf("executed/replayed = %d/%d, want 0/3", second.Executed, second.Replayed)
	}
	if second.State.Total != first.State.Total || len(second.State.Notes) != len(first.State.Notes) {
		t.Fatalf("resumed state = %+v, want %+v", second.State, first.State)
	}
	if !effect.Equal(second.Effects, first.Effects) {
		t.Fatal("resumed effects differ")
	}
	if second.Digest != first.Digest {
		t.Fatalf("digest = %s, want %s", second.Digest, first.Digest)
	}
}

func TestRun_ResumeExtendsRecord(t *testing.T) {
	store := newFakeStore()
	if _, err := Run(context.Background(), store, "run-1", &counter{}, steps(1, 2), Options{}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	result, err := Run(context.Background(), store, "run-1", &counter{}, steps(1, 2, 10), Options{})
	if err != nil {
		t.Fatalf("extended run: %v", err)
	}
	if result.Executed != 1 || result.Replayed != 2 {
		t.Fatalf("executed/replayed = %d/%d, want 1/2", result.Executed, result.Replayed)
	}
	if result.State.Total != 13 {
		t.Fatalf("total = %d, want 13", result.State.Total)
	}

	fresh, err := Run(context.Background(), newFakeStore(), "run-2", &counter{}, steps(1, 2, 10), Options{})
	if err != nil {
		t.Fatalf("fresh run: %v", err)
	}
	if !effect.Equal(result.Effects, fresh.Effects) {
		t.Fatal("extended record differs from a fresh run of the longer program")
	}
	if result.State.Total != fresh.State.Total {
		t.Fatalf("extended total = %d, fresh total = %d", result.State.Total, fresh.State.Total)
	}
}

func TestRun_DigestMismatch(t *testing.T) {
	store := newFakeStore()
	if _, err := Run(context.Background(), store, "run-1", &counter{}, steps(1), Options{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	checkpoint := store.checkpoints["run-1"]
	checkpoint.Digest = "0000"
	store.checkpoints["run-1"] = checkpoint

	_, err := Run(context.Background(), store, "run-1", &counter{}, steps(1), Options{})
	if !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("error = %v, want %v", err, ErrDigestMismatch)
	}
}

func TestRun_CheckpointWithoutDigestIsTrusted(t *testing.T) {
	store := newFakeStore()
	if _, err := Run(context.Background(), store, "run-1", &counter{}, steps(4), Options{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	checkpoint := store.checkpoints["run-1"]
	checkpoint.Digest = ""
	store.checkpoints["run-1"] = checkpoint

	result, err := Run(context.Background(), store, "run-1", &counter{}, steps(4), Options{})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if result.Replayed != 1 {
		t.Fatalf("replayed = %d, want 1", result.Replayed)
	}
}

func TestRun_ProgramErrorSavesNothing(t *testing.T) {
	store := newFakeStore()
	boom := errors.New("boom")
	program := func(in *interpreter.Interpreter[*counter]) error {
		if _, err := interpreter.Apply(in, add(1)); err != nil {
			return err
		}
		return boom
	}

	result, err := Run(context.Background(), store, "run-1", &counter{}, program, Options{})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	if store.saves != 0 {
		t.Fatalf("saves = %d, want 0", store.saves)
	}
	if result.Executed != 1 {
		t.Fatalf("executed = %d, want 1", result.Executed)
	}
}

func TestRun_StoreErrors(t *testing.T) {
	loadErr := errors.New("load failed")
	store := newFakeStore()
	store.getErr = loadErr
	if _, err := Run(context.Background(), store, "run-1", &counter{}, steps(1), Options{}); !errors.Is(err, loadErr) {
		t.Fatalf("error = %v, want %v", err, loadErr)
	}

	saveErr := errors.New("save failed")
	store = newFakeStore()
	store.saveErr = saveErr
	if _, err := Run(context.Background(), store, "run-1", &counter{}, steps(1), Options{}); !errors.Is(err, saveErr) {
		t.Fatalf("error = %v, want %v", err, saveErr)
	}
}

func TestRun_CorruptState(t *testing.T) {
	store := newFakeStore()
	store.checkpoints["run-1"] = Checkpoint{RunID: "run-1", State: []byte(`{"total":"x"}`)}
	_, err := Run(context.Background(), store, "run-1", &counter{}, steps(1), Options{})
	if err == nil || !strings.Contains(err.Error(), "decode checkpoint state") {
		t.Fatalf("error = %v, want decode failure", err)
	}
}

func TestRun_RequiresArguments(t *testing.T) {
	store := newFakeStore()
	if _, err := Run[*counter](context.Background(), nil, "run-1", &counter{}, steps(1), Options{}); !errors.Is(err, ErrStoreRequired) {
		t.Fatalf("error = %v, want %v", err, ErrStoreRequired)
	}
	if _, err := Run(context.Background(), store, "run-1", &counter{}, nil, Options{}); !errors.Is(err, ErrProgramRequired) {
		t.Fatalf("error = %v, want %v", err, ErrProgramRequired)
	}
	if _, err := Run(context.Background(), store, "  ", &counter{}, steps(1), Options{}); !errors.Is(err, ErrRunIDRequired) {
		t.Fatalf("error = %v, want %v", err, ErrRunIDRequired)
	}
}

func TestRun_LogsAndObserves(t *testing.T) {
	var buf bytes.Buffer
	stats := &interpreter.Stats{}
	options := Options{
		Logger:   log.New(&buf, "", 0),
		Verbose:  true,
		Observer: stats,
	}
	if _, err := Run(context.Background(), newFakeStore(), "run-1", &counter{}, steps(1, 2), options); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Executed != 2 {
		t.Fatalf("observer executed = %d, want 2", stats.Executed)
	}
	output := buf.String()
	for _, want := range []string{"run run-1: 0 recorded effects", "effect executed", "executed 2, replayed 0"} {
		if !strings.Contains(output, want) {
			t.Fatalf("log output missing %q:\n%s", want, output)
		}
	}
}
