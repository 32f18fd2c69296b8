package interpreter

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/louisbranch/replaykit/internal/effect"
)

type ledger struct {
	Total int
	Log   []string
}

type counters struct {
	add   int
	batch int
}

func add(c *counters, amount int) func(*Interpreter[*ledger]) (int, error) {
	return func(in *Interpreter[*ledger]) (int, error) {
		c.add++
		in.State().Total += amount
		in.State().Log = append(in.State().Log, "add")
		return in.State().Total, nil
	}
}

func batch(c *counters, amounts ...int) func(*Interpreter[*ledger]) ([]int, error) {
	return func(in *Interpreter[*ledger]) ([]int, error) {
		c.batch++
		totals := make([]int, 0, len(amounts))
		for _, amount := range amounts {
			total, err := Apply(in, add(c, amount))
			if err != nil {
				return nil, err
			}
			totals = append(totals, total)
		}
		return totals, nil
	}
}

func TestApplyRecordsNestedCalls(t *testing.T) {
	c := &counters{}
	state := &ledger{}
	in := New(context.Background(), state, nil)

	totals, err := Apply(in, batch(c, 1, 2))
	if err != nil {
		t.Fatalf("apply batch: %v", err)
	}
	if len(totals) != 2 || totals[0] != 1 || totals[1] != 3 {
		t.Fatalf("totals = %v, want [1 3]", totals)
	}
	total, err := Apply(in, add(c, 10))
	if err != nil {
		t.Fatalf("apply add: %v", err)
	}
	if total != 13 {
		t.Fatalf("total = %d, want 13", total)
	}

	effects := in.Effects()
	if len(effects) != 2 {
		t.Fatalf("effects = %d, want 2", len(effects))
	}
	if got := effects[0].Result.String(); got != "[1,3]" {
		t.Fatalf("batch result = %s, want [1,3]", got)
	}
	if len(effects[0].Children) != 2 {
		t.Fatalf("batch children = %d, want 2", len(effects[0].Children))
	}
	if got := effects[0].Children[1].Result.String(); got != "3" {
		t.Fatalf("second child result = %s, want 3", got)
	}
	if len(effects[1].Children) != 0 {
		t.Fatalf("add children = %d, want 0", len(effects[1].Children))
	}
	if in.Position() != 2 {
		t.Fatalf("position = %d, want 2", in.Position())
	}
	if c.add != 3 || c.batch != 1 {
		t.Fatalf("calls = %+v, want add 3 batch 1", *c)
	}
}

func TestApplyReplaysWithoutRunning(t *testing.T) {
	c := &counters{}
	state := &ledger{}
	first := New(context.Background(), state, nil)
	if _, err := Apply(first, batch(c, 1, 2)); err != nil {
		t.Fatalf("apply batch: %v", err)
	}
	if _, err := Apply(first, add(c, 10)); err != nil {
		t.Fatalf("apply add: %v", err)
	}
	recorded := first.Effects()
	snapshot := *state

	stats := &Stats{}
	second := New(context.Background(), state, recorded, WithObserver(stats))
	totals, err := Apply(second, batch(c, 1, 2))
	if err != nil {
		t.Fatalf("replay batch: %v", err)
	}
	total, err := Apply(second, add(c, 10))
	if err != nil {
		t.Fatalf("replay add: %v", err)
	}

	if len(totals) != 2 || totals[1] != 3 || total != 13 {
		t.Fatalf("replayed totals = %v / %d", totals, total)
	}
	if c.add != 3 || c.batch != 1 {
		t.Fatalf("replay ran effects: %+v", *c)
	}
	if state.Total != snapshot.Total || len(state.Log) != len(snapshot.Log) {
		t.Fatalf("replay mutated state: %+v", *state)
	}
	if !effect.Equal(second.Effects(), recorded) {
		t.Fatal("replayed effects differ from recorded effects")
	}
	if stats.Replayed != 2 || stats.Executed != 0 {
		t.Fatalf("stats = %+v, want 2 replayed 0 executed", *stats)
	}
}

func TestApplyExtendsRecordedPrefix(t *testing.T) {
	prefixCalls := &counters{}
	state := &ledger{}
	prefix := New(context.Background(), state, nil)
	if _, err := Apply(prefix, add(prefixCalls, 1)); err != nil {
		t.Fatalf("apply prefix: %v", err)
	}

	c := &counters{}
	extended := New(context.Background(), state, prefix.Effects())
	if _, err := Apply(extended, add(c, 1)); err != nil {
		t.Fatalf("replay prefix: %v", err)
	}
	if _, err := Apply(extended, batch(c, 2, 3)); err != nil {
		t.Fatalf("apply batch: %v", err)
	}
	if c.add != 2 || c.batch != 1 {
		t.Fatalf("calls = %+v, want only the new calls", *c)
	}

	scratchCalls := &counters{}
	scratch := New(context.Background(), &ledger{}, nil)
	if _, err := Apply(scratch, add(scratchCalls, 1)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := Apply(scratch, batch(scratchCalls, 2, 3)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !effect.Equal(extended.Effects(), scratch.Effects()) {
		t.Fatal("extended run differs from a run from scratch")
	}
	if state.Total != 6 {
		t.Fatalf("total = %d, want 6", state.Total)
	}
}

func TestApplyDetectsTypeMismatchOnReplay(t *testing.T) {
	state := &ledger{}
	first := New(context.Background(), state, nil)
	if _, err := Apply(first, add(&counters{}, 1)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	second := New(context.Background(), state, first.Effects())
	called := false
	_, err := Apply(second, func(*Interpreter[*ledger]) (string, error) {
		called = true
		return "one", nil
	})
	if !errors.Is(err, effect.ErrDecode) {
		t.Fatalf("error = %v, want decode error", err)
	}
	if !strings.Contains(err.Error(), "depth 0 position 0") {
		t.Fatalf("error = %q, want frame location", err.Error())
	}
	if called {
		t.Fatal("effect ran on a recorded position")
	}
}

func TestApplyPropagatesEffectError(t *testing.T) {
	boom := errors.New("boom")
	in := New(context.Background(), &ledger{}, nil)

	_, err := Apply(in, func(child *Interpreter[*ledger]) (int, error) {
		if _, err := Apply(child, add(&counters{}, 1)); err != nil {
			return 0, err
		}
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	if len(in.Effects()) != 0 {
		t.Fatalf("effects = %d, want none recorded", len(in.Effects()))
	}
	if in.Position() != 1 {
		t.Fatalf("position = %d, want 1", in.Position())
	}
	if in.State().Total != 1 {
		t.Fatalf("total = %d, want committed mutation to remain", in.State().Total)
	}
}

func TestApplyFailsOnUnencodableOutcome(t *testing.T) {
	in := New(context.Background(), &ledger{}, nil)
	_, err := Apply(in, func(*Interpreter[*ledger]) (float64, error) {
		return math.Inf(1), nil
	})
	if !errors.Is(err, effect.ErrEncode) {
		t.Fatalf("error = %v, want encode error", err)
	}
	if len(in.Effects()) != 0 {
		t.Fatal("expected no node for an unencodable outcome")
	}
}

func TestApplyRequiresInterpreterAndEffect(t *testing.T) {
	if _, err := Apply[int, *ledger](nil, add(&counters{}, 1)); !errors.Is(err, ErrInterpreterRequired) {
		t.Fatalf("error = %v, want %v", err, ErrInterpreterRequired)
	}
	in := New(context.Background(), &ledger{}, nil)
	if _, err := Apply[int](in, nil); !errors.Is(err, ErrEffectRequired) {
		t.Fatalf("error = %v, want %v", err, ErrEffectRequired)
	}
}

func TestNewCopiesRecordedEffects(t *testing.T) {
	state := &ledger{}
	first := New(context.Background(), state, nil)
	if _, err := Apply(first, add(&counters{}, 1)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	recorded := first.Effects()

	second := New(context.Background(), state, recorded[:0:1])
	if _, err := Apply(second, add(&counters{}, 5)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := recorded[0].Result.String(); got != "1" {
		t.Fatalf("recorded result = %s, want 1 (caller slice mutated)", got)
	}
}

func TestChildInterpretersTrackDepth(t *testing.T) {
	in := New(context.Background(), &ledger{}, nil)
	var depths []int
	_, err := Apply(in, func(child *Interpreter[*ledger]) (effect.Unit, error) {
		depths = append(depths, child.Depth())
		_, err := Apply(child, func(grandchild *Interpreter[*ledger]) (effect.Unit, error) {
			depths = append(depths, grandchild.Depth())
			if grandchild.State() != in.State() {
				t.Fatal("grandchild does not share state")
			}
			return effect.Unit{}, nil
		})
		return effect.Unit{}, err
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(depths) != 2 || depths[0] != 1 || depths[1] != 2 {
		t.Fatalf("depths = %v, want [1 2]", depths)
	}
}

func TestLoggerAndTracer(t *testing.T) {
	var buf bytes.Buffer
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	c := &counters{}
	state := &ledger{}
	first := New(context.Background(), state, nil,
		WithLogger(log.New(&buf, "", 0)),
		WithTracer(provider.Tracer("test")),
	)
	if _, err := Apply(first, batch(c, 1, 1)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := len(recorder.Ended()); got != 3 {
		t.Fatalf("spans = %d, want 3", got)
	}

	second := New(context.Background(), state, first.Effects(),
		WithLogger(log.New(&buf, "", 0)),
		WithTracer(provider.Tracer("test")),
	)
	if _, err := Apply(second, batch(c, 1, 1)); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if got := len(recorder.Ended()); got != 3 {
		t.Fatalf("spans after replay = %d, want 3", got)
	}

	want := "effect executed depth 1 position 0\n" +
		"effect executed depth 1 position 1\n" +
		"effect executed depth 0 position 0\n" +
		"effect replayed depth 0 position 0\n"
	if buf.String() != want {
		t.Fatalf("log = %q, want %q", buf.String(), want)
	}
}
