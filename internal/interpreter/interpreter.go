package interpreter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/replaykit/internal/effect"
)

const tracerName = "github.com/louisbranch/replaykit/internal/interpreter"

var (
	// ErrInterpreterRequired indicates Apply was called without an interpreter.
	ErrInterpreterRequired = errors.New("interpreter is required")
	// ErrEffectRequired indicates Apply was called without an effect function.
	ErrEffectRequired = errors.New("effect function is required")
)

// Interpreter executes or replays one level of an effect call tree.
//
// S is the shared state handle. Child interpreters hold the same handle, so a
// mutation made anywhere in the tree is visible everywhere else in it.
type Interpreter[S any] struct {
	state    S
	effects  []effect.Node
	position int
	depth    int
	run      *run
}

// run holds what every interpreter of one call tree shares.
type run struct {
	ctx      context.Context
	logger   *log.Logger
	observer Observer
	tracer   trace.Tracer
}

// Option configures a top-level interpreter.
type Option func(*run)

// WithLogger logs one line per executed or replayed call.
func WithLogger(logger *log.Logger) Option {
	return func(r *run) {
		r.logger = logger
	}
}

// WithObserver reports every executed and replayed call to observer.
func WithObserver(observer Observer) Option {
	return func(r *run) {
		r.observer = observer
	}
}

// WithTracer overrides the tracer used for executed calls.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *run) {
		r.tracer = tracer
	}
}

// New creates a top-level interpreter over state, seeded with the nodes
// recorded by a previous run. recorded may be empty. It is copied, never
// modified.
func New[S any](ctx context.Context, state S, recorded []effect.Node, opts ...Option) *Interpreter[S] {
	if ctx == nil {
		ctx = context.Background()
	}
	r := &run{ctx: ctx}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	return &Interpreter[S]{
		state:   state,
		effects: slices.Clone(recorded),
		run:     r,
	}
}

// State returns the shared state handle.
func (in *Interpreter[S]) State() S {
	return in.state
}

// Effects returns the nodes recorded at this level so far, replayed ones
// included. The returned slice is a copy.
func (in *Interpreter[S]) Effects() []effect.Node {
	return slices.Clone(in.effects)
}

// Position returns the cursor into this level's recorded nodes.
func (in *Interpreter[S]) Position() int {
	return in.position
}

// Depth returns the nesting depth; the top-level interpreter is at depth 0.
func (in *Interpreter[S]) Depth() int {
	return in.depth
}

// Context returns the context the run was started with. It carries tracing
// spans only; a call tree cannot be cancelled midway.
func (in *Interpreter[S]) Context() context.Context {
	return in.run.ctx
}

// Apply runs f as the next call at this level, or replays its recorded result.
//
// When a node is recorded at the current position, f is not invoked and the
// recorded result is decoded as T; a mismatch fails with *effect.DecodeError.
// Otherwise f runs against a fresh child interpreter sharing the same state
// and its outcome is recorded along with the child's own calls. An error from
// f or from encoding its outcome records nothing.
func Apply[T, S any](in *Interpreter[S], f func(*Interpreter[S]) (T, error)) (T, error) {
	var zero T
	if in == nil {
		return zero, ErrInterpreterRequired
	}
	if f == nil {
		return zero, ErrEffectRequired
	}

	frame := Frame{Depth: in.depth, Position: in.position}
	if in.position < len(in.effects) {
		recorded := in.effects[in.position]
		in.position++
		value, err := effect.Decode[T](recorded.Result)
		if err != nil {
			return zero, fmt.Errorf("replay %s: %w", frame, err)
		}
		in.replayed(frame)
		return value, nil
	}
	in.position++

	ctx, span := in.run.tracer.Start(in.run.ctx, "effect.apply", trace.WithAttributes(
		attribute.Int("effect.depth", frame.Depth),
		attribute.Int("effect.position", frame.Position),
	))
	defer span.End()

	child := &Interpreter[S]{
		state: in.state,
		depth: in.depth + 1,
		run:   in.run.withContext(ctx),
	}
	outcome, err := f(child)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, err
	}
	result, err := effect.Encode(outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, fmt.Errorf("record %s: %w", frame, err)
	}
	span.SetAttributes(attribute.Int("effect.children", len(child.effects)))

	in.effects = append(in.effects, effect.Node{
		Result:   result,
		Children: child.effects,
	})
	in.executed(frame)
	return outcome, nil
}

func (r *run) withContext(ctx context.Context) *run {
	cloned := *r
	cloned.ctx = ctx
	return &cloned
}

func (in *Interpreter[S]) executed(frame Frame) {
	if in.run.logger != nil {
		in.run.logger.Printf("effect executed %s", frame)
	}
	if in.run.observer != nil {
		in.run.observer.EffectExecuted(frame)
	}
}

func (in *Interpreter[S]) replayed(frame Frame) {
	if in.run.logger != nil {
		in.run.logger.Printf("effect replayed %s", frame)
	}
	if in.run.observer != nil {
		in.run.observer.EffectReplayed(frame)
	}
}
