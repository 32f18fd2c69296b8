package replacement

import (
	"errors"
	"fmt"
	"log"

	"github.com/louisbranch/replaykit/internal/interpreter"
)

var (
	// ErrUnresolvedChoice indicates several candidates apply and no resolver
	// was configured to pick one.
	ErrUnresolvedChoice = errors.New("multiple replacement candidates apply and no resolver is configured")
	// ErrInvalidChoice indicates a resolver picked an index outside the candidates.
	ErrInvalidChoice = errors.New("replacement choice out of range")
	// ErrCodecRequired indicates a dispatcher without a codec.
	ErrCodecRequired = errors.New("replacement codec is required")
	// ErrRegistryRequired indicates a dispatcher without a registry accessor.
	ErrRegistryRequired = errors.New("replacement registry accessor is required")
)

// Choice describes a decision between several applicable candidates.
type Choice[S, V any] struct {
	Key        string
	Player     string
	Candidates []Candidate[S, V]
}

// Resolver picks one of several applicable candidates, typically by asking the
// acting player. It returns the index of the chosen candidate.
type Resolver[S, V any] interface {
	Resolve(in *interpreter.Interpreter[S], choice Choice[S, V]) (int, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc[S, V any] func(in *interpreter.Interpreter[S], choice Choice[S, V]) (int, error)

// Resolve implements Resolver.
func (f ResolverFunc[S, V]) Resolve(in *interpreter.Interpreter[S], choice Choice[S, V]) (int, error) {
	return f(in, choice)
}

// Dispatcher looks up and runs replacement candidates for event keys.
type Dispatcher[S, V any] struct {
	// Codec decodes registry entries into candidates.
	Codec *Codec[S, V]
	// Registry returns the registry stored in the shared state.
	Registry func(state S) Registry
	// Resolver picks among several applicable candidates. Without one, that
	// case fails with ErrUnresolvedChoice.
	Resolver Resolver[S, V]
	// Actor names the player who makes the choice.
	Actor func(state S) string
	// Logger, when set, reports entries that failed to decode.
	Logger *log.Logger
}

// Dispatch runs the replacement registered for key, if exactly one applies.
//
// The boolean result reports whether a replacement ran; when it is false the
// caller proceeds with its default behavior. Entries that fail to decode are
// skipped. When several candidates apply, the resolver's pick is itself
// recorded through interpreter.Apply so replays reuse the same choice.
func (d *Dispatcher[S, V]) Dispatch(in *interpreter.Interpreter[S], key string) (V, bool, error) {
	var zero V
	if in == nil {
		return zero, false, interpreter.ErrInterpreterRequired
	}
	if d.Codec == nil {
		return zero, false, ErrCodecRequired
	}
	if d.Registry == nil {
		return zero, false, ErrRegistryRequired
	}

	applicable := d.applicable(in.State(), key)
	switch len(applicable) {
	case 0:
		return zero, false, nil
	case 1:
		outcome, err := applicable[0].Apply(in)
		if err != nil {
			return zero, false, err
		}
		return outcome, true, nil
	}

	if d.Resolver == nil {
		return zero, false, fmt.Errorf("%w: %s has %d candidates", ErrUnresolvedChoice, key, len(applicable))
	}
	choice := Choice[S, V]{Key: key, Candidates: applicable}
	if d.Actor != nil {
		choice.Player = d.Actor(in.State())
	}
	index, err := interpreter.Apply(in, func(child *interpreter.Interpreter[S]) (int, error) {
		return d.Resolver.Resolve(child, choice)
	})
	if err != nil {
		return zero, false, err
	}
	if index < 0 || index >= len(applicable) {
		return zero, false, fmt.Errorf("%w: %d of %d", ErrInvalidChoice, index, len(applicable))
	}
	outcome, err := applicable[index].Apply(in)
	if err != nil {
		return zero, false, err
	}
	return outcome, true, nil
}

func (d *Dispatcher[S, V]) applicable(state S, key string) []Candidate[S, V] {
	var out []Candidate[S, V]
	for _, entry := range d.Registry(state).Candidates(key) {
		candidate, err := d.Codec.Decode(entry)
		if err != nil {
			if d.Logger != nil {
				d.Logger.Printf("skip replacement for %s: %v", key, err)
			}
			continue
		}
		if candidate.Check(state) {
			out = append(out, candidate)
		}
	}
	return out
}
