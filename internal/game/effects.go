package game

import (
	"fmt"
	"log"

	"github.com/louisbranch/replaykit/internal/effect"
	"github.com/louisbranch/replaykit/internal/interpreter"
	"github.com/louisbranch/replaykit/internal/replacement"
)

// emptyLibrary is the failure recorded when drawing from an empty library.
const emptyLibrary = "Drew from empty library!"

// effectStarted is called with the effect name each time an effect body runs.
var effectStarted = func(string) {}

// Rules binds the effects that consult replacement effects to a dispatcher.
type Rules struct {
	draws *replacement.Dispatcher[*Game, Outcome]
}

// RulesOption configures Rules.
type RulesOption func(*Rules)

// WithResolver picks among several applicable draw replacements.
func WithResolver(resolver replacement.Resolver[*Game, Outcome]) RulesOption {
	return func(r *Rules) {
		r.draws.Resolver = resolver
	}
}

// WithLogger reports replacement entries that could not be decoded.
func WithLogger(logger *log.Logger) RulesOption {
	return func(r *Rules) {
		r.draws.Logger = logger
	}
}

// NewRules creates the rules with every known replacement variant registered.
func NewRules(opts ...RulesOption) *Rules {
	r := &Rules{
		draws: &replacement.Dispatcher[*Game, Outcome]{
			Codec:    drawCodec,
			Registry: func(g *Game) replacement.Registry { return g.ReplacementEffects },
			Actor:    func(g *Game) string { return g.Player },
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// GainLife adds amount to the life total.
func GainLife(amount int) func(*Interpreter) (string, error) {
	return func(in *Interpreter) (string, error) {
		effectStarted("gain_life")
		in.State().Life += amount
		return fmt.Sprintf("Added %d life", amount), nil
	}
}

// DrawCard moves the top card of the library into the hand, unless a
// replacement effect applies to drawing.
func (r *Rules) DrawCard(in *Interpreter) (Outcome, error) {
	effectStarted("draw_card")

	outcome, replaced, err := r.draws.Dispatch(in, DrawKey)
	if err != nil {
		return Outcome{}, err
	}
	if replaced {
		return outcome, nil
	}

	g := in.State()
	card, ok := pop(&g.Library)
	if !ok {
		return failed(emptyLibrary), nil
	}
	g.Hand = append(g.Hand, card)
	return succeeded("Drew " + card), nil
}

// DrawCards draws count cards, one recorded draw at a time, and stops at the
// first failed draw.
func (r *Rules) DrawCards(count int) func(*Interpreter) (Outcomes, error) {
	return func(in *Interpreter) (Outcomes, error) {
		effectStarted("draw_cards")
		result := Outcomes{Messages: []string{}}
		for range count {
			outcome, err := interpreter.Apply(in, r.DrawCard)
			if err != nil {
				return Outcomes{}, err
			}
			if outcome.Failed() {
				result.Failure = outcome.Failure
				return result, nil
			}
			result.Messages = append(result.Messages, outcome.Message)
		}
		return result, nil
	}
}

// ReplaceDrawWithDiscard registers a replacement that discards the top card
// of the hand instead of drawing.
func ReplaceDrawWithDiscard(in *Interpreter) (effect.Unit, error) {
	effectStarted("replace_draw_with_discard")
	return register(in, discardTag, nil)
}

// ReplaceDrawWithMill registers a replacement that mills the top card of the
// library instead of drawing, while the CEL condition when holds.
func ReplaceDrawWithMill(when string) func(*Interpreter) (effect.Unit, error) {
	return func(in *Interpreter) (effect.Unit, error) {
		effectStarted("replace_draw_with_mill")
		return register(in, millTag, MillReplacement{When: when})
	}
}

func register(in *Interpreter, tag string, fields any) (effect.Unit, error) {
	entry, err := replacement.Tag(tag, fields)
	if err != nil {
		return effect.Unit{}, err
	}
	in.State().ReplacementEffects.Add(DrawKey, entry)
	return effect.Unit{}, nil
}
