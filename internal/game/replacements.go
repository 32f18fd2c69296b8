package game

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/louisbranch/replaykit/internal/replacement"
)

const (
	discardTag = "DiscardReplacement"
	millTag    = "MillReplacement"
)

// drawCodec decodes every replacement variant for draws. It is read-only once
// built, so all rules share it.
var drawCodec = mustDrawReplacements()

func mustDrawReplacements() *replacement.Codec[*Game, Outcome] {
	codec := replacement.NewCodec[*Game, Outcome]()
	mustRegister(codec, discardTag, replacement.Fields[DiscardReplacement, *Game, Outcome]())
	mustRegister(codec, millTag, replacement.Fields[MillReplacement, *Game, Outcome]())
	return codec
}

func mustRegister(codec *replacement.Codec[*Game, Outcome], tag string, decoder replacement.Decoder[*Game, Outcome]) {
	if err := codec.Register(tag, decoder); err != nil {
		panic(err)
	}
}

// DiscardReplacement discards the top card of the hand instead of drawing.
type DiscardReplacement struct{}

// Check applies while the hand has a card to discard.
func (DiscardReplacement) Check(g *Game) bool {
	return len(g.Hand) > 0
}

// Apply moves the top card of the hand to the graveyard.
func (DiscardReplacement) Apply(in *Interpreter) (Outcome, error) {
	g := in.State()
	card, ok := pop(&g.Hand)
	if !ok {
		return failed("Discarded from empty hand!"), nil
	}
	g.Graveyard = append(g.Graveyard, card)
	return succeeded("Discarded " + card), nil
}

// MillReplacement puts the top card of the library into the graveyard instead
// of drawing it. When is a CEL expression over life, library_size, hand_size
// and graveyard_size; an empty expression always holds.
type MillReplacement struct {
	When string `json:"when,omitempty"`
}

// Check applies while the library has a card and When holds. An expression
// that does not compile or does not produce a bool never holds.
func (m MillReplacement) Check(g *Game) bool {
	if len(g.Library) == 0 {
		return false
	}
	if strings.TrimSpace(m.When) == "" {
		return true
	}
	holds, err := evalCondition(m.When, g)
	return err == nil && holds
}

// Apply moves the top card of the library to the graveyard.
func (MillReplacement) Apply(in *Interpreter) (Outcome, error) {
	g := in.State()
	card, ok := pop(&g.Library)
	if !ok {
		return failed(emptyLibrary), nil
	}
	g.Graveyard = append(g.Graveyard, card)
	return succeeded("Milled " + card), nil
}

var conditions = struct {
	once     sync.Once
	env      *cel.Env
	envErr   error
	mu       sync.Mutex
	programs map[string]cel.Program
}{programs: map[string]cel.Program{}}

func conditionEnv() (*cel.Env, error) {
	conditions.once.Do(func() {
		conditions.env, conditions.envErr = cel.NewEnv(
			cel.Variable("life", cel.IntType),
			cel.Variable("library_size", cel.IntType),
			cel.Variable("hand_size", cel.IntType),
			cel.Variable("graveyard_size", cel.IntType),
		)
	})
	return conditions.env, conditions.envErr
}

// compileCondition compiles expr once and caches the program.
func compileCondition(expr string) (cel.Program, error) {
	conditions.mu.Lock()
	defer conditions.mu.Unlock()
	if program, ok := conditions.programs[expr]; ok {
		return program, nil
	}

	env, err := conditionEnv()
	if err != nil {
		return nil, fmt.Errorf("condition env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile condition %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("condition %q must produce bool, got %s", expr, ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program condition %q: %w", expr, err)
	}
	conditions.programs[expr] = program
	return program, nil
}

func evalCondition(expr string, g *Game) (bool, error) {
	program, err := compileCondition(expr)
	if err != nil {
		return false, err
	}
	out, _, err := program.Eval(map[string]any{
		"life":           int64(g.Life),
		"library_size":   int64(len(g.Library)),
		"hand_size":      int64(len(g.Hand)),
		"graveyard_size": int64(len(g.Graveyard)),
	})
	if err != nil {
		return false, fmt.Errorf("eval condition %q: %w", expr, err)
	}
	holds, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition %q produced %T", expr, out.Value())
	}
	return holds, nil
}

// ValidateCondition reports whether expr is a usable mill condition.
func ValidateCondition(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := compileCondition(expr)
	return err
}
