// Package scenario loads Lua scenario scripts and turns them into replayable
// game programs.
package scenario

import (
	"github.com/louisbranch/replaykit/internal/game"
)

// Step kinds.
const (
	StepDraw                   = "draw"
	StepDrawOne                = "draw_one"
	StepGainLife               = "gain_life"
	StepReplaceDrawWithDiscard = "replace_draw_with_discard"
	StepReplaceDrawWithMill    = "replace_draw_with_mill"
)

// Scenario is a loaded scenario script.
type Scenario struct {
	Name  string
	Game  *game.Game
	Turns []Turn
	// Expect holds the final game checks, nil when the script declares none.
	Expect *GameExpectation
}

// Turn groups the steps run as one recorded effect.
type Turn struct {
	Name  string
	Steps []Step
}

// Step is one effect inside a turn.
type Step struct {
	Kind string
	Args map[string]any
	// Expect is the message the step must produce first, empty for none.
	Expect string
}

// GameExpectation describes the game state a scenario must end in. Nil
// fields are not checked.
type GameExpectation struct {
	Life      *int
	Library   []string
	Hand      []string
	Graveyard []string
}

// NewGame returns a fresh copy of the scenario's starting game.
func (s *Scenario) NewGame() *game.Game {
	if s == nil || s.Game == nil {
		return game.New(0)
	}
	return s.Game.Clone()
}

// StepCount returns the number of steps over all turns.
func (s *Scenario) StepCount() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, turn := range s.Turns {
		total += len(turn.Steps)
	}
	return total
}
