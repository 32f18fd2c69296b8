package game

import (
	"slices"

	"github.com/louisbranch/replaykit/internal/interpreter"
	"github.com/louisbranch/replaykit/internal/replacement"
)

// DrawKey is the replacement event key triggered by drawing a card.
const DrawKey = "DRAW"

// Interpreter is the interpreter specialized to the game state.
type Interpreter = interpreter.Interpreter[*Game]

// Game is the shared state of one game. The top of the library and of the
// hand is the end of the slice.
type Game struct {
	Player             string               `json:"player,omitempty" yaml:"player,omitempty"`
	Life               int                  `json:"life" yaml:"life"`
	Library            []string             `json:"library" yaml:"library"`
	Hand               []string             `json:"hand" yaml:"hand"`
	Graveyard          []string             `json:"graveyard" yaml:"graveyard"`
	ReplacementEffects replacement.Registry `json:"replacement_effects" yaml:"replacement_effects"`
}

// New creates a game with the given life total and library, bottom card first.
func New(life int, library ...string) *Game {
	return &Game{
		Life:               life,
		Library:            slices.Clone(library),
		Hand:               []string{},
		Graveyard:          []string{},
		ReplacementEffects: replacement.Registry{},
	}
}

// Clone returns a deep copy of the game.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	return &Game{
		Player:             g.Player,
		Life:               g.Life,
		Library:            cloneZone(g.Library),
		Hand:               cloneZone(g.Hand),
		Graveyard:          cloneZone(g.Graveyard),
		ReplacementEffects: g.ReplacementEffects.Clone(),
	}
}

func cloneZone(cards []string) []string {
	if cards == nil {
		return []string{}
	}
	return slices.Clone(cards)
}

// pop removes and returns the top card of a zone.
func pop(zone *[]string) (string, bool) {
	cards := *zone
	if len(cards) == 0 {
		return "", false
	}
	card := cards[len(cards)-1]
	*zone = cards[:len(cards)-1]
	return card, true
}
