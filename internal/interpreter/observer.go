package interpreter

import "fmt"

// Frame locates a call in the tree: its nesting depth and its position under
// its parent.
type Frame struct {
	Depth    int
	Position int
}

func (f Frame) String() string {
	return fmt.Sprintf("depth %d position %d", f.Depth, f.Position)
}

// Observer is notified of every call routed through Apply.
type Observer interface {
	EffectExecuted(Frame)
	EffectReplayed(Frame)
}

// Stats counts executed and replayed calls.
type Stats struct {
	Executed int
	Replayed int
}

// EffectExecuted implements Observer.
func (s *Stats) EffectExecuted(Frame) { s.Executed++ }

// EffectReplayed implements Observer.
func (s *Stats) EffectReplayed(Frame) { s.Replayed++ }
