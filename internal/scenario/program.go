package scenario

import (
	"errors"
	"fmt"
	"slices"

	"github.com/louisbranch/replaykit/internal/game"
	"github.com/louisbranch/replaykit/internal/interpreter"
	"github.com/louisbranch/replaykit/internal/replay"
)

var (
	// ErrScenarioRequired indicates a nil scenario.
	ErrScenarioRequired = errors.New("scenario is required")
	// ErrRulesRequired indicates nil rules.
	ErrRulesRequired = errors.New("rules are required")
	// ErrUnknownStep indicates a step kind with no effect behind it.
	ErrUnknownStep = errors.New("unknown step")
)

// TurnResult is the recorded result of one turn.
type TurnResult struct {
	Name     string   `json:"name"`
	Messages []string `json:"messages"`
}

// Program returns the top-level program of the scenario: one recorded call
// per turn, each holding one recorded call per step. Step expectations are
// checked when a turn runs, so a replayed turn is not checked again.
func Program(s *Scenario, rules *game.Rules, assertions Assertions) (replay.Program[*game.Game], error) {
	if s == nil {
		return nil, ErrScenarioRequired
	}
	if rules == nil {
		return nil, ErrRulesRequired
	}
	return func(in *game.Interpreter) error {
		for _, turn := range s.Turns {
			if _, err := interpreter.Apply(in, playTurn(turn, rules, assertions)); err != nil {
				return fmt.Errorf("turn %s: %w", turn.Name, err)
			}
		}
		return nil
	}, nil
}

func playTurn(turn Turn, rules *game.Rules, assertions Assertions) func(*game.Interpreter) (TurnResult, error) {
	return func(in *game.Interpreter) (TurnResult, error) {
		result := TurnResult{Name: turn.Name, Messages: []string{}}
		for index, step := range turn.Steps {
			messages, err := playStep(in, step, rules)
			if err != nil {
				return TurnResult{}, fmt.Errorf("step %d (%s): %w", index+1, step.Kind, err)
			}
			if step.Expect != "" {
				got := ""
				if len(messages) > 0 {
					got = messages[0]
				}
				if got != step.Expect {
					if err := assertions.Assertf("turn %s step %d (%s): got %q, want %q", turn.Name, index+1, step.Kind, got, step.Expect); err != nil {
						return TurnResult{}, err
					}
				}
			}
			result.Messages = append(result.Messages, messages...)
		}
		return result, nil
	}
}

func playStep(in *game.Interpreter, step Step, rules *game.Rules) ([]string, error) {
	switch step.Kind {
	case StepDraw:
		outcomes, err := interpreter.Apply(in, rules.DrawCards(intArg(step.Args, "count")))
		if err != nil {
			return nil, err
		}
		messages := slices.Clone(outcomes.Messages)
		if outcomes.Failed() {
			messages = append(messages, outcomes.Failure)
		}
		return messages, nil
	case StepDrawOne:
		outcome, err := interpreter.Apply(in, rules.DrawCard)
		if err != nil {
			return nil, err
		}
		return []string{outcome.String()}, nil
	case StepGainLife:
		message, err := interpreter.Apply(in, game.GainLife(intArg(step.Args, "amount")))
		if err != nil {
			return nil, err
		}
		return []string{message}, nil
	case StepReplaceDrawWithDiscard:
		_, err := interpreter.Apply(in, game.ReplaceDrawWithDiscard)
		return nil, err
	case StepReplaceDrawWithMill:
		when, _ := step.Args["when"].(string)
		_, err := interpreter.Apply(in, game.ReplaceDrawWithMill(when))
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStep, step.Kind)
	}
}

func intArg(args map[string]any, key string) int {
	value, _ := args[key].(int)
	return value
}

// Verify checks the final game against the scenario's expect_game block.
func Verify(s *Scenario, g *game.Game, assertions Assertions) error {
	if s == nil || s.Expect == nil {
		return nil
	}
	if g == nil {
		return assertions.Assertf("game is missing")
	}
	expect := s.Expect
	if expect.Life != nil && g.Life != *expect.Life {
		if err := assertions.Assertf("life = %d, want %d", g.Life, *expect.Life); err != nil {
			return err
		}
	}
	zones := []struct {
		name string
		want []string
		got  []string
	}{
		{name: "library", want: expect.Library, got: g.Library},
		{name: "hand", want: expect.Hand, got: g.Hand},
		{name: "graveyard", want: expect.Graveyard, got: g.Graveyard},
	}
	for _, zone := range zones {
		if zone.want == nil || slices.Equal(zone.got, zone.want) {
			continue
		}
		if err := assertions.Assertf("%s = %v, want %v", zone.name, zone.got, zone.want); err != nil {
			return err
		}
	}
	return nil
}
