package scenario

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/louisbranch/replaykit/internal/game"
)

const (
	scenarioTypeName = "scenario"
	turnTypeName     = "turn"
)

type turnHandle struct {
	scenario *Scenario
	index    int
}

// LoadFile runs the Lua script at path and returns the scenario it builds.
// A scenario without a name is named after the file.
func LoadFile(path string) (*Scenario, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return load(name, func(state *lua.State) error {
		return lua.LoadFile(state, path, "")
	})
}

// LoadString runs src as a Lua script named name.
func LoadString(name, src string) (*Scenario, error) {
	return load(name, func(state *lua.State) error {
		return lua.LoadBuffer(state, src, name, "")
	})
}

func load(name string, chunk func(*lua.State) error) (*Scenario, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)
	registerLuaTypes(state)

	if err := chunk(state); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}

	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	scenario, ok := ud.(*Scenario)
	if !ok || scenario == nil {
		return nil, fmt.Errorf("scenario script returned invalid Scenario")
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = name
	}
	if scenario.Game == nil {
		scenario.Game = game.New(0)
	}
	return scenario, nil
}

func registerLuaTypes(state *lua.State) {
	registerType(state, scenarioTypeName, scenarioMethods)
	registerType(state, turnTypeName, turnMethods)

	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{{Name: "new", Function: scenarioNew}}, 0)
	state.SetGlobal("Scenario")
}

func registerType(state *lua.State, name string, methods []lua.RegistryFunction) {
	lua.NewMetaTable(state, name)
	state.NewTable()
	lua.SetFunctions(state, methods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	state.PushUserData(&Scenario{Name: name})
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "game", Function: scenarioGame},
	{Name: "turn", Function: scenarioTurn},
	{Name: "expect_game", Function: scenarioExpectGame},
}

func scenarioGame(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	args := tableToMap(state, 2)

	life, err := intField(args, "life", 20)
	if err != nil {
		lua.ArgumentError(state, 2, err.Error())
	}
	library, err := stringsField(args, "library")
	if err != nil {
		lua.ArgumentError(state, 2, err.Error())
	}
	g := game.New(life, library...)
	if player, ok := args["player"].(string); ok {
		g.Player = player
	}
	scenario.Game = g

	state.PushValue(1)
	return 1
}

func scenarioTurn(state *lua.State) int {
	scenario := checkScenario(state)
	name := lua.OptString(state, 2, fmt.Sprintf("turn %d", len(scenario.Turns)+1))
	scenario.Turns = append(scenario.Turns, Turn{Name: name})

	state.PushUserData(&turnHandle{scenario: scenario, index: len(scenario.Turns) - 1})
	lua.SetMetaTableNamed(state, turnTypeName)
	return 1
}

func scenarioExpectGame(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	args := tableToMap(state, 2)

	expect := &GameExpectation{}
	if _, ok := args["life"]; ok {
		life, err := intField(args, "life", 0)
		if err != nil {
			lua.ArgumentError(state, 2, err.Error())
		}
		expect.Life = &life
	}
	for field, target := range map[string]*[]string{
		"library":   &expect.Library,
		"hand":      &expect.Hand,
		"graveyard": &expect.Graveyard,
	} {
		if _, ok := args[field]; !ok {
			continue
		}
		cards, err := stringsField(args, field)
		if err != nil {
			lua.ArgumentError(state, 2, err.Error())
		}
		*target = cards
	}
	scenario.Expect = expect

	state.PushValue(1)
	return 1
}

var turnMethods = []lua.RegistryFunction{
	{Name: "draw", Function: turnDraw},
	{Name: "draw_one", Function: turnDrawOne},
	{Name: "gain_life", Function: turnGainLife},
	{Name: "replace_draw_with_discard", Function: turnReplaceDrawWithDiscard},
	{Name: "replace_draw_with_mill", Function: turnReplaceDrawWithMill},
	{Name: "expect", Function: turnExpect},
}

func turnDraw(state *lua.State) int {
	turn := checkTurn(state)
	count := lua.OptInteger(state, 2, 1)
	if count < 0 {
		lua.ArgumentError(state, 2, "draw count must not be negative")
	}
	return appendStep(state, turn, StepDraw, map[string]any{"count": count})
}

func turnDrawOne(state *lua.State) int {
	return appendStep(state, checkTurn(state), StepDrawOne, nil)
}

func turnGainLife(state *lua.State) int {
	turn := checkTurn(state)
	amount := lua.CheckInteger(state, 2)
	return appendStep(state, turn, StepGainLife, map[string]any{"amount": amount})
}

func turnReplaceDrawWithDiscard(state *lua.State) int {
	return appendStep(state, checkTurn(state), StepReplaceDrawWithDiscard, nil)
}

func turnReplaceDrawWithMill(state *lua.State) int {
	turn := checkTurn(state)
	when := lua.OptString(state, 2, "")
	if err := game.ValidateCondition(when); err != nil {
		lua.ArgumentError(state, 2, err.Error())
	}
	return appendStep(state, turn, StepReplaceDrawWithMill, map[string]any{"when": when})
}

func turnExpect(state *lua.State) int {
	turn := checkTurn(state)
	message := lua.CheckString(state, 2)
	steps := turn.scenario.Turns[turn.index].Steps
	if len(steps) == 0 {
		lua.Errorf(state, "expect needs a preceding step")
	}
	steps[len(steps)-1].Expect = message

	state.PushValue(1)
	return 1
}

func appendStep(state *lua.State, turn *turnHandle, kind string, args map[string]any) int {
	if args == nil {
		args = map[string]any{}
	}
	steps := &turn.scenario.Turns[turn.index].Steps
	*steps = append(*steps, Step{Kind: kind, Args: args})

	state.PushValue(1)
	return 1
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if scenario, ok := ud.(*Scenario); ok && scenario != nil {
		return scenario
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

func checkTurn(state *lua.State) *turnHandle {
	ud := lua.CheckUserData(state, 1, turnTypeName)
	if turn, ok := ud.(*turnHandle); ok && turn != nil && turn.scenario != nil {
		return turn
	}
	lua.ArgumentError(state, 1, "turn expected")
	return nil
}

func intField(args map[string]any, key string, fallback int) (int, error) {
	value, ok := args[key]
	if !ok {
		return fallback, nil
	}
	number, ok := value.(int)
	if !ok {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return number, nil
}

// stringsField reads an array of strings. An empty Lua table reads as an
// empty list.
func stringsField(args map[string]any, key string) ([]string, error) {
	value, ok := args[key]
	if !ok {
		return []string{}, nil
	}
	switch items := value.(type) {
	case []any:
		cards := make([]string, 0, len(items))
		for _, item := range items {
			card, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s must be a list of strings", key)
			}
			cards = append(cards, card)
		}
		return cards, nil
	case map[string]any:
		if len(items) == 0 {
			return []string{}, nil
		}
	}
	return nil, fmt.Errorf("%s must be a list of strings", key)
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

func tableToGo(state *lua.State, index int) any {
	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if idx, ok := state.ToInteger(-2); ok && state.TypeOf(-2) == lua.TypeNumber && idx > 0 {
				count++
				maxIndex = max(maxIndex, idx)
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}
	return tableToMap(state, index)
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
