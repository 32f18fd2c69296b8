package sqlite

import "github.com/louisbranch/replaykit/internal/interpreter"

type tally struct {
	Sum int `json:"sum"`
}

type replayInterpreter = interpreter.Interpreter[*tally]

func applyAdd(in *replayInterpreter, amount int) (int, error) {
	return interpreter.Apply(in, func(in *replayInterpreter) (int, error) {
		in.State().Sum += amount
		return in.State().Sum, nil
	})
}
