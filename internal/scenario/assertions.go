package scenario

import (
	"errors"
	"fmt"
	"log"
)

// ErrExpectation indicates a scenario expectation that did not hold.
var ErrExpectation = errors.New("expectation failed")

// AssertionMode controls how failed expectations are reported.
type AssertionMode int

const (
	// AssertionStrict fails the run on the first unmet expectation.
	AssertionStrict AssertionMode = iota
	// AssertionLogOnly logs unmet expectations and keeps going.
	AssertionLogOnly
)

// Assertions reports failed expectations according to Mode.
type Assertions struct {
	Mode   AssertionMode
	Logger *log.Logger
}

// Assertf reports an unmet expectation. It returns an error wrapping
// ErrExpectation in strict mode and nil otherwise.
func (a Assertions) Assertf(format string, args ...any) error {
	err := fmt.Errorf("%w: %s", ErrExpectation, fmt.Sprintf(format, args...))
	if a.Mode == AssertionStrict {
		return err
	}
	if a.Logger != nil {
		a.Logger.Printf("%v", err)
	}
	return nil
}
