package effect

import (
	"errors"
	"fmt"
)

var (
	// ErrEncode indicates a call result could not be serialized.
	ErrEncode = errors.New("effect value encode failed")
	// ErrDecode indicates a recorded result does not match the requested type.
	ErrDecode = errors.New("effect value decode failed")
	// ErrInvalidDocument indicates an effect document failed schema validation.
	ErrInvalidDocument = errors.New("invalid effect document")
	// ErrUnsupportedVersion indicates an effect document written by an incompatible format.
	ErrUnsupportedVersion = errors.New("unsupported effect document version")
)

// EncodeError reports a value that cannot be represented as an effect value.
type EncodeError struct {
	Type string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode effect value of type %s: %v", e.Type, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Is matches ErrEncode.
func (e *EncodeError) Is(target error) bool { return target == ErrEncode }

// DecodeError reports a recorded value that cannot be decoded as the requested
// type. During replay it means the call tree no longer lines up with the code
// driving it.
type DecodeError struct {
	Type string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode effect value as %s: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is matches ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }
