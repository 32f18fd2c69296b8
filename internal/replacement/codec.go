package replacement

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/replaykit/internal/interpreter"
)

var (
	// ErrTagAlreadyRegistered indicates a duplicate decoder registration.
	ErrTagAlreadyRegistered = errors.New("replacement tag already registered")
	// ErrUnknownTag indicates an entry whose tag has no decoder.
	ErrUnknownTag = errors.New("replacement tag is not registered")
	// ErrDecoderRequired indicates a missing decoder.
	ErrDecoderRequired = errors.New("replacement decoder is required")
)

// Candidate is an alternative handler that may replace an effect producing V.
type Candidate[S, V any] interface {
	// Check reports whether the candidate applies to the current state.
	Check(state S) bool
	// Apply runs the replacement in place of the default behavior.
	Apply(in *interpreter.Interpreter[S]) (V, error)
}

// Decoder rebuilds a candidate from the fields of its tagged entry. fields is
// the JSON null document for variants without data.
type Decoder[S, V any] func(fields json.RawMessage) (Candidate[S, V], error)

// Codec maps stable tags to candidate decoders.
type Codec[S, V any] struct {
	decoders map[string]Decoder[S, V]
}

// NewCodec creates an empty codec.
func NewCodec[S, V any]() *Codec[S, V] {
	return &Codec[S, V]{decoders: make(map[string]Decoder[S, V])}
}

// Register adds a decoder for tag.
func (c *Codec[S, V]) Register(tag string, decoder Decoder[S, V]) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ErrTagRequired
	}
	if decoder == nil {
		return ErrDecoderRequired
	}
	if c.decoders == nil {
		c.decoders = make(map[string]Decoder[S, V])
	}
	if _, exists := c.decoders[tag]; exists {
		return fmt.Errorf("%w: %s", ErrTagAlreadyRegistered, tag)
	}
	c.decoders[tag] = decoder
	return nil
}

// Decode rebuilds the candidate stored in entry.
func (c *Codec[S, V]) Decode(entry json.RawMessage) (Candidate[S, V], error) {
	tag, fields, err := SplitTag(entry)
	if err != nil {
		return nil, err
	}
	decoder, ok := c.decoders[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTag, tag)
	}
	candidate, err := decoder(fields)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", tag, err)
	}
	if candidate == nil {
		return nil, fmt.Errorf("decode %s: %w", tag, ErrDecoderRequired)
	}
	return candidate, nil
}

// Fields returns a decoder for variants whose fields unmarshal into C.
func Fields[C Candidate[S, V], S, V any]() Decoder[S, V] {
	return func(fields json.RawMessage) (Candidate[S, V], error) {
		var candidate C
		if len(fields) == 0 || string(fields) == "null" {
			return candidate, nil
		}
		if err := json.Unmarshal(fields, &candidate); err != nil {
			return nil, err
		}
		return candidate, nil
	}
}
