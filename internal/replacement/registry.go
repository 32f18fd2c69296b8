package replacement

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrTagRequired indicates a missing candidate tag.
	ErrTagRequired = errors.New("replacement tag is required")
	// ErrMalformedEntry indicates an entry is not a single-key tagged object.
	ErrMalformedEntry = errors.New("malformed replacement entry")
)

// Registry maps event keys to their tagged candidate entries in registration
// order. It lives inside the shared state and serializes with it.
type Registry map[string][]json.RawMessage

// Add appends a candidate entry for key.
func (r *Registry) Add(key string, entry json.RawMessage) {
	if *r == nil {
		*r = make(Registry)
	}
	(*r)[key] = append((*r)[key], bytes.Clone(entry))
}

// Candidates returns the entries registered for key, oldest first.
func (r Registry) Candidates(key string) []json.RawMessage {
	entries := r[key]
	if len(entries) == 0 {
		return nil
	}
	out := make([]json.RawMessage, len(entries))
	for i, entry := range entries {
		out[i] = bytes.Clone(entry)
	}
	return out
}

// Keys returns the registered event keys in sorted order.
func (r Registry) Keys() []string {
	return slices.Sorted(maps.Keys(r))
}

// Clone returns a deep copy of the registry.
func (r Registry) Clone() Registry {
	if r == nil {
		return nil
	}
	cloned := make(Registry, len(r))
	for key := range r {
		cloned[key] = r.Candidates(key)
	}
	return cloned
}

// Tag builds a tagged entry {"<tag>": fields}. A nil fields value is stored as
// null, for variants that carry no data.
func Tag(tag string, fields any) (json.RawMessage, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, ErrTagRequired
	}
	data, err := json.Marshal(map[string]any{tag: fields})
	if err != nil {
		return nil, fmt.Errorf("encode %s entry: %w", tag, err)
	}
	return data, nil
}

// SplitTag returns the tag and the raw fields of a tagged entry.
func SplitTag(entry json.RawMessage) (string, json.RawMessage, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(entry, &tagged); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	if len(tagged) != 1 {
		return "", nil, fmt.Errorf("%w: expected one tag, got %d", ErrMalformedEntry, len(tagged))
	}
	for tag, fields := range tagged {
		if strings.TrimSpace(tag) == "" {
			return "", nil, ErrTagRequired
		}
		return tag, fields, nil
	}
	return "", nil, ErrMalformedEntry
}
