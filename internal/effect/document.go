package effect

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FormatVersion is the version written into exported documents.
const FormatVersion = "1.0.0"

const (
	formatConstraint = "^1.0.0"
	schemaURL        = "https://replaykit.schemas.local/effects.schema.json"
)

//go:embed schema/effects.schema.json
var documentSchema string

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// Document is the persisted form of a recorded run.
type Document struct {
	Version string `json:"version"`
	Effects []Node `json:"effects"`
}

// Export serializes a recorded tree into an order-preserving JSON document.
func Export(nodes []Node) ([]byte, error) {
	if nodes == nil {
		nodes = []Node{}
	}
	data, err := json.Marshal(Document{Version: FormatVersion, Effects: nodes})
	if err != nil {
		return nil, fmt.Errorf("marshal effect document: %w", err)
	}
	return data, nil
}

// Import validates and decodes an exported document.
func Import(data []byte) ([]Node, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := checkVersion(doc.Version); err != nil {
		return nil, err
	}
	if doc.Effects == nil {
		doc.Effects = []Node{}
	}
	return doc.Effects, nil
}

func checkVersion(raw string) error {
	version, err := semver.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrUnsupportedVersion, raw, err)
	}
	constraint, err := semver.NewConstraint(formatConstraint)
	if err != nil {
		return fmt.Errorf("parse format constraint: %w", err)
	}
	if !constraint.Check(version) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrUnsupportedVersion, raw, formatConstraint)
	}
	return nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, bytes.NewReader([]byte(documentSchema))); err != nil {
			compileErr = fmt.Errorf("effect schema load failed: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(schemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("effect schema compile failed: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}
