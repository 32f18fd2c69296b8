package effect

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// RenderYAML renders any JSON-serializable document as block-style YAML while
// keeping the field order of its JSON form.
func RenderYAML(doc any) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	resetStyle(&node)
	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("render yaml: %w", err)
	}
	return out, nil
}

// resetStyle drops the flow and quoting styles inherited from JSON input.
func resetStyle(node *yaml.Node) {
	node.Style = 0
	for _, child := range node.Content {
		resetStyle(child)
	}
}
