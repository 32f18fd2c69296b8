package effect

import (
	"bytes"
	"encoding/json"

	"github.com/gowebpki/jcs"
)

// Node records one completed call: its result and the calls it made, in call
// order.
type Node struct {
	Result   Value  `json:"result"`
	Children []Node `json:"children"`
}

// MarshalJSON keeps children as an array even when the call made no nested calls.
func (n Node) MarshalJSON() ([]byte, error) {
	type wire struct {
		Result   Value  `json:"result"`
		Children []Node `json:"children"`
	}
	children := n.Children
	if children == nil {
		children = []Node{}
	}
	return json.Marshal(wire{Result: n.Result, Children: children})
}

// Clone returns a deep copy of nodes.
func Clone(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	cloned := make([]Node, len(nodes))
	for i, node := range nodes {
		cloned[i] = Node{
			Result:   Value{raw: bytes.Clone(node.Result.raw)},
			Children: Clone(node.Children),
		}
	}
	return cloned
}

// Count returns the number of nodes in the tree, descendants included.
func Count(nodes []Node) int {
	total := len(nodes)
	for _, node := range nodes {
		total += Count(node.Children)
	}
	return total
}

// Equal reports whether two trees record the same results in the same shape.
// Results are compared by their canonical JSON form.
func Equal(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equalValue(a[i].Result, b[i].Result) {
			return false
		}
		if !Equal(a[i].Children, b[i].Children) {
			return false
		}
	}
	return true
}

func equalValue(a, b Value) bool {
	left, errLeft := jcs.Transform(a.Bytes())
	right, errRight := jcs.Transform(b.Bytes())
	if errLeft != nil || errRight != nil {
		return bytes.Equal(bytes.TrimSpace(a.raw), bytes.TrimSpace(b.raw))
	}
	return bytes.Equal(left, right)
}
