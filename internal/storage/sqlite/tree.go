package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/louisbranch/replaykit/internal/effect"
)

// nodeRow is one effect node as stored: node ids follow a pre-order walk, so
// a parent always has a smaller id than its children.
type nodeRow struct {
	id       int64
	parent   sql.NullInt64
	position int
	result   []byte
}

func flatten(nodes []effect.Node) []nodeRow {
	var rows []nodeRow
	var walk func(nodes []effect.Node, parent sql.NullInt64)
	walk = func(nodes []effect.Node, parent sql.NullInt64) {
		for position, node := range nodes {
			id := int64(len(rows))
			rows = append(rows, nodeRow{id: id, parent: parent, position: position, result: node.Result.Bytes()})
			walk(node.Children, sql.NullInt64{Int64: id, Valid: true})
		}
	}
	walk(nodes, sql.NullInt64{})
	return rows
}

func buildTree(rows []nodeRow) ([]effect.Node, error) {
	index := make(map[int64]int, len(rows))
	children := make(map[int64][]int, len(rows))
	var roots []int
	for i, row := range rows {
		index[row.id] = i
		if !row.parent.Valid {
			if row.position != len(roots) {
				return nil, fmt.Errorf("%w: node %d at position %d", ErrCorruptTree, row.id, row.position)
			}
			roots = append(roots, i)
			continue
		}
		if _, ok := index[row.parent.Int64]; !ok {
			return nil, fmt.Errorf("%w: node %d has unknown parent %d", ErrCorruptTree, row.id, row.parent.Int64)
		}
		if row.position != len(children[row.parent.Int64]) {
			return nil, fmt.Errorf("%w: node %d at position %d", ErrCorruptTree, row.id, row.position)
		}
		children[row.parent.Int64] = append(children[row.parent.Int64], i)
	}

	var build func(indexes []int) ([]effect.Node, error)
	build = func(indexes []int) ([]effect.Node, error) {
		nodes := make([]effect.Node, 0, len(indexes))
		for _, i := range indexes {
			result, err := effect.Raw(rows[i].result)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", rows[i].id, err)
			}
			kids, err := build(children[rows[i].id])
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, effect.Node{Result: result, Children: kids})
		}
		return nodes, nil
	}
	return build(roots)
}
