package graph

import (
	"slices"

	gonum "gonum.org/v1/gonum/graph"
)

// FromGonum copies an undirected gonum graph into a Standard graph. Gonum
// node ids become original ids, assigned dense ids in ascending order.
func FromGonum(src gonum.Undirected) *Standard {
	var originals []int64
	nodes := src.Nodes()
	for nodes.Next() {
		originals = append(originals, nodes.Node().ID())
	}
	slices.Sort(originals)

	b := NewBuilder(0)
	b.ids = newIDMap()
	for _, id := range originals {
		b.ids.intern(id)
	}
	b.nodeCount = len(originals)

	for u, id := range originals {
		neighbors := src.From(id)
		for neighbors.Next() {
			v := b.ids.index[neighbors.Node().ID()]
			if u < v {
				_ = b.AddEdge(u, v)
			}
		}
	}
	return b.BuildStandard()
}
