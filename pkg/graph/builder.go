package graph

import (
	"fmt"
	"slices"
)

// Builder collects undirected edges and produces Standard or Compact
// graphs. Self loops are dropped and parallel edges collapse into one.
// A Builder is not safe for concurrent use.
type Builder struct {
	nodeCount int
	src       []int
	dst       []int
	ids       *idMap
}

// NewBuilder creates a builder for at least nodeCount nodes
func NewBuilder(nodeCount int) *Builder {
	if nodeCount < 0 {
		nodeCount = 0
	}
	return &Builder{nodeCount: nodeCount}
}

// NodeCount returns the number of nodes the built graph will have
func (b *Builder) NodeCount() int { return b.nodeCount }

// EdgeCount returns the number of edges added so far, before dedup
func (b *Builder) EdgeCount() int { return len(b.src) }

// AddNode appends an isolated node and returns its id
func (b *Builder) AddNode() int {
	b.nodeCount++
	return b.nodeCount - 1
}

// AddEdge records the undirected edge {u, v}, growing the node count to
// cover both ends.
func (b *Builder) AddEdge(u, v int) error {
	if u < 0 || v < 0 {
		return fmt.Errorf("%w: edge (%d, %d)", ErrNegativeNode, u, v)
	}
	if u >= b.nodeCount {
		b.nodeCount = u + 1
	}
	if v >= b.nodeCount {
		b.nodeCount = v + 1
	}
	b.src = append(b.src, u)
	b.dst = append(b.dst, v)
	return nil
}

// adjacency builds sorted, deduplicated neighbor lists sharing one backing
// array.
func (b *Builder) adjacency() [][]int {
	n := b.nodeCount
	offsets := make([]int, n+1)
	for i := range b.src {
		if b.src[i] == b.dst[i] {
			continue
		}
		offsets[b.src[i]+1]++
		offsets[b.dst[i]+1]++
	}
	for i := 1; i <= n; i++ {
		offsets[i] += offsets[i-1]
	}

	targets := make([]int, offsets[n])
	fill := make([]int, n)
	copy(fill, offsets[:n])
	for i := range b.src {
		u, v := b.src[i], b.dst[i]
		if u == v {
			continue
		}
		targets[fill[u]] = v
		fill[u]++
		targets[fill[v]] = u
		fill[v]++
	}

	adj := make([][]int, n)
	for u := 0; u < n; u++ {
		list := targets[offsets[u]:offsets[u+1]:offsets[u+1]]
		slices.Sort(list)
		adj[u] = slices.Compact(list)
	}
	return adj
}

// BuildStandard produces an in-memory standard-tier graph
func (b *Builder) BuildStandard() *Standard {
	return &Standard{adj: b.adjacency(), ids: b.ids}
}

// BuildCompact produces a paged, delta-encoded compact-tier graph
func (b *Builder) BuildCompact() *Compact {
	return newCompact(b.adjacency(), b.ids)
}
