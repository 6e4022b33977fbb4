// Package graph defines the read-only adjacency view the triangle-count
// algorithms consume, together with its in-memory and memory-mapped
// implementations.
//
// Node identifiers are dense integers in [0, NodeCount()). Adjacency is
// undirected: v is a neighbor of u exactly when u is a neighbor of v, and
// each neighbor is reported once.
package graph

import "errors"

var (
	// ErrNegativeNode is returned when an edge names a negative node id
	ErrNegativeNode = errors.New("negative node id")
	// ErrCorrupt is returned for malformed mapped graph files
	ErrCorrupt = errors.New("corrupt graph file")
)

// Tier distinguishes graph representations that need different counting
// strategies.
type Tier int

const (
	// TierStandard graphs hold conventional per-node adjacency slices
	TierStandard Tier = iota
	// TierCompact graphs are paged or memory-mapped with minimal per-node
	// overhead
	TierCompact
)

// String returns the tier name
func (t Tier) String() string {
	switch t {
	case TierStandard:
		return "standard"
	case TierCompact:
		return "compact"
	default:
		return "unknown"
	}
}

// Graph is read-only adjacency access. Implementations must be safe for
// concurrent readers and must not change while an algorithm runs.
type Graph interface {
	NodeCount() int
	Degree(node int) int
	// ForEachNeighbor calls visit for every neighbor of node until visit
	// returns false
	ForEachNeighbor(node int, visit func(neighbor int) bool)
	Tier() Tier
}

// Sorted is implemented by graphs that can report whether ForEachNeighbor
// yields neighbors in ascending order.
type Sorted interface {
	NeighborsSorted() bool
}

// IDMapper is implemented by graphs whose dense ids were assigned from
// original identifiers.
type IDMapper interface {
	ToOriginalNodeID(node int) int64
	ToMappedNodeID(original int64) (int, bool)
}

// IsSorted reports whether g promises ascending neighbor order.
func IsSorted(g Graph) bool {
	s, ok := g.(Sorted)
	return ok && s.NeighborsSorted()
}

// OriginalID maps node through g's IDMapper, or returns it unchanged.
func OriginalID(g Graph, node int) int64 {
	if m, ok := g.(IDMapper); ok {
		return m.ToOriginalNodeID(node)
	}
	return int64(node)
}
