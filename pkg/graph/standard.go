package graph

// Standard holds one sorted neighbor slice per node.
type Standard struct {
	adj [][]int
	ids *idMap
}

func (g *Standard) NodeCount() int { return len(g.adj) }

func (g *Standard) Degree(node int) int { return len(g.adj[node]) }

func (g *Standard) ForEachNeighbor(node int, visit func(neighbor int) bool) {
	for _, v := range g.adj[node] {
		if !visit(v) {
			return
		}
	}
}

// Neighbors returns node's sorted neighbor slice. Callers must not modify it
func (g *Standard) Neighbors(node int) []int { return g.adj[node] }

func (g *Standard) Tier() Tier { return TierStandard }

func (g *Standard) NeighborsSorted() bool { return true }

func (g *Standard) ToOriginalNodeID(node int) int64 { return g.ids.toOriginal(node) }

func (g *Standard) ToMappedNodeID(original int64) (int, bool) {
	return g.ids.toMapped(original, len(g.adj))
}

// EdgeCount returns the number of undirected edges
func (g *Standard) EdgeCount() int {
	total := 0
	for _, list := range g.adj {
		total += len(list)
	}
	return total / 2
}

var (
	_ Graph    = (*Standard)(nil)
	_ Sorted   = (*Standard)(nil)
	_ IDMapper = (*Standard)(nil)
)
