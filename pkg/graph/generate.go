package graph

import "math/rand/v2"

// Complete returns the complete graph on n nodes
func Complete(n int) *Builder {
	b := NewBuilder(n)
	for u := 0; u < n; u++ {
		for v := u + 1; v < n; v++ {
			_ = b.AddEdge(u, v)
		}
	}
	return b
}

// Random returns an Erdős-Rényi style graph with n nodes and up to edges
// edges drawn uniformly with the given seed. Duplicates and self loops are
// dropped at build time.
func Random(n, edges int, seed uint64) *Builder {
	b := NewBuilder(n)
	if n < 2 {
		return b
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i := 0; i < edges; i++ {
		_ = b.AddEdge(rng.IntN(n), rng.IntN(n))
	}
	return b
}

// Star returns a star with one hub and n-1 leaves
func Star(n int) *Builder {
	b := NewBuilder(n)
	for v := 1; v < n; v++ {
		_ = b.AddEdge(0, v)
	}
	return b
}
