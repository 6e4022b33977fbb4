package triangles

import (
	"container/heap"
	"fmt"
)

// resultHeap is a min-heap with the weakest result at the root: fewer
// triangles first, and among equal counts the larger node id.
type resultHeap []Result

func (h resultHeap) Len() int { return len(h) }
func (h resultHeap) Less(i, j int) bool {
	if h[i].Triangles != h[j].Triangles {
		return h[i].Triangles < h[j].Triangles
	}
	return h[i].NodeID > h[j].NodeID
}
func (h resultHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x any) {
	*h = append(*h, x.(Result))
}

func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// TopNodes keeps a bounded min-heap over all results, so it runs in
// O(n log k) time and O(k) space.
func (e *engine) TopNodes(n int) ([]Result, error) {
	if n < 0 {
		return nil, fmt.Errorf("top nodes: negative count %d", n)
	}
	results, err := e.Results()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []Result{}, nil
	}

	h := make(resultHeap, 0, n)
	for r := range results {
		if h.Len() < n {
			heap.Push(&h, r)
			continue
		}
		root := h[0]
		if r.Triangles > root.Triangles || (r.Triangles == root.Triangles && r.NodeID < root.NodeID) {
			h[0] = r
			heap.Fix(&h, 0)
		}
	}

	// Pop yields ascending order; fill from the back
	top := make([]Result, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		top[i] = heap.Pop(&h).(Result)
	}
	return top, nil
}
