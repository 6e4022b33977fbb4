package triangles

import (
	"slices"

	"github.com/dd0wney/cluso-triangles/pkg/graph"
	"github.com/dd0wney/cluso-triangles/pkg/paged"
	"github.com/dd0wney/cluso-triangles/pkg/parallel"
	"github.com/dd0wney/cluso-triangles/pkg/pools"
)

// compactCounter splits the node range into one contiguous part per worker.
// Each worker gathers the forward neighbors of u into its own scratch
// slice and looks up every forward neighbor w of each v in it by binary
// search, so no per-node index outlives the node being processed.
type compactCounter struct{}

func (compactCounter) strategy() Strategy   { return StrategyCompact }
func (compactCounter) layout() paged.Layout { return paged.LayoutPaged }

func (compactCounter) tasks(r *run) []parallel.Task {
	ranges := parallel.Partition(r.graph.NodeCount(), r.concurrency)
	tasks := make([]parallel.Task, len(ranges))
	for i, rng := range ranges {
		tasks[i] = func() error {
			countRange(r, rng)
			return nil
		}
	}
	return tasks
}

func countRange(r *run, rng parallel.Range) {
	g := r.graph
	sorted := graph.IsSorted(g)
	forward := pools.Ints.Get(pools.SmallSize)
	defer func() { pools.Ints.Put(forward) }()

	pending := 0
	for u := rng.Start; u < rng.End; u++ {
		if pending == checkInterval || u == rng.Start {
			r.advance(pending)
			pending = 0
			if !r.running() {
				return
			}
		}
		pending++

		forward = forward[:0]
		g.ForEachNeighbor(u, func(v int) bool {
			if v > u {
				forward = append(forward, v)
			}
			return true
		})
		if len(forward) < 2 {
			continue
		}
		if !sorted {
			slices.Sort(forward)
		}

		last := forward[len(forward)-1]
		for i, v := range forward[:len(forward)-1] {
			candidates := forward[i+1:]
			g.ForEachNeighbor(v, func(w int) bool {
				if w <= v {
					return true
				}
				if sorted && w > last {
					return false
				}
				if _, found := slices.BinarySearch(candidates, w); found {
					r.triangle(u, v, w)
				}
				return true
			})
		}
	}
	r.advance(pending)
}
