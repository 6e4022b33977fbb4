package triangles

import (
	"slices"
	"sync/atomic"

	"github.com/dd0wney/cluso-triangles/pkg/graph"
	"github.com/dd0wney/cluso-triangles/pkg/paged"
	"github.com/dd0wney/cluso-triangles/pkg/parallel"
	"github.com/dd0wney/cluso-triangles/pkg/pools"
)

// queueChunk is the number of nodes a worker takes from the shared queue
// at once. Termination is checked between chunks.
const queueChunk = 64

// standardCounter drains a shared queue of node chunks with one task per
// worker. Sorted graphs intersect forward lists by merging; unsorted graphs
// stamp u's forward neighbors into a per-worker array.
type standardCounter struct{}

func (standardCounter) strategy() Strategy   { return StrategyStandard }
func (standardCounter) layout() paged.Layout { return paged.LayoutDense }

func (standardCounter) tasks(r *run) []parallel.Task {
	n := r.graph.NodeCount()
	workers := min(r.concurrency, (n+queueChunk-1)/queueChunk)

	var cursor atomic.Int64
	tasks := make([]parallel.Task, workers)
	for i := range tasks {
		tasks[i] = func() error {
			w := newStandardWorker(r)
			defer w.release()
			for r.running() {
				start := int(cursor.Add(queueChunk)) - queueChunk
				if start >= n {
					return nil
				}
				end := min(start+queueChunk, n)
				for u := start; u < end; u++ {
					w.count(u)
				}
				r.advance(end - start)
			}
			return nil
		}
	}
	return tasks
}

// neighborSlicer is implemented by graphs that expose sorted adjacency
// slices directly.
type neighborSlicer interface {
	Neighbors(node int) []int
}

type standardWorker struct {
	r      *run
	sorted bool
	slicer neighborSlicer
	bufU   []int
	bufV   []int
	marks  []int
}

func newStandardWorker(r *run) *standardWorker {
	w := &standardWorker{
		r:      r,
		sorted: graph.IsSorted(r.graph),
		bufU:   pools.Ints.Get(pools.SmallSize),
		bufV:   pools.Ints.Get(pools.SmallSize),
	}
	if s, ok := r.graph.(neighborSlicer); ok && w.sorted {
		w.slicer = s
	}
	return w
}

func (w *standardWorker) release() {
	pools.Ints.Put(w.bufU)
	pools.Ints.Put(w.bufV)
	w.marks = nil
}

// forward returns the neighbors of node greater than node, in graph order.
func (w *standardWorker) forward(node int, buf *[]int) []int {
	if w.slicer != nil {
		list := w.slicer.Neighbors(node)
		start, _ := slices.BinarySearch(list, node+1)
		return list[start:]
	}
	out := (*buf)[:0]
	w.r.graph.ForEachNeighbor(node, func(v int) bool {
		if v > node {
			out = append(out, v)
		}
		return true
	})
	*buf = out
	return out
}

func (w *standardWorker) count(u int) {
	if w.sorted {
		w.merge(u)
	} else {
		w.stamp(u)
	}
}

func (w *standardWorker) merge(u int) {
	fu := w.forward(u, &w.bufU)
	for i, v := range fu {
		rest := fu[i+1:]
		if len(rest) == 0 {
			return
		}
		fv := w.forward(v, &w.bufV)
		x, y := 0, 0
		for x < len(rest) && y < len(fv) {
			switch {
			case rest[x] < fv[y]:
				x++
			case rest[x] > fv[y]:
				y++
			default:
				w.r.triangle(u, v, rest[x])
				x++
				y++
			}
		}
	}
}

// stamp marks u's forward neighbors with u+1; zero never matches, so the
// array needs no clearing between nodes.
func (w *standardWorker) stamp(u int) {
	fu := w.forward(u, &w.bufU)
	if len(fu) < 2 {
		return
	}
	if w.marks == nil {
		w.marks = make([]int, w.r.graph.NodeCount())
	}
	stamp := u + 1
	for _, v := range fu {
		w.marks[v] = stamp
	}
	g := w.r.graph
	for _, v := range fu {
		g.ForEachNeighbor(v, func(x int) bool {
			if x > v && w.marks[x] == stamp {
				w.r.triangle(u, v, x)
			}
			return true
		})
	}
}
