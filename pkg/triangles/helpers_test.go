package triangles

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-triangles/pkg/graph"
	"github.com/dd0wney/cluso-triangles/pkg/parallel"
)

func buildGraph(t *testing.T, n int, edges [][2]int) *graph.Builder {
	t.Helper()
	b := graph.NewBuilder(n)
	for _, e := range edges {
		require.NoError(t, b.AddEdge(e[0], e[1]))
	}
	return b
}

// unsortedGraph yields neighbors in descending order and does not
// implement graph.Sorted.
type unsortedGraph struct {
	inner *graph.Standard
}

func (g unsortedGraph) NodeCount() int      { return g.inner.NodeCount() }
func (g unsortedGraph) Degree(node int) int { return g.inner.Degree(node) }
func (g unsortedGraph) Tier() graph.Tier    { return graph.TierStandard }
func (g unsortedGraph) ForEachNeighbor(node int, visit func(int) bool) {
	list := g.inner.Neighbors(node)
	for i := len(list) - 1; i >= 0; i-- {
		if !visit(list[i]) {
			return
		}
	}
}

// brokenGraph appends a neighbor outside the node range to every list.
type brokenGraph struct {
	graph.Graph
}

func (g brokenGraph) ForEachNeighbor(node int, visit func(int) bool) {
	stopped := false
	g.Graph.ForEachNeighbor(node, func(v int) bool {
		stopped = !visit(v)
		return !stopped
	})
	if !stopped {
		visit(g.NodeCount() + 100)
	}
}

// blockingGraph parks every ForEachNeighbor call until release is closed.
type blockingGraph struct {
	graph.Graph
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingGraph(g graph.Graph) *blockingGraph {
	return &blockingGraph{Graph: g, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *blockingGraph) ForEachNeighbor(node int, visit func(int) bool) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	g.Graph.ForEachNeighbor(node, visit)
}

// recordingProgress remembers the largest done value it was given.
type recordingProgress struct {
	calls atomic.Int64
	max   atomic.Int64
	total atomic.Int64
}

func (p *recordingProgress) LogProgress(done, total int64) {
	p.calls.Add(1)
	p.total.Store(total)
	for {
		cur := p.max.Load()
		if done <= cur || p.max.CompareAndSwap(cur, done) {
			return
		}
	}
}

// stopAfter returns a flag that reports running for the first n polls.
func stopAfter(n int64) parallel.TerminationFlag {
	var polls atomic.Int64
	return parallel.FlagFunc(func() bool {
		return polls.Add(1) <= n
	})
}

// stopOnce returns a flag that reports stopped on poll k only.
func stopOnce(k int64) parallel.TerminationFlag {
	var polls atomic.Int64
	return parallel.FlagFunc(func() bool {
		return polls.Add(1) != k
	})
}

// withMaxProcs raises GOMAXPROCS so concurrency levels are not capped
// below n on small machines.
func withMaxProcs(t *testing.T, n int) {
	t.Helper()
	prev := runtime.GOMAXPROCS(n)
	t.Cleanup(func() { runtime.GOMAXPROCS(prev) })
}

func collectCounts(t *testing.T, e Engine) []int64 {
	t.Helper()
	counts, err := e.Triangles()
	require.NoError(t, err)
	out := make([]int64, 0, counts.Len())
	for _, c := range counts.All() {
		out = append(out, c)
	}
	return out
}

func collectCoefficients(t *testing.T, e Engine) []float64 {
	t.Helper()
	coefficients, err := e.Coefficients()
	require.NoError(t, err)
	out := make([]float64, 0, coefficients.Len())
	for _, c := range coefficients.All() {
		out = append(out, c)
	}
	return out
}

func computeWith(t *testing.T, s Strategy, g graph.Graph, exec parallel.Executor, concurrency int) Engine {
	t.Helper()
	e, err := NewForStrategy(s, g, exec, concurrency, nil)
	require.NoError(t, err)
	require.NoError(t, e.Compute())
	t.Cleanup(func() { e.Release() })
	return e
}

var strategies = []Strategy{StrategyStandard, StrategyCompact}
