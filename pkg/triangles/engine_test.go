package triangles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-triangles/pkg/allocation"
	"github.com/dd0wney/cluso-triangles/pkg/graph"
	"github.com/dd0wney/cluso-triangles/pkg/logging"
	"github.com/dd0wney/cluso-triangles/pkg/paged"
	"github.com/dd0wney/cluso-triangles/pkg/parallel"
)

func TestCoefficient(t *testing.T) {
	tests := []struct {
		triangles int64
		degree    int
		want      float64
	}{
		{0, 0, 0},
		{0, 1, 0},
		{0, 5, 0},
		{1, 2, 1},
		{1, 3, 1.0 / 3},
		{3, 3, 1},
		{2, 4, 1.0 / 3},
		{6, 4, 1},
		{10, 5, 1},
	}
	for _, tt := range tests {
		got := Coefficient(tt.triangles, tt.degree)
		if got != tt.want {
			t.Errorf("Coefficient(%d, %d) = %v, want %v", tt.triangles, tt.degree, got, tt.want)
		}
	}
}

func TestTriangleWithPendant(t *testing.T) {
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			g := buildGraph(t, 4, [][2]int{{0, 1}, {1, 2}, {2, 0}, {2, 3}}).BuildStandard()
			e := computeWith(t, s, g, nil, 2)

			assert.Equal(t, []int64{1, 1, 1, 0}, collectCounts(t, e))

			coefficients := collectCoefficients(t, e)
			require.Len(t, coefficients, 4)
			assert.Equal(t, 1.0, coefficients[0])
			assert.Equal(t, 1.0, coefficients[1])
			assert.InDelta(t, 1.0/3, coefficients[2], 1e-12)
			assert.Equal(t, 0.0, coefficients[3])

			total, err := e.TriangleCount()
			require.NoError(t, err)
			assert.Equal(t, int64(1), total)

			avg, err := e.AverageCoefficient()
			require.NoError(t, err)
			assert.InDelta(t, (2+1.0/3)/4, avg, 1e-12)
			assert.Equal(t, StateComputed, e.State())
			assert.Equal(t, s, e.Strategy())
		})
	}
}

func TestCompleteGraphs(t *testing.T) {
	for _, s := range strategies {
		for n := 3; n <= 9; n++ {
			e := computeWith(t, s, graph.Complete(n).BuildStandard(), nil, 4)

			want := int64((n - 1) * (n - 2) / 2)
			for u, c := range collectCounts(t, e) {
				if c != want {
					t.Errorf("%s K_%d node %d: expected %d triangles, got %d", s, n, u, want, c)
				}
			}
			for u, c := range collectCoefficients(t, e) {
				if c != 1 {
					t.Errorf("%s K_%d node %d: expected coefficient 1, got %v", s, n, u, c)
				}
			}
			total, _ := e.TriangleCount()
			if total != int64(n*(n-1)*(n-2)/6) {
				t.Errorf("%s K_%d: expected %d triangles, got %d", s, n, n*(n-1)*(n-2)/6, total)
			}
		}
	}
}

func TestTriangleFreeGraphs(t *testing.T) {
	tree := graph.NewBuilder(0)
	for v := 1; v < 200; v++ {
		_ = tree.AddEdge((v-1)/3, v)
	}
	bipartite := graph.NewBuilder(0)
	for a := 0; a < 20; a++ {
		for b := 20; b < 45; b++ {
			_ = bipartite.AddEdge(a, b)
		}
	}

	cases := map[string]*graph.Builder{
		"tree":      tree,
		"bipartite": bipartite,
		"star":      graph.Star(50),
	}
	for name, b := range cases {
		for _, s := range strategies {
			t.Run(name+"/"+s.String(), func(t *testing.T) {
				e := computeWith(t, s, b.BuildCompact(), nil, 3)
				for u, c := range collectCounts(t, e) {
					assert.Zero(t, c, "node %d", u)
				}
				for u, c := range collectCoefficients(t, e) {
					assert.Zero(t, c, "node %d", u)
				}
				avg, err := e.AverageCoefficient()
				require.NoError(t, err)
				assert.Zero(t, avg)
			})
		}
	}
}

func TestEmptyGraph(t *testing.T) {
	for _, s := range strategies {
		e := computeWith(t, s, graph.NewBuilder(0).BuildStandard(), nil, 4)

		total, err := e.TriangleCount()
		require.NoError(t, err)
		assert.Zero(t, total)

		avg, err := e.AverageCoefficient()
		require.NoError(t, err)
		assert.Zero(t, avg)

		counts, err := e.Triangles()
		require.NoError(t, err)
		assert.Zero(t, counts.Len())
	}
}

func TestStrategiesAgree(t *testing.T) {
	withMaxProcs(t, 4)
	b := graph.Random(3000, 40000, 11)
	std := b.BuildStandard()
	cmp := b.BuildCompact()

	reference := collectCounts(t, computeWith(t, StrategyStandard, std, nil, 4))

	variants := map[string]Engine{
		"standard/unsorted": computeWith(t, StrategyStandard, unsortedGraph{std}, nil, 4),
		"standard/compact":  computeWith(t, StrategyStandard, cmp, nil, 4),
		"compact/standard":  computeWith(t, StrategyCompact, std, nil, 4),
		"compact/compact":   computeWith(t, StrategyCompact, cmp, nil, 4),
		"compact/unsorted":  computeWith(t, StrategyCompact, unsortedGraph{std}, nil, 4),
	}
	for name, e := range variants {
		assert.Equal(t, reference, collectCounts(t, e), name)
	}

	var sum int64
	for _, c := range reference {
		sum += c
	}
	assert.Zero(t, sum%3)
	total, _ := variants["compact/compact"].TriangleCount()
	assert.Equal(t, sum/3, total)
}

func TestConcurrencyInvariance(t *testing.T) {
	withMaxProcs(t, 16)
	g := graph.Random(2000, 30000, 5).BuildCompact()
	for _, s := range strategies {
		reference := collectCounts(t, computeWith(t, s, g, nil, 1))
		refAvg, _ := computeWith(t, s, g, nil, 1).AverageCoefficient()
		for _, c := range []int{2, 3, 4, 8, 16} {
			e := computeWith(t, s, g, nil, c)
			require.Equal(t, c, e.Stats().Concurrency, "%s concurrency %d", s, c)
			assert.Equal(t, reference, collectCounts(t, e), "%s concurrency %d", s, c)
			avg, _ := e.AverageCoefficient()
			assert.Equal(t, refAvg, avg, "%s concurrency %d", s, c)
		}
	}
}

func TestExecutorsAgree(t *testing.T) {
	withMaxProcs(t, 4)
	g := graph.Random(1500, 20000, 3).BuildStandard()
	pool, err := parallel.NewWorkerPool(4)
	require.NoError(t, err)
	defer pool.Close()

	for _, s := range strategies {
		group := collectCounts(t, computeWith(t, s, g, parallel.NewGroupExecutor(4), 4))
		pooled := collectCounts(t, computeWith(t, s, g, pool, 4))
		assert.Equal(t, group, pooled, s.String())
	}
}

func TestNewValidation(t *testing.T) {
	g := graph.Complete(4).BuildStandard()

	_, err := New(g, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidConcurrency)
	_, err = New(g, nil, -3)
	assert.ErrorIs(t, err, ErrInvalidConcurrency)
	_, err = New(nil, nil, 4)
	assert.ErrorIs(t, err, ErrNilGraph)
	_, err = NewForStrategy(Strategy(7), g, nil, 1, nil)
	assert.Error(t, err)

	e, err := New(g, nil, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, parallel.MaxConcurrency(), e.Stats().Concurrency)
}

func TestSelectorUsesTier(t *testing.T) {
	b := graph.Complete(5)

	e, err := New(b.BuildStandard(), nil, 2)
	require.NoError(t, err)
	assert.Equal(t, StrategyStandard, e.Strategy())

	e, err = New(b.BuildCompact(), nil, 2)
	require.NoError(t, err)
	assert.Equal(t, StrategyCompact, e.Strategy())

	require.NoError(t, e.Compute())
	assert.Positive(t, e.Stats().TrackedBytes)
	e.Release()
	assert.Zero(t, e.Stats().TrackedBytes)
}

func TestCancelledBeforeStart(t *testing.T) {
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			tracker := allocation.Unlimited()
			e, err := NewForStrategy(s, graph.Random(500, 4000, 1).BuildStandard(), nil, 4, tracker)
			require.NoError(t, err)

			flag := parallel.NewFlag()
			flag.Stop()
			err = e.WithTerminationFlag(flag).Compute()

			require.Error(t, err)
			assert.True(t, IsCancelled(err))
			var engineErr *Error
			require.True(t, errors.As(err, &engineErr))
			assert.Equal(t, s, engineErr.Strategy)
			assert.Equal(t, StateCancelled, e.State())
			assert.Zero(t, tracker.Tracked())

			_, err = e.TriangleCount()
			assert.ErrorIs(t, err, ErrNotComputed)
			var stateErr *StateError
			require.True(t, errors.As(err, &stateErr))
			assert.Equal(t, StateCancelled, stateErr.State)

			// a fresh flag allows a retry
			require.NoError(t, e.WithTerminationFlag(parallel.Running).Compute())
			assert.Equal(t, StateComputed, e.State())
		})
	}
}

func TestCancelledMidRun(t *testing.T) {
	withMaxProcs(t, 4)
	g := graph.Random(20000, 100000, 9).BuildCompact()
	for _, s := range strategies {
		for _, polls := range []int64{1, 3, 10} {
			e, err := NewForStrategy(s, g, nil, 4, nil)
			require.NoError(t, err)
			err = e.WithTerminationFlag(stopAfter(polls)).Compute()
			assert.ErrorIs(t, err, ErrCancelled, "%s after %d polls", s, polls)
			assert.NotEqual(t, StateComputed, e.State())
			assert.Less(t, e.Stats().NodesProcessed, int64(g.NodeCount()))
		}
	}
}

func TestStopSeenByWorkerIsKept(t *testing.T) {
	g := graph.Complete(200).BuildStandard()
	for _, s := range strategies {
		for _, k := range []int64{1, 2, 3} {
			e, err := NewForStrategy(s, g, nil, 1, nil)
			require.NoError(t, err)

			err = e.WithTerminationFlag(stopOnce(k)).Compute()
			assert.ErrorIs(t, err, ErrCancelled, "%s stop on poll %d", s, k)
			assert.Equal(t, StateCancelled, e.State(), "%s stop on poll %d", s, k)

			_, err = e.TriangleCount()
			assert.ErrorIs(t, err, ErrNotComputed)
		}
	}
}

func TestContextFlagCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e, err := New(graph.Complete(10).BuildStandard(), nil, 2)
	require.NoError(t, err)
	err = e.WithTerminationFlag(parallel.ContextFlag(ctx)).Compute()
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestAllocationRefused(t *testing.T) {
	g := graph.Random(5000, 20000, 2).BuildCompact()
	n := g.NodeCount()
	countBytes := paged.SizeOf[int64](n, paged.LayoutPaged)

	for name, limit := range map[string]int64{
		"counts":       countBytes - 1,
		"coefficients": countBytes + 1,
	} {
		t.Run(name, func(t *testing.T) {
			tracker := allocation.NewTracker(limit)
			e, err := NewWithTracker(g, nil, 2, tracker)
			require.NoError(t, err)

			err = e.Compute()
			assert.ErrorIs(t, err, ErrAllocation)
			assert.ErrorIs(t, err, allocation.ErrLimitExceeded)
			assert.Equal(t, StateFailed, e.State())
			assert.Zero(t, tracker.Tracked())

			_, err = e.Results()
			assert.ErrorIs(t, err, ErrNotComputed)
		})
	}
}

func TestWorkerFailure(t *testing.T) {
	pool, err := parallel.NewWorkerPool(2)
	require.NoError(t, err)
	defer pool.Close()

	g := brokenGraph{graph.Complete(50).BuildStandard()}
	for _, s := range strategies {
		for _, exec := range []parallel.Executor{nil, pool} {
			tracker := allocation.Unlimited()
			e, err := NewForStrategy(s, g, exec, 2, tracker)
			require.NoError(t, err)

			err = e.Compute()
			assert.ErrorIs(t, err, ErrWorkerFailure, s.String())
			assert.ErrorIs(t, err, parallel.ErrTaskPanic, s.String())
			assert.Equal(t, StateFailed, e.State())
			assert.Zero(t, tracker.Tracked())
		}
	}
}

func TestRelease(t *testing.T) {
	tracker := allocation.Unlimited()
	e, err := NewWithTracker(graph.Complete(20).BuildCompact(), nil, 2, tracker)
	require.NoError(t, err)
	require.NoError(t, e.Compute())
	require.Positive(t, tracker.Tracked())

	e.Release().Release()
	assert.Equal(t, StateReleased, e.State())
	assert.Zero(t, tracker.Tracked())

	_, err = e.Triangles()
	assert.ErrorIs(t, err, ErrReleased)
	assert.ErrorIs(t, err, ErrNotComputed)

	err = e.Compute()
	var stateErr *StateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, StateReleased, stateErr.State)
	assert.Equal(t, "compute", stateErr.Op)

	// releasing an engine that never ran is fine too
	fresh, err := New(graph.Complete(3).BuildStandard(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, StateReleased, fresh.Release().State())
}

func TestReleaseEndsResults(t *testing.T) {
	e, err := New(graph.Complete(50).BuildCompact(), nil, 2)
	require.NoError(t, err)
	require.NoError(t, e.Compute())

	results, err := e.Results()
	require.NoError(t, err)

	seen := 0
	for r := range results {
		assert.Equal(t, int64(1176), r.Triangles)
		seen++
		if seen == 10 {
			e.Release()
		}
	}
	assert.Equal(t, 10, seen)

	// the same sequence stays empty after release
	for range results {
		t.Fatal("results yielded after release")
	}
}

func TestAccessorsBeforeCompute(t *testing.T) {
	e, err := New(graph.Complete(4).BuildStandard(), nil, 1)
	require.NoError(t, err)

	_, err = e.TriangleCount()
	assert.True(t, IsNotComputed(err))
	_, err = e.AverageCoefficient()
	assert.ErrorIs(t, err, ErrNotComputed)
	_, err = e.Coefficients()
	assert.ErrorIs(t, err, ErrNotComputed)
	_, err = e.TopNodes(3)
	assert.ErrorIs(t, err, ErrNotComputed)
	assert.NotErrorIs(t, err, ErrReleased)
}

func TestDoubleComputeIsCached(t *testing.T) {
	progress := &recordingProgress{}
	e, err := New(graph.Complete(30).BuildStandard(), nil, 2)
	require.NoError(t, err)
	require.NoError(t, e.WithProgressLogger(progress).Compute())

	runID := e.Stats().RunID
	calls := progress.calls.Load()
	require.NoError(t, e.Compute())

	assert.Equal(t, runID, e.Stats().RunID)
	assert.Equal(t, calls, progress.calls.Load())
	assert.Equal(t, int64(30), progress.max.Load())
	assert.Equal(t, int64(30), progress.total.Load())
}

func TestComputeInProgress(t *testing.T) {
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			g := newBlockingGraph(graph.Complete(10).BuildStandard())
			e, err := NewForStrategy(s, g, nil, 2, nil)
			require.NoError(t, err)

			done := make(chan error, 1)
			go func() { done <- e.Compute() }()
			<-g.entered

			assert.Equal(t, StateComputing, e.State())
			err = e.Compute()
			assert.ErrorIs(t, err, ErrComputeInProgress)

			// ignored while running
			e.Release()
			e.WithTerminationFlag(parallel.FlagFunc(func() bool { return false }))
			assert.Equal(t, StateComputing, e.State())

			close(g.release)
			require.NoError(t, <-done)
			assert.Equal(t, StateComputed, e.State())
			total, err := e.TriangleCount()
			require.NoError(t, err)
			assert.Equal(t, int64(120), total)
		})
	}
}

func TestResultsUseOriginalIDs(t *testing.T) {
	b, err := graph.ReadEdgeList(strings.NewReader("10 20\n20 30\n30 10\n30 40\n"))
	require.NoError(t, err)

	for _, s := range strategies {
		e := computeWith(t, s, b.BuildCompact(), nil, 2)
		results, err := e.Results()
		require.NoError(t, err)

		var got []Result
		for r := range results {
			got = append(got, r)
		}
		require.Len(t, got, 4)
		assert.Equal(t, Result{NodeID: 10, Triangles: 1, Coefficient: 1}, got[0])
		assert.Equal(t, int64(30), got[2].NodeID)
		assert.InDelta(t, 1.0/3, got[2].Coefficient, 1e-12)
		assert.Equal(t, Result{NodeID: 40}, got[3])
		assert.Equal(t, "node 30: 1 triangles, coefficient 0.3333", got[2].String())
	}
}

func TestTopNodes(t *testing.T) {
	// K5 on 0..4 plus a triangle 5-6-7 hanging off node 0
	edges := [][2]int{{5, 6}, {6, 7}, {7, 5}, {0, 5}}
	for u := 0; u < 5; u++ {
		for v := u + 1; v < 5; v++ {
			edges = append(edges, [2]int{u, v})
		}
	}
	e := computeWith(t, StrategyStandard, buildGraph(t, 9, edges).BuildStandard(), nil, 2)

	top, err := e.TopNodes(3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	for i, r := range top {
		assert.Equal(t, int64(i), r.NodeID)
		assert.Equal(t, int64(6), r.Triangles)
	}

	all, err := e.TopNodes(100)
	require.NoError(t, err)
	assert.Len(t, all, 9)
	assert.Equal(t, int64(8), all[8].NodeID)
	assert.Equal(t, int64(5), all[5].NodeID)

	none, err := e.TopNodes(0)
	require.NoError(t, err)
	assert.Empty(t, none)
	_, err = e.TopNodes(-1)
	assert.Error(t, err)
}

func TestMappedGraphMatchesCompact(t *testing.T) {
	cmp := graph.Random(4000, 50000, 21).BuildCompact()
	path := filepath.Join(t.TempDir(), "graph.trig")
	require.NoError(t, graph.WriteMappedFile(path, cmp))

	m, err := graph.OpenMapped(path)
	require.NoError(t, err)
	defer m.Close()

	mapped, err := New(m, nil, 4)
	require.NoError(t, err)
	require.NoError(t, mapped.Compute())
	defer mapped.Release()
	assert.Equal(t, StrategyCompact, mapped.Strategy())

	reference := computeWith(t, StrategyCompact, cmp, nil, 4)
	assert.Equal(t, collectCounts(t, reference), collectCounts(t, mapped))
	assert.Equal(t, collectCoefficients(t, reference), collectCoefficients(t, mapped))
}

func TestComputeLogsRun(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewJSONLogger(&buf, logging.DebugLevel)

	e, err := New(graph.Complete(6).BuildStandard(), nil, 2)
	require.NoError(t, err)
	require.NoError(t, e.WithLogger(logger).Compute())

	// setters after completion are ignored with a warning
	e.WithLogger(nil)

	var completed, ignored bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry logging.LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		switch entry.Message {
		case "triangle count completed":
			completed = true
			assert.Equal(t, e.Stats().RunID, entry.Fields["run_id"])
			assert.Equal(t, "standard", entry.Fields["strategy"])
			assert.EqualValues(t, 20, entry.Fields["triangles"])
			assert.Contains(t, entry.Fields, "latency")
		case "engine setting ignored":
			ignored = true
			assert.Equal(t, "WARN", entry.Level)
		}
	}
	assert.True(t, completed, "completion line missing")
	assert.True(t, ignored, "warning for late setter missing")
}

func TestStateAndStrategyNames(t *testing.T) {
	assert.Equal(t, "computed", StateComputed.String())
	assert.Equal(t, "released", StateReleased.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.Equal(t, "compact", StrategyCompact.String())

	s, err := ParseStrategy("standard")
	require.NoError(t, err)
	assert.Equal(t, StrategyStandard, s)
	_, err = ParseStrategy("fast")
	assert.Error(t, err)
}
