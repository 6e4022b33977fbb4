package main

import (
	"flag"
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dd0wney/cluso-triangles/pkg/graph"
	"github.com/dd0wney/cluso-triangles/pkg/parallel"
	"github.com/dd0wney/cluso-triangles/pkg/triangles"
)

type benchResult struct {
	strategy    triangles.Strategy
	executor    string
	concurrency int
	duration    time.Duration
	total       int64
}

func main() {
	nodes := flag.Int("nodes", 100000, "Number of nodes to create")
	edges := flag.Int("edges", 1000000, "Number of edges to create")
	seed := flag.Uint64("seed", 1, "Random graph seed")
	levels := flag.String("concurrency", "1,2,4,8", "Comma separated concurrency levels")
	rounds := flag.Int("rounds", 3, "Runs per configuration; the fastest is reported")
	flag.Parse()

	concurrency, err := parseLevels(*levels)
	if err != nil {
		log.Fatalf("Invalid --concurrency: %v", err)
	}

	fmt.Printf("🔺 Cluso Triangles - Strategy Benchmark\n")
	fmt.Printf("======================================\n\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Nodes: %d\n", *nodes)
	fmt.Printf("  Edges: %d\n", *edges)
	fmt.Printf("  GOMAXPROCS: %d\n\n", parallel.MaxConcurrency())

	fmt.Printf("📝 Generating random graph...\n")
	start := time.Now()
	b := graph.Random(*nodes, *edges, *seed)
	standard := b.BuildStandard()
	compact := b.BuildCompact()
	fmt.Printf("✅ Built %d nodes / %d edges in %v\n", standard.NodeCount(), standard.EdgeCount(), time.Since(start))
	fmt.Printf("  Compact adjacency: %d bytes (%.2fx smaller than []int)\n", compact.AdjacencyBytes(), compact.CompressionRatio())

	pool, err := parallel.NewWorkerPool(slices.Max(concurrency))
	if err != nil {
		log.Fatalf("Failed to create worker pool: %v", err)
	}
	defer pool.Close()

	var results []benchResult
	for _, c := range concurrency {
		for _, exec := range []struct {
			name string
			exec parallel.Executor
		}{
			{"group", parallel.NewGroupExecutor(c)},
			{"pool", pool},
		} {
			for _, cfg := range []struct {
				strategy triangles.Strategy
				g        graph.Graph
			}{
				{triangles.StrategyStandard, standard},
				{triangles.StrategyCompact, compact},
			} {
				r, err := bench(cfg.strategy, cfg.g, exec.exec, c, *rounds)
				if err != nil {
					log.Fatalf("%s/%s/%d failed: %v", cfg.strategy, exec.name, c, err)
				}
				r.executor = exec.name
				results = append(results, r)
				fmt.Printf("  %-8s %-5s c=%-3d %12v  (%d triangles)\n", r.strategy, r.executor, c, r.duration, r.total)
			}
		}
	}

	fmt.Printf("\n🎯 Summary\n")
	fmt.Printf("==========\n")
	for _, strategy := range []triangles.Strategy{triangles.StrategyStandard, triangles.StrategyCompact} {
		var base, best *benchResult
		for i := range results {
			r := &results[i]
			if r.strategy != strategy {
				continue
			}
			if base == nil || (r.concurrency < base.concurrency) {
				base = r
			}
			if best == nil || r.duration < best.duration {
				best = r
			}
		}
		if base == nil {
			continue
		}
		fmt.Printf("  %s: fastest %v (%s, c=%d), speedup %.2fx over c=%d\n",
			strategy, best.duration, best.executor, best.concurrency,
			float64(base.duration)/float64(best.duration), base.concurrency)
	}

	fmt.Printf("\n✅ Benchmark complete!\n")
}

func bench(s triangles.Strategy, g graph.Graph, exec parallel.Executor, concurrency, rounds int) (benchResult, error) {
	r := benchResult{strategy: s, concurrency: concurrency}
	for i := 0; i < max(rounds, 1); i++ {
		e, err := triangles.NewForStrategy(s, g, exec, concurrency, nil)
		if err != nil {
			return r, err
		}
		start := time.Now()
		if err := e.Compute(); err != nil {
			return r, err
		}
		elapsed := time.Since(start)
		total, _ := e.TriangleCount()
		e.Release()

		if r.duration == 0 || elapsed < r.duration {
			r.duration = elapsed
		}
		r.total = total
	}
	return r, nil
}

func parseLevels(s string) ([]int, error) {
	var levels []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("concurrency must be positive, got %d", n)
		}
		levels = append(levels, n)
	}
	return levels, nil
}
