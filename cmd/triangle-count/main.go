package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dd0wney/cluso-triangles/pkg/config"
	"github.com/dd0wney/cluso-triangles/pkg/graph"
	"github.com/dd0wney/cluso-triangles/pkg/logging"
	"github.com/dd0wney/cluso-triangles/pkg/metrics"
	"github.com/dd0wney/cluso-triangles/pkg/parallel"
	"github.com/dd0wney/cluso-triangles/pkg/triangles"
)

// compactThreshold is the node count from which "auto" loads edge lists
// into the compact representation.
const compactThreshold = 1 << 22

type options struct {
	configPath  string
	input       string
	output      string
	writeMapped string
	overrides   config.Config
	set         map[string]bool
}

func parseFlags(args []string) (*options, error) {
	opts := &options{set: make(map[string]bool)}
	fs := flag.NewFlagSet("triangle-count", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&opts.input, "input", "", "Edge list (.txt, .sz) or mapped graph (.trig)")
	fs.StringVar(&opts.output, "output", "", "Write per-node results as TSV ('-' for stdout)")
	fs.StringVar(&opts.writeMapped, "write-mapped", "", "Also save the loaded graph as a mapped file")
	fs.IntVar(&opts.overrides.Concurrency, "concurrency", 0, "Worker count")
	fs.StringVar(&opts.overrides.Tier, "tier", "", "Strategy: auto, standard or compact")
	fs.StringVar(&opts.overrides.Executor, "executor", "", "Executor: group or pool")
	fs.IntVar(&opts.overrides.TopN, "top", 0, "Number of top nodes to print")
	fs.DurationVar(&opts.overrides.Timeout, "timeout", 0, "Abort the count after this long")
	fs.StringVar(&opts.overrides.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	fs.StringVar(&opts.overrides.LogLevel, "log-level", "", "Log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if opts.input == "" {
		return nil, errors.New("--input is required")
	}
	return opts, nil
}

// apply copies explicitly set flags over the loaded configuration
func (o *options) apply(cfg *config.Config) error {
	if o.set["concurrency"] {
		cfg.Concurrency = o.overrides.Concurrency
	}
	if o.set["tier"] {
		cfg.Tier = o.overrides.Tier
	}
	if o.set["executor"] {
		cfg.Executor = o.overrides.Executor
	}
	if o.set["top"] {
		cfg.TopN = o.overrides.TopN
	}
	if o.set["timeout"] {
		cfg.Timeout = o.overrides.Timeout
	}
	if o.set["metrics-file"] {
		cfg.MetricsFile = o.overrides.MetricsFile
	}
	if o.set["log-level"] {
		cfg.LogLevel = o.overrides.LogLevel
	}
	return cfg.Validate()
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		if triangles.IsCancelled(err) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := opts.apply(cfg); err != nil {
		return err
	}

	logger := logging.NewJSONLogger(os.Stderr, cfg.Level())
	logging.SetDefaultLogger(logger)

	g, closeGraph, err := loadGraph(opts.input, cfg.Tier, logger)
	if err != nil {
		return err
	}
	defer closeGraph()

	if opts.writeMapped != "" {
		timer := logging.StartTimer(logger, "mapped graph written", logging.Path(opts.writeMapped))
		if err := graph.WriteMappedFile(opts.writeMapped, g); err != nil {
			return fmt.Errorf("write mapped graph: %w", err)
		}
		timer.End()
	}

	exec, closeExec, err := newExecutor(cfg)
	if err != nil {
		return err
	}
	defer closeExec()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	engine, err := newEngine(cfg, g, exec)
	if err != nil {
		return err
	}
	defer engine.Release()

	registry := metrics.NewRegistry()
	engine.
		WithLogger(logger).
		WithMetrics(registry).
		WithProgressLogger(logging.NewProgressLogger(logger, "triangle count", cfg.ProgressStepPercent)).
		WithTerminationFlag(parallel.ContextFlag(ctx))

	fmt.Fprintf(stdout, "🔺 Counting triangles: %d nodes, %s strategy, concurrency %d\n",
		g.NodeCount(), engine.Strategy(), engine.Stats().Concurrency)

	computeErr := engine.Compute()
	if cfg.MetricsFile != "" {
		if err := registry.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("failed to write metrics", logging.Path(cfg.MetricsFile), logging.Error(err))
		}
	}
	if computeErr != nil {
		return computeErr
	}

	if err := printSummary(stdout, engine, cfg.TopN); err != nil {
		return err
	}
	if opts.output != "" {
		return writeResults(opts.output, stdout, engine)
	}
	return nil
}

// loadGraph opens a mapped file directly or builds an in-memory graph from
// an edge list.
func loadGraph(path, tier string, logger logging.Logger) (graph.Graph, func(), error) {
	timer := logging.StartTimer(logger, "graph loaded", logging.Path(path))

	if strings.HasSuffix(path, ".trig") {
		m, err := graph.OpenMapped(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open mapped graph: %w", err)
		}
		timer.End(logging.NodeCount(m.NodeCount()), logging.String("representation", "mapped"))
		return m, func() { _ = m.Close() }, nil
	}

	b, err := graph.OpenEdgeList(path)
	if err != nil {
		return nil, nil, err
	}

	compact := tier == config.TierCompact ||
		(tier == config.TierAuto && b.NodeCount() >= compactThreshold)
	var g graph.Graph
	if compact {
		g = b.BuildCompact()
	} else {
		g = b.BuildStandard()
	}
	timer.End(
		logging.NodeCount(g.NodeCount()),
		logging.Count(b.EdgeCount()),
		logging.String("representation", g.Tier().String()),
	)
	return g, func() {}, nil
}

func newExecutor(cfg *config.Config) (parallel.Executor, func(), error) {
	if cfg.Executor == config.ExecutorPool {
		pool, err := parallel.NewWorkerPool(cfg.Concurrency)
		if err != nil {
			return nil, nil, err
		}
		return pool, pool.Close, nil
	}
	return parallel.NewGroupExecutor(cfg.Concurrency), func() {}, nil
}

func newEngine(cfg *config.Config, g graph.Graph, exec parallel.Executor) (triangles.Engine, error) {
	if cfg.Tier == config.TierAuto {
		if g.Tier() == graph.TierCompact {
			return triangles.NewWithTracker(g, exec, cfg.Concurrency, cfg.Tracker())
		}
		return triangles.New(g, exec, cfg.Concurrency)
	}

	strategy, err := triangles.ParseStrategy(cfg.Tier)
	if err != nil {
		return nil, err
	}
	if strategy == triangles.StrategyCompact {
		return triangles.NewForStrategy(strategy, g, exec, cfg.Concurrency, cfg.Tracker())
	}
	return triangles.NewForStrategy(strategy, g, exec, cfg.Concurrency, nil)
}

func printSummary(w io.Writer, engine triangles.Engine, topN int) error {
	total, err := engine.TriangleCount()
	if err != nil {
		return err
	}
	avg, err := engine.AverageCoefficient()
	if err != nil {
		return err
	}
	stats := engine.Stats()

	fmt.Fprintf(w, "✅ Counted %d triangles in %v\n", total, stats.Duration)
	fmt.Fprintf(w, "  Average clustering coefficient: %.6f\n", avg)
	fmt.Fprintf(w, "  Run ID: %s\n", stats.RunID)
	if stats.TrackedBytes > 0 {
		fmt.Fprintf(w, "  Tracked memory: %d bytes\n", stats.TrackedBytes)
	}

	if topN <= 0 {
		return nil
	}
	top, err := engine.TopNodes(topN)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n📊 Top %d nodes by triangles:\n", len(top))
	for i, r := range top {
		fmt.Fprintf(w, "  %d. Node %d (triangles: %d, coefficient: %.4f)\n", i+1, r.NodeID, r.Triangles, r.Coefficient)
	}
	return nil
}

func writeResults(path string, stdout io.Writer, engine triangles.Engine) (err error) {
	results, err := engine.Results()
	if err != nil {
		return err
	}

	var out io.Writer = stdout
	if path != "-" {
		f, createErr := os.Create(path)
		if createErr != nil {
			return createErr
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		out = f
	}

	bw := bufio.NewWriter(out)
	fmt.Fprintln(bw, "node\ttriangles\tcoefficient")
	for r := range results {
		fmt.Fprintf(bw, "%d\t%d\t%.6f\n", r.NodeID, r.Triangles, r.Coefficient)
	}
	return bw.Flush()
}
