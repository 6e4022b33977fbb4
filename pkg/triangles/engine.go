// Package triangles counts, for every node of an undirected graph, the
// triangles it belongs to and derives its local clustering coefficient.
//
// Two strategies share one contract. The compact strategy targets paged or
// memory-mapped graphs: it splits the node range into contiguous parts and
// reserves its buffers against an allocation tracker. The standard strategy
// targets in-memory graphs and drains a shared work queue. New picks one
// from the graph's tier.
//
// Every triangle u < v < w is found exactly once, from its smallest node,
// and increments all three per-node counters atomically.
package triangles

import (
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-triangles/pkg/allocation"
	"github.com/dd0wney/cluso-triangles/pkg/graph"
	"github.com/dd0wney/cluso-triangles/pkg/logging"
	"github.com/dd0wney/cluso-triangles/pkg/metrics"
	"github.com/dd0wney/cluso-triangles/pkg/paged"
	"github.com/dd0wney/cluso-triangles/pkg/parallel"
)

// checkInterval is the number of nodes a range worker processes between
// termination checks.
const checkInterval = 1024

// Engine computes per-node triangle counts and clustering coefficients.
//
// The With* setters configure the engine before Compute and return it for
// chaining. Result accessors fail with a *StateError until Compute has
// succeeded. Release frees the result buffers; it is idempotent and a
// no-op while a computation runs.
type Engine interface {
	WithProgressLogger(p logging.ProgressLogger) Engine
	WithTerminationFlag(f parallel.TerminationFlag) Engine
	WithLogger(l logging.Logger) Engine
	WithMetrics(r *metrics.Registry) Engine

	// Compute runs the count synchronously. Calling it again after success
	// returns nil without recomputing.
	Compute() error

	TriangleCount() (int64, error)
	AverageCoefficient() (float64, error)
	Triangles() (paged.Array[int64], error)
	Coefficients() (paged.Array[float64], error)
	// Results yields one Result per node in ascending internal id order.
	// The sequence ends early if the engine is released while ranging.
	Results() (iter.Seq[Result], error)
	// TopNodes returns the n nodes with the most triangles
	TopNodes(n int) ([]Result, error)

	Stats() Stats
	State() State
	Strategy() Strategy
	Release() Engine
}

// counter is the strategy-specific counting phase.
type counter interface {
	strategy() Strategy
	layout() paged.Layout
	tasks(r *run) []parallel.Task
}

// run is the state shared by the workers of one computation.
type run struct {
	graph       graph.Graph
	concurrency int
	flag        parallel.TerminationFlag
	progress    logging.ProgressLogger
	counts      paged.Mutable[int64]
	processed   atomic.Int64
	stopped     atomic.Bool
}

// running polls the termination flag. A stop seen by any worker is latched
// for the rest of the run, even if the flag later reads true again.
func (r *run) running() bool {
	if r.stopped.Load() {
		return false
	}
	if !r.flag.Running() {
		r.stopped.Store(true)
		return false
	}
	return true
}

func (r *run) triangle(u, v, w int) {
	atomic.AddInt64(r.counts.Ptr(u), 1)
	atomic.AddInt64(r.counts.Ptr(v), 1)
	atomic.AddInt64(r.counts.Ptr(w), 1)
}

// advance records n finished nodes and reports progress.
func (r *run) advance(n int) {
	if n == 0 {
		return
	}
	done := r.processed.Add(int64(n))
	r.progress.LogProgress(done, int64(r.graph.NodeCount()))
}

type engine struct {
	graph       graph.Graph
	exec        parallel.Executor
	concurrency int
	tracker     allocation.Tracker
	counter     counter

	mu       sync.Mutex
	state    State
	progress logging.ProgressLogger
	flag     parallel.TerminationFlag
	logger   logging.Logger
	metrics  *metrics.Registry

	counts       paged.Mutable[int64]
	coefficients paged.Mutable[float64]
	reserved     int64
	total        int64
	average      float64
	stats        Stats
}

func newEngine(g graph.Graph, exec parallel.Executor, concurrency int, tracker allocation.Tracker, c counter) *engine {
	return &engine{
		graph:       g,
		exec:        exec,
		concurrency: concurrency,
		tracker:     tracker,
		counter:     c,
		state:       StateCreated,
		progress:    logging.NopProgress,
		flag:        parallel.Running,
		logger:      logging.NewNopLogger(),
		stats: Stats{
			Strategy:    c.strategy(),
			NodeCount:   g.NodeCount(),
			Concurrency: concurrency,
		},
	}
}

// configurable reports whether With* setters may still take effect. The
// caller holds e.mu.
func (e *engine) configurable(setter string) bool {
	switch e.state {
	case StateCreated, StateCancelled, StateFailed:
		return true
	}
	e.logger.Warn("engine setting ignored",
		logging.Operation(setter),
		logging.String("state", e.state.String()))
	return false
}

func (e *engine) WithProgressLogger(p logging.ProgressLogger) Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.configurable("WithProgressLogger") {
		if p == nil {
			p = logging.NopProgress
		}
		e.progress = p
	}
	return e
}

func (e *engine) WithTerminationFlag(f parallel.TerminationFlag) Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.configurable("WithTerminationFlag") {
		if f == nil {
			f = parallel.Running
		}
		e.flag = f
	}
	return e
}

func (e *engine) WithLogger(l logging.Logger) Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.configurable("WithLogger") {
		if l == nil {
			l = logging.NewNopLogger()
		}
		e.logger = l
	}
	return e
}

func (e *engine) WithMetrics(r *metrics.Registry) Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.configurable("WithMetrics") {
		e.metrics = r
	}
	return e
}

func (e *engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *engine) Strategy() Strategy { return e.counter.strategy() }

func (e *engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.State = e.state
	s.TrackedBytes = e.tracker.Tracked()
	return s
}

// runConfig is the configuration snapshot a computation runs with.
type runConfig struct {
	flag     parallel.TerminationFlag
	progress logging.ProgressLogger
	logger   logging.Logger
	metrics  *metrics.Registry
}

// outcome carries a successful computation's buffers back to the engine.
type outcome struct {
	counts       paged.Mutable[int64]
	coefficients paged.Mutable[float64]
	reserved     int64
	total        int64
	average      float64
}

func (e *engine) Compute() error {
	e.mu.Lock()
	switch e.state {
	case StateComputed:
		e.mu.Unlock()
		return nil
	case StateComputing:
		e.mu.Unlock()
		return newError("compute").strategy(e.Strategy()).state(StateComputing).cause(ErrComputeInProgress).build()
	case StateReleased:
		e.mu.Unlock()
		return &StateError{Op: "compute", State: StateReleased}
	}
	e.state = StateComputing
	cfg := runConfig{
		flag:     e.flag,
		progress: e.progress,
		logger:   e.logger,
		metrics:  e.metrics,
	}
	e.mu.Unlock()

	stats := Stats{
		RunID:       uuid.NewString(),
		Strategy:    e.Strategy(),
		NodeCount:   e.graph.NodeCount(),
		Concurrency: e.concurrency,
		StartedAt:   time.Now(),
	}
	out, processed, err := e.compute(cfg, stats.RunID)
	stats.Duration = time.Since(stats.StartedAt)
	stats.NodesProcessed = processed

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = stats
	switch {
	case err == nil:
		e.counts = out.counts
		e.coefficients = out.coefficients
		e.reserved = out.reserved
		e.total = out.total
		e.average = out.average
		e.state = StateComputed
	case IsCancelled(err):
		e.state = StateCancelled
	default:
		e.state = StateFailed
	}
	return err
}

// compute runs both phases. On any error every buffer it allocated is
// released and the tracker is returned to where it started.
func (e *engine) compute(cfg runConfig, runID string) (*outcome, int64, error) {
	n := e.graph.NodeCount()
	strategy := e.Strategy()
	log := cfg.logger.With(
		logging.RunID(runID),
		logging.Strategy(strategy.String()),
		logging.NodeCount(n),
		logging.Concurrency(e.concurrency),
	)
	timer := logging.StartTimer(log, "triangle count completed")
	log.Debug("triangle count started")

	if cfg.metrics != nil {
		defer cfg.metrics.RunStarted()()
	}
	record := func(status string, total int64, average float64) {
		if cfg.metrics == nil {
			return
		}
		cfg.metrics.RecordRun(strategy.String(), status, timer.Elapsed(), n, total, average)
		cfg.metrics.SetAllocatedBytes(e.tracker.Tracked())
	}
	fail := func(err error) error {
		if IsCancelled(err) {
			record(metrics.StatusCancelled, 0, 0)
			timer.EndWithLevel(logging.WarnLevel, "triangle count cancelled")
		} else {
			record(metrics.StatusFailed, 0, 0)
			timer.EndError(err)
		}
		return err
	}

	layout := e.counter.layout()
	countBytes := paged.SizeOf[int64](n, layout)
	coefficientBytes := paged.SizeOf[float64](n, layout)
	if err := e.tracker.Reserve(countBytes); err != nil {
		return nil, 0, fail(newError("reserve").strategy(strategy).state(StateComputing).cause(ErrAllocation, err).build())
	}
	if err := e.tracker.Reserve(coefficientBytes); err != nil {
		e.tracker.Release(countBytes)
		return nil, 0, fail(newError("reserve").strategy(strategy).state(StateComputing).cause(ErrAllocation, err).build())
	}
	reserved := countBytes + coefficientBytes
	log.Debug("buffers reserved", logging.Bytes(reserved), logging.String("layout", layout.String()))

	r := &run{
		graph:       e.graph,
		concurrency: e.concurrency,
		flag:        cfg.flag,
		progress:    cfg.progress,
		counts:      paged.New[int64](n, layout),
	}
	coefficients := paged.New[float64](n, layout)
	discard := func() {
		r.counts.Release()
		coefficients.Release()
		e.tracker.Release(reserved)
	}

	if err := e.phase(r, "count", e.counter.tasks(r), log); err != nil {
		discard()
		return nil, r.processed.Load(), fail(err)
	}
	if err := e.phase(r, "coefficients", coefficientTasks(r, coefficients), log); err != nil {
		discard()
		return nil, r.processed.Load(), fail(err)
	}

	total := paged.Sum[int64](r.counts) / 3
	var average float64
	if n > 0 {
		average = paged.Sum[float64](coefficients) / float64(n)
	}

	record(metrics.StatusSuccess, total, average)
	timer.End(logging.Triangles(total), logging.Float64("average_coefficient", average))

	return &outcome{
		counts:       r.counts,
		coefficients: coefficients,
		reserved:     reserved,
		total:        total,
		average:      average,
	}, r.processed.Load(), nil
}

// phase executes one batch of tasks and checks the termination flag after
// the join. A stop observed by a worker during the phase, or by the final
// poll, prevents a completed result.
func (e *engine) phase(r *run, name string, tasks []parallel.Task, log logging.Logger) error {
	timer := logging.StartTimer(log, "phase finished", logging.String("phase", name), logging.Count(len(tasks)))
	if err := e.exec.Execute(tasks); err != nil {
		return newError(name).strategy(e.Strategy()).state(StateComputing).cause(ErrWorkerFailure, err).build()
	}
	if !r.running() {
		return newError(name).strategy(e.Strategy()).state(StateComputing).cause(ErrCancelled).build()
	}
	timer.EndWithLevel(logging.DebugLevel, "phase finished")
	return nil
}

// coefficientTasks fills coefficients from the finished counts, one task
// per contiguous node range.
func coefficientTasks(r *run, coefficients paged.Mutable[float64]) []parallel.Task {
	ranges := parallel.Partition(r.graph.NodeCount(), r.concurrency)
	tasks := make([]parallel.Task, len(ranges))
	for i, rng := range ranges {
		tasks[i] = func() error {
			for u := rng.Start; u < rng.End; u++ {
				if (u-rng.Start)%checkInterval == 0 && !r.running() {
					return nil
				}
				coefficients.Set(u, Coefficient(r.counts.Get(u), r.graph.Degree(u)))
			}
			return nil
		}
	}
	return tasks
}

// computed returns a StateError unless results are available. The caller
// holds e.mu.
func (e *engine) computed(op string) error {
	if e.state != StateComputed {
		return &StateError{Op: op, State: e.state}
	}
	return nil
}

func (e *engine) TriangleCount() (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.computed("TriangleCount"); err != nil {
		return 0, err
	}
	return e.total, nil
}

func (e *engine) AverageCoefficient() (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.computed("AverageCoefficient"); err != nil {
		return 0, err
	}
	return e.average, nil
}

func (e *engine) Triangles() (paged.Array[int64], error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.computed("Triangles"); err != nil {
		return nil, err
	}
	return e.counts, nil
}

func (e *engine) Coefficients() (paged.Array[float64], error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.computed("Coefficients"); err != nil {
		return nil, err
	}
	return e.coefficients, nil
}

func (e *engine) Results() (iter.Seq[Result], error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.computed("Results"); err != nil {
		return nil, err
	}
	return func(yield func(Result) bool) {
		for u := 0; ; u++ {
			r, ok := e.resultAt(u)
			if !ok || !yield(r) {
				return
			}
		}
	}, nil
}

// resultAt reads node u under the lock, so a concurrent Release ends the
// stream instead of reading freed buffers.
func (e *engine) resultAt(u int) (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateComputed || u >= e.counts.Len() {
		return Result{}, false
	}
	return Result{
		NodeID:      graph.OriginalID(e.graph, u),
		Triangles:   e.counts.Get(u),
		Coefficient: e.coefficients.Get(u),
	}, true
}

func (e *engine) Release() Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateComputing:
		e.logger.Debug("release ignored while computing")
		return e
	case StateReleased:
		return e
	}
	if e.counts != nil {
		e.counts.Release()
		e.counts = nil
	}
	if e.coefficients != nil {
		e.coefficients.Release()
		e.coefficients = nil
	}
	e.tracker.Release(e.reserved)
	e.reserved = 0
	if e.metrics != nil {
		e.metrics.SetAllocatedBytes(e.tracker.Tracked())
	}
	e.state = StateReleased
	return e
}

var _ Engine = (*engine)(nil)
