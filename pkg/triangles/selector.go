package triangles

import (
	"fmt"

	"github.com/dd0wney/cluso-triangles/pkg/allocation"
	"github.com/dd0wney/cluso-triangles/pkg/graph"
	"github.com/dd0wney/cluso-triangles/pkg/parallel"
)

// New returns an engine for g. Compact-tier graphs get the compact
// strategy with a tracker limited to allocation.DefaultLimit; all other
// graphs get the standard strategy. A nil exec runs tasks on an errgroup
// limited to concurrency. Concurrency must be positive and is capped at
// parallel.MaxConcurrency.
func New(g graph.Graph, exec parallel.Executor, concurrency int) (Engine, error) {
	return NewWithTracker(g, exec, concurrency, nil)
}

// NewWithTracker is New with a caller-supplied allocation tracker. A nil
// tracker selects the strategy default.
func NewWithTracker(g graph.Graph, exec parallel.Executor, concurrency int, tracker allocation.Tracker) (Engine, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	s := StrategyStandard
	if g.Tier() == graph.TierCompact {
		s = StrategyCompact
	}
	return NewForStrategy(s, g, exec, concurrency, tracker)
}

// NewForStrategy builds an engine running strategy s regardless of the
// graph's tier.
func NewForStrategy(s Strategy, g graph.Graph, exec parallel.Executor, concurrency int, tracker allocation.Tracker) (Engine, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, concurrency)
	}
	concurrency = min(concurrency, parallel.MaxConcurrency())
	if exec == nil {
		exec = parallel.NewGroupExecutor(concurrency)
	}

	switch s {
	case StrategyCompact:
		if tracker == nil {
			tracker = allocation.NewTracker(allocation.DefaultLimit())
		}
		return newEngine(g, exec, concurrency, tracker, compactCounter{}), nil
	case StrategyStandard:
		if tracker == nil {
			tracker = allocation.Empty
		}
		return newEngine(g, exec, concurrency, tracker, standardCounter{}), nil
	default:
		return nil, fmt.Errorf("unknown strategy %d", int(s))
	}
}

// ParseStrategy converts a strategy name to a Strategy
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "standard":
		return StrategyStandard, nil
	case "compact":
		return StrategyCompact, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", name)
	}
}
