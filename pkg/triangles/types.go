package triangles

import (
	"fmt"
	"time"
)

// State is the engine lifecycle state.
type State int32

const (
	StateCreated State = iota
	StateComputing
	StateComputed
	StateCancelled
	StateFailed
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateComputing:
		return "computing"
	case StateComputed:
		return "computed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Strategy names the counting algorithm an engine runs.
type Strategy int

const (
	// StrategyStandard counts with a shared work queue over in-memory
	// adjacency
	StrategyStandard Strategy = iota
	// StrategyCompact counts over contiguous node ranges with paged buffers
	// reserved against an allocation tracker
	StrategyCompact
)

func (s Strategy) String() string {
	switch s {
	case StrategyStandard:
		return "standard"
	case StrategyCompact:
		return "compact"
	default:
		return "unknown"
	}
}

// Result is the per-node outcome of a triangle count.
type Result struct {
	NodeID      int64
	Triangles   int64
	Coefficient float64
}

func (r Result) String() string {
	return fmt.Sprintf("node %d: %d triangles, coefficient %.4f", r.NodeID, r.Triangles, r.Coefficient)
}

// Stats summarizes the last computation.
type Stats struct {
	RunID          string
	Strategy       Strategy
	State          State
	NodeCount      int
	Concurrency    int
	NodesProcessed int64
	TrackedBytes   int64
	Duration       time.Duration
	StartedAt      time.Time
}

// Coefficient returns the local clustering coefficient of a node with the
// given triangle count and degree: the fraction of neighbor pairs that are
// connected.
func Coefficient(triangles int64, degree int) float64 {
	if triangles == 0 {
		return 0
	}
	d := float64(degree)
	return 2 * float64(triangles) / (d * (d - 1))
}
