// Package parallel provides the execution primitives the graph algorithms
// fan out on: executors, node-range partitioning and cooperative
// termination flags.
package parallel

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrTaskPanic wraps a panic raised inside a task.
var ErrTaskPanic = errors.New("task panicked")

// Task is one independent unit of work.
type Task func() error

// Executor runs a batch of independent tasks and waits for all of them.
// It returns a non-nil error if any task failed.
type Executor interface {
	Execute(tasks []Task) error
}

// MaxConcurrency is the highest useful concurrency on this process.
func MaxConcurrency() int {
	return runtime.GOMAXPROCS(0)
}

// runTask calls task, turning a panic into an ErrTaskPanic error.
func runTask(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return task()
}

// GroupExecutor runs each batch on an errgroup limited to a fixed number of
// goroutines. Only the first task error is returned.
type GroupExecutor struct {
	limit int
}

// NewGroupExecutor creates an executor running at most limit tasks at once.
func NewGroupExecutor(limit int) *GroupExecutor {
	if limit <= 0 {
		limit = 1
	}
	return &GroupExecutor{limit: limit}
}

// Limit returns the maximum number of tasks run at once
func (e *GroupExecutor) Limit() int { return e.limit }

func (e *GroupExecutor) Execute(tasks []Task) error {
	var g errgroup.Group
	g.SetLimit(e.limit)
	for _, task := range tasks {
		g.Go(func() error {
			return runTask(task)
		})
	}
	return g.Wait()
}

var _ Executor = (*GroupExecutor)(nil)
