package parallel

import (
	"context"
	"sync/atomic"
)

// TerminationFlag is polled by long-running work; false means stop.
type TerminationFlag interface {
	Running() bool
}

type alwaysRunning struct{}

func (alwaysRunning) Running() bool { return true }

// Running is a TerminationFlag that never signals termination.
var Running TerminationFlag = alwaysRunning{}

// Flag is a TerminationFlag stopped by an explicit call.
type Flag struct {
	stopped atomic.Bool
}

// NewFlag returns a running flag
func NewFlag() *Flag { return &Flag{} }

func (f *Flag) Running() bool { return !f.stopped.Load() }

// Stop signals termination. Safe to call from any goroutine, more than once.
func (f *Flag) Stop() { f.stopped.Store(true) }

type contextFlag struct {
	ctx context.Context
}

func (c contextFlag) Running() bool { return c.ctx.Err() == nil }

// ContextFlag reports termination once ctx is cancelled or its deadline
// passes.
func ContextFlag(ctx context.Context) TerminationFlag {
	return contextFlag{ctx: ctx}
}

// FlagFunc adapts a function to TerminationFlag.
type FlagFunc func() bool

func (f FlagFunc) Running() bool { return f() }
