package logging

import (
	"sync/atomic"
)

// ProgressLogger receives coarse progress notifications from long-running
// work. Implementations must not block or panic.
type ProgressLogger interface {
	LogProgress(done, total int64)
}

type nopProgress struct{}

func (nopProgress) LogProgress(done, total int64) {}

// NopProgress discards all progress notifications.
var NopProgress ProgressLogger = nopProgress{}

// PercentProgress logs one INFO line each time progress crosses a multiple
// of its step percentage. Concurrent callers race on an atomic CAS so each
// step is logged at most once.
type PercentProgress struct {
	logger   Logger
	task     string
	step     int64
	reported atomic.Int64
}

// NewProgressLogger creates a progress logger for task that logs every
// stepPercent percent. stepPercent is clamped to [1, 100].
func NewProgressLogger(logger Logger, task string, stepPercent int) *PercentProgress {
	if logger == nil {
		logger = NewNopLogger()
	}
	if stepPercent < 1 {
		stepPercent = 1
	}
	if stepPercent > 100 {
		stepPercent = 100
	}
	p := &PercentProgress{
		logger: logger,
		task:   task,
		step:   int64(stepPercent),
	}
	p.reported.Store(-1)
	return p
}

func (p *PercentProgress) LogProgress(done, total int64) {
	if total <= 0 || done < 0 {
		return
	}
	if done > total {
		done = total
	}
	percent := done * 100 / total
	bucket := percent / p.step * p.step

	for {
		last := p.reported.Load()
		if bucket <= last {
			return
		}
		if p.reported.CompareAndSwap(last, bucket) {
			break
		}
	}

	p.logger.Info("progress",
		String("task", p.task),
		Int64("percent", bucket),
		Int64("done", done),
		Int64("total", total),
	)
}

// Reset forgets the reported steps so the logger can be reused for a new run
func (p *PercentProgress) Reset() {
	p.reported.Store(-1)
}
