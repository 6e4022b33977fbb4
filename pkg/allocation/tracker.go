// Package allocation accounts for memory held by auxiliary algorithm
// buffers and refuses reservations past a configured limit.
package allocation

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/pbnjay/memory"
)

// ErrLimitExceeded is returned when a reservation would pass the limit.
var ErrLimitExceeded = errors.New("allocation limit exceeded")

// ErrNegativeReservation is returned for reservations below zero bytes.
var ErrNegativeReservation = errors.New("negative reservation")

// Tracker records bytes reserved by auxiliary structures.
type Tracker interface {
	// Reserve accounts for bytes about to be allocated, or fails without
	// changing the tracked total
	Reserve(bytes int64) error
	// Release returns previously reserved bytes
	Release(bytes int64)
	// Tracked returns the bytes currently reserved
	Tracked() int64
}

// LimitedTracker is a Tracker backed by an atomic counter. A limit <= 0
// means unlimited.
type LimitedTracker struct {
	limit   int64
	tracked atomic.Int64
	peak    atomic.Int64
}

// NewTracker creates a tracker that refuses reservations past limit bytes.
func NewTracker(limit int64) *LimitedTracker {
	if limit < 0 {
		limit = 0
	}
	return &LimitedTracker{limit: limit}
}

// Unlimited creates a tracker that counts but never refuses.
func Unlimited() *LimitedTracker {
	return NewTracker(0)
}

// DefaultLimit returns 80% of physical memory, or 0 (unlimited) when the
// platform does not report it.
func DefaultLimit() int64 {
	total := memory.TotalMemory()
	if total == 0 {
		return 0
	}
	limit := total / 10 * 8
	if limit > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(limit)
}

func (t *LimitedTracker) Reserve(bytes int64) error {
	if bytes < 0 {
		return fmt.Errorf("%w: %d bytes", ErrNegativeReservation, bytes)
	}
	for {
		current := t.tracked.Load()
		next := current + bytes
		if next < current || (t.limit > 0 && next > t.limit) {
			return fmt.Errorf("%w: requested %d bytes with %d of %d in use",
				ErrLimitExceeded, bytes, current, t.limit)
		}
		if t.tracked.CompareAndSwap(current, next) {
			t.raisePeak(next)
			return nil
		}
	}
}

func (t *LimitedTracker) raisePeak(v int64) {
	for {
		peak := t.peak.Load()
		if v <= peak || t.peak.CompareAndSwap(peak, v) {
			return
		}
	}
}

func (t *LimitedTracker) Release(bytes int64) {
	if bytes <= 0 {
		return
	}
	t.tracked.Add(-bytes)
}

func (t *LimitedTracker) Tracked() int64 { return t.tracked.Load() }

// Peak returns the highest reserved total seen
func (t *LimitedTracker) Peak() int64 { return t.peak.Load() }

// Limit returns the configured limit, 0 meaning unlimited
func (t *LimitedTracker) Limit() int64 { return t.limit }

type emptyTracker struct{}

func (emptyTracker) Reserve(int64) error { return nil }
func (emptyTracker) Release(int64)       {}
func (emptyTracker) Tracked() int64      { return 0 }

// Empty is a Tracker that records nothing.
var Empty Tracker = emptyTracker{}
