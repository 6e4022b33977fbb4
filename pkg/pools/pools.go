// Package pools provides size-class based slice pooling for reducing GC
// pressure in worker scratch buffers.
//
//   - Ints: neighbor id scratch for the counting workers
//   - Bytes: encoding scratch for adjacency serialization
package pools

import "sync"

// Slice size classes, in elements
const (
	TinySize   = 16
	SmallSize  = 64
	MediumSize = 256
	LargeSize  = 1024
	HugeSize   = 4096
	MaxPool    = 1 << 16 // Don't pool slices with a larger capacity
)

var classes = [...]int{TinySize, SmallSize, MediumSize, LargeSize, HugeSize, MaxPool}

// SlicePool pools slices of T in fixed capacity classes.
type SlicePool[T any] struct {
	pools [len(classes)]sync.Pool
}

// NewSlicePool creates an empty pool.
func NewSlicePool[T any]() *SlicePool[T] {
	p := &SlicePool[T]{}
	for i, size := range classes {
		p.pools[i].New = func() any {
			s := make([]T, 0, size)
			return &s
		}
	}
	return p
}

func classFor(size int) int {
	for i, c := range classes {
		if size <= c {
			return i
		}
	}
	return -1
}

// Get returns a zero-length slice with at least the requested capacity.
func (p *SlicePool[T]) Get(size int) []T {
	class := classFor(size)
	if class < 0 {
		// Too large to pool, allocate directly
		return make([]T, 0, size)
	}
	sp, ok := p.pools[class].Get().(*[]T)
	if !ok || cap(*sp) < size {
		return make([]T, 0, classes[class])
	}
	return (*sp)[:0]
}

// Put returns a slice to the pool. It lands in the largest class its
// capacity fully covers; oversized and undersized slices are dropped.
func (p *SlicePool[T]) Put(s []T) {
	c := cap(s)
	if c < TinySize || c > MaxPool {
		return
	}
	class := len(classes) - 1
	for class > 0 && classes[class] > c {
		class--
	}
	s = s[:0]
	p.pools[class].Put(&s)
}

// Default pools
var (
	Ints  = NewSlicePool[int]()
	Bytes = NewSlicePool[byte]()
)
