package paged

import "iter"

// Dense is a buffer backed by a single slice.
type Dense[T Number] struct {
	data []T
}

// NewDense allocates a dense buffer of n zeroed elements
func NewDense[T Number](n int) *Dense[T] {
	if n < 0 {
		n = 0
	}
	return &Dense[T]{data: make([]T, n)}
}

// Wrap uses an existing slice as a dense buffer without copying.
func Wrap[T Number](data []T) *Dense[T] {
	return &Dense[T]{data: data}
}

func (d *Dense[T]) Len() int { return len(d.data) }

func (d *Dense[T]) Get(i int) T { return d.data[i] }

func (d *Dense[T]) Set(i int, v T) { d.data[i] = v }

func (d *Dense[T]) Ptr(i int) *T { return &d.data[i] }

func (d *Dense[T]) All() iter.Seq2[int, T] {
	data := d.data
	return func(yield func(int, T) bool) {
		for i, v := range data {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Release drops the backing slice.
func (d *Dense[T]) Release() { d.data = nil }
