// Package paged provides per-node numeric buffers in two layouts: a single
// contiguous slice (Dense) and a list of fixed-size pages (Paged). Callers
// read either through the Array interface and never need to know which one
// backs a result.
package paged

import (
	"iter"
	"unsafe"
)

// Number is the element constraint for numeric buffers.
type Number interface {
	~int32 | ~int64 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// Array is read-only indexed access to a numeric buffer.
type Array[T Number] interface {
	// Len returns the number of elements; 0 after release
	Len() int
	// Get returns the element at index i
	Get(i int) T
	// All yields (index, value) pairs in ascending index order
	All() iter.Seq2[int, T]
}

// Mutable is an Array that can be written and freed.
type Mutable[T Number] interface {
	Array[T]
	Set(i int, v T)
	// Ptr returns the address of element i, for use with sync/atomic
	Ptr(i int) *T
	Release()
}

// Layout selects the buffer representation.
type Layout int

const (
	// LayoutDense backs the buffer with one contiguous slice
	LayoutDense Layout = iota
	// LayoutPaged backs the buffer with PageSize-element pages
	LayoutPaged
)

// String returns the layout name
func (l Layout) String() string {
	switch l {
	case LayoutDense:
		return "dense"
	case LayoutPaged:
		return "paged"
	default:
		return "unknown"
	}
}

const (
	// PageShift is log2 of the page size
	PageShift = 14
	// PageSize is the number of elements per page
	PageSize = 1 << PageShift
	pageMask = PageSize - 1

	sliceHeaderBytes = int64(unsafe.Sizeof([]byte(nil)))
)

// New allocates a zeroed buffer of n elements in the given layout.
func New[T Number](n int, layout Layout) Mutable[T] {
	if layout == LayoutPaged {
		return NewPaged[T](n)
	}
	return NewDense[T](n)
}

// SizeOf estimates the bytes a buffer of n elements occupies in the given
// layout, including page headers.
func SizeOf[T Number](n int, layout Layout) int64 {
	var zero T
	elem := int64(unsafe.Sizeof(zero))
	size := elem * int64(n)
	if layout == LayoutPaged {
		size += int64(PagesFor(n)) * sliceHeaderBytes
	}
	return size + sliceHeaderBytes
}

// PagesFor returns how many pages hold n elements.
func PagesFor(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + pageMask) >> PageShift
}

// Sum adds up every element of a.
func Sum[T Number](a Array[T]) T {
	var total T
	for _, v := range a.All() {
		total += v
	}
	return total
}
