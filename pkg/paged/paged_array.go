package paged

import "iter"

// Paged is a buffer split into PageSize-element pages so that no single
// allocation grows with the node count.
type Paged[T Number] struct {
	pages [][]T
	size  int
}

// NewPaged allocates a paged buffer of n zeroed elements. The last page is
// trimmed to the remaining length.
func NewPaged[T Number](n int) *Paged[T] {
	if n < 0 {
		n = 0
	}
	numPages := PagesFor(n)
	pages := make([][]T, numPages)
	for p := 0; p < numPages; p++ {
		length := PageSize
		if p == numPages-1 {
			length = n - p*PageSize
		}
		pages[p] = make([]T, length)
	}
	return &Paged[T]{pages: pages, size: n}
}

func (p *Paged[T]) Len() int { return p.size }

func (p *Paged[T]) Get(i int) T {
	return p.pages[i>>PageShift][i&pageMask]
}

func (p *Paged[T]) Set(i int, v T) {
	p.pages[i>>PageShift][i&pageMask] = v
}

func (p *Paged[T]) Ptr(i int) *T {
	return &p.pages[i>>PageShift][i&pageMask]
}

func (p *Paged[T]) All() iter.Seq2[int, T] {
	pages := p.pages
	return func(yield func(int, T) bool) {
		i := 0
		for _, page := range pages {
			for _, v := range page {
				if !yield(i, v) {
					return
				}
				i++
			}
		}
	}
}

// Pages returns the number of allocated pages
func (p *Paged[T]) Pages() int { return len(p.pages) }

// Release drops every page.
func (p *Paged[T]) Release() {
	p.pages = nil
	p.size = 0
}
