package graph

import (
	"encoding/binary"
	"fmt"

	"github.com/dd0wney/cluso-triangles/pkg/paged"
	"github.com/dd0wney/cluso-triangles/pkg/pools"
)

// compactPageBytes is the target size of one adjacency page. A neighbor
// list longer than this gets a page of its own.
const compactPageBytes = 1 << 20

// Compact stores adjacency as delta + uvarint encoded sorted neighbor
// lists packed into fixed-size byte pages. Per node it keeps only a degree
// and a packed (page, offset) location, both in paged arrays, so no
// allocation grows with the node count.
type Compact struct {
	nodeCount int
	degrees   *paged.Paged[uint32]
	locations *paged.Paged[uint64] // page<<32 | offset within page
	pages     [][]byte
	ids       *idMap
}

func newCompact(adj [][]int, ids *idMap) *Compact {
	n := len(adj)
	g := &Compact{
		nodeCount: n,
		degrees:   paged.NewPaged[uint32](n),
		locations: paged.NewPaged[uint64](n),
		ids:       ids,
	}

	var page []byte
	scratch := pools.Bytes.Get(pools.LargeSize)
	defer func() { pools.Bytes.Put(scratch) }()
	for u, list := range adj {
		scratch = appendDeltas(scratch[:0], list)

		if len(page)+len(scratch) > compactPageBytes && len(page) > 0 {
			g.pages = append(g.pages, page)
			page = nil
		}
		if page == nil {
			size := compactPageBytes
			if len(scratch) > size {
				size = len(scratch)
			}
			page = make([]byte, 0, size)
		}

		g.degrees.Set(u, uint32(len(list)))
		g.locations.Set(u, uint64(len(g.pages))<<32|uint64(len(page)))
		page = append(page, scratch...)
	}
	if page != nil {
		g.pages = append(g.pages, page)
	}
	return g
}

// appendDeltas encodes a sorted list as the first id followed by the gaps
// between consecutive ids, each as a uvarint.
func appendDeltas(buf []byte, sorted []int) []byte {
	prev := 0
	for i, v := range sorted {
		if i > 0 && v < prev {
			// Builder sorts every list; guard against encoding a negative gap
			panic(fmt.Sprintf("compact: unsorted neighbor list at index %d (%d < %d)", i, v, prev))
		}
		buf = binary.AppendUvarint(buf, uint64(v-prev))
		prev = v
	}
	return buf
}

func (g *Compact) NodeCount() int { return g.nodeCount }

func (g *Compact) Degree(node int) int { return int(g.degrees.Get(node)) }

func (g *Compact) ForEachNeighbor(node int, visit func(neighbor int) bool) {
	degree := int(g.degrees.Get(node))
	if degree == 0 {
		return
	}
	loc := g.locations.Get(node)
	buf := g.pages[loc>>32][loc&0xffffffff:]

	current := 0
	for i := 0; i < degree; i++ {
		delta, n := binary.Uvarint(buf)
		if n <= 0 {
			panic(fmt.Sprintf("compact: corrupt adjacency for node %d at neighbor %d", node, i))
		}
		current += int(delta)
		buf = buf[n:]
		if !visit(current) {
			return
		}
	}
}

func (g *Compact) Tier() Tier { return TierCompact }

func (g *Compact) NeighborsSorted() bool { return true }

func (g *Compact) ToOriginalNodeID(node int) int64 { return g.ids.toOriginal(node) }

func (g *Compact) ToMappedNodeID(original int64) (int, bool) {
	return g.ids.toMapped(original, g.nodeCount)
}

// AdjacencyBytes returns the encoded size of all neighbor lists
func (g *Compact) AdjacencyBytes() int64 {
	var total int64
	for _, p := range g.pages {
		total += int64(len(p))
	}
	return total
}

// SizeBytes estimates the memory held by the graph
func (g *Compact) SizeBytes() int64 {
	return g.AdjacencyBytes() +
		paged.SizeOf[uint32](g.nodeCount, paged.LayoutPaged) +
		paged.SizeOf[uint64](g.nodeCount, paged.LayoutPaged)
}

// CompressionRatio compares the encoded adjacency with one int per entry
func (g *Compact) CompressionRatio() float64 {
	encoded := g.AdjacencyBytes()
	if encoded == 0 {
		return 0
	}
	var entries int64
	for _, d := range g.degrees.All() {
		entries += int64(d)
	}
	return float64(entries*8) / float64(encoded)
}

var (
	_ Graph    = (*Compact)(nil)
	_ Sorted   = (*Compact)(nil)
	_ IDMapper = (*Compact)(nil)
)
