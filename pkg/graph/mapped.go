package graph

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"golang.org/x/exp/mmap"

	"github.com/dd0wney/cluso-triangles/pkg/paged"
	"github.com/dd0wney/cluso-triangles/pkg/pools"
)

const (
	// MappedMagic identifies a mapped graph file ("TRIG")
	MappedMagic uint32 = 0x54524947
	// MappedVersion is the current file format version
	MappedVersion uint16 = 1

	flagHasIDs uint16 = 1 << 0
)

// mappedHeader is the fixed-size prefix of a mapped graph file. It is
// followed by NodeCount uint64 adjacency offsets, NodeCount uint32
// degrees, NodeCount int64 original ids when flagHasIDs is set, and
// AdjBytes of delta + uvarint encoded neighbor lists.
type mappedHeader struct {
	Magic     uint32
	Version   uint16
	Flags     uint16
	NodeCount uint64
	AdjBytes  uint64
}

const mappedHeaderSize = 24

// WriteMapped serializes g in the mapped graph format. Neighbor lists are
// sorted on the way out when g does not promise ascending order.
func WriteMapped(w io.Writer, g Graph) error {
	n := g.NodeCount()
	bw := bufio.NewWriterSize(w, 1<<16)

	offsets := paged.NewPaged[uint64](n)
	defer offsets.Release()

	scratch := pools.Bytes.Get(pools.LargeSize)
	list := pools.Ints.Get(pools.MediumSize)
	defer func() {
		pools.Bytes.Put(scratch)
		pools.Ints.Put(list)
	}()
	var total uint64
	for u := 0; u < n; u++ {
		list = sortedNeighbors(g, u, list[:0])
		scratch = appendDeltas(scratch[:0], list)
		offsets.Set(u, total)
		total += uint64(len(scratch))
	}

	mapper, hasIDs := g.(IDMapper)
	header := mappedHeader{
		Magic:     MappedMagic,
		Version:   MappedVersion,
		NodeCount: uint64(n),
		AdjBytes:  total,
	}
	if hasIDs {
		header.Flags |= flagHasIDs
	}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	var word [8]byte
	for _, off := range offsets.All() {
		binary.LittleEndian.PutUint64(word[:], off)
		if _, err := bw.Write(word[:]); err != nil {
			return fmt.Errorf("write offsets: %w", err)
		}
	}
	for u := 0; u < n; u++ {
		binary.LittleEndian.PutUint32(word[:4], uint32(g.Degree(u)))
		if _, err := bw.Write(word[:4]); err != nil {
			return fmt.Errorf("write degrees: %w", err)
		}
	}
	if hasIDs {
		for u := 0; u < n; u++ {
			binary.LittleEndian.PutUint64(word[:], uint64(mapper.ToOriginalNodeID(u)))
			if _, err := bw.Write(word[:]); err != nil {
				return fmt.Errorf("write ids: %w", err)
			}
		}
	}
	for u := 0; u < n; u++ {
		list = sortedNeighbors(g, u, list[:0])
		scratch = appendDeltas(scratch[:0], list)
		if _, err := bw.Write(scratch); err != nil {
			return fmt.Errorf("write adjacency: %w", err)
		}
	}

	return bw.Flush()
}

// WriteMappedFile writes g to path in the mapped graph format
func WriteMappedFile(path string, g Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteMapped(f, g); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func sortedNeighbors(g Graph, u int, buf []int) []int {
	g.ForEachNeighbor(u, func(v int) bool {
		buf = append(buf, v)
		return true
	})
	if !IsSorted(g) {
		slices.Sort(buf)
	}
	return buf
}

// Mapped is a compact-tier graph served directly from a memory-mapped
// file. It holds no per-node state on the Go heap.
type Mapped struct {
	path      string
	reader    *mmap.ReaderAt
	header    mappedHeader
	degreeOff int64
	idsOff    int64
	adjOff    int64

	reverseOnce sync.Once
	reverse     map[int64]int
}

// OpenMapped maps the graph file at path and validates its layout
func OpenMapped(path string) (*Mapped, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, mappedHeaderSize)
	if _, err := reader.ReadAt(buf, 0); err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("%w: short header: %v", ErrCorrupt, err)
	}
	header := mappedHeader{
		Magic:     binary.LittleEndian.Uint32(buf[0:4]),
		Version:   binary.LittleEndian.Uint16(buf[4:6]),
		Flags:     binary.LittleEndian.Uint16(buf[6:8]),
		NodeCount: binary.LittleEndian.Uint64(buf[8:16]),
		AdjBytes:  binary.LittleEndian.Uint64(buf[16:24]),
	}
	if header.Magic != MappedMagic {
		_ = reader.Close()
		return nil, fmt.Errorf("%w: invalid magic %x", ErrCorrupt, header.Magic)
	}
	if header.Version != MappedVersion {
		_ = reader.Close()
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, header.Version)
	}

	size := int64(reader.Len())
	perNode := int64(12)
	if header.Flags&flagHasIDs != 0 {
		perNode += 8
	}
	if header.NodeCount > uint64((size-mappedHeaderSize)/perNode) {
		_ = reader.Close()
		return nil, fmt.Errorf("%w: node count %d does not fit in %d bytes", ErrCorrupt, header.NodeCount, size)
	}
	if header.AdjBytes > uint64(size) {
		_ = reader.Close()
		return nil, fmt.Errorf("%w: adjacency size %d exceeds file size %d", ErrCorrupt, header.AdjBytes, size)
	}

	n := int64(header.NodeCount)
	m := &Mapped{path: path, reader: reader, header: header}
	m.degreeOff = mappedHeaderSize + 8*n
	m.idsOff = m.degreeOff + 4*n
	m.adjOff = m.idsOff
	if header.Flags&flagHasIDs != 0 {
		m.adjOff += 8 * n
	}

	if want := m.adjOff + int64(header.AdjBytes); int64(reader.Len()) != want {
		_ = reader.Close()
		return nil, fmt.Errorf("%w: size %d, expected %d", ErrCorrupt, reader.Len(), want)
	}
	if err := m.validateIndex(); err != nil {
		_ = reader.Close()
		return nil, err
	}
	return m, nil
}

// validateIndex checks that offsets ascend within the adjacency block and
// that every degree fits both the node count and its encoded byte range.
func (m *Mapped) validateIndex() error {
	n := int64(m.header.NodeCount)
	for u := int64(0); u < n; u++ {
		off := m.uint64At(mappedHeaderSize + 8*u)
		next := m.header.AdjBytes
		if u+1 < n {
			next = m.uint64At(mappedHeaderSize + 8*(u+1))
		}
		if off > next || next > m.header.AdjBytes {
			return fmt.Errorf("%w: node %d offset %d out of order", ErrCorrupt, u, off)
		}
		degree := int64(m.uint32At(m.degreeOff + 4*u))
		if degree >= n || uint64(degree) > next-off {
			return fmt.Errorf("%w: node %d degree %d does not fit its adjacency", ErrCorrupt, u, degree)
		}
	}
	return nil
}

// Close unmaps the file
func (m *Mapped) Close() error {
	if m.reader != nil {
		return m.reader.Close()
	}
	return nil
}

// Path returns the mapped file path
func (m *Mapped) Path() string { return m.path }

func (m *Mapped) NodeCount() int { return int(m.header.NodeCount) }

func (m *Mapped) Degree(node int) int {
	return int(m.uint32At(m.degreeOff + 4*int64(node)))
}

func (m *Mapped) ForEachNeighbor(node int, visit func(neighbor int) bool) {
	degree := m.Degree(node)
	pos := m.adjOff + int64(m.uint64At(mappedHeaderSize+8*int64(node)))

	current := 0
	for i := 0; i < degree; i++ {
		delta, next := m.uvarintAt(pos)
		current += int(delta)
		pos = next
		if !visit(current) {
			return
		}
	}
}

func (m *Mapped) Tier() Tier { return TierCompact }

func (m *Mapped) NeighborsSorted() bool { return true }

func (m *Mapped) ToOriginalNodeID(node int) int64 {
	if m.header.Flags&flagHasIDs == 0 {
		return int64(node)
	}
	return int64(m.uint64At(m.idsOff + 8*int64(node)))
}

// ToMappedNodeID builds a reverse index on first use when the file
// carries original ids.
func (m *Mapped) ToMappedNodeID(original int64) (int, bool) {
	n := m.NodeCount()
	if m.header.Flags&flagHasIDs == 0 {
		if original < 0 || original >= int64(n) {
			return 0, false
		}
		return int(original), true
	}
	m.reverseOnce.Do(func() {
		m.reverse = make(map[int64]int, n)
		for u := 0; u < n; u++ {
			m.reverse[m.ToOriginalNodeID(u)] = u
		}
	})
	id, ok := m.reverse[original]
	return id, ok
}

// AdjacencyBytes returns the encoded size of all neighbor lists
func (m *Mapped) AdjacencyBytes() int64 { return int64(m.header.AdjBytes) }

func (m *Mapped) uint32At(off int64) uint32 {
	return uint32(m.reader.At(int(off))) |
		uint32(m.reader.At(int(off+1)))<<8 |
		uint32(m.reader.At(int(off+2)))<<16 |
		uint32(m.reader.At(int(off+3)))<<24
}

func (m *Mapped) uint64At(off int64) uint64 {
	return uint64(m.uint32At(off)) | uint64(m.uint32At(off+4))<<32
}

// uvarintAt decodes one uvarint starting at off and returns the position
// after it.
func (m *Mapped) uvarintAt(off int64) (uint64, int64) {
	var x uint64
	var s uint
	for i := 0; i < binary.MaxVarintLen64; i++ {
		b := m.reader.At(int(off))
		off++
		if b < 0x80 {
			return x | uint64(b)<<s, off
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	panic(fmt.Sprintf("mapped graph %s: uvarint overflow at offset %d", m.path, off))
}

var (
	_ Graph     = (*Mapped)(nil)
	_ Sorted    = (*Mapped)(nil)
	_ IDMapper  = (*Mapped)(nil)
	_ io.Closer = (*Mapped)(nil)
)
