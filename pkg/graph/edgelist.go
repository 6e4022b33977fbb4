package graph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/snappy"
)

// AddOriginalEdge records an edge between two original identifiers,
// assigning dense ids in first-seen order.
func (b *Builder) AddOriginalEdge(a, c int64) error {
	if b.ids == nil {
		if b.nodeCount > 0 {
			return fmt.Errorf("cannot mix original ids with %d dense nodes", b.nodeCount)
		}
		b.ids = newIDMap()
	}
	u := b.ids.intern(a)
	v := b.ids.intern(c)
	return b.AddEdge(u, v)
}

// ReadEdgeList parses whitespace separated "source target" lines. Lines
// starting with '#' or '%' are comments and extra columns such as weights
// are ignored. Identifiers may be any int64 and are remapped to dense ids.
func ReadEdgeList(r io.Reader) (*Builder, error) {
	b := NewBuilder(0)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || text[0] == '#' || text[0] == '%' {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected two node ids, got %q", line, text)
		}
		src, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid source %q: %w", line, fields[0], err)
		}
		dst, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid target %q: %w", line, fields[1], err)
		}
		if err := b.AddOriginalEdge(src, dst); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read edge list: %w", err)
	}
	return b, nil
}

// OpenEdgeList reads an edge list file. Files ending in ".sz" are decoded
// as snappy framed streams.
func OpenEdgeList(path string) (*Builder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".sz") {
		r = snappy.NewReader(f)
	}
	b, err := ReadEdgeList(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// WriteEdgeList writes every undirected edge of g once, as original ids,
// smaller endpoint first.
func WriteEdgeList(w io.Writer, g Graph) error {
	bw := bufio.NewWriter(w)
	var werr error
	for u := 0; u < g.NodeCount() && werr == nil; u++ {
		g.ForEachNeighbor(u, func(v int) bool {
			if v <= u {
				return true
			}
			_, werr = fmt.Fprintf(bw, "%d\t%d\n", OriginalID(g, u), OriginalID(g, v))
			return werr == nil
		})
	}
	if werr != nil {
		return werr
	}
	return bw.Flush()
}
