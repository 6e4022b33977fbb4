package graph

// idMap assigns dense ids to original identifiers in first-seen order.
type idMap struct {
	originals []int64
	index     map[int64]int
}

func newIDMap() *idMap {
	return &idMap{index: make(map[int64]int)}
}

func (m *idMap) intern(original int64) int {
	if id, ok := m.index[original]; ok {
		return id
	}
	id := len(m.originals)
	m.originals = append(m.originals, original)
	m.index[original] = id
	return id
}

func (m *idMap) len() int {
	if m == nil {
		return 0
	}
	return len(m.originals)
}

// toOriginal falls back to the identity when no mapping was recorded.
func (m *idMap) toOriginal(node int) int64 {
	if m == nil || node < 0 || node >= len(m.originals) {
		return int64(node)
	}
	return m.originals[node]
}

func (m *idMap) toMapped(original int64, nodeCount int) (int, bool) {
	if m == nil {
		if original < 0 || original >= int64(nodeCount) {
			return 0, false
		}
		return int(original), true
	}
	id, ok := m.index[original]
	return id, ok
}
