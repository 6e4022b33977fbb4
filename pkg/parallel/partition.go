package parallel

// Range is the half-open node interval [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of nodes in the range
func (r Range) Len() int { return r.End - r.Start }

// Partition splits [0, n) into at most parts contiguous, non-empty ranges
// of near-equal size. It returns nil for n <= 0.
func Partition(n, parts int) []Range {
	if n <= 0 {
		return nil
	}
	if parts <= 0 {
		parts = 1
	}
	if parts > n {
		parts = n
	}

	// Use int64 to prevent overflow in the intermediate sum
	chunkSize := int((int64(n) + int64(parts) - 1) / int64(parts))
	if chunkSize < 1 {
		chunkSize = 1
	}

	ranges := make([]Range, 0, parts)
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		ranges = append(ranges, Range{Start: start, End: end})
	}
	return ranges
}
