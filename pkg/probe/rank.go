package probe

import (
	"sort"

	"github.com/projectdiscovery/edgeprobe/pkg/types"
)

// Descending sorts entries by median latency, slowest first, breaking ties
// by address for stable output. This inverted order is the persisted
// contract: consumers take the tail of the list and reverse it to get the
// fastest-first subset (see FastestN). Changing the sort direction here
// without renegotiating that contract breaks every downstream reader.
func Descending(entries []types.RankedEntry) []types.RankedEntry {
	sorted := make([]types.RankedEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].MedianLatency != sorted[j].MedianLatency {
			return sorted[i].MedianLatency > sorted[j].MedianLatency
		}
		return sorted[i].Address < sorted[j].Address
	})
	return sorted
}

// FastestN is the consumption side of the Descending contract: it slices
// the last n entries off a descending-ordered list and reverses them,
// yielding the fastest n entries fastest-first.
func FastestN(descending []types.RankedEntry, n int) []types.RankedEntry {
	if n <= 0 {
		return nil
	}
	if n > len(descending) {
		n = len(descending)
	}

	tail := descending[len(descending)-n:]
	fastest := make([]types.RankedEntry, 0, n)
	for i := len(tail) - 1; i >= 0; i-- {
		fastest = append(fastest, tail[i])
	}
	return fastest
}
