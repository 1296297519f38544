package probe

import (
	"testing"
	"time"

	"github.com/projectdiscovery/edgeprobe/pkg/types"
)

func entry(address string, latency time.Duration) types.RankedEntry {
	return types.RankedEntry{Address: address, MedianLatency: latency, SourceLabel: "X", SuccessCount: 3, Attempts: 3}
}

func TestDescending(t *testing.T) {
	entries := []types.RankedEntry{
		entry("1.0.0.1", 30*time.Millisecond),
		entry("1.1.1.1", 10*time.Millisecond),
		entry("8.8.8.8", 50*time.Millisecond),
	}

	sorted := Descending(entries)
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].MedianLatency < sorted[i].MedianLatency {
			t.Fatalf("entry %d (%v) is faster than entry %d (%v); order must be slowest first",
				i-1, sorted[i-1].MedianLatency, i, sorted[i].MedianLatency)
		}
	}
	if sorted[0].Address != "8.8.8.8" || sorted[2].Address != "1.1.1.1" {
		t.Errorf("order = %s..%s, want slowest 8.8.8.8 first and fastest 1.1.1.1 last", sorted[0].Address, sorted[2].Address)
	}

	// input untouched
	if entries[0].Address != "1.0.0.1" {
		t.Error("Descending must not reorder its input")
	}
}

func TestFastestN(t *testing.T) {
	descending := Descending([]types.RankedEntry{
		entry("a", 40*time.Millisecond),
		entry("b", 30*time.Millisecond),
		entry("c", 20*time.Millisecond),
		entry("d", 10*time.Millisecond),
	})

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{name: "tail slice reversed", n: 2, want: []string{"d", "c"}},
		{name: "n larger than list", n: 10, want: []string{"d", "c", "b", "a"}},
		{name: "zero", n: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FastestN(descending, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("FastestN() returned %d entries, want %d", len(got), len(tt.want))
			}
			for i, address := range tt.want {
				if got[i].Address != address {
					t.Errorf("entry %d = %s, want %s (fastest first)", i, got[i].Address, address)
				}
			}
		})
	}
}
