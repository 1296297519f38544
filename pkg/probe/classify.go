package probe

import (
	"github.com/projectdiscovery/gologger"

	"github.com/projectdiscovery/edgeprobe/pkg/types"
)

// Classifier triages the verdict stream into three disjoint buckets: the
// first valid verdict per unique address becomes a ranked entry, later
// valid verdicts for a known address become shared entries, everything
// else is invalid (with errors counted separately). Every verdict instance
// lands in exactly one bucket.
//
// Classify is not safe for concurrent use: the batcher guarantees a single
// collection goroutine, and feeding verdicts from a resumed partial run
// through the same Classifier keeps deduplication intact.
type Classifier struct {
	ranked  []types.RankedEntry
	shared  []types.SharedEntry
	invalid []types.ProbeVerdict
	seen    map[string]struct{}
	summary types.ScanSummary
}

// NewClassifier returns an empty Classifier
func NewClassifier() *Classifier {
	return &Classifier{seen: make(map[string]struct{})}
}

// Classify buckets a single verdict
func (c *Classifier) Classify(verdict types.ProbeVerdict) {
	c.summary.Total++

	switch verdict.Status {
	case types.StatusValid:
		if _, dup := c.seen[verdict.Address]; dup {
			c.summary.Shared++
			c.shared = append(c.shared, types.SharedEntry{
				Address:       verdict.Address,
				MedianLatency: verdict.MedianLatency,
				Jitter:        verdict.Jitter,
				SourceLabel:   verdict.SourceLabel,
				SuccessCount:  verdict.SuccessCount,
			})
			return
		}
		c.seen[verdict.Address] = struct{}{}
		c.summary.Valid++
		c.ranked = append(c.ranked, types.RankedEntry{
			Address:       verdict.Address,
			MedianLatency: verdict.MedianLatency,
			Jitter:        verdict.Jitter,
			SourceLabel:   verdict.SourceLabel,
			SuccessCount:  verdict.SuccessCount,
			Attempts:      verdict.Attempts,
		})
	case types.StatusError:
		c.summary.Invalid++
		c.summary.Errors++
		c.invalid = append(c.invalid, verdict)
		gologger.Warning().Msgf("probe error for %s (%s): %s", verdict.Address, verdict.SourceLabel, verdict.Message)
	default:
		c.summary.Invalid++
		c.invalid = append(c.invalid, verdict)
	}
}

// Ranked returns the deduplicated valid entries in classification order
func (c *Classifier) Ranked() []types.RankedEntry {
	return c.ranked
}

// Shared returns valid entries observed under an additional source
func (c *Classifier) Shared() []types.SharedEntry {
	return c.shared
}

// Invalid returns the unreachable and errored verdicts
func (c *Classifier) Invalid() []types.ProbeVerdict {
	return c.invalid
}

// Summary returns the running counts
func (c *Classifier) Summary() types.ScanSummary {
	return c.summary
}
