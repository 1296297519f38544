package probe

import (
	"fmt"
	"os"
	"time"

	"github.com/projectdiscovery/gologger"
	"github.com/rs/xid"

	"github.com/projectdiscovery/edgeprobe/pkg/types"
)

// Stability tag thresholds over per-candidate jitter
const (
	jitterOK   = 100 * time.Millisecond
	jitterWarn = 250 * time.Millisecond
)

// StabilityTag maps a candidate's jitter to OK, WARN or CRITICAL
func StabilityTag(jitter time.Duration) string {
	switch {
	case jitter < jitterOK:
		return "OK"
	case jitter < jitterWarn:
		return "WARN"
	default:
		return "CRITICAL"
	}
}

// Recorder is the collection point of one scan invocation: it feeds every
// verdict to the classifier and appends a human-readable block per batch
// to the live log, durably flushed so a crash or kill loses at most the
// in-flight batch. Verdicts held by the classifier stay the source of
// truth; live log write failures are reported and never stop probing.
type Recorder struct {
	ScanID     string
	classifier *Classifier
	live       *os.File
	startedAt  time.Time
}

// NewRecorder opens (and truncates) the live log at livePath and stamps
// the record with a fresh scan id.
func NewRecorder(livePath string, classifier *Classifier) (*Recorder, error) {
	live, err := os.OpenFile(livePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open live log: %w", err)
	}

	r := &Recorder{
		ScanID:     xid.New().String(),
		classifier: classifier,
		live:       live,
		startedAt:  time.Now(),
	}
	r.appendf("# edgeprobe scan %s started %s\n", r.ScanID, r.startedAt.Format(time.RFC3339))
	r.sync()
	return r, nil
}

// Collect implements Sink
func (r *Recorder) Collect(verdict types.ProbeVerdict) {
	r.classifier.Classify(verdict)
}

// FlushBatch implements Sink: one block per completed batch, synced to
// disk before the cooldown starts.
func (r *Recorder) FlushBatch(batch Batch) {
	valid := 0
	for _, verdict := range batch.Verdicts {
		if verdict.Status == types.StatusValid {
			valid++
		}
	}

	first, last := "", ""
	if len(batch.Candidates) > 0 {
		first = batch.Candidates[0].Address
		last = batch.Candidates[len(batch.Candidates)-1].Address
	}

	r.appendf("\n--- batch %d | %s - %s | %d probed | %d valid ---\n",
		batch.Index+1, first, last, len(batch.Verdicts), valid)
	for _, verdict := range batch.Verdicts {
		if verdict.Status != types.StatusValid {
			continue
		}
		r.appendf("  IP:%16s    TCP: %s    JITTER: %s [%s]    RATIO: %s    OPERATOR: %s\n",
			verdict.Address, ms(verdict.MedianLatency), ms(verdict.Jitter),
			StabilityTag(verdict.Jitter), verdict.SuccessRatio(), verdict.SourceLabel)
	}
	r.sync()
}

// Interrupt marks the live log after a cancelled run. Partial results are
// preserved by the classifier and still flow into WriteFinal; the marker
// only makes the incompleteness explicit.
func (r *Recorder) Interrupt(completedBatches int) {
	r.appendf("\n!!! interrupted after %d completed batch(es), results below this point are partial\n", completedBatches)
	r.sync()
}

// WriteFinal writes the final record at path: header counts followed by
// the full list ordered by latency descending (slowest first, see
// Descending).
func (r *Recorder) WriteFinal(path string, ranked []types.RankedEntry, shared []types.SharedEntry) error {
	summary := r.classifier.Summary()
	ordered := Descending(ranked)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("could not open final record: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "# edgeprobe scan %s finished %s\n", r.ScanID, time.Now().Format(time.RFC3339))
	fmt.Fprintf(file, "# total: %d  valid: %d  invalid: %d (%d errors)  shared: %d\n\n",
		summary.Total, summary.Valid, summary.Invalid, summary.Errors, summary.Shared)

	for idx, entry := range ordered {
		fmt.Fprintf(file, "[%3d]  IP:%16s    TCP: %s    JITTER: %s [%s]    RATIO: %s    OPERATOR: %s\n",
			idx+1, entry.Address, ms(entry.MedianLatency), ms(entry.Jitter),
			StabilityTag(entry.Jitter), entry.SuccessRatio(), entry.SourceLabel)
	}

	if len(shared) > 0 {
		fmt.Fprintf(file, "\n# %d address(es) valid on multiple operators:\n", len(shared))
		for _, entry := range shared {
			fmt.Fprintf(file, "  IP:%16s    TCP: %s    OPERATOR: %s\n",
				entry.Address, ms(entry.MedianLatency), entry.SourceLabel)
		}
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("could not sync final record: %w", err)
	}
	return nil
}

// Close finalizes the live log with the summary line
func (r *Recorder) Close() error {
	summary := r.classifier.Summary()
	r.appendf("\n# done in %s | total: %d valid: %d invalid: %d shared: %d\n",
		time.Since(r.startedAt).Round(time.Millisecond), summary.Total, summary.Valid, summary.Invalid, summary.Shared)
	r.sync()
	return r.live.Close()
}

func (r *Recorder) appendf(format string, args ...any) {
	if _, err := fmt.Fprintf(r.live, format, args...); err != nil {
		gologger.Error().Msgf("could not append to live log: %s", err)
	}
}

func (r *Recorder) sync() {
	if err := r.live.Sync(); err != nil {
		gologger.Error().Msgf("could not sync live log: %s", err)
	}
}

// ms renders a duration as milliseconds with one decimal, matching the
// record format consumers parse
func ms(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}
