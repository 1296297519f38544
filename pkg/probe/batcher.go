package probe

import (
	"context"
	"time"

	"github.com/projectdiscovery/gologger"
	syncutil "github.com/projectdiscovery/utils/sync"

	"github.com/projectdiscovery/edgeprobe/pkg/types"
)

const (
	// DefaultBatchSize is the number of candidates probed between cooldowns
	DefaultBatchSize = 500
	// DefaultMaxWorkers caps concurrent sampler invocations within a batch
	DefaultMaxWorkers = 30
	// DefaultCooldown is the pause between batches. It lets ephemeral ports
	// used by the previous batch clear their wait state before reuse; at
	// scale this is a correctness requirement, not a cosmetic pause.
	DefaultCooldown = 3 * time.Second
)

// Batch is one bounded slice of the candidate list together with the
// verdicts collected for it, in completion order. It exists only for the
// duration of one batcher iteration; only its effects persist.
type Batch struct {
	Index      int
	Candidates []types.Candidate
	Verdicts   []types.ProbeVerdict
}

// Sink is the single-threaded collection point fed by the batcher. Collect
// receives every verdict as it completes; FlushBatch fires once per fully
// completed batch. Both are always invoked from the same goroutine.
type Sink interface {
	Collect(verdict types.ProbeVerdict)
	FlushBatch(batch Batch)
}

// Batcher partitions candidates into fixed-size batches and runs a bounded
// worker pool over each batch in turn. The pool is created and torn down
// per batch, which keeps the cap on simultaneous open sockets independent
// of the total candidate count.
type Batcher struct {
	sampler    *Sampler
	BatchSize  int
	MaxWorkers int
	Cooldown   time.Duration
}

// NewBatcher returns a Batcher over the given sampler, substituting
// defaults for zero values.
func NewBatcher(sampler *Sampler, batchSize, maxWorkers int, cooldown time.Duration) *Batcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Batcher{sampler: sampler, BatchSize: batchSize, MaxWorkers: maxWorkers, Cooldown: cooldown}
}

// Run probes every candidate and feeds verdicts to sink. It blocks until
// all batches complete or ctx is cancelled. On cancellation, workers
// already dispatched are drained, their verdicts still reach the sink, and
// ctx's error is returned together with the number of fully completed
// batches so the caller can record the interruption instead of silently
// stopping.
func (b *Batcher) Run(ctx context.Context, candidates []types.Candidate, sink Sink) (int, error) {
	total := len(candidates)
	batchCount := (total + b.BatchSize - 1) / b.BatchSize
	completed := 0

	for index := 0; index < batchCount; index++ {
		if err := ctx.Err(); err != nil {
			return completed, err
		}

		start := index * b.BatchSize
		end := start + b.BatchSize
		if end > total {
			end = total
		}
		batch := Batch{Index: index, Candidates: candidates[start:end]}

		gologger.Verbose().Msgf("batch %d/%d: probing candidates %d-%d", index+1, batchCount, start+1, end)

		verdicts, err := b.runBatch(ctx, batch.Candidates, sink)
		batch.Verdicts = verdicts
		if err != nil {
			return completed, err
		}

		sink.FlushBatch(batch)
		completed++

		// no cooldown after the final batch
		if index == batchCount-1 {
			break
		}
		select {
		case <-ctx.Done():
			return completed, ctx.Err()
		case <-time.After(b.Cooldown):
		}
	}
	return completed, nil
}

// runBatch fans out up to MaxWorkers concurrent sampler invocations and
// fans their verdicts back in on the calling goroutine, which is the sole
// writer of the sink. Returned verdicts are in completion order; ranking
// never depends on it.
func (b *Batcher) runBatch(ctx context.Context, candidates []types.Candidate, sink Sink) ([]types.ProbeVerdict, error) {
	results := make(chan types.ProbeVerdict, len(candidates))

	go func() {
		defer close(results)

		awg, err := syncutil.New(syncutil.WithSize(b.MaxWorkers))
		if err != nil {
			gologger.Error().Msgf("could not create worker pool: %s", err)
			return
		}

		for _, candidate := range candidates {
			select {
			case <-ctx.Done():
				// stop dispatching; in-flight workers drain below
				goto wait
			default:
			}

			awg.Add()
			go func(candidate types.Candidate) {
				defer awg.Done()
				verdict, err := b.sampler.Sample(ctx, candidate)
				if err != nil {
					// cancellation mid-sample: no verdict for this candidate
					return
				}
				results <- verdict
			}(candidate)
		}

	wait:
		awg.Wait()
	}()

	verdicts := make([]types.ProbeVerdict, 0, len(candidates))
	for verdict := range results {
		sink.Collect(verdict)
		verdicts = append(verdicts, verdict)
	}

	if err := ctx.Err(); err != nil {
		return verdicts, err
	}
	return verdicts, nil
}
