package probe

import (
	"context"
	"fmt"
	"math"
	"net"
	"sort"
	"time"

	"github.com/projectdiscovery/edgeprobe/pkg/types"
)

const (
	// DefaultAttempts is the number of handshakes per candidate
	DefaultAttempts = 3
	// DefaultAttemptDelay spaces out attempts against the same target
	DefaultAttemptDelay = 200 * time.Millisecond
)

// ProbeFunc is a single timed handshake attempt, see Prober.Do
type ProbeFunc func(ctx context.Context, address string) (time.Duration, bool, error)

// Sampler repeats a probe against one candidate and aggregates the samples
// into a verdict. A candidate is valid when at least max(1, attempts/2)
// handshakes succeed; its latency is the median of the successful samples
// and its jitter their sample standard deviation.
type Sampler struct {
	Do       ProbeFunc
	Attempts int
	Delay    time.Duration
}

// NewSampler wires a Sampler to a Prober, substituting defaults for zero
// values.
func NewSampler(prober *Prober, attempts int, delay time.Duration) *Sampler {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if delay <= 0 {
		delay = DefaultAttemptDelay
	}
	return &Sampler{Do: prober.Do, Attempts: attempts, Delay: delay}
}

// Sample probes the candidate Attempts times sequentially and returns its
// verdict. Unexpected failures (a malformed address, a probe error that is
// not a plain miss) yield a StatusError verdict with the cause in Message;
// they never abort the surrounding batch. Cancellation is the exception:
// it is returned as a non-nil error together with nothing else, so the
// caller can unwind the batch loop.
func (s *Sampler) Sample(ctx context.Context, candidate types.Candidate) (types.ProbeVerdict, error) {
	verdict := types.ProbeVerdict{
		Address:     candidate.Address,
		SourceLabel: candidate.SourceLabel,
		Attempts:    s.Attempts,
	}

	if net.ParseIP(candidate.Address) == nil {
		verdict.Status = types.StatusError
		verdict.Message = fmt.Sprintf("not an IP address: %q", candidate.Address)
		return verdict, nil
	}

	var successes []time.Duration
	for attempt := 0; attempt < s.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return verdict, ctx.Err()
			case <-time.After(s.Delay):
			}
		}

		elapsed, ok, err := s.Do(ctx, candidate.Address)
		if err != nil {
			if ctx.Err() != nil {
				return verdict, ctx.Err()
			}
			verdict.Status = types.StatusError
			verdict.Message = err.Error()
			return verdict, nil
		}
		if ok {
			successes = append(successes, elapsed)
		}
	}

	minRequired := s.Attempts / 2
	if minRequired < 1 {
		minRequired = 1
	}

	verdict.SuccessCount = len(successes)
	if len(successes) >= minRequired {
		verdict.Status = types.StatusValid
		verdict.MedianLatency = median(successes)
		verdict.Jitter = stddev(successes)
	} else {
		verdict.Status = types.StatusInvalid
	}
	return verdict, nil
}

// median of a non-empty sample set; the mean of the two middle values for
// even-sized sets
func median(samples []time.Duration) time.Duration {
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// stddev is the sample standard deviation, 0 for fewer than two samples
func stddev(samples []time.Duration) time.Duration {
	if len(samples) < 2 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	mean := sum / float64(len(samples))

	var sq float64
	for _, s := range samples {
		d := float64(s) - mean
		sq += d * d
	}
	variance := sq / float64(len(samples)-1)
	return time.Duration(math.Sqrt(variance))
}
