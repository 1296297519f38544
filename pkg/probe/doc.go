// Package probe measures TCP reachability and latency stability of
// candidate edge addresses. A single handshake attempt is one probe; a
// fixed number of probes per candidate is aggregated into a verdict with
// median latency and jitter; batches of candidates run under a bounded
// worker pool with a cooldown between batches so ephemeral ports can clear
// their wait state before reuse.
//
// The fan-out/fan-in shape is fixed: workers only probe, a single
// collection point classifies verdicts and writes records. Nothing is
// shared between workers beyond the verdict channel.
package probe
