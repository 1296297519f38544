package types

import (
	"fmt"
	"time"
)

// ProbeStatus classifies the outcome of stability-sampling one candidate
type ProbeStatus int

const (
	StatusValid ProbeStatus = iota
	StatusInvalid
	StatusError
)

func (s ProbeStatus) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Candidate is an address proposed for probing by a discovery source.
// Addresses are not guaranteed unique across sources.
type Candidate struct {
	Address      string    `json:"ip"`
	SourceLabel  string    `json:"operator"`
	Provider     string    `json:"provider,omitempty"`
	DiscoveredAt time.Time `json:"created_at"`
}

// ProbeVerdict is the per-candidate aggregate produced by the stability
// sampler. MedianLatency and Jitter are meaningful only when Status is
// StatusValid. Message carries the cause for StatusError verdicts.
type ProbeVerdict struct {
	Address       string
	SourceLabel   string
	Status        ProbeStatus
	MedianLatency time.Duration
	Jitter        time.Duration
	SuccessCount  int
	Attempts      int
	Message       string
}

// SuccessRatio renders the success count as "k/n"
func (v ProbeVerdict) SuccessRatio() string {
	return fmt.Sprintf("%d/%d", v.SuccessCount, v.Attempts)
}

// RankedEntry is the first-seen valid verdict for a unique address. At most
// one RankedEntry exists per address; later valid verdicts for the same
// address become SharedEntries instead.
type RankedEntry struct {
	Address       string        `json:"ip"`
	MedianLatency time.Duration `json:"median_latency"`
	Jitter        time.Duration `json:"jitter"`
	SourceLabel   string        `json:"operator"`
	SuccessCount  int           `json:"success_count"`
	Attempts      int           `json:"attempts"`
}

// SuccessRatio renders the success count as "k/n"
func (e RankedEntry) SuccessRatio() string {
	return fmt.Sprintf("%d/%d", e.SuccessCount, e.Attempts)
}

// SharedEntry records a valid address observed under an additional
// discovery source after it was already ranked under its first one.
type SharedEntry struct {
	Address       string        `json:"ip"`
	MedianLatency time.Duration `json:"median_latency"`
	Jitter        time.Duration `json:"jitter"`
	SourceLabel   string        `json:"operator"`
	SuccessCount  int           `json:"success_count"`
}

// ScanSummary accumulates verdict counts over one scan invocation
type ScanSummary struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
	Errors  int `json:"errors"`
	Shared  int `json:"shared"`
}

// SpeedResult is the outcome of one tunneled speed test against a ranked
// entry, produced by the downstream tunnel collaborator.
type SpeedResult struct {
	Address      string  `json:"address_str"`
	Port         int     `json:"port_str"`
	DownloadMBps float64 `json:"download_numeric"`
	LatencyMS    float64 `json:"latency_numeric"`
	DownloadRate string  `json:"download_rate"`
	LatencyRate  string  `json:"latency_rate"`
}
