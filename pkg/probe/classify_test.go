package probe

import (
	"testing"
	"time"

	"github.com/projectdiscovery/edgeprobe/pkg/types"
)

func TestClassifierDeduplication(t *testing.T) {
	// 1.1.1.1 seen valid under X then Z, 1.0.0.1 unreachable under Y
	classifier := NewClassifier()
	classifier.Classify(types.ProbeVerdict{
		Address: "1.1.1.1", SourceLabel: "X", Status: types.StatusValid,
		MedianLatency: 21 * time.Millisecond, Jitter: time.Millisecond,
		SuccessCount: 3, Attempts: 3,
	})
	classifier.Classify(types.ProbeVerdict{
		Address: "1.0.0.1", SourceLabel: "Y", Status: types.StatusInvalid, Attempts: 3,
	})
	classifier.Classify(types.ProbeVerdict{
		Address: "1.1.1.1", SourceLabel: "Z", Status: types.StatusValid,
		MedianLatency: 23 * time.Millisecond, Jitter: 2 * time.Millisecond,
		SuccessCount: 3, Attempts: 3,
	})

	ranked := classifier.Ranked()
	if len(ranked) != 1 {
		t.Fatalf("ranked entries = %d, want 1", len(ranked))
	}
	if ranked[0].Address != "1.1.1.1" || ranked[0].SourceLabel != "X" {
		t.Errorf("ranked entry = %s/%s, want first-seen 1.1.1.1/X", ranked[0].Address, ranked[0].SourceLabel)
	}
	if ranked[0].MedianLatency != 21*time.Millisecond {
		t.Errorf("ranked median = %v, want the first verdict's 21ms", ranked[0].MedianLatency)
	}

	shared := classifier.Shared()
	if len(shared) != 1 {
		t.Fatalf("shared entries = %d, want 1", len(shared))
	}
	if shared[0].Address != "1.1.1.1" || shared[0].SourceLabel != "Z" {
		t.Errorf("shared entry = %s/%s, want 1.1.1.1/Z", shared[0].Address, shared[0].SourceLabel)
	}

	invalid := classifier.Invalid()
	if len(invalid) != 1 || invalid[0].Address != "1.0.0.1" {
		t.Fatalf("invalid bucket = %v, want only 1.0.0.1", invalid)
	}

	summary := classifier.Summary()
	want := types.ScanSummary{Total: 3, Valid: 1, Invalid: 1, Shared: 1}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
}

func TestClassifierErrorsCountedSeparately(t *testing.T) {
	classifier := NewClassifier()
	classifier.Classify(types.ProbeVerdict{
		Address: "1.2.3.4", SourceLabel: "X", Status: types.StatusError,
		Message: "address family not supported", Attempts: 3,
	})

	summary := classifier.Summary()
	if summary.Invalid != 1 || summary.Errors != 1 {
		t.Errorf("summary = %+v, want error verdicts in both Invalid and Errors", summary)
	}
	if len(classifier.Ranked()) != 0 {
		t.Error("error verdicts must never rank")
	}
}

// merging two partial runs through one classifier must not invent
// duplicate ranked entries per address
func TestClassifierResumeIdempotence(t *testing.T) {
	classifier := NewClassifier()
	verdict := types.ProbeVerdict{
		Address: "1.1.1.1", SourceLabel: "X", Status: types.StatusValid,
		MedianLatency: 20 * time.Millisecond, SuccessCount: 3, Attempts: 3,
	}

	// first (interrupted) run, then the resumed run over the same list
	classifier.Classify(verdict)
	classifier.Classify(verdict)

	if len(classifier.Ranked()) != 1 {
		t.Fatalf("ranked entries = %d, want 1 after resume merge", len(classifier.Ranked()))
	}
	if len(classifier.Shared()) != 1 {
		t.Errorf("duplicate valid verdict should land in shared, got %d", len(classifier.Shared()))
	}
}
