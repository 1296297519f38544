package probe

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/projectdiscovery/edgeprobe/pkg/types"
)

func TestStabilityTag(t *testing.T) {
	tests := []struct {
		jitter time.Duration
		want   string
	}{
		{jitter: 0, want: "OK"},
		{jitter: 99 * time.Millisecond, want: "OK"},
		{jitter: 100 * time.Millisecond, want: "WARN"},
		{jitter: 249 * time.Millisecond, want: "WARN"},
		{jitter: 250 * time.Millisecond, want: "CRITICAL"},
		{jitter: time.Second, want: "CRITICAL"},
	}
	for _, tt := range tests {
		if got := StabilityTag(tt.jitter); got != tt.want {
			t.Errorf("StabilityTag(%v) = %s, want %s", tt.jitter, got, tt.want)
		}
	}
}

func TestRecorderLiveLog(t *testing.T) {
	dir := t.TempDir()
	livePath := filepath.Join(dir, "live.txt")

	classifier := NewClassifier()
	recorder, err := NewRecorder(livePath, classifier)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	valid := types.ProbeVerdict{
		Address: "1.1.1.1", SourceLabel: "X", Status: types.StatusValid,
		MedianLatency: 21 * time.Millisecond, Jitter: time.Millisecond,
		SuccessCount: 3, Attempts: 3,
	}
	miss := types.ProbeVerdict{Address: "1.0.0.1", SourceLabel: "Y", Status: types.StatusInvalid, Attempts: 3}

	recorder.Collect(valid)
	recorder.Collect(miss)
	recorder.FlushBatch(Batch{
		Index: 0,
		Candidates: []types.Candidate{
			{Address: "1.1.1.1", SourceLabel: "X"},
			{Address: "1.0.0.1", SourceLabel: "Y"},
		},
		Verdicts: []types.ProbeVerdict{valid, miss},
	})

	content, err := os.ReadFile(livePath)
	if err != nil {
		t.Fatalf("could not read live log: %v", err)
	}
	live := string(content)

	for _, want := range []string{
		"batch 1",
		"1.1.1.1 - 1.0.0.1",
		"2 probed",
		"1 valid",
		"TCP: 21.0ms",
		"JITTER: 1.0ms [OK]",
		"RATIO: 3/3",
		"OPERATOR: X",
	} {
		if !strings.Contains(live, want) {
			t.Errorf("live log missing %q:\n%s", want, live)
		}
	}
	if strings.Contains(live, "1.0.0.1    TCP") {
		t.Error("invalid verdicts must not get per-entry lines")
	}

	if err := recorder.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	content, _ = os.ReadFile(livePath)
	if !strings.Contains(string(content), "total: 2 valid: 1 invalid: 1") {
		t.Errorf("live log missing summary line:\n%s", content)
	}
}

func TestRecorderInterrupt(t *testing.T) {
	dir := t.TempDir()
	classifier := NewClassifier()
	recorder, err := NewRecorder(filepath.Join(dir, "live.txt"), classifier)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	defer recorder.Close()

	recorder.Interrupt(1)

	content, _ := os.ReadFile(filepath.Join(dir, "live.txt"))
	if !strings.Contains(string(content), "interrupted after 1 completed batch") {
		t.Errorf("live log missing interrupted marker:\n%s", content)
	}
}

func TestRecorderWriteFinal(t *testing.T) {
	dir := t.TempDir()
	classifier := NewClassifier()
	recorder, err := NewRecorder(filepath.Join(dir, "live.txt"), classifier)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	defer recorder.Close()

	for _, verdict := range []types.ProbeVerdict{
		{Address: "1.1.1.1", SourceLabel: "X", Status: types.StatusValid, MedianLatency: 10 * time.Millisecond, SuccessCount: 3, Attempts: 3},
		{Address: "1.0.0.1", SourceLabel: "Y", Status: types.StatusValid, MedianLatency: 40 * time.Millisecond, SuccessCount: 2, Attempts: 3},
		{Address: "1.1.1.1", SourceLabel: "Z", Status: types.StatusValid, MedianLatency: 12 * time.Millisecond, SuccessCount: 3, Attempts: 3},
		{Address: "9.9.9.9", SourceLabel: "X", Status: types.StatusInvalid, Attempts: 3},
	} {
		recorder.Collect(verdict)
	}

	finalPath := filepath.Join(dir, "final.txt")
	if err := recorder.WriteFinal(finalPath, classifier.Ranked(), classifier.Shared()); err != nil {
		t.Fatalf("WriteFinal() error = %v", err)
	}

	content, err := os.ReadFile(finalPath)
	if err != nil {
		t.Fatalf("could not read final record: %v", err)
	}
	final := string(content)

	if !strings.Contains(final, "total: 4  valid: 2  invalid: 1 (0 errors)  shared: 1") {
		t.Errorf("final record header counts wrong:\n%s", final)
	}
	// descending: the slow 1.0.0.1 entry must come before the fast 1.1.1.1
	slow := strings.Index(final, "1.0.0.1")
	fast := strings.Index(final, "1.1.1.1")
	if slow == -1 || fast == -1 || slow > fast {
		t.Errorf("final record not descending by latency:\n%s", final)
	}
	if !strings.Contains(final, "valid on multiple operators") {
		t.Errorf("final record missing shared section:\n%s", final)
	}
}
