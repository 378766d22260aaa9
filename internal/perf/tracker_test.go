package perf

import (
	"strings"
	"testing"
	"time"
)

func TestTrackerPhasesInOrder(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("test run")
	tracker.MarkPhase("Directory Scanning")
	tracker.MarkPhase("Batch Processing")
	tracker.MarkPhase("Finalizing")
	total := tracker.End()

	stats := tracker.Stats()
	want := []string{"Directory Scanning", "Batch Processing", "Finalizing"}
	if len(stats.Phases) != len(want) {
		t.Fatalf("recorded %d phases, want %d", len(stats.Phases), len(want))
	}
	for i, name := range want {
		if stats.Phases[i].Name != name {
			t.Errorf("phase[%d] = %q, want %q", i, stats.Phases[i].Name, name)
		}
		if stats.Phases[i].Duration < 0 {
			t.Errorf("phase[%d] has negative duration %v", i, stats.Phases[i].Duration)
		}
	}

	var sum time.Duration
	for _, p := range stats.Phases {
		sum += p.Duration
	}
	if sum > total+10*time.Millisecond {
		t.Errorf("phases sum to %v, more than the total run duration %v", sum, total)
	}
}

func TestTrackerFileAccounting(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("files")
	tracker.RecordFile("a.pdf", time.Now(), true)
	tracker.RecordFile("b.pdf", time.Now(), false)
	tracker.RecordFile("c.pdf", time.Now(), true)
	tracker.End()

	stats := tracker.Stats()
	if stats.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", stats.Succeeded)
	}
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
	if len(stats.Files) != 3 {
		t.Errorf("recorded %d files, want 3", len(stats.Files))
	}
}

func TestReportEmptyRun(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("empty")
	tracker.End()

	report := tracker.Report()
	if !strings.Contains(report, "No file timings recorded") {
		t.Errorf("report for an empty run missing the no-data section:\n%s", report)
	}
	if strings.Contains(report, "NaN") {
		t.Errorf("report contains NaN:\n%s", report)
	}
}

func TestReportWithoutStart(t *testing.T) {
	tracker := NewTracker()

	// Must not panic or divide by zero even if the run never started.
	report := tracker.Report()
	if strings.Contains(report, "NaN") {
		t.Errorf("report contains NaN:\n%s", report)
	}
}

func TestReportRankingBreaksTiesByInputOrder(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("ranking")

	samples := []struct {
		id string
		d  time.Duration
	}{
		{"huge.pdf", 5 * time.Second},
		{"first.pdf", 3 * time.Second},
		{"second.pdf", 3 * time.Second},
		{"third.pdf", 3 * time.Second},
		{"quick.pdf", time.Second},
		{"extra.pdf", time.Second},
	}
	tracker.mu.Lock()
	for _, s := range samples {
		tracker.recordDuration(s.id, s.d, true)
	}
	tracker.mu.Unlock()
	tracker.End()

	report := tracker.Report()

	// Top five only, slowest first, equal durations in processing order.
	order := []string{"huge.pdf", "first.pdf", "second.pdf", "third.pdf", "quick.pdf"}
	last := -1
	for _, name := range order {
		idx := strings.Index(report, name)
		if idx < 0 {
			t.Fatalf("report missing %q:\n%s", name, report)
		}
		if idx < last {
			t.Errorf("%q listed out of order:\n%s", name, report)
		}
		last = idx
	}

	if strings.Contains(report, "extra.pdf") {
		t.Errorf("sixth file should be elided from the report:\n%s", report)
	}
	if !strings.Contains(report, "... and 1 more files") {
		t.Errorf("report missing the elision line:\n%s", report)
	}
}

func TestReportListsFailedFiles(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("failures")
	tracker.RecordFile("good.pdf", time.Now(), true)
	tracker.RecordFile("broken.pdf", time.Now(), false)
	tracker.End()

	report := tracker.Report()
	if !strings.Contains(report, "Failed Files:") {
		t.Fatalf("report missing failed files section:\n%s", report)
	}
	if !strings.Contains(report, "broken.pdf") {
		t.Errorf("report missing the failed file name:\n%s", report)
	}
}

func TestStartResetsPreviousRun(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("first")
	tracker.MarkPhase("Batch Processing")
	tracker.RecordFile("old.pdf", time.Now(), false)
	tracker.End()

	tracker.Start("second")
	tracker.End()

	stats := tracker.Stats()
	if stats.Label != "second" {
		t.Errorf("Label = %q, want %q", stats.Label, "second")
	}
	if len(stats.Files) != 0 || len(stats.Phases) != 0 {
		t.Errorf("second run inherited state: %d files, %d phases", len(stats.Files), len(stats.Phases))
	}
}
