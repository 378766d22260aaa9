// Package perf records wall-clock timings for a single compression run:
// named phases, per-file durations, and success accounting. One Tracker is
// created per run and owned by the orchestrator; nothing here is global.
package perf

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Phase is a completed, non-overlapping interval of a run.
type Phase struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"-"`
	Seconds  float64       `json:"seconds"`
}

// FileSample is the recorded timing of one processed file.
type FileSample struct {
	ID       string        `json:"file"`
	Duration time.Duration `json:"-"`
	Seconds  float64       `json:"seconds"`
	Success  bool          `json:"success"`
}

// Stats is the machine-readable form of a finished run.
type Stats struct {
	Label        string       `json:"label"`
	StartedAt    time.Time    `json:"started_at"`
	EndedAt      time.Time    `json:"ended_at"`
	TotalSeconds float64      `json:"total_seconds"`
	Succeeded    int          `json:"succeeded"`
	Failed       int          `json:"failed"`
	Phases       []Phase      `json:"phases"`
	Files        []FileSample `json:"files"`
}

// Tracker accumulates timings for one run. All mutation goes through the
// mutex: files are processed sequentially today, but the recording API must
// stay safe if a host ever dispatches jobs from more than one goroutine.
type Tracker struct {
	mu sync.Mutex

	label     string
	startTime time.Time
	endTime   time.Time

	phases       []Phase
	openPhase    string
	openSince    time.Time
	hasOpenPhase bool

	files []FileSample
}

// NewTracker returns an empty Tracker for a single run.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Start begins timing a run under the given label and resets any state from
// an earlier use of this value.
func (t *Tracker) Start(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.label = label
	t.startTime = time.Now()
	t.endTime = time.Time{}
	t.phases = nil
	t.hasOpenPhase = false
	t.files = nil
}

// MarkPhase closes the currently open phase, if any, and opens a new one
// with the given name. The final phase is closed by End.
func (t *Tracker) MarkPhase(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.closeOpenPhase(now)
	t.openPhase = name
	t.openSince = now
	t.hasOpenPhase = true
}

// RecordFile records the timing of one file, measured from startedAt to now.
// Called exactly once per file, whatever the outcome.
func (t *Tracker) RecordFile(id string, startedAt time.Time, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recordDuration(id, time.Since(startedAt), success)
}

// End closes the final phase, stops the clock, and returns the total run
// duration.
func (t *Tracker) End() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.endTime = time.Now()
	t.closeOpenPhase(t.endTime)

	if t.startTime.IsZero() {
		return 0
	}
	return t.endTime.Sub(t.startTime)
}

// Stats returns a copy of the recorded data. Meaningful after End.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Stats{
		Label:        t.label,
		StartedAt:    t.startTime,
		EndedAt:      t.endTime,
		TotalSeconds: t.total().Seconds(),
		Phases:       append([]Phase(nil), t.phases...),
		Files:        append([]FileSample(nil), t.files...),
	}
	for _, f := range t.files {
		if f.Success {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}
	return stats
}

// Report renders a human-readable summary. Safe to call after End, and never
// fails on a run that recorded no phases or files.
func (t *Tracker) Report() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := t.total()
	succeeded, failed := 0, 0
	for _, f := range t.files {
		if f.Success {
			succeeded++
		} else {
			failed++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Performance Report:\n")
	fmt.Fprintf(&b, "  Total Duration: %.2fs\n", total.Seconds())
	fmt.Fprintf(&b, "  Successful: %d files\n", succeeded)
	fmt.Fprintf(&b, "  Failed: %d files\n", failed)

	if len(t.phases) > 0 {
		fmt.Fprintf(&b, "\nPhase Breakdown:\n")
		for _, p := range t.phases {
			percentage := 0.0
			if total > 0 {
				percentage = p.Duration.Seconds() / total.Seconds() * 100
			}
			fmt.Fprintf(&b, "  %s: %.2fs (%.1f%%)\n", p.Name, p.Duration.Seconds(), percentage)
		}
	}

	if len(t.files) > 0 {
		// Stable sort: files of equal duration keep their processing order.
		ranked := append([]FileSample(nil), t.files...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Duration > ranked[j].Duration
		})

		fmt.Fprintf(&b, "\nFile Processing Times (slowest first):\n")
		shown := len(ranked)
		if shown > 5 {
			shown = 5
		}
		for _, f := range ranked[:shown] {
			fmt.Fprintf(&b, "  %s: %.2fs\n", filepath.Base(f.ID), f.Duration.Seconds())
		}
		if len(ranked) > 5 {
			fmt.Fprintf(&b, "  ... and %d more files\n", len(ranked)-5)
		}

		var sum time.Duration
		for _, f := range t.files {
			sum += f.Duration
		}
		fmt.Fprintf(&b, "\n  Average per file: %.2fs\n", sum.Seconds()/float64(len(t.files)))
		fmt.Fprintf(&b, "  Slowest file: %.2fs\n", ranked[0].Duration.Seconds())
		fmt.Fprintf(&b, "  Fastest file: %.2fs\n", ranked[len(ranked)-1].Duration.Seconds())
	} else {
		fmt.Fprintf(&b, "\nNo file timings recorded.\n")
	}

	if failed > 0 {
		fmt.Fprintf(&b, "\nFailed Files:\n")
		for _, f := range t.files {
			if !f.Success {
				fmt.Fprintf(&b, "  %s\n", filepath.Base(f.ID))
			}
		}
	}

	return b.String()
}

// closeOpenPhase records the open phase as ending at now. Caller holds mu.
func (t *Tracker) closeOpenPhase(now time.Time) {
	if !t.hasOpenPhase {
		return
	}
	t.phases = append(t.phases, Phase{
		Name:     t.openPhase,
		Duration: now.Sub(t.openSince),
		Seconds:  now.Sub(t.openSince).Seconds(),
	})
	t.hasOpenPhase = false
}

// recordDuration appends a file sample. Caller holds mu.
func (t *Tracker) recordDuration(id string, d time.Duration, success bool) {
	t.files = append(t.files, FileSample{
		ID:       id,
		Duration: d,
		Seconds:  d.Seconds(),
		Success:  success,
	})
}

// total returns the run duration so far. Caller holds mu.
func (t *Tracker) total() time.Duration {
	if t.startTime.IsZero() {
		return 0
	}
	if t.endTime.IsZero() {
		return time.Since(t.startTime)
	}
	return t.endTime.Sub(t.startTime)
}
