package batch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"pdf-compressor-go/internal/compressor"
	"pdf-compressor-go/internal/config"
	"pdf-compressor-go/internal/perf"
	"pdf-compressor-go/internal/progress"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func mustWriteFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// fakeCompressor records the order of inputs and fails the configured base
// names. Successful calls write a small output file so directory contents can
// be asserted.
type fakeCompressor struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]compressor.Reason
	cancel context.CancelFunc
}

func (f *fakeCompressor) Compress(ctx context.Context, inputPath, outputPath string, sink progress.Sink) compressor.Result {
	f.mu.Lock()
	f.calls = append(f.calls, filepath.Base(inputPath))
	f.mu.Unlock()

	if f.cancel != nil {
		f.cancel()
	}

	res := compressor.Result{
		InputPath:  inputPath,
		OutputPath: outputPath,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
	if reason, ok := f.failOn[filepath.Base(inputPath)]; ok {
		res.Reason = reason
		res.Message = "forced failure"
		return res
	}
	if err := os.WriteFile(outputPath, []byte("compressed"), 0644); err != nil {
		res.Reason = compressor.ReasonFilesystem
		res.Message = err.Error()
		return res
	}
	if info, err := os.Stat(inputPath); err == nil {
		res.InputSize = info.Size()
	}
	res.OutputSize = int64(len("compressed"))
	return res
}

// recordingSink keeps every reported message.
type recordingSink struct {
	mu       sync.Mutex
	messages []string
}

func (s *recordingSink) Report(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func newOrchestrator(comp compressor.Compressor, tracker *perf.Tracker) *Orchestrator {
	return NewOrchestrator(quietLogger(), config.DefaultConfig(), comp, tracker)
}

func TestCompressDirectoryProcessesSmallestFirst(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in")
	if err := os.Mkdir(input, 0755); err != nil {
		t.Fatal(err)
	}
	mustWriteFile(t, filepath.Join(input, "medium.pdf"), 5000)
	mustWriteFile(t, filepath.Join(input, "small.pdf"), 1000)
	mustWriteFile(t, filepath.Join(input, "large.pdf"), 20000)

	comp := &fakeCompressor{}
	sink := &recordingSink{}
	orch := newOrchestrator(comp, nil)

	res, err := orch.CompressDirectory(context.Background(), input, sink)
	if err != nil {
		t.Fatalf("CompressDirectory() error: %v", err)
	}

	wantOrder := []string{"small.pdf", "medium.pdf", "large.pdf"}
	if len(comp.calls) != len(wantOrder) {
		t.Fatalf("compressed %d files, want %d", len(comp.calls), len(wantOrder))
	}
	for i, want := range wantOrder {
		if comp.calls[i] != want {
			t.Errorf("call %d = %s, want %s", i, comp.calls[i], want)
		}
	}
	if res.Succeeded != 3 || res.Failed() != 0 {
		t.Errorf("succeeded=%d failed=%d, want 3/0", res.Succeeded, res.Failed())
	}

	// Progress events follow the same order.
	messages := sink.all()
	lastIndex := -1
	for _, want := range wantOrder {
		found := -1
		for i, m := range messages {
			if strings.Contains(m, want) {
				found = i
				break
			}
		}
		if found < 0 {
			t.Fatalf("no progress message mentions %s", want)
		}
		if found < lastIndex {
			t.Errorf("progress for %s appeared out of order", want)
		}
		lastIndex = found
	}
}

func TestCompressDirectoryIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in")
	if err := os.Mkdir(input, 0755); err != nil {
		t.Fatal(err)
	}
	mustWriteFile(t, filepath.Join(input, "a.pdf"), 100)
	mustWriteFile(t, filepath.Join(input, "b.pdf"), 200)
	mustWriteFile(t, filepath.Join(input, "c.pdf"), 300)

	comp := &fakeCompressor{failOn: map[string]compressor.Reason{
		"b.pdf": compressor.ReasonNotFound,
	}}
	orch := newOrchestrator(comp, nil)

	res, err := orch.CompressDirectory(context.Background(), input, nil)
	if err != nil {
		t.Fatalf("CompressDirectory() error: %v", err)
	}

	if res.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", res.Succeeded)
	}
	if res.Failed() != 1 || res.Failures[0].Name != "b.pdf" || res.Failures[0].Reason != compressor.ReasonNotFound {
		t.Errorf("Failures = %+v, want one entry for b.pdf", res.Failures)
	}
	for _, name := range []string{"a_optimized_bw.pdf", "c_optimized_bw.pdf"} {
		if _, err := os.Stat(filepath.Join(res.OutputDir, name)); err != nil {
			t.Errorf("expected output %s missing: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(res.OutputDir, "b_optimized_bw.pdf")); !errors.Is(err, os.ErrNotExist) {
		t.Error("failed file left an output behind")
	}
}

func TestCompressDirectoryEmpty(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in")
	if err := os.Mkdir(input, 0755); err != nil {
		t.Fatal(err)
	}
	mustWriteFile(t, filepath.Join(input, "notes.txt"), 10)

	orch := newOrchestrator(&fakeCompressor{}, nil)

	_, err := orch.CompressDirectory(context.Background(), input, nil)
	if !errors.Is(err, ErrNoFilesFound) {
		t.Fatalf("error = %v, want ErrNoFilesFound", err)
	}
	if _, err := os.Stat(input + "_optimized_bw"); !errors.Is(err, os.ErrNotExist) {
		t.Error("output directory was created for an empty batch")
	}
}

func TestCompressDirectorySkipsSubdirectoriesAndNonPDFs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in")
	if err := os.MkdirAll(filepath.Join(input, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	mustWriteFile(t, filepath.Join(input, "nested", "deep.pdf"), 100)
	mustWriteFile(t, filepath.Join(input, "keep.pdf"), 100)
	mustWriteFile(t, filepath.Join(input, "KEEP2.PDF"), 100)
	mustWriteFile(t, filepath.Join(input, "readme.md"), 100)

	comp := &fakeCompressor{}
	orch := newOrchestrator(comp, nil)

	res, err := orch.CompressDirectory(context.Background(), input, nil)
	if err != nil {
		t.Fatalf("CompressDirectory() error: %v", err)
	}
	if res.Total != 2 {
		t.Errorf("Total = %d, want 2 (keep.pdf and KEEP2.PDF)", res.Total)
	}
	for _, call := range comp.calls {
		if call == "deep.pdf" || call == "readme.md" {
			t.Errorf("unexpected file compressed: %s", call)
		}
	}
}

func TestCompressDirectoryCanceledBetweenFiles(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in")
	if err := os.Mkdir(input, 0755); err != nil {
		t.Fatal(err)
	}
	mustWriteFile(t, filepath.Join(input, "a.pdf"), 100)
	mustWriteFile(t, filepath.Join(input, "b.pdf"), 200)
	mustWriteFile(t, filepath.Join(input, "c.pdf"), 300)

	ctx, cancel := context.WithCancel(context.Background())
	comp := &fakeCompressor{cancel: cancel}
	orch := newOrchestrator(comp, nil)

	res, err := orch.CompressDirectory(ctx, input, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(comp.calls) != 1 {
		t.Errorf("compressed %d files after cancellation, want 1", len(comp.calls))
	}
	if res == nil || res.Succeeded != 1 {
		t.Errorf("partial result = %+v, want 1 success", res)
	}
}

func TestCompressDirectoryRecordsPhases(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in")
	if err := os.Mkdir(input, 0755); err != nil {
		t.Fatal(err)
	}
	mustWriteFile(t, filepath.Join(input, "a.pdf"), 100)

	tracker := perf.NewTracker()
	tracker.Start("batch test")
	orch := newOrchestrator(&fakeCompressor{}, tracker)

	if _, err := orch.CompressDirectory(context.Background(), input, nil); err != nil {
		t.Fatalf("CompressDirectory() error: %v", err)
	}

	stats := tracker.Stats()
	wantPhases := []string{"Directory Scanning", "Directory Creation", "Batch Processing", "Finalizing"}
	if len(stats.Phases) != len(wantPhases) {
		t.Fatalf("recorded %d phases, want %d: %+v", len(stats.Phases), len(wantPhases), stats.Phases)
	}
	for i, want := range wantPhases {
		if stats.Phases[i].Name != want {
			t.Errorf("phase %d = %s, want %s", i, stats.Phases[i].Name, want)
		}
	}
}

func TestCompressFileSingleMode(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "report.pdf")
	mustWriteFile(t, input, 1000)

	orch := newOrchestrator(&fakeCompressor{}, nil)

	res, err := orch.CompressFile(context.Background(), input, nil)
	if err != nil {
		t.Fatalf("CompressFile() error: %v", err)
	}
	if res.Succeeded != 1 || res.Total != 1 {
		t.Fatalf("result = %+v, want a single success", res)
	}
	want := filepath.Join(dir, "report_optimized_bw.pdf")
	if res.OutputPath != want {
		t.Errorf("OutputPath = %s, want %s", res.OutputPath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("output file missing: %v", err)
	}
}

func TestCompressFileFailure(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "report.pdf")
	mustWriteFile(t, input, 1000)

	comp := &fakeCompressor{failOn: map[string]compressor.Reason{
		"report.pdf": compressor.ReasonTimeout,
	}}
	orch := newOrchestrator(comp, nil)

	res, err := orch.CompressFile(context.Background(), input, nil)
	if err != nil {
		t.Fatalf("CompressFile() error: %v", err)
	}
	if res.Succeeded != 0 || res.Failed() != 1 {
		t.Fatalf("result = %+v, want a single failure", res)
	}
	if res.Failures[0].Reason != compressor.ReasonTimeout {
		t.Errorf("failure reason = %s, want %s", res.Failures[0].Reason, compressor.ReasonTimeout)
	}
	if res.OutputPath != "" {
		t.Errorf("OutputPath = %q, want empty on failure", res.OutputPath)
	}
}

func TestBatchStatusFormat(t *testing.T) {
	orch := newOrchestrator(&fakeCompressor{}, nil)
	msg := orch.batchStatus(2, 7, pdfFile{name: "scan.pdf", size: 4 << 20}, 10*time.Second, 2)

	for _, want := range []string{"Processing 3/7: scan.pdf", "4.00 MB", "Elapsed: 10.0s", "Succeeded: 2 | Failed: 0"} {
		if !strings.Contains(msg, want) {
			t.Errorf("status message missing %q:\n%s", want, msg)
		}
	}
	// Two of seven files done in 10s extrapolates to 25s for the rest.
	if !strings.Contains(msg, "Estimated remaining: 25.0s") {
		t.Errorf("status message has wrong ETA:\n%s", msg)
	}
}

func TestResultSavedPercent(t *testing.T) {
	res := &Result{TotalInputBytes: 1000, TotalOutputBytes: 250}
	if got := res.SavedPercent(); got != 75 {
		t.Errorf("SavedPercent() = %v, want 75", got)
	}
	empty := &Result{}
	if got := empty.SavedPercent(); got != 0 {
		t.Errorf("SavedPercent() on empty result = %v, want 0", got)
	}
}
