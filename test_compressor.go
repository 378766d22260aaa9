package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pdf-compressor-go/internal/batch"
	"pdf-compressor-go/internal/compressor"
	"pdf-compressor-go/internal/config"
	"pdf-compressor-go/internal/fsutil"
	"pdf-compressor-go/internal/inspect"
	"pdf-compressor-go/internal/progress"

	"github.com/sirupsen/logrus"
)

// Manual smoke checks for the core pipeline. Everything runs against temp
// directories with a stub compressor, so no Ghostscript install is needed.
func main() {
	fmt.Println("🧪 PDF Compressor Test Suite")
	fmt.Println(strings.Repeat("=", 50))

	// Test 1: Size-bucketed timeouts
	fmt.Println("\n⏱️ Test 1: Timeout Policy")
	testTimeoutPolicy()

	// Test 2: Quality profile resolution
	fmt.Println("\n⚙️ Test 2: Quality Profiles")
	testQualityProfiles()

	// Test 3: Temp file guard and retrying remover
	fmt.Println("\n📁 Test 3: Temp Files and Cleanup")
	testTempFiles()

	// Test 4: Batch ordering and isolation
	fmt.Println("\n🔄 Test 4: Batch Orchestration")
	testBatchOrchestration()

	fmt.Println("\n✅ All tests completed!")
}

func testTimeoutPolicy() {
	policy := config.DefaultConfig().Timeouts

	cases := []struct {
		size        int64
		description string
		expected    time.Duration
	}{
		{0, "Empty file", 180 * time.Second},
		{512 * 1024, "Half a megabyte", 180 * time.Second},
		{5 * 1024 * 1024, "Five megabytes", 300 * time.Second},
		{20 * 1024 * 1024, "Twenty megabytes", 720 * time.Second},
		{100 * 1024 * 1024, "Hundred megabytes", 1320 * time.Second},
	}

	for _, c := range cases {
		result := policy.DurationFor(c.size)
		status := "✅"
		if result != c.expected {
			status = "❌"
		}
		fmt.Printf("  %s %s (%s): %v -> %v\n",
			status, c.description, fsutil.FormatBytes(c.size), c.expected, result)
	}
}

func testQualityProfiles() {
	for _, name := range config.ProfileNames() {
		p := config.ProfileByName(name)
		fmt.Printf("  ✅ %s: %d dpi, %d%% JPEG, %s\n", p.Name, p.DPI, p.JPEGQuality, p.Preset)
	}

	fallback := config.ProfileByName("no_such_profile")
	if fallback.Name == config.DefaultProfileName {
		fmt.Printf("  ✅ Unknown profile falls back to %s\n", fallback.Name)
	} else {
		fmt.Printf("  ❌ Unknown profile resolved to %s\n", fallback.Name)
	}

	cfg := config.DefaultConfig()
	cfg.Quality = "no_such_profile"
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  ✅ Config validation rejects it: %v\n", err)
	} else {
		fmt.Printf("  ❌ Config validation should have rejected an unknown profile\n")
	}
}

func testTempFiles() {
	testDir, err := os.MkdirTemp("", "pdfcompressor_test_")
	if err != nil {
		fmt.Printf("❌ Failed to create test directory: %v\n", err)
		return
	}
	defer os.RemoveAll(testDir)

	fmt.Printf("  📝 Created test environment: %s\n", testDir)

	target := filepath.Join(testDir, "output.pdf")
	tempPath, err := fsutil.CreateTemp(target)
	if err != nil {
		fmt.Printf("  ❌ Temp reservation failed: %v\n", err)
		return
	}
	if filepath.Dir(tempPath) == testDir && strings.Contains(filepath.Base(tempPath), "_compress") {
		fmt.Printf("  ✅ Reserved temp file beside target: %s\n", filepath.Base(tempPath))
	} else {
		fmt.Printf("  ❌ Unexpected temp path: %s\n", tempPath)
	}

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel) // Reduce noise
	remover := fsutil.NewRemover(log, 3, 100*time.Millisecond)

	if remover.Remove(tempPath) && !fsutil.FileExists(tempPath) {
		fmt.Println("  ✅ Remover deleted the reservation")
	} else {
		fmt.Println("  ❌ Remover failed to delete the reservation")
	}

	if remover.Remove(filepath.Join(testDir, "never_existed.pdf")) {
		fmt.Println("  ✅ Removing a missing file reports success")
	} else {
		fmt.Println("  ❌ Removing a missing file should succeed")
	}
}

// stubCompressor copies the input so the batch flow can run without
// Ghostscript.
type stubCompressor struct {
	order []string
}

func (s *stubCompressor) Compress(ctx context.Context, inputPath, outputPath string, sink progress.Sink) compressor.Result {
	s.order = append(s.order, filepath.Base(inputPath))
	res := compressor.Result{
		InputPath:  inputPath,
		OutputPath: outputPath,
		StartedAt:  time.Now(),
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		res.Reason = compressor.ReasonNotFound
		res.Message = err.Error()
		res.FinishedAt = time.Now()
		return res
	}
	if err := os.WriteFile(outputPath, data[:len(data)/2+1], 0644); err != nil {
		res.Reason = compressor.ReasonFilesystem
		res.Message = err.Error()
		res.FinishedAt = time.Now()
		return res
	}

	res.InputSize = int64(len(data))
	res.OutputSize = int64(len(data)/2 + 1)
	res.FinishedAt = time.Now()
	return res
}

func testBatchOrchestration() {
	testDir, err := os.MkdirTemp("", "pdfcompressor_batch_")
	if err != nil {
		fmt.Printf("❌ Failed to create test directory: %v\n", err)
		return
	}
	defer os.RemoveAll(testDir)

	sizes := map[string]int{"medium.pdf": 5000, "small.pdf": 1000, "large.pdf": 20000}
	for name, size := range sizes {
		if err := os.WriteFile(filepath.Join(testDir, name), make([]byte, size), 0644); err != nil {
			fmt.Printf("❌ Failed to create %s: %v\n", name, err)
			return
		}
	}

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	stub := &stubCompressor{}
	orch := batch.NewOrchestrator(log, config.DefaultConfig(), stub, nil)

	res, err := orch.CompressDirectory(context.Background(), testDir, nil)
	if err != nil {
		fmt.Printf("  ❌ Batch run failed: %v\n", err)
		return
	}

	want := []string{"small.pdf", "medium.pdf", "large.pdf"}
	ordered := len(stub.order) == len(want)
	for i := range want {
		if ordered && stub.order[i] != want[i] {
			ordered = false
		}
	}
	if ordered {
		fmt.Println("  ✅ Files processed smallest first")
	} else {
		fmt.Printf("  ❌ Unexpected processing order: %v\n", stub.order)
	}

	fmt.Printf("  📊 Processed: %d/%d, saved %.1f%%, output: %s\n",
		res.Succeeded, res.Total, res.SavedPercent(), res.OutputDir)

	// Scan mode against the same directory, read-only.
	scanner := inspect.NewScanner(log, config.DefaultConfig(), nil)
	summary, err := scanner.Scan(context.Background(), testDir)
	if err != nil {
		fmt.Printf("  ❌ Scan failed: %v\n", err)
		return
	}
	if len(summary.Files) == len(want) {
		fmt.Printf("  ✅ Scan mode sees the same %d files\n", len(summary.Files))
	} else {
		fmt.Printf("  ❌ Scan found %d files, expected %d\n", len(summary.Files), len(want))
	}
}
