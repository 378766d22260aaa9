// Package batch walks a directory of PDF files through the compressor one at
// a time, smallest first, and aggregates per-file results into a single
// report. A failure on one file never stops the rest of the run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pdf-compressor-go/internal/compressor"
	"pdf-compressor-go/internal/config"
	"pdf-compressor-go/internal/perf"
	"pdf-compressor-go/internal/progress"
)

// ErrNoFilesFound is returned when the input directory contains no PDF files.
// The output directory is not created in that case.
var ErrNoFilesFound = errors.New("no PDF files found in the directory")

// Failure describes one file that could not be compressed.
type Failure struct {
	Name    string            `json:"name"`
	Reason  compressor.Reason `json:"reason"`
	Message string            `json:"message"`
}

// Result aggregates a whole run. Byte totals cover successful files only.
type Result struct {
	Total            int           `json:"total_files"`
	Succeeded        int           `json:"successful_compressions"`
	Failures         []Failure     `json:"failed_files"`
	TotalInputBytes  int64         `json:"total_original_size"`
	TotalOutputBytes int64         `json:"total_compressed_size"`
	OutputDir        string        `json:"output_dir,omitempty"`
	OutputPath       string        `json:"output_file,omitempty"`
	Elapsed          time.Duration `json:"-"`
}

// Failed returns the number of files that did not compress.
func (r *Result) Failed() int {
	return len(r.Failures)
}

// SavedPercent returns the overall size reduction across successful files.
func (r *Result) SavedPercent() float64 {
	if r.TotalInputBytes == 0 {
		return 0
	}
	return float64(r.TotalInputBytes-r.TotalOutputBytes) / float64(r.TotalInputBytes) * 100
}

// Orchestrator runs single files or whole directories through a Compressor.
type Orchestrator struct {
	cfg     *config.Config
	comp    compressor.Compressor
	tracker *perf.Tracker
	log     *logrus.Logger
}

// NewOrchestrator wires an orchestrator to its collaborators. The tracker may
// be nil when no timing report is wanted.
func NewOrchestrator(log *logrus.Logger, cfg *config.Config, comp compressor.Compressor, tracker *perf.Tracker) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		comp:    comp,
		tracker: tracker,
		log:     log,
	}
}

// pdfFile is one discovered candidate, captured with its size at scan time so
// sorting does not re-stat every file.
type pdfFile struct {
	name string
	path string
	size int64
}

// CompressDirectory compresses every PDF directly inside dir into a sibling
// output directory. Files are processed in ascending size order. Returns
// ErrNoFilesFound if the directory holds no PDFs; per-file failures are
// collected in the Result instead of aborting the run. A canceled context
// stops the loop between files and returns the partial Result alongside the
// context error.
func (o *Orchestrator) CompressDirectory(ctx context.Context, dir string, sink progress.Sink) (*Result, error) {
	if sink == nil {
		sink = progress.Nop
	}

	o.markPhase("Directory Scanning")
	files, err := o.discoverFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		o.log.Warnf("No PDF files found in %s", dir)
		return nil, ErrNoFilesFound
	}
	o.log.Infof("Found %d PDF files to process", len(files))

	// Smallest first. Early files finish fast, so progress and failures on
	// quick inputs surface before the long-running large files start.
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].size < files[j].size
	})

	o.markPhase("Directory Creation")
	outputDir := o.cfg.OutputDirName(dir)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		o.log.Errorf("Could not create output directory %s: %v", outputDir, err)
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	o.log.Infof("Created output directory: %s", outputDir)

	o.markPhase("Batch Processing")
	start := time.Now()
	total := len(files)
	res := &Result{Total: total, OutputDir: outputDir}

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			o.log.Warnf("Batch canceled after %d/%d files", i, total)
			return o.finish(res, start), err
		}

		sink.Report(o.batchStatus(i, total, f, time.Since(start), res.Succeeded))

		fileSink := progress.Func(func(message string) {
			sink.Report(fmt.Sprintf("Processing %d/%d: %s\n%s\nSucceeded: %d | Failed: %d",
				i+1, total, f.name, message, res.Succeeded, i-res.Succeeded))
		})

		outputPath := filepath.Join(outputDir, o.cfg.OutputFileName(f.name))
		fr := o.comp.Compress(ctx, f.path, outputPath, fileSink)
		if fr.OK() {
			res.Succeeded++
			res.TotalInputBytes += fr.InputSize
			res.TotalOutputBytes += fr.OutputSize
			o.log.Infof("Compressed: %s", f.name)
			sink.Report(fmt.Sprintf("Compressed %d/%d: %s", i+1, total, f.name))
		} else {
			res.Failures = append(res.Failures, Failure{Name: f.name, Reason: fr.Reason, Message: fr.Message})
			o.log.Errorf("Failed: %s - %s", f.name, fr.Message)
			sink.Report(fmt.Sprintf("Failed %d/%d: %s - %s", i+1, total, f.name, fr.Message))
		}
	}

	return o.finish(res, start), nil
}

// CompressFile compresses a single PDF, writing the output next to the input.
// Failures are reported through the Result, not the error.
func (o *Orchestrator) CompressFile(ctx context.Context, inputPath string, sink progress.Sink) (*Result, error) {
	if sink == nil {
		sink = progress.Nop
	}

	o.markPhase("File Processing")
	start := time.Now()

	outputPath := filepath.Join(filepath.Dir(inputPath), o.cfg.OutputFileName(inputPath))
	fr := o.comp.Compress(ctx, inputPath, outputPath, sink)

	res := &Result{Total: 1}
	if fr.OK() {
		res.Succeeded = 1
		res.TotalInputBytes = fr.InputSize
		res.TotalOutputBytes = fr.OutputSize
		res.OutputPath = outputPath
		sink.Report(fmt.Sprintf("Compressed: %s", filepath.Base(inputPath)))
	} else {
		res.Failures = []Failure{{Name: filepath.Base(inputPath), Reason: fr.Reason, Message: fr.Message}}
		sink.Report(fmt.Sprintf("Failed: %s - %s", filepath.Base(inputPath), fr.Message))
	}

	return o.finish(res, start), nil
}

// discoverFiles lists the PDF files directly inside dir. Subdirectories are
// not descended into.
func (o *Orchestrator) discoverFiles(dir string) ([]pdfFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	var files []pdfFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) != ".pdf" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			o.log.Warnf("Error accessing path %s: %v", filepath.Join(dir, entry.Name()), err)
			continue
		}
		files = append(files, pdfFile{
			name: entry.Name(),
			path: filepath.Join(dir, entry.Name()),
			size: info.Size(),
		})
	}
	return files, nil
}

// batchStatus renders the file-start progress message with a linear ETA
// extrapolated from the files already completed.
func (o *Orchestrator) batchStatus(i, total int, f pdfFile, elapsed time.Duration, succeeded int) string {
	var remaining time.Duration
	if i > 0 {
		remaining = elapsed / time.Duration(i) * time.Duration(total-i)
	}
	return fmt.Sprintf("Processing %d/%d: %s\nFile size: %.2f MB\nElapsed: %.1fs | Estimated remaining: %.1fs\nSucceeded: %d | Failed: %d",
		i+1, total, f.name,
		float64(f.size)/(1024*1024),
		elapsed.Seconds(), remaining.Seconds(),
		succeeded, i-succeeded)
}

// finish closes out the tracker and stamps the elapsed time on the result.
func (o *Orchestrator) finish(res *Result, start time.Time) *Result {
	res.Elapsed = time.Since(start)
	if o.tracker != nil {
		o.tracker.MarkPhase("Finalizing")
		res.Elapsed = o.tracker.End()
	}
	return res
}

func (o *Orchestrator) markPhase(name string) {
	if o.tracker != nil {
		o.tracker.MarkPhase(name)
	}
}
