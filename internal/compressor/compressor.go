package compressor

import (
	"context"
	"time"

	"pdf-compressor-go/internal/config"
	"pdf-compressor-go/internal/progress"
	"pdf-compressor-go/internal/supervisor"
)

// Reason classifies why a compression job failed. Empty means success.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonNotFound        Reason = "not_found"
	ReasonToolUnavailable Reason = "tool_unavailable"
	ReasonNonZeroExit     Reason = "nonzero_exit"
	ReasonTimeout         Reason = "timeout"
	ReasonOutputMissing   Reason = "output_missing_or_empty"
	ReasonFilesystem      Reason = "filesystem_error"
	ReasonUnexpected      Reason = "unexpected_error"
)

// Result describes the terminal outcome of compressing a single file.
type Result struct {
	InputPath  string
	OutputPath string
	InputSize  int64
	OutputSize int64
	Reason     Reason
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
	Error      error
}

// OK reports whether the job succeeded.
func (r Result) OK() bool {
	return r.Reason == ReasonNone
}

// Elapsed returns the wall-clock duration of the job.
func (r Result) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SavedPercent returns the size reduction as a percentage of the input.
func (r Result) SavedPercent() float64 {
	if r.InputSize <= 0 {
		return 0
	}
	return float64(r.InputSize-r.OutputSize) * 100 / float64(r.InputSize)
}

// Compressor turns one input PDF into one compressed output PDF. All failure
// paths leave the final output path untouched and the temp path removed.
type Compressor interface {
	Compress(ctx context.Context, inputPath, outputPath string, sink progress.Sink) Result
}

// CommandBuilder renders the external command for one job. The compressor
// supplies the quality profile and the paths; it never interprets the
// rendered arguments.
type CommandBuilder func(inputPath, outputPath string, profile config.QualityProfile) (name string, args []string)

// Runner executes one external command under supervision. Satisfied by
// supervisor.Supervisor; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, name string, args []string, timeout time.Duration, sink progress.Sink) supervisor.Outcome
}
