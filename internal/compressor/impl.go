package compressor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pdf-compressor-go/internal/config"
	"pdf-compressor-go/internal/fsutil"
	"pdf-compressor-go/internal/perf"
	"pdf-compressor-go/internal/progress"
	"pdf-compressor-go/internal/supervisor"
)

// FileCompressor is the production Compressor. It owns the per-job temp
// file from reservation until promotion or removal; nothing else may touch
// that path.
type FileCompressor struct {
	profile  config.QualityProfile
	timeouts config.TimeoutPolicy
	build    CommandBuilder
	runner   Runner
	remover  *fsutil.Remover
	tracker  *perf.Tracker
	log      *logrus.Logger
}

// NewFileCompressor creates a FileCompressor. The tracker may be nil when no
// timing is wanted, e.g. one-off jobs from the web adapter.
func NewFileCompressor(
	log *logrus.Logger,
	profile config.QualityProfile,
	timeouts config.TimeoutPolicy,
	build CommandBuilder,
	runner Runner,
	remover *fsutil.Remover,
	tracker *perf.Tracker,
) *FileCompressor {
	return &FileCompressor{
		profile:  profile,
		timeouts: timeouts,
		build:    build,
		runner:   runner,
		remover:  remover,
		tracker:  tracker,
		log:      log,
	}
}

// Compress transforms inputPath into outputPath under the configured
// profile. The output is written to a reserved temp file first and promoted
// with a rename only after validation, so no partial file is ever visible at
// outputPath. A timing sample is recorded whatever the outcome.
func (c *FileCompressor) Compress(ctx context.Context, inputPath, outputPath string, sink progress.Sink) (res Result) {
	start := time.Now()
	res = Result{InputPath: inputPath, OutputPath: outputPath, StartedAt: start}
	if sink == nil {
		sink = progress.Nop
	}

	defer func() {
		if r := recover(); r != nil {
			res.Reason = ReasonUnexpected
			res.Message = fmt.Sprintf("unexpected error: %v", r)
			res.Error = fmt.Errorf("panic during compression: %v", r)
			c.log.WithField("file", inputPath).Error(res.Message)
		}
		res.FinishedAt = time.Now()
		if c.tracker != nil {
			c.tracker.RecordFile(inputPath, start, res.OK())
		}
	}()

	info, err := os.Stat(inputPath)
	if err != nil || info.IsDir() {
		res.Reason = ReasonNotFound
		res.Message = fmt.Sprintf("file not found: %s", inputPath)
		res.Error = err
		c.log.WithField("file", inputPath).Error(res.Message)
		return res
	}
	res.InputSize = info.Size()

	timeout := c.timeouts.DurationFor(info.Size())

	tempPath, err := fsutil.CreateTemp(outputPath)
	if err != nil {
		res.Reason = ReasonFilesystem
		res.Message = fmt.Sprintf("cannot reserve temp file: %v", err)
		res.Error = err
		c.log.WithField("file", inputPath).Error(res.Message)
		return res
	}

	promoted := false
	defer func() {
		// Covers every non-success exit, panics and timeouts included.
		if !promoted {
			c.remover.Remove(tempPath)
		}
	}()

	name, args := c.build(inputPath, tempPath, c.profile)

	c.log.WithFields(logrus.Fields{
		"file":    inputPath,
		"size":    info.Size(),
		"quality": c.profile.Name,
	}).Infof("starting compression with %.1f minute timeout", timeout.Minutes())

	outcome := c.runner.Run(ctx, name, args, timeout, sink)

	switch outcome.State {
	case supervisor.StateCompleted:
		// Output validation below decides success.

	case supervisor.StateFailed:
		res.Reason = ReasonNonZeroExit
		res.Message = fmt.Sprintf("compression tool exited with code %d: %s",
			outcome.ExitCode, strings.TrimSpace(outcome.Stderr))
		res.Error = outcome.Err
		c.log.WithField("file", inputPath).Error(res.Message)
		if outcome.Stdout != "" {
			c.log.WithField("file", inputPath).Debugf("tool stdout: %s", outcome.Stdout)
		}
		return res

	case supervisor.StateTimedOut:
		res.Reason = ReasonTimeout
		res.Message = fmt.Sprintf("compression timed out after %.1f minutes", timeout.Minutes())
		c.log.WithField("file", inputPath).Error(res.Message)
		return res

	case supervisor.StateCanceled:
		res.Reason = ReasonUnexpected
		res.Message = "compression canceled"
		res.Error = outcome.Err
		c.log.WithField("file", inputPath).Warn(res.Message)
		return res

	case supervisor.StateStartFailed:
		if errors.Is(outcome.Err, exec.ErrNotFound) {
			res.Reason = ReasonToolUnavailable
			res.Message = fmt.Sprintf("compression tool not available: %v", outcome.Err)
		} else {
			res.Reason = ReasonUnexpected
			res.Message = fmt.Sprintf("could not start compression tool: %v", outcome.Err)
		}
		res.Error = outcome.Err
		c.log.WithField("file", inputPath).Error(res.Message)
		return res

	default:
		res.Reason = ReasonUnexpected
		res.Message = fmt.Sprintf("unrecognized process state %v", outcome.State)
		c.log.WithField("file", inputPath).Error(res.Message)
		return res
	}

	outputSize := fsutil.FileSize(tempPath)
	if outputSize == 0 {
		res.Reason = ReasonOutputMissing
		res.Message = "output file missing or empty after compression"
		c.log.WithField("file", inputPath).Error(res.Message)
		return res
	}

	// Best effort: a stale output from an earlier run must not block the rename.
	c.remover.Remove(outputPath)

	if err := os.Rename(tempPath, outputPath); err != nil {
		res.Reason = ReasonFilesystem
		res.Message = fmt.Sprintf("cannot move output into place: %v", err)
		res.Error = err
		c.log.WithField("file", inputPath).Error(res.Message)
		return res
	}
	promoted = true
	res.OutputSize = outputSize

	c.log.WithFields(logrus.Fields{
		"file":     inputPath,
		"input":    res.InputSize,
		"output":   res.OutputSize,
		"saved":    fmt.Sprintf("%.1f%%", res.SavedPercent()),
		"duration": outcome.Elapsed.Seconds(),
	}).Info("compression successful")

	return res
}
