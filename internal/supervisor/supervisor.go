// Package supervisor runs one external command under a liveness polling
// loop with an adaptive deadline and a graceful-then-forced termination
// ladder. It classifies how the process ended but never retries; retry
// policy belongs to the caller.
package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"pdf-compressor-go/internal/progress"
)

// State classifies how a supervised process ended.
type State int

const (
	// StateCompleted means exit code 0. Output validation stays with the caller.
	StateCompleted State = iota
	// StateFailed means the process exited on its own with a nonzero code.
	StateFailed
	// StateTimedOut means the deadline passed and the process was terminated.
	StateTimedOut
	// StateCanceled means the host canceled the run before the deadline.
	StateCanceled
	// StateStartFailed means the process never started.
	StateStartFailed
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed out"
	case StateCanceled:
		return "canceled"
	case StateStartFailed:
		return "start failed"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of one supervised run. Stdout and Stderr
// are diagnostics only and stay empty after a kill, since a killed process
// leaves them incomplete.
type Outcome struct {
	State    State
	ExitCode int
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
	Err      error
}

// Supervisor launches external commands and enforces their deadlines.
type Supervisor struct {
	pollInterval time.Duration
	graceWindow  time.Duration
	log          *logrus.Logger
}

// New returns a Supervisor polling at pollInterval and allowing processes
// graceWindow to exit after a termination request. Non-positive values fall
// back to 10s each.
func New(log *logrus.Logger, pollInterval, graceWindow time.Duration) *Supervisor {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	if graceWindow <= 0 {
		graceWindow = 10 * time.Second
	}
	return &Supervisor{pollInterval: pollInterval, graceWindow: graceWindow, log: log}
}

// Run executes name with args and supervises it until exit, timeout, or
// cancellation. The start is non-blocking; between polls the supervisor
// sleeps on its ticker, so a concurrent host stays responsive. Each poll
// tick reports elapsed time to sink.
func (s *Supervisor) Run(ctx context.Context, name string, args []string, timeout time.Duration, sink progress.Sink) Outcome {
	if sink == nil {
		sink = progress.Nop
	}
	start := time.Now()

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		s.log.WithField("binary", name).Errorf("failed to start process: %v", err)
		return Outcome{State: StateStartFailed, ExitCode: -1, Elapsed: time.Since(start), Err: err}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case err := <-done:
			elapsed := time.Since(start)
			if err == nil {
				return Outcome{State: StateCompleted, Elapsed: elapsed, Stdout: stdout.String(), Stderr: stderr.String()}
			}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return Outcome{
					State:    StateFailed,
					ExitCode: exitErr.ExitCode(),
					Elapsed:  elapsed,
					Stdout:   stdout.String(),
					Stderr:   stderr.String(),
					Err:      err,
				}
			}
			return Outcome{State: StateFailed, ExitCode: -1, Elapsed: elapsed, Err: err}

		case <-ticker.C:
			elapsed := time.Since(start)
			sink.Report(fmt.Sprintf("Processing... %s elapsed", formatClock(elapsed)))
			s.log.WithField("binary", name).Infof("process still running, %s elapsed", formatClock(elapsed))

		case <-deadline.C:
			s.log.WithField("binary", name).Warnf(
				"timeout after %.1f minutes, terminating process", timeout.Minutes())
			s.terminate(cmd, done)
			return Outcome{State: StateTimedOut, ExitCode: -1, Elapsed: time.Since(start)}

		case <-ctx.Done():
			s.log.WithField("binary", name).Warn("run canceled, terminating process")
			s.terminate(cmd, done)
			return Outcome{State: StateCanceled, ExitCode: -1, Elapsed: time.Since(start), Err: ctx.Err()}
		}
	}
}

// terminate asks the process to exit, waits out the grace window, then
// force-kills it. The process is always reaped before returning so no
// zombie is left behind.
func (s *Supervisor) terminate(cmd *exec.Cmd, done <-chan error) {
	if cmd.Process == nil {
		return
	}

	// Best effort: some platforms cannot deliver SIGTERM and report an error.
	_ = cmd.Process.Signal(syscall.SIGTERM)

	grace := time.NewTimer(s.graceWindow)
	defer grace.Stop()

	select {
	case <-done:
		return
	case <-grace.C:
	}

	s.log.Error("process ignored termination request, force killing")
	_ = cmd.Process.Kill()
	<-done
}

// formatClock renders d as m:ss for progress lines.
func formatClock(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
