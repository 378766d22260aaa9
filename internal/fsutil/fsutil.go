// Package fsutil provides the filesystem primitives the compression pipeline
// relies on: collision-free temp file reservation next to a target path,
// best-effort file removal with bounded retries, and size helpers.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// CreateTemp reserves a temp file in the same directory as targetPath and
// returns its path. The name embeds a random token so concurrent jobs can
// never collide, and the file is created exclusively as a reservation. The
// caller owns the path until it is promoted to targetPath or removed.
func CreateTemp(targetPath string) (string, error) {
	base := filepath.Base(targetPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	f, err := os.CreateTemp(filepath.Dir(targetPath), stem+"_*_compress"+ext)
	if err != nil {
		return "", fmt.Errorf("reserving temp file for %s: %w", targetPath, err)
	}

	tempPath := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("closing temp reservation %s: %w", tempPath, err)
	}

	return tempPath, nil
}

// Remover deletes files with bounded retries. Antivirus scanners and file
// indexers briefly hold handles on fresh files; those show up as permission
// errors and usually clear within a second.
type Remover struct {
	Attempts int
	Delay    time.Duration
	log      *logrus.Logger
}

// NewRemover returns a Remover with the given retry settings. Non-positive
// values fall back to 3 attempts and a 500ms delay.
func NewRemover(log *logrus.Logger, attempts int, delay time.Duration) *Remover {
	if attempts <= 0 {
		attempts = 3
	}
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &Remover{Attempts: attempts, Delay: delay, log: log}
}

// Remove deletes path and reports whether the file is gone. A missing file
// counts as success. Permission errors are retried up to Attempts with a
// fixed delay; any other error fails immediately. Remove never returns an
// error value: removal failure is logged and must not be fatal to the caller.
func (r *Remover) Remove(path string) bool {
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		err := os.Remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return true
		}

		if !errors.Is(err, fs.ErrPermission) {
			r.log.WithField("file", path).Warnf("cannot remove file: %v", err)
			return false
		}

		if attempt < r.Attempts {
			r.log.WithField("file", path).Debugf(
				"file locked, retrying removal (attempt %d/%d)", attempt, r.Attempts)
			time.Sleep(r.Delay)
		}
	}

	r.log.WithField("file", path).Warnf("file still locked after %d removal attempts", r.Attempts)
	return false
}

// FileSize returns the size of path in bytes, or 0 when it cannot be read.
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0
	}
	return info.Size()
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// FormatBytes renders a byte count in human-readable form, e.g. "2.4 MB".
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
