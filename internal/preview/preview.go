// Package preview renders a grayscale JPEG thumbnail of a PDF's first page.
// Ghostscript rasterizes the page to a temporary PNG, which is then
// grayscaled, shrunk and re-encoded in process. Used by the web adapter.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"pdf-compressor-go/internal/config"
	"pdf-compressor-go/internal/fsutil"
	"pdf-compressor-go/internal/ghostscript"
	"pdf-compressor-go/internal/progress"
	"pdf-compressor-go/internal/supervisor"
)

const (
	// Raster resolution for the intermediate PNG. Thumbnails do not need
	// the profile's full DPI.
	rasterDPI = 72

	timeout = 60 * time.Second

	maxWidth  = 480
	maxHeight = 640
)

// Runner executes one external command with a timeout. *supervisor.Supervisor
// satisfies it.
type Runner interface {
	Run(ctx context.Context, name string, args []string, timeout time.Duration, sink progress.Sink) supervisor.Outcome
}

// Renderer produces thumbnails through a Ghostscript binary.
type Renderer struct {
	binary  string
	runner  Runner
	remover *fsutil.Remover
	log     *logrus.Logger
}

// NewRenderer wires a renderer to the resolved Ghostscript binary.
func NewRenderer(log *logrus.Logger, binary string, runner Runner, remover *fsutil.Remover) *Renderer {
	return &Renderer{
		binary:  binary,
		runner:  runner,
		remover: remover,
		log:     log,
	}
}

// Render returns JPEG bytes for the first page of pdfPath. The thumbnail is
// grayscale, fits within 480x640 and is encoded at the profile's JPEG
// quality.
func (r *Renderer) Render(ctx context.Context, pdfPath string, profile config.QualityProfile) ([]byte, error) {
	if !fsutil.FileExists(pdfPath) {
		return nil, fmt.Errorf("input file not found: %s", pdfPath)
	}

	tmp, err := os.CreateTemp("", "preview_*.png")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	pngPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		r.remover.Remove(pngPath)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	defer r.remover.Remove(pngPath)

	outcome := r.runner.Run(ctx, r.binary, ghostscript.RasterArgs(pdfPath, pngPath, rasterDPI), timeout, progress.Nop)
	if outcome.State != supervisor.StateCompleted {
		r.log.Debugf("Preview raster failed for %s: %s", pdfPath, outcome.Stderr)
		return nil, fmt.Errorf("failed to rasterize first page: %s", outcome.State)
	}

	img, err := imaging.Open(pngPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open rendered page: %w", err)
	}
	thumb := imaging.Fit(imaging.Grayscale(img), maxWidth, maxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(profile.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
