// Package ghostscript locates the Ghostscript binary and renders the
// command lines for archival black-and-white PDF compression. The flag set
// is configuration data: nothing in the pipeline interprets it.
package ghostscript

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"pdf-compressor-go/internal/config"
)

// ErrNotFound is returned when no Ghostscript binary can be located.
var ErrNotFound = errors.New("ghostscript not found")

// InstallHint is shown alongside ErrNotFound at the user-facing boundary.
const InstallHint = "Install Ghostscript and make sure it is on your PATH.\n" +
	"Download: https://www.ghostscript.com/download/gsdnld.html\n" +
	"On Windows the default install location (C:\\Program Files\\gs\\) is searched automatically."

// Binary names probed on PATH, in order.
var candidates = []string{"gs", "gswin64c", "gswin32c", "ghostscript"}

// Well-known Windows install locations probed when PATH comes up empty.
var windowsGlobs = []string{
	`C:\Program Files\gs\gs*\bin\gswin64c.exe`,
	`C:\Program Files (x86)\gs\gs*\bin\gswin32c.exe`,
	`C:\gs\gs*\bin\gswin64c.exe`,
	`C:\gs\gs*\bin\gswin32c.exe`,
}

// Locate resolves the Ghostscript binary. An explicit path wins; otherwise
// the known binary names are searched on PATH, then the Windows install
// globs. Returns ErrNotFound when nothing usable is present.
func Locate(explicit string) (string, error) {
	if explicit != "" {
		if _, err := exec.LookPath(explicit); err != nil {
			return "", fmt.Errorf("configured ghostscript binary %q not usable: %w", explicit, ErrNotFound)
		}
		return explicit, nil
	}

	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	if runtime.GOOS == "windows" {
		for _, pattern := range windowsGlobs {
			if matches, err := filepath.Glob(pattern); err == nil && len(matches) > 0 {
				return matches[0], nil
			}
		}
	}

	return "", ErrNotFound
}

// Version runs the binary once and returns its reported version. This is the
// up-front availability probe: it must pass before any batch starts.
func Version(ctx context.Context, binary string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("probing %s: %w", binary, err)
	}

	version := strings.TrimSpace(string(out))
	if i := strings.IndexByte(version, '\n'); i >= 0 {
		version = strings.TrimSpace(version[:i])
	}
	return version, nil
}

// Builder returns a command builder bound to the given binary, in the shape
// the compressor expects.
func Builder(binary string) func(inputPath, outputPath string, profile config.QualityProfile) (string, []string) {
	return func(inputPath, outputPath string, profile config.QualityProfile) (string, []string) {
		return binary, Args(inputPath, outputPath, profile)
	}
}

// Args renders the full argument list for compressing inputPath to
// outputPath under the given profile: grayscale pdfwrite output tuned for
// scanned documents, with image resolution and JPEG quality taken from the
// profile. Mono images stay at 600dpi CCITT regardless of profile.
func Args(inputPath, outputPath string, profile config.QualityProfile) []string {
	return []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=" + profile.Preset,
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-dSAFER",

		// A4 page geometry
		"-sPAPERSIZE=a4",
		"-dFIXEDMEDIA",
		"-dPDFFitPage",
		"-dAutoRotatePages=/None",

		// grayscale conversion
		"-sColorConversionStrategy=Gray",
		"-dProcessColorModel=/DeviceGray",
		"-dConvertCMYKImagesToRGB=false",

		// downsample color and gray, never mono
		"-dDownsampleColorImages=true",
		"-dDownsampleGrayImages=true",
		"-dDownsampleMonoImages=false",
		"-dColorImageDownsampleType=/Bicubic",
		"-dGrayImageDownsampleType=/Bicubic",
		"-dMonoImageDownsampleType=/Subsample",
		fmt.Sprintf("-dColorImageResolution=%d", profile.DPI),
		fmt.Sprintf("-dGrayImageResolution=%d", profile.DPI),
		"-dMonoImageResolution=600",

		// explicit filters, no auto selection
		"-dAutoFilterColorImages=false",
		"-dAutoFilterGrayImages=false",
		"-dColorImageFilter=/DCTEncode",
		"-dGrayImageFilter=/DCTEncode",
		"-dMonoImageFilter=/CCITTFaxEncode",
		fmt.Sprintf("-dJPEGQ=%d", profile.JPEGQuality),

		"-dDetectDuplicateImages=true",
		"-dCompressFonts=true",
		"-dSubsetFonts=true",
		"-dCompressPages=true",
		"-dUseFlateCompression=true",

		"-sOutputFile=" + outputPath,
		inputPath,
	}
}

// RasterArgs renders the argument list for rasterizing only the first page
// of inputPath to a PNG at the given resolution. Used for previews.
func RasterArgs(inputPath, outputPath string, dpi int) []string {
	return []string{
		"-sDEVICE=png16m",
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-dSAFER",
		"-dFirstPage=1",
		"-dLastPage=1",
		fmt.Sprintf("-r%d", dpi),
		"-sOutputFile=" + outputPath,
		inputPath,
	}
}
