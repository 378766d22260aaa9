package ghostscript

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"pdf-compressor-go/internal/config"
)

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func TestArgsCarryProfileSettings(t *testing.T) {
	tests := []struct {
		profile string
		dpi     int
		jpegQ   int
		preset  string
	}{
		{"high", 300, 85, "/prepress"},
		{"balanced", 200, 70, "/ebook"},
		{"compact", 150, 60, "/screen"},
	}

	for _, tt := range tests {
		t.Run(tt.profile, func(t *testing.T) {
			args := Args("in.pdf", "out.pdf", config.ProfileByName(tt.profile))

			for _, want := range []string{
				"-dPDFSETTINGS=" + tt.preset,
				fmt.Sprintf("-dColorImageResolution=%d", tt.dpi),
				fmt.Sprintf("-dGrayImageResolution=%d", tt.dpi),
				fmt.Sprintf("-dJPEGQ=%d", tt.jpegQ),
			} {
				if !hasArg(args, want) {
					t.Errorf("args missing %q", want)
				}
			}
		})
	}
}

func TestArgsFixedSettings(t *testing.T) {
	args := Args("scan.pdf", "small.pdf", config.ProfileByName("balanced"))

	for _, want := range []string{
		"-sDEVICE=pdfwrite",
		"-sColorConversionStrategy=Gray",
		"-dProcessColorModel=/DeviceGray",
		"-dMonoImageResolution=600",
		"-dMonoImageFilter=/CCITTFaxEncode",
		"-sOutputFile=small.pdf",
	} {
		if !hasArg(args, want) {
			t.Errorf("args missing %q", want)
		}
	}

	if args[len(args)-1] != "scan.pdf" {
		t.Errorf("last argument = %q, want the input path", args[len(args)-1])
	}
}

func TestRasterArgs(t *testing.T) {
	args := RasterArgs("doc.pdf", "page.png", 72)

	for _, want := range []string{
		"-sDEVICE=png16m",
		"-dFirstPage=1",
		"-dLastPage=1",
		"-r72",
		"-sOutputFile=page.png",
	} {
		if !hasArg(args, want) {
			t.Errorf("raster args missing %q", want)
		}
	}
	if args[len(args)-1] != "doc.pdf" {
		t.Errorf("last argument = %q, want the input path", args[len(args)-1])
	}
}

func TestBuilderBindsBinary(t *testing.T) {
	builder := Builder("/opt/gs/bin/gs")

	name, args := builder("a.pdf", "b.pdf", config.ProfileByName("compact"))
	if name != "/opt/gs/bin/gs" {
		t.Errorf("builder returned binary %q, want /opt/gs/bin/gs", name)
	}
	if len(args) == 0 || args[len(args)-1] != "a.pdf" {
		t.Error("builder did not render the compression arguments")
	}
}

func TestLocateExplicitMissing(t *testing.T) {
	_, err := Locate(filepath.Join(t.TempDir(), "no-such-gs"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Locate() error = %v, want ErrNotFound", err)
	}
}

func TestLocateExplicitBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX executable")
	}

	bin := filepath.Join(t.TempDir(), "fakegs")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nexit 0\n"), 0755); err != nil {
		t.Fatalf("writing fake binary: %v", err)
	}

	got, err := Locate(bin)
	if err != nil {
		t.Fatalf("Locate() failed: %v", err)
	}
	if got != bin {
		t.Errorf("Locate() = %q, want %q", got, bin)
	}
}

func TestVersion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	bin := filepath.Join(t.TempDir(), "fakegs")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\necho 10.02.1\n"), 0755); err != nil {
		t.Fatalf("writing fake binary: %v", err)
	}

	version, err := Version(context.Background(), bin)
	if err != nil {
		t.Fatalf("Version() failed: %v", err)
	}
	if version != "10.02.1" {
		t.Errorf("Version() = %q, want %q", version, "10.02.1")
	}
}

func TestVersionMissingBinary(t *testing.T) {
	if _, err := Version(context.Background(), filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("Version() on a missing binary succeeded, want error")
	}
}
