// Package inspect implements the read-only scan mode: it lists the PDF files
// a compression run would pick up, their sizes, projected output names and,
// when the exiftool binary is installed, document metadata.
package inspect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"pdf-compressor-go/internal/config"
	"pdf-compressor-go/internal/fsutil"
)

// Metadata holds the document fields reported for one PDF.
type Metadata struct {
	Title      string `json:"title,omitempty"`
	Producer   string `json:"producer,omitempty"`
	PDFVersion string `json:"pdf_version,omitempty"`
	PageCount  int    `json:"page_count,omitempty"`
}

// MetadataReader extracts document metadata from a PDF file.
type MetadataReader interface {
	Read(path string) (*Metadata, error)
	Close()
}

// FileInfo describes one candidate file.
type FileInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	OutputName string    `json:"output_name"`
	Metadata   *Metadata `json:"metadata,omitempty"`
}

// Summary is the result of scanning a file or directory.
type Summary struct {
	Path              string     `json:"path"`
	Files             []FileInfo `json:"files"`
	TotalBytes        int64      `json:"total_bytes"`
	MetadataAvailable bool       `json:"metadata_available"`
}

// Scanner walks inputs the same way a compression run would, without writing
// anything.
type Scanner struct {
	cfg    *config.Config
	reader MetadataReader
	log    *logrus.Logger
}

// NewScanner returns a scanner. The reader may be nil when exiftool is not
// installed; the scan then reports sizes only.
func NewScanner(log *logrus.Logger, cfg *config.Config, reader MetadataReader) *Scanner {
	return &Scanner{
		cfg:    cfg,
		reader: reader,
		log:    log,
	}
}

// Scan inspects a single PDF or every PDF directly inside a directory.
// Directory entries are listed smallest first, matching processing order.
func (s *Scanner) Scan(ctx context.Context, path string) (*Summary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	summary := &Summary{
		Path:              path,
		MetadataAvailable: s.reader != nil,
	}

	if !info.IsDir() {
		summary.Files = append(summary.Files, s.describe(path, info.Size()))
		summary.TotalBytes = info.Size()
		return summary, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || strings.ToLower(filepath.Ext(entry.Name())) != ".pdf" {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			s.log.Warnf("Error accessing path %s: %v", filepath.Join(path, entry.Name()), err)
			continue
		}
		summary.Files = append(summary.Files, s.describe(filepath.Join(path, entry.Name()), fi.Size()))
		summary.TotalBytes += fi.Size()
	}

	sort.SliceStable(summary.Files, func(i, j int) bool {
		return summary.Files[i].Size < summary.Files[j].Size
	})
	return summary, nil
}

// describe builds the FileInfo for one file, attaching metadata when a reader
// is present.
func (s *Scanner) describe(path string, size int64) FileInfo {
	fi := FileInfo{
		Name:       filepath.Base(path),
		Size:       size,
		OutputName: s.cfg.OutputFileName(path),
	}
	if s.reader == nil {
		return fi
	}
	meta, err := s.reader.Read(path)
	if err != nil {
		s.log.Debugf("No metadata for %s: %v", path, err)
		return fi
	}
	fi.Metadata = meta
	return fi
}

// Report renders the summary as console text.
func (s *Summary) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, "PDF Scan: %s\n", s.Path)
	fmt.Fprintf(&b, "Files found: %d (%s total)\n", len(s.Files), fsutil.FormatBytes(s.TotalBytes))
	if !s.MetadataAvailable {
		b.WriteString("Document metadata unavailable (exiftool not installed)\n")
	}
	b.WriteString("\n")

	for _, f := range s.Files {
		fmt.Fprintf(&b, "  %-40s %10s", f.Name, fsutil.FormatBytes(f.Size))
		if m := f.Metadata; m != nil {
			if m.PageCount > 0 {
				fmt.Fprintf(&b, "  %d pages", m.PageCount)
			}
			if m.PDFVersion != "" {
				fmt.Fprintf(&b, "  PDF %s", m.PDFVersion)
			}
			if m.Producer != "" {
				fmt.Fprintf(&b, "  [%s]", m.Producer)
			}
		}
		fmt.Fprintf(&b, "  -> %s\n", f.OutputName)
	}
	return b.String()
}
