package inspect

import (
	"fmt"

	"github.com/barasher/go-exiftool"
	"github.com/sirupsen/logrus"
)

// ExifToolReader reads PDF document metadata through a long-lived exiftool
// process.
type ExifToolReader struct {
	et  *exiftool.Exiftool
	log *logrus.Logger
}

// NewExifToolReader starts exiftool. Returns an error when the binary is not
// installed; callers treat that as "scan without metadata", not as fatal.
func NewExifToolReader(log *logrus.Logger) (*ExifToolReader, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("failed to start exiftool: %w", err)
	}
	return &ExifToolReader{et: et, log: log}, nil
}

// Read implements MetadataReader.
func (r *ExifToolReader) Read(path string) (*Metadata, error) {
	files := r.et.ExtractMetadata(path)
	if len(files) == 0 {
		return nil, fmt.Errorf("no metadata returned for %s", path)
	}
	if files[0].Err != nil {
		return nil, files[0].Err
	}

	meta := &Metadata{}
	fields := files[0].Fields
	if v, ok := fields["Title"].(string); ok {
		meta.Title = v
	}
	if v, ok := fields["Producer"].(string); ok {
		meta.Producer = v
	}
	if v, ok := fields["PDFVersion"]; ok && v != nil {
		meta.PDFVersion = fmt.Sprintf("%v", v)
	}
	if v, ok := fields["PageCount"].(float64); ok {
		meta.PageCount = int(v)
	}
	return meta, nil
}

// Close shuts the exiftool process down.
func (r *ExifToolReader) Close() {
	if err := r.et.Close(); err != nil {
		r.log.Warnf("Error closing exiftool: %v", err)
	}
}
