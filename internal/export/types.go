// Package export renders user stories to PDF for sharing outside the tracker.
package export

import "errors"

// Format represents the export output format
type Format string

const FormatPDF Format = "pdf"

// Request contains parameters for an export operation
type Request struct {
	StoryID         int64
	Format          Format
	IncludeActivity bool
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
