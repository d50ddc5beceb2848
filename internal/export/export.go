// Package export renders a classified Document as XLSX, DOCX or PDF
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gmsas95/doclens/internal/documents"
)

// ErrNoTablesFound is returned by the spreadsheet exporter for documents without tables.
// It is an expected outcome, not a fault.
var ErrNoTablesFound = errors.New("no tables found")

const (
	// Title heads every DOCX and PDF artifact
	Title = "Processing result"
	// Placeholder replaces empty or whitespace-only recognized text
	Placeholder = "content not recognized"
	// DefaultCellMaxChars bounds each DOCX table cell
	DefaultCellMaxChars = 500
)

// Format is an output artifact format
type Format string

const (
	FormatDOCX Format = "docx"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatDOCX, FormatXLSX, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// Filename is the fixed download name for the format
func (f Format) Filename() string {
	switch f {
	case FormatXLSX:
		return "tables.xlsx"
	case FormatDOCX:
		return "result.docx"
	case FormatPDF:
		return "result.pdf"
	}
	return "result"
}

// ContentType is the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Exporter writes a Document in one format
type Exporter interface {
	Format() Format
	Export(ctx context.Context, doc documents.Document, w io.Writer) error
}

// Artifact is a finished export ready to hand back to the caller
type Artifact struct {
	Format      Format
	Filename    string
	ContentType string
	Data        []byte
}

// NewArtifact wraps exported bytes with the format's download metadata
func NewArtifact(f Format, data []byte) *Artifact {
	return &Artifact{
		Format:      f,
		Filename:    f.Filename(),
		ContentType: f.ContentType(),
		Data:        data,
	}
}

// Registry maps formats to exporters
type Registry struct {
	exporters map[Format]Exporter
}

// NewRegistry creates a registry holding the given exporters
func NewRegistry(exporters ...Exporter) *Registry {
	r := &Registry{exporters: make(map[Format]Exporter)}
	for _, e := range exporters {
		r.exporters[e.Format()] = e
	}
	return r
}

// Get returns the exporter for f
func (r *Registry) Get(f Format) (Exporter, bool) {
	e, ok := r.exporters[f]
	return e, ok
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
