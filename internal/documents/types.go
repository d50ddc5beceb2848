// Package documents turns an uploaded PDF or image into a classified Document
package documents

import (
	"context"
	"image"
)

// Table is an ordered list of rows, each an ordered list of cell strings.
// Detected tables always carry at least two rows.
type Table [][]string

// RowCount returns the number of rows
func (t Table) RowCount() int {
	return len(t)
}

// PageResult is the classified content of one page: a TextPage or a TablePage.
type PageResult interface {
	pageResult()
}

// TextPage holds recognized free text. Content may be empty.
type TextPage struct {
	Content string `json:"content"`
}

// TablePage holds one or more detected tables in detection order.
type TablePage struct {
	Tables []Table `json:"tables"`
}

func (TextPage) pageResult()  {}
func (TablePage) pageResult() {}

// Document is the ordered set of page results for one upload
type Document struct {
	Pages []PageResult
}

// HasTables reports whether any page is a TablePage
func (d Document) HasTables() bool {
	for _, p := range d.Pages {
		if _, ok := p.(TablePage); ok {
			return true
		}
	}
	return false
}

// TableCount returns the number of tables across all pages
func (d Document) TableCount() int {
	n := 0
	for _, p := range d.Pages {
		if tp, ok := p.(TablePage); ok {
			n += len(tp.Tables)
		}
	}
	return n
}

// Flavor selects the table detection strategy
type Flavor string

const (
	// FlavorLattice relies on visible ruling lines
	FlavorLattice Flavor = "lattice"
	// FlavorStream relies on whitespace and column alignment
	FlavorStream Flavor = "stream"
)

// OCROptions configures one recognition call
type OCROptions struct {
	Languages   []string
	PageSegMode int
}

// PageCounter reports the number of pages in a PDF
type PageCounter interface {
	PageCount(ctx context.Context, path string) (int, error)
}

// Rasterizer renders a page range of a PDF (1-based, inclusive) to images
type Rasterizer interface {
	Rasterize(ctx context.Context, path string, first, last, dpi int) ([]image.Image, error)
}

// TableDetector finds tables on a single PDF page (1-based)
type TableDetector interface {
	Detect(ctx context.Context, path string, page int, flavor Flavor) ([]Table, error)
}

// OCREngine recognizes text in an image
type OCREngine interface {
	Recognize(ctx context.Context, img image.Image, opts OCROptions) (string, error)
}
