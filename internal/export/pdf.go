package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gmsas95/doclens/internal/documents"
)

// Renderer turns HTML markup into PDF bytes
type Renderer interface {
	RenderPDF(ctx context.Context, markup string) ([]byte, error)
}

// PDFExporter builds an HTML report and hands it to a Renderer
type PDFExporter struct {
	renderer Renderer
}

// NewPDFExporter creates the PDF exporter
func NewPDFExporter(renderer Renderer) *PDFExporter {
	return &PDFExporter{renderer: renderer}
}

func (e *PDFExporter) Format() Format { return FormatPDF }

func (e *PDFExporter) Export(ctx context.Context, doc documents.Document, w io.Writer) error {
	markup, err := BuildHTML(doc)
	if err != nil {
		return err
	}

	data, err := e.renderer.RenderPDF(ctx, markup)
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

const reportCSS = `body { font-family: Arial, sans-serif; margin: 40px; }
h1 { color: #333; }
h2 { margin-top: 30px; border-bottom: 1px solid #ccc; padding-bottom: 5px; }
table { border-collapse: collapse; width: 100%; margin: 10px 0; }
th, td { border: 1px solid #999; padding: 6px; text-align: left; }
pre { white-space: pre-wrap; background: #f9f9f9; padding: 10px; border-radius: 4px; }`

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;")

// BuildHTML renders doc as a styled HTML report. Table cells are inserted
// verbatim; recognized text is escaped for & and < only.
func BuildHTML(doc documents.Document) (string, error) {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">\n<style>\n")
	b.WriteString(reportCSS)
	b.WriteString("\n</style>\n</head><body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", Title)

	for i, page := range doc.Pages {
		fmt.Fprintf(&b, "<h2>Page %d</h2>", i+1)

		switch p := page.(type) {
		case documents.TablePage:
			for _, table := range p.Tables {
				b.WriteString("<table>")
				for _, row := range table {
					b.WriteString("<tr>")
					for _, cell := range row {
						b.WriteString("<td>" + cell + "</td>")
					}
					b.WriteString("</tr>")
				}
				b.WriteString("</table>")
			}
		case documents.TextPage:
			text := p.Content
			if isBlank(text) {
				text = Placeholder
			}
			b.WriteString("<pre>" + textEscaper.Replace(text) + "</pre>")
		default:
			return "", fmt.Errorf("unknown page result %T", page)
		}
		b.WriteString("\n")
	}

	b.WriteString("</body></html>")
	return b.String(), nil
}
