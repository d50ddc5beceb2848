package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/gmsas95/doclens/internal/documents"
	apperrors "github.com/gmsas95/doclens/internal/errors"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsawler/tabula/docx"
	"github.com/xuri/excelize/v2"
)

func sampleDocument() documents.Document {
	return documents.Assemble([]documents.PageResult{
		documents.TablePage{Tables: []documents.Table{
			{{"Item", "Qty"}, {"Apple", "3"}},
			{{"Name", "City"}, {"Ann", "Oslo"}, {"Bob", "Rome"}},
		}},
		documents.TextPage{Content: "Totals & notes <see attached>"},
		documents.TablePage{Tables: []documents.Table{
			{{"K", "V"}, {"a", "1"}},
		}},
		documents.TextPage{Content: " \n\t "},
	})
}

func textOnlyDocument() documents.Document {
	return documents.Assemble([]documents.PageResult{
		documents.TextPage{Content: "hello"},
		documents.TextPage{Content: ""},
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"docx", FormatDOCX, false},
		{"XLSX", FormatXLSX, false},
		{" pdf ", FormatPDF, false},
		{"csv", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatDownloadNames(t *testing.T) {
	assert.Equal(t, "tables.xlsx", FormatXLSX.Filename())
	assert.Equal(t, "result.docx", FormatDOCX.Filename())
	assert.Equal(t, "result.pdf", FormatPDF.Filename())
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())

	a := NewArtifact(FormatXLSX, []byte("x"))
	assert.Equal(t, "tables.xlsx", a.Filename)
	assert.Contains(t, a.ContentType, "spreadsheetml")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewSpreadsheetExporter(), NewWordExporter(0))

	e, ok := r.Get(FormatXLSX)
	require.True(t, ok)
	assert.Equal(t, FormatXLSX, e.Format())

	_, ok = r.Get(FormatPDF)
	assert.False(t, ok)
}

func TestSpreadsheet_NoTables(t *testing.T) {
	var buf bytes.Buffer
	err := NewSpreadsheetExporter().Export(context.Background(), textOnlyDocument(), &buf)

	assert.ErrorIs(t, err, ErrNoTablesFound)
	assert.Zero(t, buf.Len(), "nothing should be written")
}

func TestSpreadsheet_SheetPerTableWithGlobalNumbering(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewSpreadsheetExporter().Export(context.Background(), sampleDocument(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Sheet1", "Sheet2", "Sheet3"}, f.GetSheetList())

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Item", "Qty"}, {"Apple", "3"}}, rows)

	rows, err = f.GetRows("Sheet2")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, []string{"Bob", "Rome"}, rows[2])

	rows, err = f.GetRows("Sheet3")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"K", "V"}, {"a", "1"}}, rows)
}

func readDocxPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			content, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(content)
		}
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func TestWord_Structure(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWordExporter(0).Export(context.Background(), sampleDocument(), &buf))

	body := readDocxPart(t, buf.Bytes(), "word/document.xml")
	assert.Equal(t, 4, strings.Count(body, `<w:pStyle w:val="Heading2"/>`), "one heading per page")
	assert.Equal(t, 3, strings.Count(body, "<w:tbl>"))
	assert.Equal(t, 3, strings.Count(body, `<w:tblStyle w:val="TableGrid"/>`))
	assert.Equal(t, 3, strings.Count(body, `<w:insideV w:val="single"`), "tables carry explicit borders")
	assert.Contains(t, body, "Totals &amp; notes &lt;see attached&gt;")
	assert.Equal(t, 1, strings.Count(body, Placeholder), "blank page renders the placeholder")

	path := filepath.Join(t.TempDir(), "result.docx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	r, err := docx.Open(path)
	require.NoError(t, err)
	defer r.Close()

	text, err := r.Text()
	require.NoError(t, err)
	assert.Contains(t, text, Title)
	for _, h := range []string{"Page 1", "Page 2", "Page 3", "Page 4"} {
		assert.Contains(t, text, h)
	}
	assert.NotContains(t, text, "Page 5")
	assert.Contains(t, text, "Totals & notes <see attached>")
}

func TestWord_TruncatesCells(t *testing.T) {
	long := strings.Repeat("ж", 750)
	doc := documents.Assemble([]documents.PageResult{
		documents.TablePage{Tables: []documents.Table{{{"head"}, {long}}}},
	})

	var buf bytes.Buffer
	require.NoError(t, NewWordExporter(500).Export(context.Background(), doc, &buf))

	body := readDocxPart(t, buf.Bytes(), "word/document.xml")
	assert.Contains(t, body, strings.Repeat("ж", 500)+"</w:t>")
	assert.NotContains(t, body, strings.Repeat("ж", 501))
}

func TestWord_PadsRaggedRows(t *testing.T) {
	doc := documents.Assemble([]documents.PageResult{
		documents.TablePage{Tables: []documents.Table{{{"a", "b", "c"}, {"d"}}}},
	})

	var buf bytes.Buffer
	require.NoError(t, NewWordExporter(0).Export(context.Background(), doc, &buf))

	body := readDocxPart(t, buf.Bytes(), "word/document.xml")
	assert.Equal(t, 6, strings.Count(body, "<w:tc>"))
	assert.Equal(t, 3, strings.Count(body, "<w:gridCol/>"))
}

func TestWord_MultilineTextAndControlChars(t *testing.T) {
	doc := documents.Assemble([]documents.PageResult{
		documents.TextPage{Content: "line one\nline two\f"},
	})

	var buf bytes.Buffer
	require.NoError(t, NewWordExporter(0).Export(context.Background(), doc, &buf))

	body := readDocxPart(t, buf.Bytes(), "word/document.xml")
	assert.Contains(t, body, "<w:br/>")
	assert.NotContains(t, body, "\f")
	assert.NotContains(t, body, Placeholder)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, 3, utf8.RuneCountInString(truncateRunes("日本語テキスト", 3)))
}

type fakeRenderer struct {
	markup string
	out    []byte
	err    error
	calls  int
}

func (f *fakeRenderer) RenderPDF(_ context.Context, markup string) ([]byte, error) {
	f.calls++
	f.markup = markup
	return f.out, f.err
}

func TestBuildHTML_EscapingPolicy(t *testing.T) {
	doc := documents.Assemble([]documents.PageResult{
		documents.TablePage{Tables: []documents.Table{{{"<b>bold</b>", "x & y"}, {"1", "2"}}}},
		documents.TextPage{Content: "a & b < c > d"},
		documents.TextPage{Content: "   "},
	})

	markup, err := BuildHTML(doc)
	require.NoError(t, err)

	assert.Contains(t, markup, "<td><b>bold</b></td><td>x & y</td>", "cells are inserted verbatim")
	assert.Contains(t, markup, "<pre>a &amp; b &lt; c > d</pre>")
	assert.Contains(t, markup, "<pre>"+Placeholder+"</pre>")
	assert.Contains(t, markup, "border-collapse: collapse")

	dom, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)

	assert.Equal(t, Title, dom.Find("h1").Text())
	headings := dom.Find("h2")
	require.Equal(t, 3, headings.Length())
	headings.Each(func(i int, s *goquery.Selection) {
		assert.Equal(t, "Page "+string(rune('1'+i)), s.Text())
	})
	assert.Equal(t, 1, dom.Find("table").Length())
	assert.Equal(t, 1, dom.Find("td b").Length())
	assert.Equal(t, "a & b < c > d", dom.Find("pre").First().Text())
}

func TestBuildHTML_ImageScenario(t *testing.T) {
	doc := documents.Assemble([]documents.PageResult{documents.TextPage{Content: "R&D <receipt>"}})

	markup, err := BuildHTML(doc)
	require.NoError(t, err)
	assert.Contains(t, markup, "<h2>Page 1</h2><pre>R&amp;D &lt;receipt></pre>")
}

func TestPDFExporter(t *testing.T) {
	r := &fakeRenderer{out: []byte("%PDF-1.7 fake")}

	var buf bytes.Buffer
	require.NoError(t, NewPDFExporter(r).Export(context.Background(), sampleDocument(), &buf))

	assert.Equal(t, "%PDF-1.7 fake", buf.String())
	assert.Equal(t, 1, r.calls)
	assert.Contains(t, r.markup, "<h2>Page 4</h2>")
}

func TestPDFExporter_RendererFailure(t *testing.T) {
	r := &fakeRenderer{err: errors.New("chrome not found")}

	var buf bytes.Buffer
	err := NewPDFExporter(r).Export(context.Background(), textOnlyDocument(), &buf)
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestBreakerRenderer_TripsAfterFailures(t *testing.T) {
	inner := &fakeRenderer{err: errors.New("chrome crashed")}
	br := NewBreakerRenderer(inner, BreakerConfig{MaxFailures: 2}, nil)

	for i := 0; i < 2; i++ {
		_, err := br.RenderPDF(context.Background(), "<p>x</p>")
		assert.ErrorIs(t, err, apperrors.ErrRender)
	}
	assert.Equal(t, gobreaker.StateOpen, br.State())

	_, err := br.RenderPDF(context.Background(), "<p>x</p>")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, inner.calls, "open breaker must not call the renderer")
}

func TestBreakerRenderer_PassesThrough(t *testing.T) {
	inner := &fakeRenderer{out: []byte("%PDF")}
	br := NewBreakerRenderer(inner, BreakerConfig{}, nil)

	out, err := br.RenderPDF(context.Background(), "<p>x</p>")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), out)
	assert.Equal(t, gobreaker.StateClosed, br.State())
}
