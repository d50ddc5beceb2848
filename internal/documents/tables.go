package documents

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/graphicsstate"
	"github.com/tsawler/tabula/model"
	"github.com/tsawler/tabula/pages"
	"github.com/tsawler/tabula/reader"
	"github.com/tsawler/tabula/tables"
)

// tabulaDetector runs tabula's geometric detector over a page's text layer.
// Lattice feeds it the page's ruling lines and keeps only gridded tables;
// stream feeds it text positions alone.
type tabulaDetector struct {
	config tables.Config
}

// NewTableDetector creates a TableDetector backed by tabula
func NewTableDetector() TableDetector {
	cfg := tables.DefaultConfig()
	cfg.MinRows = 1
	return &tabulaDetector{config: cfg}
}

func (d *tabulaDetector) Detect(ctx context.Context, path string, page int, flavor Flavor) ([]Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer r.Close()

	p, err := r.GetPage(page - 1)
	if err != nil {
		return nil, fmt.Errorf("get page %d: %w", page, err)
	}

	fragments, err := r.ExtractTextFragments(p)
	if err != nil {
		return nil, fmt.Errorf("extract text on page %d: %w", page, err)
	}
	if len(fragments) == 0 {
		// scanned page without a text layer
		return nil, nil
	}

	width, err := p.Width()
	if err != nil {
		return nil, err
	}
	height, err := p.Height()
	if err != nil {
		return nil, err
	}

	mp := model.NewPage(width, height)
	mp.Number = page
	for _, f := range fragments {
		mp.RawText = append(mp.RawText, model.TextFragment{
			Text:     f.Text,
			BBox:     model.BBox{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height},
			FontSize: f.FontSize,
			FontName: f.FontName,
		})
	}

	cfg := d.config
	switch flavor {
	case FlavorLattice:
		lines, err := rulingLines(p)
		if err != nil {
			return nil, fmt.Errorf("extract ruling lines on page %d: %w", page, err)
		}
		if len(lines) == 0 {
			return nil, nil
		}
		mp.RawLines = lines
		cfg.UseLines, cfg.UseWhitespace = true, false
	case FlavorStream:
		cfg.UseLines, cfg.UseWhitespace = false, true
	default:
		return nil, fmt.Errorf("unknown table flavor %q", flavor)
	}

	detector := tables.NewGeometricDetector()
	if err := detector.Configure(cfg); err != nil {
		return nil, err
	}

	found, err := detector.Detect(mp)
	if err != nil {
		return nil, err
	}

	result := make([]Table, 0, len(found))
	for _, t := range found {
		if flavor == FlavorLattice && !t.HasGrid {
			continue
		}
		result = append(result, convertTable(t))
	}
	return result, nil
}

func rulingLines(p *pages.Page) ([]model.Line, error) {
	contents, err := p.Contents()
	if err != nil {
		return nil, err
	}

	var data bytes.Buffer
	for _, obj := range contents {
		stream, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		decoded, err := stream.Decode()
		if err != nil {
			return nil, err
		}
		data.Write(decoded)
		data.WriteByte('\n')
	}
	if data.Len() == 0 {
		return nil, nil
	}

	ge := graphicsstate.NewGraphicsExtractor()
	if err := ge.ExtractFromBytes(data.Bytes()); err != nil {
		return nil, err
	}
	return append(ge.ToModelLines(), ge.ToModelRectangles()...), nil
}

func convertTable(t *model.Table) Table {
	out := make(Table, 0, len(t.Rows))
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = strings.TrimSpace(cell.Text)
		}
		out = append(out, cells)
	}
	return out
}

// FilterTables keeps tables with more than one row; single-row hits are noise
func FilterTables(found []Table) []Table {
	kept := make([]Table, 0, len(found))
	for _, t := range found {
		if t.RowCount() > 1 {
			kept = append(kept, t)
		}
	}
	return kept
}
