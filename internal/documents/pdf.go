package documents

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dslipak/pdf"
	"go.uber.org/zap"
)

// pdfPageCounter reads the page tree with dslipak/pdf and falls back to pdfinfo
// for files the parser rejects.
type pdfPageCounter struct {
	pdfinfo string
	logger  *zap.Logger
}

// NewPageCounter creates a PageCounter. pdfinfo is the path of the poppler binary.
func NewPageCounter(pdfinfo string, logger *zap.Logger) PageCounter {
	if pdfinfo == "" {
		pdfinfo = "pdfinfo"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &pdfPageCounter{pdfinfo: pdfinfo, logger: logger}
}

func (p *pdfPageCounter) PageCount(ctx context.Context, path string) (int, error) {
	n, err := countWithParser(path)
	if err == nil {
		return n, nil
	}

	p.logger.Debug("pdf parser failed, trying pdfinfo", zap.String("path", path), zap.Error(err))
	if _, lookErr := exec.LookPath(p.pdfinfo); lookErr != nil {
		return 0, fmt.Errorf("read page count: %w", err)
	}
	return p.countWithPdfinfo(ctx, path)
}

func countWithParser(path string) (n int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	// the parser panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

func (p *pdfPageCounter) countWithPdfinfo(ctx context.Context, path string) (int, error) {
	cmd := exec.CommandContext(ctx, p.pdfinfo, path)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo failed: %w", err)
	}
	return parsePdfinfoPages(string(output))
}

func parsePdfinfoPages(output string) (int, error) {
	for _, line := range strings.Split(output, "\n") {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) != "Pages" {
			continue
		}
		pages, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, fmt.Errorf("invalid page count %q", parts[1])
		}
		return pages, nil
	}
	return 0, fmt.Errorf("pdfinfo output has no page count")
}

// pdftoppmRasterizer renders pages with poppler's pdftoppm
type pdftoppmRasterizer struct {
	binaryPath string
}

// NewRasterizer creates a Rasterizer backed by pdftoppm
func NewRasterizer(binaryPath string) Rasterizer {
	if binaryPath == "" {
		binaryPath = "pdftoppm"
	}
	return &pdftoppmRasterizer{binaryPath: binaryPath}
}

func (r *pdftoppmRasterizer) Rasterize(ctx context.Context, path string, first, last, dpi int) ([]image.Image, error) {
	if first < 1 || last < first {
		return nil, fmt.Errorf("invalid page range %d-%d", first, last)
	}
	if _, err := exec.LookPath(r.binaryPath); err != nil {
		return nil, fmt.Errorf("pdftoppm not found (install poppler-utils)")
	}

	outDir, err := os.MkdirTemp(filepath.Dir(path), "pages-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(outDir)

	outputPrefix := filepath.Join(outDir, "page")
	args := []string{
		"-png",
		"-r", strconv.Itoa(dpi),
		"-f", strconv.Itoa(first),
		"-l", strconv.Itoa(last),
		path,
		outputPrefix,
	}

	cmd := exec.CommandContext(ctx, r.binaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, strings.TrimSpace(stderr.String()))
	}

	// pdftoppm zero-pads page numbers, so lexical order is page order
	files, err := filepath.Glob(outputPrefix + "*.png")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	images := make([]image.Image, 0, len(files))
	for _, file := range files {
		img, err := decodePNG(file)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(file), err)
		}
		images = append(images, img)
	}

	if want := last - first + 1; len(images) != want {
		return nil, fmt.Errorf("pdftoppm produced %d pages, expected %d", len(images), want)
	}
	return images, nil
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}
