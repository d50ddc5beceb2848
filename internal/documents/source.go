package documents

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	apperrors "github.com/gmsas95/doclens/internal/errors"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

const (
	// DefaultMaxPages caps how many PDF pages are materialized
	DefaultMaxPages = 10
	// DefaultDPI is the rasterization resolution
	DefaultDPI = 150
)

// Source turns an input file into an ordered list of page images
type Source struct {
	counter    PageCounter
	rasterizer Rasterizer
	dpi        int
	logger     *zap.Logger
}

// NewSource creates a page source
func NewSource(counter PageCounter, rasterizer Rasterizer, dpi int, logger *zap.Logger) *Source {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		counter:    counter,
		rasterizer: rasterizer,
		dpi:        dpi,
		logger:     logger,
	}
}

// Pages loads the page images of path. Images yield exactly one page; PDFs yield
// at most maxPages pages, the rest are never rendered.
func (s *Source) Pages(ctx context.Context, path string, isPDF bool, maxPages int) ([]image.Image, error) {
	if !isPDF {
		img, err := loadImage(path)
		if err != nil {
			return nil, apperrors.ErrDecodeImage.WithCause(err)
		}
		return []image.Image{img}, nil
	}

	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	total, err := s.counter.PageCount(ctx, path)
	if err != nil {
		return nil, apperrors.ErrPageCount.WithCause(err)
	}
	if total <= 0 {
		return nil, apperrors.ErrPageCount.WithCause(fmt.Errorf("pdf has no pages"))
	}

	n := min(total, maxPages)
	if n < total {
		s.logger.Debug("page cap applied", zap.Int("total", total), zap.Int("processed", n))
	}

	pages, err := s.rasterizer.Rasterize(ctx, path, 1, n, s.dpi)
	if err != nil {
		return nil, apperrors.ErrRasterize.WithCause(err)
	}
	return pages, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return toRGB(img), nil
}

// toRGB flattens img onto an opaque white canvas so every pixel has full alpha.
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
