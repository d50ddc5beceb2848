package documents

import (
	"context"
	"image"

	apperrors "github.com/gmsas95/doclens/internal/errors"
	"go.uber.org/zap"
)

// Classifier decides per page between table extraction and text recognition
type Classifier struct {
	detector TableDetector
	ocr      OCREngine
	opts     OCROptions
	logger   *zap.Logger
}

// NewClassifier creates a page classifier
func NewClassifier(detector TableDetector, ocr OCREngine, opts OCROptions, logger *zap.Logger) *Classifier {
	if len(opts.Languages) == 0 {
		opts.Languages = DefaultOCRLanguages
	}
	if opts.PageSegMode == 0 {
		opts.PageSegMode = PageSegSingleBlock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		detector: detector,
		ocr:      ocr,
		opts:     opts,
		logger:   logger,
	}
}

// Classify returns the content of page (1-based). PDFs try lattice, then stream
// detection before falling back to OCR; images always go through OCR.
func (c *Classifier) Classify(ctx context.Context, path string, isPDF bool, page int, img image.Image) (PageResult, error) {
	if isPDF {
		for _, flavor := range []Flavor{FlavorLattice, FlavorStream} {
			found, err := c.detector.Detect(ctx, path, page, flavor)
			if err != nil {
				return nil, apperrors.ErrTableDetect.WithCause(err)
			}
			if kept := FilterTables(found); len(kept) > 0 {
				c.logger.Debug("tables detected",
					zap.Int("page", page),
					zap.String("flavor", string(flavor)),
					zap.Int("tables", len(kept)),
				)
				return TablePage{Tables: kept}, nil
			}
		}
	}

	text, err := c.Recognize(ctx, img)
	if err != nil {
		return nil, err
	}
	return TextPage{Content: text}, nil
}

// Recognize binarizes img and runs the OCR engine on it
func (c *Classifier) Recognize(ctx context.Context, img image.Image) (string, error) {
	prepared := PrepareForOCR(img)
	text, err := c.ocr.Recognize(ctx, prepared, c.opts)
	if err != nil {
		return "", apperrors.ErrOCR.WithCause(err)
	}
	return text, nil
}
