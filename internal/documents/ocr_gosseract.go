//go:build gosseract

package documents

import (
	"context"
	"fmt"
	"image"

	"github.com/otiai10/gosseract/v2"
)

func init() {
	RegisterEngine("gosseract", func(string) OCREngine { return &gosseractOCR{} })
}

// gosseractOCR links libtesseract through cgo. Build with -tags gosseract.
type gosseractOCR struct{}

func (g *gosseractOCR) Recognize(ctx context.Context, img image.Image, opts OCROptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	// a client is not safe for concurrent use, so each call gets its own
	client := gosseract.NewClient()
	defer client.Close()

	langs := opts.Languages
	if len(langs) == 0 {
		langs = DefaultOCRLanguages
	}
	if err := client.SetLanguage(langs...); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}

	psm := opts.PageSegMode
	if psm == 0 {
		psm = PageSegSingleBlock
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(psm)); err != nil {
		return "", fmt.Errorf("set page segmentation mode: %w", err)
	}

	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return text, nil
}
