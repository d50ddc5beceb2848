package documents

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// DefaultOCRLanguages are passed to the engine on every call
var DefaultOCRLanguages = []string{"eng", "rus", "chi_sim"}

// PageSegSingleBlock assumes a single uniform block of text
const PageSegSingleBlock = 6

// EngineFactory builds an OCR engine; binaryPath is ignored by in-process engines
type EngineFactory func(binaryPath string) OCREngine

var (
	enginesMu sync.RWMutex
	engines   = map[string]EngineFactory{
		"tesseract": func(binaryPath string) OCREngine { return NewTesseractOCR(binaryPath) },
	}
)

// RegisterEngine makes an OCR engine available to NewOCREngine
func RegisterEngine(name string, factory EngineFactory) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[name] = factory
}

// NewOCREngine returns the engine registered under name
func NewOCREngine(name, binaryPath string) (OCREngine, error) {
	enginesMu.RLock()
	factory, ok := engines[name]
	enginesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("ocr engine %q is not available in this build", name)
	}
	return factory(binaryPath), nil
}

// tesseractOCR runs the tesseract binary, streaming the image through stdin
type tesseractOCR struct {
	binaryPath string
}

// NewTesseractOCR creates a tesseract CLI engine
func NewTesseractOCR(binaryPath string) OCREngine {
	if binaryPath == "" {
		binaryPath = "tesseract"
	}
	return &tesseractOCR{binaryPath: binaryPath}
}

// IsAvailable checks if tesseract is installed
func (t *tesseractOCR) IsAvailable() bool {
	_, err := exec.LookPath(t.binaryPath)
	return err == nil
}

func (t *tesseractOCR) Recognize(ctx context.Context, img image.Image, opts OCROptions) (string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, t.binaryPath, tesseractArgs(opts)...)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w (output: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func tesseractArgs(opts OCROptions) []string {
	langs := opts.Languages
	if len(langs) == 0 {
		langs = DefaultOCRLanguages
	}
	psm := opts.PageSegMode
	if psm == 0 {
		psm = PageSegSingleBlock
	}
	return []string{
		"stdin", "stdout",
		"-l", strings.Join(langs, "+"),
		"--psm", strconv.Itoa(psm),
	}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page image: %w", err)
	}
	return buf.Bytes(), nil
}
