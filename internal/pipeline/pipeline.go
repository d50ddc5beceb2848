package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gmsas95/doclens/internal/documents"
	apperrors "github.com/gmsas95/doclens/internal/errors"
	"github.com/gmsas95/doclens/internal/export"
	"github.com/gmsas95/doclens/internal/metrics"
	"github.com/gmsas95/doclens/internal/security"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TempDirPrefix names every per-request scratch directory
const TempDirPrefix = "doclens-"

// DefaultMessageLimit bounds the fault text returned to callers
const DefaultMessageLimit = 200

// PageSource yields the page images of an input file
type PageSource interface {
	Pages(ctx context.Context, path string, isPDF bool, maxPages int) ([]image.Image, error)
}

// PageClassifier turns one page into table or text content
type PageClassifier interface {
	Classify(ctx context.Context, path string, isPDF bool, page int, img image.Image) (documents.PageResult, error)
}

// AuditLog records successful runs
type AuditLog interface {
	Record(ctx context.Context, filename string, hasTables bool, format string) error
}

// OutcomeKind distinguishes the three ways a run can end
type OutcomeKind int

const (
	OutcomeArtifact OutcomeKind = iota
	OutcomeNoTables
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeArtifact:
		return metrics.OutcomeSuccess
	case OutcomeNoTables:
		return metrics.OutcomeNoTables
	default:
		return metrics.OutcomeFailed
	}
}

// Request is one uploaded document plus the requested output format
type Request struct {
	Filename string
	Body     io.Reader
	Format   string
}

// Outcome is the result of Process. Artifact is set only for OutcomeArtifact,
// Message only for OutcomeFailed.
type Outcome struct {
	Kind     OutcomeKind
	Artifact *export.Artifact
	Message  string
	Pages    int
}

// Options tunes the pipeline
type Options struct {
	MaxPages     int
	TempDir      string
	MessageLimit int
}

// Pipeline runs one document through extraction and export
type Pipeline struct {
	source     PageSource
	classifier PageClassifier
	exporters  *export.Registry
	audit      AuditLog
	metrics    *metrics.Metrics
	opts       Options
	logger     *zap.Logger
}

// New creates a Pipeline
func New(source PageSource, classifier PageClassifier, exporters *export.Registry, audit AuditLog, m *metrics.Metrics, opts Options, logger *zap.Logger) *Pipeline {
	if opts.MaxPages <= 0 {
		opts.MaxPages = documents.DefaultMaxPages
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.MessageLimit <= 0 {
		opts.MessageLimit = DefaultMessageLimit
	}
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		source:     source,
		classifier: classifier,
		exporters:  exporters,
		audit:      audit,
		metrics:    m,
		opts:       opts,
		logger:     logger,
	}
}

var supportedExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Process never returns an error: every fault becomes an OutcomeFailed with a
// bounded message, and the request's temporary files are removed on return.
func (p *Pipeline) Process(ctx context.Context, req Request) Outcome {
	start := time.Now()
	p.metrics.IncInFlight()
	defer p.metrics.DecInFlight()

	var outcome Outcome
	name, err := security.SanitizeFilename(req.Filename)
	if err != nil {
		err = apperrors.ErrUnsupportedFile.WithCause(err)
	} else {
		req.Filename = name
		outcome, err = p.run(ctx, req)
	}
	if err != nil {
		p.logger.Error("processing failed",
			zap.String("filename", req.Filename),
			zap.String("format", req.Format),
			zap.Error(err),
		)
		outcome = Outcome{
			Kind:    OutcomeFailed,
			Message: truncate(err.Error(), p.opts.MessageLimit),
			Pages:   outcome.Pages,
		}
	}

	elapsed := time.Since(start)
	p.metrics.RecordRun(req.Format, outcome.Kind.String(), elapsed)
	p.logger.Info("processed document",
		zap.String("filename", req.Filename),
		zap.String("format", req.Format),
		zap.Int("pages", outcome.Pages),
		zap.Stringer("outcome", outcome.Kind),
		zap.Duration("latency", elapsed),
	)
	return outcome
}

func (p *Pipeline) run(ctx context.Context, req Request) (Outcome, error) {
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return Outcome{}, apperrors.ErrUnsupportedFormat.WithCause(err)
	}
	exporter, ok := p.exporters.Get(format)
	if !ok {
		return Outcome{}, apperrors.ErrUnsupportedFormat.WithCause(fmt.Errorf("no exporter for %s", format))
	}

	ext := strings.ToLower(filepath.Ext(req.Filename))
	if !supportedExtensions[ext] {
		return Outcome{}, apperrors.ErrUnsupportedFile.WithCause(fmt.Errorf("extension %q", ext))
	}
	isPDF := ext == ".pdf"

	dir := filepath.Join(p.opts.TempDir, TempDirPrefix+uuid.NewString())
	if err := os.Mkdir(dir, 0700); err != nil {
		return Outcome{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer p.cleanup(dir)

	inputPath := filepath.Join(dir, "input"+ext)
	if err := materialize(inputPath, req.Body, isPDF); err != nil {
		return Outcome{}, err
	}

	doc, err := p.extract(ctx, inputPath, isPDF)
	if err != nil {
		return Outcome{}, err
	}
	pages := len(doc.Pages)

	outputPath := filepath.Join(dir, format.Filename())
	err = writeArtifact(ctx, exporter, doc, outputPath)
	if errors.Is(err, export.ErrNoTablesFound) {
		return Outcome{Kind: OutcomeNoTables, Pages: pages}, nil
	}
	if err != nil {
		return Outcome{Pages: pages}, err
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return Outcome{Pages: pages}, apperrors.ErrExport.WithCause(err)
	}

	if err := p.audit.Record(ctx, req.Filename, doc.HasTables(), string(format)); err != nil {
		return Outcome{Pages: pages}, err
	}

	return Outcome{
		Kind:     OutcomeArtifact,
		Artifact: export.NewArtifact(format, data),
		Pages:    pages,
	}, nil
}

// extract classifies pages strictly in order
func (p *Pipeline) extract(ctx context.Context, path string, isPDF bool) (documents.Document, error) {
	t := time.Now()
	images, err := p.source.Pages(ctx, path, isPDF, p.opts.MaxPages)
	if err != nil {
		return documents.Document{}, err
	}
	p.metrics.ObserveStage("pages", time.Since(t))

	results := make([]documents.PageResult, 0, len(images))
	for i, img := range images {
		t = time.Now()
		result, err := p.classifier.Classify(ctx, path, isPDF, i+1, img)
		if err != nil {
			return documents.Document{}, err
		}
		p.metrics.ObserveStage("classify", time.Since(t))
		p.metrics.RecordPage(pageKind(result))
		results = append(results, result)
	}

	return documents.Assemble(results), nil
}

func pageKind(r documents.PageResult) string {
	if _, ok := r.(documents.TablePage); ok {
		return "table"
	}
	return "text"
}

func (p *Pipeline) cleanup(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		p.logger.Debug("temp cleanup failed", zap.String("dir", dir), zap.Error(err))
	}
}

// materialize copies body to path and checks the bytes agree with the extension
func materialize(path string, body io.Reader, isPDF bool) error {
	if body == nil {
		return apperrors.ErrUnsupportedFile.WithCause(errors.New("empty upload"))
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return apperrors.ErrUnsupportedFile.WithCause(errors.New("empty upload"))
	}
	if err := checkContent(head, isPDF); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create input file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), body)); err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}
	return f.Close()
}

func checkContent(head []byte, isPDF bool) error {
	kind := http.DetectContentType(head)
	switch {
	case isPDF && kind == "application/pdf":
		return nil
	case !isPDF && (kind == "image/png" || kind == "image/jpeg"):
		return nil
	}
	return apperrors.ErrContentMismatch.WithCause(fmt.Errorf("content looks like %s", kind))
}

func writeArtifact(ctx context.Context, exporter export.Exporter, doc documents.Document, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.ErrExport.WithCause(err)
	}
	if err := exporter.Export(ctx, doc, f); err != nil {
		f.Close()
		if errors.Is(err, export.ErrNoTablesFound) {
			return err
		}
		return apperrors.ErrExport.WithCause(err)
	}
	if err := f.Close(); err != nil {
		return apperrors.ErrExport.WithCause(err)
	}
	return nil
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
