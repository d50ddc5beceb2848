package app

import (
	"fmt"

	"github.com/gmsas95/doclens/internal/config"
	"github.com/gmsas95/doclens/internal/documents"
	"github.com/gmsas95/doclens/internal/export"
	"github.com/gmsas95/doclens/internal/metrics"
	"github.com/gmsas95/doclens/internal/pipeline"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger from the log section
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zcfg.Build()
}

// NewExporters registers the three output formats
func NewExporters(cfg *config.Config, logger *zap.Logger) *export.Registry {
	chrome := export.NewChromeRenderer(export.ChromeConfig{
		ExecutablePath: cfg.Renderer.ChromePath,
		Timeout:        cfg.Renderer.Timeout,
	})
	renderer := export.NewBreakerRenderer(chrome, export.BreakerConfig{
		MaxFailures: cfg.Renderer.BreakerMaxFailures,
		OpenTimeout: cfg.Renderer.BreakerOpenTimeout,
	}, logger.Named("renderer"))

	return export.NewRegistry(
		export.NewSpreadsheetExporter(),
		export.NewWordExporter(cfg.Pipeline.CellMaxChars),
		export.NewPDFExporter(renderer),
	)
}

// NewPipeline wires the page source, classifier and exporters
func NewPipeline(cfg *config.Config, audit pipeline.AuditLog, m *metrics.Metrics, logger *zap.Logger) (*pipeline.Pipeline, error) {
	ocr, err := documents.NewOCREngine(cfg.Tools.OCREngine, cfg.Tools.Tesseract)
	if err != nil {
		return nil, err
	}
	if probe, ok := ocr.(interface{ IsAvailable() bool }); ok && !probe.IsAvailable() {
		logger.Warn("OCR binary not found, text pages will fail",
			zap.String("engine", cfg.Tools.OCREngine),
			zap.String("path", cfg.Tools.Tesseract),
		)
	}

	source := documents.NewSource(
		documents.NewPageCounter(cfg.Tools.Pdfinfo, logger.Named("pages")),
		documents.NewRasterizer(cfg.Tools.Pdftoppm),
		cfg.Pipeline.DPI,
		logger.Named("source"),
	)

	classifier := documents.NewClassifier(
		documents.NewTableDetector(),
		ocr,
		documents.OCROptions{
			Languages:   cfg.Pipeline.OCRLanguages,
			PageSegMode: cfg.Pipeline.PageSegMode,
		},
		logger.Named("classifier"),
	)

	return pipeline.New(source, classifier, NewExporters(cfg, logger), audit, m, pipeline.Options{
		MaxPages:     cfg.Pipeline.MaxPages,
		TempDir:      cfg.Pipeline.TempDir,
		MessageLimit: cfg.Pipeline.ErrorMessageLimit,
	}, logger.Named("pipeline")), nil
}
