package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gmsas95/doclens/internal/api"
	"github.com/gmsas95/doclens/internal/config"
	"github.com/gmsas95/doclens/internal/cron"
	"github.com/gmsas95/doclens/internal/metrics"
	"github.com/gmsas95/doclens/internal/pipeline"
	"github.com/gmsas95/doclens/internal/store"
	"go.uber.org/zap"
)

// App owns the long-lived handles shared by every request
type App struct {
	Config     *config.Config
	Store      *store.Store
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Pipeline   *pipeline.Pipeline
	CronRunner *cron.Runner
	Version    string
}

func New(cfg *config.Config, st *store.Store, logger *zap.Logger, version string) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		Config:  cfg,
		Store:   st,
		Logger:  logger,
		Metrics: metrics.Default(),
		Version: version,
	}
}

// Init builds the pipeline; it must run before RunServer or ProcessFile
func (app *App) Init() error {
	if app.Pipeline != nil {
		return nil
	}
	p, err := NewPipeline(app.Config, app.Store, app.Metrics, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	app.Pipeline = p
	return nil
}

// RunServer serves HTTP until SIGINT or SIGTERM
func (app *App) RunServer() error {
	if err := app.Init(); err != nil {
		return err
	}

	if app.Config.Janitor.Enabled {
		app.CronRunner = cron.NewRunner(cron.Config{
			Schedule: app.Config.Janitor.Schedule,
			MaxAge:   app.Config.Janitor.MaxAge,
			Dir:      app.Config.Pipeline.TempDir,
		}, app.Metrics, app.Logger.Named("janitor"))
		if err := app.CronRunner.Start(); err != nil {
			app.Logger.Error("Failed to start janitor", zap.Error(err))
			app.CronRunner = nil
		}
	}

	api.Version = app.Version
	server := api.New(app.Config, app.Pipeline, app.Store, app.Metrics, app.Logger.Named("api"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	app.Logger.Info("Server started",
		zap.String("address", app.Config.Server.Address),
		zap.Int("port", app.Config.Server.Port),
		zap.String("url", fmt.Sprintf("http://localhost:%d", app.Config.Server.Port)),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case <-quit:
	case serveErr = <-errCh:
		app.Logger.Error("Server error", zap.Error(serveErr))
	}

	app.Logger.Info("Shutting down...")

	if app.CronRunner != nil {
		app.CronRunner.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		app.Logger.Error("Server shutdown error", zap.Error(err))
	}

	return serveErr
}

// ProcessFile runs one local file through the pipeline and writes the
// artifact into outDir under its download name.
func (app *App) ProcessFile(ctx context.Context, path, format, outDir string) (string, pipeline.Outcome, error) {
	if err := app.Init(); err != nil {
		return "", pipeline.Outcome{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", pipeline.Outcome{}, err
	}
	defer f.Close()

	outcome := app.Pipeline.Process(ctx, pipeline.Request{
		Filename: filepath.Base(path),
		Body:     f,
		Format:   format,
	})
	if outcome.Kind != pipeline.OutcomeArtifact {
		return "", outcome, nil
	}

	if outDir == "" {
		outDir = "."
	}
	target := filepath.Join(outDir, outcome.Artifact.Filename)
	if err := os.WriteFile(target, outcome.Artifact.Data, 0644); err != nil {
		return "", outcome, fmt.Errorf("failed to write %s: %w", target, err)
	}
	return target, outcome, nil
}

// PrintHistory writes the most recent runs as an aligned table
func (app *App) PrintHistory(ctx context.Context, w io.Writer, limit int) error {
	runs, err := app.Store.Recent(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME (UTC)\tFORMAT\tRESULT\tFILENAME")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			r.ID, r.TS.UTC().Format(time.RFC3339), r.Format, r.Result, r.Filename)
	}
	return tw.Flush()
}

// Close releases the store
func (app *App) Close() error {
	if app.Store == nil {
		return nil
	}
	return app.Store.Close()
}
