package main

import (
	"fmt"
	"os"

	"github.com/gmsas95/doclens/internal/app"
	"github.com/gmsas95/doclens/internal/batch"
	"github.com/gmsas95/doclens/internal/config"
	"github.com/gmsas95/doclens/internal/pipeline"
	"github.com/gmsas95/doclens/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version    = "dev"
	configPath string
	dataDir    string
)

var rootCmd = &cobra.Command{
	Use:   "doclens",
	Short: "Turn scanned documents into Word, Excel or PDF files",
	Long: `DocLens classifies each page of a scanned PDF or image as a table or as
free text, extracts it, and exports the result as .docx, .xlsx or .pdf.

Without a subcommand it starts the web service.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload web service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var processCmd = &cobra.Command{
	Use:   "process [file]",
	Short: "Process one local file and write the result",
	Example: `  doclens process scan.pdf --format xlsx
  doclens process receipt.jpg --format pdf --out ./results`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

var batchCmd = &cobra.Command{
	Use:   "batch [file or dir]...",
	Short: "Process many files concurrently",
	Long: `Process every PDF, JPEG and PNG given (directories are expanded one level)
and write <name>_<result file> for each success into --out.`,
	Example: `  doclens batch ./scans --format xlsx --out ./results --workers 4
  doclens batch a.pdf b.png --report report.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent successful runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("doclens", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "path to data directory")

	processCmd.Flags().StringP("format", "f", "docx", "output format: docx, xlsx or pdf")
	processCmd.Flags().StringP("out", "o", ".", "directory for the output file")

	batchCmd.Flags().StringP("format", "f", "docx", "output format: docx, xlsx or pdf")
	batchCmd.Flags().StringP("out", "o", ".", "directory for the output files")
	batchCmd.Flags().IntP("workers", "w", batch.DefaultConfig().MaxConcurrency, "files processed in parallel")
	batchCmd.Flags().String("report", "", "write a JSON report to this path")

	historyCmd.Flags().IntP("limit", "n", 20, "number of runs to show")

	rootCmd.AddCommand(serveCmd, processCmd, batchCmd, historyCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func initApp() (*app.App, error) {
	cfg, err := config.Load(configPath, dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	logger.Info("Starting DocLens", zap.String("version", version))

	st, err := store.New(cfg)
	if err != nil {
		logger.Error("Failed to initialize store", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	return app.New(cfg, st, logger, version), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.Logger.Sync()

	return a.RunServer()
}

func runProcess(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	outDir, _ := cmd.Flags().GetString("out")

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.Logger.Sync()

	target, outcome, err := a.ProcessFile(cmd.Context(), args[0], format, outDir)
	if err != nil {
		return err
	}

	switch outcome.Kind {
	case pipeline.OutcomeArtifact:
		fmt.Fprintf(cmd.OutOrStdout(), "%d page(s) written to %s\n", outcome.Pages, target)
		return nil
	case pipeline.OutcomeNoTables:
		return fmt.Errorf("no tables found in %s", args[0])
	default:
		return fmt.Errorf("%s", outcome.Message)
	}
}

func runBatch(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	outDir, _ := cmd.Flags().GetString("out")
	workers, _ := cmd.Flags().GetInt("workers")
	report, _ := cmd.Flags().GetString("report")

	paths, err := batch.CollectInputs(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no pdf, jpg or png files found")
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.Logger.Sync()

	if err := a.Init(); err != nil {
		return err
	}

	p := batch.NewProcessor(a.Pipeline, batch.Config{
		MaxConcurrency: workers,
		Format:         format,
		OutputDir:      outDir,
	}, a.Logger.Named("batch"))

	result, err := p.Run(cmd.Context(), paths)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, item := range result.Items {
		if item.Success {
			fmt.Fprintf(out, "ok    %s -> %s\n", item.Input, item.Output)
		} else {
			fmt.Fprintf(out, "%-5s %s: %s\n", item.Outcome, item.Input, item.Error)
		}
	}
	fmt.Fprint(out, result.Summary())

	if report != "" {
		if err := result.WriteReport(report); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", result.Failed, result.Total)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	return a.PrintHistory(cmd.Context(), cmd.OutOrStdout(), limit)
}
