package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gmsas95/doclens/internal/pipeline"
	"go.uber.org/zap"
)

// Runner is the part of the pipeline a batch needs
type Runner interface {
	Process(ctx context.Context, req pipeline.Request) pipeline.Outcome
}

type Processor struct {
	runner Runner
	config Config
	logger *zap.Logger
}

type Config struct {
	MaxConcurrency int
	Format         string
	OutputDir      string
}

type OutputItem struct {
	Input        string        `json:"input"`
	Output       string        `json:"output,omitempty"`
	Outcome      string        `json:"outcome"`
	Pages        int           `json:"pages"`
	Error        string        `json:"error,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	Success      bool          `json:"success"`

	index int
}

type Result struct {
	Total     int           `json:"total"`
	Success   int           `json:"success"`
	NoTables  int           `json:"no_tables"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Items     []OutputItem  `json:"items"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 3,
		Format:         "docx",
		OutputDir:      ".",
	}
}

func NewProcessor(runner Runner, cfg Config, logger *zap.Logger) *Processor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		runner: runner,
		config: cfg,
		logger: logger,
	}
}

var inputExtensions = map[string]bool{".pdf": true, ".jpg": true, ".jpeg": true, ".png": true}

// CollectInputs expands directories (non-recursively) into the supported
// files they contain; explicit file arguments are passed through as given.
func CollectInputs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Type()&fs.ModeType != 0 {
				continue
			}
			if inputExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
				paths = append(paths, filepath.Join(arg, e.Name()))
			}
		}
	}
	return paths, nil
}

// Run processes every path with up to MaxConcurrency files in flight. Each
// file is an independent pipeline run; items come back in input order.
func (p *Processor) Run(ctx context.Context, paths []string) (*Result, error) {
	if err := os.MkdirAll(p.config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	result := &Result{
		Total:     len(paths),
		StartTime: time.Now(),
		Items:     make([]OutputItem, 0, len(paths)),
	}

	type job struct {
		index int
		path  string
	}
	jobs := make(chan job, len(paths))
	results := make(chan OutputItem, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < p.config.MaxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				item := p.processItem(ctx, j.path)
				item.index = j.index
				results <- item
			}
		}()
	}

	for i, path := range paths {
		jobs <- job{index: i, path: path}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	for item := range results {
		result.Items = append(result.Items, item)
		switch {
		case item.Success:
			result.Success++
		case item.Outcome == pipeline.OutcomeNoTables.String():
			result.NoTables++
		default:
			result.Failed++
		}
	}
	sort.Slice(result.Items, func(a, b int) bool {
		return result.Items[a].index < result.Items[b].index
	})

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	p.logger.Info("Batch finished",
		zap.Int("total", result.Total),
		zap.Int("success", result.Success),
		zap.Int("no_tables", result.NoTables),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (p *Processor) processItem(ctx context.Context, path string) (output OutputItem) {
	output.Input = path
	start := time.Now()
	defer func() { output.ResponseTime = time.Since(start) }()

	f, err := os.Open(path)
	if err != nil {
		output.Outcome = pipeline.OutcomeFailed.String()
		output.Error = err.Error()
		return output
	}
	defer f.Close()

	outcome := p.runner.Process(ctx, pipeline.Request{
		Filename: filepath.Base(path),
		Body:     f,
		Format:   p.config.Format,
	})
	output.Outcome = outcome.Kind.String()
	output.Pages = outcome.Pages

	switch outcome.Kind {
	case pipeline.OutcomeArtifact:
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		target := filepath.Join(p.config.OutputDir, stem+"_"+outcome.Artifact.Filename)
		if err := os.WriteFile(target, outcome.Artifact.Data, 0644); err != nil {
			output.Outcome = pipeline.OutcomeFailed.String()
			output.Error = err.Error()
			return output
		}
		output.Output = target
		output.Success = true
	case pipeline.OutcomeNoTables:
		output.Error = "no tables found"
	default:
		output.Error = outcome.Message
	}
	return output
}

// WriteReport saves the result as indented JSON
func (r *Result) WriteReport(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (r *Result) Summary() string {
	var sb strings.Builder
	sb.WriteString("=== Batch Processing Summary ===\n")
	sb.WriteString(fmt.Sprintf("Total:     %d\n", r.Total))
	sb.WriteString(fmt.Sprintf("Success:   %d\n", r.Success))
	sb.WriteString(fmt.Sprintf("No tables: %d\n", r.NoTables))
	sb.WriteString(fmt.Sprintf("Failed:    %d\n", r.Failed))
	sb.WriteString(fmt.Sprintf("Duration:  %v\n", r.Duration))
	return sb.String()
}
