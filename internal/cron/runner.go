// Package cron sweeps request scratch directories left behind by crashes
package cron

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gmsas95/doclens/internal/metrics"
	"github.com/gmsas95/doclens/internal/pipeline"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Config holds janitor settings
type Config struct {
	Schedule string        // cron spec or @every descriptor
	MaxAge   time.Duration // directories older than this are removed
	Dir      string        // parent of the per-request directories
}

// Runner removes stale per-request temp directories on a schedule
type Runner struct {
	config  Config
	metrics *metrics.Metrics
	logger  *zap.Logger
	cron    *cron.Cron
	now     func() time.Time
	running bool
	mu      sync.RWMutex
}

// NewRunner creates a new janitor runner
func NewRunner(config Config, m *metrics.Metrics, logger *zap.Logger) *Runner {
	if config.Schedule == "" {
		config.Schedule = "@every 15m"
	}
	if config.MaxAge <= 0 {
		config.MaxAge = time.Hour
	}
	if config.Dir == "" {
		config.Dir = os.TempDir()
	}
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		config:  config,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Start schedules the sweep
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("janitor already running")
	}

	c := cron.New()
	if _, err := c.AddFunc(r.config.Schedule, r.runSweep); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", r.config.Schedule, err)
	}
	c.Start()

	r.cron = c
	r.running = true
	r.logger.Info("Janitor started",
		zap.String("schedule", r.config.Schedule),
		zap.Duration("max_age", r.config.MaxAge),
	)
	return nil
}

// Stop stops the schedule and waits for a running sweep to finish
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	c := r.cron
	r.mu.Unlock()

	<-c.Stop().Done()
	r.logger.Info("Janitor stopped")
}

// IsRunning returns whether the runner is active
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

func (r *Runner) runSweep() {
	removed, err := r.Sweep()
	if err != nil {
		r.logger.Warn("Janitor sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		r.logger.Info("Removed stale temp directories", zap.Int("count", removed))
	}
}

// Sweep removes request directories older than MaxAge and returns how many
// were removed. Individual removal failures are skipped.
func (r *Runner) Sweep() (int, error) {
	entries, err := os.ReadDir(r.config.Dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", r.config.Dir, err)
	}

	cutoff := r.now().Add(-r.config.MaxAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), pipeline.TempDirPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(r.config.Dir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			r.logger.Debug("Failed to remove stale dir", zap.String("dir", path), zap.Error(err))
			continue
		}
		removed++
	}

	r.metrics.RecordSwept(removed)
	return removed, nil
}
