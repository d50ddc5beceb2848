package cron

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gmsas95/doclens/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdirAged(t *testing.T, parent, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "input.pdf"), []byte("%PDF"), 0600))
	stamp := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(dir, stamp, stamp))
	return dir
}

func TestSweep(t *testing.T) {
	parent := t.TempDir()
	stale := mkdirAged(t, parent, pipeline.TempDirPrefix+"old", 2*time.Hour)
	fresh := mkdirAged(t, parent, pipeline.TempDirPrefix+"new", time.Minute)
	foreign := mkdirAged(t, parent, "other-old", 3*time.Hour)

	r := NewRunner(Config{MaxAge: time.Hour, Dir: parent}, nil, nil)
	removed, err := r.Sweep()
	require.NoError(t, err)

	assert.Equal(t, 1, removed)
	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)
	assert.DirExists(t, foreign)
}

func TestSweep_MissingDir(t *testing.T) {
	r := NewRunner(Config{Dir: filepath.Join(t.TempDir(), "missing")}, nil, nil)
	_, err := r.Sweep()
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	r := NewRunner(Config{Schedule: "@every 1h", Dir: t.TempDir()}, nil, nil)

	require.NoError(t, r.Start())
	assert.True(t, r.IsRunning())
	assert.Error(t, r.Start(), "second start must fail")

	r.Stop()
	assert.False(t, r.IsRunning())
	r.Stop()
}

func TestStart_InvalidSchedule(t *testing.T) {
	r := NewRunner(Config{Schedule: "not a schedule", Dir: t.TempDir()}, nil, nil)
	assert.Error(t, r.Start())
	assert.False(t, r.IsRunning())
}
