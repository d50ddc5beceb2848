package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordRun("pdf", OutcomeSuccess, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.runs.WithLabelValues("pdf", OutcomeSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.runs.WithLabelValues("pdf", OutcomeSuccess)))
}

func TestRecordRun(t *testing.T) {
	m := New()
	m.RecordRun("xlsx", OutcomeSuccess, 2*time.Second)
	m.RecordRun("xlsx", OutcomeNoTables, time.Second)
	m.RecordRun("docx", OutcomeFailed, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("xlsx", OutcomeNoTables)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("docx", OutcomeFailed)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.runDuration))

	s := m.Snapshot()
	assert.Equal(t, int64(3), s.RunsTotal)
	assert.Equal(t, int64(2), s.RunsSuccess)
	assert.Equal(t, int64(1), s.RunsFailed)
	assert.InDelta(t, 66.67, s.SuccessRate, 0.01)
}

func TestPagesAndStages(t *testing.T) {
	m := New()
	m.RecordPage("lattice")
	m.RecordPage("ocr")
	m.RecordPage("ocr")
	m.ObserveStage("rasterize", 300*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.pages.WithLabelValues("ocr")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stageLatency))
}

func TestInFlightAndSwept(t *testing.T) {
	m := New()
	m.IncInFlight()
	m.IncInFlight()
	m.DecInFlight()
	m.RecordSwept(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.tempDirsSwept))
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordHTTP("POST", "/process", 200)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(string(body),
		`doclens_http_requests_total{method="POST",route="/process",status="200"} 1`))
	assert.Contains(t, string(body), "go_goroutines")
}
