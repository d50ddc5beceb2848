package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gmsas95/doclens/internal/config"
	"github.com/gmsas95/doclens/internal/export"
	"github.com/gmsas95/doclens/internal/metrics"
	"github.com/gmsas95/doclens/internal/pipeline"
	"github.com/gmsas95/doclens/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	outcome  pipeline.Outcome
	filename string
	format   string
	body     []byte
}

func (f *fakeProcessor) Process(_ context.Context, req pipeline.Request) pipeline.Outcome {
	f.filename = req.Filename
	f.format = req.Format
	f.body, _ = io.ReadAll(req.Body)
	return f.outcome
}

type fakeHistory struct {
	runs  []store.ProcessingRun
	limit int
	err   error
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]store.ProcessingRun, error) {
	f.limit = limit
	return f.runs, f.err
}

func testConfig() *config.Config {
	return &config.Config{Server: config.ServerConfig{
		Address:      "127.0.0.1",
		Port:         3000,
		ReadTimeout:  5,
		WriteTimeout: 5,
		BodyLimitMB:  1,
		AllowOrigins: []string{"*"},
	}}
}

func newTestServer(proc *fakeProcessor, hist *fakeHistory) *Server {
	return New(testConfig(), proc, hist, metrics.New(), nil)
}

func uploadRequest(t *testing.T, filename string, content []byte, format string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	if format != "" {
		require.NoError(t, w.WriteField("format", format))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/process", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestIndex(t *testing.T) {
	s := newTestServer(&fakeProcessor{}, &fakeHistory{})

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, `name=file`)
	for _, f := range []string{"docx", "xlsx", "pdf"} {
		assert.Contains(t, body, "value="+f)
	}
}

func TestProcess_Download(t *testing.T) {
	tests := []struct {
		format   export.Format
		filename string
	}{
		{export.FormatXLSX, "tables.xlsx"},
		{export.FormatDOCX, "result.docx"},
		{export.FormatPDF, "result.pdf"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			proc := &fakeProcessor{outcome: pipeline.Outcome{
				Kind:     pipeline.OutcomeArtifact,
				Artifact: export.NewArtifact(tt.format, []byte("artifact-bytes")),
			}}
			s := newTestServer(proc, &fakeHistory{})

			resp, err := s.App().Test(uploadRequest(t, "scan.pdf", []byte("%PDF-1.7"), string(tt.format)))
			require.NoError(t, err)

			body := readBody(t, resp)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "artifact-bytes", body)
			assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
			assert.Contains(t, resp.Header.Get("Content-Disposition"), tt.filename)
			assert.Equal(t, tt.format.ContentType(), resp.Header.Get("Content-Type"))

			assert.Equal(t, "scan.pdf", proc.filename)
			assert.Equal(t, string(tt.format), proc.format)
			assert.Equal(t, []byte("%PDF-1.7"), proc.body)
		})
	}
}

func TestProcess_NoTables(t *testing.T) {
	proc := &fakeProcessor{outcome: pipeline.Outcome{Kind: pipeline.OutcomeNoTables}}
	s := newTestServer(proc, &fakeHistory{})

	resp, err := s.App().Test(uploadRequest(t, "doc.pdf", []byte("%PDF"), "xlsx"))
	require.NoError(t, err)

	body := readBody(t, resp)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Empty(t, resp.Header.Get("Content-Disposition"))
	assert.Contains(t, body, NoTablesMessage)
	assert.NotContains(t, body, "Error:")
}

func TestProcess_Failure(t *testing.T) {
	proc := &fakeProcessor{outcome: pipeline.Outcome{
		Kind:    pipeline.OutcomeFailed,
		Message: "[DOC_002] failed to rasterize pdf: <bad>",
	}}
	s := newTestServer(proc, &fakeHistory{})

	resp, err := s.App().Test(uploadRequest(t, "doc.pdf", []byte("%PDF"), "docx"))
	require.NoError(t, err)

	body := readBody(t, resp)
	assert.Empty(t, resp.Header.Get("Content-Disposition"))
	assert.Contains(t, body, "Error: [DOC_002] failed to rasterize pdf: &lt;bad&gt;")
}

func TestProcess_MissingFields(t *testing.T) {
	s := newTestServer(&fakeProcessor{}, &fakeHistory{})

	resp, err := s.App().Test(uploadRequest(t, "", nil, "docx"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "file is required")

	resp, err = s.App().Test(uploadRequest(t, "a.png", []byte("x"), ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "format is required")
}

func TestHistory(t *testing.T) {
	hist := &fakeHistory{runs: []store.ProcessingRun{
		{ID: 2, Filename: "b.png", Result: store.ResultText, Format: "pdf", TS: time.Unix(100, 0).UTC()},
		{ID: 1, Filename: "a.pdf", Result: store.ResultTable, Format: "xlsx", TS: time.Unix(50, 0).UTC()},
	}}
	s := newTestServer(&fakeProcessor{}, hist)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/history?limit=5", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []store.ProcessingRun
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &runs))
	assert.Len(t, runs, 2)
	assert.Equal(t, store.ResultTable, runs[1].Result)
	assert.Equal(t, 5, hist.limit)
}

func TestHistory_Errors(t *testing.T) {
	s := newTestServer(&fakeProcessor{}, &fakeHistory{err: errors.New("db locked")})

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/history", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/history?limit=0", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(&fakeProcessor{}, &fakeHistory{})

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.NoError(t, err)
	assert.Contains(t, readBody(t, resp), `"status":"healthy"`)

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(body, `doclens_http_requests_total{method="GET",route="/api/health",status="200"} 1`))
}
