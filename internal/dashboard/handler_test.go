package dashboard

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilaca/pipeline-flow/internal/service"
)

// mockRenderer is a test double for Renderer.
type mockRenderer struct {
	JSONRenderer
	healthErr error
	resultErr error
}

func (m *mockRenderer) RenderHealth(w io.Writer) error {
	if m.healthErr != nil {
		return m.healthErr
	}
	return m.JSONRenderer.RenderHealth(w)
}

func (m *mockRenderer) RenderResult(w io.Writer, result *service.Result) error {
	if m.resultErr != nil {
		return m.resultErr
	}
	return m.JSONRenderer.RenderResult(w, result)
}

// mockLogger is a test double for Logger.
type mockLogger struct {
	messages []string
}

func (m *mockLogger) Printf(format string, v ...interface{}) {
	m.messages = append(m.messages, format)
}

// mockResults is a test double for ResultSource.
type mockResults struct {
	result *service.Result
}

func (m *mockResults) Latest() *service.Result { return m.result }

func sampleResult() *service.Result {
	return &service.Result{
		DiagramText:          "flowchart LR\n    uat ==> preprod\n    feature --> uat\n",
		DiagramTextMajorOnly: "flowchart LR\n    uat ==> preprod\n",
		Warnings:             []string{"No certificate key file found for branch uat"},
		Platform:             "gitlab",
	}
}

func newTestServer(renderer Renderer, results ResultSource, metrics http.Handler) (*http.ServeMux, *mockLogger) {
	logger := &mockLogger{}
	handler := NewHandler(HandlerConfig{Renderer: renderer, Logger: logger, Results: results, Metrics: metrics})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return mux, logger
}

// TestHandleHealth tests the health endpoint.
// Follows AAA pattern.
func TestHandleHealth(t *testing.T) {
	// Arrange
	mux, _ := newTestServer(&mockRenderer{}, &mockResults{}, nil)
	rec := httptest.NewRecorder()

	// Act
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"status":"ok"}`, rec.Body.String())
}

// TestHandleHealth_RenderError tests error handling in the health endpoint.
func TestHandleHealth_RenderError(t *testing.T) {
	// Arrange
	mux, logger := newTestServer(&mockRenderer{healthErr: errors.New("boom")}, &mockResults{}, nil)
	rec := httptest.NewRecorder()

	// Act
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	// Assert
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, logger.messages, 1)
}

func TestHandlePipeline(t *testing.T) {
	// Arrange
	mux, _ := newTestServer(&mockRenderer{}, &mockResults{result: sampleResult()}, nil)
	rec := httptest.NewRecorder()

	// Act
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pipeline", nil))

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "gitlab", body["platform"])
	assert.Contains(t, body["diagramTextMajorOnly"], "uat ==> preprod")
}

func TestHandlePipeline_RenderError(t *testing.T) {
	// Arrange
	mux, logger := newTestServer(&mockRenderer{resultErr: errors.New("boom")}, &mockResults{result: sampleResult()}, nil)
	rec := httptest.NewRecorder()

	// Act
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pipeline", nil))

	// Assert
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, logger.messages)
}

func TestHandleDiagram(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"full", "/api/pipeline/diagram", sampleResult().DiagramText},
		{"major only", "/api/pipeline/diagram?major=1", sampleResult().DiagramTextMajorOnly},
		{"major false", "/api/pipeline/diagram?major=false", sampleResult().DiagramText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			mux, _ := newTestServer(&mockRenderer{}, &mockResults{result: sampleResult()}, nil)
			rec := httptest.NewRecorder()

			// Act
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))

			// Assert
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.expected, rec.Body.String())
		})
	}
}

func TestHandleDiagram_NotModified(t *testing.T) {
	// Arrange
	mux, _ := newTestServer(&mockRenderer{}, &mockResults{result: sampleResult()}, nil)
	first := httptest.NewRecorder()
	mux.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/pipeline/diagram", nil))
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/pipeline/diagram", nil)
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()

	// Act
	mux.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHandleWarnings(t *testing.T) {
	// Arrange
	mux, _ := newTestServer(&mockRenderer{}, &mockResults{result: sampleResult()}, nil)
	rec := httptest.NewRecorder()

	// Act
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pipeline/warnings", nil))

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"warnings":["No certificate key file found for branch uat"],"count":1}`, rec.Body.String())
}

func TestHandlers_BeforeFirstBuild(t *testing.T) {
	// Arrange
	mux, _ := newTestServer(&mockRenderer{}, &mockResults{}, nil)

	for _, path := range []string{"/api/pipeline", "/api/pipeline/diagram", "/api/pipeline/warnings"} {
		rec := httptest.NewRecorder()

		// Act
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		// Assert
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Equal(t, "2", rec.Header().Get("Retry-After"), path)
	}
}

func TestHandlers_MethodNotAllowed(t *testing.T) {
	// Arrange
	mux, _ := newTestServer(&mockRenderer{}, &mockResults{result: sampleResult()}, nil)
	rec := httptest.NewRecorder()

	// Act
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/pipeline", nil))

	// Assert
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	// Arrange
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "pipeline_builds_total 1\n")
	})
	mux, _ := newTestServer(&mockRenderer{}, &mockResults{}, metrics)
	rec := httptest.NewRecorder()

	// Act
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pipeline_builds_total")
}
