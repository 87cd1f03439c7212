package dashboard

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"net/http"
	"strconv"

	"github.com/vilaca/pipeline-flow/internal/service"
)

// Handler handles HTTP requests for the pipeline diagram.
type Handler struct {
	renderer Renderer
	logger   Logger
	results  ResultSource
	metrics  http.Handler
}

// Logger interface for logging operations.
type Logger interface {
	Printf(format string, v ...interface{})
}

// ResultSource returns the last pipeline build, or nil while the first build runs.
type ResultSource interface {
	Latest() *service.Result
}

// HandlerConfig holds configuration for creating a new Handler.
type HandlerConfig struct {
	Renderer Renderer
	Logger   Logger
	Results  ResultSource
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewHandler creates a new Handler with injected dependencies.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		renderer: cfg.Renderer,
		logger:   cfg.Logger,
		results:  cfg.Results,
		metrics:  cfg.Metrics,
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", h.handleHealth)
	mux.HandleFunc("/api/pipeline", h.handlePipeline)
	mux.HandleFunc("/api/pipeline/diagram", h.handleDiagram)
	mux.HandleFunc("/api/pipeline/warnings", h.handleWarnings)
	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics)
	}
}

// handleHealth serves the health check endpoint.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := h.renderer.RenderHealth(w); err != nil {
		h.logger.Printf("failed to render health: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

// handlePipeline serves the full build result as JSON.
func (h *Handler) handlePipeline(w http.ResponseWriter, r *http.Request) {
	result, ok := h.latest(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.renderer.RenderResult(&buf, result); err != nil {
		h.logger.Printf("failed to render pipeline: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.write(w, r, "application/json", buf.Bytes())
}

// handleDiagram serves the diagram text; major=1 selects the major-only variant.
func (h *Handler) handleDiagram(w http.ResponseWriter, r *http.Request) {
	result, ok := h.latest(w, r)
	if !ok {
		return
	}

	text := result.DiagramText
	if major, _ := strconv.ParseBool(r.URL.Query().Get("major")); major {
		text = result.DiagramTextMajorOnly
	}

	var buf bytes.Buffer
	if err := h.renderer.RenderDiagram(&buf, text); err != nil {
		h.logger.Printf("failed to render diagram: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.write(w, r, "text/plain; charset=utf-8", buf.Bytes())
}

// handleWarnings serves the configuration warnings of the last build.
func (h *Handler) handleWarnings(w http.ResponseWriter, r *http.Request) {
	result, ok := h.latest(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.renderer.RenderWarnings(&buf, result.Warnings); err != nil {
		h.logger.Printf("failed to render warnings: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.write(w, r, "application/json", buf.Bytes())
}

// latest checks the method and returns the last result, answering 503 before the first build.
func (h *Handler) latest(w http.ResponseWriter, r *http.Request) (*service.Result, bool) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	result := h.results.Latest()
	if result == nil {
		w.Header().Set("Retry-After", "2")
		http.Error(w, "Pipeline is being built, retry shortly", http.StatusServiceUnavailable)
		return nil, false
	}
	return result, true
}

// write sends body with an ETag so pollers can skip unchanged diagrams.
func (h *Handler) write(w http.ResponseWriter, r *http.Request, contentType string, body []byte) {
	etag := fmt.Sprintf(`"%x"`, md5.Sum(body))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write(body); err != nil {
		h.logger.Printf("failed to write response: %v", err)
	}
}
