package dashboard

import (
	"encoding/json"
	"io"

	"github.com/vilaca/pipeline-flow/internal/service"
)

// Renderer handles rendering responses to HTTP clients.
type Renderer interface {
	RenderHealth(w io.Writer) error
	RenderResult(w io.Writer, result *service.Result) error
	RenderDiagram(w io.Writer, text string) error
	RenderWarnings(w io.Writer, warnings []string) error
}

// JSONRenderer implements Renderer with JSON documents and plain diagram text.
type JSONRenderer struct {
	indent bool
}

// NewJSONRenderer creates a new renderer. With indent the JSON output is pretty-printed.
func NewJSONRenderer(indent bool) *JSONRenderer {
	return &JSONRenderer{indent: indent}
}

func (r *JSONRenderer) RenderHealth(w io.Writer) error {
	_, err := w.Write([]byte(`{"status":"ok"}`))
	return err
}

func (r *JSONRenderer) RenderResult(w io.Writer, result *service.Result) error {
	return r.encoder(w).Encode(result)
}

func (r *JSONRenderer) RenderDiagram(w io.Writer, text string) error {
	_, err := io.WriteString(w, text)
	return err
}

func (r *JSONRenderer) RenderWarnings(w io.Writer, warnings []string) error {
	if warnings == nil {
		warnings = []string{}
	}
	return r.encoder(w).Encode(map[string]interface{}{
		"warnings": warnings,
		"count":    len(warnings),
	})
}

func (r *JSONRenderer) encoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	if r.indent {
		enc.SetIndent("", "  ")
	}
	return enc
}
