package template

import (
	"bytes"
	"strings"
	texttemplate "text/template"

	"github.com/vibesoft/herald/internal/notify"
)

// Renderer expands a variable map into template source stored in the
// database. Sources use Go template syntax ({{.name}}); a reference to
// a variable the caller did not supply is a rendering failure, never a
// silent drop.
type Renderer struct{}

// NewRenderer creates a content renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render expands variables into the template source.
func (r *Renderer) Render(source string, variables map[string]any) (string, error) {
	tmpl, err := texttemplate.New("content").Option("missingkey=error").Parse(source)
	if err != nil {
		return "", &notify.RenderingError{Err: err}
	}

	if variables == nil {
		variables = map[string]any{}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, variables); err != nil {
		return "", &notify.RenderingError{Err: err}
	}

	return buf.String(), nil
}

// RenderOptional renders a nullable field (email subject). A nil or
// blank source passes through as nil without expansion.
func (r *Renderer) RenderOptional(source *string, variables map[string]any) (*string, error) {
	if source == nil || strings.TrimSpace(*source) == "" {
		return nil, nil
	}

	rendered, err := r.Render(*source, variables)
	if err != nil {
		return nil, err
	}
	return &rendered, nil
}
