package display

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/yegors/arrival-board/pkg/logger"
)

// DefaultTemplate renders a board as plain text for terminals and logs
const DefaultTemplate = `{{ .Header.AppTitle }}
{{ .Header.Title }}  |  {{ .Header.Subtitle }}
{{ .Header.Clock }}  |  {{ .Header.WeatherPrimary }}{{ if .Header.WeatherSecondary }}  {{ .Header.WeatherSecondary }}{{ end }}
{{ rule }}
{{- range .Tiles }}
{{ pad .Route 6 }} {{ pad .Destination 36 }} {{ .ETA }}{{ if .ETAUnit }} {{ .ETAUnit }}{{ end }}
       {{ .Meta }}
{{- else }}
No upcoming arrivals
{{- end }}
`

// Renderer renders formatted boards through a text template
type Renderer struct {
	tmpl   *template.Template
	logger *logger.Logger
}

var funcs = template.FuncMap{
	"rule": func() string { return strings.Repeat("-", 60) },
	"pad": func(s string, width int) string {
		if n := len([]rune(s)); n < width {
			return s + strings.Repeat(" ", width-n)
		}
		return s
	},
}

// NewRenderer parses the template at templatePath, or DefaultTemplate when
// templatePath is empty
func NewRenderer(templatePath string, log *logger.Logger) (*Renderer, error) {
	text := DefaultTemplate
	name := "board"
	if templatePath != "" {
		b, err := os.ReadFile(templatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read template file: %w", err)
		}
		text = string(b)
		name = templatePath
	}

	tmpl, err := template.New(name).Funcs(funcs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &Renderer{
		tmpl:   tmpl,
		logger: log.Named("board-renderer"),
	}, nil
}

// Render executes the template for b
func (r *Renderer) Render(b Board) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, b); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	r.logger.Debug("Board rendered",
		logger.Int("tiles", len(b.Tiles)),
		logger.Int("rendered_length", buf.Len()))
	return buf.String(), nil
}
