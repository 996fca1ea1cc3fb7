package server

import (
	"embed"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/renalscan/renalscan-go/internal/errors"
)

//go:embed views/*.html
var viewFiles embed.FS

// Renderer implements echo.Renderer over the embedded page templates.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded views.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(viewFiles, "views/*.html")
	if err != nil {
		return nil, errors.New(err).
			Component("server").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &Renderer{templates: tmpl}, nil
}

// Render writes the named template with the given data.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}
