package handler

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/todoflow-labs/task-tracker/internal/dto"
)

//go:embed templates/*.html
var templateFS embed.FS

// errResponseWrite marks a failure after the status line went out; the
// response can no longer be replaced.
var errResponseWrite = errors.New("write response")

// View renders the list page.
type View struct {
	home *template.Template
}

func NewView() (*View, error) {
	home, err := template.ParseFS(templateFS, "templates/home.html")
	if err != nil {
		return nil, err
	}
	return &View{home: home}, nil
}

// MustView panics when the embedded templates do not parse.
func MustView() *View {
	v, err := NewView()
	if err != nil {
		panic(err)
	}
	return v
}

// RenderList buffers the page so a template error never leaves a half
// written response.
func (v *View) RenderList(w http.ResponseWriter, status int, page dto.TaskListPage) error {
	var buf bytes.Buffer
	if err := v.home.Execute(&buf, page); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("%w: %w", errResponseWrite, err)
	}
	return nil
}
