package main

import (
	"embed"
	"fmt"
	"io"

	"github.com/flosch/pongo2/v6"
	"github.com/labstack/echo/v4"
)

// Renderer loads pongo2 templates from the embedded FS, or from disk in
// debug mode so template edits show up without a rebuild.
type Renderer struct {
	TemplateDir string
	TemplateFS  *embed.FS
	Debug       bool
}

func NewRenderer(dir string, fsys *embed.FS, debug bool) *Renderer {
	return &Renderer{
		TemplateDir: dir,
		TemplateFS:  fsys,
		Debug:       debug,
	}
}

func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	var ctx pongo2.Context
	switch v := data.(type) {
	case pongo2.Context:
		ctx = v
	case map[string]any:
		ctx = pongo2.Context(v)
	case nil:
		ctx = pongo2.Context{}
	default:
		return fmt.Errorf("unsupported template data type: %T", data)
	}

	var tpl *pongo2.Template
	var err error
	if r.Debug {
		tpl, err = pongo2.FromFile(r.TemplateDir + name)
	} else {
		var raw []byte
		raw, err = r.TemplateFS.ReadFile(r.TemplateDir + name)
		if err == nil {
			tpl, err = pongo2.FromBytes(raw)
		}
	}
	if err != nil {
		return err
	}
	return tpl.ExecuteWriter(ctx, w)
}
