// Package render renders notification mail bodies from embedded templates,
// with an optional on-disk override directory for deployments that customize
// their mail appearance.
package render

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/valyala/bytebufferpool"
)

//go:embed templates/mail/*.html
var embedFS embed.FS

// Renderer holds the parsed template set plus site-wide variables merged into
// every render.
type Renderer struct {
	templates   *template.Template
	templateDir string
	globalVars  map[string]interface{}
}

func New(globalVars map[string]interface{}, templateDir string) (*Renderer, error) {
	if templateDir != "" {
		info, err := os.Stat(templateDir)
		if err != nil {
			return nil, fmt.Errorf("template directory does not exist: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("template path is not a directory: %s", templateDir)
		}
	}

	t := template.New("")
	err := fs.WalkDir(embedFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".html") {
			return nil
		}
		rel := strings.TrimPrefix(path, "templates/")
		content, readErr := embedFS.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		if _, parseErr := t.New(rel).Parse(string(content)); parseErr != nil {
			return parseErr
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded templates: %w", err)
	}
	return &Renderer{
		templates:   t,
		templateDir: templateDir,
		globalVars:  globalVars,
	}, nil
}

func (r *Renderer) RenderHTML(templateName string, vars map[string]interface{}) (string, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	mergedVars := make(map[string]interface{})
	for k, v := range r.globalVars {
		mergedVars[k] = v
	}
	for k, v := range vars {
		mergedVars[k] = v
	}

	if !strings.HasSuffix(templateName, ".html") {
		templateName += ".html"
	}

	if r.templateDir != "" {
		filePath := filepath.Join(r.templateDir, templateName)
		if contents, err := os.ReadFile(filePath); err == nil {
			if t, err := template.New(templateName).Parse(string(contents)); err == nil {
				if err := t.ExecuteTemplate(buf, templateName, mergedVars); err == nil {
					return buf.String(), nil
				}
			}
		}
		slog.Warn("Render template failed, falling back to embedded", "template", filePath)
	}

	if err := r.templates.ExecuteTemplate(buf, templateName, mergedVars); err != nil {
		return "", err
	}
	return buf.String(), nil
}
