package render

import (
	"bytes"
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"hash"
	"html/template"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"blogpipe/internal/domain/config"
	"blogpipe/internal/domain/site"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

var requiredTemplates = []string{
	"post.tmpl",
	"list.tmpl",
	"404.tmpl",
	"unavailable.tmpl",
	"redirect.tmpl",
}

type TemplateRenderer struct {
	tpl  *template.Template
	hash string
}

// NewTemplateRenderer parses the built-in templates and then any
// <themeDir>/<themeName>/templates/*.tmpl, which replace built-ins of the
// same name.
func NewTemplateRenderer(themeDir, themeName string) (*TemplateRenderer, error) {
	tpl := template.New("").Funcs(templateFuncs())
	h := sha256.New()

	builtin, err := fs.Glob(defaultTemplates, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}
	for _, name := range builtin {
		src, err := defaultTemplates.ReadFile(name)
		if err != nil {
			return nil, err
		}
		if err := parseInto(tpl, path.Base(name), src, h); err != nil {
			return nil, err
		}
	}

	if themeDir != "" && themeName != "" {
		theme, err := filepath.Glob(filepath.Join(themeDir, themeName, "templates", "*.tmpl"))
		if err != nil {
			return nil, err
		}
		sort.Strings(theme)
		for _, file := range theme {
			src, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("read theme template: %w", err)
			}
			if err := parseInto(tpl, filepath.Base(file), src, h); err != nil {
				return nil, err
			}
		}
	}

	r := &TemplateRenderer{tpl: tpl, hash: hex.EncodeToString(h.Sum(nil))}
	if err := r.checkTemplates(); err != nil {
		return nil, err
	}
	return r, nil
}

func parseInto(tpl *template.Template, name string, src []byte, h hash.Hash) error {
	h.Write([]byte(name))
	h.Write(src)
	if _, err := tpl.New(name).Parse(string(src)); err != nil {
		return fmt.Errorf("parse template %s: %w", name, err)
	}
	return nil
}

// Hash identifies the template set, for build fingerprints.
func (r *TemplateRenderer) Hash() string {
	return r.hash
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"date": func(t time.Time, layout string) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(layout)
		},
		"nowYear": func() int {
			return time.Now().Year()
		},
		"postURL": site.PostPath,
		"frame": func(s config.SiteConfig, title string, devReload bool) frame {
			return frame{Site: s, PageTitle: title, DevReload: devReload}
		},
	}
}

// frame is the data of the shared head and foot templates.
type frame struct {
	Site      config.SiteConfig
	PageTitle string
	DevReload bool
}

func (r *TemplateRenderer) RenderPost(ctx context.Context, page PostPage) ([]byte, error) {
	return r.exec("post.tmpl", page)
}

func (r *TemplateRenderer) RenderList(ctx context.Context, page ListPage) ([]byte, error) {
	return r.exec("list.tmpl", page)
}

func (r *TemplateRenderer) RenderNotFound(ctx context.Context, page NotFoundPage) ([]byte, error) {
	return r.exec("404.tmpl", page)
}

func (r *TemplateRenderer) RenderUnavailable(ctx context.Context, page UnavailablePage) ([]byte, error) {
	return r.exec("unavailable.tmpl", page)
}

func (r *TemplateRenderer) RenderRedirect(ctx context.Context, page RedirectPage) ([]byte, error) {
	return r.exec("redirect.tmpl", page)
}

func (r *TemplateRenderer) exec(name string, data interface{}) ([]byte, error) {
	t := r.tpl.Lookup(name)
	if t == nil {
		return nil, fmt.Errorf("template %s not found", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *TemplateRenderer) checkTemplates() error {
	for _, name := range requiredTemplates {
		if r.tpl.Lookup(name) == nil {
			return fmt.Errorf("missing template: %s", name)
		}
	}
	return nil
}
