package render

import (
	"html/template"
	"time"

	"blogpipe/internal/domain/config"
	"blogpipe/internal/domain/content"
	"blogpipe/internal/pipeline"
)

type PostPage struct {
	Site config.SiteConfig
	Doc  content.Document
	HTML template.HTML
	TOC  []content.Heading

	Related []content.Scored
	Nav     content.Navigation

	// Position is 1-based; zero when unknown.
	Position int
	Total    int

	// DevReload adds the live-reload script when served by `serve`.
	DevReload bool
}

// NewPostPage assembles the template data of a resolved page.
func NewPostPage(s config.SiteConfig, page pipeline.Page, html []byte) PostPage {
	return PostPage{
		Site:     s,
		Doc:      page.Doc,
		HTML:     template.HTML(html),
		TOC:      page.Outline,
		Related:  page.Related,
		Nav:      page.Nav,
		Position: page.Position,
		Total:    page.Total,
	}
}

type ListPage struct {
	Site      config.SiteConfig
	Title     string
	Items     []content.Document
	Total     int
	Generated time.Time
	DevReload bool
}

type NotFoundPage struct {
	Site config.SiteConfig
	Path string
}

// UnavailablePage is shown when a known document's body cannot be loaded.
type UnavailablePage struct {
	Site  config.SiteConfig
	ID    string
	Title string
}

// RedirectPage is a static stand-in for an HTTP redirect.
type RedirectPage struct {
	Site   config.SiteConfig
	Target string
}
