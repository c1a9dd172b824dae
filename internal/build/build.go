package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"blogpipe/internal/app"
	"blogpipe/internal/diag"
	dbuild "blogpipe/internal/domain/build"
	"blogpipe/internal/domain/config"
	"blogpipe/internal/domain/content"
	"blogpipe/internal/domain/site"
	"blogpipe/internal/index"
	"blogpipe/internal/ingest"
	"blogpipe/internal/metrics"
	"blogpipe/internal/pipeline"
	"blogpipe/internal/refs"
	"blogpipe/internal/relate"
	"blogpipe/internal/render"
	"blogpipe/internal/store"
)

type Builder struct {
	Cfg     config.Config
	Log     zerolog.Logger
	Sink    diag.Sink
	Metrics *metrics.Metrics
	// Force rewrites every page even when its fingerprint is unchanged.
	Force bool
}

type Result struct {
	Documents   int
	Written     int
	Skipped     int
	Removed     int
	Diagnostics []diag.Diagnostic
}

// Run loads the source tree, refreshes the catalog and writes the site.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	rec := diag.NewRecorder(0)
	sink := diag.Multi(rec, b.Sink)

	docs, err := ingest.Load(ctx, ingest.Options{
		SourceDir:    b.Cfg.Build.SourceDir,
		IncludeDraft: b.Cfg.Build.IncludeDraft,
		Sink:         sink,
		Log:          b.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("ingest failed: %w", err)
	}
	snap := store.NewSnapshot(docs, sink)
	b.Metrics.SetDocuments(snap.Len())

	idx, err := index.Open(index.OpenOptions{Path: b.Cfg.Build.IndexPath})
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer idx.Close()

	if err := idx.Rebuild(snap.All(), index.RebuildOptions{
		IncludeDraft: b.Cfg.Build.IncludeDraft,
		Aliases:      snap.Aliases(),
		Now:          b.Cfg.Build.Now,
	}); err != nil {
		return nil, fmt.Errorf("failed to rebuild index: %w", err)
	}

	tpl, err := render.NewTemplateRenderer(b.Cfg.Build.ThemeDir, b.Cfg.Site.Theme)
	if err != nil {
		return nil, fmt.Errorf("load themes(%s): %w", b.Cfg.Build.ThemeDir, err)
	}

	outDir := b.Cfg.Build.PublicDir
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir public: %w", err)
	}

	w := &writer{
		Builder: b,
		ctx:     ctx,
		idx:     idx,
		tpl:     tpl,
		md:      render.NewMarkdownRenderer(render.SiteHooks()),
		pipe: pipeline.New(store.New(snap), pipeline.Options{
			Sink:         diag.NewOnce(sink),
			Weights:      relate.WeightsFrom(b.Cfg.Relate),
			RelatedCount: b.Cfg.Relate.Count,
			Log:          b.Log,
			RefOptions:   []refs.Option{refs.WithLegacyPrefix(b.Cfg.Build.LegacyPrefixes...)},
		}),
		outDir:     outDir,
		themeHash:  tpl.Hash(),
		configHash: configHash(b.Cfg),
		res:        &Result{Documents: snap.Len()},
	}

	routes := (&app.RouteBuilder{Snapshot: snap}).BuildRoutes()
	keep := make(map[string]bool, len(routes))
	for _, r := range routes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := w.route(r); err != nil {
			return nil, fmt.Errorf("build %s: %w", r, err)
		}
		keep[r.OutPath] = true
	}

	stale, err := idx.PrunePages(keep)
	if err != nil {
		return nil, fmt.Errorf("prune index: %w", err)
	}
	for _, rel := range stale {
		if err := os.Remove(filepath.Join(outDir, filepath.FromSlash(rel))); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale page: %w", err)
		}
		w.res.Removed++
	}

	if err := b.copyStaticAssets(outDir); err != nil {
		return nil, fmt.Errorf("copy static assets: %w", err)
	}

	w.res.Diagnostics = rec.All()
	b.Log.Info().
		Int("documents", w.res.Documents).
		Int("written", w.res.Written).
		Int("skipped", w.res.Skipped).
		Int("removed", w.res.Removed).
		Int("diagnostics", len(w.res.Diagnostics)).
		Msg("build complete")
	return w.res, nil
}

type writer struct {
	*Builder
	ctx        context.Context
	idx        *index.Store
	tpl        render.Renderer
	md         *render.MarkdownRenderer
	pipe       *pipeline.Pipeline
	outDir     string
	themeHash  string
	configHash string
	res        *Result
}

// route writes one page unless the catalog holds an identical fingerprint
// and the file is still on disk.
func (w *writer) route(r site.Route) error {
	var (
		fp      dbuild.Fingerprint
		produce func() ([]byte, error)
	)
	switch r.Kind {
	case site.RoutePost:
		page := w.pipe.Page(w.ctx, r.Slug)
		if page.Status != pipeline.StatusOK {
			return page.Err
		}
		fp.ContentHash = page.Doc.Source.ContentHash
		fp.ContextHash = contextHash(page)
		produce = func() ([]byte, error) { return w.post(page) }
	case site.RouteIndex:
		items := w.pipe.List()
		fp.ContentHash = listHash(items)
		produce = func() ([]byte, error) {
			return w.tpl.RenderList(w.ctx, renderList(w.Cfg, items))
		}
	case site.RouteLegacy:
		fp.ContentHash = dbuild.HashStrings("redirect", r.Target)
		produce = func() ([]byte, error) {
			return w.tpl.RenderRedirect(w.ctx, render.RedirectPage{Site: w.Cfg.Site, Target: r.Target})
		}
	case site.RouteNotFound:
		fp.ContentHash = dbuild.HashStrings("404")
		produce = func() ([]byte, error) {
			return w.tpl.RenderNotFound(w.ctx, render.NotFoundPage{Site: w.Cfg.Site})
		}
	default:
		return fmt.Errorf("unknown route kind %q", r.Kind)
	}
	fp.ThemeHash = w.themeHash
	fp.ConfigHash = w.configHash
	fp.ComputeRenderHash()

	full := filepath.Join(w.outDir, filepath.FromSlash(r.OutPath))
	if !w.Force {
		prev, ok, err := w.idx.Fingerprint(r.OutPath)
		if err != nil {
			return err
		}
		if ok && prev.RenderHash == fp.RenderHash && fileExists(full) {
			w.res.Skipped++
			w.Metrics.Page(false)
			return nil
		}
	}

	data, err := produce()
	if err != nil {
		return err
	}
	if err := writeFile(full, data); err != nil {
		return err
	}
	w.res.Written++
	w.Metrics.Page(true)
	w.Log.Debug().Str("route", r.String()).Msg("page written")
	return w.idx.PutFingerprint(r.OutPath, fp)
}

func (w *writer) post(page pipeline.Page) ([]byte, error) {
	html, err := w.md.Render([]byte(page.Body))
	if err != nil {
		return nil, fmt.Errorf("markdown render(%s): %w", page.Doc.ID, err)
	}
	return w.tpl.RenderPost(w.ctx, render.NewPostPage(w.Cfg.Site, page, html))
}

func renderList(cfg config.Config, items []content.Document) render.ListPage {
	return render.ListPage{
		Site:      cfg.Site,
		Title:     "All posts",
		Items:     items,
		Total:     len(items),
		Generated: cfg.Build.Now,
	}
}

// contextHash covers what a post shows about other documents.
func contextHash(page pipeline.Page) string {
	parts := []string{strconv.Itoa(page.Position), strconv.Itoa(page.Total)}
	for _, s := range page.Related {
		parts = append(parts, "rel", s.Doc.ID, s.Doc.Meta.Title)
	}
	for _, d := range []*content.Document{page.Nav.Previous, page.Nav.Next} {
		if d == nil {
			parts = append(parts, "nav")
			continue
		}
		parts = append(parts, "nav", d.ID, d.Meta.Title)
	}
	for _, ref := range page.References {
		parts = append(parts, "ref", ref.Target, ref.Canonical)
	}
	return dbuild.HashStrings(parts...)
}

func listHash(items []content.Document) string {
	parts := make([]string, 0, len(items)*4)
	for _, d := range items {
		parts = append(parts, d.ID, d.Meta.Title, d.Meta.Date.String(), d.Meta.Description)
	}
	return dbuild.HashStrings(parts...)
}

func configHash(cfg config.Config) string {
	s := cfg.Site
	r := cfg.Relate
	parts := []string{
		s.Title, s.Author, s.SiteURL, s.Theme, s.Language, s.Description,
		strconv.Itoa(r.Count),
		strconv.FormatFloat(r.TagWeight, 'g', -1, 64),
		strconv.FormatFloat(r.ProximityWeight, 'g', -1, 64),
		r.ProximityScale.String(),
	}
	// links to legacy prefixes render differently
	parts = append(parts, cfg.Build.LegacyPrefixes...)
	return dbuild.HashStrings(parts...)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func writeFile(full string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

func (b *Builder) copyStaticAssets(outDir string) error {
	src := filepath.Join(b.Cfg.Build.ThemeDir, b.Cfg.Site.Theme, "static")
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return nil
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		in, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return writeFile(filepath.Join(outDir, rel), in)
	})
}
