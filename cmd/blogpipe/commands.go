package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"blogpipe/internal/build"
	"blogpipe/internal/diag"
	"blogpipe/internal/domain/config"
	"blogpipe/internal/domain/content"
	"blogpipe/internal/index"
	"blogpipe/internal/ingest"
	"blogpipe/internal/logger"
	"blogpipe/internal/pipeline"
	"blogpipe/internal/refs"
	"blogpipe/internal/relate"
	"blogpipe/internal/serve"
	"blogpipe/internal/store"
)

type ServeCmd struct {
	Addr      string `help:"Listen address (overrides serve.addr)"`
	NoWatch   bool   `help:"Do not watch the source directory"`
	FromIndex bool   `help:"Start from the catalog written by build"`
}

func (c *ServeCmd) Run(g *Globals, ctx context.Context) error {
	cfg, log, err := g.Load()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Serve.Addr = c.Addr
	}
	if c.NoWatch {
		cfg.Serve.Watch = false
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s, err := serve.New(serve.Options{
		Cfg:       cfg,
		Log:       logger.Component(log, "serve"),
		Registry:  reg,
		FromIndex: c.FromIndex,
	})
	if err != nil {
		return err
	}
	defer s.Close()
	return s.ListenAndServe(ctx)
}

type BuildCmd struct {
	Force bool `short:"f" help:"Rewrite every page even if unchanged"`
}

func (c *BuildCmd) Run(g *Globals, ctx context.Context) error {
	cfg, log, err := g.Load()
	if err != nil {
		return err
	}
	log = logger.Component(log, "build")
	_, err = (&build.Builder{
		Cfg:   cfg,
		Log:   log,
		Sink:  diag.LogSink{Log: log},
		Force: c.Force,
	}).Run(ctx)
	return err
}

type InspectCmd struct {
	ID        string `arg:"" help:"Document identifier or alias"`
	K         int    `short:"k" help:"Number of related documents (default relate.count)"`
	JSON      bool   `help:"Print the page as JSON"`
	FromIndex bool   `help:"Show the catalog entry written by build instead of running the pipeline"`
}

func (c *InspectCmd) Run(g *Globals, ctx context.Context) error {
	cfg, log, err := g.Load()
	if err != nil {
		return err
	}
	if c.FromIndex {
		return c.catalogEntry(cfg)
	}
	if c.K > 0 {
		cfg.Relate.Count = c.K
	}
	p, err := loadPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}

	page := p.Page(ctx, c.ID)
	if page.Status != pipeline.StatusOK {
		return page.Err
	}
	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "id\t%s\n", page.Doc.ID)
	if page.Redirected() {
		fmt.Fprintf(w, "requested\t%s (alias)\n", page.Requested)
	}
	fmt.Fprintf(w, "title\t%s\n", page.Doc.Meta.Title)
	if page.Doc.Meta.HasDate() {
		fmt.Fprintf(w, "date\t%s\n", page.Doc.Meta.Date.Format("2006-01-02"))
	}
	fmt.Fprintf(w, "position\t%d of %d\n", page.Position, page.Total)
	if prev := page.Nav.Previous; prev != nil {
		fmt.Fprintf(w, "previous\t%s\n", prev.ID)
	}
	if next := page.Nav.Next; next != nil {
		fmt.Fprintf(w, "next\t%s\n", next.ID)
	}
	for _, h := range page.Outline {
		fmt.Fprintf(w, "heading\th%d #%s\t%s\n", h.Level, h.ID, h.Text)
	}
	for _, r := range page.References {
		state := "unresolved"
		if r.Resolved {
			state = "-> " + r.Canonical
		}
		fmt.Fprintf(w, "reference\t%s\t%s\n", r.Target, state)
	}
	for _, s := range page.Related {
		fmt.Fprintf(w, "related\t%s\t%.3f\n", s.Doc.ID, s.Score)
	}
	return w.Flush()
}

func (c *InspectCmd) catalogEntry(cfg config.Config) error {
	idx, err := index.Open(index.OpenOptions{Path: cfg.Build.IndexPath, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("open catalog (run build first): %w", err)
	}
	defer idx.Close()

	doc, err := idx.Lookup(c.ID)
	if err != nil {
		return err
	}
	aliases, err := idx.Aliases()
	if err != nil {
		return err
	}
	var names []string
	for alias, id := range aliases {
		if id == doc.ID {
			names = append(names, alias)
		}
	}
	sort.Strings(names)
	builtAt, err := idx.BuiltAt()
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"document": doc,
			"aliases":  names,
			"built_at": builtAt,
		})
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "id\t%s\n", doc.ID)
	fmt.Fprintf(w, "title\t%s\n", doc.Meta.Title)
	if doc.Meta.HasDate() {
		fmt.Fprintf(w, "date\t%s\n", doc.Meta.Date.Format("2006-01-02"))
	}
	fmt.Fprintf(w, "tags\t%s\n", strings.Join(doc.Meta.Tags, ", "))
	for _, a := range names {
		fmt.Fprintf(w, "alias\t%s\n", a)
	}
	fmt.Fprintf(w, "source\t%s\n", doc.Source.SourcePath)
	fmt.Fprintf(w, "hash\t%s\n", doc.Source.ContentHash)
	fmt.Fprintf(w, "built\t%s\n", builtAt.Format(time.RFC3339))
	return w.Flush()
}

type CheckCmd struct {
	Strict bool `help:"Exit non-zero when anything is reported"`
}

func (c *CheckCmd) Run(g *Globals, ctx context.Context) error {
	cfg, log, err := g.Load()
	if err != nil {
		return err
	}
	rec := diag.NewRecorder(0)
	docs, err := ingest.Load(ctx, ingest.Options{
		SourceDir:    cfg.Build.SourceDir,
		IncludeDraft: cfg.Build.IncludeDraft,
		Sink:         rec,
		Log:          log,
	})
	if err != nil {
		return err
	}
	st := store.New(store.NewSnapshot(docs, rec))
	p := pipeline.New(st, pipeline.Options{
		Sink:       rec,
		Bodies:     ingest.FileBodies{},
		Log:        log,
		RefOptions: legacyPrefixes(cfg),
	})
	if _, err := p.Check(ctx); err != nil {
		return err
	}

	found := rec.All()
	for _, d := range found {
		fmt.Println(d.String())
	}
	log.Info().Int("documents", st.Snapshot().Len()).Int("problems", len(found)).Msg("check complete")
	if c.Strict && len(found) > 0 {
		return fmt.Errorf("%d problems found", len(found))
	}
	return nil
}

type ListCmd struct {
	Tag  string `help:"Only documents carrying this tag"`
	Page int    `default:"1" help:"Page number"`
	Size int    `default:"50" help:"Page size"`
}

func (c *ListCmd) Run(g *Globals) error {
	cfg, _, err := g.Load()
	if err != nil {
		return err
	}
	idx, err := index.Open(index.OpenOptions{Path: cfg.Build.IndexPath, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("open catalog (run build first): %w", err)
	}
	defer idx.Close()

	opt := index.ListOptions{Page: c.Page, Size: c.Size}
	list := idx.List
	if c.Tag != "" {
		list = func(opt index.ListOptions) ([]content.Document, error) { return idx.ListByTag(c.Tag, opt) }
	}
	docs, err := list(opt)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, d := range docs {
		date := "-"
		if d.Meta.HasDate() {
			date = d.Meta.Date.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", date, d.ID, d.Meta.Title)
	}
	return w.Flush()
}

func loadPipeline(ctx context.Context, cfg config.Config, log zerolog.Logger) (*pipeline.Pipeline, error) {
	sink := diag.LogSink{Log: log}
	docs, err := ingest.Load(ctx, ingest.Options{
		SourceDir:    cfg.Build.SourceDir,
		IncludeDraft: cfg.Build.IncludeDraft,
		Sink:         sink,
		Log:          log,
	})
	if err != nil {
		return nil, err
	}
	return pipeline.New(store.New(store.NewSnapshot(docs, sink)), pipeline.Options{
		Sink:         sink,
		Weights:      relate.WeightsFrom(cfg.Relate),
		RelatedCount: cfg.Relate.Count,
		Bodies:       ingest.FileBodies{},
		Log:          log,
		RefOptions:   legacyPrefixes(cfg),
	}), nil
}

func legacyPrefixes(cfg config.Config) []refs.Option {
	return []refs.Option{refs.WithLegacyPrefix(cfg.Build.LegacyPrefixes...)}
}
