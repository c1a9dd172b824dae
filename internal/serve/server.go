// Package serve is the development and preview server: HTML pages, a JSON
// API over the content pipeline, live reload and metrics.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"blogpipe/internal/diag"
	"blogpipe/internal/domain/config"
	"blogpipe/internal/domain/content"
	"blogpipe/internal/index"
	"blogpipe/internal/ingest"
	"blogpipe/internal/metrics"
	"blogpipe/internal/pipeline"
	"blogpipe/internal/refs"
	"blogpipe/internal/relate"
	"blogpipe/internal/render"
	"blogpipe/internal/store"
)

type Options struct {
	Cfg config.Config
	Log zerolog.Logger
	// Registry backs /metrics; nil gets a private registry.
	Registry *prometheus.Registry
	// FromIndex starts from the catalog written by `build` and reads bodies
	// from their source files on demand. Later reloads ingest the source dir.
	FromIndex bool
}

type Server struct {
	cfg       config.Config
	log       zerolog.Logger
	fromIndex bool

	st      *store.Store
	pipe    *pipeline.Pipeline
	md      *render.MarkdownRenderer
	tpl     render.Renderer
	reg     *prometheus.Registry
	metrics *metrics.Metrics

	// rec holds the diagnostics of the current snapshot; once keeps
	// per-request queries from repeating them.
	rec  *diag.Recorder
	once *diag.Once

	reloadMu sync.Mutex
	// catalogBuilt is the catalog's build time while the snapshot came from
	// it, nil once the source directory has been ingested.
	catalogBuilt atomic.Pointer[time.Time]

	sseMu    sync.Mutex
	sseConns map[chan string]struct{}

	watcher   *fsnotify.Watcher
	watchOnce sync.Once
}

func New(opt Options) (*Server, error) {
	tpl, err := render.NewTemplateRenderer(opt.Cfg.Build.ThemeDir, opt.Cfg.Site.Theme)
	if err != nil {
		return nil, fmt.Errorf("serve: failed to create template renderer: %w", err)
	}
	reg := opt.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := metrics.New(reg)

	rec := diag.NewRecorder(1000)
	once := diag.NewOnce(diag.Multi(rec, diag.LogSink{Log: opt.Log}, diag.MetricsSink{M: m}))

	st := store.New(nil)
	s := &Server{
		cfg:       opt.Cfg,
		log:       opt.Log,
		fromIndex: opt.FromIndex,
		st:        st,
		md:        render.NewMarkdownRenderer(render.SiteHooks()),
		tpl:       tpl,
		reg:       reg,
		metrics:   m,
		rec:       rec,
		once:      once,
		sseConns:  make(map[chan string]struct{}),
	}
	s.pipe = pipeline.New(st, pipeline.Options{
		Sink:         once,
		Weights:      relate.WeightsFrom(opt.Cfg.Relate),
		RelatedCount: opt.Cfg.Relate.Count,
		Bodies:       ingest.FileBodies{},
		Metrics:      m,
		Log:          opt.Log,
		RefOptions:   []refs.Option{refs.WithLegacyPrefix(opt.Cfg.Build.LegacyPrefixes...)},
	})
	return s, nil
}

func (s *Server) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// Pipeline exposes the query side, mainly for tests.
func (s *Server) Pipeline() *pipeline.Pipeline {
	return s.pipe
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	var err error
	if s.fromIndex {
		err = s.LoadIndex()
	} else {
		err = s.Reload(ctx)
	}
	if err != nil {
		return err
	}

	if s.cfg.Serve.Watch {
		if err := s.startWatch(ctx); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              s.cfg.Serve.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.cfg.Serve.Addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Reload ingests the source directory into a new snapshot and swaps it in.
// On failure the previous snapshot keeps serving.
func (s *Server) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	rec := diag.NewRecorder(0)
	docs, err := ingest.Load(ctx, ingest.Options{
		SourceDir:    s.cfg.Build.SourceDir,
		IncludeDraft: s.cfg.Build.IncludeDraft,
		Sink:         rec,
		Log:          s.log,
	})
	if err != nil {
		s.metrics.Reload(false)
		return fmt.Errorf("ingest: %w", err)
	}
	snap := store.NewSnapshot(docs, rec)
	s.install(snap, rec.All())
	s.catalogBuilt.Store(nil)

	s.log.Info().
		Int("documents", snap.Len()).
		Uint64("version", snap.Version()).
		Dur("took", time.Since(start)).
		Msg("reload complete")
	s.broadcastSSE("reload")
	return nil
}

// LoadIndex installs a snapshot hydrated from the catalog. Bodies are not
// resident.
func (s *Server) LoadIndex() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	idx, err := index.Open(index.OpenOptions{Path: s.cfg.Build.IndexPath, ReadOnly: true})
	if err != nil {
		s.metrics.Reload(false)
		return fmt.Errorf("serve: failed to open index: %w", err)
	}
	defer idx.Close()

	docs, err := idx.Documents()
	if err != nil {
		s.metrics.Reload(false)
		return err
	}
	builtAt, err := idx.BuiltAt()
	if err != nil {
		s.metrics.Reload(false)
		return fmt.Errorf("serve: failed to read index build time: %w", err)
	}
	rec := diag.NewRecorder(0)
	snap := store.NewSnapshot(docs, rec)
	s.install(snap, rec.All())
	s.catalogBuilt.Store(&builtAt)
	s.log.Info().
		Int("documents", snap.Len()).
		Str("index", s.cfg.Build.IndexPath).
		Time("built_at", builtAt).
		Msg("loaded catalog")
	return nil
}

// install swaps snap in and replays the diagnostics gathered while it was
// built, so the recorder describes the current snapshot only.
func (s *Server) install(snap *store.Snapshot, found []diag.Diagnostic) {
	s.rec.Reset()
	s.once.Reset()
	for _, d := range found {
		s.once.Report(d)
	}
	s.st.Replace(snap)
	s.metrics.SetDocuments(snap.Len())
	s.metrics.Reload(true)
}

func (s *Server) startWatch(ctx context.Context) error {
	var err error
	s.watchOnce.Do(func() {
		w, e := fsnotify.NewWatcher()
		if e != nil {
			err = e
			return
		}
		s.watcher = w

		err = addDirs(w, s.cfg.Build.SourceDir)
		if err != nil {
			return
		}
		go s.watchLoop(ctx)
	})
	return err
}

func addDirs(w *fsnotify.Watcher, root string) error {
	dirs, err := ingest.Dirs(root)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}
	return nil
}

func (s *Server) watchLoop(ctx context.Context) {
	s.log.Info().Str("dir", s.cfg.Build.SourceDir).Msg("watching for file changes")
	delay := s.cfg.Serve.Debounce
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	debounce := time.NewTimer(time.Hour)
	debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create != 0 {
				// new subdirectories need their own watch
				_ = addDirs(s.watcher, ev.Name)
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 &&
				!isHidden(ev.Name) {
				debounce.Reset(delay)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn().Err(err).Msg("watcher error")
		case <-debounce.C:
			ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := s.Reload(ctx2); err != nil {
				s.log.Error().Err(err).Msg("reload failed")
			}
			cancel()
		}
	}
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return len(base) > 0 && base[0] == '.'
}

// documentsByTag filters docs to those carrying tag.
func documentsByTag(docs []content.Document, tag string) []content.Document {
	out := docs[:0:0]
	for _, d := range docs {
		for _, t := range d.Meta.Tags {
			if t == tag {
				out = append(out, d)
				break
			}
		}
	}
	return out
}
