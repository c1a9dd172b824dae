package serve

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blogpipe/internal/domain/content"
	"blogpipe/internal/domain/site"
	"blogpipe/internal/pipeline"
	"blogpipe/internal/render"
)

// Handler returns the full route table wrapped in request-id and access log
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/blogs", http.StatusFound)
	})
	mux.HandleFunc("GET /blogs", s.handleList)
	mux.HandleFunc("GET /blogs/{$}", s.handleList)
	mux.HandleFunc("GET /blogs/{id}", s.handlePost)
	mux.HandleFunc("GET /blogs/{id}/{$}", s.handlePost)
	mux.HandleFunc("GET /blog/{id}", s.handleLegacy)
	mux.HandleFunc("GET /blog/{id}/{$}", s.handleLegacy)

	mux.HandleFunc("GET /api/blogs", s.apiList)
	mux.HandleFunc("GET /api/blogs/{id}", s.apiPage)
	mux.HandleFunc("GET /api/blogs/{id}/outline", s.apiOutline)
	mux.HandleFunc("GET /api/blogs/{id}/related", s.apiRelated)
	mux.HandleFunc("GET /api/blogs/{id}/navigation", s.apiNavigation)
	mux.HandleFunc("GET /api/diagnostics", s.apiDiagnostics)

	mux.Handle("GET /metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", s.handleHealth)

	// dev SSE
	mux.HandleFunc("GET /dev/events", s.handleSSE)

	staticDir := filepath.Join(s.cfg.Build.ThemeDir, s.cfg.Site.Theme, "static")
	fileServer := http.FileServer(http.Dir(staticDir))
	mux.Handle("GET /css/", fileServer)
	mux.Handle("GET /js/", fileServer)
	mux.Handle("GET /images/", fileServer)
	mux.Handle("GET /favicon.ico", fileServer)

	mux.HandleFunc("/", s.handleNotFound)

	return withRequestID(s.logRequests(mux))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	items := s.pipe.List()
	title := "All posts"
	if tag := r.URL.Query().Get("tag"); tag != "" {
		items = documentsByTag(items, content.NormalizeTag(tag))
		title = fmt.Sprintf("Tagged %q", tag)
	}
	page := render.ListPage{
		Site:      s.cfg.Site,
		Title:     title,
		Items:     items,
		Total:     len(items),
		Generated: time.Now(),
		DevReload: s.cfg.Serve.Watch,
	}
	out, err := s.tpl.RenderList(r.Context(), page)
	if err != nil {
		s.renderError(w, r, "list", err)
		return
	}
	writeHTML(w, http.StatusOK, out)
}

// handlePost serves /blogs/{id}. An alias answers with a permanent redirect
// to the canonical path.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	page := s.pipe.Page(r.Context(), r.PathValue("id"))
	switch page.Status {
	case pipeline.StatusNotFound:
		s.handleNotFound(w, r)
		return
	case pipeline.StatusUnavailable:
		s.handleUnavailable(w, r, page)
		return
	}
	if page.Redirected() {
		http.Redirect(w, r, site.PostPath(page.Doc.ID), http.StatusMovedPermanently)
		return
	}

	html, err := s.md.Render([]byte(page.Body))
	if err != nil {
		s.renderError(w, r, "markdown", err)
		return
	}
	pp := render.NewPostPage(s.cfg.Site, page, html)
	pp.DevReload = s.cfg.Serve.Watch

	out, err := s.tpl.RenderPost(r.Context(), pp)
	if err != nil {
		s.renderError(w, r, "post", err)
		return
	}
	writeHTML(w, http.StatusOK, out)
}

func (s *Server) handleLegacy(w http.ResponseWriter, r *http.Request) {
	id, ok := s.st.Resolve(r.PathValue("id"))
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	http.Redirect(w, r, site.PostPath(id), http.StatusMovedPermanently)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	page := render.NotFoundPage{
		Site: s.cfg.Site,
		Path: r.URL.Path,
	}
	out, err := s.tpl.RenderNotFound(r.Context(), page)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	writeHTML(w, http.StatusNotFound, out)
}

func (s *Server) handleUnavailable(w http.ResponseWriter, r *http.Request, page pipeline.Page) {
	out, err := s.tpl.RenderUnavailable(r.Context(), render.UnavailablePage{
		Site:  s.cfg.Site,
		ID:    page.Doc.ID,
		Title: page.Doc.Meta.Title,
	})
	if err != nil {
		http.Error(w, "content unavailable", http.StatusServiceUnavailable)
		return
	}
	writeHTML(w, http.StatusServiceUnavailable, out)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, what string, err error) {
	requestLogger(r, s.log).Error().Err(err).Str("page", what).Msg("render failed")
	http.Error(w, "render error", http.StatusInternalServerError)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.st.Snapshot()
	out := map[string]any{
		"status":    "ok",
		"source":    "files",
		"documents": snap.Len(),
		"version":   snap.Version(),
		"loaded_at": snap.LoadedAt(),
	}
	if built := s.catalogBuilt.Load(); built != nil {
		out["source"] = "catalog"
		out["catalog_built_at"] = *built
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan string, 8)

	s.sseMu.Lock()
	s.sseConns[ch] = struct{}{}
	s.sseMu.Unlock()

	defer func() {
		s.sseMu.Lock()
		delete(s.sseConns, ch)
		close(ch)
		s.sseMu.Unlock()
	}()
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %d\n\n", event, s.st.Snapshot().Version())
			flusher.Flush()
		}
	}
}

func (s *Server) broadcastSSE(event string) {
	s.sseMu.Lock()
	defer s.sseMu.Unlock()
	for ch := range s.sseConns {
		select {
		case ch <- event:
		default:
		}
	}
}

func writeHTML(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
