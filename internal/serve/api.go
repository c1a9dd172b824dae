package serve

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"blogpipe/internal/diag"
	"blogpipe/internal/domain/content"
	domainerr "blogpipe/internal/domain/errors"
	"blogpipe/internal/domain/site"
	"blogpipe/internal/pipeline"
)

type docSummary struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Date        *time.Time `json:"date,omitempty"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags"`
	URL         string     `json:"url"`
}

func summarize(d content.Document) docSummary {
	out := docSummary{
		ID:          d.ID,
		Title:       d.Meta.Title,
		Description: d.Meta.Description,
		Tags:        d.Meta.Tags,
		URL:         site.PostPath(d.ID),
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if d.Meta.HasDate() {
		t := d.Meta.Date
		out.Date = &t
	}
	return out
}

func summaryPtr(d *content.Document) *docSummary {
	if d == nil {
		return nil
	}
	s := summarize(*d)
	return &s
}

type scoredJSON struct {
	docSummary
	Score float64 `json:"score"`
}

type navigationJSON struct {
	Previous *docSummary `json:"previous"`
	Next     *docSummary `json:"next"`
	Position int         `json:"position,omitempty"`
	Total    int         `json:"total"`
}

type pageJSON struct {
	docSummary
	Requested  string              `json:"requested"`
	Aliases    []string            `json:"aliases,omitempty"`
	Body       string              `json:"body"`
	Outline    []content.Heading   `json:"outline"`
	References []content.Reference `json:"references"`
	Related    []scoredJSON        `json:"related"`
	Navigation navigationJSON      `json:"navigation"`
}

func scored(items []content.Scored) []scoredJSON {
	out := make([]scoredJSON, 0, len(items))
	for _, it := range items {
		out = append(out, scoredJSON{docSummary: summarize(it.Doc), Score: it.Score})
	}
	return out
}

func (s *Server) apiList(w http.ResponseWriter, r *http.Request) {
	items := s.pipe.List()
	if tag := r.URL.Query().Get("tag"); tag != "" {
		items = documentsByTag(items, content.NormalizeTag(tag))
	}
	out := make([]docSummary, 0, len(items))
	for _, d := range items {
		out = append(out, summarize(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) apiPage(w http.ResponseWriter, r *http.Request) {
	page := s.pipe.Page(r.Context(), r.PathValue("id"))
	if page.Status != pipeline.StatusOK {
		writeError(w, page.Err)
		return
	}
	out := pageJSON{
		docSummary: summarize(page.Doc),
		Requested:  page.Requested,
		Aliases:    page.Doc.Meta.Aliases,
		Body:       page.Body,
		Outline:    nonNil(page.Outline),
		References: nonNil(page.References),
		Related:    scored(page.Related),
		Navigation: navigationJSON{
			Previous: summaryPtr(page.Nav.Previous),
			Next:     summaryPtr(page.Nav.Next),
			Position: page.Position,
			Total:    page.Total,
		},
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) apiOutline(w http.ResponseWriter, r *http.Request) {
	headings, err := s.pipe.Outline(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(headings))
}

func (s *Server) apiRelated(w http.ResponseWriter, r *http.Request) {
	snap := s.st.Snapshot()
	id, ok := snap.Resolve(r.PathValue("id"))
	if !ok {
		writeError(w, domainerr.ErrNotFound)
		return
	}
	k := s.cfg.Relate.Count
	if k <= 0 {
		k = pipeline.DefaultRelatedCount
	}
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "k must be a non-negative integer"})
			return
		}
		k = n
	}
	related, _ := s.pipe.RelatedAt(snap, id, k)
	writeJSON(w, http.StatusOK, scored(related))
}

func (s *Server) apiNavigation(w http.ResponseWriter, r *http.Request) {
	pos, ok := s.pipe.PositionAt(s.st.Snapshot(), r.PathValue("id"))
	if !ok {
		writeError(w, domainerr.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, navigationJSON{
		Previous: summaryPtr(pos.Previous),
		Next:     summaryPtr(pos.Next),
		Position: pos.Index,
		Total:    pos.Total,
	})
}

func (s *Server) apiDiagnostics(w http.ResponseWriter, r *http.Request) {
	var items []diag.Diagnostic
	if kind := r.URL.Query().Get("kind"); kind != "" {
		items = s.rec.Kind(diag.Kind(kind))
	} else {
		items = s.rec.All()
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domainerr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domainerr.ErrContentUnavailable):
		status = http.StatusServiceUnavailable
	}
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
