// Package pipeline composes the content queries over one store snapshot:
// resolve, rewrite references, outline, related documents and navigation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"blogpipe/internal/diag"
	"blogpipe/internal/domain/content"
	domainerr "blogpipe/internal/domain/errors"
	"blogpipe/internal/metrics"
	"blogpipe/internal/navigate"
	"blogpipe/internal/outline"
	"blogpipe/internal/refs"
	"blogpipe/internal/relate"
	"blogpipe/internal/store"
)

const DefaultRelatedCount = 3

// BodyLoader reads the body of a document that is not resident.
type BodyLoader interface {
	LoadBody(ctx context.Context, doc content.Document) (string, error)
}

type Options struct {
	Sink         diag.Sink
	Weights      relate.Weights
	RelatedCount int
	Bodies       BodyLoader
	Metrics      *metrics.Metrics
	Log          zerolog.Logger
	RefOptions   []refs.Option
}

type Status string

const (
	StatusOK          Status = "ok"
	StatusNotFound    Status = "not_found"
	StatusUnavailable Status = "unavailable"
)

// Page is everything the presentation layer needs for one document.
type Page struct {
	Status Status
	// Requested is the identifier or alias asked for; Doc.ID is canonical.
	Requested string
	Doc       content.Document

	Body       string
	Outline    []content.Heading
	References []content.Reference
	Related    []content.Scored
	Nav        content.Navigation
	Position   int
	Total      int

	Err error
}

// Redirected reports whether the page was requested by an alias.
func (p Page) Redirected() bool {
	return p.Status != StatusNotFound && p.Requested != p.Doc.ID
}

type Pipeline struct {
	st    *store.Store
	opts  Options
	sink  diag.Sink
	log   zerolog.Logger
	views atomic.Pointer[views]
}

// views caches per-snapshot structures.
type views struct {
	snap *store.Snapshot
	nav  *navigate.Navigator
}

func New(st *store.Store, opts Options) *Pipeline {
	if opts.RelatedCount <= 0 {
		opts.RelatedCount = DefaultRelatedCount
	}
	if opts.Weights == (relate.Weights{}) {
		opts.Weights = relate.DefaultWeights()
	}
	if st == nil {
		st = store.New(nil)
	}
	return &Pipeline{
		st:   st,
		opts: opts,
		sink: diag.Or(opts.Sink),
		log:  opts.Log,
	}
}

func (p *Pipeline) Store() *store.Store {
	return p.st
}

func (p *Pipeline) navigator(snap *store.Snapshot) *navigate.Navigator {
	if v := p.views.Load(); v != nil && v.snap == snap {
		return v.nav
	}
	v := &views{snap: snap, nav: navigate.New(snap)}
	p.views.Store(v)
	return v.nav
}

// Page resolves idOrAlias and runs every query for it. Unknown identifiers
// give StatusNotFound; a body that cannot be loaded gives StatusUnavailable.
// Neither is returned as an error.
func (p *Pipeline) Page(ctx context.Context, idOrAlias string) Page {
	start := time.Now()
	snap := p.st.Snapshot()
	page := Page{Requested: idOrAlias}

	doc, ok := p.lookup(snap, idOrAlias)
	if !ok {
		page.Status = StatusNotFound
		page.Err = fmt.Errorf("%s: %w", idOrAlias, domainerr.ErrNotFound)
		p.opts.Metrics.ObserveQuery("page", string(page.Status), start)
		return page
	}
	page.Doc = doc

	body, err := p.body(ctx, doc)
	if err != nil {
		page.Status = StatusUnavailable
		page.Err = err
		p.opts.Metrics.ObserveQuery("page", string(page.Status), start)
		return page
	}

	page.Body, page.References = p.rewriter(snap).Rewrite(doc.ID, body)
	page.Outline = outline.Extract(page.Body)
	page.Related = relate.New(snap, p.opts.Weights).Rank(doc.ID, p.opts.RelatedCount)

	nav := p.navigator(snap)
	page.Nav = nav.Neighbors(doc.ID)
	if i, total, ok := nav.Position(doc.ID); ok {
		page.Position, page.Total = i+1, total
	}
	page.Status = StatusOK

	p.opts.Metrics.ObserveQuery("page", string(page.Status), start)
	return page
}

// Outline returns the headings of the rewritten body.
func (p *Pipeline) Outline(ctx context.Context, idOrAlias string) ([]content.Heading, error) {
	body, _, err := p.Rewrite(ctx, idOrAlias)
	if err != nil {
		return nil, err
	}
	return outline.Extract(body), nil
}

// Rewrite returns the body of idOrAlias with internal references in
// canonical form.
func (p *Pipeline) Rewrite(ctx context.Context, idOrAlias string) (string, []content.Reference, error) {
	start := time.Now()
	snap := p.st.Snapshot()
	doc, ok := p.lookup(snap, idOrAlias)
	if !ok {
		p.opts.Metrics.ObserveQuery("rewrite", string(StatusNotFound), start)
		return "", nil, fmt.Errorf("%s: %w", idOrAlias, domainerr.ErrNotFound)
	}
	body, err := p.body(ctx, doc)
	if err != nil {
		p.opts.Metrics.ObserveQuery("rewrite", string(StatusUnavailable), start)
		return "", nil, err
	}
	out, found := p.rewriter(snap).Rewrite(doc.ID, body)
	p.opts.Metrics.ObserveQuery("rewrite", string(StatusOK), start)
	return out, found, nil
}

// Related ranks up to k documents related to idOrAlias. Unknown
// identifiers and k <= 0 give an empty result.
func (p *Pipeline) Related(idOrAlias string, k int) []content.Scored {
	out, _ := p.RelatedAt(p.st.Snapshot(), idOrAlias, k)
	return out
}

// RelatedAt is Related against snap, so a caller that already resolved an
// identifier on snap gets an answer from the same snapshot. ok is false for
// an unknown identifier.
func (p *Pipeline) RelatedAt(snap *store.Snapshot, idOrAlias string, k int) ([]content.Scored, bool) {
	start := time.Now()
	id, ok := snap.Resolve(idOrAlias)
	if !ok {
		p.opts.Metrics.ObserveQuery("related", string(StatusNotFound), start)
		return nil, false
	}
	out := relate.New(snap, p.opts.Weights).Rank(id, k)
	p.opts.Metrics.ObserveQuery("related", string(StatusOK), start)
	return out, true
}

// Neighbors returns the previous and next documents in publish order. Both
// are absent for an unknown identifier.
func (p *Pipeline) Neighbors(idOrAlias string) content.Navigation {
	pos, _ := p.PositionAt(p.st.Snapshot(), idOrAlias)
	return pos.Navigation
}

// Position places a document in publish order.
type Position struct {
	content.Navigation
	// Index is 1-based.
	Index int
	Total int
}

// PositionAt is Neighbors against snap, with the document's place in the
// sequence. ok is false for an unknown identifier.
func (p *Pipeline) PositionAt(snap *store.Snapshot, idOrAlias string) (Position, bool) {
	start := time.Now()
	id, ok := snap.Resolve(idOrAlias)
	if !ok {
		p.opts.Metrics.ObserveQuery("neighbors", string(StatusNotFound), start)
		return Position{}, false
	}
	nav := p.navigator(snap)
	pos := Position{Navigation: nav.Neighbors(id)}
	if i, total, ok := nav.Position(id); ok {
		pos.Index, pos.Total = i+1, total
	}
	p.opts.Metrics.ObserveQuery("neighbors", string(StatusOK), start)
	return pos, true
}

// List returns every document, newest first.
func (p *Pipeline) List() []content.Document {
	docs := p.navigator(p.st.Snapshot()).Documents()
	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}
	return docs
}

// Check scans every document for references that do not resolve and for
// bodies that cannot be loaded. Findings are also sent to the pipeline's
// sink.
func (p *Pipeline) Check(ctx context.Context) ([]diag.Diagnostic, error) {
	start := time.Now()
	snap := p.st.Snapshot()
	rec := diag.NewRecorder(0)
	sink := diag.Multi(rec, p.sink)
	rw := refs.New(snap, nil, p.opts.RefOptions...)

	for _, doc := range snap.All() {
		if err := ctx.Err(); err != nil {
			return rec.All(), err
		}
		body, err := p.loadBody(ctx, doc)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return rec.All(), err
			}
			sink.Report(diag.Diagnostic{Kind: diag.KindLoadFailure, DocID: doc.ID, Detail: err.Error()})
			continue
		}
		for _, ref := range rw.Scan(body) {
			if !ref.Resolved {
				sink.Report(refs.Unresolved(doc.ID, ref))
			}
		}
	}
	p.opts.Metrics.ObserveQuery("check", string(StatusOK), start)
	return rec.All(), nil
}

func (p *Pipeline) lookup(snap *store.Snapshot, idOrAlias string) (content.Document, bool) {
	id, ok := snap.Resolve(idOrAlias)
	if !ok {
		return content.Document{}, false
	}
	return snap.Get(id)
}

func (p *Pipeline) rewriter(snap *store.Snapshot) *refs.Rewriter {
	return refs.New(snap, p.sink, p.opts.RefOptions...)
}

// body loads doc's body and reports a load failure.
func (p *Pipeline) body(ctx context.Context, doc content.Document) (string, error) {
	body, err := p.loadBody(ctx, doc)
	if err != nil {
		p.sink.Report(diag.Diagnostic{Kind: diag.KindLoadFailure, DocID: doc.ID, Detail: err.Error()})
		p.log.Warn().Err(err).Str("doc", doc.ID).Msg("content unavailable")
	}
	return body, err
}

func (p *Pipeline) loadBody(ctx context.Context, doc content.Document) (string, error) {
	if doc.Loaded {
		return doc.Body, nil
	}
	if p.opts.Bodies == nil {
		return "", &domainerr.UnavailableError{ID: doc.ID, Err: errors.New("no body loader")}
	}
	body, err := p.opts.Bodies.LoadBody(ctx, doc)
	if err != nil {
		if errors.Is(err, domainerr.ErrContentUnavailable) {
			return "", err
		}
		return "", &domainerr.UnavailableError{ID: doc.ID, Err: err}
	}
	return body, nil
}
