// Package store holds the document set as immutable snapshots. A Store
// points at the current snapshot and swaps it atomically on reload, so a
// query that took a snapshot never sees a partially updated set.
package store

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"blogpipe/internal/diag"
	"blogpipe/internal/domain/content"
)

// Reader is the read side every pipeline component depends on.
type Reader interface {
	Get(id string) (content.Document, bool)
	All() []content.Document
}

type Snapshot struct {
	docs     map[string]content.Document
	ids      []string
	aliases  map[string]string
	version  uint64
	loadedAt time.Time
}

var versions atomic.Uint64

// NewSnapshot indexes docs by identifier. On duplicate identifiers the first
// document wins; docs is expected in source path order. Aliases that collide
// with an identifier or with another document's alias are dropped.
func NewSnapshot(docs []content.Document, sink diag.Sink) *Snapshot {
	sink = diag.Or(sink)
	s := &Snapshot{
		docs:     make(map[string]content.Document, len(docs)),
		aliases:  make(map[string]string),
		version:  versions.Add(1),
		loadedAt: time.Now(),
	}

	for _, d := range docs {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			continue
		}
		if prev, ok := s.docs[id]; ok {
			sink.Report(diag.Diagnostic{
				Kind:   diag.KindDuplicateID,
				DocID:  id,
				Detail: fmt.Sprintf("%s duplicates %s, skipped", d.Source.SourcePath, prev.Source.SourcePath),
			})
			continue
		}
		s.docs[id] = d
		s.ids = append(s.ids, id)
	}
	sort.Strings(s.ids)

	claimed := make(map[string]string)
	for _, id := range s.ids {
		for _, alias := range s.docs[id].Meta.Aliases {
			alias = cleanAlias(alias)
			if alias == "" || alias == id {
				continue
			}
			if _, ok := s.docs[alias]; ok {
				sink.Report(diag.Diagnostic{
					Kind:   diag.KindDuplicateID,
					DocID:  id,
					Field:  "aliases",
					Detail: fmt.Sprintf("alias %q is the identifier of another document, ignored", alias),
				})
				continue
			}
			if owner, ok := claimed[alias]; ok && owner != id {
				sink.Report(diag.Diagnostic{
					Kind:   diag.KindDuplicateID,
					DocID:  id,
					Field:  "aliases",
					Detail: fmt.Sprintf("alias %q already belongs to %s, ignored", alias, owner),
				})
				continue
			}
			claimed[alias] = id
			s.aliases[alias] = id
		}
	}
	return s
}

// cleanAlias accepts either a bare identifier or an old path such as
// "/blog/old-name/".
func cleanAlias(a string) string {
	a = strings.TrimSpace(a)
	a = strings.Trim(a, "/")
	if i := strings.LastIndex(a, "/"); i >= 0 {
		a = a[i+1:]
	}
	return a
}

func (s *Snapshot) Get(id string) (content.Document, bool) {
	if s == nil {
		return content.Document{}, false
	}
	d, ok := s.docs[id]
	return d, ok
}

// All returns a copy of every document ordered by identifier.
func (s *Snapshot) All() []content.Document {
	if s == nil {
		return nil
	}
	out := make([]content.Document, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.docs[id])
	}
	return out
}

// Resolve maps an identifier or a legacy alias to the current identifier.
func (s *Snapshot) Resolve(idOrAlias string) (string, bool) {
	if s == nil {
		return "", false
	}
	if _, ok := s.docs[idOrAlias]; ok {
		return idOrAlias, true
	}
	id, ok := s.aliases[idOrAlias]
	return id, ok
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// Version increases with every snapshot built in this process.
func (s *Snapshot) Version() uint64 {
	if s == nil {
		return 0
	}
	return s.version
}

func (s *Snapshot) LoadedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.loadedAt
}

// Aliases returns alias -> identifier, for redirect generation.
func (s *Snapshot) Aliases() map[string]string {
	if s == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(s.aliases))
	for k, v := range s.aliases {
		out[k] = v
	}
	return out
}

type Store struct {
	cur atomic.Pointer[Snapshot]
}

func New(snap *Snapshot) *Store {
	if snap == nil {
		snap = NewSnapshot(nil, nil)
	}
	s := &Store{}
	s.cur.Store(snap)
	return s
}

// Snapshot returns the current snapshot. Callers that run several queries
// should take it once and query it, not the Store.
func (s *Store) Snapshot() *Snapshot {
	return s.cur.Load()
}

// Replace installs snap and returns the previous snapshot.
func (s *Store) Replace(snap *Snapshot) *Snapshot {
	if snap == nil {
		snap = NewSnapshot(nil, nil)
	}
	return s.cur.Swap(snap)
}

func (s *Store) Get(id string) (content.Document, bool) {
	return s.Snapshot().Get(id)
}

func (s *Store) All() []content.Document {
	return s.Snapshot().All()
}

func (s *Store) Resolve(idOrAlias string) (string, bool) {
	return s.Snapshot().Resolve(idOrAlias)
}
