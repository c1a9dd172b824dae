// Package navigate orders documents for sequential reading.
package navigate

import (
	"sort"

	"blogpipe/internal/domain/content"
	"blogpipe/internal/store"
)

// Order sorts docs by publish date ascending, then identifier ascending.
// Undated documents carry the zero time and come first. docs is not modified.
func Order(docs []content.Document) []content.Document {
	out := make([]content.Document, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Meta.Date.Equal(b.Meta.Date) {
			return a.Meta.Date.Before(b.Meta.Date)
		}
		return a.ID < b.ID
	})
	return out
}

// Navigator answers previous/next queries over one ordering. Build a new
// one per snapshot.
type Navigator struct {
	order []content.Document
	pos   map[string]int
}

func New(docs store.Reader) *Navigator {
	n := &Navigator{pos: map[string]int{}}
	if docs == nil {
		return n
	}
	n.order = Order(docs.All())
	for i, d := range n.order {
		n.pos[d.ID] = i
	}
	return n
}

// Neighbors returns the documents immediately before and after id. Both are
// nil when id is unknown.
func (n *Navigator) Neighbors(id string) content.Navigation {
	i, ok := n.pos[id]
	if !ok {
		return content.Navigation{}
	}
	var nav content.Navigation
	if i > 0 {
		prev := n.order[i-1]
		nav.Previous = &prev
	}
	if i+1 < len(n.order) {
		next := n.order[i+1]
		nav.Next = &next
	}
	return nav
}

// Position is the zero-based index of id in the order and the total count.
func (n *Navigator) Position(id string) (index, total int, ok bool) {
	i, ok := n.pos[id]
	if !ok {
		return -1, len(n.order), false
	}
	return i, len(n.order), true
}

// Documents returns the full ordering.
func (n *Navigator) Documents() []content.Document {
	out := make([]content.Document, len(n.order))
	copy(out, n.order)
	return out
}
