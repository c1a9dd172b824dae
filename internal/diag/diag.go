// Package diag collects non-fatal content problems: malformed metadata,
// unresolved references, bodies that could not be loaded and duplicate
// identifiers. None of them fail a query.
package diag

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"blogpipe/internal/metrics"
)

type Kind string

const (
	KindMalformedMetadata   Kind = "malformed_metadata"
	KindUnresolvedReference Kind = "unresolved_reference"
	KindLoadFailure         Kind = "load_failure"
	KindDuplicateID         Kind = "duplicate_id"
)

type Diagnostic struct {
	Kind   Kind   `json:"kind"`
	DocID  string `json:"doc"`
	Field  string `json:"field,omitempty"`
	Detail string `json:"detail"`
	Line   int    `json:"line,omitempty"`
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s %s", d.Kind, d.DocID)
	if d.Field != "" {
		s += " " + d.Field
	}
	if d.Line > 0 {
		s += fmt.Sprintf(":%d", d.Line)
	}
	return s + ": " + d.Detail
}

type Sink interface {
	Report(d Diagnostic)
}

type discard struct{}

func (discard) Report(Diagnostic) {}

// Discard drops every diagnostic.
var Discard Sink = discard{}

// Or returns s, or Discard when s is nil.
func Or(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

type multi []Sink

func (m multi) Report(d Diagnostic) {
	for _, s := range m {
		s.Report(d)
	}
}

func Multi(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// LogSink writes each diagnostic as a warn event.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) Report(d Diagnostic) {
	ev := s.Log.Warn().Str("kind", string(d.Kind)).Str("doc", d.DocID)
	if d.Field != "" {
		ev = ev.Str("field", d.Field)
	}
	if d.Line > 0 {
		ev = ev.Int("line", d.Line)
	}
	ev.Msg(d.Detail)
}

// MetricsSink counts diagnostics by kind.
type MetricsSink struct {
	M *metrics.Metrics
}

func (s MetricsSink) Report(d Diagnostic) {
	s.M.Diagnostic(string(d.Kind))
}

// Recorder keeps the most recent diagnostics in memory.
type Recorder struct {
	mu    sync.Mutex
	max   int
	items []Diagnostic
}

// NewRecorder keeps at most max entries; max <= 0 means unbounded.
func NewRecorder(max int) *Recorder {
	return &Recorder{max: max}
}

func (r *Recorder) Report(d Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, d)
	if r.max > 0 && len(r.items) > r.max {
		r.items = append([]Diagnostic(nil), r.items[len(r.items)-r.max:]...)
	}
}

func (r *Recorder) All() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Diagnostic(nil), r.items...)
}

func (r *Recorder) Kind(k Kind) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.All() {
		if d.Kind == k {
			out = append(out, d)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.items = nil
	r.mu.Unlock()
}

// Once forwards each distinct diagnostic a single time. Queries that run on
// every request use it so a broken link is reported once per snapshot, not
// once per view.
type Once struct {
	next Sink
	mu   sync.Mutex
	seen map[Diagnostic]struct{}
}

func NewOnce(next Sink) *Once {
	return &Once{next: Or(next), seen: map[Diagnostic]struct{}{}}
}

func (o *Once) Report(d Diagnostic) {
	o.mu.Lock()
	if _, ok := o.seen[d]; ok {
		o.mu.Unlock()
		return
	}
	o.seen[d] = struct{}{}
	o.mu.Unlock()
	o.next.Report(d)
}

// Reset forgets what was reported, typically after a reload.
func (o *Once) Reset() {
	o.mu.Lock()
	o.seen = map[Diagnostic]struct{}{}
	o.mu.Unlock()
}
