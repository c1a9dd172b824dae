// Package refs finds references from one document body to another and
// rewrites them to the canonical /blogs/<id> form.
package refs

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"blogpipe/internal/diag"
	"blogpipe/internal/domain/content"
	"blogpipe/internal/domain/site"
	"blogpipe/internal/outline"
)

// Resolver maps an identifier or alias to the current identifier.
type Resolver interface {
	Resolve(idOrAlias string) (string, bool)
}

type Rewriter struct {
	resolver  Resolver
	sink      diag.Sink
	canonical string
	legacy    []string
}

type Option func(*Rewriter)

// WithLegacyPrefix adds path prefixes treated as internal references, next
// to /blog/. Blank entries are ignored.
func WithLegacyPrefix(prefixes ...string) Option {
	return func(r *Rewriter) {
		for _, prefix := range prefixes {
			if prefix = strings.TrimSpace(prefix); prefix != "" {
				if !strings.HasSuffix(prefix, "/") {
					prefix += "/"
				}
				r.legacy = append(r.legacy, prefix)
			}
		}
	}
}

func New(resolver Resolver, sink diag.Sink, opts ...Option) *Rewriter {
	r := &Rewriter{
		resolver:  resolver,
		sink:      diag.Or(sink),
		canonical: site.BlogsPrefix,
		legacy:    []string{site.LegacyPrefix},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

var (
	// [text](target "title"); group 1 marks an image, 3 is the destination.
	// The text may hold one level of brackets, as in [![alt](img.png)](target)
	// or [see [1]](target).
	inlineLink = regexp.MustCompile(`(!?)\[((?:[^\[\]]|\[[^\[\]]*\](?:\([^()\s]*\))?)*)\]\(\s*(<[^>\n]*>|[^\s)]+)(?:\s+(?:"[^"]*"|'[^']*'))?\s*\)`)
	// [label]: target
	refDefinition = regexp.MustCompile(`^ {0,3}\[([^\]]+)\]:[ \t]*(<[^>\n]*>|\S+)`)
	// <a href="target">
	htmlHref = regexp.MustCompile(`<a\s[^>]*?href\s*=\s*["']([^"']+)["']`)
)

type match struct {
	text       string
	start, end int // destination byte range within the line
}

type target struct {
	id       string
	suffix   string
	internal bool
}

// Scan lists the internal references in body without changing it.
func (r *Rewriter) Scan(body string) []content.Reference {
	var out []content.Reference
	r.walk(body, func(lineNo int, line string, m match) string {
		dest := line[m.start:m.end]
		ref, _ := r.resolve(dest, m.text, lineNo)
		if ref != nil {
			out = append(out, *ref)
		}
		return dest
	})
	return out
}

// Rewrite returns body with every resolvable internal reference pointing at
// its canonical path. Unresolved references are left byte-for-byte and
// reported to the diagnostics sink. Rewriting canonical text is a no-op.
func (r *Rewriter) Rewrite(docID, body string) (string, []content.Reference) {
	var out []content.Reference
	rewritten := r.walk(body, func(lineNo int, line string, m match) string {
		dest := line[m.start:m.end]
		ref, replacement := r.resolve(dest, m.text, lineNo)
		if ref == nil {
			return dest
		}
		out = append(out, *ref)
		if !ref.Resolved {
			r.sink.Report(Unresolved(docID, *ref))
			return dest
		}
		return replacement
	})
	return rewritten, out
}

// Unresolved is the diagnostic reported for a reference that matches no
// document.
func Unresolved(docID string, ref content.Reference) diag.Diagnostic {
	return diag.Diagnostic{
		Kind:   diag.KindUnresolvedReference,
		DocID:  docID,
		Line:   ref.Line,
		Detail: fmt.Sprintf("reference to %s does not match any document", ref.Target),
	}
}

// walk visits every link destination outside code and replaces it with the
// value returned by fn.
func (r *Rewriter) walk(body string, fn func(lineNo int, line string, m match) string) string {
	lines := strings.Split(body, "\n")
	var fence string
	changed := false

	for i, line := range lines {
		if f, ok := outline.Fence(line); ok {
			switch {
			case fence == "":
				fence = f
			case strings.HasPrefix(f, fence) && strings.TrimSpace(line) == f:
				fence = ""
			}
			continue
		}
		if fence != "" {
			continue
		}

		matches := findDestinations(line)
		if len(matches) == 0 {
			continue
		}
		var b strings.Builder
		last := 0
		for _, m := range matches {
			if m.start < last {
				continue
			}
			b.WriteString(line[last:m.start])
			b.WriteString(fn(i+1, line, m))
			last = m.end
		}
		b.WriteString(line[last:])
		if nl := b.String(); nl != line {
			lines[i] = nl
			changed = true
		}
	}
	if !changed {
		return body
	}
	return strings.Join(lines, "\n")
}

func findDestinations(line string) []match {
	masked := maskCodeSpans(line)
	var out []match

	if m := refDefinition.FindStringSubmatchIndex(masked); m != nil {
		s, e := trimAngle(masked, m[4], m[5])
		out = append(out, match{text: line[m[2]:m[3]], start: s, end: e})
		return out
	}
	for _, m := range inlineLink.FindAllStringSubmatchIndex(masked, -1) {
		if m[3] > m[2] {
			continue // image
		}
		s, e := trimAngle(masked, m[6], m[7])
		out = append(out, match{text: line[m[4]:m[5]], start: s, end: e})
	}
	for _, m := range htmlHref.FindAllStringSubmatchIndex(masked, -1) {
		out = append(out, match{start: m[2], end: m[3]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func trimAngle(s string, start, end int) (int, int) {
	if end-start >= 2 && s[start] == '<' && s[end-1] == '>' {
		return start + 1, end - 1
	}
	return start, end
}

// maskCodeSpans blanks inline code so links inside backticks are not seen.
// Offsets are preserved.
func maskCodeSpans(line string) string {
	if !strings.Contains(line, "`") {
		return line
	}
	b := []byte(line)
	i := 0
	for i < len(b) {
		if b[i] != '`' {
			i++
			continue
		}
		n := 0
		for i+n < len(b) && b[i+n] == '`' {
			n++
		}
		open := i
		closeAt := -1
		for j := open + n; j < len(b); {
			if b[j] != '`' {
				j++
				continue
			}
			m := 0
			for j+m < len(b) && b[j+m] == '`' {
				m++
			}
			if m == n {
				closeAt = j
				break
			}
			j += m
		}
		if closeAt < 0 {
			i = open + n
			continue
		}
		for k := open; k < closeAt+n; k++ {
			b[k] = ' '
		}
		i = closeAt + n
	}
	return string(b)
}

// resolve classifies dest. A nil reference means dest is external.
func (r *Rewriter) resolve(dest, text string, lineNo int) (*content.Reference, string) {
	t := r.classify(dest)
	if !t.internal {
		return nil, dest
	}
	ref := &content.Reference{
		Text:   text,
		Target: dest,
		Line:   lineNo,
	}
	id, ok := r.lookup(t.id)
	if !ok {
		return ref, dest
	}
	ref.ID = id
	ref.Resolved = true
	ref.Canonical = r.canonical + url.PathEscape(id) + normalizeSuffix(t.suffix)
	return ref, ref.Canonical
}

func (r *Rewriter) lookup(id string) (string, bool) {
	if r.resolver == nil || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	if got, ok := r.resolver.Resolve(id); ok {
		return got, true
	}
	if lower := strings.ToLower(id); lower != id {
		return r.resolver.Resolve(lower)
	}
	return "", false
}

// classify applies the fixed prefix rule: only the canonical and legacy
// document prefixes are internal.
func (r *Rewriter) classify(dest string) target {
	var rest string
	switch {
	case strings.HasPrefix(dest, r.canonical):
		rest = dest[len(r.canonical):]
	default:
		found := false
		for _, p := range r.legacy {
			if strings.HasPrefix(dest, p) {
				rest, found = dest[len(p):], true
				break
			}
		}
		if !found {
			return target{}
		}
	}

	path, suffix := rest, ""
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		path, suffix = rest[:i], rest[i:]
	}
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return target{}
	}
	lower := strings.ToLower(path)
	for _, ext := range []string{".markdown", ".md"} {
		if strings.HasSuffix(lower, ext) {
			path = path[:len(path)-len(ext)]
			break
		}
	}
	if un, err := url.PathUnescape(path); err == nil {
		path = un
	}
	return target{id: path, suffix: suffix, internal: true}
}

// normalizeSuffix keeps the query and re-anchors the fragment with the same
// normalisation headings use.
func normalizeSuffix(suffix string) string {
	if suffix == "" {
		return ""
	}
	query, frag := suffix, ""
	if i := strings.Index(suffix, "#"); i >= 0 {
		query, frag = suffix[:i], suffix[i+1:]
	}
	if query == "?" {
		query = ""
	}
	if frag != "" {
		if un, err := url.PathUnescape(frag); err == nil {
			frag = un
		}
		if a := outline.Anchor(frag); a != "" {
			return query + "#" + a
		}
	}
	return query
}
