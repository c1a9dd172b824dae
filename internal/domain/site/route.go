package site

import (
	"net/url"
	"strings"
)

const (
	// BlogsPrefix is the canonical path prefix of a document.
	BlogsPrefix = "/blogs/"
	// LegacyPrefix is the path shape used before /blogs/; it redirects.
	LegacyPrefix = "/blog/"
)

type RouteKind string

const (
	RouteIndex    RouteKind = "index"
	RoutePost     RouteKind = "post"
	RouteLegacy   RouteKind = "legacy"
	RouteNotFound RouteKind = "404"
)

type Route struct {
	Kind    RouteKind
	Slug    string
	Target  string
	OutPath string
}

func (r Route) String() string {
	var parts []string
	parts = append(parts, string(r.Kind))
	if r.Slug != "" {
		parts = append(parts, "slug="+r.Slug)
	}
	if r.Target != "" {
		parts = append(parts, "target="+r.Target)
	}
	if r.OutPath != "" {
		parts = append(parts, "out="+r.OutPath)
	}
	return strings.Join(parts, " ")
}

// PostPath is the canonical link for a document identifier. Identifiers
// keep non-ASCII letters, so the segment is percent-encoded.
func PostPath(id string) string {
	return BlogsPrefix + url.PathEscape(id)
}
