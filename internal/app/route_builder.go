// Package app turns a store snapshot into the set of pages a static build
// produces.
package app

import (
	"path"
	"sort"

	"blogpipe/internal/domain/site"
	"blogpipe/internal/store"
)

type RouteBuilder struct {
	Snapshot *store.Snapshot
}

// BuildPostRoutes returns one canonical page per document, ordered by id.
func (rb *RouteBuilder) BuildPostRoutes() []site.Route {
	var routes []site.Route
	for _, d := range rb.Snapshot.All() {
		routes = append(routes, site.Route{
			Kind:    site.RoutePost,
			Slug:    d.ID,
			OutPath: path.Join("blogs", d.ID, "index.html"),
		})
	}
	return routes
}

// BuildLegacyRoutes returns redirect stubs: /blog/<id> for every document,
// and both /blogs/<alias> and /blog/<alias> for every alias.
func (rb *RouteBuilder) BuildLegacyRoutes() []site.Route {
	var routes []site.Route
	for _, d := range rb.Snapshot.All() {
		routes = append(routes, site.Route{
			Kind:    site.RouteLegacy,
			Slug:    d.ID,
			Target:  site.PostPath(d.ID),
			OutPath: path.Join("blog", d.ID, "index.html"),
		})
	}

	aliases := rb.Snapshot.Aliases()
	names := make([]string, 0, len(aliases))
	for a := range aliases {
		names = append(names, a)
	}
	sort.Strings(names)
	for _, a := range names {
		target := site.PostPath(aliases[a])
		routes = append(routes,
			site.Route{Kind: site.RouteLegacy, Slug: a, Target: target, OutPath: path.Join("blogs", a, "index.html")},
			site.Route{Kind: site.RouteLegacy, Slug: a, Target: target, OutPath: path.Join("blog", a, "index.html")},
		)
	}
	return routes
}

// BuildRoutes is every page of the site: the list, posts, redirects and
// the not-found page.
func (rb *RouteBuilder) BuildRoutes() []site.Route {
	routes := []site.Route{{Kind: site.RouteIndex, OutPath: path.Join("blogs", "index.html")}}
	routes = append(routes, rb.BuildPostRoutes()...)
	routes = append(routes, rb.BuildLegacyRoutes()...)
	return append(routes, site.Route{Kind: site.RouteNotFound, OutPath: "404.html"})
}
