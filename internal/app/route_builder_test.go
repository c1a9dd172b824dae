package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"blogpipe/internal/domain/content"
	"blogpipe/internal/domain/site"
	"blogpipe/internal/store"
)

func TestBuildRoutes(t *testing.T) {
	snap := store.NewSnapshot([]content.Document{
		{ID: "b"},
		{ID: "a", Meta: content.Metadata{Aliases: []string{"old-a"}}},
	}, nil)
	rb := &RouteBuilder{Snapshot: snap}

	var got []string
	for _, r := range rb.BuildRoutes() {
		got = append(got, r.String())
	}
	require.Equal(t, []string{
		"index out=blogs/index.html",
		"post slug=a out=blogs/a/index.html",
		"post slug=b out=blogs/b/index.html",
		"legacy slug=a target=/blogs/a out=blog/a/index.html",
		"legacy slug=b target=/blogs/b out=blog/b/index.html",
		"legacy slug=old-a target=/blogs/a out=blogs/old-a/index.html",
		"legacy slug=old-a target=/blogs/a out=blog/old-a/index.html",
		"404 out=404.html",
	}, got)
}

func TestBuildRoutes_Empty(t *testing.T) {
	rb := &RouteBuilder{Snapshot: store.NewSnapshot(nil, nil)}
	routes := rb.BuildRoutes()
	require.Len(t, routes, 2)
	require.Equal(t, site.RouteIndex, routes[0].Kind)
	require.Equal(t, site.RouteNotFound, routes[1].Kind)
}
