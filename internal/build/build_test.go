package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"blogpipe/internal/diag"
	"blogpipe/internal/domain/config"
	"blogpipe/internal/metrics"
)

const postA = `---
title: Post A
date: 2024-01-02
tags: [go]
aliases: [old-a]
---
# Post A
See [b](/blog/b) and [gone](/blog/gone).
`

const postB = `---
title: Post B
date: 2024-01-05
tags: go, web
---
## Intro
Back to [a](/blogs/a/).
`

func setup(t *testing.T) (config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "blogs")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.md"), []byte(postA), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.md"), []byte(postB), 0o644))

	cfg := config.Default()
	cfg.Build.SourceDir = src
	cfg.Build.PublicDir = filepath.Join(dir, "public")
	cfg.Build.ThemeDir = filepath.Join(dir, "themes")
	cfg.Build.IndexPath = filepath.Join(dir, ".blogpipe", "index.db")
	return cfg, dir
}

func read(t *testing.T, cfg config.Config, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(cfg.Build.PublicDir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(b)
}

func TestRun_WritesSite(t *testing.T) {
	cfg, _ := setup(t)
	m := metrics.New(prometheus.NewRegistry())

	res, err := (&Builder{Cfg: cfg, Metrics: m}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.Documents)
	require.Equal(t, 8, res.Written)
	require.Zero(t, res.Skipped)

	a := read(t, cfg, "blogs/a/index.html")
	require.Contains(t, a, `<h1 id="post-a">Post A</h1>`)
	require.Contains(t, a, `<a href="/blogs/b">b</a>`)
	require.Contains(t, a, `<a href="/blog/gone">gone</a>`)
	require.Contains(t, a, `rel="next" href="/blogs/b"`)

	b := read(t, cfg, "blogs/b/index.html")
	require.Contains(t, b, `<a href="/blogs/a">a</a>`)
	require.Contains(t, b, `<a href="#intro">Intro</a>`)

	require.Contains(t, read(t, cfg, "blog/a/index.html"), "url=/blogs/a")
	require.Contains(t, read(t, cfg, "blogs/old-a/index.html"), "url=/blogs/a")
	require.Contains(t, read(t, cfg, "blog/old-a/index.html"), "url=/blogs/a")
	require.Contains(t, read(t, cfg, "blogs/index.html"), `<a href="/blogs/b">Post B</a>`)
	require.Contains(t, read(t, cfg, "404.html"), "Not found")

	var unresolved []diag.Diagnostic
	for _, d := range res.Diagnostics {
		if d.Kind == diag.KindUnresolvedReference {
			unresolved = append(unresolved, d)
		}
	}
	require.Len(t, unresolved, 1)
	require.Equal(t, "a", unresolved[0].DocID)

	require.InDelta(t, 8, testutil.ToFloat64(m.PagesWritten.WithLabelValues("written")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.Documents), 0)
}

func TestRun_SkipsUnchangedPages(t *testing.T) {
	cfg, _ := setup(t)
	b := &Builder{Cfg: cfg}

	_, err := b.Run(context.Background())
	require.NoError(t, err)

	res, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, res.Written)
	require.Equal(t, 8, res.Skipped)

	// a page deleted from disk is rewritten even though the catalog matches
	require.NoError(t, os.Remove(filepath.Join(cfg.Build.PublicDir, "404.html")))
	res, err = b.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Written)

	b.Force = true
	res, err = b.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 8, res.Written)
}

func TestRun_RemovesPagesOfDeletedDocuments(t *testing.T) {
	cfg, _ := setup(t)
	b := &Builder{Cfg: cfg}
	_, err := b.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(cfg.Build.SourceDir, "b.md")))
	res, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Documents)
	require.Equal(t, 2, res.Removed)

	_, err = os.Stat(filepath.Join(cfg.Build.PublicDir, "blogs", "b", "index.html"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(cfg.Build.PublicDir, "blog", "b", "index.html"))
	require.True(t, os.IsNotExist(err))

	// a now links to a missing document and has no neighbour
	a := read(t, cfg, "blogs/a/index.html")
	require.Contains(t, a, `<a href="/blog/b">b</a>`)
	require.NotContains(t, a, `rel="next"`)
}

func TestRun_MissingSourceDir(t *testing.T) {
	cfg, dir := setup(t)
	cfg.Build.SourceDir = filepath.Join(dir, "nope")
	_, err := (&Builder{Cfg: cfg}).Run(context.Background())
	require.Error(t, err)
}
