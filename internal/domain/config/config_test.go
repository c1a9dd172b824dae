package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domainerr "blogpipe/internal/domain/errors"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "site.yaml"))
	require.NoError(t, err)
	require.Equal(t, "blogs", cfg.Build.SourceDir)
	require.Equal(t, 3, cfg.Relate.Count)
	require.False(t, cfg.Build.Now.IsZero())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
site:
  title: Notes
build:
  legacy_prefixes: [/posts, /archive/]
serve:
  debounce: 500ms
relate:
  count: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "Notes", cfg.Site.Title)
	require.Equal(t, "http://localhost:8080", cfg.Site.SiteURL)
	require.Equal(t, 500*time.Millisecond, cfg.Serve.Debounce)
	require.Equal(t, []string{"/posts", "/archive/"}, cfg.Build.LegacyPrefixes)
	require.Equal(t, "blogs", cfg.Build.SourceDir)
	require.Equal(t, 5, cfg.Relate.Count)
	require.InDelta(t, 1.0, cfg.Relate.TagWeight, 0)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BLOGPIPE_SOURCE_DIR", "content")
	t.Setenv("BLOGPIPE_INCLUDE_DRAFT", "true")
	t.Setenv("BLOGPIPE_ADDR", "  ")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "content", cfg.Build.SourceDir)
	require.True(t, cfg.Build.IncludeDraft)
	require.Equal(t, ":8080", cfg.Serve.Addr, "blank values are ignored")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("BLOGPIPE_PUBLIC_DIR=out\n"), 0o644))
	t.Setenv("BLOGPIPE_PUBLIC_DIR", "")
	require.NoError(t, os.Unsetenv("BLOGPIPE_PUBLIC_DIR"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env"), env))
	cfg, err := Load(filepath.Join(dir, "site.yaml"))
	require.NoError(t, err)
	require.Equal(t, "out", cfg.Build.PublicDir)

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env")))
}

func TestValidate_CollectsFieldErrors(t *testing.T) {
	cfg := Default()
	cfg.Site.SiteURL = "ftp://example.com"
	cfg.Relate.TagWeight = 0.5
	cfg.Relate.ProximityWeight = 0.5
	cfg.Log.Level = "loud"
	cfg.Build.LegacyPrefixes = []string{"/posts", "posts", "old"}

	err := cfg.Validate()
	require.ErrorIs(t, err, domainerr.ErrInvalid)

	var ve domainerr.ValidationError
	require.ErrorAs(t, err, &ve)
	var fields []string
	for _, it := range ve.Items {
		fields = append(fields, it.Field)
	}
	require.ElementsMatch(t, []string{"site.site_url", "build.legacy_prefixes", "relate.tag_weight", "log.level"}, fields)

	require.NoError(t, Default().Validate())
}
