package refs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"blogpipe/internal/diag"
	"blogpipe/internal/domain/content"
	"blogpipe/internal/store"
)

func testStore() *store.Snapshot {
	return store.NewSnapshot([]content.Document{
		{ID: "other", Meta: content.Metadata{Title: "Other", Aliases: []string{"older"}}},
		{ID: "intro-to-go", Meta: content.Metadata{Title: "Intro"}},
		{ID: "café", Meta: content.Metadata{Title: "Café"}},
	}, nil)
}

func TestRewrite_CanonicalExample(t *testing.T) {
	rec := diag.NewRecorder(0)
	r := New(testStore(), rec)

	body := "# Title\n## Sub A\nSome text [see](/blogs/other)"
	got, refs := r.Rewrite("post", body)

	require.Equal(t, body, got)
	require.Equal(t, []content.Reference{{
		Text: "see", Target: "/blogs/other", ID: "other", Canonical: "/blogs/other", Resolved: true, Line: 3,
	}}, refs)
	require.Empty(t, rec.All())
}

func TestRewrite_Shapes(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"legacy prefix", "[a](/blog/other)", "[a](/blogs/other)"},
		{"trailing slash", "[a](/blogs/other/)", "[a](/blogs/other)"},
		{"md extension", "[a](/blog/other.md)", "[a](/blogs/other)"},
		{"alias", "[a](/blogs/older)", "[a](/blogs/other)"},
		{"case", "[a](/blog/Intro-To-Go)", "[a](/blogs/intro-to-go)"},
		{"fragment normalised", "[a](/blog/other#Sub%20A)", "[a](/blogs/other#sub-a)"},
		{"query kept", "[a](/blog/other?x=1#top)", "[a](/blogs/other?x=1#top)"},
		{"title kept", `[a](/blog/other "Other post")`, `[a](/blogs/other "Other post")`},
		{"angle destination", "[a](</blog/other>)", "[a](</blogs/other>)"},
		{"reference definition", "[ref]: /blog/other", "[ref]: /blogs/other"},
		{"html anchor", `<a href="/blog/other">x</a>`, `<a href="/blogs/other">x</a>`},
		{"two on a line", "[a](/blog/other) and [b](/blog/intro-to-go)", "[a](/blogs/other) and [b](/blogs/intro-to-go)"},
		{"external untouched", "[a](https://example.com/blog/other)", "[a](https://example.com/blog/other)"},
		{"relative untouched", "[a](other.md)", "[a](other.md)"},
		{"fragment only untouched", "[a](#other)", "[a](#other)"},
		{"list page untouched", "[all](/blogs/)", "[all](/blogs/)"},
		{"image untouched", "![pic](/blog/other)", "![pic](/blog/other)"},
		{"linked image", "[![b](i.png)](/blog/other)", "[![b](i.png)](/blogs/other)"},
		{"linked image with internal src", "[![b](/img/a.png)](/blog/older)", "[![b](/img/a.png)](/blogs/other)"},
		{"brackets in text", "[see [1]](/blog/other)", "[see [1]](/blogs/other)"},
		{"escaped identifier", "[a](/blog/café)", "[a](/blogs/caf%C3%A9)"},
		{"inline code untouched", "`[a](/blog/other)` and [b](/blog/other)", "`[a](/blog/other)` and [b](/blogs/other)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := New(testStore(), nil).Rewrite("post", tt.in)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRewrite_SkipsFencedCode(t *testing.T) {
	body := "```md\n[a](/blog/other)\n```\n[b](/blog/other)\n"
	got, refs := New(testStore(), nil).Rewrite("post", body)
	require.Equal(t, "```md\n[a](/blog/other)\n```\n[b](/blogs/other)\n", got)
	require.Len(t, refs, 1)
}

func TestRewrite_UnresolvedPassesThrough(t *testing.T) {
	rec := diag.NewRecorder(0)
	body := "see [gone](/blog/gone) and [nested](/blogs/2020/other)"

	got, refs := New(testStore(), rec).Rewrite("post", body)

	require.Equal(t, body, got)
	require.Len(t, refs, 2)
	require.False(t, refs[0].Resolved)
	require.Equal(t, "gone", refs[0].Text)
	require.Empty(t, refs[0].Canonical)

	unresolved := rec.Kind(diag.KindUnresolvedReference)
	require.Len(t, unresolved, 2)
	require.Equal(t, "post", unresolved[0].DocID)
	require.Equal(t, 1, unresolved[0].Line)
}

func TestRewrite_LinkedImageUnresolved(t *testing.T) {
	rec := diag.NewRecorder(0)
	body := "[![b](i.png)](/blogs/gone)"

	got, refs := New(testStore(), rec).Rewrite("post", body)

	require.Equal(t, body, got)
	require.Len(t, refs, 1)
	require.Equal(t, "![b](i.png)", refs[0].Text)
	require.Equal(t, "/blogs/gone", refs[0].Target)
	require.Equal(t, []diag.Diagnostic{Unresolved("post", refs[0])}, rec.Kind(diag.KindUnresolvedReference))
}

func TestRewrite_Idempotent(t *testing.T) {
	r := New(testStore(), nil)
	bodies := []string{
		"[a](/blog/other#Intro) [b](/blogs/older/) [c](/blog/missing)\n[d]: /blog/intro-to-go.md\n",
		"[![x](i.png)](/blog/other) [see [1]](/blog/café)",
		"no links at all",
		"",
	}
	for _, body := range bodies {
		once, _ := r.Rewrite("p", body)
		twice, _ := r.Rewrite("p", once)
		require.Equal(t, once, twice)
	}
}

func TestRewrite_ExtraLegacyPrefix(t *testing.T) {
	r := New(testStore(), nil, WithLegacyPrefix("/posts", " ", "/archive/"))
	got, _ := r.Rewrite("p", "[a](/posts/other) [b](/archive/intro-to-go) [c](/notes/other)")
	require.Equal(t, "[a](/blogs/other) [b](/blogs/intro-to-go) [c](/notes/other)", got)
}

func TestScan_DoesNotReport(t *testing.T) {
	rec := diag.NewRecorder(0)
	refs := New(testStore(), rec).Scan("[a](/blog/gone) [b](/blogs/other)")
	require.Len(t, refs, 2)
	require.Empty(t, rec.All())
}

func TestRewrite_NilResolver(t *testing.T) {
	got, refs := New(nil, nil).Rewrite("p", "[a](/blog/x)")
	require.Equal(t, "[a](/blog/x)", got)
	require.Len(t, refs, 1)
	require.False(t, refs[0].Resolved)
}
