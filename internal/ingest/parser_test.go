package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"blogpipe/internal/diag"
	"blogpipe/internal/domain/content"
)

func TestExtractMetadata_FrontMatter(t *testing.T) {
	raw := []byte("---\n" +
		"title: Hello World\n" +
		"date: 2024-03-05\n" +
		"description: A first post\n" +
		"tags: [Go, Markdown, go]\n" +
		"aliases: [old-hello]\n" +
		"---\n" +
		"\n# Hello\nbody\n")
	rec := diag.NewRecorder(0)

	meta, body := ExtractMetadata("hello", raw, rec)

	require.Equal(t, "Hello World", meta.Title)
	require.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), meta.Date)
	require.Equal(t, "A first post", meta.Description)
	require.Equal(t, []string{"go", "markdown"}, meta.Tags)
	require.Equal(t, []string{"old-hello"}, meta.Aliases)
	require.Equal(t, "# Hello\nbody\n", string(body))
	require.Empty(t, rec.All())
}

func TestExtractMetadata_CommentBlock(t *testing.T) {
	raw := []byte("<!--\n  title: Comment Meta\n  date: 2023-01-02 10:30\n  tags: a, b\n-->\n## Body\n")

	meta, body := ExtractMetadata("c", raw, nil)

	require.Equal(t, "Comment Meta", meta.Title)
	require.Equal(t, time.Date(2023, 1, 2, 10, 30, 0, 0, time.UTC), meta.Date)
	require.Equal(t, []string{"a", "b"}, meta.Tags)
	require.Equal(t, "## Body\n", string(body))
}

func TestExtractMetadata_ProseCommentIsBody(t *testing.T) {
	raw := []byte("<!-- just a note -->\ntext\n")

	meta, body := ExtractMetadata("p", raw, nil)

	require.Equal(t, content.UntitledTitle, meta.Title)
	require.Equal(t, string(raw), string(body))
}

func TestExtractMetadata_Defaults(t *testing.T) {
	rec := diag.NewRecorder(0)
	meta, body := ExtractMetadata("plain", []byte("# Just a body\n"), rec)

	require.Equal(t, content.UntitledTitle, meta.Title)
	require.False(t, meta.HasDate())
	require.Empty(t, meta.Tags)
	require.Equal(t, "# Just a body\n", string(body))
	require.Empty(t, rec.All(), "missing metadata is not malformed")
}

func TestExtractMetadata_MalformedFallsBack(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantTitle string
		wantField string
	}{
		{
			name:      "bad date keeps other fields",
			raw:       "---\ntitle: Kept\ndate: someday\n---\nbody",
			wantTitle: "Kept",
			wantField: "date",
		},
		{
			name:      "syntax error resets block",
			raw:       "---\ntitle: [unclosed\n---\nbody",
			wantTitle: content.UntitledTitle,
		},
		{
			name:      "tags mapping keeps title",
			raw:       "---\ntitle: Kept\ntags: {a: b}\n---\nbody",
			wantTitle: "Kept",
		},
		{
			name:      "unterminated front matter",
			raw:       "---\ntitle: Nope\nbody without end",
			wantTitle: content.UntitledTitle,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := diag.NewRecorder(0)
			meta, _ := ExtractMetadata("doc", []byte(tt.raw), rec)

			require.Equal(t, tt.wantTitle, meta.Title)
			got := rec.Kind(diag.KindMalformedMetadata)
			require.NotEmpty(t, got)
			require.Equal(t, "doc", got[0].DocID)
			if tt.wantField != "" {
				require.Equal(t, tt.wantField, got[0].Field)
			}
		})
	}
}

func TestExtractMetadata_CRLFAndEmptyBlock(t *testing.T) {
	meta, body := ExtractMetadata("x", []byte("---\r\n---\r\nline\r\n"), nil)
	require.Equal(t, content.UntitledTitle, meta.Title)
	require.Equal(t, "line\n", string(body))

	meta, body = ExtractMetadata("x", []byte("---\ntitle: Only\n---"), nil)
	require.Equal(t, "Only", meta.Title)
	require.Empty(t, body)
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{"2024-01-02", "2024-01-02T00:00:00Z", "2024-01-02 00:00", "2024-01-02 00:00:00", "January 2, 2024"} {
		got, ok := ParseTime(s)
		require.True(t, ok, s)
		require.True(t, got.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)), s)
	}
	_, ok := ParseTime("02/01/2024")
	require.False(t, ok)
}

func TestIDFromPath(t *testing.T) {
	require.Equal(t, "my-first-post", IDFromPath("blogs/my-first-post.md"))
	require.Equal(t, "hello-world", IDFromPath("/x/Hello World.markdown"))
	require.Equal(t, "snake_case", IDFromPath("snake_case.md"))
	require.Equal(t, "", IDFromPath("---.md"))
}
