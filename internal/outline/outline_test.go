package outline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"blogpipe/internal/domain/content"
)

func TestAnchor(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Title", "title"},
		{"Sub A", "sub-a"},
		{"  Hello,   World!  ", "hello-world"},
		{"C++ & Go: a comparison", "c-go-a-comparison"},
		{"---", ""},
		{"", ""},
		{"Ünïcödé text", "n-c-d-text"},
		{"v1.2.3 release", "v1-2-3-release"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Anchor(tt.in), tt.in)
		require.Equal(t, Anchor(tt.in), Anchor(tt.in))
	}
}

func TestExtract_Example(t *testing.T) {
	got := Extract("# Title\n## Sub A\nSome text [see](/blogs/other)")
	require.Equal(t, []content.Heading{
		{Level: 1, Text: "Title", ID: "title"},
		{Level: 2, Text: "Sub A", ID: "sub-a"},
	}, got)
}

func TestExtract_Levels(t *testing.T) {
	got := Extract("###### Six\n####### Seven\n#NoSpace\n   # Indented\n## Closed ##\n")
	require.Equal(t, []content.Heading{
		{Level: 6, Text: "Six", ID: "six"},
		{Level: 2, Text: "Closed", ID: "closed"},
	}, got)
}

func TestExtract_DuplicatesAreNotDisambiguated(t *testing.T) {
	got := Extract("## Setup\ntext\n## Setup\n")
	require.Len(t, got, 2)
	require.Equal(t, "setup", got[0].ID)
	require.Equal(t, "setup", got[1].ID)
}

func TestExtract_EmptyAnchorAllowed(t *testing.T) {
	got := Extract("## !!!\n")
	require.Equal(t, []content.Heading{{Level: 2, Text: "!!!", ID: ""}}, got)
}

func TestExtract_SkipsFencedCode(t *testing.T) {
	body := "# Real\n```bash\n# not a heading\n```\n~~~~\n## also not\n~~~\n## still not\n~~~~\n## After\n"
	got := Extract(body)
	require.Equal(t, []content.Heading{
		{Level: 1, Text: "Real", ID: "real"},
		{Level: 2, Text: "After", ID: "after"},
	}, got)
}

func TestExtract_CRLF(t *testing.T) {
	got := Extract("# One\r\n## Two\r\n")
	require.Len(t, got, 2)
	require.Equal(t, "Two", got[1].Text)
}

func TestExtract_Empty(t *testing.T) {
	require.Empty(t, Extract(""))
}
