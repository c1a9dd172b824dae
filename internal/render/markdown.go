package render

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"blogpipe/internal/outline"
)

type MarkdownRenderer struct {
	md goldmark.Markdown
}

// NewMarkdownRenderer builds a GFM renderer. Node kinds present in hooks
// are rendered by the hook; every other kind keeps goldmark's HTML output.
func NewMarkdownRenderer(hooks Hooks) *MarkdownRenderer {
	opts := []renderer.Option{html.WithUnsafe()}
	if len(hooks) > 0 {
		// lower priority registers last and wins over html's 1000
		opts = append(opts, renderer.WithNodeRenderers(util.Prioritized(hookRenderer{hooks: hooks}, 100)))
	}
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Linkify,
			extension.Strikethrough,
			extension.Table,
		),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(opts...),
	)
	return &MarkdownRenderer{md: md}
}

func (r *MarkdownRenderer) Render(src []byte) ([]byte, error) {
	var buf bytes.Buffer

	ctx := parser.NewContext(parser.WithIDs(anchorIDs{}))
	doc := r.md.Parser().Parse(text.NewReader(src), parser.WithContext(ctx))

	if err := r.md.Renderer().Render(&buf, src, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// anchorIDs gives headings the same id the outline reports. Repeated
// headings share an id.
type anchorIDs struct{}

func (anchorIDs) Generate(value []byte, _ ast.NodeKind) []byte {
	return []byte(outline.Anchor(string(value)))
}

func (anchorIDs) Put([]byte) {}
