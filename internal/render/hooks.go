package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// NodeKind names the parts of a document the presentation layer may take
// over.
type NodeKind string

const (
	KindHeading   NodeKind = "heading"
	KindCodeBlock NodeKind = "code_block"
	KindCodeSpan  NodeKind = "code_span"
	KindLink      NodeKind = "link"
	KindImage     NodeKind = "image"
)

// Hook renders one node. It is called on entering and on leaving.
type Hook = renderer.NodeRendererFunc

// Hooks maps a node kind to its renderer. A nil or empty map renders plain
// goldmark HTML.
type Hooks map[NodeKind]Hook

func (k NodeKind) astKinds() []ast.NodeKind {
	switch k {
	case KindHeading:
		return []ast.NodeKind{ast.KindHeading}
	case KindCodeBlock:
		return []ast.NodeKind{ast.KindFencedCodeBlock, ast.KindCodeBlock}
	case KindCodeSpan:
		return []ast.NodeKind{ast.KindCodeSpan}
	case KindLink:
		return []ast.NodeKind{ast.KindLink}
	case KindImage:
		return []ast.NodeKind{ast.KindImage}
	}
	return nil
}

type hookRenderer struct {
	hooks Hooks
}

func (h hookRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	for kind, fn := range h.hooks {
		if fn == nil {
			continue
		}
		for _, k := range kind.astKinds() {
			reg.Register(k, fn)
		}
	}
}

// SiteHooks are the hooks the site uses: external links open in a new tab
// and code blocks carry a language label.
func SiteHooks() Hooks {
	return Hooks{
		KindLink:      LinkHook,
		KindCodeBlock: CodeBlockHook,
	}
}

// LinkHook renders same-site links as plain anchors and absolute links with
// target="_blank" rel="noopener noreferrer".
func LinkHook(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Link)
	if !entering {
		_, _ = w.WriteString("</a>")
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString(`<a href="`)
	if !html.IsDangerousURL(n.Destination) {
		_, _ = w.Write(util.EscapeHTML(util.URLEscape(n.Destination, true)))
	}
	_ = w.WriteByte('"')
	if n.Title != nil {
		_, _ = w.WriteString(` title="`)
		html.DefaultWriter.Write(w, n.Title)
		_ = w.WriteByte('"')
	}
	if isExternal(n.Destination) {
		_, _ = w.WriteString(` target="_blank" rel="noopener noreferrer"`)
	}
	_ = w.WriteByte('>')
	return ast.WalkContinue, nil
}

func isExternal(dest []byte) bool {
	return bytes.HasPrefix(dest, []byte("http://")) ||
		bytes.HasPrefix(dest, []byte("https://")) ||
		bytes.HasPrefix(dest, []byte("//"))
}

// CodeBlockHook wraps code in a figure whose caption is the fence language.
func CodeBlockHook(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	var lang []byte
	if fb, ok := node.(*ast.FencedCodeBlock); ok {
		lang = fb.Language(source)
	}
	if !entering {
		_, _ = w.WriteString("</code></pre></figure>\n")
		return ast.WalkContinue, nil
	}

	_, _ = w.WriteString(`<figure class="code">`)
	if len(lang) > 0 {
		escaped := util.EscapeHTML(lang)
		_, _ = fmt.Fprintf(w, `<figcaption>%s</figcaption><pre><code class="language-%s">`, escaped, escaped)
	} else {
		_, _ = w.WriteString("<pre><code>")
	}
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		_, _ = w.Write(util.EscapeHTML(seg.Value(source)))
	}
	return ast.WalkContinue, nil
}
