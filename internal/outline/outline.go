// Package outline extracts the heading outline of a markdown body and owns
// the anchor normalisation shared with rendering and link rewriting.
package outline

import (
	"regexp"
	"strings"

	"blogpipe/internal/domain/content"
)

var (
	headingLine = regexp.MustCompile(`^(#{1,6})[ \t]+(.+)$`)
	closingHash = regexp.MustCompile(`[ \t]+#+[ \t]*$`)
	nonAnchor   = regexp.MustCompile(`[^a-z0-9]+`)
)

// Anchor lowercases text, collapses every run of characters outside [a-z0-9]
// into one "-" and trims leading and trailing "-". Identical headings get
// identical anchors.
func Anchor(text string) string {
	s := nonAnchor.ReplaceAllString(strings.ToLower(text), "-")
	return strings.Trim(s, "-")
}

// Extract returns the ATX headings of body in document order. Lines inside
// fenced code blocks are not headings.
func Extract(body string) []content.Heading {
	var out []content.Heading
	var fence string

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")

		if f, ok := Fence(line); ok {
			switch {
			case fence == "":
				fence = f
			case strings.HasPrefix(f, fence) && strings.TrimSpace(line) == f:
				fence = ""
			}
			continue
		}
		if fence != "" {
			continue
		}

		m := headingLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(closingHash.ReplaceAllString(m[2], ""))
		out = append(out, content.Heading{
			Level: len(m[1]),
			ID:    Anchor(text),
			Text:  text,
		})
	}
	return out
}

// Fence reports the run of ``` or ~~~ that opens or closes a fenced code
// block, allowing up to three spaces of indentation.
func Fence(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return "", false
	}
	for _, c := range []byte{'`', '~'} {
		n := 0
		for n < len(trimmed) && trimmed[n] == c {
			n++
		}
		if n >= 3 {
			return trimmed[:n], true
		}
	}
	return "", false
}
