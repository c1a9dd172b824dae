package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"blogpipe/internal/diag"
	"blogpipe/internal/domain/content"
)

var (
	errUnterminatedFrontMatter = errors.New("front matter start delimiter found but closing delimiter is missing")
	errUnterminatedComment     = errors.New("metadata comment is not closed")
)

type FrontMatter struct {
	Title       string   `yaml:"title"`
	Date        string   `yaml:"date"`
	Description string   `yaml:"description"`
	Tags        TagList  `yaml:"tags"`
	Aliases     []string `yaml:"aliases"`
	Draft       bool     `yaml:"draft"`
}

// TagList accepts both a YAML sequence and a comma separated string.
type TagList []string

func (t *TagList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		var out []string
		for _, part := range strings.Split(n.Value, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		*t = out
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := n.Decode(&out); err != nil {
			return err
		}
		*t = out
		return nil
	default:
		// a TypeError lets the other fields decode
		return &yaml.TypeError{Errors: []string{
			fmt.Sprintf("line %d: tags must be a list or a comma separated string", n.Line),
		}}
	}
}

type blockForm int

const (
	formNone blockForm = iota
	formFrontMatter
	formComment
)

var yamlKeyLine = regexp.MustCompile(`(?m)^\s*[A-Za-z_][A-Za-z0-9_-]*\s*:`)

// splitMetadata separates the metadata block from the body. It accepts YAML
// front matter between "---" lines, or YAML inside a leading HTML comment.
func splitMetadata(raw []byte) (block, body []byte, form blockForm, err error) {
	norm := bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	norm = bytes.ReplaceAll(norm, []byte("\r"), []byte("\n"))
	norm = bytes.TrimPrefix(norm, []byte("\ufeff"))
	trimmed := bytes.TrimLeft(norm, " \t\n")

	const (
		sep      = "---"
		sepLine  = sep + "\n"
		closeMid = "\n" + sep + "\n"
	)

	switch {
	case bytes.HasPrefix(trimmed, []byte(sepLine)):
		rest := trimmed[len(sepLine):]
		if bytes.HasPrefix(rest, []byte(sepLine)) {
			// "---\n---\n": empty front matter
			return nil, trimBody(rest[len(sepLine):]), formFrontMatter, nil
		}
		if bytes.Equal(rest, []byte(sep)) {
			return nil, nil, formFrontMatter, nil
		}
		if parts := bytes.SplitN(rest, []byte(closeMid), 2); len(parts) == 2 {
			return parts[0], trimBody(parts[1]), formFrontMatter, nil
		}
		if bytes.HasSuffix(rest, []byte("\n"+sep)) {
			return rest[:len(rest)-len("\n"+sep)], nil, formFrontMatter, nil
		}
		return nil, norm, formNone, errUnterminatedFrontMatter

	case bytes.HasPrefix(trimmed, []byte("<!--")):
		end := bytes.Index(trimmed, []byte("-->"))
		if end < 0 {
			return nil, norm, formNone, errUnterminatedComment
		}
		inner := trimmed[len("<!--"):end]
		// a leading comment without key: value lines is prose, not metadata
		if !yamlKeyLine.Match(inner) {
			return nil, norm, formNone, nil
		}
		return dedent(inner), trimBody(trimmed[end+len("-->"):]), formComment, nil
	}
	return nil, norm, formNone, nil
}

func trimBody(b []byte) []byte {
	return bytes.TrimLeft(b, "\n")
}

// dedent strips the common leading indentation so YAML inside an indented
// comment parses.
func dedent(b []byte) []byte {
	lines := strings.Split(strings.Trim(string(b), "\n"), "\n")
	indent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent <= 0 {
		return []byte(strings.Join(lines, "\n"))
	}
	for i, l := range lines {
		if len(l) >= indent {
			lines[i] = l[indent:]
		}
	}
	return []byte(strings.Join(lines, "\n"))
}

// ExtractMetadata parses the metadata block of raw and returns the metadata
// and the body that follows it. It never fails: missing fields get defaults
// and malformed ones are reported to sink and defaulted.
func ExtractMetadata(id string, raw []byte, sink diag.Sink) (content.Metadata, []byte) {
	sink = diag.Or(sink)
	report := func(field, msg string) {
		sink.Report(diag.Diagnostic{
			Kind:   diag.KindMalformedMetadata,
			DocID:  id,
			Field:  field,
			Detail: msg,
		})
	}

	block, body, form, err := splitMetadata(raw)
	if err != nil {
		report("", err.Error())
	}

	var fm FrontMatter
	if form != formNone && len(bytes.TrimSpace(block)) > 0 {
		if err := yaml.Unmarshal(block, &fm); err != nil {
			var te *yaml.TypeError
			if errors.As(err, &te) {
				// fields that decoded are kept
				for _, e := range te.Errors {
					report("", e)
				}
			} else {
				report("", "invalid metadata block: "+err.Error())
				fm = FrontMatter{}
			}
		}
	}

	meta := content.Metadata{
		Title:       fm.Title,
		Description: fm.Description,
		Tags:        fm.Tags,
		Aliases:     fm.Aliases,
		Draft:       fm.Draft,
	}
	if s := strings.TrimSpace(fm.Date); s != "" {
		t, ok := ParseTime(s)
		if !ok {
			report("date", fmt.Sprintf("unrecognised date %q", s))
		}
		meta.Date = t
	}
	meta.Normalize()
	return meta, body
}

var timeLayouts = []string{
	time.RFC3339,
	time.DateOnly,
	"2006-01-02 15:04",
	time.DateTime,
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseTime accepts the date layouts used in front matter. Dates without a
// zone are read as UTC so ordering does not depend on the host.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IDFromPath derives the document identifier from its file name.
func IDFromPath(path string) string {
	base := filepath.Base(path)
	return Slugify(strings.TrimSuffix(base, filepath.Ext(base)))
}

func Slugify(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var out []rune
	lastDash := false

	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]

		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if 'A' <= r && r <= 'Z' {
				r = r + ('a' - 'A')
			}
			out = append(out, r)
			lastDash = false
		case r == '_' && len(out) > 0:
			out = append(out, r)
			lastDash = false
		default:
			if !lastDash && len(out) > 0 {
				out = append(out, '-')
				lastDash = true
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == '-' {
		out = out[:len(out)-1]
	}
	return string(out)
}
