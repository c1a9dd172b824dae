package content

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

const UntitledTitle = "Untitled"

type Metadata struct {
	Title       string
	Date        time.Time
	Description string
	Tags        []string
	Aliases     []string
	Draft       bool
}

// HasDate reports whether the publish date is known. The unknown date is the
// zero time and sorts before every real date.
func (m Metadata) HasDate() bool {
	return !m.Date.IsZero()
}

type BodyRef struct {
	SourcePath  string
	ContentHash string
}

type Document struct {
	ID     string
	Meta   Metadata
	Body   string
	Source BodyRef

	// Loaded is false for documents hydrated from the catalog; their body is
	// read on demand.
	Loaded bool
}

type Heading struct {
	Level int    `json:"level"`
	ID    string `json:"anchorId"`
	Text  string `json:"text"`
}

type Reference struct {
	Text      string `json:"text"`
	Target    string `json:"target"`
	ID        string `json:"id,omitempty"`
	Canonical string `json:"canonical,omitempty"`
	Resolved  bool   `json:"resolved"`
	Line      int    `json:"line"`
}

type Scored struct {
	Doc   Document
	Score float64
}

type Navigation struct {
	Previous *Document
	Next     *Document
}

func (m *Metadata) Normalize() {
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		m.Title = UntitledTitle
	}
	m.Description = strings.TrimSpace(m.Description)
	m.Tags = normalizeStrings(m.Tags)
	m.Aliases = normalizeStrings(m.Aliases)
}

// SameTags counts tags present in both sets. Both sides are expected to be
// normalized.
func SameTags(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	n := 0
	for _, t := range b {
		if _, ok := set[t]; ok {
			n++
		}
	}
	return n
}

// NormalizeTag case-folds a tag or alias the way stored metadata is.
func NormalizeTag(s string) string {
	return strings.ToLower(cases.Fold().String(strings.TrimSpace(s)))
}

func normalizeStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = NormalizeTag(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
