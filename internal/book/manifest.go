package book

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ManifestFile is the name of the manifest inside a book directory.
const ManifestFile = "book.json"

// Manifest describes a book: metadata, chapter order and the
// shared tables chapters refer to.
type Manifest struct {
	Title       string                   `json:"title"`
	Authors     []Author                 `json:"authors"`
	Description string                   `json:"description,omitempty"`
	Cover       string                   `json:"cover,omitempty"`
	License     string                   `json:"license,omitempty"`
	Tags        []string                 `json:"tags,omitempty"`
	Chapters    []ChapterSpec            `json:"chapters"`
	Symbols     map[string]string        `json:"symbols,omitempty"`
	Sources     map[string]string        `json:"sources,omitempty"`
	References  map[string]Reference     `json:"references,omitempty"`
	Glossary    map[string]GlossaryEntry `json:"glossary,omitempty"`
	Revisions   []Revision               `json:"revisions,omitempty"`
}

type Author struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Bio   string `json:"bio,omitempty"`
}

// ChapterSpec describes one chapter in reading order.
type ChapterSpec struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors,omitempty"`
	Image    string   `json:"image,omitempty"`
	Alt      string   `json:"alt,omitempty"`
	Numbered *bool    `json:"numbered,omitempty"`
	Section  string   `json:"section,omitempty"`
}

// IsNumbered reports whether the chapter takes a chapter number. Chapters
// are numbered unless they opt out.
func (c ChapterSpec) IsNumbered() bool {
	return c.Numbered == nil || *c.Numbered
}

// GlossaryEntry is a defined phrase.
type GlossaryEntry struct {
	Phrase     string   `json:"phrase"`
	Definition string   `json:"definition"`
	Synonyms   []string `json:"synonyms,omitempty"`
}

type Revision struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

// Reference is a bibliography entry. In JSON it is either a markup string
// or an APA array: [authors, year, title, source, url?, summary?].
type Reference struct {
	Text   string
	Fields []string
}

func (r *Reference) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = Reference{Text: s}
		return nil
	}
	var fields []string
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("reference must be a string or an array of strings: %s", data)
	}
	*r = Reference{Fields: fields}
	return nil
}

func (r Reference) MarshalJSON() ([]byte, error) {
	if r.Fields != nil {
		return json.Marshal(r.Fields)
	}
	return json.Marshal(r.Text)
}

// ValidationError lists every problem found in a manifest.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid book manifest: " + strings.Join(e.Problems, "; ")
}

// Validate checks the manifest for missing required fields and duplicate
// chapter IDs.
func (m *Manifest) Validate() error {
	var problems []string
	if strings.TrimSpace(m.Title) == "" {
		problems = append(problems, "title is required")
	}
	if len(m.Chapters) == 0 {
		problems = append(problems, "at least one chapter is required")
	}
	seen := make(map[string]bool, len(m.Chapters))
	for i, c := range m.Chapters {
		switch {
		case c.ID == "":
			problems = append(problems, fmt.Sprintf("chapters[%d]: id is required", i))
		case seen[c.ID]:
			problems = append(problems, fmt.Sprintf("chapters[%d]: duplicate id %q", i, c.ID))
		case strings.ContainsAny(c.ID, `/\`):
			problems = append(problems, fmt.Sprintf("chapters[%d]: id %q may not contain a path separator", i, c.ID))
		}
		seen[c.ID] = true
		if c.Title == "" {
			problems = append(problems, fmt.Sprintf("chapters[%d]: title is required", i))
		}
	}
	for _, key := range sortedKeys(m.Glossary) {
		if entry := m.Glossary[key]; entry.Phrase == "" || entry.Definition == "" {
			problems = append(problems, fmt.Sprintf("glossary %q: phrase and definition are required", key))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ParseManifest decodes and validates a manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
