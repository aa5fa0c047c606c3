package story

import (
	"fmt"
	"sort"
)

// ContentModel is the immutable in-memory narrative graph: an arena of
// chapters indexed by id, plus the designated entry chapter. Readers never
// mutate it; reloading content builds a fresh model and swaps the pointer.
type ContentModel struct {
	chapters map[string]*Chapter
	ids      []string // sorted, for deterministic iteration
	entry    string
}

// NewContentModel builds a model from parsed chapters. When entry is empty
// the lexicographically first chapter id is used, matching the authoring
// convention of numbering chapter files.
func NewContentModel(chapters []*Chapter, entry string) (*ContentModel, error) {
	if len(chapters) == 0 {
		return nil, fmt.Errorf("content model requires at least one chapter")
	}

	m := &ContentModel{
		chapters: make(map[string]*Chapter, len(chapters)),
		ids:      make([]string, 0, len(chapters)),
	}
	for _, c := range chapters {
		if c.ID == "" {
			return nil, fmt.Errorf("chapter with empty id")
		}
		if _, dup := m.chapters[c.ID]; dup {
			return nil, fmt.Errorf("duplicate chapter id %q", c.ID)
		}
		m.chapters[c.ID] = c
		m.ids = append(m.ids, c.ID)
	}
	sort.Strings(m.ids)

	if entry == "" {
		entry = m.ids[0]
	}
	if _, ok := m.chapters[entry]; !ok {
		return nil, fmt.Errorf("entry chapter %q not defined", entry)
	}
	m.entry = entry

	return m, nil
}

// Chapter returns the chapter with the given id.
func (m *ContentModel) Chapter(id string) (*Chapter, bool) {
	c, ok := m.chapters[id]
	return c, ok
}

// EntryID is the id of the chapter new players start in.
func (m *ContentModel) EntryID() string {
	return m.entry
}

// IDs returns all chapter ids in sorted order.
func (m *ContentModel) IDs() []string {
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out
}

// Len is the number of chapters in the model.
func (m *ContentModel) Len() int {
	return len(m.ids)
}
