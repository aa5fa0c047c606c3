package story

import (
	"fmt"
	"sort"
)

// Refs is the result of a single collection pass over a content model: every
// chapter id referenced as a transition target, and where each variable is
// read and written.
type Refs struct {
	// Referenced maps a target chapter id to the chapters referencing it.
	Referenced map[string][]string
	// Reads maps a variable name to the chapters reading it via a
	// conditional_next_chapter key.
	Reads map[string][]string
	// Writes maps a variable name to the chapters writing it via some
	// Choice.Metadata key.
	Writes map[string][]string
	// Malformed records structural defects found during collection, such as
	// a next_dialogue index outside the chapter's dialogue sequence. They
	// are collected rather than returned as errors so the validator can
	// report them distinctly from broken references.
	Malformed []string
}

// Collect walks the model once and never fails; defects are accumulated into
// Refs.Malformed.
func Collect(m *ContentModel) *Refs {
	r := &Refs{
		Referenced: make(map[string][]string),
		Reads:      make(map[string][]string),
		Writes:     make(map[string][]string),
	}

	for _, id := range m.IDs() {
		c, _ := m.Chapter(id)
		r.collectChapter(c)
	}

	for _, mm := range []map[string][]string{r.Referenced, r.Reads, r.Writes} {
		for k := range mm {
			mm[k] = dedupSorted(mm[k])
		}
	}
	sort.Strings(r.Malformed)
	return r
}

func (r *Refs) collectChapter(c *Chapter) {
	if c.NextChapter != "" {
		r.Referenced[c.NextChapter] = append(r.Referenced[c.NextChapter], c.ID)
	}

	for variable, branches := range c.ConditionalNext {
		if variable == "" {
			r.Malformed = append(r.Malformed, fmt.Sprintf("chapter %q: conditional branch with empty variable name", c.ID))
			continue
		}
		r.Reads[variable] = append(r.Reads[variable], c.ID)
		for value, target := range branches {
			if target == "" {
				r.Malformed = append(r.Malformed, fmt.Sprintf("chapter %q: conditional branch %s=%s has empty target", c.ID, variable, value))
				continue
			}
			r.Referenced[target] = append(r.Referenced[target], c.ID)
		}
	}

	r.collectChoices(c, c.Choices)
	for _, step := range c.Dialogues {
		r.collectChoices(c, step.Choices)
	}
}

func (r *Refs) collectChoices(c *Chapter, choices []Choice) {
	for i, ch := range choices {
		if ch.NextChapter != "" {
			r.Referenced[ch.NextChapter] = append(r.Referenced[ch.NextChapter], c.ID)
		}
		if ch.NextDialogue != nil {
			if *ch.NextDialogue < 0 || *ch.NextDialogue >= len(c.Dialogues) {
				r.Malformed = append(r.Malformed, fmt.Sprintf("chapter %q: choice %d targets dialogue index %d outside sequence of length %d", c.ID, i, *ch.NextDialogue, len(c.Dialogues)))
			}
		}
		for variable := range ch.Metadata {
			if variable == "" {
				r.Malformed = append(r.Malformed, fmt.Sprintf("chapter %q: choice %d writes a variable with empty name", c.ID, i))
				continue
			}
			r.Writes[variable] = append(r.Writes[variable], c.ID)
		}
	}
}

func dedupSorted(in []string) []string {
	sort.Strings(in)
	out := in[:0]
	var prev string
	for i, s := range in {
		if i == 0 || s != prev {
			out = append(out, s)
		}
		prev = s
	}
	return out
}
