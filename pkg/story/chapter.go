package story

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ChapterKind classifies a chapter's role in the narrative graph.
type ChapterKind string

const (
	KindStory     ChapterKind = "story"
	KindBranching ChapterKind = "branching"
	KindChallenge ChapterKind = "challenge"
)

// DefaultBranch is the reserved value key inside a conditional successor map
// that matches when the player's variable has no other matching branch.
const DefaultBranch = "default"

// Chapter is a node in the narrative graph. A chapter with no choices, no
// conditional successor and no next_chapter is a valid terminal chapter.
type Chapter struct {
	ID          string      `json:"-" yaml:"-"` // set from the document filename
	Kind        ChapterKind `json:"kind" yaml:"kind"`
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description" yaml:"description"`

	// Dialogues is the ordered intra-chapter dialogue sequence.
	Dialogues []DialogueStep `json:"dialogues,omitempty" yaml:"dialogues,omitempty"`

	// Choices is the top-level choice list, presented once dialogue is
	// exhausted.
	Choices []Choice `json:"choices,omitempty" yaml:"choices,omitempty"`

	// NextChapter is the unconditional successor, consulted only when no
	// choice or conditional branch resolves the transition first.
	NextChapter string `json:"next_chapter,omitempty" yaml:"next_chapter,omitempty"`

	// ConditionalNext maps variable name -> value -> successor chapter id.
	// The reserved value key "default" matches when nothing else does.
	ConditionalNext map[string]map[string]string `json:"conditional_next_chapter,omitempty" yaml:"conditional_next_chapter,omitempty"`

	Requirements Requirements `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	Rewards      Rewards      `json:"rewards,omitempty" yaml:"rewards,omitempty"`
}

// DialogueStep is a single narrated line, optionally carrying its own nested
// choice list for branching mid-dialogue without leaving the chapter.
type DialogueStep struct {
	Text    string   `json:"text" yaml:"text"`
	Choices []Choice `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// UnmarshalJSON accepts either a bare string (a plain narrated line) or the
// full object form with nested choices.
func (d *DialogueStep) UnmarshalJSON(data []byte) error {
	var line string
	if err := json.Unmarshal(data, &line); err == nil {
		d.Text = line
		d.Choices = nil
		return nil
	}

	type alias DialogueStep
	aux := &struct{ *alias }{alias: (*alias)(d)}
	return json.Unmarshal(data, aux)
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML chapter documents.
func (d *DialogueStep) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		d.Choices = nil
		return node.Decode(&d.Text)
	}

	type alias DialogueStep
	return node.Decode((*alias)(d))
}

// Choice is a player-selectable option. At most one of NextChapter and
// NextDialogue is meaningful; NextChapter takes precedence when both are set.
type Choice struct {
	Text string `json:"text" yaml:"text"`

	// NextChapter is an explicit jump out of the chapter.
	NextChapter string `json:"next_chapter,omitempty" yaml:"next_chapter,omitempty"`

	// NextDialogue is an index back into the current chapter's dialogue
	// sequence, for intra-chapter looping and branching.
	NextDialogue *int `json:"next_dialogue,omitempty" yaml:"next_dialogue,omitempty"`

	// Metadata is merged into the player's variables when the choice is
	// taken, last write wins per key.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Requirements are preconditions evaluated before a player is admitted into a
// chapter. They are opaque to the graph core and interpreted by the
// eligibility collaborator.
type Requirements struct {
	// Chapters that must already be completed.
	Chapters []string `json:"chapters,omitempty" yaml:"chapters,omitempty"`
	// Variables that must hold the given values.
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
	// MinCompleted is the minimum number of completed chapters.
	MinCompleted int `json:"min_completed,omitempty" yaml:"min_completed,omitempty"`
}

// IsZero reports whether the chapter has no entry preconditions.
func (r Requirements) IsZero() bool {
	return len(r.Chapters) == 0 && len(r.Variables) == 0 && r.MinCompleted == 0
}

// Rewards are granted once on chapter completion.
type Rewards struct {
	Exp   int      `json:"exp,omitempty" yaml:"exp,omitempty"`
	Coins int      `json:"coins,omitempty" yaml:"coins,omitempty"`
	Items []string `json:"items,omitempty" yaml:"items,omitempty"`
}

// IsZero reports whether the chapter grants nothing on completion.
func (r Rewards) IsZero() bool {
	return r.Exp == 0 && r.Coins == 0 && len(r.Items) == 0
}

// DialogueAt returns the dialogue step at index i, or false when i is outside
// the dialogue sequence.
func (c *Chapter) DialogueAt(i int) (DialogueStep, bool) {
	if i < 0 || i >= len(c.Dialogues) {
		return DialogueStep{}, false
	}
	return c.Dialogues[i], true
}

// validKind reports whether k is one of the authored chapter kinds.
func validKind(k ChapterKind) bool {
	switch k {
	case KindStory, KindBranching, KindChallenge:
		return true
	}
	return false
}

func (c *Chapter) validate() error {
	if c.Kind == "" {
		return fmt.Errorf("chapter %q: missing required field 'kind'", c.ID)
	}
	if !validKind(c.Kind) {
		return fmt.Errorf("chapter %q: unknown kind %q (expected story, branching or challenge)", c.ID, c.Kind)
	}
	if c.Title == "" {
		return fmt.Errorf("chapter %q: missing required field 'title'", c.ID)
	}
	if c.Description == "" {
		return fmt.Errorf("chapter %q: missing required field 'description'", c.ID)
	}
	return nil
}
