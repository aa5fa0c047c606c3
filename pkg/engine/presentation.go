package engine

// PresentationType distinguishes what the player is currently being shown.
type PresentationType string

const (
	// PresentationDialogue is a narrated dialogue step, possibly with
	// nested choices.
	PresentationDialogue PresentationType = "dialogue"
	// PresentationChoices is the chapter's top-level choice list.
	PresentationChoices PresentationType = "choices"
	// PresentationContinue is the implicit continue affordance shown when
	// there is nothing to choose.
	PresentationContinue PresentationType = "continue"
	// PresentationComplete is the terminal story-complete screen.
	PresentationComplete PresentationType = "complete"
)

// ChoiceOption is a single selectable option as shown to the player.
type ChoiceOption struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Presentation is what the chat-bot layer renders for the player's current
// state. Producing one never mutates the progress record.
type Presentation struct {
	Type          PresentationType `json:"type"`
	ChapterID     string           `json:"chapter_id,omitempty"`
	ChapterTitle  string           `json:"chapter_title,omitempty"`
	DialogueIndex int              `json:"dialogue_index,omitempty"`
	Text          string           `json:"text,omitempty"`
	Choices       []ChoiceOption   `json:"choices,omitempty"`
	StoryComplete bool             `json:"story_complete,omitempty"`
}
