package state

import (
	"time"

	"github.com/google/uuid"

	"github.com/disparter/toguwaka-discord-game-sub002/pkg/story"
)

// ProgressRecord is a single player's position and accumulated state in the
// narrative graph. It is mutated exclusively through the progression engine
// and persisted externally; records are never deleted, only extended (story
// completion is a flag, not a deletion).
type ProgressRecord struct {
	ID       uuid.UUID `json:"id"`
	PlayerID string    `json:"player_id"`

	CurrentChapter string `json:"current_chapter"`
	DialogueIndex  int    `json:"dialogue_index"`

	CompletedChapters []string          `json:"completed_chapters,omitempty"`
	Variables         map[string]string `json:"variables,omitempty"`

	// PendingRewards holds rewards staged by a transition and not yet
	// acknowledged by the reward applier. Cleared once applied.
	PendingRewards []PendingReward `json:"pending_rewards,omitempty"`

	StoryComplete bool `json:"story_complete,omitempty"`

	// Version supports optimistic per-player locking in the persistence
	// store. Incremented on every successful save.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PendingReward is a reward grant staged for a completed chapter.
type PendingReward struct {
	ChapterID string        `json:"chapter_id"`
	Rewards   story.Rewards `json:"rewards"`
}

// NewProgressRecord creates the record for a player's first entry into the
// graph: entry chapter, dialogue index 0, empty state.
func NewProgressRecord(playerID, entryChapter string) *ProgressRecord {
	now := time.Now()
	return &ProgressRecord{
		ID:             uuid.New(),
		PlayerID:       playerID,
		CurrentChapter: entryChapter,
		Variables:      make(map[string]string),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// HasCompleted reports whether the chapter has already been completed.
func (p *ProgressRecord) HasCompleted(chapterID string) bool {
	for _, id := range p.CompletedChapters {
		if id == chapterID {
			return true
		}
	}
	return false
}

// MarkCompleted adds the chapter to the completed set.
func (p *ProgressRecord) MarkCompleted(chapterID string) {
	if !p.HasCompleted(chapterID) {
		p.CompletedChapters = append(p.CompletedChapters, chapterID)
	}
}

// SetVariables merges vars into the player's variables, last write wins per
// key.
func (p *ProgressRecord) SetVariables(vars map[string]string) {
	if len(vars) == 0 {
		return
	}
	if p.Variables == nil {
		p.Variables = make(map[string]string, len(vars))
	}
	for k, v := range vars {
		p.Variables[k] = v
	}
}

// Clone returns a deep copy. The engine mutates a clone so a failed
// transition leaves the caller's record untouched.
func (p *ProgressRecord) Clone() *ProgressRecord {
	out := *p
	if p.CompletedChapters != nil {
		out.CompletedChapters = append([]string(nil), p.CompletedChapters...)
	}
	if p.Variables != nil {
		out.Variables = make(map[string]string, len(p.Variables))
		for k, v := range p.Variables {
			out.Variables[k] = v
		}
	}
	if p.PendingRewards != nil {
		out.PendingRewards = append([]PendingReward(nil), p.PendingRewards...)
	}
	return &out
}
