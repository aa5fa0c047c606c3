package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/disparter/toguwaka-discord-game-sub002/pkg/state"
	"github.com/disparter/toguwaka-discord-game-sub002/pkg/story"
)

// EligibilityChecker decides whether a player may enter a chapter with the
// given requirements. A false result blocks the transition.
type EligibilityChecker interface {
	Check(ctx context.Context, rec *state.ProgressRecord, req story.Requirements) (bool, error)
}

// RewardApplier grants chapter-completion rewards. Implementations must be
// idempotent per (player, chapter) so the engine can be safely retried.
type RewardApplier interface {
	Apply(ctx context.Context, playerID, chapterID string, rewards story.Rewards) error
}

// EventNotifier delivers completion events to the chat-bot layer. Best
// effort: failures must never roll back a completed transition.
type EventNotifier interface {
	Notify(playerID string, events []string)
}

// Engine walks a single player through the narrative graph. It holds the
// content model read-only and mutates progress records only through Advance
// and Choose, which operate on a clone so a failed transition leaves the
// caller's record untouched.
type Engine struct {
	model       atomic.Pointer[story.ContentModel]
	eligibility EligibilityChecker
	rewards     RewardApplier
	notifier    EventNotifier
	logger      *slog.Logger
}

// NewEngine creates an engine over the given content model. Eligibility,
// rewards and notifier may be nil, in which case the corresponding hook is
// skipped.
func NewEngine(model *story.ContentModel, eligibility EligibilityChecker, rewards RewardApplier, notifier EventNotifier, logger *slog.Logger) *Engine {
	e := &Engine{
		eligibility: eligibility,
		rewards:     rewards,
		notifier:    notifier,
		logger:      logger,
	}
	e.model.Store(model)
	return e
}

// Model returns the current content model.
func (e *Engine) Model() *story.ContentModel {
	return e.model.Load()
}

// Reload atomically swaps in a new content model. In-flight operations keep
// the model they started with.
func (e *Engine) Reload(model *story.ContentModel) {
	e.model.Swap(model)
}

// NewRecord creates a progress record positioned at the entry chapter.
func (e *Engine) NewRecord(playerID string) *state.ProgressRecord {
	return state.NewProgressRecord(playerID, e.Model().EntryID())
}

// Enter returns what the player should currently be shown, without mutating
// the record: the current dialogue step while dialogue remains, then the
// chapter's top-level choices, or an implicit continue affordance when there
// is nothing to choose.
func (e *Engine) Enter(rec *state.ProgressRecord) (*Presentation, error) {
	if rec.StoryComplete {
		return &Presentation{
			Type:          PresentationComplete,
			Text:          "The story is complete.",
			StoryComplete: true,
		}, nil
	}

	c, ok := e.Model().Chapter(rec.CurrentChapter)
	if !ok {
		return nil, &ContentDefectError{ChapterID: rec.CurrentChapter, Detail: "current chapter is not defined in the content model"}
	}

	if step, ok := c.DialogueAt(rec.DialogueIndex); ok {
		return &Presentation{
			Type:          PresentationDialogue,
			ChapterID:     c.ID,
			ChapterTitle:  c.Title,
			DialogueIndex: rec.DialogueIndex,
			Text:          step.Text,
			Choices:       choiceOptions(step.Choices),
		}, nil
	}

	if len(c.Choices) > 0 {
		return &Presentation{
			Type:          PresentationChoices,
			ChapterID:     c.ID,
			ChapterTitle:  c.Title,
			DialogueIndex: rec.DialogueIndex,
			Text:          c.Description,
			Choices:       choiceOptions(c.Choices),
		}, nil
	}

	return &Presentation{
		Type:          PresentationContinue,
		ChapterID:     c.ID,
		ChapterTitle:  c.Title,
		DialogueIndex: rec.DialogueIndex,
		Text:          c.Description,
	}, nil
}

// Advance moves the player one step when the current presentation carries no
// player-meaningful choice: the next dialogue step while the chapter has
// more, otherwise the chapter-level transition. The input record is never
// mutated; the returned record is the new state.
func (e *Engine) Advance(ctx context.Context, rec *state.ProgressRecord) (*state.ProgressRecord, error) {
	if rec.StoryComplete {
		return rec, nil
	}

	c, ok := e.Model().Chapter(rec.CurrentChapter)
	if !ok {
		return nil, &ContentDefectError{ChapterID: rec.CurrentChapter, Detail: "current chapter is not defined in the content model"}
	}

	if choices := presentedChoices(c, rec.DialogueIndex); len(choices) > 0 {
		return nil, &InvalidChoiceError{ChapterID: c.ID, Index: -1, Choices: len(choices)}
	}

	clone := rec.Clone()

	next := rec.DialogueIndex + 1
	switch {
	case next < len(c.Dialogues):
		clone.DialogueIndex = next
	case next == len(c.Dialogues) && len(c.Choices) > 0:
		// Dialogue is exhausted; the next presentation is the chapter's
		// top-level choice list.
		clone.DialogueIndex = next
	default:
		if err := e.resolveExit(ctx, clone, c); err != nil {
			return nil, err
		}
	}
	return clone, nil
}

// Choose applies the idx-th currently presented choice: merges its metadata
// into the player's variables and resolves the transition with the full
// precedence (explicit next_chapter, then next_dialogue, then the chapter's
// conditional or unconditional successor, then terminal). The input record is
// never mutated.
func (e *Engine) Choose(ctx context.Context, rec *state.ProgressRecord, idx int) (*state.ProgressRecord, error) {
	if rec.StoryComplete {
		return rec, nil
	}

	c, ok := e.Model().Chapter(rec.CurrentChapter)
	if !ok {
		return nil, &ContentDefectError{ChapterID: rec.CurrentChapter, Detail: "current chapter is not defined in the content model"}
	}

	choices := presentedChoices(c, rec.DialogueIndex)
	if idx < 0 || idx >= len(choices) {
		return nil, &InvalidChoiceError{ChapterID: c.ID, Index: idx, Choices: len(choices)}
	}
	chosen := choices[idx]

	clone := rec.Clone()
	clone.SetVariables(chosen.Metadata)

	switch {
	case chosen.NextChapter != "":
		if err := e.moveTo(ctx, clone, c, chosen.NextChapter); err != nil {
			return nil, err
		}
	case chosen.NextDialogue != nil:
		target := *chosen.NextDialogue
		if _, ok := c.DialogueAt(target); !ok {
			return nil, &ContentDefectError{ChapterID: c.ID, Detail: fmt.Sprintf("choice targets dialogue index %d outside sequence of length %d", target, len(c.Dialogues))}
		}
		clone.DialogueIndex = target
	default:
		if err := e.resolveExit(ctx, clone, c); err != nil {
			return nil, err
		}
	}
	return clone, nil
}

// presentedChoices returns the choice list the player is currently seeing:
// the nested choices of the current dialogue step while dialogue remains,
// the top-level choices once it is exhausted.
func presentedChoices(c *story.Chapter, dialogueIndex int) []story.Choice {
	if step, ok := c.DialogueAt(dialogueIndex); ok {
		return step.Choices
	}
	return c.Choices
}

// resolveExit applies the chapter-level transition: the conditional successor
// keyed by the player's variables, else the unconditional successor, else the
// chapter is terminal and the story completes.
func (e *Engine) resolveExit(ctx context.Context, clone *state.ProgressRecord, c *story.Chapter) error {
	if len(c.ConditionalNext) > 0 {
		target, err := resolveConditional(c, clone.Variables)
		if err != nil {
			return err
		}
		return e.moveTo(ctx, clone, c, target)
	}
	if c.NextChapter != "" {
		return e.moveTo(ctx, clone, c, c.NextChapter)
	}
	return e.moveTo(ctx, clone, c, "")
}

// resolveConditional picks the successor for a variable-keyed branch map. A
// variable with neither a matching value branch nor a default arm is a fatal
// content defect: the transition must not silently fall through.
func resolveConditional(c *story.Chapter, vars map[string]string) (string, error) {
	variables := make([]string, 0, len(c.ConditionalNext))
	for v := range c.ConditionalNext {
		variables = append(variables, v)
	}
	sort.Strings(variables)

	for _, variable := range variables {
		branches := c.ConditionalNext[variable]
		value := vars[variable]
		if target, ok := branches[value]; ok && value != "" {
			return target, nil
		}
		if target, ok := branches[story.DefaultBranch]; ok {
			return target, nil
		}
		return "", &UnresolvedTransitionError{ChapterID: c.ID, Variable: variable, Value: value}
	}
	return "", &ContentDefectError{ChapterID: c.ID, Detail: "empty conditional successor map"}
}

// moveTo leaves the current chapter for targetID, or completes the story when
// targetID is empty. Completion side effects run exactly once per
// (player, chapter): the outgoing chapter joins the completed set, its
// rewards go to the applier, and the notifier is told.
func (e *Engine) moveTo(ctx context.Context, clone *state.ProgressRecord, from *story.Chapter, targetID string) error {
	var target *story.Chapter
	if targetID != "" {
		t, ok := e.Model().Chapter(targetID)
		if !ok {
			return &ContentDefectError{ChapterID: from.ID, Detail: fmt.Sprintf("transition targets undefined chapter %q", targetID)}
		}
		if e.eligibility != nil && !t.Requirements.IsZero() {
			eligible, err := e.eligibility.Check(ctx, clone, t.Requirements)
			if err != nil {
				return fmt.Errorf("eligibility check for chapter %q: %w", targetID, err)
			}
			if !eligible {
				return &RequirementsNotMetError{ChapterID: targetID}
			}
		}
		target = t
	}

	events := make([]string, 0, 2)
	if !clone.HasCompleted(from.ID) {
		clone.MarkCompleted(from.ID)
		if !from.Rewards.IsZero() {
			clone.PendingRewards = append(clone.PendingRewards, state.PendingReward{ChapterID: from.ID, Rewards: from.Rewards})
		}
		events = append(events, "chapter_completed:"+from.ID)
	}
	if err := e.applyPendingRewards(ctx, clone); err != nil {
		return err
	}

	if target != nil {
		clone.CurrentChapter = target.ID
		clone.DialogueIndex = 0
	} else {
		clone.StoryComplete = true
		events = append(events, "story_complete")
	}

	if e.notifier != nil && len(events) > 0 {
		e.notifier.Notify(clone.PlayerID, events)
	}
	if e.logger != nil {
		e.logger.Debug("chapter transition",
			"player_id", clone.PlayerID,
			"from", from.ID,
			"to", targetID,
			"story_complete", clone.StoryComplete)
	}
	return nil
}

// applyPendingRewards drains the staged rewards through the applier. On
// failure the pending entries stay on the clone and the error aborts the
// transition; the idempotent applier makes the retry safe.
func (e *Engine) applyPendingRewards(ctx context.Context, clone *state.ProgressRecord) error {
	if e.rewards == nil || len(clone.PendingRewards) == 0 {
		return nil
	}
	for _, pending := range clone.PendingRewards {
		if err := e.rewards.Apply(ctx, clone.PlayerID, pending.ChapterID, pending.Rewards); err != nil {
			return fmt.Errorf("apply rewards for chapter %q: %w", pending.ChapterID, err)
		}
	}
	clone.PendingRewards = nil
	return nil
}

func choiceOptions(choices []story.Choice) []ChoiceOption {
	if len(choices) == 0 {
		return nil
	}
	opts := make([]ChoiceOption, len(choices))
	for i, ch := range choices {
		opts[i] = ChoiceOption{Index: i, Text: ch.Text}
	}
	return opts
}
