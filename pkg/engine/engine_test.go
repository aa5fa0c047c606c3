package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/disparter/toguwaka-discord-game-sub002/pkg/state"
	"github.com/disparter/toguwaka-discord-game-sub002/pkg/story"
)

type fakeEligibility struct {
	allow bool
	err   error
}

func (f *fakeEligibility) Check(ctx context.Context, rec *state.ProgressRecord, req story.Requirements) (bool, error) {
	return f.allow, f.err
}

type fakeApplier struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{calls: make(map[string]int)}
}

func (f *fakeApplier) Apply(ctx context.Context, playerID, chapterID string, rewards story.Rewards) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls[playerID+":"+chapterID]++
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) Notify(playerID string, events []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
}

func intPtr(i int) *int { return &i }

func buildModel(t *testing.T, chapters ...*story.Chapter) *story.ContentModel {
	t.Helper()
	m, err := story.NewContentModel(chapters, "")
	if err != nil {
		t.Fatalf("failed to build model: %v", err)
	}
	return m
}

func newTestEngine(t *testing.T, m *story.ContentModel) (*Engine, *fakeApplier, *fakeNotifier) {
	t.Helper()
	applier := newFakeApplier()
	notifier := &fakeNotifier{}
	eng := NewEngine(m, &fakeEligibility{allow: true}, applier, notifier, nil)
	return eng, applier, notifier
}

func TestChoose_LinearChapter(t *testing.T) {
	m := buildModel(t,
		&story.Chapter{
			ID: "a", Kind: story.KindStory, Title: "A", Description: "d",
			Choices: []story.Choice{{Text: "onward", NextChapter: "b"}},
			Rewards: story.Rewards{Exp: 10},
		},
		&story.Chapter{ID: "b", Kind: story.KindStory, Title: "B", Description: "d"},
	)
	eng, applier, _ := newTestEngine(t, m)

	rec := state.NewProgressRecord("p1", "a")
	next, err := eng.Choose(context.Background(), rec, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if next.CurrentChapter != "b" || next.DialogueIndex != 0 {
		t.Errorf("expected state (b, 0), got (%s, %d)", next.CurrentChapter, next.DialogueIndex)
	}
	if !next.HasCompleted("a") {
		t.Error("expected a in completed chapters")
	}
	if applier.calls["p1:a"] != 1 {
		t.Errorf("expected rewards applied once for a, got %d", applier.calls["p1:a"])
	}
	// Input record untouched.
	if rec.CurrentChapter != "a" || rec.HasCompleted("a") {
		t.Error("input record was mutated")
	}
}

func TestChoose_ConditionalBranch(t *testing.T) {
	model := func(t *testing.T) *story.ContentModel {
		return buildModel(t,
			&story.Chapter{
				ID: "a", Kind: story.KindBranching, Title: "A", Description: "d",
				Choices: []story.Choice{{Text: "set", Metadata: map[string]string{"path": "hero"}}},
				ConditionalNext: map[string]map[string]string{
					"path": {"hero": "b", story.DefaultBranch: "c"},
				},
			},
			&story.Chapter{ID: "b", Kind: story.KindStory, Title: "B", Description: "d"},
			&story.Chapter{ID: "c", Kind: story.KindStory, Title: "C", Description: "d"},
		)
	}

	t.Run("matching value branch", func(t *testing.T) {
		eng, _, _ := newTestEngine(t, model(t))
		rec := state.NewProgressRecord("p1", "a")

		next, err := eng.Choose(context.Background(), rec, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if next.CurrentChapter != "b" {
			t.Errorf("player with path=hero should land on b, got %q", next.CurrentChapter)
		}
	})

	t.Run("default branch", func(t *testing.T) {
		eng, _, _ := newTestEngine(t, model(t))
		rec := state.NewProgressRecord("p1", "a")
		rec.DialogueIndex = 0

		// Advance instead of choosing, so no variable is written.
		// The chapter has top-level choices, so force the chapter-level
		// resolution by advancing a record already past them.
		next, err := eng.Advance(context.Background(), rec)
		if err == nil {
			// The choice list is presented, so Advance must refuse.
			t.Fatalf("expected choice-required error, got state %q", next.CurrentChapter)
		}
	})
}

func TestResolve_DefaultWhenVariableUnset(t *testing.T) {
	m := buildModel(t,
		&story.Chapter{
			ID: "a", Kind: story.KindBranching, Title: "A", Description: "d",
			ConditionalNext: map[string]map[string]string{
				"path": {"hero": "b", story.DefaultBranch: "c"},
			},
		},
		&story.Chapter{ID: "b", Kind: story.KindStory, Title: "B", Description: "d"},
		&story.Chapter{ID: "c", Kind: story.KindStory, Title: "C", Description: "d"},
	)
	eng, _, _ := newTestEngine(t, m)

	rec := state.NewProgressRecord("p1", "a")
	next, err := eng.Advance(context.Background(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.CurrentChapter != "c" {
		t.Errorf("player with no path variable should land on the default c, got %q", next.CurrentChapter)
	}

	rec2 := state.NewProgressRecord("p2", "a")
	rec2.SetVariables(map[string]string{"path": "hero"})
	next2, err := eng.Advance(context.Background(), rec2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next2.CurrentChapter != "b" {
		t.Errorf("player with path=hero should land on b, got %q", next2.CurrentChapter)
	}
}

func TestResolve_MissingDefault(t *testing.T) {
	m := buildModel(t,
		&story.Chapter{
			ID: "a", Kind: story.KindBranching, Title: "A", Description: "d",
			ConditionalNext: map[string]map[string]string{
				"path": {"hero": "b"},
			},
		},
		&story.Chapter{ID: "b", Kind: story.KindStory, Title: "B", Description: "d"},
	)
	eng, applier, _ := newTestEngine(t, m)

	rec := state.NewProgressRecord("p1", "a")
	next, err := eng.Advance(context.Background(), rec)

	var unresolved *UnresolvedTransitionError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected UnresolvedTransitionError, got %v", err)
	}
	if unresolved.ChapterID != "a" || unresolved.Variable != "path" {
		t.Errorf("error should carry chapter and variable, got %#v", unresolved)
	}
	if next != nil {
		t.Error("failed transition must not produce a new record")
	}
	if rec.CurrentChapter != "a" || rec.HasCompleted("a") || len(rec.PendingRewards) != 0 {
		t.Error("failed transition must leave the record untouched")
	}
	if applier.calls["p1:a"] != 0 {
		t.Error("failed transition must not apply rewards")
	}
}

func TestAdvance_IntraChapterDialogue(t *testing.T) {
	m := buildModel(t,
		&story.Chapter{
			ID: "a", Kind: story.KindStory, Title: "A", Description: "d",
			Dialogues:   []story.DialogueStep{{Text: "one"}, {Text: "two"}},
			NextChapter: "b",
		},
		&story.Chapter{ID: "b", Kind: story.KindStory, Title: "B", Description: "d"},
	)
	eng, _, _ := newTestEngine(t, m)

	rec := state.NewProgressRecord("p1", "a")
	step1, err := eng.Advance(context.Background(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step1.CurrentChapter != "a" || step1.DialogueIndex != 1 {
		t.Errorf("expected (a, 1), got (%s, %d)", step1.CurrentChapter, step1.DialogueIndex)
	}
	if step1.HasCompleted("a") {
		t.Error("internal dialogue advance must not complete the chapter")
	}

	step2, err := eng.Advance(context.Background(), step1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step2.CurrentChapter != "b" || step2.DialogueIndex != 0 {
		t.Errorf("expected (b, 0), got (%s, %d)", step2.CurrentChapter, step2.DialogueIndex)
	}
	if !step2.HasCompleted("a") {
		t.Error("leaving the chapter must complete it")
	}
}

func TestAdvance_StopsAtTopLevelChoices(t *testing.T) {
	m := buildModel(t,
		&story.Chapter{
			ID: "a", Kind: story.KindStory, Title: "A", Description: "d",
			Dialogues: []story.DialogueStep{{Text: "one"}},
			Choices:   []story.Choice{{Text: "pick me", NextChapter: "b"}},
		},
		&story.Chapter{ID: "b", Kind: story.KindStory, Title: "B", Description: "d"},
	)
	eng, _, _ := newTestEngine(t, m)

	rec := state.NewProgressRecord("p1", "a")
	next, err := eng.Advance(context.Background(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.CurrentChapter != "a" || next.DialogueIndex != 1 {
		t.Errorf("advance should move to the choice list, got (%s, %d)", next.CurrentChapter, next.DialogueIndex)
	}

	p, err := eng.Enter(next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Type != PresentationChoices || len(p.Choices) != 1 {
		t.Errorf("expected top-level choices presentation, got %#v", p)
	}
}

func TestChoose_InvalidIndex(t *testing.T) {
	m := buildModel(t,
		&story.Chapter{
			ID: "a", Kind: story.KindStory, Title: "A", Description: "d",
			Choices: []story.Choice{{Text: "only option", NextChapter: "a"}},
		},
	)
	eng, _, _ := newTestEngine(t, m)
	rec := state.NewProgressRecord("p1", "a")

	for _, idx := range []int{-1, 1, 99} {
		_, err := eng.Choose(context.Background(), rec, idx)
		var invalid *InvalidChoiceError
		if !errors.As(err, &invalid) {
			t.Errorf("index %d: expected InvalidChoiceError, got %v", idx, err)
		}
	}
}

func TestChoose_NextDialogueLoop(t *testing.T) {
	m := buildModel(t,
		&story.Chapter{
			ID: "a", Kind: story.KindStory, Title: "A", Description: "d",
			Dialogues: []story.DialogueStep{
				{Text: "hub", Choices: []story.Choice{
					{Text: "ask again", NextDialogue: intPtr(1)},
					{Text: "leave", NextChapter: "b"},
				}},
				{Text: "answer", Choices: []story.Choice{{Text: "back", NextDialogue: intPtr(0)}}},
			},
		},
		&story.Chapter{ID: "b", Kind: story.KindStory, Title: "B", Description: "d"},
	)
	eng, _, _ := newTestEngine(t, m)

	rec := state.NewProgressRecord("p1", "a")
	mid, err := eng.Choose(context.Background(), rec, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mid.CurrentChapter != "a" || mid.DialogueIndex != 1 {
		t.Errorf("expected internal jump to (a, 1), got (%s, %d)", mid.CurrentChapter, mid.DialogueIndex)
	}
	if mid.HasCompleted("a") {
		t.Error("intra-chapter jump must not complete the chapter")
	}

	back, err := eng.Choose(context.Background(), mid, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back.DialogueIndex != 0 {
		t.Errorf("expected jump back to (a, 0), got %d", back.DialogueIndex)
	}
}

func TestChoose_ExplicitTargetBeatsConditional(t *testing.T) {
	m := buildModel(t,
		&story.Chapter{
			ID: "a", Kind: story.KindBranching, Title: "A", Description: "d",
			Choices: []story.Choice{{Text: "door", NextChapter: "c", Metadata: map[string]string{"path": "hero"}}},
			ConditionalNext: map[string]map[string]string{
				"path": {"hero": "b", story.DefaultBranch: "b"},
			},
		},
		&story.Chapter{ID: "b", Kind: story.KindStory, Title: "B", Description: "d"},
		&story.Chapter{ID: "c", Kind: story.KindStory, Title: "C", Description: "d"},
	)
	eng, _, _ := newTestEngine(t, m)

	rec := state.NewProgressRecord("p1", "a")
	next, err := eng.Choose(context.Background(), rec, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.CurrentChapter != "c" {
		t.Errorf("explicit choice target must win over the conditional, got %q", next.CurrentChapter)
	}
	if next.Variables["path"] != "hero" {
		t.Error("choice metadata must still be merged")
	}
}

func TestTerminal_StoryComplete(t *testing.T) {
	m := buildModel(t,
		&story.Chapter{
			ID: "a", Kind: story.KindStory, Title: "A", Description: "d",
			Rewards: story.Rewards{Exp: 50},
		},
	)
	eng, applier, notifier := newTestEngine(t, m)

	rec := state.NewProgressRecord("p1", "a")
	done, err := eng.Advance(context.Background(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done.StoryComplete {
		t.Fatal("terminal chapter must complete the story")
	}
	if !done.HasCompleted("a") {
		t.Error("terminal chapter must still be completed")
	}
	if applier.calls["p1:a"] != 1 {
		t.Errorf("terminal chapter rewards applied %d times", applier.calls["p1:a"])
	}
	found := false
	for _, e := range notifier.events {
		if e == "story_complete" {
			found = true
		}
	}
	if !found {
		t.Error("expected story_complete event")
	}

	// Further operations are no-ops.
	again, err := eng.Advance(context.Background(), done)
	if err != nil || again != done {
		t.Errorf("advance on complete record should be a no-op, got (%v, %v)", again, err)
	}
	again, err = eng.Choose(context.Background(), done, 0)
	if err != nil || again != done {
		t.Errorf("choose on complete record should be a no-op, got (%v, %v)", again, err)
	}
	p, err := eng.Enter(done)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Type != PresentationComplete || !p.StoryComplete {
		t.Errorf("expected story-complete presentation, got %#v", p)
	}
}

func TestRequirementsNotMet(t *testing.T) {
	m := buildModel(t,
		&story.Chapter{
			ID: "a", Kind: story.KindStory, Title: "A", Description: "d",
			NextChapter: "b",
		},
		&story.Chapter{
			ID: "b", Kind: story.KindStory, Title: "B", Description: "d",
			Requirements: story.Requirements{Chapters: []string{"secret"}},
		},
	)
	applier := newFakeApplier()
	eng := NewEngine(m, &fakeEligibility{allow: false}, applier, nil, nil)

	rec := state.NewProgressRecord("p1", "a")
	_, err := eng.Advance(context.Background(), rec)

	var notMet *RequirementsNotMetError
	if !errors.As(err, &notMet) {
		t.Fatalf("expected RequirementsNotMetError, got %v", err)
	}
	if notMet.ChapterID != "b" {
		t.Errorf("error should name the blocked chapter, got %q", notMet.ChapterID)
	}
	if rec.HasCompleted("a") {
		t.Error("blocked transition must not complete the chapter")
	}
	if applier.calls["p1:a"] != 0 {
		t.Error("blocked transition must not apply rewards")
	}
}

func TestRewardFailureAbortsTransition(t *testing.T) {
	m := buildModel(t,
		&story.Chapter{
			ID: "a", Kind: story.KindStory, Title: "A", Description: "d",
			NextChapter: "b",
			Rewards:     story.Rewards{Coins: 5},
		},
		&story.Chapter{ID: "b", Kind: story.KindStory, Title: "B", Description: "d"},
	)
	applier := newFakeApplier()
	applier.err = errors.New("economy unavailable")
	eng := NewEngine(m, nil, applier, nil, nil)

	rec := state.NewProgressRecord("p1", "a")
	next, err := eng.Advance(context.Background(), rec)
	if err == nil {
		t.Fatalf("expected error, got state %q", next.CurrentChapter)
	}
	if rec.HasCompleted("a") || len(rec.PendingRewards) != 0 {
		t.Error("failed reward application must leave the record untouched")
	}
}

func TestEnter_Presentations(t *testing.T) {
	m := buildModel(t,
		&story.Chapter{
			ID: "a", Kind: story.KindStory, Title: "Arrival", Description: "Day one.",
			Dialogues: []story.DialogueStep{
				{Text: "line one"},
				{Text: "pick", Choices: []story.Choice{{Text: "nested"}}},
			},
		},
	)
	eng, _, _ := newTestEngine(t, m)

	rec := state.NewProgressRecord("p1", "a")

	p, err := eng.Enter(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Type != PresentationDialogue || p.Text != "line one" || len(p.Choices) != 0 {
		t.Errorf("unexpected dialogue presentation: %#v", p)
	}

	rec.DialogueIndex = 1
	p, err = eng.Enter(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Type != PresentationDialogue || len(p.Choices) != 1 {
		t.Errorf("expected nested choices in presentation, got %#v", p)
	}

	rec.DialogueIndex = 2
	p, err = eng.Enter(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Type != PresentationContinue {
		t.Errorf("expected continue affordance past the dialogue, got %#v", p)
	}
}

func TestReload_SwapsModel(t *testing.T) {
	m1 := buildModel(t, &story.Chapter{ID: "a", Kind: story.KindStory, Title: "A", Description: "d"})
	m2 := buildModel(t, &story.Chapter{ID: "z", Kind: story.KindStory, Title: "Z", Description: "d"})

	eng, _, _ := newTestEngine(t, m1)
	if eng.Model().EntryID() != "a" {
		t.Fatalf("unexpected initial entry %q", eng.Model().EntryID())
	}
	eng.Reload(m2)
	if eng.Model().EntryID() != "z" {
		t.Errorf("expected reloaded entry z, got %q", eng.Model().EntryID())
	}
}
