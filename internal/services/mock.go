package services

import (
	"context"
	"sync"

	"github.com/disparter/toguwaka-discord-game-sub002/pkg/state"
	"github.com/disparter/toguwaka-discord-game-sub002/pkg/story"
)

// MockEligibility is a test EligibilityChecker.
type MockEligibility struct {
	Allow     bool
	Err       error
	CheckFunc func(ctx context.Context, rec *state.ProgressRecord, req story.Requirements) (bool, error)
}

func NewMockEligibility() *MockEligibility {
	return &MockEligibility{Allow: true}
}

func (m *MockEligibility) Check(ctx context.Context, rec *state.ProgressRecord, req story.Requirements) (bool, error) {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, rec, req)
	}
	return m.Allow, m.Err
}

// MockRewardApplier records applications and enforces the per
// (player, chapter) idempotency contract in memory.
type MockRewardApplier struct {
	mu      sync.Mutex
	applied map[string]int
	Err     error
}

func NewMockRewardApplier() *MockRewardApplier {
	return &MockRewardApplier{applied: make(map[string]int)}
}

func (m *MockRewardApplier) Apply(ctx context.Context, playerID, chapterID string, rewards story.Rewards) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.applied[playerID+":"+chapterID]++
	return nil
}

// Applications returns how many times rewards were applied for the pair.
func (m *MockRewardApplier) Applications(playerID, chapterID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applied[playerID+":"+chapterID]
}

// MockNotifier records notified events synchronously.
type MockNotifier struct {
	mu     sync.Mutex
	events map[string][]string
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{events: make(map[string][]string)}
}

func (m *MockNotifier) Notify(playerID string, events []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[playerID] = append(m.events[playerID], events...)
}

// Events returns the events notified for a player.
func (m *MockNotifier) Events(playerID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events[playerID]...)
}
