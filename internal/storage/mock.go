package storage

import (
	"context"
	"sync"

	"github.com/disparter/toguwaka-discord-game-sub002/pkg/state"
	"github.com/disparter/toguwaka-discord-game-sub002/pkg/story"
)

// MockStorage is an in-memory Storage for tests. It honors the same
// optimistic-locking contract as RedisStorage.
type MockStorage struct {
	mu      sync.Mutex
	records map[string]*state.ProgressRecord
	model   *story.ContentModel

	// Error injection
	PingErr error
	LoadErr error
	SaveErr error

	// ConflictNext forces the next N SaveProgress calls to return
	// ErrConflict regardless of versions.
	ConflictNext int

	SaveCalls int
}

var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates an empty mock storage serving the given model.
func NewMockStorage(model *story.ContentModel) *MockStorage {
	return &MockStorage{
		records: make(map[string]*state.ProgressRecord),
		model:   model,
	}
}

func (m *MockStorage) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) LoadProgress(ctx context.Context, playerID string) (*state.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	rec, ok := m.records[playerID]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (m *MockStorage) SaveProgress(ctx context.Context, rec *state.ProgressRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if m.ConflictNext > 0 {
		m.ConflictNext--
		return ErrConflict
	}
	if stored, ok := m.records[rec.PlayerID]; ok && stored.Version != rec.Version {
		return ErrConflict
	}
	next := rec.Clone()
	next.Version = rec.Version + 1
	m.records[rec.PlayerID] = next
	rec.Version = next.Version
	return nil
}

func (m *MockStorage) LoadContent(ctx context.Context) (*story.ContentModel, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return m.model, nil
}

// SetModel swaps the model returned by LoadContent, for reload tests.
func (m *MockStorage) SetModel(model *story.ContentModel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
}
