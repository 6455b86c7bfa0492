package profile

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepository is an in-process profile store safe for concurrent use
type MemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*UserProfile
}

// NewMemoryRepository creates an empty MemoryRepository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{profiles: make(map[string]*UserProfile)}
}

// Get returns a copy of the stored profile
func (m *MemoryRepository) Get(_ context.Context, userID string) (*UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	return p.Clone(), nil
}

// Put validates and stores a sealed copy of p, replacing any existing profile
func (m *MemoryRepository) Put(_ context.Context, p *UserProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	sealed := p.Clone()
	if err := SealAnswers(sealed); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = sealed
	return nil
}

// Len returns the number of stored profiles
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles)
}
