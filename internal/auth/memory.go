package auth

import (
	"context"
	"strings"
	"sync"
)

// MemoryUsers is a UserStore kept in process memory.
type MemoryUsers struct {
	mu      sync.RWMutex
	byEmail map[string]User
}

var _ UserStore = (*MemoryUsers)(nil)

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{byEmail: make(map[string]User)}
}

func (m *MemoryUsers) CreateUser(_ context.Context, u User) error {
	key := strings.ToLower(u.Email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[key]; ok {
		return ErrEmailTaken
	}
	m.byEmail[key] = u
	return nil
}

func (m *MemoryUsers) UserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}
