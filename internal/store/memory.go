package store

import (
	"context"
	"sort"
	"sync"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/models"
)

// MemoryStore keeps users in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	byUsername map[string]models.User
	byID       map[string]string // id -> username
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byUsername: make(map[string]models.User),
		byID:       make(map[string]string),
	}
}

func (s *MemoryStore) FindByUsername(_ context.Context, username string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byUsername[username]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username, ok := s.byID[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return s.byUsername[username], nil
}

func (s *MemoryStore) InsertIfAbsent(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[user.Username]; exists {
		return ErrDuplicate
	}
	s.byUsername[user.Username] = user
	s.byID[user.ID] = user.Username
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	users := make([]models.User, 0, len(s.byUsername))
	for _, u := range s.byUsername {
		users = append(users, u)
	}
	s.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].Username < users[j].Username
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUsername), nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
