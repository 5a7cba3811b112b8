package memory

import (
	"context"
	"sync"

	"github.com/kavichu/picstream/pkg/picstream"
)

// UserStore implements picstream.UserStore using in-memory storage.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*picstream.User
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*picstream.User)}
}

func (s *UserStore) CreateUser(ctx context.Context, user *picstream.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return picstream.ErrAlreadyExists
	}

	userCopy := *user
	s.users[user.ID] = &userCopy
	return nil
}

func (s *UserStore) GetUser(ctx context.Context, id string) (*picstream.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, picstream.ErrUserNotFound
	}

	userCopy := *user
	return &userCopy, nil
}
