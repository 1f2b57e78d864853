package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/users"
)

type UserStore struct {
	mu    sync.RWMutex
	users map[string]users.User
}

func NewUserStore(seed ...users.User) *UserStore {
	s := &UserStore{users: make(map[string]users.User)}
	for _, u := range seed {
		s.users[u.ID] = u
	}
	return s
}

func (s *UserStore) List(context.Context) ([]users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]users.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *UserStore) Get(_ context.Context, id string) (users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return users.User{}, fmt.Errorf("%w: %s", users.ErrNotFound, id)
	}
	return u, nil
}

// Upsert keeps the original CreatedAt of a known user.
func (s *UserStore) Upsert(_ context.Context, u users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.users[u.ID]; ok && !cur.CreatedAt.IsZero() {
		u.CreatedAt = cur.CreatedAt
	}
	s.users[u.ID] = u
	return nil
}
