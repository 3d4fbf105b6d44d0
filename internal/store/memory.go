package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/CBerg14/balloon-pump-backend/internal/engine"
)

// MemStore keeps everything in process memory. It backs tests and
// DATABASE_URL-less dev runs; nothing survives a restart.
type MemStore struct {
	mu       sync.Mutex
	state    engine.State
	hasState bool
	actions  []Action
	users    map[string]User
	comments []Comment
}

func NewMemStore() *MemStore {
	return &MemStore{users: make(map[string]User)}
}

func (m *MemStore) LoadBalloonState(ctx context.Context) (engine.State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.hasState, nil
}

func (m *MemStore) SaveBalloonState(ctx context.Context, s engine.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	m.hasState = true
	return nil
}

func (m *MemStore) AppendAction(ctx context.Context, a Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, a)
	return nil
}

func (m *MemStore) ListActions(ctx context.Context) ([]Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.actions), nil
}

func (m *MemStore) GetUser(ctx context.Context, wallet string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[wallet]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemStore) SaveUser(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.Wallet] = u
	return nil
}

func (m *MemStore) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	return users, nil
}

func (m *MemStore) ListComments(ctx context.Context) ([]Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Comment, len(m.comments))
	for i, c := range m.comments {
		out[i] = cloneComment(c)
	}
	return out, nil
}

func (m *MemStore) AddComment(ctx context.Context, c Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments = append(m.comments, cloneComment(c))
	return nil
}

func (m *MemStore) AddReply(ctx context.Context, commentID time.Time, r Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.comments {
		if m.comments[i].Timestamp.Equal(commentID) {
			m.comments[i].Replies = append(m.comments[i].Replies, r)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemStore) LikeComment(ctx context.Context, commentID time.Time, wallet string) (Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.comments {
		if !m.comments[i].Timestamp.Equal(commentID) {
			continue
		}
		if !slices.Contains(m.comments[i].LikedBy, wallet) {
			m.comments[i].LikedBy = append(m.comments[i].LikedBy, wallet)
			m.comments[i].Likes++
		}
		return cloneComment(m.comments[i]), nil
	}
	return Comment{}, ErrNotFound
}

func (m *MemStore) Close() error { return nil }

func cloneComment(c Comment) Comment {
	c.LikedBy = slices.Clone(c.LikedBy)
	c.Replies = slices.Clone(c.Replies)
	return c
}
