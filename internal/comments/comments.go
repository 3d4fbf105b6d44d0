package comments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/CBerg14/balloon-pump-backend/internal/store"
)

// Service manages the comment board: comments, replies, and like tracking.
// Likes are idempotent per wallet. Comment identity is the timestamp, which
// the service stamps and keeps strictly increasing so clients can use it as
// an id.
type Service struct {
	mu        sync.Mutex
	st        store.Store
	log       *zap.Logger
	lastStamp time.Time
}

func NewService(st store.Store, log *zap.Logger) *Service {
	return &Service{st: st, log: log}
}

func (s *Service) List(ctx context.Context) ([]store.Comment, error) {
	return s.st.ListComments(ctx)
}

// Add stores a new comment and returns it with its assigned timestamp.
func (s *Service) Add(ctx context.Context, c store.Comment) (store.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.Timestamp = s.nextStamp()
	c.Likes = 0
	c.LikedBy = nil
	c.Replies = nil
	if err := s.st.AddComment(ctx, c); err != nil {
		return store.Comment{}, fmt.Errorf("add comment: %w", err)
	}
	return c, nil
}

func (s *Service) AddReply(ctx context.Context, commentID time.Time, r store.Reply) (store.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.Timestamp = s.nextStamp()
	if err := s.st.AddReply(ctx, commentID, r); err != nil {
		return store.Reply{}, fmt.Errorf("add reply: %w", err)
	}
	return r, nil
}

// Like records wallet's like on a comment. A repeat like from the same
// wallet leaves the count unchanged.
func (s *Service) Like(ctx context.Context, commentID time.Time, wallet string) (store.Comment, error) {
	c, err := s.st.LikeComment(ctx, commentID, wallet)
	if err != nil {
		return store.Comment{}, fmt.Errorf("like comment: %w", err)
	}
	return c, nil
}

func (s *Service) nextStamp() time.Time {
	stamp := time.Now()
	if !stamp.After(s.lastStamp) {
		stamp = s.lastStamp.Add(time.Nanosecond)
	}
	s.lastStamp = stamp
	return stamp
}
