package comments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CBerg14/balloon-pump-backend/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(store.NewMemStore(), zap.NewNop())
}

func TestAdd_AssignsUniqueTimestamps(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	c1, err := svc.Add(ctx, store.Comment{Wallet: "w1", Nickname: "nick", Text: "first"})
	require.NoError(t, err)
	c2, err := svc.Add(ctx, store.Comment{Wallet: "w2", Nickname: "other", Text: "second"})
	require.NoError(t, err)

	require.False(t, c1.Timestamp.IsZero())
	require.True(t, c2.Timestamp.After(c1.Timestamp), "timestamps must be strictly increasing")

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "first", all[0].Text)
}

func TestLike_IsIdempotentPerWallet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	c, err := svc.Add(ctx, store.Comment{Wallet: "w1", Nickname: "nick", Text: "like me"})
	require.NoError(t, err)

	liked, err := svc.Like(ctx, c.Timestamp, "w2")
	require.NoError(t, err)
	require.Equal(t, 1, liked.Likes)

	liked, err = svc.Like(ctx, c.Timestamp, "w2")
	require.NoError(t, err)
	require.Equal(t, 1, liked.Likes)

	liked, err = svc.Like(ctx, c.Timestamp, "w3")
	require.NoError(t, err)
	require.Equal(t, 2, liked.Likes)
	require.ElementsMatch(t, []string{"w2", "w3"}, liked.LikedBy)
}

func TestAddReply_AttachesToComment(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	c, err := svc.Add(ctx, store.Comment{Wallet: "w1", Nickname: "nick", Text: "parent"})
	require.NoError(t, err)

	_, err = svc.AddReply(ctx, c.Timestamp, store.Reply{Wallet: "w2", Nickname: "other", Text: "child"})
	require.NoError(t, err)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Len(t, all[0].Replies, 1)
	require.Equal(t, "child", all[0].Replies[0].Text)
}

func TestAddReply_UnknownComment(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AddReply(context.Background(), svc.nextStamp(), store.Reply{Wallet: "w1", Text: "orphan"})
	require.ErrorIs(t, err, store.ErrNotFound)
}
