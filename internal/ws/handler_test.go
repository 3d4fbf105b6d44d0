package ws_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CBerg14/balloon-pump-backend/internal/comments"
	"github.com/CBerg14/balloon-pump-backend/internal/game"
	"github.com/CBerg14/balloon-pump-backend/internal/httpapi"
	"github.com/CBerg14/balloon-pump-backend/internal/metrics"
	"github.com/CBerg14/balloon-pump-backend/internal/store"
	"github.com/CBerg14/balloon-pump-backend/internal/types"
	"github.com/CBerg14/balloon-pump-backend/internal/users"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	st := store.NewMemStore()
	log := zap.NewNop()
	reg := users.NewRegistry(st, log)
	cmts := comments.NewService(st, log)
	room, err := game.NewRoom(ctx, st, reg, cmts, metrics.New(), log, game.Options{
		Roll: func() float64 { return 50.0 }, // never pops
	})
	require.NoError(t, err)

	srv := httptest.NewServer(httpapi.SetupRoutes(room, reg, cmts, metrics.New(), "", log))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, srv.URL+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg types.ClientMessage) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, payload))
}

func readMsg(t *testing.T, conn *websocket.Conn) types.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg types.ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// readUntil reads messages until one of the wanted type arrives, returning
// everything seen along the way. Direct replies and broadcasts come from
// different writers, so relative order across the two is not asserted.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) (types.ServerMessage, []types.ServerMessage) {
	t.Helper()
	var seen []types.ServerMessage
	for i := 0; i < 20; i++ {
		msg := readMsg(t, conn)
		if msg.Type == msgType {
			return msg, seen
		}
		seen = append(seen, msg)
	}
	t.Fatalf("never received %q; saw %+v", msgType, seen)
	return types.ServerMessage{}, nil
}

func TestHandler_ConnectSendsSnapshot(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	snap := readMsg(t, conn)
	require.Equal(t, types.MsgSnapshot, snap.Type)
	require.NotNil(t, snap.State)
	require.Equal(t, 0, snap.State.Size)
	require.False(t, snap.State.Ended)
}

func TestHandler_PumpFlow(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)
	readMsg(t, conn) // snapshot

	send(t, conn, types.ClientMessage{Type: types.MsgHello, Wallet: "wallet-1"})
	userData := readMsg(t, conn)
	require.Equal(t, types.MsgUserData, userData.Type)
	require.NotNil(t, userData.User)
	nickname := userData.User.Nickname

	send(t, conn, types.ClientMessage{Type: types.MsgPump, Wallet: "wallet-1"})
	send(t, conn, types.ClientMessage{Type: types.MsgCheckGameState})

	state, seen := readUntil(t, conn, types.MsgGameState)
	require.Equal(t, 1, state.State.Size)
	require.Equal(t, nickname, state.State.LastActor)

	// The broadcast writer and the direct reply race on the socket; the
	// pump's two broadcasts may land after the gameState reply.
	kinds := make(map[string]int)
	for _, m := range seen {
		kinds[m.Type]++
	}
	for i := 0; i < 10 && (kinds[types.MsgActionLogged] == 0 || kinds[types.MsgUpdateBalloon] == 0); i++ {
		kinds[readMsg(t, conn).Type]++
	}
	require.Equal(t, 1, kinds[types.MsgActionLogged], "exactly one log entry per accepted pump")
	require.Equal(t, 1, kinds[types.MsgUpdateBalloon])
}

func TestHandler_PumpWithoutWalletIsRejected(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)
	readMsg(t, conn) // snapshot

	send(t, conn, types.ClientMessage{Type: types.MsgPump})
	errMsg := readMsg(t, conn)
	require.Equal(t, types.MsgError, errMsg.Type)
	require.Equal(t, "missing wallet", errMsg.Error)
}

func TestHandler_CommentFlow(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)
	readMsg(t, conn) // snapshot

	send(t, conn, types.ClientMessage{Type: types.MsgHello, Wallet: "wallet-1"})
	readMsg(t, conn) // userData

	send(t, conn, types.ClientMessage{Type: types.MsgNewComment, Wallet: "wallet-1", Text: "to the moon"})
	added, _ := readUntil(t, conn, types.MsgCommentAdded)
	require.NotNil(t, added.Comment)
	require.Equal(t, "to the moon", added.Comment.Text)

	send(t, conn, types.ClientMessage{Type: types.MsgLikeComment, Wallet: "wallet-1", CommentID: added.Comment.Timestamp})
	liked, _ := readUntil(t, conn, types.MsgCommentLiked)
	require.Equal(t, 1, liked.Comment.Likes)

	// A fresh connection's snapshot carries the comment board.
	conn2 := dial(t, srv)
	snap := readMsg(t, conn2)
	require.Equal(t, types.MsgSnapshot, snap.Type)
	require.Len(t, snap.Comments, 1)
	require.Equal(t, 1, snap.Comments[0].Likes)
}

func TestHandler_UnknownTypeGetsError(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)
	readMsg(t, conn) // snapshot

	send(t, conn, types.ClientMessage{Type: "teleport"})
	errMsg := readMsg(t, conn)
	require.Equal(t, types.MsgError, errMsg.Type)
	require.Equal(t, "unknown type", errMsg.Error)
}

func TestHandler_MalformedJSONGetsError(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)
	readMsg(t, conn) // snapshot

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{pump")))

	errMsg := readMsg(t, conn)
	require.Equal(t, types.MsgError, errMsg.Type)
	require.Equal(t, "bad json", errMsg.Error)

	// The connection survives and nothing was mutated.
	send(t, conn, types.ClientMessage{Type: types.MsgCheckGameState})
	state, _ := readUntil(t, conn, types.MsgGameState)
	require.Equal(t, 0, state.State.Size)
	require.False(t, state.State.Ended)
}
