package ws

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/CBerg14/balloon-pump-backend/internal/comments"
	"github.com/CBerg14/balloon-pump-backend/internal/game"
	"github.com/CBerg14/balloon-pump-backend/internal/store"
	"github.com/CBerg14/balloon-pump-backend/internal/types"
	"github.com/CBerg14/balloon-pump-backend/internal/users"
)

const writeTimeout = 3 * time.Second

// Handler upgrades the connection, registers it with the room, and bridges
// the JSON envelope protocol to room messages and service calls. Game
// actions go through the room inbox; everything broadcast-worthy that
// happens outside the room (nicknames, comments) is pushed back through the
// room's Broadcast message so all observers see one consistent order.
func Handler(rm *game.Room, reg *users.Registry, cmts *comments.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan types.ServerMessage, 32)
		clientID := randID(8)

		rm.Inbox() <- game.Join{ClientID: clientID, Outbox: out}
		defer func() {
			select {
			case rm.Inbox() <- game.Leave{ClientID: clientID}:
			case <-rm.Done():
			}
		}()

		// Writer goroutine: drains the room outbox plus direct replies.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range out {
				writeMsg(writeCtx, conn, msg)
			}
		}()

		c := &client{
			conn: conn,
			room: rm,
			reg:  reg,
			cmts: cmts,
			log:  log.With(zap.String("client", clientID)),
		}

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				c.reply(r.Context(), types.ServerMessage{Type: types.MsgError, Error: "bad json"})
				continue
			}
			c.handle(r.Context(), cm)
		}
	}
}

type client struct {
	conn *websocket.Conn
	room *game.Room
	reg  *users.Registry
	cmts *comments.Service
	log  *zap.Logger
}

// reply sends a message to this client only, written straight to the
// connection; the websocket library serializes concurrent writers.
func (c *client) reply(ctx context.Context, msg types.ServerMessage) {
	writeMsg(ctx, c.conn, msg)
}

func (c *client) handle(ctx context.Context, cm types.ClientMessage) {
	switch cm.Type {
	case types.MsgHello:
		if cm.Wallet == "" {
			c.reply(ctx, types.ServerMessage{Type: types.MsgError, Error: "missing wallet"})
			return
		}
		u, err := c.reg.Register(ctx, cm.Wallet)
		if err != nil {
			c.log.Error("register user", zap.Error(err))
			c.reply(ctx, types.ServerMessage{Type: types.MsgError, Error: "registration failed"})
			return
		}
		c.reply(ctx, types.ServerMessage{Type: types.MsgUserData, User: &u})

	case types.MsgPump:
		if cm.Wallet == "" {
			c.reply(ctx, types.ServerMessage{Type: types.MsgError, Error: "missing wallet"})
			return
		}
		c.room.Inbox() <- game.Pump{Wallet: cm.Wallet}

	case types.MsgDump:
		if cm.Wallet == "" {
			c.reply(ctx, types.ServerMessage{Type: types.MsgError, Error: "missing wallet"})
			return
		}
		c.room.Inbox() <- game.Dump{Wallet: cm.Wallet}

	case types.MsgCheckGameState:
		reply := make(chan game.View, 1)
		c.room.Inbox() <- game.GetState{Reply: reply}
		select {
		case view := <-reply:
			s := view.State
			c.reply(ctx, types.ServerMessage{Type: types.MsgGameState, State: &s})
		case <-ctx.Done():
		}

	case types.MsgChangeNickname:
		c.changeNickname(ctx, cm)

	case types.MsgNewComment:
		c.newComment(ctx, cm)

	case types.MsgLikeComment:
		c.likeComment(ctx, cm)

	case types.MsgNewReply:
		c.newReply(ctx, cm)

	default:
		c.reply(ctx, types.ServerMessage{Type: types.MsgError, Error: "unknown type"})
	}
}

func (c *client) changeNickname(ctx context.Context, cm types.ClientMessage) {
	if cm.Wallet == "" || cm.Nickname == "" {
		c.reply(ctx, types.ServerMessage{Type: types.MsgError, Error: "missing wallet or nickname"})
		return
	}
	u, err := c.reg.ChangeNickname(ctx, cm.Wallet, cm.Nickname)
	if err != nil {
		var cooldown *users.CooldownError
		switch {
		case errors.As(err, &cooldown):
			c.reply(ctx, types.ServerMessage{Type: types.MsgNicknameError, Message: cooldown.Error()})
		case errors.Is(err, users.ErrUnknownUser):
			c.reply(ctx, types.ServerMessage{Type: types.MsgNicknameError, Message: "User not found."})
		default:
			c.log.Error("change nickname", zap.Error(err))
			c.reply(ctx, types.ServerMessage{Type: types.MsgNicknameError, Message: "Nickname change failed."})
		}
		return
	}
	c.room.Inbox() <- game.Broadcast{Msg: types.ServerMessage{
		Type:     types.MsgNicknameChanged,
		Wallet:   u.Wallet,
		Nickname: u.Nickname,
	}}
}

func (c *client) newComment(ctx context.Context, cm types.ClientMessage) {
	u, ok := c.resolve(ctx, cm.Wallet)
	if !ok {
		return
	}
	if cm.Text == "" {
		c.reply(ctx, types.ServerMessage{Type: types.MsgError, Error: "missing text"})
		return
	}
	comment, err := c.cmts.Add(ctx, store.Comment{
		Wallet:   u.Wallet,
		Nickname: u.Nickname,
		Text:     cm.Text,
	})
	if err != nil {
		c.log.Error("add comment", zap.Error(err))
		c.reply(ctx, types.ServerMessage{Type: types.MsgError, Error: "comment failed"})
		return
	}
	c.room.Inbox() <- game.Broadcast{Msg: types.ServerMessage{
		Type:    types.MsgCommentAdded,
		Comment: &comment,
	}}
}

func (c *client) likeComment(ctx context.Context, cm types.ClientMessage) {
	if cm.Wallet == "" || cm.CommentID.IsZero() {
		c.reply(ctx, types.ServerMessage{Type: types.MsgError, Error: "missing wallet or commentId"})
		return
	}
	comment, err := c.cmts.Like(ctx, cm.CommentID, cm.Wallet)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.reply(ctx, types.ServerMessage{Type: types.MsgError, Error: "comment not found"})
			return
		}
		c.log.Error("like comment", zap.Error(err))
		c.reply(ctx, types.ServerMessage{Type: types.MsgError, Error: "like failed"})
		return
	}
	c.room.Inbox() <- game.Broadcast{Msg: types.ServerMessage{
		Type:    types.MsgCommentLiked,
		Comment: &comment,
	}}
}

func (c *client) newReply(ctx context.Context, cm types.ClientMessage) {
	u, ok := c.resolve(ctx, cm.Wallet)
	if !ok {
		return
	}
	if cm.Text == "" || cm.CommentID.IsZero() {
		c.reply(ctx, types.ServerMessage{Type: types.MsgError, Error: "missing text or commentId"})
		return
	}
	reply, err := c.cmts.AddReply(ctx, cm.CommentID, store.Reply{
		Wallet:   u.Wallet,
		Nickname: u.Nickname,
		Text:     cm.Text,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.reply(ctx, types.ServerMessage{Type: types.MsgError, Error: "comment not found"})
			return
		}
		c.log.Error("add reply", zap.Error(err))
		c.reply(ctx, types.ServerMessage{Type: types.MsgError, Error: "reply failed"})
		return
	}
	id := cm.CommentID
	c.room.Inbox() <- game.Broadcast{Msg: types.ServerMessage{
		Type:      types.MsgReplyAdded,
		CommentID: &id,
		Reply:     &reply,
	}}
}

func (c *client) resolve(ctx context.Context, wallet string) (store.User, bool) {
	if wallet == "" {
		c.reply(ctx, types.ServerMessage{Type: types.MsgError, Error: "missing wallet"})
		return store.User{}, false
	}
	u, err := c.reg.Resolve(ctx, wallet)
	if err != nil {
		c.reply(ctx, types.ServerMessage{Type: types.MsgError, Error: "unknown wallet"})
		return store.User{}, false
	}
	return u, true
}

func writeMsg(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(writeCtx, websocket.MessageText, payload)
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
