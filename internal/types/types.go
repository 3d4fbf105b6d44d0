package types

import (
	"time"

	"github.com/CBerg14/balloon-pump-backend/internal/engine"
	"github.com/CBerg14/balloon-pump-backend/internal/store"
)

// Client -> server message types.
const (
	MsgHello          = "hello"
	MsgPump           = "pump"
	MsgDump           = "dump"
	MsgCheckGameState = "checkGameState"
	MsgChangeNickname = "changeNickname"
	MsgNewComment     = "newComment"
	MsgLikeComment    = "likeComment"
	MsgNewReply       = "newReply"
)

// Server -> client message types.
const (
	MsgSnapshot        = "snapshot"
	MsgUpdateBalloon   = "updateBalloon"
	MsgBalloonPopped   = "balloonPopped"
	MsgGameRestarting  = "gameRestarting"
	MsgActionLogged    = "actionLogged"
	MsgGameState       = "gameState"
	MsgUserData        = "userData"
	MsgNicknameChanged = "nicknameChanged"
	MsgNicknameError   = "nicknameError"
	MsgCommentAdded    = "commentAdded"
	MsgCommentLiked    = "commentLiked"
	MsgReplyAdded      = "replyAdded"
	MsgError           = "error"
)

type ClientMessage struct {
	Type      string    `json:"type"`
	Wallet    string    `json:"wallet,omitempty"`
	Nickname  string    `json:"nickname,omitempty"`
	Text      string    `json:"text,omitempty"`
	CommentID time.Time `json:"commentId,omitempty"`
}

// ServerMessage is the single outbound envelope; which fields are set
// depends on Type.
type ServerMessage struct {
	Type      string          `json:"type"`
	State     *engine.State   `json:"state,omitempty"`
	Action    *store.Action   `json:"action,omitempty"`
	Actions   []store.Action  `json:"actions,omitempty"`
	Comment   *store.Comment  `json:"comment,omitempty"`
	Comments  []store.Comment `json:"comments,omitempty"`
	Reply     *store.Reply    `json:"reply,omitempty"`
	CommentID *time.Time      `json:"commentId,omitempty"`
	User      *store.User     `json:"user,omitempty"`
	Wallet    string          `json:"wallet,omitempty"`
	Nickname  string          `json:"nickname,omitempty"`
	Message   string          `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
}
