package store

import (
	"context"
	"errors"
	"time"

	"github.com/CBerg14/balloon-pump-backend/internal/engine"
)

var ErrNotFound = errors.New("not found")

type ActionKind string

const (
	ActionPumped          ActionKind = "Pumped"
	ActionDumped          ActionKind = "Dumped"
	ActionPumpedAndPopped ActionKind = "Pumped + popped"
)

// Action is one immutable entry of the append-only action log. Timestamps
// are strictly increasing and double as entry identifiers on the wire.
type Action struct {
	Round     int        `json:"gameRound"`
	Wallet    string     `json:"wallet"`
	Nickname  string     `json:"nickname"`
	Kind      ActionKind `json:"action"`
	Timestamp time.Time  `json:"timestamp"`
}

type User struct {
	Identifier         string    `json:"identifier"`
	Wallet             string    `json:"wallet"`
	Nickname           string    `json:"nickname"`
	LastConnection     time.Time `json:"lastConnectionDate"`
	LastNicknameChange time.Time `json:"lastNicknameChange"`
}

type Reply struct {
	Wallet    string    `json:"wallet"`
	Nickname  string    `json:"nickname"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Comment's timestamp doubles as its identifier, which is what clients send
// back when liking or replying.
type Comment struct {
	Wallet    string    `json:"wallet"`
	Nickname  string    `json:"nickname"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Likes     int       `json:"likes"`
	LikedBy   []string  `json:"likedBy"`
	Replies   []Reply   `json:"replies"`
}

// Store is the persistence boundary. The balloon state is a single durable
// record, the action log a durable append-only sequence; both survive
// restarts with their last committed values (for implementations that have a
// disk to survive on).
type Store interface {
	// LoadBalloonState returns the stored state; ok is false when no state
	// has ever been saved.
	LoadBalloonState(ctx context.Context) (s engine.State, ok bool, err error)
	SaveBalloonState(ctx context.Context, s engine.State) error

	AppendAction(ctx context.Context, a Action) error
	// ListActions returns the full log in arrival order.
	ListActions(ctx context.Context) ([]Action, error)

	GetUser(ctx context.Context, wallet string) (User, error)
	SaveUser(ctx context.Context, u User) error
	ListUsers(ctx context.Context) ([]User, error)

	ListComments(ctx context.Context) ([]Comment, error)
	AddComment(ctx context.Context, c Comment) error
	AddReply(ctx context.Context, commentID time.Time, r Reply) error
	// LikeComment records that wallet liked the comment; a second like from
	// the same wallet is a no-op. Returns the comment after the operation.
	LikeComment(ctx context.Context, commentID time.Time, wallet string) (Comment, error)

	Close() error
}
