package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CBerg14/balloon-pump-backend/internal/engine"
)

// balloonRow is the single durable balloon-state record (always id 1).
type balloonRow struct {
	ID        uint `gorm:"primaryKey"`
	Round     int
	Size      int
	LastActor string
	Ended     bool
	UpdatedAt time.Time
}

func (balloonRow) TableName() string { return "balloon_state" }

type actionRow struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	Round     int
	Wallet    string `gorm:"index"`
	Nickname  string
	Kind      string
	Timestamp time.Time `gorm:"index"`
}

func (actionRow) TableName() string { return "actions" }

type userRow struct {
	Wallet             string `gorm:"primaryKey"`
	Identifier         string `gorm:"uniqueIndex"`
	Nickname           string
	LastConnection     time.Time
	LastNicknameChange time.Time
}

func (userRow) TableName() string { return "users" }

// commentRow keys on the comment timestamp in unix nanoseconds, matching the
// wire identifier clients send back for likes and replies.
type commentRow struct {
	ID       int64 `gorm:"primaryKey"`
	Wallet   string
	Nickname string
	Text     string
}

func (commentRow) TableName() string { return "comments" }

type replyRow struct {
	ID        uint  `gorm:"primaryKey;autoIncrement"`
	CommentID int64 `gorm:"index"`
	Wallet    string
	Nickname  string
	Text      string
	Timestamp time.Time
}

func (replyRow) TableName() string { return "comment_replies" }

type likeRow struct {
	CommentID int64  `gorm:"primaryKey"`
	Wallet    string `gorm:"primaryKey"`
}

func (likeRow) TableName() string { return "comment_likes" }

// GormStore persists to postgres via gorm.
type GormStore struct {
	db *gorm.DB
}

func OpenGorm(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&balloonRow{}, &actionRow{}, &userRow{}, &commentRow{}, &replyRow{}, &likeRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (g *GormStore) LoadBalloonState(ctx context.Context) (engine.State, bool, error) {
	var row balloonRow
	err := g.db.WithContext(ctx).First(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.State{}, false, nil
	}
	if err != nil {
		return engine.State{}, false, fmt.Errorf("load balloon state: %w", err)
	}
	return engine.State{Round: row.Round, Size: row.Size, LastActor: row.LastActor, Ended: row.Ended}, true, nil
}

func (g *GormStore) SaveBalloonState(ctx context.Context, s engine.State) error {
	row := balloonRow{ID: 1, Round: s.Round, Size: s.Size, LastActor: s.LastActor, Ended: s.Ended}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save balloon state: %w", err)
	}
	return nil
}

func (g *GormStore) AppendAction(ctx context.Context, a Action) error {
	row := actionRow{
		Round:     a.Round,
		Wallet:    a.Wallet,
		Nickname:  a.Nickname,
		Kind:      string(a.Kind),
		Timestamp: a.Timestamp,
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append action: %w", err)
	}
	return nil
}

func (g *GormStore) ListActions(ctx context.Context) ([]Action, error) {
	var rows []actionRow
	if err := g.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	actions := make([]Action, len(rows))
	for i, r := range rows {
		actions[i] = Action{
			Round:     r.Round,
			Wallet:    r.Wallet,
			Nickname:  r.Nickname,
			Kind:      ActionKind(r.Kind),
			Timestamp: r.Timestamp,
		}
	}
	return actions, nil
}

func (g *GormStore) GetUser(ctx context.Context, wallet string) (User, error) {
	var row userRow
	err := g.db.WithContext(ctx).First(&row, "wallet = ?", wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return userFromRow(row), nil
}

func (g *GormStore) SaveUser(ctx context.Context, u User) error {
	row := userRow{
		Wallet:             u.Wallet,
		Identifier:         u.Identifier,
		Nickname:           u.Nickname,
		LastConnection:     u.LastConnection,
		LastNicknameChange: u.LastNicknameChange,
	}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (g *GormStore) ListUsers(ctx context.Context) ([]User, error) {
	var rows []userRow
	if err := g.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]User, len(rows))
	for i, r := range rows {
		users[i] = userFromRow(r)
	}
	return users, nil
}

func (g *GormStore) ListComments(ctx context.Context) ([]Comment, error) {
	db := g.db.WithContext(ctx)

	var crows []commentRow
	if err := db.Order("id asc").Find(&crows).Error; err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	var rrows []replyRow
	if err := db.Order("id asc").Find(&rrows).Error; err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	var lrows []likeRow
	if err := db.Find(&lrows).Error; err != nil {
		return nil, fmt.Errorf("list likes: %w", err)
	}

	replies := make(map[int64][]Reply)
	for _, r := range rrows {
		replies[r.CommentID] = append(replies[r.CommentID], Reply{
			Wallet:    r.Wallet,
			Nickname:  r.Nickname,
			Text:      r.Text,
			Timestamp: r.Timestamp,
		})
	}
	likes := make(map[int64][]string)
	for _, l := range lrows {
		likes[l.CommentID] = append(likes[l.CommentID], l.Wallet)
	}

	comments := make([]Comment, len(crows))
	for i, c := range crows {
		comments[i] = Comment{
			Wallet:    c.Wallet,
			Nickname:  c.Nickname,
			Text:      c.Text,
			Timestamp: time.Unix(0, c.ID),
			Likes:     len(likes[c.ID]),
			LikedBy:   likes[c.ID],
			Replies:   replies[c.ID],
		}
	}
	return comments, nil
}

func (g *GormStore) AddComment(ctx context.Context, c Comment) error {
	row := commentRow{
		ID:       c.Timestamp.UnixNano(),
		Wallet:   c.Wallet,
		Nickname: c.Nickname,
		Text:     c.Text,
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	return nil
}

func (g *GormStore) AddReply(ctx context.Context, commentID time.Time, r Reply) error {
	id := commentID.UnixNano()
	var count int64
	if err := g.db.WithContext(ctx).Model(&commentRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("add reply: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	row := replyRow{
		CommentID: id,
		Wallet:    r.Wallet,
		Nickname:  r.Nickname,
		Text:      r.Text,
		Timestamp: r.Timestamp,
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("add reply: %w", err)
	}
	return nil
}

func (g *GormStore) LikeComment(ctx context.Context, commentID time.Time, wallet string) (Comment, error) {
	db := g.db.WithContext(ctx)
	id := commentID.UnixNano()

	var crow commentRow
	err := db.First(&crow, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Comment{}, ErrNotFound
	}
	if err != nil {
		return Comment{}, fmt.Errorf("like comment: %w", err)
	}

	// Duplicate likes from the same wallet hit the composite key and are
	// silently ignored.
	like := likeRow{CommentID: id, Wallet: wallet}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
		return Comment{}, fmt.Errorf("like comment: %w", err)
	}

	var lrows []likeRow
	if err := db.Find(&lrows, "comment_id = ?", id).Error; err != nil {
		return Comment{}, fmt.Errorf("like comment: %w", err)
	}
	likedBy := make([]string, len(lrows))
	for i, l := range lrows {
		likedBy[i] = l.Wallet
	}
	var rrows []replyRow
	if err := db.Order("id asc").Find(&rrows, "comment_id = ?", id).Error; err != nil {
		return Comment{}, fmt.Errorf("like comment: %w", err)
	}
	replies := make([]Reply, len(rrows))
	for i, r := range rrows {
		replies[i] = Reply{Wallet: r.Wallet, Nickname: r.Nickname, Text: r.Text, Timestamp: r.Timestamp}
	}

	return Comment{
		Wallet:    crow.Wallet,
		Nickname:  crow.Nickname,
		Text:      crow.Text,
		Timestamp: time.Unix(0, crow.ID),
		Likes:     len(likedBy),
		LikedBy:   likedBy,
		Replies:   replies,
	}, nil
}

func (g *GormStore) Close() error {
	db, err := g.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func userFromRow(r userRow) User {
	return User{
		Identifier:         r.Identifier,
		Wallet:             r.Wallet,
		Nickname:           r.Nickname,
		LastConnection:     r.LastConnection,
		LastNicknameChange: r.LastNicknameChange,
	}
}
