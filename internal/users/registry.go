package users

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/CBerg14/balloon-pump-backend/internal/store"
)

var ErrUnknownUser = errors.New("unknown user")

// Renames are rate limited per wallet.
const nicknameCooldown = 17 * time.Second

// CooldownError reports how long a wallet must wait before its next rename.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("you can only change your nickname once every %d seconds, please wait %d seconds",
		int(nicknameCooldown.Seconds()), int(e.Remaining.Seconds())+1)
}

// Registry maps wallet addresses to users. Resolve sits on the critical path
// of every pump and dump; Register and ChangeNickname are driven by client
// connections. The mutex serializes the read-modify-write cycles.
type Registry struct {
	mu  sync.Mutex
	st  store.Store
	log *zap.Logger
	now func() time.Time
}

func NewRegistry(st store.Store, log *zap.Logger) *Registry {
	return &Registry{st: st, log: log, now: time.Now}
}

// Resolve looks up the user for a wallet address.
func (r *Registry) Resolve(ctx context.Context, wallet string) (store.User, error) {
	u, err := r.st.GetUser(ctx, wallet)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrUnknownUser
	}
	if err != nil {
		return store.User{}, fmt.Errorf("resolve %q: %w", wallet, err)
	}
	return u, nil
}

// Register creates a user for a new wallet, generating a unique identifier
// and nickname, or refreshes the connection time of a known one.
func (r *Registry) Register(ctx context.Context, wallet string) (store.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.st.GetUser(ctx, wallet)
	if err == nil {
		u.LastConnection = r.now()
		if err := r.st.SaveUser(ctx, u); err != nil {
			return store.User{}, fmt.Errorf("register %q: %w", wallet, err)
		}
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, fmt.Errorf("register %q: %w", wallet, err)
	}

	existing, err := r.st.ListUsers(ctx)
	if err != nil {
		return store.User{}, fmt.Errorf("register %q: %w", wallet, err)
	}
	identifiers := make(map[string]bool, len(existing))
	nicknames := make(map[string]bool, len(existing))
	for _, e := range existing {
		identifiers[e.Identifier] = true
		nicknames[e.Nickname] = true
	}

	identifier, err := uniqueIdentifier(identifiers)
	if err != nil {
		return store.User{}, fmt.Errorf("register %q: %w", wallet, err)
	}
	nickname, err := uniqueNickname(nicknames)
	if err != nil {
		return store.User{}, fmt.Errorf("register %q: %w", wallet, err)
	}

	u = store.User{
		Identifier:     identifier,
		Wallet:         wallet,
		Nickname:       nickname,
		LastConnection: r.now(),
	}
	if err := r.st.SaveUser(ctx, u); err != nil {
		return store.User{}, fmt.Errorf("register %q: %w", wallet, err)
	}
	r.log.Info("user registered",
		zap.String("wallet", wallet),
		zap.String("identifier", identifier),
		zap.String("nickname", nickname))
	return u, nil
}

// ChangeNickname renames a wallet's user, enforcing the rename cooldown.
func (r *Registry) ChangeNickname(ctx context.Context, wallet, nickname string) (store.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.st.GetUser(ctx, wallet)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrUnknownUser
	}
	if err != nil {
		return store.User{}, fmt.Errorf("change nickname %q: %w", wallet, err)
	}

	if !u.LastNicknameChange.IsZero() {
		elapsed := r.now().Sub(u.LastNicknameChange)
		if elapsed < nicknameCooldown {
			return store.User{}, &CooldownError{Remaining: nicknameCooldown - elapsed}
		}
	}

	u.Nickname = nickname
	u.LastNicknameChange = r.now()
	if err := r.st.SaveUser(ctx, u); err != nil {
		return store.User{}, fmt.Errorf("change nickname %q: %w", wallet, err)
	}
	return u, nil
}

// SetNickname writes a nickname and change time without the cooldown check.
// This backs the REST update endpoint, which is an administrative path.
func (r *Registry) SetNickname(ctx context.Context, wallet, nickname string, changedAt time.Time) (store.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.st.GetUser(ctx, wallet)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrUnknownUser
	}
	if err != nil {
		return store.User{}, fmt.Errorf("set nickname %q: %w", wallet, err)
	}

	u.Nickname = nickname
	u.LastNicknameChange = changedAt
	if err := r.st.SaveUser(ctx, u); err != nil {
		return store.User{}, fmt.Errorf("set nickname %q: %w", wallet, err)
	}
	return u, nil
}

// List returns all known users keyed by wallet.
func (r *Registry) List(ctx context.Context) (map[string]store.User, error) {
	users, err := r.st.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	byWallet := make(map[string]store.User, len(users))
	for _, u := range users {
		byWallet[u.Wallet] = u
	}
	return byWallet, nil
}

// uniqueIdentifier draws 24-character alphanumeric identifiers until one
// misses the taken set.
func uniqueIdentifier(taken map[string]bool) (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		id := make([]byte, 24)
		for i := range id {
			num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
			if err != nil {
				return "", err
			}
			id[i] = charset[num.Int64()]
		}
		if !taken[string(id)] {
			return string(id), nil
		}
	}
}

func uniqueNickname(taken map[string]bool) (string, error) {
	for {
		buf := make([]byte, 12)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		nickname := "User_" + hex.EncodeToString(buf)
		if !taken[nickname] {
			return nickname, nil
		}
	}
}
