package game

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/CBerg14/balloon-pump-backend/internal/engine"
	"github.com/CBerg14/balloon-pump-backend/internal/metrics"
	"github.com/CBerg14/balloon-pump-backend/internal/store"
	"github.com/CBerg14/balloon-pump-backend/internal/types"
)

// Registry is the room's read path into user identity. Nicknames are
// snapshotted into log entries at action time; later renames never rewrite
// history.
type Registry interface {
	Resolve(ctx context.Context, wallet string) (store.User, error)
}

// CommentSource feeds the comment board into connect snapshots.
type CommentSource interface {
	List(ctx context.Context) ([]store.Comment, error)
}

type Msg interface{ isRoomMsg() }

type Join struct {
	ClientID string
	Outbox   chan types.ServerMessage
}

type Leave struct{ ClientID string }

type Pump struct{ Wallet string }

type Dump struct{ Wallet string }

// GetState answers the checkGameState round trip.
type GetState struct {
	Reply chan View
}

// Broadcast fans an arbitrary message out to every client through the same
// serialized loop as game events, so comment and nickname traffic keeps the
// global commit order.
type Broadcast struct {
	Msg types.ServerMessage
}

type Shutdown struct{}

// restartDue is posted by the cooldown timer back into the inbox.
type restartDue struct{}

func (Join) isRoomMsg()       {}
func (Leave) isRoomMsg()      {}
func (Pump) isRoomMsg()       {}
func (Dump) isRoomMsg()       {}
func (GetState) isRoomMsg()   {}
func (Broadcast) isRoomMsg()  {}
func (Shutdown) isRoomMsg()   {}
func (restartDue) isRoomMsg() {}

// View is a fully-committed snapshot of the room, safe to hand out because
// it is produced inside the loop.
type View struct {
	State      engine.State
	NumClients int
	NumActions int
}

type Options struct {
	// RestartDelay is the post-pop cooldown. Defaults to 5 seconds.
	RestartDelay time.Duration
	// Roll draws the pop value in [0,100). Defaults to math/rand; tests
	// inject fixed draws.
	Roll func() float64
}

// Room owns the balloon state, the action log, and the set of connected
// observers. Every mutation flows through one inbox channel drained by a
// single goroutine, so each action runs to completion (validate, mutate,
// persist, log, broadcast) before the next is looked at. That serialization
// is the whole concurrency story; no locks guard the state.
type Room struct {
	inbox        chan Msg
	state        engine.State
	actions      []store.Action // newest first
	clients      map[string]chan types.ServerMessage
	st           store.Store
	registry     Registry
	comments     CommentSource
	m            *metrics.Metrics
	log          *zap.Logger
	restartDelay time.Duration
	roll         func() float64
	lastStamp    time.Time
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewRoom(parent context.Context, st store.Store, registry Registry, comments CommentSource, m *metrics.Metrics, log *zap.Logger, opts Options) (*Room, error) {
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = 5 * time.Second
	}
	if opts.Roll == nil {
		opts.Roll = func() float64 { return rand.Float64() * 100 }
	}

	state, ok, err := st.LoadBalloonState(parent)
	if err != nil {
		return nil, fmt.Errorf("load balloon state: %w", err)
	}
	if !ok {
		state = engine.NewState()
	}

	stored, err := st.ListActions(parent)
	if err != nil {
		return nil, fmt.Errorf("load action log: %w", err)
	}
	actions := make([]store.Action, len(stored))
	for i, a := range stored {
		actions[len(stored)-1-i] = a
	}

	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		inbox:        make(chan Msg, 64),
		state:        state,
		actions:      actions,
		clients:      make(map[string]chan types.ServerMessage),
		st:           st,
		registry:     registry,
		comments:     comments,
		m:            m,
		log:          log,
		restartDelay: opts.RestartDelay,
		roll:         opts.Roll,
		ctx:          ctx,
		cancel:       cancel,
	}
	if len(actions) > 0 {
		r.lastStamp = actions[0].Timestamp
	}
	r.m.BalloonSize.Set(float64(state.Size))

	// A crash during the cooldown loses the timer; re-arm it so the game
	// does not stay frozen forever.
	if state.Ended {
		r.scheduleRestart()
	}

	go r.loop()
	return r, nil
}

// Inbox exposes the message channel to the transport layer and tests.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Done reports when the room has stopped draining its inbox; senders should
// select against it so they cannot block on a stopped room.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.clients[msg.ClientID] = msg.Outbox
				r.m.ConnectedClients.Set(float64(len(r.clients)))
				msg.Outbox <- r.snapshot()

			case Leave:
				if ch, ok := r.clients[msg.ClientID]; ok {
					close(ch)
					delete(r.clients, msg.ClientID)
				}
				r.m.ConnectedClients.Set(float64(len(r.clients)))

			case Pump:
				r.handleAction(engine.CmdPump, msg.Wallet)

			case Dump:
				r.handleAction(engine.CmdDump, msg.Wallet)

			case GetState:
				msg.Reply <- View{
					State:      r.state,
					NumClients: len(r.clients),
					NumActions: len(r.actions),
				}

			case Broadcast:
				r.broadcast(msg.Msg)

			case restartDue:
				r.handleRestart()

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handleAction(cmdType engine.CommandType, wallet string) {
	user, err := r.registry.Resolve(r.ctx, wallet)
	if err != nil {
		// Unknown wallets are dropped without mutation; the client side
		// pre-validates, so no reply is owed.
		r.log.Warn("action from unknown wallet", zap.String("wallet", wallet))
		return
	}

	cmd := engine.Command{Type: cmdType, Wallet: wallet, Nickname: user.Nickname}
	events, next, err := engine.Apply(r.state, cmd, r.roll())
	if err != nil {
		r.log.Info("action rejected",
			zap.String("wallet", wallet),
			zap.String("command", string(cmdType)),
			zap.Error(err))
		return
	}

	r.state = next
	r.persistState()

	for _, ev := range events {
		switch ev.Type {
		case engine.EvtPumped:
			r.m.Pumps.Inc()
			r.appendAction(store.ActionPumped, ev)
			r.broadcastState(types.MsgUpdateBalloon)

		case engine.EvtDumped:
			r.m.Dumps.Inc()
			r.appendAction(store.ActionDumped, ev)
			r.broadcastState(types.MsgUpdateBalloon)

		case engine.EvtPopped:
			r.m.Pops.Inc()
			r.broadcast(types.ServerMessage{
				Type:     types.MsgBalloonPopped,
				Wallet:   ev.Wallet,
				Nickname: ev.Nickname,
			})
			r.appendAction(store.ActionPumpedAndPopped, ev)
			r.scheduleRestart()
		}
	}

	r.m.BalloonSize.Set(float64(r.state.Size))
}

func (r *Room) handleRestart() {
	if !r.state.Ended {
		return
	}
	_, next, err := engine.Apply(r.state, engine.Command{Type: engine.CmdRestart}, 0)
	if err != nil {
		r.log.Error("restart failed", zap.Error(err))
		return
	}
	r.state = next
	r.persistState()

	s := r.state
	r.broadcast(types.ServerMessage{
		Type:    types.MsgGameRestarting,
		Message: fmt.Sprintf("Game restarting in %d seconds...", int(r.restartDelay.Seconds())),
		State:   &s,
	})
	r.log.Info("game restarted", zap.Int("round", r.state.Round))
}

// scheduleRestart arms the cooldown timer. The callback only posts a message
// back into the inbox; the actual transition runs inside the loop, so it can
// never race a pump or dump.
func (r *Room) scheduleRestart() {
	time.AfterFunc(r.restartDelay, func() {
		select {
		case r.inbox <- restartDue{}:
		case <-r.ctx.Done():
		}
	})
}

// persistState writes the balloon state through to the store. Failures are
// logged and processing continues on the in-memory state: availability over
// strict durability.
func (r *Room) persistState() {
	if err := r.st.SaveBalloonState(r.ctx, r.state); err != nil {
		r.log.Error("persist balloon state", zap.Error(err))
	}
}

func (r *Room) appendAction(kind store.ActionKind, ev engine.Event) {
	a := store.Action{
		Round:     r.state.Round,
		Wallet:    ev.Wallet,
		Nickname:  ev.Nickname,
		Kind:      kind,
		Timestamp: r.nextStamp(),
	}
	if err := r.st.AppendAction(r.ctx, a); err != nil {
		r.log.Error("persist action", zap.Error(err))
	}
	r.actions = append([]store.Action{a}, r.actions...)
	r.broadcast(types.ServerMessage{Type: types.MsgActionLogged, Action: &a})
}

// nextStamp returns a strictly increasing timestamp; entries use it as their
// identity, so two entries must never share one.
func (r *Room) nextStamp() time.Time {
	stamp := time.Now()
	if !stamp.After(r.lastStamp) {
		stamp = r.lastStamp.Add(time.Nanosecond)
	}
	r.lastStamp = stamp
	return stamp
}

// snapshot builds the full connect payload: balloon state, the entire log
// newest first, and the comment board. Late joiners reconstruct everything
// from this instead of replaying a gap.
func (r *Room) snapshot() types.ServerMessage {
	s := r.state
	cmts, err := r.comments.List(r.ctx)
	if err != nil {
		r.log.Error("load comments for snapshot", zap.Error(err))
		cmts = nil
	}
	return types.ServerMessage{
		Type:     types.MsgSnapshot,
		State:    &s,
		Actions:  r.actions,
		Comments: cmts,
	}
}

func (r *Room) broadcastState(msgType string) {
	s := r.state
	r.broadcast(types.ServerMessage{Type: msgType, State: &s})
}

func (r *Room) broadcast(msg types.ServerMessage) {
	for id, ch := range r.clients {
		select {
		case ch <- msg:
		default:
			// Slow client, full outbox: drop them. They reconnect and
			// re-snapshot rather than replaying the gap.
			r.log.Warn("dropping slow client", zap.String("client", id))
			close(ch)
			delete(r.clients, id)
			r.m.ConnectedClients.Set(float64(len(r.clients)))
		}
	}
}

func (r *Room) shutdown() {
	for id, ch := range r.clients {
		close(ch)
		delete(r.clients, id)
	}
	r.m.ConnectedClients.Set(0)
	r.cancel()
}
