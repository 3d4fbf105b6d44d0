package engine

import "errors"

var ErrGameEnded = errors.New("game ended, restart pending")
var ErrUnsupportedCommand = errors.New("unsupported command")

// PopThreshold is the percent chance (out of 100) that a single pump bursts
// the balloon. Product constant, deliberately not configurable.
const PopThreshold = 0.7

// State is the shared balloon state. There is exactly one of these, owned by
// the room actor; everything else sees copies.
type State struct {
	Round     int    `json:"gameRound"`
	Size      int    `json:"size"`
	LastActor string `json:"lastPumpedBy"`
	Ended     bool   `json:"gameEnded"`
}

type CommandType string

const (
	CmdPump    CommandType = "Pump"
	CmdDump    CommandType = "Dump"
	CmdRestart CommandType = "Restart"
)

type Command struct {
	Type     CommandType
	Wallet   string
	Nickname string
}

type EventType string

const (
	EvtPumped    EventType = "Pumped"
	EvtDumped    EventType = "Dumped"
	EvtPopped    EventType = "PumpedAndPopped"
	EvtRestarted EventType = "Restarted"
)

type Event struct {
	Type     EventType
	Wallet   string
	Nickname string
}

// NewState returns the balloon at the start of its first round.
func NewState() State {
	return State{Round: 1}
}

// Apply runs one command against s and returns the events it produced along
// with the resulting state. roll is the pop draw in [0,100); the caller owns
// randomness so the reducer stays deterministic under test. While Ended is
// set, pumps and dumps are rejected without mutation; only CmdRestart clears
// it.
func Apply(s State, cmd Command, roll float64) ([]Event, State, error) {
	newState := s

	switch cmd.Type {
	case CmdPump:
		if s.Ended {
			return nil, s, ErrGameEnded
		}
		if roll < PopThreshold {
			// Pop: size zeroed atomically with the end flag.
			newState.Size = 0
			newState.Ended = true
			return []Event{{Type: EvtPopped, Wallet: cmd.Wallet, Nickname: cmd.Nickname}}, newState, nil
		}
		newState.Size++
		newState.LastActor = cmd.Nickname
		return []Event{{Type: EvtPumped, Wallet: cmd.Wallet, Nickname: cmd.Nickname}}, newState, nil

	case CmdDump:
		if s.Ended {
			return nil, s, ErrGameEnded
		}
		// Floors at 0. A dump at 0 is a numeric no-op but still produces an
		// event, preserving the audit trail of attempted dumps.
		if newState.Size > 0 {
			newState.Size--
		}
		newState.LastActor = cmd.Nickname
		return []Event{{Type: EvtDumped, Wallet: cmd.Wallet, Nickname: cmd.Nickname}}, newState, nil

	case CmdRestart:
		if !s.Ended {
			return nil, s, nil
		}
		newState.Ended = false
		newState.Round++
		return []Event{{Type: EvtRestarted}}, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}
