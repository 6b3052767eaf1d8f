package access

import (
	"crypto/subtle"
	"errors"

	"github.com/DoyleJ11/feud-live/internal/engine"
)

var ErrForbidden = errors.New("action not permitted")

const DefaultPIN = "2985"

type Role int

const (
	RoleViewer Role = iota
	RolePlayer
	RoleHost
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RolePlayer:
		return "player"
	default:
		return "viewer"
	}
}

// Gate holds the shared admin PIN.
type Gate struct {
	pin []byte
}

func NewGate(pin string) Gate {
	if pin == "" {
		pin = DefaultPIN
	}
	return Gate{pin: []byte(pin)}
}

func (g Gate) Check(pin string) bool {
	return subtle.ConstantTimeCompare(g.pin, []byte(pin)) == 1
}

// Role resolves who is talking: the PIN wins over a user id.
func (g Gate) Role(pin, userID string) Role {
	switch {
	case pin != "" && g.Check(pin):
		return RoleHost
	case userID != "":
		return RolePlayer
	default:
		return RoleViewer
	}
}

// Permit returns the action as it may be applied for sender, or ErrForbidden.
// Players act only on themselves; their captain flags and dice values are
// decided by the server.
func Permit(role Role, sender string, room engine.Room, a engine.Action) (engine.Action, error) {
	if a == nil {
		return nil, ErrForbidden
	}
	if _, internal := a.(engine.ExpireTimer); internal {
		return nil, ErrForbidden
	}
	if role == RoleHost {
		return a, nil
	}
	if role != RolePlayer {
		return nil, ErrForbidden
	}

	me, ok := room.User(sender)
	if !ok {
		return nil, ErrForbidden
	}
	switch act := a.(type) {
	case engine.JoinTeam:
		if act.UserID != me.ID {
			return nil, ErrForbidden
		}
		act.Captain = false
		return act, nil

	case engine.RollDice:
		if !me.IsCaptain || act.Team != me.Team {
			return nil, ErrForbidden
		}
		act.Value = 0
		return act, nil

	case engine.DisconnectUser:
		if act.UserID != me.ID {
			return nil, ErrForbidden
		}
		return act, nil
	}
	return nil, ErrForbidden
}
