package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DoyleJ11/feud-live/internal/engine"
)

var ErrUnknownType = errors.New("unknown message type")
var ErrMissingField = errors.New("missing field")

const (
	MsgStateSnapshot = "StateSnapshot"
	MsgError         = "Error"
)

// ClientMessage is the single envelope for every action a client can send.
// Only the fields used by Type are read.
type ClientMessage struct {
	Type      string            `json:"type"`
	UserID    string            `json:"userId,omitempty"`
	Nickname  string            `json:"nickname,omitempty"`
	Team      string            `json:"team,omitempty"`
	Captain   bool              `json:"captain,omitempty"`
	Value     int               `json:"value,omitempty"`
	Index     *int              `json:"index,omitempty"`
	Winner    string            `json:"winnerTeam,omitempty"`
	Questions []engine.Question `json:"questions,omitempty"`
	TeamA     string            `json:"teamA,omitempty"`
	TeamB     string            `json:"teamB,omitempty"`
	Seconds   int               `json:"seconds,omitempty"`
}

type ServerMessage struct {
	Type    string         `json:"type"` // "StateSnapshot" | "Error"
	Version int            `json:"version,omitempty"`
	Room    *engine.Room   `json:"room,omitempty"`
	Events  []engine.Event `json:"events,omitempty"`
	Pending bool           `json:"pending,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func Snapshot(version int, room engine.Room, events []engine.Event, pending bool) ServerMessage {
	return ServerMessage{Type: MsgStateSnapshot, Version: version, Room: &room, Events: events, Pending: pending}
}

func ErrorMessage(err error) ServerMessage {
	return ServerMessage{Type: MsgError, Error: err.Error()}
}

func team(s string) engine.Team {
	return engine.Team(strings.ToUpper(strings.TrimSpace(s)))
}

// Action decodes the message into an engine action. CREATE_ROOM and
// EXPIRE_TIMER are not accepted from clients.
func (m ClientMessage) Action() (engine.Action, error) {
	switch engine.ActionType(m.Type) {
	case engine.ActJoinRoom:
		return engine.JoinRoom{User: engine.User{ID: m.UserID, Nickname: m.Nickname}}, nil
	case engine.ActJoinTeam:
		return engine.JoinTeam{UserID: m.UserID, Team: team(m.Team), Captain: m.Captain}, nil
	case engine.ActStartDuel:
		return engine.StartDuel{}, nil
	case engine.ActRollDice:
		return engine.RollDice{Team: team(m.Team), Value: m.Value}, nil
	case engine.ActStartRound:
		return engine.StartRound{}, nil
	case engine.ActRevealAnswer:
		if m.Index == nil {
			return nil, fmt.Errorf("%w: index", ErrMissingField)
		}
		return engine.RevealAnswer{Index: *m.Index, UserID: m.UserID}, nil
	case engine.ActAddStrike:
		return engine.AddStrike{}, nil
	case engine.ActResetStrikes:
		return engine.ResetStrikes{}, nil
	case engine.ActEndRound:
		return engine.EndRound{Winner: team(m.Winner)}, nil
	case engine.ActResetGame:
		return engine.ResetGame{}, nil
	case engine.ActLoadCustomQuiz:
		return engine.LoadCustomQuiz{Questions: m.Questions}, nil
	case engine.ActSetActiveTeam:
		return engine.SetActiveTeam{Team: team(m.Team)}, nil
	case engine.ActSetTeamNames:
		return engine.SetTeamNames{A: m.TeamA, B: m.TeamB}, nil
	case engine.ActStartTimer:
		return engine.StartTimer{Seconds: m.Seconds}, nil
	case engine.ActStopTimer:
		return engine.StopTimer{}, nil
	case engine.ActDisconnectUser:
		return engine.DisconnectUser{UserID: m.UserID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
}
