package engine

import (
	"errors"
	"slices"
	"strings"
	"time"
)

var ErrWrongStatus = errors.New("action not allowed in current status")
var ErrUnknownUser = errors.New("unknown user")
var ErrInvalidUser = errors.New("invalid user")
var ErrUnknownTeam = errors.New("unknown team")
var ErrBadIndex = errors.New("answer index out of range")
var ErrAlreadyRevealed = errors.New("answer already revealed")
var ErrAlreadyRolled = errors.New("team already rolled")
var ErrBadDiceValue = errors.New("dice value out of range")
var ErrStrikeLimit = errors.New("strike limit reached")
var ErrNoActiveTeam = errors.New("no team in control")
var ErrInvalidQuiz = errors.New("invalid question set")
var ErrNoQuestion = errors.New("no question left")
var ErrBadTimer = errors.New("invalid timer")
var ErrTimerRunning = errors.New("timer has not elapsed")
var ErrInvalidRoom = errors.New("invalid room")
var ErrUnsupportedAction = errors.New("unsupported action")
var ErrHostUser = errors.New("host user cannot do that")

// MaxTimerSeconds bounds START_TIMER.
const MaxTimerSeconds = 3600

const MaxStrikes = 3

type Team string

const (
	TeamNone      Team = ""
	TeamA         Team = "A"
	TeamB         Team = "B"
	TeamSpectator Team = "SPECTATOR"
)

// Playing reports whether t is one of the two competing teams.
func (t Team) Playing() bool { return t == TeamA || t == TeamB }

func (t Team) Opponent() Team {
	switch t {
	case TeamA:
		return TeamB
	case TeamB:
		return TeamA
	default:
		return TeamNone
	}
}

type Status string

const (
	StatusLobby    Status = "LOBBY"
	StatusDuel     Status = "DUEL"
	StatusRound    Status = "ROUND"
	StatusSteal    Status = "STEAL"
	StatusFinished Status = "FINISHED"
)

type Answer struct {
	Text   string `json:"text"`
	Points int    `json:"points"`
}

// Question is shared read-only between rooms; revealed state lives on the Room.
type Question struct {
	ID      int      `json:"id"`
	Theme   string   `json:"theme"`
	Text    string   `json:"text"`
	Answers []Answer `json:"answers"`
}

type User struct {
	ID             string `json:"id"`
	Nickname       string `json:"nickname"`
	Team           Team   `json:"team"`
	IsCaptain      bool   `json:"isCaptain"`
	IsHost         bool   `json:"isHost"`
	CorrectAnswers int    `json:"correctAnswers"`
}

type Room struct {
	Code          string       `json:"code"`
	Status        Status       `json:"status"`
	TeamAName     string       `json:"teamAName"`
	TeamBName     string       `json:"teamBName"`
	TeamAScore    int          `json:"teamAScore"`
	TeamBScore    int          `json:"teamBScore"`
	RoundScore    int          `json:"roundScore"`
	Strikes       int          `json:"strikes"`
	QuestionIndex int          `json:"currentQuestionIndex"`
	Questions     []Question   `json:"questions"`
	Revealed      []int        `json:"revealedAnswers"`
	ActiveTeam    Team         `json:"activeTeam"`
	OriginalTeam  Team         `json:"originalTeam"`
	Dice          map[Team]int `json:"dice"`
	TimerEndsAt   *time.Time   `json:"timerEndsAt"`
	Users         []User       `json:"users"`
	RoundWinner   Team         `json:"roundWinner,omitempty"`
}

type ActionType string

const (
	ActCreateRoom     ActionType = "CREATE_ROOM"
	ActJoinRoom       ActionType = "JOIN_ROOM"
	ActJoinTeam       ActionType = "JOIN_TEAM"
	ActStartDuel      ActionType = "START_DUEL"
	ActRollDice       ActionType = "ROLL_DICE"
	ActStartRound     ActionType = "START_ROUND"
	ActRevealAnswer   ActionType = "REVEAL_ANSWER"
	ActAddStrike      ActionType = "ADD_STRIKE"
	ActResetStrikes   ActionType = "RESET_STRIKES"
	ActEndRound       ActionType = "END_ROUND"
	ActResetGame      ActionType = "RESET_GAME"
	ActLoadCustomQuiz ActionType = "LOAD_CUSTOM_QUIZ"
	ActSetActiveTeam  ActionType = "SET_ACTIVE_TEAM"
	ActSetTeamNames   ActionType = "SET_TEAM_NAMES"
	ActStartTimer     ActionType = "START_TIMER"
	ActStopTimer      ActionType = "STOP_TIMER"
	ActExpireTimer    ActionType = "EXPIRE_TIMER"
	ActDisconnectUser ActionType = "DISCONNECT_USER"
)

// Action is the closed set of room mutations. Every variant lives in this package.
type Action interface {
	Kind() ActionType
	isAction()
}

type CreateRoom struct {
	Code      string
	Host      User
	Questions []Question
}

type JoinRoom struct{ User User }

type JoinTeam struct {
	UserID  string
	Team    Team
	Captain bool
}

type StartDuel struct{}

type RollDice struct {
	Team  Team
	Value int
}

type StartRound struct{}

// RevealAnswer optionally credits UserID with a correct answer.
type RevealAnswer struct {
	Index  int
	UserID string
}

type AddStrike struct{}

type ResetStrikes struct{}

type EndRound struct{ Winner Team }

type ResetGame struct{}

type LoadCustomQuiz struct{ Questions []Question }

type SetActiveTeam struct{ Team Team }

type SetTeamNames struct{ A, B string }

type StartTimer struct {
	Seconds int
	Now     time.Time
}

type StopTimer struct{}

type ExpireTimer struct{ Now time.Time }

type DisconnectUser struct{ UserID string }

func (CreateRoom) Kind() ActionType     { return ActCreateRoom }
func (JoinRoom) Kind() ActionType       { return ActJoinRoom }
func (JoinTeam) Kind() ActionType       { return ActJoinTeam }
func (StartDuel) Kind() ActionType      { return ActStartDuel }
func (RollDice) Kind() ActionType       { return ActRollDice }
func (StartRound) Kind() ActionType     { return ActStartRound }
func (RevealAnswer) Kind() ActionType   { return ActRevealAnswer }
func (AddStrike) Kind() ActionType      { return ActAddStrike }
func (ResetStrikes) Kind() ActionType   { return ActResetStrikes }
func (EndRound) Kind() ActionType       { return ActEndRound }
func (ResetGame) Kind() ActionType      { return ActResetGame }
func (LoadCustomQuiz) Kind() ActionType { return ActLoadCustomQuiz }
func (SetActiveTeam) Kind() ActionType  { return ActSetActiveTeam }
func (SetTeamNames) Kind() ActionType   { return ActSetTeamNames }
func (StartTimer) Kind() ActionType     { return ActStartTimer }
func (StopTimer) Kind() ActionType      { return ActStopTimer }
func (ExpireTimer) Kind() ActionType    { return ActExpireTimer }
func (DisconnectUser) Kind() ActionType { return ActDisconnectUser }

func (CreateRoom) isAction()     {}
func (JoinRoom) isAction()       {}
func (JoinTeam) isAction()       {}
func (StartDuel) isAction()      {}
func (RollDice) isAction()       {}
func (StartRound) isAction()     {}
func (RevealAnswer) isAction()   {}
func (AddStrike) isAction()      {}
func (ResetStrikes) isAction()   {}
func (EndRound) isAction()       {}
func (ResetGame) isAction()      {}
func (LoadCustomQuiz) isAction() {}
func (SetActiveTeam) isAction()  {}
func (SetTeamNames) isAction()   {}
func (StartTimer) isAction()     {}
func (StopTimer) isAction()      {}
func (ExpireTimer) isAction()    {}
func (DisconnectUser) isAction() {}

type EventType string

const (
	EvtRoomCreated    EventType = "RoomCreated"
	EvtUserJoined     EventType = "UserJoined"
	EvtUserMoved      EventType = "UserMoved"
	EvtUserLeft       EventType = "UserLeft"
	EvtDuelStarted    EventType = "DuelStarted"
	EvtDiceRolled     EventType = "DiceRolled"
	EvtDiceTied       EventType = "DiceTied"
	EvtDuelResolved   EventType = "DuelResolved"
	EvtRoundStarted   EventType = "RoundStarted"
	EvtAnswerRevealed EventType = "AnswerRevealed"
	EvtStrikeAdded    EventType = "StrikeAdded"
	EvtStrikesReset   EventType = "StrikesReset"
	EvtStealStarted   EventType = "StealStarted"
	EvtStealSucceeded EventType = "StealSucceeded"
	EvtStealFailed    EventType = "StealFailed"
	EvtBankAwarded    EventType = "BankAwarded"
	EvtRoundEnded     EventType = "RoundEnded"
	EvtGameOver       EventType = "GameOver"
	EvtGameReset      EventType = "GameReset"
	EvtQuizLoaded     EventType = "QuizLoaded"
	EvtControlChanged EventType = "ControlChanged"
	EvtTeamsRenamed   EventType = "TeamsRenamed"
	EvtTimerStarted   EventType = "TimerStarted"
	EvtTimerStopped   EventType = "TimerStopped"
	EvtTimerExpired   EventType = "TimerExpired"
)

type Event struct {
	Type   EventType `json:"type"`
	Team   Team      `json:"team,omitempty"`
	UserID string    `json:"userId,omitempty"`
	Index  int       `json:"index,omitempty"`
	Points int       `json:"points,omitempty"`
	Value  int       `json:"value,omitempty"`
}

/*
	Every successful action returns the events it produced alongside the next room.
	A rejected action returns the input room untouched plus the reason, so callers
	can always keep the returned room.

	REVEAL_ANSWER -> AnswerRevealed [-> StealSucceeded | -> BankAwarded]
	ADD_STRIKE    -> StrikeAdded [-> StealStarted | -> StealFailed -> BankAwarded]
	ROLL_DICE     -> DiceRolled [-> DiceTied | -> DuelResolved -> RoundStarted]
	END_ROUND     -> [BankAwarded ->] RoundEnded [-> GameOver]
*/

func Apply(r Room, a Action) ([]Event, Room, error) {
	if a == nil {
		return nil, r, ErrUnsupportedAction
	}
	if !allowed(a.Kind(), r.Status) {
		return nil, r, ErrWrongStatus
	}

	switch act := a.(type) {
	case CreateRoom:
		next, err := NewRoom(act.Code, act.Host, act.Questions)
		if err != nil {
			return nil, r, err
		}
		return []Event{{Type: EvtRoomCreated, UserID: act.Host.ID}}, next, nil

	case JoinRoom:
		id := strings.TrimSpace(act.User.ID)
		nick := normalizeNickname(act.User.Nickname)
		if id == "" || nick == "" {
			return nil, r, ErrInvalidUser
		}
		next := r.clone()
		if i := next.userIndex(id); i >= 0 {
			if next.Users[i].IsHost {
				return nil, r, ErrHostUser
			}
			next.Users[i].Nickname = nick
		} else {
			next.Users = append(next.Users, User{ID: id, Nickname: nick, Team: TeamSpectator})
		}
		return []Event{{Type: EvtUserJoined, UserID: id}}, next, nil

	case JoinTeam:
		i := r.userIndex(act.UserID)
		if i < 0 {
			return nil, r, ErrUnknownUser
		}
		if !act.Team.Playing() && act.Team != TeamSpectator {
			return nil, r, ErrUnknownTeam
		}
		if r.Users[i].IsHost && act.Team != TeamSpectator {
			return nil, r, ErrHostUser
		}
		next := r.clone()
		captain := act.Captain && act.Team.Playing()
		if captain {
			for j := range next.Users {
				if next.Users[j].Team == act.Team {
					next.Users[j].IsCaptain = false
				}
			}
		}
		next.Users[i].Team = act.Team
		next.Users[i].IsCaptain = captain
		return []Event{{Type: EvtUserMoved, UserID: act.UserID, Team: act.Team}}, next, nil

	case StartDuel:
		if _, ok := r.CurrentQuestion(); !ok {
			return nil, r, ErrNoQuestion
		}
		next := r.clone()
		next.Status = StatusDuel
		next.Dice = map[Team]int{}
		next.ActiveTeam = TeamNone
		next.OriginalTeam = TeamNone
		return []Event{{Type: EvtDuelStarted}}, next, nil

	case RollDice:
		if !act.Team.Playing() {
			return nil, r, ErrUnknownTeam
		}
		if act.Value < 1 || act.Value > 6 {
			return nil, r, ErrBadDiceValue
		}
		if _, rolled := r.Dice[act.Team]; rolled {
			return nil, r, ErrAlreadyRolled
		}
		next := r.clone()
		next.Dice[act.Team] = act.Value
		events := []Event{{Type: EvtDiceRolled, Team: act.Team, Value: act.Value}}

		rollA, okA := next.Dice[TeamA]
		rollB, okB := next.Dice[TeamB]
		if !okA || !okB {
			return events, next, nil
		}
		if rollA == rollB {
			next.Dice = map[Team]int{}
			next.ActiveTeam = TeamNone
			return append(events, Event{Type: EvtDiceTied, Value: rollA}), next, nil
		}
		winner := TeamA
		if rollB > rollA {
			winner = TeamB
		}
		next.ActiveTeam = winner
		next.OriginalTeam = winner
		next.startRound()
		events = append(events,
			Event{Type: EvtDuelResolved, Team: winner},
			Event{Type: EvtRoundStarted, Team: winner},
		)
		return events, next, nil

	case StartRound:
		if _, ok := r.CurrentQuestion(); !ok {
			return nil, r, ErrNoQuestion
		}
		next := r.clone()
		next.startRound()
		return []Event{{Type: EvtRoundStarted, Team: next.ActiveTeam}}, next, nil

	case RevealAnswer:
		return reveal(r, act)

	case AddStrike:
		return strike(r)

	case ResetStrikes:
		next := r.clone()
		next.Strikes = 0
		return []Event{{Type: EvtStrikesReset}}, next, nil

	case EndRound:
		if act.Winner != TeamNone && !act.Winner.Playing() {
			return nil, r, ErrUnknownTeam
		}
		if _, ok := r.CurrentQuestion(); !ok {
			return nil, r, ErrNoQuestion
		}
		next := r.clone()
		var events []Event
		if act.Winner.Playing() && next.RoundScore > 0 {
			events = append(events, next.award(act.Winner))
		}
		next.RoundScore = 0
		next.QuestionIndex++
		next.resetRound()
		events = append(events, Event{Type: EvtRoundEnded, Team: act.Winner})
		if next.Exhausted() {
			next.Status = StatusFinished
			events = append(events, Event{Type: EvtGameOver})
		} else {
			next.Status = StatusLobby
		}
		return events, next, nil

	case ResetGame:
		next := r.clone()
		next.TeamAScore, next.TeamBScore = 0, 0
		next.RoundScore = 0
		next.QuestionIndex = 0
		next.RoundWinner = TeamNone
		next.resetRound()
		next.Status = StatusLobby
		return []Event{{Type: EvtGameReset}}, next, nil

	case LoadCustomQuiz:
		if err := ValidateQuestions(act.Questions); err != nil {
			return nil, r, err
		}
		next := r.clone()
		next.Questions = slices.Clone(act.Questions)
		next.TeamAScore, next.TeamBScore = 0, 0
		next.RoundScore = 0
		next.QuestionIndex = 0
		next.RoundWinner = TeamNone
		next.resetRound()
		next.Status = StatusLobby
		return []Event{{Type: EvtQuizLoaded, Value: len(act.Questions)}}, next, nil

	case SetActiveTeam:
		if act.Team != TeamNone && !act.Team.Playing() {
			return nil, r, ErrUnknownTeam
		}
		next := r.clone()
		next.ActiveTeam = act.Team
		return []Event{{Type: EvtControlChanged, Team: act.Team}}, next, nil

	case SetTeamNames:
		a, b := strings.TrimSpace(act.A), strings.TrimSpace(act.B)
		if a == "" && b == "" {
			return nil, r, ErrInvalidRoom
		}
		next := r.clone()
		if a != "" {
			next.TeamAName = a
		}
		if b != "" {
			next.TeamBName = b
		}
		return []Event{{Type: EvtTeamsRenamed}}, next, nil

	case StartTimer:
		if act.Seconds <= 0 || act.Seconds > MaxTimerSeconds || act.Now.IsZero() {
			return nil, r, ErrBadTimer
		}
		next := r.clone()
		ends := act.Now.Add(time.Duration(act.Seconds) * time.Second).UTC()
		next.TimerEndsAt = &ends
		return []Event{{Type: EvtTimerStarted, Value: act.Seconds}}, next, nil

	case StopTimer:
		if r.TimerEndsAt == nil {
			return nil, r, ErrBadTimer
		}
		next := r.clone()
		next.TimerEndsAt = nil
		return []Event{{Type: EvtTimerStopped}}, next, nil

	case ExpireTimer:
		if r.TimerEndsAt == nil {
			return nil, r, ErrBadTimer
		}
		if act.Now.Before(*r.TimerEndsAt) {
			return nil, r, ErrTimerRunning
		}
		next := r.clone()
		next.TimerEndsAt = nil
		return []Event{{Type: EvtTimerExpired}}, next, nil

	case DisconnectUser:
		i := r.userIndex(act.UserID)
		if i < 0 {
			return nil, r, ErrUnknownUser
		}
		next := r.clone()
		next.Users = slices.Delete(next.Users, i, i+1)
		return []Event{{Type: EvtUserLeft, UserID: act.UserID}}, next, nil

	default:
		return nil, r, ErrUnsupportedAction
	}
}

func reveal(r Room, act RevealAnswer) ([]Event, Room, error) {
	q, ok := r.CurrentQuestion()
	if !ok {
		return nil, r, ErrNoQuestion
	}
	if act.Index < 0 || act.Index >= len(q.Answers) {
		return nil, r, ErrBadIndex
	}
	if r.IsRevealed(act.Index) {
		return nil, r, ErrAlreadyRevealed
	}

	next := r.clone()
	next.Revealed = append(next.Revealed, act.Index)
	points := q.Answers[act.Index].Points
	events := []Event{{Type: EvtAnswerRevealed, Index: act.Index, Points: points, UserID: act.UserID}}

	// After the round is decided reveals only show the remaining board.
	if r.Status == StatusFinished {
		events[0].Points = 0
		return events, next, nil
	}

	next.RoundScore += points
	if i := next.userIndex(act.UserID); i >= 0 {
		next.Users[i].CorrectAnswers++
	}

	switch {
	case r.Status == StatusSteal:
		stealer := next.ActiveTeam
		if !stealer.Playing() {
			stealer = next.OriginalTeam.Opponent()
		}
		events = append(events,
			Event{Type: EvtStealSucceeded, Team: stealer},
			next.award(stealer),
		)
		next.Strikes = 0
		next.Status = StatusFinished

	case len(next.Revealed) == len(q.Answers):
		if next.ActiveTeam.Playing() {
			events = append(events, next.award(next.ActiveTeam))
		}
		next.Status = StatusFinished
	}
	return events, next, nil
}

func strike(r Room) ([]Event, Room, error) {
	switch r.Status {
	case StatusRound:
		if r.Strikes >= MaxStrikes {
			return nil, r, ErrStrikeLimit
		}
		if r.Strikes == MaxStrikes-1 && !r.ActiveTeam.Playing() {
			return nil, r, ErrNoActiveTeam
		}
		next := r.clone()
		next.Strikes++
		events := []Event{{Type: EvtStrikeAdded, Team: next.ActiveTeam, Value: next.Strikes}}
		if next.Strikes == MaxStrikes {
			next.OriginalTeam = r.ActiveTeam
			next.ActiveTeam = r.ActiveTeam.Opponent()
			next.Status = StatusSteal
			events = append(events, Event{Type: EvtStealStarted, Team: next.ActiveTeam})
		}
		return events, next, nil

	case StatusSteal:
		next := r.clone()
		events := []Event{
			{Type: EvtStrikeAdded, Team: next.ActiveTeam, Value: next.Strikes},
			{Type: EvtStealFailed, Team: next.ActiveTeam},
		}
		if next.OriginalTeam.Playing() {
			events = append(events, next.award(next.OriginalTeam))
		}
		next.Strikes = 0
		next.Status = StatusFinished
		return events, next, nil

	default:
		return nil, r, ErrWrongStatus
	}
}
