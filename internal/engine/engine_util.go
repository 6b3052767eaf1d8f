package engine

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

const (
	DefaultTeamAName = "Équipe A"
	DefaultTeamBName = "Équipe B"
	maxNicknameRunes = 24
)

// NormalizeCode is the canonical form of a room code as typed by a player.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewRoom builds a fresh lobby room with a single host user.
func NewRoom(code string, host User, questions []Question) (Room, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Room{}, ErrInvalidRoom
	}
	host.ID = strings.TrimSpace(host.ID)
	host.Nickname = normalizeNickname(host.Nickname)
	if host.ID == "" || host.Nickname == "" {
		return Room{}, ErrInvalidUser
	}
	if err := ValidateQuestions(questions); err != nil {
		return Room{}, err
	}

	host.IsHost = true
	host.IsCaptain = false
	host.Team = TeamSpectator
	host.CorrectAnswers = 0

	return Room{
		Code:      code,
		Status:    StatusLobby,
		TeamAName: DefaultTeamAName,
		TeamBName: DefaultTeamBName,
		Questions: slices.Clone(questions),
		Revealed:  []int{},
		Dice:      map[Team]int{},
		Users:     []User{host},
	}, nil
}

// ValidateQuestions rejects empty sets, blank prompts, questions without answers
// and negative point values.
func ValidateQuestions(qs []Question) error {
	if len(qs) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidQuiz)
	}
	for i, q := range qs {
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("%w: question %d has no text", ErrInvalidQuiz, i)
		}
		if len(q.Answers) == 0 {
			return fmt.Errorf("%w: question %d has no answers", ErrInvalidQuiz, i)
		}
		for j, a := range q.Answers {
			if strings.TrimSpace(a.Text) == "" || a.Points < 0 {
				return fmt.Errorf("%w: question %d answer %d", ErrInvalidQuiz, i, j)
			}
		}
	}
	return nil
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func (r Room) CurrentQuestion() (Question, bool) {
	if r.QuestionIndex < 0 || r.QuestionIndex >= len(r.Questions) {
		return Question{}, false
	}
	return r.Questions[r.QuestionIndex], true
}

// Exhausted reports whether every question of the active set has been played.
func (r Room) Exhausted() bool { return r.QuestionIndex >= len(r.Questions) }

func (r Room) IsRevealed(index int) bool { return slices.Contains(r.Revealed, index) }

func (r Room) Score(t Team) int {
	switch t {
	case TeamA:
		return r.TeamAScore
	case TeamB:
		return r.TeamBScore
	default:
		return 0
	}
}

// Remaining is the countdown every client derives from TimerEndsAt.
func (r Room) Remaining(now time.Time) time.Duration {
	if r.TimerEndsAt == nil {
		return 0
	}
	return max(0, r.TimerEndsAt.Sub(now))
}

func (r Room) User(id string) (User, bool) {
	if i := r.userIndex(id); i >= 0 {
		return r.Users[i], true
	}
	return User{}, false
}

func (r Room) Host() (User, bool) {
	for _, u := range r.Users {
		if u.IsHost {
			return u, true
		}
	}
	return User{}, false
}

func (r Room) Captain(t Team) (User, bool) {
	for _, u := range r.Users {
		if u.Team == t && u.IsCaptain {
			return u, true
		}
	}
	return User{}, false
}

func (r Room) userIndex(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(r.Users, func(u User) bool { return u.ID == id })
}

// clone copies everything Apply may mutate. Questions are never mutated in place
// and stay shared.
func (r Room) clone() Room {
	c := r
	c.Revealed = slices.Clone(r.Revealed)
	if c.Revealed == nil {
		c.Revealed = []int{}
	}
	c.Users = slices.Clone(r.Users)
	c.Dice = maps.Clone(r.Dice)
	if c.Dice == nil {
		c.Dice = map[Team]int{}
	}
	if r.TimerEndsAt != nil {
		t := *r.TimerEndsAt
		c.TimerEndsAt = &t
	}
	return c
}

// Clone returns a deep copy safe to hand to another goroutine.
func (r Room) Clone() Room { return r.clone() }

func (r *Room) startRound() {
	r.Status = StatusRound
	r.Strikes = 0
	r.RoundScore = 0
	r.Revealed = []int{}
	r.RoundWinner = TeamNone
}

func (r *Room) resetRound() {
	r.Strikes = 0
	r.Revealed = []int{}
	r.ActiveTeam = TeamNone
	r.OriginalTeam = TeamNone
	r.Dice = map[Team]int{}
	r.TimerEndsAt = nil
}

// award moves the whole bank to t.
func (r *Room) award(t Team) Event {
	points := r.RoundScore
	switch t {
	case TeamA:
		r.TeamAScore += points
	case TeamB:
		r.TeamBScore += points
	}
	r.RoundScore = 0
	r.RoundWinner = t
	return Event{Type: EvtBankAwarded, Team: t, Points: points}
}

func normalizeNickname(s string) string {
	s = strings.TrimSpace(norm.NFC.String(s))
	if runes := []rune(s); len(runes) > maxNicknameRunes {
		s = string(runes[:maxNicknameRunes])
	}
	return s
}
