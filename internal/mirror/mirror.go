package mirror

import (
	"slices"
	"sync"

	"github.com/DoyleJ11/feud-live/internal/engine"
	"github.com/DoyleJ11/feud-live/internal/types"
)

type CueKind string

const (
	CueStrike CueKind = "strike"
	CueReveal CueKind = "reveal"
	CueWin    CueKind = "win"
	CueDice   CueKind = "dice"
	CueTimer  CueKind = "timer"
)

var sounds = map[CueKind]string{
	CueStrike: "buzzer",
	CueReveal: "ding",
	CueWin:    "tada",
	CueDice:   "dice_roll",
	CueTimer:  "timer",
}

// Cue is one edge-triggered presentation hint derived from two snapshots.
type Cue struct {
	Kind  CueKind     `json:"kind"`
	Sound string      `json:"sound"`
	Team  engine.Team `json:"team,omitempty"`
	Index int         `json:"index,omitempty"`
}

func cue(k CueKind) Cue { return Cue{Kind: k, Sound: sounds[k]} }

// Mirror is a client's local copy of one room.
type Mirror struct {
	mu      sync.Mutex
	version int
	room    *engine.Room
}

func New() *Mirror { return &Mirror{} }

// Apply accepts a snapshot newer than the current one and returns its cues.
// Stale or non-snapshot messages are ignored and report false.
func (m *Mirror) Apply(msg types.ServerMessage) ([]Cue, bool) {
	if msg.Type != types.MsgStateSnapshot || msg.Room == nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.room != nil && m.room.Code != msg.Room.Code {
		m.room, m.version = nil, 0 // a different room, start over
	}
	if m.room != nil && msg.Version <= m.version {
		return nil, false
	}
	var cues []Cue
	if m.room != nil {
		cues = Diff(*m.room, *msg.Room)
	}
	room := *msg.Room
	m.room = &room
	m.version = msg.Version
	return cues, true
}

// Reset forgets the current room so the next snapshot is accepted whatever its
// version. A room deleted and created again under the same code restarts at 1.
func (m *Mirror) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.room, m.version = nil, 0
}

// Room returns the latest room and its version; ok is false before the first snapshot.
func (m *Mirror) Room() (engine.Room, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.room == nil {
		return engine.Room{}, 0, false
	}
	return *m.room, m.version, true
}

// Diff compares consecutive rooms.
func Diff(prev, next engine.Room) []Cue {
	var cues []Cue

	sameQuestion := prev.QuestionIndex == next.QuestionIndex && prev.Code == next.Code
	var revealed []int
	if sameQuestion {
		for _, i := range next.Revealed {
			if !slices.Contains(prev.Revealed, i) {
				revealed = append(revealed, i)
			}
		}
	}

	stealFailed := prev.Status == engine.StatusSteal && next.Status == engine.StatusFinished && len(revealed) == 0
	if next.Strikes > prev.Strikes || stealFailed {
		cues = append(cues, cue(CueStrike))
	}
	for _, i := range revealed {
		c := cue(CueReveal)
		c.Index = i
		cues = append(cues, c)
	}
	for _, t := range []engine.Team{engine.TeamA, engine.TeamB} {
		if next.Score(t) > prev.Score(t) {
			c := cue(CueWin)
			c.Team = t
			cues = append(cues, c)
		}
	}
	for _, t := range []engine.Team{engine.TeamA, engine.TeamB} {
		v, ok := next.Dice[t]
		if ok && prev.Dice[t] != v {
			c := cue(CueDice)
			c.Team = t
			cues = append(cues, c)
		}
	}
	if next.TimerEndsAt != nil && (prev.TimerEndsAt == nil || !prev.TimerEndsAt.Equal(*next.TimerEndsAt)) {
		cues = append(cues, cue(CueTimer))
	}
	return cues
}
