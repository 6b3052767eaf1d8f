package mirror

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/feud-live/internal/engine"
	"github.com/DoyleJ11/feud-live/internal/types"
)

func baseRoom() engine.Room {
	return engine.Room{
		Code:      "DZ-4",
		Status:    engine.StatusRound,
		Revealed:  []int{},
		Dice:      map[engine.Team]int{},
		TeamAName: engine.DefaultTeamAName,
		TeamBName: engine.DefaultTeamBName,
	}
}

func kinds(cues []Cue) []CueKind {
	var out []CueKind
	for _, c := range cues {
		out = append(out, c.Kind)
	}
	return out
}

func TestDiff(t *testing.T) {
	ends := time.Date(2026, 3, 1, 20, 0, 30, 0, time.UTC)
	later := ends.Add(30 * time.Second)

	cases := []struct {
		name string
		edit func(prev, next *engine.Room)
		want []CueKind
	}{
		{"nothing changed", func(_, _ *engine.Room) {}, nil},
		{"strike added", func(_, n *engine.Room) { n.Strikes = 1 }, []CueKind{CueStrike}},
		{"strikes reset is silent", func(p, _ *engine.Room) { p.Strikes = 2 }, nil},
		{"answer revealed", func(_, n *engine.Room) { n.Revealed = []int{2} }, []CueKind{CueReveal}},
		{"two reveals", func(p, n *engine.Room) { p.Revealed = []int{0}; n.Revealed = []int{0, 1, 3} }, []CueKind{CueReveal, CueReveal}},
		{"new question is not a reveal", func(p, n *engine.Room) { p.Revealed = []int{0}; n.QuestionIndex = 1; n.Revealed = []int{0} }, nil},
		{"score up", func(_, n *engine.Room) { n.TeamBScore = 65 }, []CueKind{CueWin}},
		{"score reset is silent", func(p, _ *engine.Room) { p.TeamAScore = 100 }, nil},
		{"steal succeeded", func(p, n *engine.Room) {
			p.Status, p.Strikes = engine.StatusSteal, 3
			n.Status, n.Revealed, n.TeamBScore = engine.StatusFinished, []int{1}, 30
		}, []CueKind{CueReveal, CueWin}},
		{"steal failed", func(p, n *engine.Room) {
			p.Status, p.Strikes = engine.StatusSteal, 3
			n.Status, n.TeamAScore = engine.StatusFinished, 30
		}, []CueKind{CueStrike, CueWin}},
		{"dice rolled", func(_, n *engine.Room) { n.Dice = map[engine.Team]int{engine.TeamA: 5} }, []CueKind{CueDice}},
		{"timer started", func(_, n *engine.Room) { n.TimerEndsAt = &ends }, []CueKind{CueTimer}},
		{"timer unchanged", func(p, n *engine.Room) { p.TimerEndsAt = &ends; n.TimerEndsAt = &ends }, nil},
		{"timer restarted", func(p, n *engine.Room) { p.TimerEndsAt = &ends; n.TimerEndsAt = &later }, []CueKind{CueTimer}},
		{"timer stopped is silent", func(p, _ *engine.Room) { p.TimerEndsAt = &ends }, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prev, next := baseRoom(), baseRoom()
			tc.edit(&prev, &next)
			assert.Equal(t, tc.want, kinds(Diff(prev, next)))
		})
	}
}

func TestDiff_CueDetails(t *testing.T) {
	prev, next := baseRoom(), baseRoom()
	next.Revealed = []int{3}
	next.TeamAScore = 10

	cues := Diff(prev, next)
	require.Len(t, cues, 2)
	assert.Equal(t, Cue{Kind: CueReveal, Sound: "ding", Index: 3}, cues[0])
	assert.Equal(t, Cue{Kind: CueWin, Sound: "tada", Team: engine.TeamA}, cues[1])
}

func TestMirror_Apply(t *testing.T) {
	m := New()
	_, _, ok := m.Room()
	require.False(t, ok)

	room := baseRoom()
	cues, ok := m.Apply(types.Snapshot(3, room, nil, false))
	require.True(t, ok)
	assert.Empty(t, cues, "first snapshot only seeds the mirror")

	room.Strikes = 1
	cues, ok = m.Apply(types.Snapshot(4, room, nil, false))
	require.True(t, ok)
	assert.Equal(t, []CueKind{CueStrike}, kinds(cues))

	// Same version again: ignored, no duplicate cue
	cues, ok = m.Apply(types.Snapshot(4, room, nil, false))
	assert.False(t, ok)
	assert.Empty(t, cues)

	stale := baseRoom()
	_, ok = m.Apply(types.Snapshot(2, stale, nil, false))
	assert.False(t, ok)

	_, ok = m.Apply(types.ServerMessage{Type: types.MsgError, Error: "nope"})
	assert.False(t, ok)

	got, version, ok := m.Room()
	require.True(t, ok)
	assert.Equal(t, 4, version)
	assert.Equal(t, 1, got.Strikes)
}

func TestMirror_RecreatedRoomStartsOver(t *testing.T) {
	m := New()
	room := baseRoom()
	room.TeamAScore = 80
	_, ok := m.Apply(types.Snapshot(12, room, nil, false))
	require.True(t, ok)

	// same code, versions restarted after delete and create
	fresh := baseRoom()
	_, ok = m.Apply(types.Snapshot(1, fresh, nil, false))
	require.False(t, ok)

	m.Reset()
	_, _, ok = m.Room()
	require.False(t, ok)
	cues, ok := m.Apply(types.Snapshot(1, fresh, nil, false))
	require.True(t, ok)
	assert.Empty(t, cues)

	// a different code is a different room whatever the version
	other := baseRoom()
	other.Code = "DZ-5"
	_, ok = m.Apply(types.Snapshot(1, other, nil, false))
	require.True(t, ok)
	got, version, _ := m.Room()
	assert.Equal(t, "DZ-5", got.Code)
	assert.Equal(t, 1, version)
}
