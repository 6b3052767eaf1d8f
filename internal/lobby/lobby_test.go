package lobby

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DoyleJ11/feud-live/internal/engine"
	"github.com/DoyleJ11/feud-live/internal/store"
)

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvNoSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			// channel closed → that's fine; no further snapshots possible
			return
		}
		t.Fatalf("expected no snapshot within %v, but got: %+v", within, s)
	case <-time.After(within):
		// good: no snapshot
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func send(t *testing.T, l *Lobby, a engine.Action) Result {
	t.Helper()
	reply := make(chan Result, 1)
	l.Inbox() <- FromClient{ClientID: "test", Action: a, Reply: reply}
	select {
	case res := <-reply:
		return res
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s result", a.Kind())
		return Result{}
	}
}

func freshRecord(t *testing.T) store.Record {
	t.Helper()
	room, err := engine.NewRoom("DZ-12", engine.User{ID: "host", Nickname: "Animateur"}, []engine.Question{
		{ID: 1, Text: "Sur la table du F'tour ?", Answers: []engine.Answer{
			{Text: "Chorba", Points: 35},
			{Text: "Boureks", Points: 30},
		}},
	})
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}
	return store.Record{Code: room.Code, Room: room}
}

type failingStore struct {
	*store.Memory
}

func (failingStore) Set(context.Context, store.Record) error { return errors.New("store offline") }

func TestLobby_Action_BroadcastsSnapshotAndPersists(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := store.NewMemory()
	l := NewLobby(ctx, freshRecord(t), Options{Store: mem})

	clientOut := make(chan Snapshot, 2)
	l.Inbox() <- Join{ClientID: "c1", Outbox: clientOut}

	// a new room is stored as version 1 before anyone joins
	first := recvSnapshot(t, clientOut, 100*time.Millisecond)
	if first.Version != 1 || first.Room.Status != engine.StatusLobby {
		t.Fatalf("after join: want version=1 LOBBY, got %d %s", first.Version, first.Room.Status)
	}

	l.Inbox() <- FromClient{ClientID: "c1", Action: engine.SetActiveTeam{Team: engine.TeamA}}

	next := recvSnapshot(t, clientOut, 100*time.Millisecond)
	if next.Version != 2 {
		t.Fatalf("after action: want version=2, got %d", next.Version)
	}
	if next.Room.ActiveTeam != engine.TeamA || !engine.ContainsEvent(next.Events, engine.EvtControlChanged) {
		t.Fatalf("expected team A in control, got %+v", next)
	}
	if next.Pending {
		t.Fatalf("write succeeded, snapshot should not be pending")
	}

	rec, err := mem.Get(ctx, "DZ-12")
	if err != nil {
		t.Fatalf("store get: %v", err)
	}
	if rec.Version != 2 || rec.Room.ActiveTeam != engine.TeamA {
		t.Fatalf("store not updated: %+v", rec)
	}

	l.Inbox() <- Shutdown{}
}

func TestLobby_RejectedAction_NoBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, freshRecord(t), Options{})

	out := make(chan Snapshot, 2)
	l.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	res := send(t, l, engine.AddStrike{}) // LOBBY
	if !errors.Is(res.Err, engine.ErrWrongStatus) {
		t.Fatalf("want ErrWrongStatus, got %v", res.Err)
	}
	if res.Version != 1 {
		t.Fatalf("version must not move on a rejected action, got %d", res.Version)
	}
	recvNoSnapshot(t, out, 100*time.Millisecond)
}

func TestLobby_DropSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, freshRecord(t), Options{})

	clientOut := make(chan Snapshot, 1)
	l.Inbox() <- Join{ClientID: "ch1", Outbox: clientOut}

	l.Inbox() <- FromClient{Action: engine.SetActiveTeam{Team: engine.TeamB}}

	reply := make(chan View, 1)
	l.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)

	if view.NumClients != 0 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", view.NumClients)
	}
	if view.Room.ActiveTeam != engine.TeamB {
		t.Fatalf("action should still apply, got %+v", view.Room)
	}
}

func TestLobby_FillsDiceValue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rolls := []int{6, 2}
	l := NewLobby(ctx, freshRecord(t), Options{Roll: func() int {
		v := rolls[0]
		rolls = rolls[1:]
		return v
	}})

	send(t, l, engine.StartDuel{})
	if res := send(t, l, engine.RollDice{Team: engine.TeamA}); res.Err != nil || res.Room.Dice[engine.TeamA] != 6 {
		t.Fatalf("team A roll: %+v", res)
	}
	res := send(t, l, engine.RollDice{Team: engine.TeamB})
	if res.Err != nil {
		t.Fatalf("team B roll: %v", res.Err)
	}
	if res.Room.Status != engine.StatusRound || res.Room.ActiveTeam != engine.TeamA {
		t.Fatalf("higher roll should take control, got %s %s", res.Room.Status, res.Room.ActiveTeam)
	}
}

func TestLobby_TimerFires_ExpiresRoomTimer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, freshRecord(t), Options{})

	out := make(chan Snapshot, 4)
	l.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	l.Inbox() <- FromClient{Action: engine.StartTimer{Seconds: 1}}
	started := recvSnapshot(t, out, 100*time.Millisecond)
	if started.Room.TimerEndsAt == nil {
		t.Fatalf("expected timerEndsAt to be set")
	}

	expired := recvSnapshot(t, out, 2*time.Second)
	if expired.Version != started.Version+1 {
		t.Fatalf("want version=%d after expiry, got %d", started.Version+1, expired.Version)
	}
	if expired.Room.TimerEndsAt != nil || !engine.ContainsEvent(expired.Events, engine.EvtTimerExpired) {
		t.Fatalf("expected expired timer, got %+v", expired)
	}
}

func TestLobby_TimerGen_DropsStaleFires(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, freshRecord(t), Options{})

	out := make(chan Snapshot, 4)
	l.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	// Arm, then stop before it fires
	l.Inbox() <- FromClient{Action: engine.StartTimer{Seconds: 1}}
	_ = recvSnapshot(t, out, 100*time.Millisecond)
	l.Inbox() <- FromClient{Action: engine.StopTimer{}}
	stopped := recvSnapshot(t, out, 100*time.Millisecond)
	if stopped.Room.TimerEndsAt != nil {
		t.Fatalf("expected stopped timer")
	}

	recvNoSnapshot(t, out, 1500*time.Millisecond)
}

func TestLobby_AdoptsNewerExternalRecord(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, freshRecord(t), Options{})

	out := make(chan Snapshot, 4)
	l.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	older := freshRecord(t)
	older.Version = 1
	older.Room.TeamAScore = 99
	l.Inbox() <- External{Record: older}
	recvNoSnapshot(t, out, 100*time.Millisecond)

	newer := freshRecord(t)
	newer.Version = 7
	newer.Room.TeamAScore = 40
	l.Inbox() <- External{Record: newer}

	snap := recvSnapshot(t, out, 100*time.Millisecond)
	if snap.Version != 7 || snap.Room.TeamAScore != 40 {
		t.Fatalf("expected adopted record, got version=%d score=%d", snap.Version, snap.Room.TeamAScore)
	}
}

func TestLobby_StoreFailure_KeepsLocalStateAndFlagsPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, freshRecord(t), Options{Store: failingStore{store.NewMemory()}})

	res := send(t, l, engine.SetTeamNames{A: "Les Lions", B: "Les Aigles"})
	if res.Err != nil {
		t.Fatalf("local apply should succeed: %v", res.Err)
	}

	reply := make(chan View, 1)
	l.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)
	if !view.Pending {
		t.Fatalf("expected pending after failed write")
	}
	if view.Room.TeamAName != "Les Lions" {
		t.Fatalf("local state lost: %+v", view.Room)
	}
}

func TestLobby_Shutdown_ClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, freshRecord(t), Options{})

	out := make(chan Snapshot, 2)
	l.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond) // drain join snapshot

	l.Inbox() <- FromClient{Action: engine.StartTimer{Seconds: 1}}
	_ = recvSnapshot(t, out, 100*time.Millisecond)
	l.Inbox() <- Shutdown{}

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatalf("lobby did not stop")
	}
	if _, ok := <-out; ok {
		t.Fatalf("expected outbox closed after shutdown")
	}
}
