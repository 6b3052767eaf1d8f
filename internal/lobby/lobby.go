package lobby

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/feud-live/internal/engine"
	"github.com/DoyleJ11/feud-live/internal/store"
)

type Msg interface{ isLobbyMsg() }

// FromClient applies an action. Reply, when set, receives the outcome.
type FromClient struct {
	ClientID string
	Action   engine.Action
	// Authorize, when set, may rewrite or refuse the action against the current room.
	Authorize func(engine.Room, engine.Action) (engine.Action, error)
	Reply     chan Result
}

func (FromClient) isLobbyMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// External carries a record written by another process, read from the store feed.
type External struct{ Record store.Record }

func (External) isLobbyMsg() {}

type timerFired struct{ gen int }

func (timerFired) isLobbyMsg() {}

// Snapshot is broadcast after every change. Pending is true while the latest
// version has not been confirmed by the store.
type Snapshot struct {
	Version int
	Room    engine.Room
	Events  []engine.Event
	Pending bool
}

type View struct {
	Version      int
	NumClients   int
	Room         engine.Room
	Pending      bool
	LastActivity time.Time
}

type Result struct {
	Version int
	Room    engine.Room
	Events  []engine.Event
	Pending bool
	Err     error
}

type Options struct {
	Store        store.Store // nil keeps the room in memory only
	Log          *zap.Logger
	Now          func() time.Time
	Roll         func() int
	WriteTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Roll == nil {
		o.Roll = func() int { return rand.IntN(6) + 1 }
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	return o
}

type Lobby struct {
	code         string
	inbox        chan Msg
	room         engine.Room
	version      int
	pending      bool
	clients      map[string]chan Snapshot
	opts         Options
	log          *zap.Logger
	timer        *time.Timer
	timerGen     int
	timerAt      time.Time
	lastActivity time.Time
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewLobby starts the actor for rec. A record without UpdatedAt has never been
// stored; it is written as the next version before anything else happens.
func NewLobby(parent context.Context, rec store.Record, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	opts = opts.withDefaults()

	l := &Lobby{
		code:         rec.Code,
		inbox:        make(chan Msg, 64), // Small buffer
		room:         rec.Room,
		version:      rec.Version,
		clients:      make(map[string]chan Snapshot),
		opts:         opts,
		log:          opts.Log.With(zap.String("code", rec.Code)),
		lastActivity: opts.Now(),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	if rec.UpdatedAt.IsZero() {
		l.version++
		l.persist()
	}
	l.watchStore()
	l.armTimer()

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				l.clients[msg.ClientID] = msg.Outbox
				l.lastActivity = l.opts.Now()
				msg.Outbox <- Snapshot{Version: l.version, Room: l.room, Pending: l.pending}

			case Leave:
				if ch, ok := l.clients[msg.ClientID]; ok {
					close(ch)
					delete(l.clients, msg.ClientID)
				}

			case FromClient:
				l.lastActivity = l.opts.Now()
				res := l.handle(msg)
				if res.Err != nil {
					l.log.Debug("action ignored",
						zap.String("client", msg.ClientID),
						zap.String("action", kind(msg.Action)),
						zap.Error(res.Err))
				}
				if msg.Reply != nil {
					msg.Reply <- res
				}

			case External:
				l.adopt(msg.Record)

			case timerFired:
				if msg.gen != l.timerGen {
					break // stale
				}
				res := l.apply(engine.ExpireTimer{Now: l.opts.Now()})
				if errors.Is(res.Err, engine.ErrTimerRunning) {
					// fired ahead of the wall clock, try again
					l.timerAt = time.Time{}
					l.armTimer()
				}

			case GetState:
				msg.Reply <- View{
					Version:      l.version,
					NumClients:   len(l.clients),
					Room:         l.room,
					Pending:      l.pending,
					LastActivity: l.lastActivity,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) handle(msg FromClient) Result {
	act := msg.Action
	if msg.Authorize != nil {
		var err error
		if act, err = msg.Authorize(l.room, act); err != nil {
			return Result{Version: l.version, Room: l.room, Err: err}
		}
	}
	return l.apply(l.fill(act))
}

// apply runs the reducer; on success it bumps the version, persists and broadcasts.
func (l *Lobby) apply(a engine.Action) Result {
	events, next, err := engine.Apply(l.room, a)
	if err != nil {
		return Result{Version: l.version, Room: l.room, Err: err}
	}
	l.room = next
	l.version++
	l.persist()
	l.armTimer()
	l.broadcast(Snapshot{Version: l.version, Room: l.room, Events: events, Pending: l.pending})
	return Result{Version: l.version, Room: l.room, Events: events, Pending: l.pending}
}

// fill supplies the inputs the reducer cannot produce itself: dice values and
// the current time.
func (l *Lobby) fill(a engine.Action) engine.Action {
	switch act := a.(type) {
	case engine.RollDice:
		if act.Value == 0 {
			act.Value = l.opts.Roll()
		}
		return act
	case engine.StartTimer:
		if act.Now.IsZero() {
			act.Now = l.opts.Now()
		}
		return act
	case engine.ExpireTimer:
		if act.Now.IsZero() {
			act.Now = l.opts.Now()
		}
		return act
	default:
		return a
	}
}

func (l *Lobby) persist() {
	if l.opts.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(l.ctx, l.opts.WriteTimeout)
	defer cancel()

	rec := store.Record{Code: l.code, Version: l.version, Room: l.room, UpdatedAt: l.opts.Now().UTC()}
	if err := l.opts.Store.Set(ctx, rec); err != nil {
		l.pending = true
		l.log.Warn("room write failed, keeping local state", zap.Int("version", l.version), zap.Error(err))
		return
	}
	l.pending = false
}

// adopt takes over a newer record written elsewhere. Last write wins.
func (l *Lobby) adopt(rec store.Record) {
	if rec.Version <= l.version {
		return // our own write echoing back, or older
	}
	l.log.Info("adopting external room update", zap.Int("from", l.version), zap.Int("to", rec.Version))
	l.room = rec.Room
	l.version = rec.Version
	l.pending = false
	l.armTimer()
	l.broadcast(Snapshot{Version: l.version, Room: l.room})
}

func (l *Lobby) watchStore() {
	if l.opts.Store == nil {
		return
	}
	feed, err := l.opts.Store.Subscribe(l.ctx, l.code)
	if err != nil {
		l.log.Warn("room change feed unavailable", zap.Error(err))
		return
	}
	go func() {
		for rec := range feed {
			select {
			case l.inbox <- External{Record: rec}:
			case <-l.ctx.Done():
				return
			}
		}
	}()
}

// armTimer keeps a single server-side expiry in line with room.TimerEndsAt.
// Bumping the generation makes any fire already in flight stale.
func (l *Lobby) armTimer() {
	var at time.Time
	if l.room.TimerEndsAt != nil {
		at = *l.room.TimerEndsAt
	}
	if at.Equal(l.timerAt) && (at.IsZero() || l.timer != nil) {
		return
	}
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.timerGen++
	l.timerAt = at
	if at.IsZero() {
		return
	}

	gen := l.timerGen
	l.timer = time.AfterFunc(max(0, at.Sub(l.opts.Now())), func() {
		select {
		case l.inbox <- timerFired{gen: gen}:
		case <-l.ctx.Done():
		}
	})
}

func (l *Lobby) shutdown() {
	if l.timer != nil {
		l.timer.Stop()
	}
	for id, ch := range l.clients {
		close(ch) // Tell client no more snapshots
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(snap Snapshot) {
	for id, ch := range l.clients {
		select {
		case ch <- snap:
			//ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(l.clients, id)
		}
	}
}

func kind(a engine.Action) string {
	if a == nil {
		return "<nil>"
	}
	return string(a.Kind())
}

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) Code() string { return l.code }

// Done is closed once the actor has stopped.
func (l *Lobby) Done() <-chan struct{} { return l.done }
