package hub

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/feud-live/internal/engine"
	"github.com/DoyleJ11/feud-live/internal/lobby"
	"github.com/DoyleJ11/feud-live/internal/store"
)

type HubMsg interface{ isHubMsg() }

// CreateLobby starts a room, or supersedes the room already running under the
// same code. Reply receives nil when the room cannot be built.
type CreateLobby struct {
	Create engine.CreateRoom
	Reply  chan *lobby.Lobby
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// EnsureLobby returns the running lobby or restores it from the store.
// Reply receives nil when the code is unknown everywhere.
type EnsureLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// RemoveLobby stops the lobby and deletes its record. Reply is optional and
// reports whether a running lobby was found.
type RemoveLobby struct {
	Code  string
	Reply chan bool
}

// Reap stops lobbies with no clients and no activity for IdleFor. The store
// record is kept so the room can be restored later.
type Reap struct {
	IdleFor time.Duration
	Reply   chan []string
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (EnsureLobby) isHubMsg() {}
func (RemoveLobby) isHubMsg() {}
func (Reap) isHubMsg()        {}
func (ShutdownHub) isHubMsg() {}

type Options struct {
	Store store.Store // nil keeps rooms in process only
	Lobby lobby.Options
	Log   *zap.Logger
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	opts    Options
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	opts.Lobby.Store = opts.Store
	if opts.Lobby.Log == nil {
		opts.Lobby.Log = opts.Log
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		opts:    opts,
		log:     opts.Log,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub and all its lobbies have been told to stop.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				code := engine.NormalizeCode(msg.Create.Code)
				if lb := h.lobbies[code]; lb != nil {
					// Upsert: the running lobby applies CREATE_ROOM and keeps its clients.
					lb.Inbox() <- lobby.FromClient{ClientID: msg.Create.Host.ID, Action: msg.Create}
					msg.Reply <- lb
					break
				}
				room, err := engine.NewRoom(code, msg.Create.Host, msg.Create.Questions)
				if err != nil {
					h.log.Warn("create room rejected", zap.String("code", code), zap.Error(err))
					msg.Reply <- nil
					break
				}
				rec := store.Record{Code: room.Code, Room: room}
				if prev, err := h.load(room.Code); err == nil {
					rec.Version = prev.Version // supersede as a newer write
				}
				msg.Reply <- h.start(rec)

			case GetLobby:
				msg.Reply <- h.lobbies[engine.NormalizeCode(msg.Code)] // May be nil

			case EnsureLobby:
				msg.Code = engine.NormalizeCode(msg.Code)
				if lb := h.lobbies[msg.Code]; lb != nil {
					msg.Reply <- lb
					break
				}
				rec, err := h.load(msg.Code)
				if err != nil {
					if !errors.Is(err, store.ErrNotFound) {
						h.log.Warn("restore room failed", zap.String("code", msg.Code), zap.Error(err))
					}
					msg.Reply <- nil
					break
				}
				h.log.Info("restored room from store", zap.String("code", msg.Code), zap.Int("version", rec.Version))
				msg.Reply <- h.start(rec)

			case RemoveLobby:
				msg.Code = engine.NormalizeCode(msg.Code)
				lb, ok := h.lobbies[msg.Code]
				if ok {
					lb.Inbox() <- lobby.Shutdown{}
					delete(h.lobbies, msg.Code)
				}
				h.forget(msg.Code)
				if msg.Reply != nil {
					msg.Reply <- ok
				}

			case Reap:
				reaped := h.reap(msg.IdleFor)
				if msg.Reply != nil {
					msg.Reply <- reaped
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) start(rec store.Record) *lobby.Lobby {
	lb := lobby.NewLobby(h.ctx, rec, h.opts.Lobby)
	h.lobbies[rec.Code] = lb
	return lb
}

func (h *Hub) load(code string) (store.Record, error) {
	if h.opts.Store == nil {
		return store.Record{}, store.ErrNotFound
	}
	ctx, cancel := context.WithTimeout(h.ctx, 3*time.Second)
	defer cancel()
	return h.opts.Store.Get(ctx, code)
}

func (h *Hub) forget(code string) {
	if h.opts.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(h.ctx, 3*time.Second)
	defer cancel()
	if err := h.opts.Store.Delete(ctx, code); err != nil {
		h.log.Warn("delete room record failed", zap.String("code", code), zap.Error(err))
	}
}

func (h *Hub) reap(idleFor time.Duration) []string {
	now := time.Now()
	if h.opts.Lobby.Now != nil {
		now = h.opts.Lobby.Now()
	}
	var reaped []string
	for code, lb := range h.lobbies {
		reply := make(chan lobby.View, 1)
		select {
		case lb.Inbox() <- lobby.GetState{Reply: reply}:
		case <-lb.Done():
			delete(h.lobbies, code)
			continue
		}
		var view lobby.View
		select {
		case view = <-reply:
		case <-lb.Done():
			delete(h.lobbies, code)
			continue
		}
		if view.NumClients > 0 || now.Sub(view.LastActivity) < idleFor {
			continue
		}
		lb.Inbox() <- lobby.Shutdown{}
		delete(h.lobbies, code)
		reaped = append(reaped, code)
	}
	if len(reaped) > 0 {
		h.log.Info("reaped idle rooms", zap.Strings("codes", reaped))
	}
	return reaped
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		lb.Inbox() <- lobby.Shutdown{}
	}
	clear(h.lobbies)
	h.cancel()
}
