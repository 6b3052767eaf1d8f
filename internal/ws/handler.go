package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/DoyleJ11/feud-live/internal/access"
	"github.com/DoyleJ11/feud-live/internal/engine"
	"github.com/DoyleJ11/feud-live/internal/hub"
	"github.com/DoyleJ11/feud-live/internal/lobby"
	"github.com/DoyleJ11/feud-live/internal/types"
)

const (
	writeTimeout = 3 * time.Second
	pingInterval = 20 * time.Second
)

type Options struct {
	Gate           access.Gate
	AllowedOrigins []string
	Log            *zap.Logger
}

// Handler serves GET /rooms/{code}/ws?user=<id>&pin=<pin>. Without either the
// connection only watches.
func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	accept := acceptOptions(opts.AllowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		code := engine.NormalizeCode(chi.URLParam(r, "code"))
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		lb, err := hub.Ensure(r.Context(), h, code)
		if errors.Is(err, hub.ErrNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "room unavailable", http.StatusServiceUnavailable)
			return
		}

		userID := r.URL.Query().Get("user")
		role := opts.Gate.Role(r.URL.Query().Get("pin"), userID)

		conn, err := websocket.Accept(w, r, accept)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		clog := log.With(zap.String("code", code), zap.String("client", clientID), zap.Stringer("role", role))
		clog.Debug("client connected")

		out := make(chan lobby.Snapshot, 8)
		select {
		case lb.Inbox() <- lobby.Join{ClientID: clientID, Outbox: out}:
		case <-lb.Done():
			conn.Close(websocket.StatusGoingAway, "room closed")
			return
		}
		defer func() {
			select {
			case lb.Inbox() <- lobby.Leave{ClientID: clientID}:
			case <-lb.Done():
			}
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine
		go func() {
			defer cancel()
			for snap := range out {
				if err := writeJSON(ctx, conn, types.Snapshot(snap.Version, snap.Room, snap.Events, snap.Pending)); err != nil {
					return
				}
			}
			// Dropped as a slow client or the room went away.
			conn.Close(websocket.StatusGoingAway, "room closed")
		}()

		go keepAlive(ctx, conn)

		authorize := func(room engine.Room, a engine.Action) (engine.Action, error) {
			return access.Permit(role, userID, room, a)
		}

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if ctx.Err() == nil {
						clog.Debug("read failed", zap.Error(err))
					}
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = writeJSON(ctx, conn, types.ServerMessage{Type: types.MsgError, Error: "bad json"})
				continue
			}

			act, err := cm.Action()
			if err != nil {
				_ = writeJSON(ctx, conn, types.ErrorMessage(err))
				continue
			}

			res, err := lobby.Dispatch(ctx, lb, lobby.FromClient{ClientID: clientID, Action: act, Authorize: authorize})
			if err != nil {
				return
			}
			switch {
			case errors.Is(res.Err, access.ErrForbidden):
				_ = writeJSON(ctx, conn, types.ErrorMessage(res.Err))
			case res.Err != nil:
				clog.Debug("action ignored", zap.String("type", cm.Type), zap.Error(res.Err))
			}
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

func keepAlive(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// acceptOptions turns configured origins into host patterns. "*" disables the check.
func acceptOptions(origins []string) *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}
	for _, o := range origins {
		if o == "*" {
			opts.InsecureSkipVerify = true
			return opts
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			opts.OriginPatterns = append(opts.OriginPatterns, u.Host)
		} else {
			opts.OriginPatterns = append(opts.OriginPatterns, o)
		}
	}
	return opts
}
