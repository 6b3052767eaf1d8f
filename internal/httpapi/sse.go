package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/DoyleJ11/feud-live/internal/lobby"
	"github.com/DoyleJ11/feud-live/internal/types"
)

const sseKeepAlive = 15 * time.Second

// Events streams every snapshot of a room as Server-Sent Events.
func Events(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}
		lb, ok := ensure(w, r, d)
		if !ok {
			return
		}

		// Set headers for SSE
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering in nginx/proxies
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		clientID := "sse-" + uuid.NewString()
		out := make(chan lobby.Snapshot, 8)
		select {
		case lb.Inbox() <- lobby.Join{ClientID: clientID, Outbox: out}:
		case <-lb.Done():
			return
		}
		defer func() {
			select {
			case lb.Inbox() <- lobby.Leave{ClientID: clientID}:
			case <-lb.Done():
			}
		}()

		ping := time.NewTicker(sseKeepAlive)
		defer ping.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ping.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case snap, ok := <-out:
				if !ok {
					return
				}
				data, err := json.Marshal(types.Snapshot(snap.Version, snap.Room, snap.Events, snap.Pending))
				if err != nil {
					return
				}
				fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", snap.Version, types.MsgStateSnapshot, data)
				flusher.Flush()
			}
		}
	}
}
