package mirror

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/feud-live/internal/types"
)

func TestPoller_FeedsMirrorAndCues(t *testing.T) {
	var version atomic.Int64
	version.Store(1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rooms/DZ-4" {
			http.NotFound(w, r)
			return
		}
		room := baseRoom()
		v := int(version.Load())
		room.Strikes = v - 1
		_ = json.NewEncoder(w).Encode(types.Snapshot(v, room, nil, false))
	}))
	defer srv.Close()

	var got []Cue
	p := &Poller{BaseURL: srv.URL, Code: "DZ-4", Mirror: New(), OnCue: func(c Cue) { got = append(got, c) }}

	ctx := context.Background()
	cues, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, cues)

	version.Store(2)
	cues, err = p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []CueKind{CueStrike}, kinds(cues))
	assert.Equal(t, cues, got)

	// unchanged server state yields nothing
	cues, err = p.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, cues)
}

func TestPoller_RunStopsWhenRoomIsGone(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	p := &Poller{BaseURL: srv.URL, Code: "DZ-9", Interval: 10 * time.Millisecond, Mirror: New()}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.ErrorIs(t, p.Run(ctx), ErrRoomGone)
}

func TestPoller_RunKeepsGoingOnErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := &Poller{BaseURL: srv.URL, Code: "DZ-9", Interval: 10 * time.Millisecond, Mirror: New()}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, p.Run(ctx), context.DeadlineExceeded)
	assert.Greater(t, calls.Load(), int64(2))
}

func TestPoller_FollowsRecreatedRoom(t *testing.T) {
	var phase atomic.Int64 // 0 live at v7, 1 deleted, 2 recreated at v1
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch phase.Load() {
		case 0:
			room := baseRoom()
			room.Strikes = 2
			_ = json.NewEncoder(w).Encode(types.Snapshot(7, room, nil, false))
		case 1:
			http.NotFound(w, r)
		default:
			_ = json.NewEncoder(w).Encode(types.Snapshot(1, baseRoom(), nil, false))
		}
	}))
	defer srv.Close()

	m := New()
	p := &Poller{BaseURL: srv.URL, Code: "DZ-4", Mirror: m}
	ctx := context.Background()

	_, err := p.Poll(ctx)
	require.NoError(t, err)

	phase.Store(1)
	_, err = p.Poll(ctx)
	require.ErrorIs(t, err, ErrRoomGone)

	phase.Store(2)
	_, err = p.Poll(ctx)
	require.NoError(t, err)
	room, version, ok := m.Room()
	require.True(t, ok)
	assert.Equal(t, 1, version)
	assert.Zero(t, room.Strikes)
}
