package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/feud-live/internal/engine"
	"github.com/DoyleJ11/feud-live/internal/store"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), zap.NewNop())
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func record(t *testing.T, code string, version int) store.Record {
	t.Helper()
	room, err := engine.NewRoom(code, engine.User{ID: "host", Nickname: "Host"}, []engine.Question{
		{ID: 1, Text: "Q", Answers: []engine.Answer{{Text: "A", Points: 10}}},
	})
	require.NoError(t, err)
	return store.Record{Code: code, Version: version, Room: room, UpdatedAt: time.Now().UTC()}
}

func TestRedis_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	_, err := s.Get(ctx, "DZ-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, record(t, "DZ-1", 2)))
	assert.True(t, mr.Exists("feud:room:DZ-1"))

	got, err := s.Get(ctx, "DZ-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, engine.StatusLobby, got.Room.Status)

	require.NoError(t, s.Delete(ctx, "DZ-1"))
	_, err = s.Get(ctx, "DZ-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedis_SubscribeSeesWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, _ := newTestStore(t)

	feed, err := s.Subscribe(ctx, "DZ-1")
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, record(t, "DZ-1", 5)))

	select {
	case rec := <-feed:
		assert.Equal(t, 5, rec.Version)
		assert.Equal(t, "DZ-1", rec.Room.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published record")
	}
}

func TestRedis_OpenRejectsBadURL(t *testing.T) {
	_, err := Open(context.Background(), "not a url", "", zap.NewNop())
	require.Error(t, err)
}
