package hub

import (
	"context"
	"errors"

	"github.com/DoyleJ11/feud-live/internal/engine"
	"github.com/DoyleJ11/feud-live/internal/lobby"
)

var ErrNotFound = errors.New("room not found")
var ErrCreateFailed = errors.New("room could not be created")

func ask[T any](ctx context.Context, h *Hub, msg HubMsg, reply chan T) (T, error) {
	var zero T
	select {
	case h.inbox <- msg:
	case <-h.done:
		return zero, context.Canceled
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-h.done:
		return zero, context.Canceled
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Create starts or supersedes the room named by c.Code.
func Create(ctx context.Context, h *Hub, c engine.CreateRoom) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	lb, err := ask(ctx, h, CreateLobby{Create: c, Reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, ErrCreateFailed
	}
	return lb, nil
}

// Lookup reports whether code is running in this process, without restoring it.
func Lookup(ctx context.Context, h *Hub, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	return ask(ctx, h, GetLobby{Code: code, Reply: reply}, reply)
}

// Ensure returns the running lobby for code, restoring it from the store if needed.
func Ensure(ctx context.Context, h *Hub, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	lb, err := ask(ctx, h, EnsureLobby{Code: code, Reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, ErrNotFound
	}
	return lb, nil
}

func Remove(ctx context.Context, h *Hub, code string) (bool, error) {
	reply := make(chan bool, 1)
	return ask(ctx, h, RemoveLobby{Code: code, Reply: reply}, reply)
}
