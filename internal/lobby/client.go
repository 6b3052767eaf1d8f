package lobby

import (
	"context"
	"errors"
)

var ErrStopped = errors.New("lobby stopped")

// Dispatch sends msg and waits for its result.
func Dispatch(ctx context.Context, l *Lobby, msg FromClient) (Result, error) {
	msg.Reply = make(chan Result, 1)
	select {
	case l.inbox <- msg:
	case <-l.done:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case res := <-msg.Reply:
		return res, nil
	case <-l.done:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// State returns the lobby's current view.
func State(ctx context.Context, l *Lobby) (View, error) {
	reply := make(chan View, 1)
	select {
	case l.inbox <- GetState{Reply: reply}:
	case <-l.done:
		return View{}, ErrStopped
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-l.done:
		return View{}, ErrStopped
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}
