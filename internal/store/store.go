package store

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/feud-live/internal/engine"
)

var ErrNotFound = errors.New("room not found")

// Record is what every adapter persists under the room code.
type Record struct {
	Code      string      `json:"code"`
	Version   int         `json:"version"`
	Room      engine.Room `json:"room"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Store is the swappable room store. A Set followed by a Get from the same
// process observes the new value. Concurrent writers are last-write-wins.
type Store interface {
	Get(ctx context.Context, code string) (Record, error)
	Set(ctx context.Context, rec Record) error
	Delete(ctx context.Context, code string) error
	// Subscribe streams records written for code until ctx is done.
	Subscribe(ctx context.Context, code string) (<-chan Record, error)
	Close() error
}
