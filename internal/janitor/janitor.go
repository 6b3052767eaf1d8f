package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/DoyleJ11/feud-live/internal/hub"
)

// Janitor asks the hub to stop idle lobbies on a cron schedule.
type Janitor struct {
	cron    *cron.Cron
	hub     chan<- hub.HubMsg
	idleFor time.Duration
	log     *zap.Logger
}

// New registers the reap job. schedule accepts standard five-field specs and
// descriptors such as "@every 5m".
func New(h chan<- hub.HubMsg, schedule string, idleFor time.Duration, log *zap.Logger) (*Janitor, error) {
	j := &Janitor{cron: cron.New(), hub: h, idleFor: idleFor, log: log}
	if _, err := j.cron.AddFunc(schedule, j.Sweep); err != nil {
		return nil, fmt.Errorf("reap schedule %q: %w", schedule, err)
	}
	return j, nil
}

func (j *Janitor) Start() { j.cron.Start() }

// Stop waits for a running sweep to finish or ctx to end.
func (j *Janitor) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Sweep runs one reap pass.
func (j *Janitor) Sweep() {
	reply := make(chan []string, 1)
	select {
	case j.hub <- hub.Reap{IdleFor: j.idleFor, Reply: reply}:
	case <-time.After(5 * time.Second):
		j.log.Warn("hub busy, skipping reap")
		return
	}
	select {
	case codes := <-reply:
		j.log.Debug("reap finished", zap.Int("rooms", len(codes)))
	case <-time.After(30 * time.Second):
		j.log.Warn("reap did not report back")
	}
}
