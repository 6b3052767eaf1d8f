package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/feud-live/internal/types"
)

var ErrRoomGone = errors.New("room no longer exists")

const DefaultInterval = time.Second

// Poller keeps a Mirror current by polling GET /rooms/{code}.
type Poller struct {
	BaseURL  string
	Code     string
	Interval time.Duration
	Client   *http.Client
	Mirror   *Mirror
	Log      *zap.Logger
	// OnCue is called for every cue, in order, from the polling goroutine.
	OnCue func(Cue)
}

func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := p.Poll(ctx); err != nil {
			if errors.Is(err, ErrRoomGone) || ctx.Err() != nil {
				return err
			}
			p.log().Warn("poll failed", zap.String("code", p.Code), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Poll fetches one snapshot and feeds it to the mirror.
func (p *Poller) Poll(ctx context.Context) ([]Cue, error) {
	endpoint := strings.TrimRight(p.BaseURL, "/") + "/rooms/" + url.PathEscape(p.Code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		p.Mirror.Reset()
		return nil, ErrRoomGone
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("poll %s: unexpected status %d", p.Code, resp.StatusCode)
	}

	var msg types.ServerMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("poll %s: %w", p.Code, err)
	}
	cues, _ := p.Mirror.Apply(msg)
	if p.OnCue != nil {
		for _, c := range cues {
			p.OnCue(c)
		}
	}
	return cues, nil
}

func (p *Poller) log() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}
