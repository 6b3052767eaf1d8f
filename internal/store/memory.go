package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory keeps records in process. Values are copied through JSON on the way in
// and out so callers never share state with the store.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
	subs    map[string]map[chan Record]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string][]byte),
		subs:    make(map[string]map[chan Record]struct{}),
	}
}

func (m *Memory) Get(_ context.Context, code string) (Record, error) {
	m.mu.RLock()
	raw, ok := m.records[code]
	m.mu.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (m *Memory) Set(_ context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Code] = raw
	for ch := range m.subs[rec.Code] {
		var cp Record
		if err := json.Unmarshal(raw, &cp); err != nil {
			return err
		}
		select {
		case ch <- cp:
		default:
			// subscriber is behind; it will catch up on the next write
		}
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, code)
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, code string) (<-chan Record, error) {
	ch := make(chan Record, 16)

	m.mu.Lock()
	if m.subs[code] == nil {
		m.subs[code] = make(map[chan Record]struct{})
	}
	m.subs[code][ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs[code], ch)
		if len(m.subs[code]) == 0 {
			delete(m.subs, code)
		}
		m.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (m *Memory) Close() error { return nil }
