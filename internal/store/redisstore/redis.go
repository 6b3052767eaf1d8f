package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DoyleJ11/feud-live/internal/store"
)

const keyPrefix = "feud:room:"

// Store keeps one JSON value per room code and publishes every write on a
// channel named after the key.
type Store struct {
	rdb *redis.Client
	log *zap.Logger
}

// Open connects using a redis:// URL; password, when non-empty, overrides the
// one carried by the URL.
func Open(ctx context.Context, url, password string, log *zap.Logger) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Info("connected to redis", zap.String("addr", opts.Addr))
	return New(rdb, log), nil
}

func New(rdb *redis.Client, log *zap.Logger) *Store {
	return &Store{rdb: rdb, log: log}
}

func key(code string) string { return keyPrefix + code }

func (s *Store) Get(ctx context.Context, code string) (store.Record, error) {
	raw, err := s.rdb.Get(ctx, key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.Record{}, store.ErrNotFound
	}
	if err != nil {
		return store.Record{}, err
	}
	var rec store.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return store.Record{}, fmt.Errorf("decode room %s: %w", code, err)
	}
	return rec, nil
}

func (s *Store) Set(ctx context.Context, rec store.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key(rec.Code), raw, 0)
		p.Publish(ctx, key(rec.Code), raw)
		return nil
	})
	return err
}

func (s *Store) Delete(ctx context.Context, code string) error {
	return s.rdb.Del(ctx, key(code)).Err()
}

func (s *Store) Subscribe(ctx context.Context, code string) (<-chan store.Record, error) {
	sub := s.rdb.Subscribe(ctx, key(code))
	// Wait for the confirmation so writes after Subscribe returns are not missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", code, err)
	}

	out := make(chan store.Record, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var rec store.Record
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					s.log.Warn("dropping malformed room update", zap.String("code", code), zap.Error(err))
					continue
				}
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *Store) Close() error { return s.rdb.Close() }
