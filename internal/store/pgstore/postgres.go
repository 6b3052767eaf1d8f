package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/feud-live/internal/store"
)

const notifyChannel = "rooms_changed"

// roomRow stores the whole room as one JSON document keyed by code.
type roomRow struct {
	Code      string    `gorm:"primaryKey;size:32"`
	Version   int       `gorm:"not null"`
	Data      []byte    `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (roomRow) TableName() string { return "rooms" }

type Store struct {
	db  *gorm.DB
	dsn string
	log *zap.Logger
}

// Open connects with a few retries, then migrates the rooms table.
func Open(ctx context.Context, dsn, password string, log *zap.Logger) (*Store, error) {
	dsn, err := withPassword(dsn, password)
	if err != nil {
		return nil, err
	}

	const maxRetries = 3
	const retryInterval = 2 * time.Second
	var db *gorm.DB
	for i := 0; ; i++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
		if err == nil {
			break
		}
		if i == maxRetries {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Warn("retrying postgres connection", zap.Int("retry", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}

	if err := db.WithContext(ctx).AutoMigrate(&roomRow{}); err != nil {
		return nil, fmt.Errorf("migrate rooms: %w", err)
	}
	log.Info("connected to postgres")
	return &Store{db: db, dsn: dsn, log: log}, nil
}

func (s *Store) Get(ctx context.Context, code string) (store.Record, error) {
	var row roomRow
	err := s.db.WithContext(ctx).First(&row, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.Record{}, store.ErrNotFound
	}
	if err != nil {
		return store.Record{}, err
	}
	return fromRow(row)
}

func (s *Store) Set(ctx context.Context, rec store.Record) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"version", "data", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		// delivered to listeners on commit
		return tx.Exec("SELECT pg_notify(?, ?)", notifyChannel, rec.Code).Error
	})
}

func (s *Store) Delete(ctx context.Context, code string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&roomRow{}, "code = ?", code).Error; err != nil {
			return err
		}
		return tx.Exec("SELECT pg_notify(?, ?)", notifyChannel, code).Error
	})
}

// Subscribe opens a dedicated connection, LISTENs for change notifications and
// re-reads the row whenever its code is announced.
func (s *Store) Subscribe(ctx context.Context, code string) (<-chan store.Record, error) {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{notifyChannel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	out := make(chan store.Record, 16)
	go func() {
		defer close(out)
		defer conn.Close(context.Background())
		for {
			n, err := conn.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("room change feed stopped", zap.String("code", code), zap.Error(err))
				}
				return
			}
			if n.Payload != code {
				continue
			}
			rec, err := s.Get(ctx, code)
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					s.log.Warn("reading changed room", zap.String("code", code), zap.Error(err))
				}
				continue
			}
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(rec store.Record) (roomRow, error) {
	data, err := json.Marshal(rec.Room)
	if err != nil {
		return roomRow{}, fmt.Errorf("encode room %s: %w", rec.Code, err)
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return roomRow{Code: rec.Code, Version: rec.Version, Data: data, UpdatedAt: updated.UTC()}, nil
}

func fromRow(row roomRow) (store.Record, error) {
	rec := store.Record{Code: row.Code, Version: row.Version, UpdatedAt: row.UpdatedAt}
	if err := json.Unmarshal(row.Data, &rec.Room); err != nil {
		return store.Record{}, fmt.Errorf("decode room %s: %w", row.Code, err)
	}
	return rec, nil
}

// withPassword injects password into either a URL or a key=value DSN.
func withPassword(dsn, password string) (string, error) {
	if password == "" {
		return dsn, nil
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse postgres url: %w", err)
		}
		u.User = url.UserPassword(u.User.Username(), password)
		return u.String(), nil
	}
	return strings.TrimSpace(dsn) + " password=" + password, nil
}
