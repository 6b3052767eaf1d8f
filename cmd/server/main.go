package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/feud-live/internal/access"
	"github.com/DoyleJ11/feud-live/internal/config"
	"github.com/DoyleJ11/feud-live/internal/httpapi"
	"github.com/DoyleJ11/feud-live/internal/hub"
	"github.com/DoyleJ11/feud-live/internal/janitor"
	"github.com/DoyleJ11/feud-live/internal/logging"
	"github.com/DoyleJ11/feud-live/internal/questions"
	"github.com/DoyleJ11/feud-live/internal/store"
	"github.com/DoyleJ11/feud-live/internal/store/pgstore"
	"github.com/DoyleJ11/feud-live/internal/store/redisstore"
)

func main() {
	cfg, cfgErr := config.Load()

	logger, err := logging.New(cfg.Development(), cfg.LogLevel)
	if err != nil {
		log.Printf("falling back to info logging: %v", err)
		logger, _ = logging.New(cfg.Development(), "info")
	}
	defer logger.Sync()

	for _, e := range multierr.Errors(cfgErr) {
		logger.Warn("configuration", zap.Error(e))
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	qs, qerr := questions.Load(cfg.QuestionsFile)
	if qerr != nil {
		logger.Warn("question file unusable, using default bank", zap.String("path", cfg.QuestionsFile), zap.Error(qerr))
		qs = questions.Default()
	}

	deps := &httpapi.Deps{
		Gate:      access.NewGate(cfg.AdminPIN),
		Questions: qs,
		Config:    cfg,
		Log:       logger,
	}

	var jan *janitor.Janitor
	if cfg.Configured() {
		st, serr := openStore(ctx, cfg, logger)
		if serr != nil {
			// Keep serving /config and /healthz; room routes answer 503.
			logger.Error("room store unavailable", zap.String("driver", cfg.StoreDriver), zap.Error(serr))
		} else {
			defer func() { err = multierr.Append(err, st.Close()) }()
			h := hub.NewHub(ctx, hub.Options{Store: st, Log: logger})
			deps.Hub = h

			jan, err = janitor.New(h.Inbox(), cfg.ReapSchedule, cfg.RoomIdleTTL, logger)
			if err != nil {
				return err
			}
			jan.Start()
		}
	} else {
		logger.Warn("server not configured", zap.Strings("missing", cfg.Missing()))
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.SetupRoutes(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var errs error
		if jan != nil {
			jan.Stop(shutdownCtx)
		}
		errs = multierr.Append(errs, srv.Shutdown(shutdownCtx))
		if deps.Hub != nil {
			select {
			case <-deps.Hub.Done():
			case <-shutdownCtx.Done():
			}
		}
		return errs
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverRedis:
		s, err := redisstore.Open(ctx, cfg.StoreURL, cfg.StoreKey, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		s, err := pgstore.Open(ctx, cfg.StoreURL, cfg.StoreKey, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return store.NewMemory(), nil
	}
}
