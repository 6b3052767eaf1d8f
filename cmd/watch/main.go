// Command watch follows a room from the terminal and prints the cues a
// display client would play.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/feud-live/internal/engine"
	"github.com/DoyleJ11/feud-live/internal/logging"
	"github.com/DoyleJ11/feud-live/internal/mirror"
)

func main() {
	home, _ := os.UserConfigDir()
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "server base URL")
		code     = flag.String("code", "", "room code (defaults to the saved session)")
		nickname = flag.String("nickname", "", "join the room under this nickname (defaults to the saved session)")
		interval = flag.Duration("interval", mirror.DefaultInterval, "poll interval")
		session  = flag.String("session", filepath.Join(home, "feud-live", "session.json"), "session file")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	logger, err := logging.New(true, level)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sess, err := mirror.LoadSession(*session)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("ignoring unreadable session", zap.String("session", *session), zap.Error(err))
	}
	if c := engine.NormalizeCode(*code); c != "" && c != sess.RoomCode {
		sess = mirror.Session{RoomCode: c} // another room, another identity
	}
	if *nickname != "" {
		sess.Nickname = *nickname
	}
	if sess.RoomCode == "" {
		logger.Fatal("no room code given and no saved session", zap.String("session", *session))
	}

	if sess.Nickname != "" && !sess.IsHost {
		resumed := sess.UserID != ""
		sess, err = mirror.Rejoin(ctx, nil, *baseURL, sess)
		switch {
		case errors.Is(err, mirror.ErrRoomGone):
			logger.Info("room closed", zap.String("code", sess.RoomCode))
			_ = mirror.ClearSession(*session)
			return
		case err != nil:
			logger.Fatal("join failed", zap.String("code", sess.RoomCode), zap.Error(err))
		}
		logger.Info("joined room",
			zap.String("code", sess.RoomCode),
			zap.String("user", sess.UserID),
			zap.String("nickname", sess.Nickname),
			zap.Bool("resumed", resumed))
	} else {
		logger.Info("watching without joining, pass -nickname to join", zap.String("code", sess.RoomCode))
	}
	if err := mirror.SaveSession(*session, sess); err != nil {
		logger.Warn("could not save session", zap.Error(err))
	}

	m := mirror.New()
	p := &mirror.Poller{
		BaseURL:  *baseURL,
		Code:     sess.RoomCode,
		Interval: *interval,
		Mirror:   m,
		Log:      logger,
		OnCue: func(c mirror.Cue) {
			room, version, _ := m.Room()
			logger.Info("cue",
				zap.String("kind", string(c.Kind)),
				zap.String("sound", c.Sound),
				zap.String("team", string(c.Team)),
				zap.Int("version", version),
				zap.String("status", string(room.Status)),
				zap.Int("teamA", room.TeamAScore),
				zap.Int("teamB", room.TeamBScore),
				zap.Int("bank", room.RoundScore),
				zap.Int("strikes", room.Strikes),
			)
			if room.TimerEndsAt != nil {
				logger.Debug("countdown", zap.Duration("remaining", room.Remaining(time.Now()).Round(time.Second)))
			}
		},
	}

	err = p.Run(ctx)
	switch {
	case errors.Is(err, mirror.ErrRoomGone):
		logger.Info("room closed", zap.String("code", sess.RoomCode))
		_ = mirror.ClearSession(*session)
	case err == nil, errors.Is(err, context.Canceled):
	default:
		logger.Error("watch stopped", zap.Error(err))
	}
}
