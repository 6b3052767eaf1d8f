package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/DoyleJ11/feud-live/internal/access"
)

const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Port             string
	Env              string
	LogLevel         string
	StoreDriver      string
	StoreURL         string
	StoreKey         string
	AdminPIN         string
	QuestionsFile    string
	ShuffleQuestions bool
	RoomCodePrefix   string
	RoomIdleTTL      time.Duration
	ReapSchedule     string
	PublicURL        string
	AllowedOrigins   []string
}

// Load reads .env when present, then the process environment. Malformed values
// fall back to their defaults and are reported in the returned error; the
// Config is always usable.
func Load() (Config, error) {
	var errs error
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = multierr.Append(errs, fmt.Errorf("load .env: %w", err))
	}
	cfg, err := FromEnv(os.Getenv)
	return cfg, multierr.Append(errs, err)
}

func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	var errs error
	cfg := Config{
		Port:           get("PORT", "8080"),
		Env:            get("ENV", "production"),
		LogLevel:       get("LOG_LEVEL", "info"),
		StoreDriver:    strings.ToLower(get("STORE_DRIVER", DriverMemory)),
		StoreURL:       get("STORE_URL", ""),
		StoreKey:       get("STORE_KEY", ""),
		AdminPIN:       get("ADMIN_PIN", access.DefaultPIN),
		QuestionsFile:  get("QUESTIONS_FILE", ""),
		RoomCodePrefix: get("ROOM_CODE_PREFIX", "DZ"),
		ReapSchedule:   get("REAP_SCHEDULE", "@every 10m"),
		PublicURL:      strings.TrimRight(get("PUBLIC_URL", ""), "/"),
		RoomIdleTTL:    2 * time.Hour,
	}

	if v := get("SHUFFLE_QUESTIONS", ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("SHUFFLE_QUESTIONS: %w", err))
		}
		cfg.ShuffleQuestions = b
	}
	if v := get("ROOM_IDLE_TTL", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("ROOM_IDLE_TTL: invalid duration %q", v))
		} else {
			cfg.RoomIdleTTL = d
		}
	}
	switch cfg.StoreDriver {
	case DriverMemory, DriverRedis, DriverPostgres:
	default:
		errs = multierr.Append(errs, fmt.Errorf("STORE_DRIVER: unknown driver %q", cfg.StoreDriver))
	}
	for _, o := range strings.Split(get("ALLOWED_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}
	return cfg, errs
}

// Missing lists the variables the selected store needs but did not get.
func (c Config) Missing() []string {
	var missing []string
	switch c.StoreDriver {
	case DriverMemory:
	case DriverRedis, DriverPostgres:
		if c.StoreURL == "" {
			missing = append(missing, "STORE_URL")
		}
	default:
		missing = append(missing, "STORE_DRIVER")
	}
	return missing
}

func (c Config) Configured() bool { return len(c.Missing()) == 0 }

func (c Config) Development() bool { return c.Env == "development" || c.Env == "dev" }

func (c Config) Addr() string { return ":" + c.Port }
