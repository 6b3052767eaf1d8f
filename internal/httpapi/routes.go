package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/DoyleJ11/feud-live/internal/logging"
	"github.com/DoyleJ11/feud-live/internal/ws"
)

func SetupRoutes(d *Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", HeaderAdminPin, HeaderUserID},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/config", ConfigStatus(d))
	r.Get("/questions", Questions(d))

	r.Route("/rooms", func(r chi.Router) {
		r.Use(requireConfigured(d))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(10 * time.Second))
			r.Post("/", CreateRoom(d))
			r.Get("/{code}", GetRoom(d))
			r.Delete("/{code}", DeleteRoom(d))
			r.Post("/{code}/join", JoinRoom(d))
			r.Post("/{code}/actions", Dispatch(d))
			r.Get("/{code}/qr.png", QRCode(d))
		})

		// Long lived
		r.Get("/{code}/events", Events(d))
		r.Get("/{code}/ws", ws.Handler(d.Hub, ws.Options{
			Gate:           d.Gate,
			AllowedOrigins: d.Config.AllowedOrigins,
			Log:            d.Log,
		}))
	})
	return r
}

// requireConfigured answers 503 on room routes until a store is available.
func requireConfigured(d *Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d.Hub == nil {
				writeJSON(w, http.StatusServiceUnavailable, struct {
					Error   string   `json:"error"`
					Missing []string `json:"missing"`
				}{Error: "server not configured", Missing: d.Config.Missing()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
