package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/DoyleJ11/feud-live/internal/access"
	"github.com/DoyleJ11/feud-live/internal/config"
	"github.com/DoyleJ11/feud-live/internal/engine"
	"github.com/DoyleJ11/feud-live/internal/hub"
	"github.com/DoyleJ11/feud-live/internal/lobby"
	"github.com/DoyleJ11/feud-live/internal/questions"
	"github.com/DoyleJ11/feud-live/internal/types"
)

const (
	HeaderAdminPin = "X-Admin-Pin"
	HeaderUserID   = "X-User-Id"
	maxBodyBytes   = 1 << 20
)

// Deps is what every handler needs. Hub is nil while the server is not configured.
type Deps struct {
	Hub       *hub.Hub
	Gate      access.Gate
	Questions []engine.Question
	Config    config.Config
	Log       *zap.Logger
}

// GenerateCode returns prefix-NN, widening to more digits when short codes keep colliding.
func GenerateCode(prefix string, digits int) (string, error) {
	lo := big.NewInt(1)
	for range digits - 1 {
		lo.Mul(lo, big.NewInt(10))
	}
	span := new(big.Int).Mul(lo, big.NewInt(9))
	num, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	num.Add(num, lo)
	if prefix == "" {
		return num.String(), nil
	}
	return engine.NormalizeCode(prefix) + "-" + num.String(), nil
}

type createRoomRequest struct {
	Nickname  string            `json:"nickname"`
	Code      string            `json:"code,omitempty"`
	Questions []engine.Question `json:"questions,omitempty"`
	TeamA     string            `json:"teamA,omitempty"`
	TeamB     string            `json:"teamB,omitempty"`
}

type joinRoomRequest struct {
	Nickname string `json:"nickname"`
	UserID   string `json:"userId,omitempty"`
}

type roomResponse struct {
	Code    string `json:"code"`
	UserID  string `json:"userId"`
	Version int    `json:"version"`
}

type configResponse struct {
	Configured  bool     `json:"configured"`
	StoreDriver string   `json:"storeDriver"`
	Missing     []string `json:"missing"`
}

func CreateRoom(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !d.Gate.Check(r.Header.Get(HeaderAdminPin)) {
			writeError(w, http.StatusForbidden, "admin pin required")
			return
		}
		var req createRoomRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		code := engine.NormalizeCode(req.Code)
		if code == "" {
			var err error
			if code, err = freeCode(r, d); err != nil {
				d.Log.Error("generate room code", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to generate code")
				return
			}
		}

		qs := req.Questions
		if len(qs) == 0 {
			qs = d.Questions
			if d.Config.ShuffleQuestions {
				qs = questions.Shuffled(qs)
			}
		}
		create := engine.CreateRoom{
			Code:      code,
			Host:      engine.User{ID: uuid.NewString(), Nickname: req.Nickname},
			Questions: qs,
		}
		if _, err := engine.NewRoom(create.Code, create.Host, create.Questions); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		lb, err := hub.Create(r.Context(), d.Hub, create)
		if err != nil {
			d.Log.Error("create room", zap.String("code", code), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create room")
			return
		}

		version, err := settle(r, lb, create.Host.ID, req.TeamA, req.TeamB)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "room unavailable")
			return
		}
		d.Log.Info("room created", zap.String("code", code), zap.Int("version", version))
		writeJSON(w, http.StatusCreated, roomResponse{Code: code, UserID: create.Host.ID, Version: version})
	}
}

// settle applies the optional team names and returns the version the creator
// should expect. Going through the inbox also orders it after a supersede.
func settle(r *http.Request, lb *lobby.Lobby, hostID, teamA, teamB string) (int, error) {
	if strings.TrimSpace(teamA) == "" && strings.TrimSpace(teamB) == "" {
		view, err := lobby.State(r.Context(), lb)
		return view.Version, err
	}
	res, err := lobby.Dispatch(r.Context(), lb, lobby.FromClient{
		ClientID: hostID,
		Action:   engine.SetTeamNames{A: teamA, B: teamB},
	})
	return res.Version, err
}

// freeCode picks a code with no running or stored room.
func freeCode(r *http.Request, d *Deps) (string, error) {
	prefix := d.Config.RoomCodePrefix
	for attempt := 0; attempt < 40; attempt++ {
		digits := 2 + attempt/10
		c, err := GenerateCode(prefix, digits)
		if err != nil {
			return "", err
		}
		_, err = hub.Ensure(r.Context(), d.Hub, c)
		if errors.Is(err, hub.ErrNotFound) {
			return c, nil
		}
		if err != nil {
			return "", err
		}
		d.Log.Debug("collision on code, regenerating", zap.String("code", c))
	}
	return "", fmt.Errorf("no free room code with prefix %q", prefix)
}

func JoinRoom(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, ok := ensure(w, r, d)
		if !ok {
			return
		}
		var req joinRoomRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		userID := strings.TrimSpace(req.UserID)
		if userID == "" {
			userID = uuid.NewString()
		}

		res, err := lobby.Dispatch(r.Context(), lb, lobby.FromClient{
			ClientID: userID,
			Action:   engine.JoinRoom{User: engine.User{ID: userID, Nickname: req.Nickname}},
		})
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "room unavailable")
			return
		}
		if res.Err != nil {
			writeError(w, http.StatusBadRequest, res.Err.Error())
			return
		}
		writeJSON(w, http.StatusOK, roomResponse{Code: lb.Code(), UserID: userID, Version: res.Version})
	}
}

// GetRoom is the poll endpoint.
func GetRoom(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, ok := ensure(w, r, d)
		if !ok {
			return
		}
		view, err := lobby.State(r.Context(), lb)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "room unavailable")
			return
		}
		writeJSON(w, http.StatusOK, types.Snapshot(view.Version, view.Room, nil, view.Pending))
	}
}

func Dispatch(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, ok := ensure(w, r, d)
		if !ok {
			return
		}
		var cm types.ClientMessage
		if err := decodeBody(w, r, &cm); err != nil {
			writeJSON(w, http.StatusBadRequest, types.ServerMessage{Type: types.MsgError, Error: "bad json"})
			return
		}
		act, err := cm.Action()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, types.ErrorMessage(err))
			return
		}

		sender := r.Header.Get(HeaderUserID)
		role := d.Gate.Role(r.Header.Get(HeaderAdminPin), sender)
		res, err := lobby.Dispatch(r.Context(), lb, lobby.FromClient{
			ClientID: sender,
			Action:   act,
			Authorize: func(room engine.Room, a engine.Action) (engine.Action, error) {
				return access.Permit(role, sender, room, a)
			},
		})
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "room unavailable")
			return
		}
		switch {
		case errors.Is(res.Err, access.ErrForbidden):
			writeJSON(w, http.StatusForbidden, types.ErrorMessage(res.Err))
		case res.Err != nil:
			writeJSON(w, http.StatusConflict, types.ErrorMessage(res.Err))
		default:
			writeJSON(w, http.StatusOK, types.Snapshot(res.Version, res.Room, res.Events, res.Pending))
		}
	}
}

func DeleteRoom(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !d.Gate.Check(r.Header.Get(HeaderAdminPin)) {
			writeError(w, http.StatusForbidden, "admin pin required")
			return
		}
		code := roomCode(r)
		if _, err := hub.Remove(r.Context(), d.Hub, code); err != nil {
			writeError(w, http.StatusServiceUnavailable, "hub unavailable")
			return
		}
		d.Log.Info("room deleted", zap.String("code", code))
		w.WriteHeader(http.StatusNoContent)
	}
}

// QRCode renders the join link for a room.
func QRCode(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, ok := ensure(w, r, d)
		if !ok {
			return
		}
		png, err := qrcode.Encode(joinURL(d, r, lb.Code()), qrcode.Medium, 256)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to render qr code")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(png)
	}
}

func joinURL(d *Deps, r *http.Request, code string) string {
	base := d.Config.PublicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/?room=" + code
}

func Questions(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Questions)
	}
}

func ConfigStatus(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		missing := d.Config.Missing()
		if missing == nil {
			missing = []string{}
		}
		writeJSON(w, http.StatusOK, configResponse{
			Configured:  len(missing) == 0,
			StoreDriver: d.Config.StoreDriver,
			Missing:     missing,
		})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func ensure(w http.ResponseWriter, r *http.Request, d *Deps) (*lobby.Lobby, bool) {
	lb, err := hub.Ensure(r.Context(), d.Hub, roomCode(r))
	switch {
	case errors.Is(err, hub.ErrNotFound):
		writeError(w, http.StatusNotFound, "room not found")
		return nil, false
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, "room unavailable")
		return nil, false
	}
	return lb, true
}

// roomCode reads the {code} path parameter; players may type it in any case.
func roomCode(r *http.Request) string {
	return engine.NormalizeCode(chi.URLParam(r, "code"))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}
