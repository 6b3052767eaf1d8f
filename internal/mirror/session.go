package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Session is what a client remembers between runs to rejoin as the same user.
type Session struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	IsHost   bool   `json:"isHost"`
	RoomCode string `json:"roomCode"`
}

func SaveSession(path string, s Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("session dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadSession returns an error wrapping fs.ErrNotExist when nothing was saved.
func LoadSession(path string) (Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func ClearSession(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

type joinRequest struct {
	Nickname string `json:"nickname"`
	UserID   string `json:"userId,omitempty"`
}

type joinResponse struct {
	Code   string `json:"code"`
	UserID string `json:"userId"`
}

// Rejoin posts s to /rooms/{code}/join. A saved UserID comes back as the same
// user with its team kept; an empty one joins as someone new. The returned
// session carries the id and code the server settled on.
func Rejoin(ctx context.Context, client *http.Client, baseURL string, s Session) (Session, error) {
	body, err := json.Marshal(joinRequest{Nickname: s.Nickname, UserID: s.UserID})
	if err != nil {
		return s, err
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/rooms/" + url.PathEscape(s.RoomCode) + "/join"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return s, err
	}
	req.Header.Set("Content-Type", "application/json")
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return s, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return s, ErrRoomGone
	case resp.StatusCode != http.StatusOK:
		return s, fmt.Errorf("join %s: unexpected status %d", s.RoomCode, resp.StatusCode)
	}
	var jr joinResponse
	if err := json.NewDecoder(resp.Body).Decode(&jr); err != nil {
		return s, fmt.Errorf("join %s: %w", s.RoomCode, err)
	}
	s.UserID = jr.UserID
	s.RoomCode = jr.Code
	return s, nil
}
