package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/lmarra/rps-arena-backend/internal/hub"
	"github.com/lmarra/rps-arena-backend/internal/room"
)

// GenerateCode produces a random 6-character room name for create requests
// that don't supply one.
func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

// CreateRoom creates a named room, generating a code when the body omits
// the name. Creating an existing room is idempotent.
func CreateRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body) // empty body is fine

		name := body.Name
		if name == "" {
			var err error
			name, err = GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate room name", http.StatusInternalServerError)
				return
			}
		}

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.EnsureRoom{Name: name, Reply: reply}
		if <-reply == nil {
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			Name string `json:"name"`
		}{Name: name})
	}
}

// ListRooms returns the known room names.
func ListRooms(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan []string, 1)
		h.Inbox() <- hub.ListRooms{Reply: reply}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Rooms []string `json:"rooms"`
		}{Rooms: <-reply})
	}
}

// RoomQR renders a PNG QR code for the room's websocket join URL, so a
// phone can scan its way into a room someone created on a shared screen.
func RoomQR(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.GetRoom{Name: name, Reply: reply}
		if <-reply == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		joinURL := url.URL{
			Scheme:   "ws",
			Host:     r.Host,
			Path:     "/ws",
			RawQuery: url.Values{"room": {name}}.Encode(),
		}
		png, err := qrcode.Encode(joinURL.String(), qrcode.Medium, 256)
		if err != nil {
			http.Error(w, "failed to render qr code", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
