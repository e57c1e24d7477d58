// Package ws bridges websocket connections to room actors. Each connection
// gets a reader loop (inbound frames -> room messages) and a writer
// goroutine (room outbox -> frames), mirroring the transport contract: the
// core only ever sees ordered, already-decoded structured messages.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lmarra/rps-arena-backend/internal/hub"
	"github.com/lmarra/rps-arena-backend/internal/room"
	"github.com/lmarra/rps-arena-backend/pkg/protocol"
)

// nextClientID hands out the opaque numeric player ids the game state is
// keyed by. Connection-scoped, never reused within a process.
var nextClientID atomic.Int64

const handshakeTimeout = 10 * time.Second

func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		logger := log.With(zap.String("conn_id", uuid.NewString()))

		// Handshake: the first frame must be connect(name).
		hsCtx, hsCancel := context.WithTimeout(r.Context(), handshakeTimeout)
		_, data, err := conn.Read(hsCtx)
		hsCancel()
		if err != nil {
			return
		}
		var hello protocol.ClientMessage
		if err := json.Unmarshal(data, &hello); err != nil ||
			hello.Kind != protocol.KindConnect || hello.Name == "" {
			writeMessage(r.Context(), conn, protocol.ServerMessage{
				Kind: protocol.KindError, Reason: "expected connect with a display name",
			})
			return
		}

		clientID := nextClientID.Add(1)
		logger = logger.With(zap.Int64("client_id", clientID), zap.String("name", hello.Name))
		logger.Info("client connected")

		writeMessage(r.Context(), conn, protocol.ServerMessage{
			Kind: protocol.KindClientID, ClientID: clientID, Name: hello.Name,
		})

		names := make(chan []string, 1)
		h.Inbox() <- hub.ListRooms{Reply: names}
		writeMessage(r.Context(), conn, protocol.ServerMessage{
			Kind: protocol.KindRoomsSync, Rooms: <-names,
		})

		roomName := r.URL.Query().Get("room")
		if roomName == "" {
			roomName = hub.LobbyRoom
		}
		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.EnsureRoom{Name: roomName, Reply: reply}
		current := <-reply

		// The outbox belongs to this connection and follows it across room
		// switches.
		out := make(chan protocol.ServerMessage, 32)
		current.Post(room.Join{ClientID: clientID, Name: hello.Name, Outbox: out})
		defer func() { current.Post(room.Leave{ClientID: clientID}) }()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case msg, ok := <-out:
					if !ok {
						return
					}
					ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
					if err := writeMessage(ctx, conn, msg); err != nil {
						logger.Warn("delivery failed", zap.Error(err))
					}
					cancel()
				}
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					logger.Info("client disconnected")
				default:
					logger.Info("connection dropped", zap.Error(err))
				}
				return
			}

			var cm protocol.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeMessage(r.Context(), conn, protocol.ServerMessage{
					Kind: protocol.KindError, Reason: "bad json",
				})
				continue
			}

			switch cm.Kind {
			case protocol.KindChat:
				current.Post(room.Chat{ClientID: clientID, Text: cm.Text})

			case protocol.KindPick:
				current.Post(room.Pick{ClientID: clientID, Choice: cm.Choice})

			case protocol.KindStart:
				current.Post(room.Start{ClientID: clientID})

			case protocol.KindRoomCreate, protocol.KindRoomJoin:
				if cm.Room == "" {
					writeMessage(r.Context(), conn, protocol.ServerMessage{
						Kind: protocol.KindError, Reason: "missing room name",
					})
					continue
				}
				current = switchRoom(h, current, cm.Room, clientID, hello.Name, out)

			case protocol.KindRoomLeave:
				if current.Name() != hub.LobbyRoom {
					current = switchRoom(h, current, hub.LobbyRoom, clientID, hello.Name, out)
				}

			case protocol.KindDisconnect:
				return

			default:
				writeMessage(r.Context(), conn, protocol.ServerMessage{
					Kind: protocol.KindError, Reason: "unknown message kind",
				})
			}
		}
	}
}

func switchRoom(h *hub.Hub, current *room.Room, name string, clientID int64,
	displayName string, out chan protocol.ServerMessage) *room.Room {

	reply := make(chan *room.Room, 1)
	h.Inbox() <- hub.EnsureRoom{Name: name, Reply: reply}
	next := <-reply

	current.Post(room.Leave{ClientID: clientID})
	next.Post(room.Join{ClientID: clientID, Name: displayName, Outbox: out})
	return next
}

func writeMessage(ctx context.Context, conn *websocket.Conn, msg protocol.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}
