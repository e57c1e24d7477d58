// Package hub owns the set of named rooms. Like the rooms themselves it is
// an actor: one goroutine serializes create/get/remove so two connections
// can never race a room into existence twice.
package hub

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/lmarra/rps-arena-backend/internal/room"
)

// LobbyRoom is where connections land before joining a game room, and
// where a room_leave returns them.
const LobbyRoom = "lobby"

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Name  string
	Reply chan *room.Room
}

type GetRoom struct {
	Name  string
	Reply chan *room.Room
}

// EnsureRoom returns the named room, creating it first if needed.
type EnsureRoom struct {
	Name  string
	Reply chan *room.Room
}

type RemoveRoom struct {
	Name string
}

// ListRooms replies with the known room names, sorted.
type ListRooms struct {
	Reply chan []string
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (EnsureRoom) isHubMsg()  {}
func (RemoveRoom) isHubMsg()  {}
func (ListRooms) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox    chan HubMsg
	rooms    map[string]*room.Room
	roundDur time.Duration
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewHub starts the hub actor with the lobby room pre-created. roundDur is
// applied to every room it creates.
func NewHub(parent context.Context, roundDur time.Duration, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		rooms:    make(map[string]*room.Room),
		roundDur: roundDur,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	h.rooms[LobbyRoom] = h.newRoom(LobbyRoom)
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) newRoom(name string) *room.Room {
	h.log.Info("creating room", zap.String("room", name))
	return room.New(h.ctx, room.Config{Name: name, RoundDuration: h.roundDur}, h.log)
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				if rm := h.rooms[msg.Name]; rm != nil {
					msg.Reply <- rm
					break
				}
				rm := h.newRoom(msg.Name)
				h.rooms[msg.Name] = rm
				msg.Reply <- rm

			case GetRoom:
				msg.Reply <- h.rooms[msg.Name] // may be nil

			case EnsureRoom:
				if rm := h.rooms[msg.Name]; rm != nil {
					msg.Reply <- rm
					break
				}
				rm := h.newRoom(msg.Name)
				h.rooms[msg.Name] = rm
				msg.Reply <- rm

			case RemoveRoom:
				if msg.Name == LobbyRoom {
					break
				}
				if rm := h.rooms[msg.Name]; rm != nil {
					rm.Post(room.Shutdown{})
					delete(h.rooms, msg.Name)
				}

			case ListRooms:
				names := make([]string, 0, len(h.rooms))
				for name := range h.rooms {
					names = append(names, name)
				}
				sort.Strings(names)
				msg.Reply <- names

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, rm := range h.rooms {
		rm.Post(room.Shutdown{})
	}
	clear(h.rooms)
	h.cancel()
}
