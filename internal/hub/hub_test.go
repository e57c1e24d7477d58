package hub

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/lmarra/rps-arena-backend/internal/room"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewHub(ctx, time.Hour, nil)
}

func ensure(t *testing.T, h *Hub, name string) *room.Room {
	t.Helper()
	reply := make(chan *room.Room, 1)
	h.Inbox() <- EnsureRoom{Name: name, Reply: reply}
	select {
	case rm := <-reply:
		return rm
	case <-time.After(time.Second):
		t.Fatalf("timed out ensuring room %q", name)
		return nil // unreachable
	}
}

func get(t *testing.T, h *Hub, name string) *room.Room {
	t.Helper()
	reply := make(chan *room.Room, 1)
	h.Inbox() <- GetRoom{Name: name, Reply: reply}
	select {
	case rm := <-reply:
		return rm
	case <-time.After(time.Second):
		t.Fatalf("timed out getting room %q", name)
		return nil // unreachable
	}
}

func list(t *testing.T, h *Hub) []string {
	t.Helper()
	reply := make(chan []string, 1)
	h.Inbox() <- ListRooms{Reply: reply}
	select {
	case names := <-reply:
		return names
	case <-time.After(time.Second):
		t.Fatalf("timed out listing rooms")
		return nil // unreachable
	}
}

func TestHub_EnsureRoomIsIdempotent(t *testing.T) {
	h := newTestHub(t)

	first := ensure(t, h, "arena")
	second := ensure(t, h, "arena")
	if first != second {
		t.Fatalf("ensure must return the same room for the same name")
	}
	if first.Name() != "arena" {
		t.Fatalf("want room named arena, got %q", first.Name())
	}
}

func TestHub_GetRoomMissingIsNil(t *testing.T) {
	h := newTestHub(t)

	if rm := get(t, h, "nope"); rm != nil {
		t.Fatalf("want nil for unknown room, got %v", rm.Name())
	}
}

func TestHub_LobbyExistsFromTheStart(t *testing.T) {
	h := newTestHub(t)

	if rm := get(t, h, LobbyRoom); rm == nil {
		t.Fatalf("lobby must be pre-created")
	}
}

func TestHub_ListRoomsIsSorted(t *testing.T) {
	h := newTestHub(t)

	ensure(t, h, "zebra")
	ensure(t, h, "apple")

	names := list(t, h)
	want := []string{"apple", LobbyRoom, "zebra"}
	if !slices.Equal(names, want) {
		t.Fatalf("want %v, got %v", want, names)
	}
}

func TestHub_RemoveRoomProtectsLobby(t *testing.T) {
	h := newTestHub(t)

	ensure(t, h, "arena")
	h.Inbox() <- RemoveRoom{Name: "arena"}
	h.Inbox() <- RemoveRoom{Name: LobbyRoom}

	names := list(t, h)
	if slices.Contains(names, "arena") {
		t.Fatalf("arena should be removed, got %v", names)
	}
	if !slices.Contains(names, LobbyRoom) {
		t.Fatalf("lobby must survive removal, got %v", names)
	}
}
