// Package protocol defines the wire contract between servers and clients:
// the structured message kinds carried as JSON frames, and the bracketed
// control-tag sublanguage embedded in chat text. Independently implemented
// clients interoperate against this package alone.
package protocol

// Kind discriminates structured messages in both directions.
type Kind string

const (
	// Client -> Server
	KindConnect    Kind = "connect"
	KindChat       Kind = "chat"
	KindPick       Kind = "pick"
	KindStart      Kind = "start"
	KindRoomCreate Kind = "room_create"
	KindRoomJoin   Kind = "room_join"
	KindRoomLeave  Kind = "room_leave"
	KindDisconnect Kind = "disconnect"

	// Server -> Client
	KindClientID   Kind = "client_id"
	KindSyncClient Kind = "sync_client"
	KindRoomsSync  Kind = "rooms_sync"
	KindPointsSync Kind = "points_sync"
	KindRosterSync Kind = "roster_sync"
	KindError      Kind = "error"
	// KindChat, KindRoomJoin, KindRoomLeave and KindDisconnect are reused
	// server -> client for relayed chat and roster membership changes.
)

// ExtraMode gates when the extended choice set may be used.
type ExtraMode string

const (
	ModeFull  ExtraMode = "FULL"  // always allowed
	ModeLast3 ExtraMode = "LAST3" // allowed only with <= 3 active players
)

// CanonicalMode maps any spelling of a mode onto the closed set,
// defaulting to FULL.
func CanonicalMode(s string) ExtraMode {
	if ExtraMode(s) == ModeLast3 || s == "last3" {
		return ModeLast3
	}
	return ModeFull
}

// ClientMessage is a frame sent by a client.
type ClientMessage struct {
	Kind   Kind   `json:"kind"`
	Name   string `json:"name,omitempty"`   // connect: display name
	Room   string `json:"room,omitempty"`   // room_create / room_join
	Choice string `json:"choice,omitempty"` // pick: r|p|s|l|k
	Text   string `json:"text,omitempty"`   // chat
}

// ServerMessage is a frame sent by the server. Map fields are only set on
// the sync kinds; absent maps mean "leave the mirror untouched".
type ServerMessage struct {
	Kind       Kind           `json:"kind"`
	ClientID   int64          `json:"client_id,omitempty"`
	Name       string         `json:"name,omitempty"`
	Text       string         `json:"text,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Points     map[int64]int  `json:"points,omitempty"`
	Eliminated map[int64]bool `json:"eliminated,omitempty"`
	Pending    map[int64]bool `json:"pending,omitempty"`
	Away       map[int64]bool `json:"away,omitempty"`
	Rooms      []string       `json:"rooms,omitempty"`
}
