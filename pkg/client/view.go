// Package client maintains a local mirror of room state for presentation
// layers. The View is strictly a snapshot consumer: it ingests server
// frames and control tags, never initiates resolution logic, and doubles
// as a thin encoder for the local player's commands.
package client

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lmarra/rps-arena-backend/pkg/protocol"
)

// maxEvents caps the event log so long sessions don't grow it unbounded.
const maxEvents = 500

var ErrInvalidPick = errors.New("invalid pick")
var ErrPickNotAllowed = errors.New("pick not allowed right now")

// View is safe for concurrent use; UI layers poll the snapshot getters.
type View struct {
	mu sync.Mutex

	id   int64
	name string

	names     map[int64]string
	joinOrder []int64

	points     map[int64]int
	eliminated map[int64]bool
	pending    map[int64]bool
	away       map[int64]bool
	ready      map[int64]bool

	rooms []string

	roundDeadline time.Time
	roundSeconds  int

	selectedPick  string
	lastRoundPick string

	cooldownEnabled bool
	extraEnabled    bool
	extraMode       protocol.ExtraMode

	events []string
	chat   []string

	now func() time.Time
}

func New() *View {
	return &View{
		names:      make(map[int64]string),
		points:     make(map[int64]int),
		eliminated: make(map[int64]bool),
		pending:    make(map[int64]bool),
		away:       make(map[int64]bool),
		ready:      make(map[int64]bool),
		extraMode:  protocol.ModeFull,
		now:        time.Now,
	}
}

// Apply ingests one server frame and updates the mirror.
func (v *View) Apply(msg protocol.ServerMessage) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch msg.Kind {
	case protocol.KindClientID:
		v.id = msg.ClientID
		v.name = msg.Name
		v.addMember(msg.ClientID, msg.Name)

	case protocol.KindSyncClient:
		// Replay of a member who joined before us: they precede us in join
		// order, which host detection depends on.
		v.addEarlierMember(msg.ClientID, msg.Name)

	case protocol.KindRoomJoin:
		v.addMember(msg.ClientID, msg.Name)
		if msg.Text != "" {
			v.addEvent(msg.Text)
		}

	case protocol.KindRoomLeave:
		if msg.ClientID == v.id {
			v.resetMirror()
		} else {
			v.removeMember(msg.ClientID)
		}
		if msg.Text != "" {
			v.addEvent(msg.Text)
		}

	case protocol.KindDisconnect:
		if msg.ClientID == v.id {
			v.resetMirror()
		} else {
			v.removeMember(msg.ClientID)
		}

	case protocol.KindRoomsSync:
		v.rooms = append([]string(nil), msg.Rooms...)

	case protocol.KindPointsSync:
		if msg.Points != nil {
			v.points = copyIntMap(msg.Points)
		}
		if msg.Reason != "" {
			v.addEvent(msg.Reason)
		}

	case protocol.KindRosterSync:
		// Full replacement per map; absent maps leave the mirror untouched.
		if msg.Points != nil {
			v.points = copyIntMap(msg.Points)
		}
		if msg.Eliminated != nil {
			v.eliminated = copyBoolMap(msg.Eliminated)
		}
		if msg.Pending != nil {
			v.pending = copyBoolMap(msg.Pending)
		}
		if msg.Away != nil {
			v.away = copyBoolMap(msg.Away)
		}

	case protocol.KindChat:
		v.applyChat(msg.Text)

	case protocol.KindError:
		if msg.Reason != "" {
			v.addEvent(msg.Reason)
		}
	}
}

// applyChat consumes an embedded control tag, or records the line as
// displayable chat.
func (v *View) applyChat(text string) {
	tag, consumed := protocol.DecodeTag(text)
	switch t := tag.(type) {
	case protocol.CooldownTag:
		v.cooldownEnabled = t.Enabled

	case protocol.ExtraChoicesTag:
		v.extraEnabled = t.Enabled
		v.extraMode = t.Mode
		v.addEvent(fmt.Sprintf("Extra choices: %t (%s)", t.Enabled, t.Mode))

	case protocol.ReadyTag:
		v.ready[t.ClientID] = t.Ready

	case protocol.PendingTag:
		v.pending[t.ClientID] = t.Pending

	case protocol.ElimTag:
		v.eliminated[t.ClientID] = t.Eliminated
		if t.Eliminated {
			v.pending[t.ClientID] = false // eliminated can't be pending
		}

	case protocol.RoundStartTag:
		v.roundSeconds = t.Seconds
		v.roundDeadline = v.now().Add(time.Duration(t.Seconds) * time.Second)
		v.selectedPick = ""
		v.addEvent(fmt.Sprintf("Round started: %ds", t.Seconds))

	case protocol.AwayNotice:
		v.addEvent(t.Text)
		v.chat = append(v.chat, text)

	case protocol.EventLine:
		if isRoundEndingLine(t.Text) {
			v.lastRoundPick = v.selectedPick
		}
		v.addEvent(t.Text)
		v.chat = append(v.chat, text)

	default:
		if consumed {
			return // malformed control tag, never render as chat
		}
		v.chat = append(v.chat, text)
	}
}

func isRoundEndingLine(text string) bool {
	return strings.HasPrefix(text, "Round ") && strings.Contains(text, "ending")
}

func (v *View) addMember(id int64, name string) {
	if id == 0 || name == "" {
		return
	}
	if _, known := v.names[id]; !known {
		v.joinOrder = append(v.joinOrder, id)
	}
	v.names[id] = name
}

// addEarlierMember records a member who joined before the local player,
// slotting them in front of self in join order.
func (v *View) addEarlierMember(id int64, name string) {
	if id == 0 || name == "" {
		return
	}
	if _, known := v.names[id]; known {
		v.names[id] = name
		return
	}
	v.names[id] = name
	for i, oid := range v.joinOrder {
		if oid == v.id {
			v.joinOrder = append(v.joinOrder[:i],
				append([]int64{id}, v.joinOrder[i:]...)...)
			return
		}
	}
	v.joinOrder = append(v.joinOrder, id)
}

func (v *View) removeMember(id int64) {
	delete(v.names, id)
	delete(v.points, id)
	delete(v.eliminated, id)
	delete(v.pending, id)
	delete(v.away, id)
	delete(v.ready, id)
	for i, oid := range v.joinOrder {
		if oid == id {
			v.joinOrder = append(v.joinOrder[:i], v.joinOrder[i+1:]...)
			break
		}
	}
}

func (v *View) resetMirror() {
	v.names = make(map[int64]string)
	v.joinOrder = nil
	v.points = make(map[int64]int)
	v.eliminated = make(map[int64]bool)
	v.pending = make(map[int64]bool)
	v.away = make(map[int64]bool)
	v.ready = make(map[int64]bool)
	v.selectedPick = ""
	v.lastRoundPick = ""
	v.roundDeadline = time.Time{}
}

func (v *View) addEvent(line string) {
	if line == "" {
		return
	}
	v.events = append(v.events, line)
	if len(v.events) > maxEvents {
		v.events = v.events[1:]
	}
}

// ----- snapshots -----

// Me returns the local player's id and display name.
func (v *View) Me() (int64, string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.id, v.name
}

func (v *View) NamesSnapshot() map[int64]string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[int64]string, len(v.names))
	for id, n := range v.names {
		out[id] = n
	}
	return out
}

func (v *View) PointsSnapshot() map[int64]int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return copyIntMap(v.points)
}

func (v *View) EliminatedSnapshot() map[int64]bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return copyBoolMap(v.eliminated)
}

func (v *View) PendingSnapshot() map[int64]bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return copyBoolMap(v.pending)
}

func (v *View) AwaySnapshot() map[int64]bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return copyBoolMap(v.away)
}

func (v *View) ReadySnapshot() map[int64]bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return copyBoolMap(v.ready)
}

func (v *View) RoomsSnapshot() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.rooms...)
}

func (v *View) EventsSnapshot() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.events...)
}

func (v *View) ChatSnapshot() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.chat...)
}

// RemainingSeconds is the round countdown derived from the last
// [ROUND_START] and the local clock.
func (v *View) RemainingSeconds() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.roundDeadline.IsZero() {
		return 0
	}
	rem := v.roundDeadline.Sub(v.now())
	if rem <= 0 {
		return 0
	}
	return int((rem + time.Second - 1) / time.Second)
}

func (v *View) SelectedPick() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selectedPick
}

func (v *View) LastRoundPick() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastRoundPick
}

func (v *View) CooldownEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cooldownEnabled
}

func (v *View) ExtraChoicesEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.extraEnabled
}

func (v *View) ExtraChoicesMode() protocol.ExtraMode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.extraMode
}

func (v *View) AmEliminated() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.eliminated[v.id]
}

func (v *View) AmAway() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.away[v.id]
}

// IsHost reports whether the local player is first in join order.
func (v *View) IsHost() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.joinOrder) > 0 && v.joinOrder[0] == v.id
}

// RemainingPlayers counts members not marked eliminated.
func (v *View) RemainingPlayers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.remainingLocked()
}

func (v *View) remainingLocked() int {
	n := 0
	for id := range v.names {
		if !v.eliminated[id] {
			n++
		}
	}
	return n
}

// ExtraChoicesAllowed mirrors the server-side gate so UIs can disable the
// lizard/spock buttons before the server would reject them.
func (v *View) ExtraChoicesAllowed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.extraAllowedLocked()
}

func (v *View) extraAllowedLocked() bool {
	if !v.extraEnabled {
		return false
	}
	if v.extraMode == protocol.ModeFull {
		return true
	}
	return v.remainingLocked() <= 3
}

// AllReady reports whether every flagged player is ready; false for an
// empty ready map.
func (v *View) AllReady() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.ready) == 0 {
		return false
	}
	for _, r := range v.ready {
		if !r {
			return false
		}
	}
	return true
}

// ----- command encoders -----

// Connect builds the handshake frame, the first thing sent on a new
// connection.
func Connect(name string) protocol.ClientMessage {
	return protocol.ClientMessage{Kind: protocol.KindConnect, Name: name}
}

func CreateRoom(name string) protocol.ClientMessage {
	return protocol.ClientMessage{Kind: protocol.KindRoomCreate, Room: name}
}

func JoinRoom(name string) protocol.ClientMessage {
	return protocol.ClientMessage{Kind: protocol.KindRoomJoin, Room: name}
}

func LeaveRoom() protocol.ClientMessage {
	return protocol.ClientMessage{Kind: protocol.KindRoomLeave}
}

// Pick validates the shorthand choice locally and records it as the
// selected pick for UI highlighting.
func (v *View) Pick(choice string) (protocol.ClientMessage, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch choice {
	case "r", "p", "s":
	case "l", "k":
		if !v.extraAllowedLocked() {
			return protocol.ClientMessage{}, ErrPickNotAllowed
		}
	default:
		return protocol.ClientMessage{}, ErrInvalidPick
	}

	v.selectedPick = choice
	v.addEvent(fmt.Sprintf("You picked [%s]", choice))
	return protocol.ClientMessage{Kind: protocol.KindPick, Choice: choice}, nil
}

func (v *View) Start() protocol.ClientMessage {
	return protocol.ClientMessage{Kind: protocol.KindStart}
}

func (v *View) Chat(text string) protocol.ClientMessage {
	return protocol.ClientMessage{Kind: protocol.KindChat, Text: text}
}

// ToggleAway flips the local player's away status via the [AWAY] tag.
func (v *View) ToggleAway() protocol.ClientMessage {
	v.mu.Lock()
	defer v.mu.Unlock()

	state := protocol.AwayOn
	if v.away[v.id] {
		state = protocol.AwayOff
	}
	return protocol.ClientMessage{
		Kind: protocol.KindChat,
		Text: protocol.EncodeTag(protocol.AwayTag{State: state}),
	}
}

// ToggleReady broadcasts readiness over the chat channel so every view can
// parse it.
func (v *View) ToggleReady(ready bool) protocol.ClientMessage {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.ready[v.id] = ready
	return protocol.ClientMessage{
		Kind: protocol.KindChat,
		Text: protocol.EncodeTag(protocol.ReadyTag{ClientID: v.id, Ready: ready}),
	}
}

// SetCooldown encodes a cooldown settings change. ok is false when the
// value matches the current one; deduping here prevents echo loops.
func (v *View) SetCooldown(enabled bool) (protocol.ClientMessage, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cooldownEnabled == enabled {
		return protocol.ClientMessage{}, false
	}
	v.cooldownEnabled = enabled
	return protocol.ClientMessage{
		Kind: protocol.KindChat,
		Text: protocol.EncodeTag(protocol.CooldownTag{Enabled: enabled}),
	}, true
}

// SetExtraChoices encodes an extra-choices settings change with the same
// dedupe rule as SetCooldown.
func (v *View) SetExtraChoices(enabled bool, mode protocol.ExtraMode) (protocol.ClientMessage, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	mode = protocol.CanonicalMode(string(mode))
	if v.extraEnabled == enabled && v.extraMode == mode {
		return protocol.ClientMessage{}, false
	}
	v.extraEnabled = enabled
	v.extraMode = mode
	return protocol.ClientMessage{
		Kind: protocol.KindChat,
		Text: protocol.EncodeTag(protocol.ExtraChoicesTag{Enabled: enabled, Mode: mode}),
	}, true
}

func copyIntMap(in map[int64]int) map[int64]int {
	out := make(map[int64]int, len(in))
	for k, val := range in {
		out[k] = val
	}
	return out
}

func copyBoolMap(in map[int64]bool) map[int64]bool {
	out := make(map[int64]bool, len(in))
	for k, val := range in {
		out[k] = val
	}
	return out
}
