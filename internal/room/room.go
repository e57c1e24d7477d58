// Package room implements the game room as a single-owner actor: one
// goroutine drains the inbox and performs every mutation, so picks, timer
// expiry, settings changes and membership changes never interleave.
package room

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lmarra/rps-arena-backend/internal/game"
	"github.com/lmarra/rps-arena-backend/pkg/protocol"
)

// Phase is the round lifecycle state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseChoosing  Phase = "choosing"
	PhaseResolving Phase = "resolving"
)

// DefaultRoundDuration is how long a round accepts picks before the timer
// resolves it.
const DefaultRoundDuration = 120 * time.Second

// Settings are the room-scoped toggles, host-mutable only.
type Settings struct {
	ExtraChoices     bool
	ExtraChoicesMode protocol.ExtraMode
	Cooldown         bool
}

// Msg is the closed set of inbox messages.
type Msg interface{ isRoomMsg() }

// Join registers a connection. Outbox receives every message addressed to
// this player; the room closes it on shutdown.
type Join struct {
	ClientID int64
	Name     string
	Outbox   chan protocol.ServerMessage
}

// Leave removes a connection and its player state.
type Leave struct{ ClientID int64 }

// Chat is a free-form line that may carry an embedded control tag.
type Chat struct {
	ClientID int64
	Text     string
}

// Pick submits a choice for the current round.
type Pick struct {
	ClientID int64
	Choice   string
}

// Start requests a session start.
type Start struct{ ClientID int64 }

// GetState mirrors internal state for tests without data races.
type GetState struct{ Reply chan View }

// Shutdown stops the actor and closes every outbox.
type Shutdown struct{}

// timerFired is posted by the round timer goroutine. The round number lets
// the actor drop fires that lost the race against all-picked resolution.
type timerFired struct{ round int }

func (Join) isRoomMsg()       {}
func (Leave) isRoomMsg()      {}
func (Chat) isRoomMsg()       {}
func (Pick) isRoomMsg()       {}
func (Start) isRoomMsg()      {}
func (GetState) isRoomMsg()   {}
func (Shutdown) isRoomMsg()   {}
func (timerFired) isRoomMsg() {}

// View is a copy of room state for assertions.
type View struct {
	Phase      Phase
	Round      int
	NumClients int
	Host       int64
	Settings   Settings
	Points     map[int64]int
	Eliminated map[int64]bool
	Away       map[int64]bool
	Picks      map[int64]game.Choice
}

// Config sizes a room at creation.
type Config struct {
	Name          string
	RoundDuration time.Duration
}

// Room is the state machine actor. All fields below inbox are owned by the
// loop goroutine.
type Room struct {
	inbox chan Msg

	name     string
	roundDur time.Duration
	log      *zap.Logger

	phase    Phase
	round    int
	reg      *registry
	settings Settings
	timer    *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
}

// New starts a room actor. A zero RoundDuration falls back to
// DefaultRoundDuration; a nil logger is replaced with a no-op one.
func New(parent context.Context, cfg Config, log *zap.Logger) *Room {
	if cfg.RoundDuration <= 0 {
		cfg.RoundDuration = DefaultRoundDuration
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		inbox:    make(chan Msg, 64),
		name:     cfg.Name,
		roundDur: cfg.RoundDuration,
		log:      log,
		phase:    PhaseIdle,
		reg:      newRegistry(),
		settings: Settings{ExtraChoicesMode: protocol.ModeFull},
		ctx:      ctx,
		cancel:   cancel,
	}
	go r.loop()
	return r
}

// Inbox exposes the actor's message channel to the transport layer.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Post enqueues a message, giving up silently once the room has shut down.
// Senders holding a stale room pointer can never block on a dead inbox.
func (r *Room) Post(m Msg) {
	select {
	case r.inbox <- m:
	case <-r.ctx.Done():
	}
}

// Name returns the room's name.
func (r *Room) Name() string { return r.name }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)
			case Leave:
				r.handleLeave(msg.ClientID)
			case Chat:
				r.handleChat(msg.ClientID, msg.Text)
			case Pick:
				r.handlePick(msg.ClientID, msg.Choice)
			case Start:
				r.handleStart(msg.ClientID)
			case timerFired:
				r.handleTimerFired(msg.round)
			case GetState:
				msg.Reply <- r.view()
			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) shutdown() {
	r.cancelRoundTimer()
	for _, id := range r.reg.ids() {
		p := r.reg.get(id)
		close(p.outbox)
		r.reg.remove(id)
	}
	r.cancel()
}

// ----- membership -----

func (r *Room) handleJoin(msg Join) {
	// Joining mid-session makes the newcomer a spectator until the next
	// session start.
	spectator := r.phase != PhaseIdle
	p := &player{
		id:         msg.ClientID,
		name:       msg.Name,
		outbox:     msg.Outbox,
		choice:     game.None,
		lastChoice: game.None,
		eliminated: spectator,
	}

	// Let the joiner learn existing members before their own join lands.
	for _, id := range r.reg.ids() {
		other := r.reg.get(id)
		r.deliver(p, protocol.ServerMessage{
			Kind:     protocol.KindSyncClient,
			ClientID: other.id,
			Name:     other.name,
		})
	}

	r.reg.add(p)

	r.broadcast(protocol.ServerMessage{
		Kind:     protocol.KindRoomJoin,
		ClientID: p.id,
		Name:     p.name,
		Text:     fmt.Sprintf("%s joined %s", p.name, r.name),
	})

	r.deliver(p, protocol.ServerMessage{
		Kind:   protocol.KindPointsSync,
		Points: r.reg.pointsSnapshot(),
		Reason: fmt.Sprintf("[SYNC] Welcome to %s", r.name),
	})
	r.deliver(p, r.rosterMessage())
}

func (r *Room) handleLeave(id int64) {
	p := r.reg.get(id)
	if p == nil {
		return
	}
	// The outbox stays open: it belongs to the connection, which may carry
	// it into another room. Only shutdown closes outboxes.
	r.reg.remove(id)

	r.broadcast(protocol.ServerMessage{
		Kind:     protocol.KindRoomLeave,
		ClientID: p.id,
		Name:     p.name,
		Text:     fmt.Sprintf("%s left %s", p.name, r.name),
	})

	// Defensive cleanup: an empty room hard-resets so the next session
	// starts clean.
	if r.reg.empty() {
		r.cancelRoundTimer()
		r.phase = PhaseIdle
		r.round = 0
	}
}

// ----- chat and embedded control tags -----

func (r *Room) handleChat(senderID int64, text string) {
	sender := r.reg.get(senderID)
	if sender == nil {
		return
	}

	tag, consumed := protocol.DecodeTag(text)
	switch t := tag.(type) {
	case protocol.CooldownTag:
		r.applyCooldown(sender, t)
	case protocol.ExtraChoicesTag:
		r.applyExtraChoices(sender, t)
	case protocol.AwayTag:
		r.applyAway(sender, t)
	case protocol.ReadyTag:
		// Ready is client-to-client; relay it over the chat channel so
		// every view can consume it.
		r.relayChat(sender, text)
	default:
		if consumed {
			// Recognized keyword, malformed arguments: drop rather than
			// leak protocol noise into chat.
			r.log.Debug("dropping malformed control tag", zap.String("text", text))
			return
		}
		r.relayChat(sender, text)
	}
}

func (r *Room) relayChat(sender *player, text string) {
	r.broadcast(protocol.ServerMessage{
		Kind:     protocol.KindChat,
		ClientID: sender.id,
		Text:     fmt.Sprintf("%s: %s", sender.name, text),
	})
}

func (r *Room) applyCooldown(sender *player, t protocol.CooldownTag) {
	if sender.id != r.reg.host() {
		r.reject(sender, "Only the host can change settings.")
		return
	}
	if r.settings.Cooldown == t.Enabled {
		return // idempotent set, no broadcast
	}
	r.settings.Cooldown = t.Enabled
	r.broadcastTag(t)
}

func (r *Room) applyExtraChoices(sender *player, t protocol.ExtraChoicesTag) {
	if sender.id != r.reg.host() {
		r.reject(sender, "Only the host can change settings.")
		return
	}
	if r.settings.ExtraChoices == t.Enabled && r.settings.ExtraChoicesMode == t.Mode {
		return
	}
	r.settings.ExtraChoices = t.Enabled
	r.settings.ExtraChoicesMode = t.Mode
	r.broadcastTag(t)
}

func (r *Room) applyAway(sender *player, t protocol.AwayTag) {
	next := sender.away
	switch t.State {
	case protocol.AwayOn:
		next = true
	case protocol.AwayOff:
		next = false
	case protocol.AwayToggle:
		next = !sender.away
	}
	if next == sender.away {
		return
	}
	sender.away = next

	notice := fmt.Sprintf("%s is no longer away", sender.name)
	if next {
		notice = fmt.Sprintf("%s is away", sender.name)
	}
	r.broadcastChat(notice)
	r.broadcast(r.rosterMessage())
}

// ----- session and round lifecycle -----

func (r *Room) handleStart(senderID int64) {
	sender := r.reg.get(senderID)
	if sender == nil {
		return
	}
	if r.phase != PhaseIdle {
		r.reject(sender, "Session already in progress.")
		return
	}
	r.startSession()
}

func (r *Room) startSession() {
	r.round = 0
	for _, id := range r.reg.ids() {
		p := r.reg.get(id)
		p.eliminated = false
		p.choice = game.None
		p.lastChoice = game.None
	}
	// Client mirrors may still show last session's eliminations; a full
	// roster resync at the boundary makes them self-healing.
	r.broadcast(r.rosterMessage())
	r.startRound()
}

func (r *Room) startRound() {
	r.round++
	r.phase = PhaseChoosing

	for _, id := range r.reg.ids() {
		p := r.reg.get(id)
		if p.eliminated {
			continue
		}
		p.lastChoice = p.choice
		p.choice = game.None
	}

	r.armRoundTimer()

	seconds := int(r.roundDur / time.Second)
	r.broadcastChat(fmt.Sprintf("Round %d started. Make your pick!", r.round))
	r.broadcastTag(protocol.RoundStartTag{Seconds: seconds})
	for _, id := range r.reg.ids() {
		if p := r.reg.get(id); p.active() {
			r.broadcastTag(protocol.PendingTag{ClientID: id, Pending: true})
		}
	}
}

func (r *Room) handlePick(senderID int64, raw string) {
	sender := r.reg.get(senderID)
	if sender == nil {
		return
	}
	if r.phase != PhaseChoosing {
		r.reject(sender, "You cannot pick right now. Wait for the next round.")
		return
	}
	if sender.eliminated {
		r.reject(sender, "You're eliminated this session and are now a spectator.")
		return
	}
	if sender.choice != game.None {
		r.reject(sender, "You already picked for this round.")
		return
	}

	choice, ok := game.Parse(strings.ToLower(strings.TrimSpace(raw)))
	if !ok {
		r.reject(sender, "Invalid pick. Use pick <r|p|s>.")
		return
	}
	if choice.Extended() && !r.extraChoicesAllowed() {
		r.reject(sender, "That choice is not allowed right now.")
		return
	}
	if r.settings.Cooldown && sender.lastChoice != game.None && choice == sender.lastChoice {
		r.reject(sender, "That choice is on cooldown from last round.")
		return
	}

	sender.choice = choice
	r.broadcastChat(fmt.Sprintf("%s picked their choice.", sender.name))
	r.broadcastTag(protocol.PendingTag{ClientID: sender.id, Pending: false})

	if r.reg.allActivePicked() {
		r.cancelRoundTimer()
		r.endRound()
	}
}

// extraChoicesAllowed gates lizard/spock: enabled, and in LAST3 mode only
// while at most three players remain active.
func (r *Room) extraChoicesAllowed() bool {
	if !r.settings.ExtraChoices {
		return false
	}
	if r.settings.ExtraChoicesMode == protocol.ModeFull {
		return true
	}
	return r.reg.activeCount() <= 3
}

func (r *Room) handleTimerFired(round int) {
	// Stale fire: the round already resolved by full participation, or the
	// session ended.
	if round != r.round || r.phase != PhaseChoosing {
		return
	}
	r.endRound()
}

func (r *Room) endRound() {
	r.cancelRoundTimer()
	r.phase = PhaseResolving
	r.broadcastChat(fmt.Sprintf("Round %d ending...", r.round))

	verdict := game.Resolve(r.reg.activePicks())

	for _, id := range verdict.NoShows {
		r.eliminate(id, fmt.Sprintf("%s did not pick and is eliminated!", r.playerName(id)))
	}

	if verdict.Stalemate {
		r.broadcastChat("No decisive result this round. It's a stalemate. Replaying the round.")
		r.syncPoints("[SCOREBOARD]")
		r.startRound()
		return
	}

	for _, id := range verdict.Losers {
		r.eliminate(id, fmt.Sprintf("Eliminated: %s", r.playerName(id)))
	}

	if len(verdict.Survivors) <= 1 {
		r.endSession(verdict.Survivors)
		return
	}

	r.syncPoints("[SCOREBOARD]")
	r.startRound()
}

func (r *Room) eliminate(id int64, notice string) {
	p := r.reg.get(id)
	if p == nil || p.eliminated {
		return
	}
	p.eliminated = true
	r.broadcastChat(notice)
	r.broadcastTag(protocol.ElimTag{ClientID: id, Eliminated: true})
}

func (r *Room) endSession(survivors []int64) {
	if len(survivors) == 1 {
		winner := r.reg.get(survivors[0])
		if winner != nil {
			winner.points++
			r.broadcastChat(fmt.Sprintf("Game over! Winner: %s", winner.name))
		}
	} else {
		r.broadcastChat("Game over! No players remain. It's a tie.")
	}

	r.broadcastChat("Final standings: " + r.formatStandings())
	r.syncPoints("[FINAL]")

	r.phase = PhaseIdle
	r.round = 0
	for _, id := range r.reg.ids() {
		p := r.reg.get(id)
		p.eliminated = false
		p.choice = game.None
		p.lastChoice = game.None
	}

	r.broadcastChat("Session reset. Use the ready flow to start a new game.")
}

// formatStandings renders the scoreboard sorted by points descending,
// breaking ties by join order.
func (r *Room) formatStandings() string {
	ids := r.reg.ids()
	sort.SliceStable(ids, func(i, j int) bool {
		return r.reg.get(ids[i]).points > r.reg.get(ids[j]).points
	})
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		p := r.reg.get(id)
		parts = append(parts, fmt.Sprintf("%s=%d", p.name, p.points))
	}
	return strings.Join(parts, ", ")
}

// ----- timer -----

func (r *Room) armRoundTimer() {
	r.cancelRoundTimer()
	round := r.round
	r.timer = time.AfterFunc(r.roundDur, func() {
		select {
		case r.inbox <- timerFired{round: round}:
		case <-r.ctx.Done():
		}
	})
}

func (r *Room) cancelRoundTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// ----- outbound -----

// deliver sends to a single player. Best effort: a full outbox is logged
// and skipped, never blocking the actor or failing the state change.
func (r *Room) deliver(p *player, msg protocol.ServerMessage) {
	select {
	case p.outbox <- msg:
	default:
		r.log.Warn("dropping message for slow client",
			zap.String("room", r.name),
			zap.Int64("client_id", p.id),
			zap.String("kind", string(msg.Kind)))
	}
}

func (r *Room) broadcast(msg protocol.ServerMessage) {
	for _, id := range r.reg.ids() {
		r.deliver(r.reg.get(id), msg)
	}
}

// broadcastChat sends a server narration line to everyone.
func (r *Room) broadcastChat(text string) {
	r.broadcast(protocol.ServerMessage{Kind: protocol.KindChat, Text: text})
}

// broadcastTag sends a control tag over the chat channel in canonical form.
func (r *Room) broadcastTag(tag protocol.Tag) {
	r.broadcastChat(protocol.EncodeTag(tag))
}

// reject reports a refused command to the originating connection only.
func (r *Room) reject(p *player, reason string) {
	r.deliver(p, protocol.ServerMessage{Kind: protocol.KindError, Reason: reason})
}

func (r *Room) syncPoints(reason string) {
	r.broadcast(protocol.ServerMessage{
		Kind:   protocol.KindPointsSync,
		Points: r.reg.pointsSnapshot(),
		Reason: reason,
	})
}

func (r *Room) rosterMessage() protocol.ServerMessage {
	return protocol.ServerMessage{
		Kind:       protocol.KindRosterSync,
		Points:     r.reg.pointsSnapshot(),
		Eliminated: r.reg.eliminatedSnapshot(),
		Pending:    r.reg.pendingSnapshot(r.phase == PhaseChoosing),
		Away:       r.reg.awaySnapshot(),
	}
}

func (r *Room) playerName(id int64) string {
	if p := r.reg.get(id); p != nil {
		return p.name
	}
	return fmt.Sprintf("#%d", id)
}

func (r *Room) view() View {
	picks := make(map[int64]game.Choice, len(r.reg.players))
	for id, p := range r.reg.players {
		picks[id] = p.choice
	}
	return View{
		Phase:      r.phase,
		Round:      r.round,
		NumClients: len(r.reg.players),
		Host:       r.reg.host(),
		Settings:   r.settings,
		Points:     r.reg.pointsSnapshot(),
		Eliminated: r.reg.eliminatedSnapshot(),
		Away:       r.reg.awaySnapshot(),
		Picks:      picks,
	}
}
