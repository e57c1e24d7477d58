package room

import (
	"github.com/lmarra/rps-arena-backend/internal/game"
	"github.com/lmarra/rps-arena-backend/pkg/protocol"
)

// player is the per-connection game state owned by the room actor. Nothing
// outside the actor loop reads or writes these fields.
type player struct {
	id         int64
	name       string
	outbox     chan protocol.ServerMessage
	choice     game.Choice
	lastChoice game.Choice
	eliminated bool
	away       bool
	points     int
}

// active players are the only ones whose picks count toward completion and
// resolution.
func (p *player) active() bool {
	return !p.eliminated && !p.away
}

// registry tracks players in join order; the host is the first one still
// present.
type registry struct {
	players map[int64]*player
	order   []int64
}

func newRegistry() *registry {
	return &registry{players: make(map[int64]*player)}
}

func (r *registry) add(p *player) {
	r.players[p.id] = p
	r.order = append(r.order, p.id)
}

func (r *registry) remove(id int64) {
	delete(r.players, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *registry) get(id int64) *player {
	return r.players[id]
}

func (r *registry) empty() bool {
	return len(r.players) == 0
}

// host returns the first-joined player still present, or 0 for an empty
// room.
func (r *registry) host() int64 {
	if len(r.order) == 0 {
		return 0
	}
	return r.order[0]
}

// ids returns all player ids in join order.
func (r *registry) ids() []int64 {
	ids := make([]int64, len(r.order))
	copy(ids, r.order)
	return ids
}

func (r *registry) activeCount() int {
	n := 0
	for _, p := range r.players {
		if p.active() {
			n++
		}
	}
	return n
}

// activePicks snapshots every active player's recorded choice for the
// resolver.
func (r *registry) activePicks() map[int64]game.Choice {
	picks := make(map[int64]game.Choice)
	for id, p := range r.players {
		if p.active() {
			picks[id] = p.choice
		}
	}
	return picks
}

// allActivePicked is the round-completion predicate: every active player
// has a choice other than none.
func (r *registry) allActivePicked() bool {
	for _, p := range r.players {
		if p.active() && p.choice == game.None {
			return false
		}
	}
	return true
}

func (r *registry) pointsSnapshot() map[int64]int {
	board := make(map[int64]int, len(r.players))
	for id, p := range r.players {
		board[id] = p.points
	}
	return board
}

func (r *registry) eliminatedSnapshot() map[int64]bool {
	m := make(map[int64]bool, len(r.players))
	for id, p := range r.players {
		m[id] = p.eliminated
	}
	return m
}

func (r *registry) awaySnapshot() map[int64]bool {
	m := make(map[int64]bool, len(r.players))
	for id, p := range r.players {
		m[id] = p.away
	}
	return m
}

// pendingSnapshot marks active players that still owe a pick; only
// meaningful while a round is choosing.
func (r *registry) pendingSnapshot(choosing bool) map[int64]bool {
	m := make(map[int64]bool, len(r.players))
	for id, p := range r.players {
		m[id] = choosing && p.active() && p.choice == game.None
	}
	return m
}
