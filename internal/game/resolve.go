package game

import (
	"slices"
	"sort"
)

// Verdict is the outcome of scoring one round. ID slices are sorted so the
// caller's broadcasts are deterministic.
type Verdict struct {
	// NoShows are active players eliminated for not picking. They are
	// removed before any other scoring step.
	NoShows []int64
	// Stalemate is true when the round is indecisive: every remaining
	// player picked the same symbol, or the base symbols form their
	// three-way cycle. Nobody is eliminated and the round replays.
	Stalemate bool
	// Winning holds the symbols no other present symbol beats. Empty when
	// the present symbols form a cycle; with extended symbols in play that
	// eliminates everyone.
	Winning []Choice
	// Losers are players eliminated because their symbol is not winning.
	Losers []int64
	// Survivors are the players still active after elimination. The caller
	// ends the session when at most one remains.
	Survivors []int64
}

// Resolve scores a round given every active player's recorded choice, with
// None meaning no pick was submitted. It is a pure function of its input.
func Resolve(picks map[int64]Choice) Verdict {
	var v Verdict

	remaining := make(map[int64]Choice, len(picks))
	for id, c := range picks {
		if c == None {
			v.NoShows = append(v.NoShows, id)
			continue
		}
		remaining[id] = c
	}
	slices.Sort(v.NoShows)

	if len(remaining) <= 1 {
		for id := range remaining {
			v.Survivors = append(v.Survivors, id)
		}
		return v
	}

	present := distinctChoices(remaining)
	if len(present) == 1 {
		v.Stalemate = true
		for id := range remaining {
			v.Survivors = append(v.Survivors, id)
		}
		slices.Sort(v.Survivors)
		return v
	}

	v.Winning = WinningSet(present)
	if len(v.Winning) == 0 && !anyExtended(present) {
		// The base three-symbol cycle is indecisive, not lethal: replay
		// like the single-symbol case. A cycle needs >=4 distinct symbols
		// (or extended picks) to eliminate everyone.
		v.Stalemate = true
		for id := range remaining {
			v.Survivors = append(v.Survivors, id)
		}
		slices.Sort(v.Survivors)
		return v
	}
	for id, c := range remaining {
		if slices.Contains(v.Winning, c) {
			v.Survivors = append(v.Survivors, id)
		} else {
			v.Losers = append(v.Losers, id)
		}
	}
	slices.Sort(v.Losers)
	slices.Sort(v.Survivors)
	return v
}

func anyExtended(present []Choice) bool {
	for _, c := range present {
		if c.Extended() {
			return true
		}
	}
	return false
}

func distinctChoices(picks map[int64]Choice) []Choice {
	seen := make(map[Choice]bool, len(picks))
	for _, c := range picks {
		seen[c] = true
	}
	present := make([]Choice, 0, len(seen))
	for c := range seen {
		present = append(present, c)
	}
	sort.Slice(present, func(i, j int) bool { return present[i] < present[j] })
	return present
}
