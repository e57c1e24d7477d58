// Package game holds the pure rules of the elimination game: the choice
// relation and the round resolver. Nothing here touches connections,
// timers, or broadcast state.
package game

import "slices"

// Choice is one playable symbol. None means "has not picked this round".
type Choice string

const (
	None     Choice = "none"
	Rock     Choice = "rock"
	Paper    Choice = "paper"
	Scissors Choice = "scissors"
	Lizard   Choice = "lizard"
	Spock    Choice = "spock"
)

// beatsTable is the full 5-symbol relation. For any two distinct symbols
// exactly one beats the other; a symbol never beats itself. Resolution only
// ever asks Beats(a, b), so it stays agnostic of how many symbols are in
// play.
var beatsTable = map[Choice][]Choice{
	Rock:     {Scissors, Lizard},
	Paper:    {Rock, Spock},
	Scissors: {Paper, Lizard},
	Lizard:   {Spock, Paper},
	Spock:    {Scissors, Rock},
}

// Beats reports whether a defeats b.
func Beats(a, b Choice) bool {
	return slices.Contains(beatsTable[a], b)
}

// Extended reports whether c is only playable with the extended choice set.
func (c Choice) Extended() bool {
	return c == Lizard || c == Spock
}

// Parse maps the wire shorthand (r|p|s|l|k, or a full symbol name) onto a
// Choice. ok is false for anything else.
func Parse(raw string) (Choice, bool) {
	switch raw {
	case "r", "rock":
		return Rock, true
	case "p", "paper":
		return Paper, true
	case "s", "scissors":
		return Scissors, true
	case "l", "lizard":
		return Lizard, true
	case "k", "spock":
		return Spock, true
	default:
		return None, false
	}
}

// WinningSet returns the symbols among present that no other present symbol
// beats. It can be empty when every present symbol is beaten by another.
func WinningSet(present []Choice) []Choice {
	var winning []Choice
	for _, candidate := range present {
		beaten := false
		for _, other := range present {
			if other != candidate && Beats(other, candidate) {
				beaten = true
				break
			}
		}
		if !beaten {
			winning = append(winning, candidate)
		}
	}
	return winning
}
