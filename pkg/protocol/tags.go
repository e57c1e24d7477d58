package protocol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Tag is the closed set of control signals that may be embedded in chat
// text. Receivers dispatch on the concrete type; adding a variant without
// handling it everywhere fails at the type switch, not at runtime string
// matching.
type Tag interface{ isTag() }

// CooldownTag sets whether picking last round's choice again is blocked.
type CooldownTag struct {
	Enabled bool
}

// ExtraChoicesTag sets whether lizard/spock are playable, and in which mode.
type ExtraChoicesTag struct {
	Enabled bool
	Mode    ExtraMode
}

// ReadyTag is a client-to-client readiness flag relayed over chat.
type ReadyTag struct {
	ClientID int64
	Ready    bool
}

// PendingTag flags whether a player still owes a pick this round.
type PendingTag struct {
	ClientID int64
	Pending  bool
}

// ElimTag flags a player's elimination state.
type ElimTag struct {
	ClientID   int64
	Eliminated bool
}

// RoundStartTag announces a round with its duration; clients derive the
// local deadline by adding Seconds to receipt time.
type RoundStartTag struct {
	Seconds int
}

// AwayState is the argument of an [AWAY] tag.
type AwayState string

const (
	AwayOn     AwayState = "1"
	AwayOff    AwayState = "0"
	AwayToggle AwayState = "TOGGLE"
)

// AwayTag asks the server to change the sender's away status.
type AwayTag struct {
	State AwayState
}

// AwayNotice is the server narration "<name> is away" / "<name> is no
// longer away". It is informational: receivers log it as an event but still
// display it.
type AwayNotice struct {
	Text string
}

// EventLine is a recognized narration line (picks, eliminations, round and
// game lifecycle). Like AwayNotice it is displayable.
type EventLine struct {
	Text string
}

func (CooldownTag) isTag()     {}
func (ExtraChoicesTag) isTag() {}
func (ReadyTag) isTag()        {}
func (PendingTag) isTag()      {}
func (ElimTag) isTag()         {}
func (RoundStartTag) isTag()   {}
func (AwayTag) isTag()         {}
func (AwayNotice) isTag()      {}
func (EventLine) isTag()       {}

// Patterns tolerate an arbitrary human-readable prefix (room label, sender
// name) before the bracketed keyword, matching how relayed chat arrives.
var (
	cooldownRe   = regexp.MustCompile(`\[SETTINGS\]\s+COOLDOWN\s+(\S+)`)
	extraRe      = regexp.MustCompile(`\[SETTINGS\]\s+EXTRA_CHOICES\s+(\S+)\s+(\S+)`)
	readyRe      = regexp.MustCompile(`\[READY\]\s+(\d+)\s+([01])`)
	pendingRe    = regexp.MustCompile(`\[PENDING\]\s+(\d+)\s+([01])`)
	elimRe       = regexp.MustCompile(`\[ELIM\]\s+(\d+)\s+([01])`)
	roundStartRe = regexp.MustCompile(`\[ROUND_START\]\s+(\d+)`)
	awayRe       = regexp.MustCompile(`\[AWAY\]\s+(\S+)`)
)

// eventMarkers are the fixed literals of server narration lines.
var eventMarkers = []string{
	"picked their choice.",
	"did not pick and is eliminated",
	"Eliminated:",
	"Round ",
	"Game over!",
	"Final standings:",
	"[SCOREBOARD]",
	"[FINAL]",
}

// DecodeTag scans chat text for an embedded control signal, applying the
// fixed precedence: cooldown settings, extra-choices settings, ready,
// pending, elimination, round start, away tag, away phrase, event lines,
// and finally plain chat (nil, false).
//
// consumed reports whether the text is control traffic that must not be
// rendered or re-broadcast as chat. A recognized keyword with a malformed
// argument list is consumed with a nil Tag, so protocol noise never leaks
// into chat.
func DecodeTag(text string) (tag Tag, consumed bool) {
	if strings.Contains(text, "[SETTINGS]") {
		if strings.Contains(text, "COOLDOWN") {
			m := cooldownRe.FindStringSubmatch(text)
			if m == nil {
				return nil, true
			}
			return CooldownTag{Enabled: parseBool(m[1])}, true
		}
		if strings.Contains(text, "EXTRA_CHOICES") {
			m := extraRe.FindStringSubmatch(text)
			if m == nil {
				return nil, true
			}
			return ExtraChoicesTag{Enabled: parseBool(m[1]), Mode: CanonicalMode(m[2])}, true
		}
		return nil, true
	}

	if strings.Contains(text, "[READY]") {
		m := readyRe.FindStringSubmatch(text)
		if m == nil {
			return nil, true
		}
		return ReadyTag{ClientID: parseID(m[1]), Ready: m[2] == "1"}, true
	}

	if strings.Contains(text, "[PENDING]") {
		m := pendingRe.FindStringSubmatch(text)
		if m == nil {
			return nil, true
		}
		return PendingTag{ClientID: parseID(m[1]), Pending: m[2] == "1"}, true
	}

	if strings.Contains(text, "[ELIM]") {
		m := elimRe.FindStringSubmatch(text)
		if m == nil {
			return nil, true
		}
		return ElimTag{ClientID: parseID(m[1]), Eliminated: m[2] == "1"}, true
	}

	if strings.Contains(text, "[ROUND_START]") {
		m := roundStartRe.FindStringSubmatch(text)
		if m == nil {
			return nil, true
		}
		secs, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, true
		}
		return RoundStartTag{Seconds: secs}, true
	}

	if strings.Contains(text, "[AWAY]") {
		m := awayRe.FindStringSubmatch(text)
		if m == nil {
			return nil, true
		}
		switch strings.ToUpper(m[1]) {
		case "1":
			return AwayTag{State: AwayOn}, true
		case "0":
			return AwayTag{State: AwayOff}, true
		case "TOGGLE":
			return AwayTag{State: AwayToggle}, true
		}
		return nil, true
	}

	if strings.HasSuffix(text, " is away") || strings.HasSuffix(text, " is no longer away") {
		return AwayNotice{Text: text}, false
	}

	for _, marker := range eventMarkers {
		if strings.Contains(text, marker) {
			return EventLine{Text: text}, false
		}
	}

	return nil, false
}

// EncodeTag renders a tag in its canonical wire form.
func EncodeTag(tag Tag) string {
	switch t := tag.(type) {
	case CooldownTag:
		return fmt.Sprintf("[SETTINGS] COOLDOWN %t", t.Enabled)
	case ExtraChoicesTag:
		return fmt.Sprintf("[SETTINGS] EXTRA_CHOICES %t %s", t.Enabled, t.Mode)
	case ReadyTag:
		return fmt.Sprintf("[READY] %d %s", t.ClientID, boolDigit(t.Ready))
	case PendingTag:
		return fmt.Sprintf("[PENDING] %d %s", t.ClientID, boolDigit(t.Pending))
	case ElimTag:
		return fmt.Sprintf("[ELIM] %d %s", t.ClientID, boolDigit(t.Eliminated))
	case RoundStartTag:
		return fmt.Sprintf("[ROUND_START] %d", t.Seconds)
	case AwayTag:
		return fmt.Sprintf("[AWAY] %s", t.State)
	case AwayNotice:
		return t.Text
	case EventLine:
		return t.Text
	default:
		return ""
	}
}

func parseBool(s string) bool {
	if s == "1" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

func parseID(s string) int64 {
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
