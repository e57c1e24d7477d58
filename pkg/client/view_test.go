package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lmarra/rps-arena-backend/pkg/protocol"
)

func connectedView(id int64, name string) *View {
	v := New()
	v.Apply(protocol.ServerMessage{Kind: protocol.KindClientID, ClientID: id, Name: name})
	return v
}

func TestView_MembershipTracking(t *testing.T) {
	v := connectedView(2, "bob")

	// alice was already there; the server replays her before our join lands
	v.Apply(protocol.ServerMessage{Kind: protocol.KindSyncClient, ClientID: 1, Name: "alice"})
	v.Apply(protocol.ServerMessage{Kind: protocol.KindRoomJoin, ClientID: 3, Name: "carol", Text: "carol joined arena"})

	names := v.NamesSnapshot()
	require.Equal(t, map[int64]string{1: "alice", 2: "bob", 3: "carol"}, names)
	require.False(t, v.IsHost(), "bob learned of alice first, so she is host")

	v.Apply(protocol.ServerMessage{Kind: protocol.KindRoomLeave, ClientID: 1, Name: "alice", Text: "alice left arena"})
	require.NotContains(t, v.NamesSnapshot(), int64(1))

	// with alice gone the local player is first in join order
	require.True(t, v.IsHost())
}

func TestView_OwnLeaveResetsMirror(t *testing.T) {
	v := connectedView(2, "bob")
	v.Apply(protocol.ServerMessage{Kind: protocol.KindSyncClient, ClientID: 1, Name: "alice"})

	v.Apply(protocol.ServerMessage{Kind: protocol.KindRoomLeave, ClientID: 2, Name: "bob"})
	require.Empty(t, v.NamesSnapshot())
	require.Empty(t, v.PointsSnapshot())
}

func TestView_RosterSyncReplacesOnlyPresentMaps(t *testing.T) {
	v := connectedView(1, "alice")

	v.Apply(protocol.ServerMessage{
		Kind:       protocol.KindRosterSync,
		Points:     map[int64]int{1: 2},
		Eliminated: map[int64]bool{1: true},
	})
	require.Equal(t, map[int64]int{1: 2}, v.PointsSnapshot())
	require.True(t, v.AmEliminated())

	// an update without an eliminated map leaves the old one alone
	v.Apply(protocol.ServerMessage{
		Kind:   protocol.KindRosterSync,
		Points: map[int64]int{1: 3},
	})
	require.Equal(t, map[int64]int{1: 3}, v.PointsSnapshot())
	require.True(t, v.AmEliminated())
}

func TestView_TagIngestion(t *testing.T) {
	v := connectedView(1, "alice")
	v.Apply(protocol.ServerMessage{Kind: protocol.KindSyncClient, ClientID: 2, Name: "bob"})

	chat := func(text string) {
		v.Apply(protocol.ServerMessage{Kind: protocol.KindChat, Text: text})
	}

	chat("[SETTINGS] COOLDOWN true")
	require.True(t, v.CooldownEnabled())

	chat("[SETTINGS] EXTRA_CHOICES true LAST3")
	require.True(t, v.ExtraChoicesEnabled())
	require.Equal(t, protocol.ModeLast3, v.ExtraChoicesMode())

	chat("[READY] 2 1")
	require.Equal(t, map[int64]bool{2: true}, v.ReadySnapshot())

	chat("[PENDING] 2 1")
	require.True(t, v.PendingSnapshot()[2])

	// elimination clears the pending flag too
	chat("[ELIM] 2 1")
	require.True(t, v.EliminatedSnapshot()[2])
	require.False(t, v.PendingSnapshot()[2])

	// malformed control traffic never reaches the chat log
	chat("[SETTINGS] COOLDOWN")
	require.Empty(t, v.ChatSnapshot())

	chat("alice: hello there")
	require.Equal(t, []string{"alice: hello there"}, v.ChatSnapshot())
}

func TestView_RoundCountdown(t *testing.T) {
	v := connectedView(1, "alice")

	now := time.Now()
	v.now = func() time.Time { return now }

	v.Apply(protocol.ServerMessage{Kind: protocol.KindChat, Text: "[ROUND_START] 120"})
	require.Equal(t, 120, v.RemainingSeconds())

	now = now.Add(30 * time.Second)
	require.Equal(t, 90, v.RemainingSeconds())

	now = now.Add(5 * time.Minute)
	require.Equal(t, 0, v.RemainingSeconds())
}

func TestView_RoundStartClearsSelectedPick(t *testing.T) {
	v := connectedView(1, "alice")
	v.Apply(protocol.ServerMessage{Kind: protocol.KindChat, Text: "[ROUND_START] 120"})

	msg, err := v.Pick("r")
	require.NoError(t, err)
	require.Equal(t, protocol.KindPick, msg.Kind)
	require.Equal(t, "r", msg.Choice)
	require.Equal(t, "r", v.SelectedPick())

	v.Apply(protocol.ServerMessage{Kind: protocol.KindChat, Text: "[ROUND_START] 120"})
	require.Empty(t, v.SelectedPick())
}

func TestView_PickValidation(t *testing.T) {
	v := connectedView(1, "alice")
	for _, id := range []int64{2, 3, 4} {
		v.Apply(protocol.ServerMessage{Kind: protocol.KindSyncClient, ClientID: id, Name: "p"})
	}

	_, err := v.Pick("x")
	require.ErrorIs(t, err, ErrInvalidPick)

	// extended picks are blocked until settings allow them
	_, err = v.Pick("l")
	require.ErrorIs(t, err, ErrPickNotAllowed)

	v.Apply(protocol.ServerMessage{Kind: protocol.KindChat, Text: "[SETTINGS] EXTRA_CHOICES true LAST3"})

	// four players remain: LAST3 still blocks
	_, err = v.Pick("k")
	require.ErrorIs(t, err, ErrPickNotAllowed)
	require.False(t, v.ExtraChoicesAllowed())

	v.Apply(protocol.ServerMessage{Kind: protocol.KindChat, Text: "[ELIM] 4 1"})
	require.True(t, v.ExtraChoicesAllowed())

	msg, err := v.Pick("k")
	require.NoError(t, err)
	require.Equal(t, "k", msg.Choice)
}

func TestView_SettingsDedupe(t *testing.T) {
	v := connectedView(1, "alice")

	msg, ok := v.SetCooldown(true)
	require.True(t, ok)
	require.Equal(t, protocol.KindChat, msg.Kind)
	require.Equal(t, "[SETTINGS] COOLDOWN true", msg.Text)

	_, ok = v.SetCooldown(true)
	require.False(t, ok, "same value again must not re-send")

	_, ok = v.SetExtraChoices(false, protocol.ModeFull)
	require.False(t, ok, "defaults again must not re-send")

	msg, ok = v.SetExtraChoices(true, protocol.ModeLast3)
	require.True(t, ok)
	require.Equal(t, "[SETTINGS] EXTRA_CHOICES true LAST3", msg.Text)
}

func TestView_ReadyFlow(t *testing.T) {
	v := connectedView(1, "alice")
	v.Apply(protocol.ServerMessage{Kind: protocol.KindSyncClient, ClientID: 2, Name: "bob"})

	require.False(t, v.AllReady(), "no flags yet means not ready")

	msg := v.ToggleReady(true)
	require.Equal(t, "[READY] 1 1", msg.Text)
	require.False(t, v.AllReady(), "bob has not flagged yet")

	v.Apply(protocol.ServerMessage{Kind: protocol.KindChat, Text: "[READY] 2 1"})
	require.True(t, v.AllReady())
}

func TestView_ToggleAway(t *testing.T) {
	v := connectedView(1, "alice")

	msg := v.ToggleAway()
	require.Equal(t, "[AWAY] 1", msg.Text)

	// the server confirms via roster sync; the next toggle flips back
	v.Apply(protocol.ServerMessage{
		Kind: protocol.KindRosterSync,
		Away: map[int64]bool{1: true},
	})
	require.True(t, v.AmAway())

	msg = v.ToggleAway()
	require.Equal(t, "[AWAY] 0", msg.Text)
}

func TestView_EventLogIsBounded(t *testing.T) {
	v := connectedView(1, "alice")

	for i := 0; i < maxEvents+50; i++ {
		v.Apply(protocol.ServerMessage{Kind: protocol.KindChat, Text: "bob picked their choice."})
	}
	require.Len(t, v.EventsSnapshot(), maxEvents)
}
