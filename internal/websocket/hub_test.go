package websocket

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codesync-backend/internal/dto"
)

func TestHubTwoParticipantSession(t *testing.T) {
	h := startHub(t)
	a, b := newMockConn("A"), newMockConn("B")

	roster := h.Join(a, "r1", "Alice")
	assert.Equal(t, []string{"A"}, rosterIDs(roster))

	joined := a.frames(t, dto.EventJoined)
	require.Len(t, joined, 1)
	ev := decodeInto[dto.JoinedEvent](t, joined[0])
	assert.Equal(t, "A", ev.ConnectionID)
	assert.Equal(t, "Alice", ev.DisplayName)

	roster = h.Join(b, "r1", "Bob")
	assert.Equal(t, []string{"A", "B"}, rosterIDs(roster))

	for _, c := range []*mockConn{a, b} {
		frames := c.frames(t, dto.EventJoined)
		last := decodeInto[dto.JoinedEvent](t, frames[len(frames)-1])
		assert.Equal(t, "B", last.ConnectionID, "conn %s", c.id)
		assert.Equal(t, []string{"A", "B"}, rosterIDs(last.Roster), "conn %s", c.id)
	}

	h.Relay(a, "r1", "print(1)")
	flush(h)

	assert.Empty(t, a.frames(t, dto.EventCodeChange), "sender must not receive its own change")
	changes := b.frames(t, dto.EventCodeChange)
	require.Len(t, changes, 1)
	change := decodeInto[dto.CodeChange](t, changes[0])
	require.NotNil(t, change.Content)
	assert.Equal(t, "print(1)", *change.Content)

	h.Leave(b)

	left := a.frames(t, dto.EventLeft)
	require.Len(t, left, 1)
	assert.Equal(t, dto.LeftEvent{ConnectionID: "B", DisplayName: "Bob"}, decodeInto[dto.LeftEvent](t, left[0]))
	assert.Equal(t, []string{"A"}, rosterIDs(h.Registry().Roster("r1")))
}

func TestHubRosterGrowsWithEachJoin(t *testing.T) {
	h := startHub(t)

	for i := 1; i <= 5; i++ {
		conn := newMockConn(fmt.Sprintf("c%d", i))
		roster := h.Join(conn, "room", "")
		assert.Len(t, roster, i)
	}
	assert.Equal(t, Stats{Rooms: 1, Connections: 5}, h.Stats())
}

func TestHubRejoinIsIdempotent(t *testing.T) {
	h := startHub(t)
	a, b := newMockConn("A"), newMockConn("B")
	h.Join(a, "r1", "Alice")
	h.Join(b, "r1", "Bob")
	b.reset()

	roster := h.Join(a, "r1", "Alice")
	assert.Equal(t, []string{"A", "B"}, rosterIDs(roster))

	joined := b.frames(t, dto.EventJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, "A", decodeInto[dto.JoinedEvent](t, joined[0]).ConnectionID)
}

func TestHubRelayFromNonMemberDropped(t *testing.T) {
	h := startHub(t)
	a, outsider := newMockConn("A"), newMockConn("X")
	h.Join(a, "r1", "")
	h.Join(outsider, "r2", "")

	h.Relay(outsider, "r1", "sneaky")
	flush(h)

	assert.Empty(t, a.frames(t, dto.EventCodeChange))
}

func TestHubRelayDoesNotCrossRooms(t *testing.T) {
	h := startHub(t)
	a, b, c := newMockConn("A"), newMockConn("B"), newMockConn("C")
	h.Join(a, "r1", "")
	h.Join(b, "r1", "")
	h.Join(c, "r2", "")

	h.Relay(a, "r1", "x = 1")
	flush(h)

	assert.Len(t, b.frames(t, dto.EventCodeChange), 1)
	assert.Empty(t, c.frames(t, dto.EventCodeChange))
}

func TestHubSyncDeliversToTargetOnly(t *testing.T) {
	h := startHub(t)
	a, b, c := newMockConn("A"), newMockConn("B"), newMockConn("C")
	h.Join(a, "r1", "")
	h.Join(b, "r1", "")
	h.Join(c, "r1", "")

	h.Sync(a, "C", "shared")
	flush(h)

	assert.Empty(t, b.frames(t, dto.EventCodeChange))
	changes := c.frames(t, dto.EventCodeChange)
	require.Len(t, changes, 1)
	change := decodeInto[dto.CodeChange](t, changes[0])
	assert.Equal(t, "shared", *change.Content)
	assert.Empty(t, change.RoomID)
}

func TestHubSyncToGoneTargetDropped(t *testing.T) {
	h := startHub(t)
	a, b := newMockConn("A"), newMockConn("B")
	h.Join(a, "r1", "")
	h.Join(b, "r1", "")
	h.Leave(b)
	b.reset()

	h.Sync(a, "B", "late")
	h.Sync(a, "A", "self")
	flush(h)

	assert.Empty(t, b.frames(t, dto.EventCodeChange))
	assert.Empty(t, a.frames(t, dto.EventCodeChange))
}

func TestHubSyncRequiresSharedRoom(t *testing.T) {
	h := startHub(t)
	a, c := newMockConn("A"), newMockConn("C")
	h.Join(a, "r1", "")
	h.Join(c, "r2", "")

	h.Sync(a, "C", "leak")
	flush(h)

	assert.Empty(t, c.frames(t, dto.EventCodeChange))
}

func TestHubLeaveFiresOnce(t *testing.T) {
	h := startHub(t)
	a, b := newMockConn("A"), newMockConn("B")
	h.Join(a, "r1", "")
	h.Join(b, "r1", "")

	h.Leave(b)
	h.Leave(b)

	assert.Len(t, a.frames(t, dto.EventLeft), 1)
}

func TestHubLeaveNotifiesEveryRoom(t *testing.T) {
	h := startHub(t)
	a, b, c := newMockConn("A"), newMockConn("B"), newMockConn("C")
	h.Join(a, "r1", "")
	h.Join(a, "r2", "")
	h.Join(b, "r1", "")
	h.Join(c, "r2", "")

	h.Leave(a)

	assert.Len(t, b.frames(t, dto.EventLeft), 1)
	assert.Len(t, c.frames(t, dto.EventLeft), 1)
}

func TestHubPurgesEmptyRooms(t *testing.T) {
	h := startHub(t)
	a := newMockConn("A")
	h.Join(a, "r1", "")
	h.Leave(a)

	assert.Equal(t, Stats{}, h.Stats())
	assert.Empty(t, h.Registry().Rooms())
}

func TestHubClosesSlowConnection(t *testing.T) {
	h := startHub(t)
	a, slow := newMockConn("A"), newMockConn("S")
	h.Join(a, "r1", "")
	h.Join(slow, "r1", "")

	slow.mu.Lock()
	slow.sendErr = ErrSendBufferFull
	slow.mu.Unlock()

	h.Relay(a, "r1", "burst")
	flush(h)

	assert.True(t, slow.isClosed())
	assert.False(t, a.isClosed())
}

func TestHubAnnounce(t *testing.T) {
	h := startHub(t)
	a, b := newMockConn("A"), newMockConn("B")
	h.Join(a, "r1", "")
	h.Join(b, "r2", "")

	frame, err := dto.Encode(dto.EventExecutionResult, dto.ExecutionResultEvent{Language: "python", Version: "3.10.0"})
	require.NoError(t, err)
	h.Announce("r1", frame)
	flush(h)

	assert.Len(t, a.frames(t, dto.EventExecutionResult), 1)
	assert.Empty(t, b.frames(t, dto.EventExecutionResult))
}

func TestHubStopsWithContext(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	assert.Nil(t, h.Join(newMockConn("A"), "r1", ""))
	h.Leave(newMockConn("A"))
	h.Relay(newMockConn("A"), "r1", "x")
}
