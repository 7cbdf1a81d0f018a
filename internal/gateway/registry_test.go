package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func boundConn(id, roomCode, participantID string) *Connection {
	c := &Connection{id: id}
	c.Bind(roomCode, participantID, "user-"+participantID)
	return c
}

func TestRegistryAddAndRoomConnections(t *testing.T) {
	r := NewRegistry()

	a := boundConn("conn-a", "ROOM1", "p1")
	b := boundConn("conn-b", "ROOM1", "p2")
	c := boundConn("conn-c", "ROOM2", "p3")
	r.Add(a)
	r.Add(b)
	r.Add(c)

	room1 := r.RoomConnections("ROOM1")
	assert.Len(t, room1, 2)
	assert.Len(t, r.RoomConnections("ROOM2"), 1)
	assert.Empty(t, r.RoomConnections("GHOST1"))
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	a := boundConn("conn-a", "ROOM1", "p1")
	b := boundConn("conn-b", "ROOM1", "p2")
	r.Add(a)
	r.Add(b)

	r.Remove(a)
	remaining := r.RoomConnections("ROOM1")
	assert.Len(t, remaining, 1)
	assert.Equal(t, "conn-b", remaining[0].ID())

	// Removing the last connection drops the room entry entirely.
	r.Remove(b)
	assert.Empty(t, r.RoomConnections("ROOM1"))

	// Double remove is harmless.
	r.Remove(b)
}

func TestRegistryIgnoresUnboundConnections(t *testing.T) {
	r := NewRegistry()
	r.Add(&Connection{id: "loose"})
	assert.Empty(t, r.RoomConnections(""))
}

func TestRegistryStats(t *testing.T) {
	r := NewRegistry()
	r.Add(boundConn("conn-a", "ROOM1", "p1"))
	r.Add(boundConn("conn-b", "ROOM1", "p2"))
	r.Add(boundConn("conn-c", "ROOM2", "p3"))

	stats := r.Stats()
	assert.Equal(t, 2, stats["active_rooms"])
	assert.Equal(t, 3, stats["total_connections"])
}
