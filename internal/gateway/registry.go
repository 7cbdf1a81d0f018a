package gateway

import (
	"sync"
)

// Registry is the room-id to connection-set index. It holds no session
// state: the coordinator owns all of that, the registry only knows who is
// reachable in which room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Connection // roomCode -> connID -> conn
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[string]*Connection)}
}

// Add indexes a bound connection under its room.
func (r *Registry) Add(conn *Connection) {
	roomCode := conn.RoomCode()
	if roomCode == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[roomCode] == nil {
		r.rooms[roomCode] = make(map[string]*Connection)
	}
	r.rooms[roomCode][conn.ID()] = conn
}

// Remove drops a connection from its room index. Idempotent; empty room
// entries are removed so the index does not grow without bound.
func (r *Registry) Remove(conn *Connection) {
	roomCode := conn.RoomCode()
	if roomCode == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if conns, ok := r.rooms[roomCode]; ok {
		delete(conns, conn.ID())
		if len(conns) == 0 {
			delete(r.rooms, roomCode)
		}
	}
}

// RoomConnections returns a snapshot of the connections in a room.
func (r *Registry) RoomConnections(roomCode string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Connection, 0, len(r.rooms[roomCode]))
	for _, conn := range r.rooms[roomCode] {
		conns = append(conns, conn)
	}
	return conns
}

// Stats reports connection counts for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, conns := range r.rooms {
		total += len(conns)
	}
	return map[string]int{
		"total_connections": total,
		"active_rooms":      len(r.rooms),
	}
}
