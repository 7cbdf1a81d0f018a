package interfaces

import (
	"peerrank/pkg/types"
)

// SessionStore is the durable owner of session records, one record per room
// code. Implementations must make each Save atomic per record so concurrent
// readers never observe a partially written session, and must treat an
// unreadable record as absent rather than failing.
type SessionStore interface {
	// Save persists the session under its room code.
	Save(session *types.Session) error

	// Load returns the stored session, or ErrSessionNotFound if the record
	// is absent or unreadable.
	Load(roomCode string) (*types.Session, error)

	// Delete removes the record. Deleting an absent record is not an error.
	Delete(roomCode string) error

	// Exists reports whether a record is present for the room code.
	Exists(roomCode string) bool

	// ListRoomCodes returns every stored room code.
	ListRoomCodes() ([]string, error)

	// ListActiveSessions returns descriptors for sessions that currently
	// have at least one participant and are not flagged empty.
	ListActiveSessions() []*types.ActiveSessionInfo

	// HasActiveSession reports whether any session is currently active.
	HasActiveSession() bool

	// Cleanup sweeps unreadable records, sessions that have been empty past
	// the configured threshold, and legacy records with no roster. Returns
	// the number of records removed.
	Cleanup() int
}
