package room

import "errors"

// Coordinator error types. Protocol-level failures are returned to the
// single requesting connection, never broadcast.
var (
	ErrActiveSessionExists = errors.New("only one session can be active at a time")
	ErrRoomCodeTaken       = errors.New("room code is already in use")
	ErrRoomFull            = errors.New("session is full")
	ErrPermissionDenied    = errors.New("participant is not allowed to perform this action")
	ErrParticipantNotFound = errors.New("participant is not in this session")
	ErrInvalidEditMode     = errors.New("edit mode must be host-only or collaborative")
)
