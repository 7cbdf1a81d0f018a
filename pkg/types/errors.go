package types

import "errors"

// Validation errors shared across components.
var (
	ErrInvalidRoomCode        = errors.New("room code must be 4-20 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidParticipantID   = errors.New("participant ID must be 1-64 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidParticipantName = errors.New("participant name must be 1-50 characters")
	ErrInvalidCommentID       = errors.New("comment ID cannot be empty")
	ErrInvalidCommentText     = errors.New("comment text must be 1-2000 characters")
)
