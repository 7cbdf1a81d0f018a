package types

import (
	"regexp"
)

var (
	roomCodeRegex      = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	participantIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// IsValidRoomCode checks the room code format: 4-20 characters,
// alphanumeric plus underscore/hyphen. Room codes become file names in the
// session store, so the character set is deliberately narrow.
func IsValidRoomCode(code string) bool {
	if len(code) < 4 || len(code) > 20 {
		return false
	}
	return roomCodeRegex.MatchString(code)
}

// IsValidParticipantID checks the client-generated participant id format.
func IsValidParticipantID(id string) bool {
	if len(id) < 1 || len(id) > 64 {
		return false
	}
	return participantIDRegex.MatchString(id)
}

// Validate ensures a participant record is usable before it enters a roster.
func (p *Participant) Validate() error {
	if !IsValidParticipantID(p.ID) {
		return ErrInvalidParticipantID
	}
	if len(p.Name) < 1 || len(p.Name) > 50 {
		return ErrInvalidParticipantName
	}
	return nil
}

// Validate ensures a comment is well formed before it is appended to the log.
func (c *Comment) Validate() error {
	if c.ID == "" {
		return ErrInvalidCommentID
	}
	if len(c.Text) < 1 || len(c.Text) > 2000 {
		return ErrInvalidCommentText
	}
	return nil
}
