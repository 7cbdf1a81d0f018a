package room

import (
	"peerrank/pkg/types"
)

// Scope selects which connections in a room receive an event.
type Scope int

const (
	// ScopeSender delivers only to the connection that triggered the
	// mutation (e.g. the initial session-state snapshot).
	ScopeSender Scope = iota
	// ScopeOthers delivers to every room connection except the sender.
	ScopeOthers
	// ScopeRoom delivers to every connection in the room.
	ScopeRoom
)

// Event is one broadcast instruction produced by a mutation. Payloads are
// immutable snapshots: the coordinator deep-copies roster and comment state
// before releasing the room lock, so the gateway may fan out concurrently
// with later mutations.
type Event struct {
	Name    string
	Scope   Scope
	Payload any
}

// SessionStatePayload is the full snapshot sent to a joiner.
type SessionStatePayload struct {
	Participants []*types.Participant `json:"participants"`
	Comments     []*types.Comment     `json:"comments"`
	Code         string               `json:"code"`
	EditMode     string               `json:"editMode"`
	HostID       string               `json:"hostId,omitempty"`
	IsHost       bool                 `json:"isHost"`
	CanEdit      bool                 `json:"canEdit"`
}

type ParticipantJoinedPayload struct {
	Participant  *types.Participant   `json:"participant"`
	Participants []*types.Participant `json:"participants"`
	HostID       string               `json:"hostId,omitempty"`
}

type ParticipantLeftPayload struct {
	ParticipantID string               `json:"participantId"`
	Participants  []*types.Participant `json:"participants"`
}

type CodeUpdatedPayload struct {
	Code string `json:"code"`
}

type CommentAddedPayload struct {
	Comment *types.Comment `json:"comment"`
}

type CommentVotedPayload struct {
	CommentID    string               `json:"commentId"`
	Votes        int                  `json:"votes"`
	Participants []*types.Participant `json:"participants"`
}

type EditModeChangedPayload struct {
	EditMode     string               `json:"editMode"`
	HostID       string               `json:"hostId,omitempty"`
	Participants []*types.Participant `json:"participants"`
}

type ParticipantEditChangedPayload struct {
	ParticipantID string               `json:"participantId"`
	CanEdit       bool                 `json:"canEdit"`
	Participants  []*types.Participant `json:"participants"`
}

type SessionEndedPayload struct{}

// snapshotRoster deep-copies the roster in join order.
func snapshotRoster(session *types.Session) []*types.Participant {
	list := session.ParticipantList()
	out := make([]*types.Participant, len(list))
	for i, p := range list {
		cp := *p
		out[i] = &cp
	}
	return out
}

// snapshotComments deep-copies the ordered comment log.
func snapshotComments(session *types.Session) []*types.Comment {
	out := make([]*types.Comment, len(session.Comments))
	for i, c := range session.Comments {
		out[i] = cloneComment(c)
	}
	return out
}

func cloneComment(c *types.Comment) *types.Comment {
	cp := *c
	cp.Voters = append([]string(nil), c.Voters...)
	return &cp
}
