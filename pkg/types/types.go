package types

import (
	"time"
)

// Edit policy for a session's code buffer. In host-only mode only the host
// (or individually granted participants) may edit; in collaborative mode
// everyone may.
const (
	EditModeHostOnly      = "host-only"
	EditModeCollaborative = "collaborative"
)

// Session lifecycle status values.
const (
	StatusWaiting = "waiting"
	StatusActive  = "active"
	StatusEnded   = "ended"
)

// Event names of the room protocol. Client-to-server events are dispatched
// by the gateway; server-to-client events are produced by the coordinator
// and fanned out to room connections.
const (
	// client -> server
	EventJoinSession           = "join-session"
	EventCodeChange            = "code-change"
	EventNewComment            = "new-comment"
	EventVoteComment           = "vote-comment"
	EventTyping                = "typing"
	EventExecuteCode           = "execute-code"
	EventToggleEditMode        = "toggle-edit-mode"
	EventToggleParticipantEdit = "toggle-participant-edit"
	EventEndSession            = "end-session"

	// server -> client
	EventSessionState          = "session-state"
	EventSessionError          = "session-error"
	EventParticipantJoined     = "participant-joined"
	EventParticipantLeft       = "participant-left"
	EventCodeUpdated           = "code-updated"
	EventCommentAdded          = "comment-added"
	EventCommentVoted          = "comment-voted"
	EventUserTyping            = "user-typing"
	EventExecutionResult       = "code-execution-result"
	EventExecutionError        = "code-execution-error"
	EventEditModeChanged       = "edit-mode-changed"
	EventParticipantEditChange = "participant-edit-changed"
	EventSessionEnded          = "session-ended"
)

// Participant is one connected reviewer inside a session. The id is
// client-generated and opaque; IsHost and Score are derived server-side and
// never trusted from the client.
type Participant struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	JoinedAt      time.Time `json:"joinedAt"`
	IsHost        bool      `json:"isHost"`
	CanEdit       bool      `json:"canEdit"`
	CommentsCount int       `json:"commentsCount"`
	VotesReceived int       `json:"votesReceived"`
	Score         int       `json:"score"`
}

// RecomputeScore refreshes the derived score: votes weigh double.
func (p *Participant) RecomputeScore() {
	p.Score = p.VotesReceived*2 + p.CommentsCount
}

// Comment is one inline review comment. Votes only ever grow; Voters holds
// the participant ids that have voted so a second vote from the same id is
// a no-op.
type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	AuthorID  string    `json:"authorId"`
	Timestamp time.Time `json:"timestamp"`
	Votes     int       `json:"votes"`
	Voters    []string  `json:"voters"`
}

// HasVoter reports whether the given participant id already voted.
func (c *Comment) HasVoter(id string) bool {
	for _, v := range c.Voters {
		if v == id {
			return true
		}
	}
	return false
}

// Session is the authoritative state of one review room. The coordinator is
// the only component that mutates a Session; everyone else works with
// snapshots.
type Session struct {
	RoomCode        string                  `json:"roomCode"`
	SessionName     string                  `json:"sessionName"`
	Language        string                  `json:"language"`
	Duration        int                     `json:"duration"` // minutes
	MaxParticipants int                     `json:"maxParticipants"`
	CreatedAt       time.Time               `json:"createdAt"`
	EndedAt         *time.Time              `json:"endedAt,omitempty"`
	Status          string                  `json:"status"`
	HostID          string                  `json:"hostId,omitempty"`
	EditMode        string                  `json:"editMode"`
	Code            string                  `json:"code"`
	Comments        []*Comment              `json:"comments"`
	Participants    map[string]*Participant `json:"participants"`
	IsEmpty         bool                    `json:"isEmpty"`
	LastActivity    time.Time               `json:"lastActivity"`
}

// ParticipantList returns the roster as a slice ordered by join time, the
// shape every roster-bearing broadcast payload uses.
func (s *Session) ParticipantList() []*Participant {
	list := make([]*Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		list = append(list, p)
	}
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j].JoinedAt.Before(list[j-1].JoinedAt); j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
	return list
}

// Clone returns a deep copy sharing no mutable state with the receiver.
// Callers that hand a session across goroutine boundaries clone it first.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Participants = make(map[string]*Participant, len(s.Participants))
	for id, p := range s.Participants {
		pc := *p
		cp.Participants[id] = &pc
	}
	cp.Comments = make([]*Comment, len(s.Comments))
	for i, c := range s.Comments {
		cc := *c
		cc.Voters = append([]string(nil), c.Voters...)
		cp.Comments[i] = &cc
	}
	if s.EndedAt != nil {
		endedAt := *s.EndedAt
		cp.EndedAt = &endedAt
	}
	return &cp
}

// FindComment returns the comment with the given id, or nil.
func (s *Session) FindComment(id string) *Comment {
	for _, c := range s.Comments {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// ActiveSessionInfo is the listing shape for sessions that currently have
// participants.
type ActiveSessionInfo struct {
	RoomCode         string    `json:"roomCode"`
	ParticipantCount int       `json:"participantCount"`
	CreatedAt        time.Time `json:"createdAt"`
	SessionName      string    `json:"sessionName"`
}

// ExecutionResult is the outcome of one sandboxed run. It is always produced,
// never an error path: compile failures, timeouts and runtime crashes are all
// reported as data.
type ExecutionResult struct {
	Success       bool   `json:"success"`
	Output        string `json:"output"`
	Error         string `json:"error"`
	ExecutionTime int64  `json:"executionTime"` // milliseconds
}

// SessionSummary is the archived record of an ended session, kept for the
// post-session summary view.
type SessionSummary struct {
	RoomCode     string         `json:"roomCode"`
	SessionName  string         `json:"sessionName"`
	Language     string         `json:"language"`
	CreatedAt    time.Time      `json:"createdAt"`
	EndedAt      time.Time      `json:"endedAt"`
	Participants []*Participant `json:"participants"`
	Comments     []*Comment     `json:"comments"`
}
