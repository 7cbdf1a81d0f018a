// Package room implements the authoritative state machine for review
// sessions: membership, host election, the edit-permission model, the code
// buffer and the comment/vote ledger. Every mutation to a given room is
// serialized behind a per-room lock and returns the broadcast instructions
// the gateway fans out, so the event order every client observes matches
// the order of successful mutations.
package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"peerrank/pkg/interfaces"
	"peerrank/pkg/types"
)

// SessionConfig is the creation request for a new room.
type SessionConfig struct {
	SessionName     string
	Language        string
	Duration        int
	MaxParticipants int
	InitialCode     string
}

// Coordinator owns all session mutation. The store is the durable side of
// the same state; the archive receives summaries of ended sessions.
type Coordinator struct {
	store   interfaces.SessionStore
	archive interfaces.SummaryArchive // may be nil
	logger  *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// createMu serializes CreateSession across room codes: the
	// single-active-session check must not race with another create.
	createMu sync.Mutex
}

// NewCoordinator wires the coordinator to its store and optional archive.
func NewCoordinator(store interfaces.SessionStore, archive interfaces.SummaryArchive, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:   store,
		archive: archive,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

// roomLock returns the mutex serializing mutations for one room code.
func (c *Coordinator) roomLock(roomCode string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[roomCode]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[roomCode] = lock
	}
	return lock
}

func (c *Coordinator) dropLock(roomCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, roomCode)
}

// CreateSession creates a new session record. It fails with
// ErrActiveSessionExists while any other session has participants, and with
// ErrRoomCodeTaken when the room code is already stored. Creation is
// serialized globally so two racing creates cannot both pass the
// single-active-session check.
func (c *Coordinator) CreateSession(roomCode string, cfg SessionConfig) (*types.Session, error) {
	if !types.IsValidRoomCode(roomCode) {
		return nil, types.ErrInvalidRoomCode
	}

	c.createMu.Lock()
	defer c.createMu.Unlock()
	lock := c.roomLock(roomCode)
	lock.Lock()
	defer lock.Unlock()

	if c.store.HasActiveSession() {
		return nil, ErrActiveSessionExists
	}
	if c.store.Exists(roomCode) {
		return nil, ErrRoomCodeTaken
	}

	now := time.Now()
	session := &types.Session{
		RoomCode:        roomCode,
		SessionName:     cfg.SessionName,
		Language:        cfg.Language,
		Duration:        cfg.Duration,
		MaxParticipants: cfg.MaxParticipants,
		CreatedAt:       now,
		Status:          types.StatusWaiting,
		EditMode:        types.EditModeHostOnly,
		Code:            cfg.InitialCode,
		Comments:        []*types.Comment{},
		Participants:    make(map[string]*types.Participant),
		LastActivity:    now,
	}

	if err := c.store.Save(session); err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", roomCode, err)
	}

	c.logger.Info("session created",
		zap.String("roomCode", roomCode),
		zap.String("sessionName", cfg.SessionName),
		zap.String("language", cfg.Language))
	return session, nil
}

// GetSession returns the stored session for a room code.
func (c *Coordinator) GetSession(roomCode string) (*types.Session, error) {
	return c.store.Load(roomCode)
}

// Join registers a participant. The first participant to enter an empty or
// host-less room becomes host; host assignment is atomic because the whole
// mutation runs under the room lock. Returns the events to deliver: the
// full state snapshot for the joiner and a roster update for everyone else.
func (c *Coordinator) Join(roomCode string, participant *types.Participant) ([]Event, error) {
	if err := participant.Validate(); err != nil {
		return nil, err
	}

	lock := c.roomLock(roomCode)
	lock.Lock()
	defer lock.Unlock()

	session, err := c.store.Load(roomCode)
	if err != nil {
		return nil, err
	}

	if _, rejoining := session.Participants[participant.ID]; !rejoining &&
		session.MaxParticipants > 0 && len(session.Participants) >= session.MaxParticipants {
		return nil, ErrRoomFull
	}

	rosterWasEmpty := len(session.Participants) == 0
	wasFlaggedEmpty := session.IsEmpty
	if session.IsEmpty {
		session.IsEmpty = false
		session.LastActivity = time.Now()
	}

	if session.HostID == "" && (rosterWasEmpty || wasFlaggedEmpty) {
		session.HostID = participant.ID
	}

	p := &types.Participant{
		ID:       participant.ID,
		Name:     participant.Name,
		JoinedAt: time.Now(),
	}
	p.IsHost = session.HostID == p.ID
	p.CanEdit = p.IsHost || session.EditMode == types.EditModeCollaborative
	// Comment and vote tallies survive a reconnect: they are re-derived
	// from the comment ledger, not trusted from the client.
	for _, comment := range session.Comments {
		if comment.AuthorID == p.ID {
			p.CommentsCount++
			p.VotesReceived += comment.Votes
		}
	}
	p.RecomputeScore()

	session.Participants[p.ID] = p
	session.Status = types.StatusActive
	session.LastActivity = time.Now()

	// session is a private copy from Load; a failed Save discards every
	// mutation above, host assignment included.
	if err := c.store.Save(session); err != nil {
		return nil, fmt.Errorf("failed to persist join for %s: %w", roomCode, err)
	}

	roster := snapshotRoster(session)
	joined := *p
	c.logger.Info("participant joined",
		zap.String("roomCode", roomCode),
		zap.String("participant", p.Name),
		zap.Bool("isHost", p.IsHost))

	return []Event{
		{
			Name:  types.EventParticipantJoined,
			Scope: ScopeOthers,
			Payload: ParticipantJoinedPayload{
				Participant:  &joined,
				Participants: roster,
				HostID:       session.HostID,
			},
		},
		{
			Name:  types.EventSessionState,
			Scope: ScopeSender,
			Payload: SessionStatePayload{
				Participants: roster,
				Comments:     snapshotComments(session),
				Code:         session.Code,
				EditMode:     session.EditMode,
				HostID:       session.HostID,
				IsHost:       p.IsHost,
				CanEdit:      p.CanEdit,
			},
		},
	}, nil
}

// UpdateCode replaces the code buffer. The acting participant needs an
// effective edit right; a rejected attempt never touches the stored buffer.
func (c *Coordinator) UpdateCode(roomCode, participantID, code string) ([]Event, error) {
	lock := c.roomLock(roomCode)
	lock.Lock()
	defer lock.Unlock()

	session, err := c.store.Load(roomCode)
	if err != nil {
		return nil, err
	}

	p, ok := session.Participants[participantID]
	if !ok || !p.CanEdit {
		return nil, ErrPermissionDenied
	}

	session.Code = code
	session.LastActivity = time.Now()
	if err := c.store.Save(session); err != nil {
		return nil, fmt.Errorf("failed to persist code update for %s: %w", roomCode, err)
	}

	return []Event{{
		Name:    types.EventCodeUpdated,
		Scope:   ScopeOthers,
		Payload: CodeUpdatedPayload{Code: code},
	}}, nil
}

// AddComment appends a comment to the room's ordered log and credits the
// author. A comment id already present in the log is ignored silently so a
// client retry cannot double-post.
func (c *Coordinator) AddComment(roomCode string, comment *types.Comment) ([]Event, error) {
	lock := c.roomLock(roomCode)
	lock.Lock()
	defer lock.Unlock()

	session, err := c.store.Load(roomCode)
	if err != nil {
		return nil, err
	}

	if comment.ID == "" {
		comment.ID = uuid.New().String()
	}
	if err := comment.Validate(); err != nil {
		return nil, err
	}
	if session.FindComment(comment.ID) != nil {
		return nil, nil
	}

	stored := &types.Comment{
		ID:        comment.ID,
		Text:      comment.Text,
		Author:    comment.Author,
		AuthorID:  comment.AuthorID,
		Timestamp: comment.Timestamp,
		Voters:    []string{},
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}
	session.Comments = append(session.Comments, stored)

	if author, ok := session.Participants[stored.AuthorID]; ok {
		author.CommentsCount++
		author.RecomputeScore()
	}
	session.LastActivity = time.Now()

	if err := c.store.Save(session); err != nil {
		return nil, fmt.Errorf("failed to persist comment for %s: %w", roomCode, err)
	}

	c.logger.Info("comment added",
		zap.String("roomCode", roomCode),
		zap.String("author", stored.Author))

	return []Event{{
		Name:    types.EventCommentAdded,
		Scope:   ScopeRoom,
		Payload: CommentAddedPayload{Comment: cloneComment(stored)},
	}}, nil
}

// VoteComment records one vote. A second vote from the same voter, or a
// vote on an unknown comment, is a silent no-op. Voter identity is taken as
// supplied and not cross-checked against the roster.
func (c *Coordinator) VoteComment(roomCode, commentID, voterID string) ([]Event, error) {
	lock := c.roomLock(roomCode)
	lock.Lock()
	defer lock.Unlock()

	session, err := c.store.Load(roomCode)
	if err != nil {
		return nil, err
	}

	comment := session.FindComment(commentID)
	if comment == nil || comment.HasVoter(voterID) {
		return nil, nil
	}

	comment.Voters = append(comment.Voters, voterID)
	comment.Votes++
	if author, ok := session.Participants[comment.AuthorID]; ok {
		author.VotesReceived++
		author.RecomputeScore()
	}
	session.LastActivity = time.Now()

	if err := c.store.Save(session); err != nil {
		return nil, fmt.Errorf("failed to persist vote for %s: %w", roomCode, err)
	}

	return []Event{{
		Name:  types.EventCommentVoted,
		Scope: ScopeRoom,
		Payload: CommentVotedPayload{
			CommentID:    commentID,
			Votes:        comment.Votes,
			Participants: snapshotRoster(session),
		},
	}}, nil
}

// ToggleEditMode switches the room's edit policy. Host only. Every
// participant's effective edit right is recomputed under the new mode.
func (c *Coordinator) ToggleEditMode(roomCode, actorID, newMode string) ([]Event, error) {
	if newMode != types.EditModeHostOnly && newMode != types.EditModeCollaborative {
		return nil, ErrInvalidEditMode
	}

	lock := c.roomLock(roomCode)
	lock.Lock()
	defer lock.Unlock()

	session, err := c.store.Load(roomCode)
	if err != nil {
		return nil, err
	}
	if session.HostID == "" || actorID != session.HostID {
		return nil, ErrPermissionDenied
	}

	session.EditMode = newMode
	for _, p := range session.Participants {
		p.CanEdit = p.IsHost || newMode == types.EditModeCollaborative
	}
	session.LastActivity = time.Now()

	if err := c.store.Save(session); err != nil {
		return nil, fmt.Errorf("failed to persist edit mode for %s: %w", roomCode, err)
	}

	c.logger.Info("edit mode changed",
		zap.String("roomCode", roomCode),
		zap.String("editMode", newMode))

	return []Event{{
		Name:  types.EventEditModeChanged,
		Scope: ScopeRoom,
		Payload: EditModeChangedPayload{
			EditMode:     newMode,
			HostID:       session.HostID,
			Participants: snapshotRoster(session),
		},
	}}, nil
}

// SetParticipantEdit grants or revokes one participant's individual edit
// right. Host only; the host's own right cannot be revoked.
func (c *Coordinator) SetParticipantEdit(roomCode, actorID, targetID string, canEdit bool) ([]Event, error) {
	lock := c.roomLock(roomCode)
	lock.Lock()
	defer lock.Unlock()

	session, err := c.store.Load(roomCode)
	if err != nil {
		return nil, err
	}
	if session.HostID == "" || actorID != session.HostID {
		return nil, ErrPermissionDenied
	}

	target, ok := session.Participants[targetID]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	target.CanEdit = canEdit || target.IsHost
	session.LastActivity = time.Now()

	if err := c.store.Save(session); err != nil {
		return nil, fmt.Errorf("failed to persist edit grant for %s: %w", roomCode, err)
	}

	return []Event{{
		Name:  types.EventParticipantEditChange,
		Scope: ScopeRoom,
		Payload: ParticipantEditChangedPayload{
			ParticipantID: targetID,
			CanEdit:       target.CanEdit,
			Participants:  snapshotRoster(session),
		},
	}}, nil
}

// Leave removes a participant on disconnect. A room that empties out is
// flagged empty rather than deleted so the roster can come back; when the
// host leaves while others remain, the earliest-joined participant is
// promoted so the room keeps exactly one host.
func (c *Coordinator) Leave(roomCode, participantID string) ([]Event, error) {
	lock := c.roomLock(roomCode)
	lock.Lock()
	defer lock.Unlock()

	session, err := c.store.Load(roomCode)
	if err != nil {
		// Room already gone; nothing to update.
		return nil, nil
	}

	departing, ok := session.Participants[participantID]
	if !ok {
		return nil, nil
	}
	delete(session.Participants, participantID)

	if len(session.Participants) == 0 {
		session.IsEmpty = true
		session.HostID = ""
		session.LastActivity = time.Now()
	} else if departing.IsHost {
		promoted := session.ParticipantList()[0]
		session.HostID = promoted.ID
		promoted.IsHost = true
		promoted.CanEdit = true
		c.logger.Info("host left, promoting successor",
			zap.String("roomCode", roomCode),
			zap.String("newHost", promoted.Name))
	}

	if err := c.store.Save(session); err != nil {
		return nil, fmt.Errorf("failed to persist leave for %s: %w", roomCode, err)
	}

	c.logger.Info("participant left",
		zap.String("roomCode", roomCode),
		zap.String("participant", departing.Name),
		zap.Bool("roomEmpty", session.IsEmpty))

	return []Event{{
		Name:  types.EventParticipantLeft,
		Scope: ScopeRoom,
		Payload: ParticipantLeftPayload{
			ParticipantID: participantID,
			Participants:  snapshotRoster(session),
		},
	}}, nil
}

// EndSession deletes the session and tells every client the room is over.
// The final state is archived for the summary view first; an archive
// failure is logged and the session still ends.
func (c *Coordinator) EndSession(roomCode string) ([]Event, error) {
	lock := c.roomLock(roomCode)
	lock.Lock()
	defer lock.Unlock()

	session, err := c.store.Load(roomCode)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session.Status = types.StatusEnded
	session.EndedAt = &now

	if c.archive != nil {
		summary := &types.SessionSummary{
			RoomCode:     session.RoomCode,
			SessionName:  session.SessionName,
			Language:     session.Language,
			CreatedAt:    session.CreatedAt,
			EndedAt:      *session.EndedAt,
			Participants: snapshotRoster(session),
			Comments:     snapshotComments(session),
		}
		if err := c.archive.SaveSummary(context.Background(), summary); err != nil {
			c.logger.Warn("failed to archive session summary",
				zap.String("roomCode", roomCode), zap.Error(err))
		}
	}

	if err := c.store.Delete(roomCode); err != nil {
		return nil, fmt.Errorf("failed to delete session %s: %w", roomCode, err)
	}
	c.dropLock(roomCode)

	c.logger.Info("session ended", zap.String("roomCode", roomCode))

	return []Event{{
		Name:    types.EventSessionEnded,
		Scope:   ScopeRoom,
		Payload: SessionEndedPayload{},
	}}, nil
}
