package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"peerrank/internal/store"
	"peerrank/pkg/interfaces"
	"peerrank/pkg/types"
)

// recordingArchive captures summaries instead of touching SQLite.
type recordingArchive struct {
	mu        sync.Mutex
	summaries []*types.SessionSummary
}

func (a *recordingArchive) SaveSummary(_ context.Context, s *types.SessionSummary) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summaries = append(a.summaries, s)
	return nil
}

func (a *recordingArchive) GetSummary(context.Context, string) (*types.SessionSummary, error) {
	return nil, interfaces.ErrSummaryNotFound
}

func (a *recordingArchive) Close() error { return nil }

func newTestCoordinator(t *testing.T) (*Coordinator, *store.FileStore, *recordingArchive) {
	t.Helper()
	fileStore, err := store.NewFileStore(t.TempDir(), 30*time.Minute, time.Minute, zap.NewNop())
	require.NoError(t, err)
	archive := &recordingArchive{}
	return NewCoordinator(fileStore, archive, zap.NewNop()), fileStore, archive
}

func defaultConfig() SessionConfig {
	return SessionConfig{
		SessionName:     "Sprint Review",
		Language:        "javascript",
		Duration:        30,
		MaxParticipants: 10,
		InitialCode:     "// start here",
	}
}

func join(t *testing.T, c *Coordinator, roomCode, id, name string) []Event {
	t.Helper()
	events, err := c.Join(roomCode, &types.Participant{ID: id, Name: name})
	require.NoError(t, err)
	return events
}

func eventByName(t *testing.T, events []Event, name string) Event {
	t.Helper()
	for _, e := range events {
		if e.Name == name {
			return e
		}
	}
	t.Fatalf("no %s event in %v", name, events)
	return Event{}
}

// flakyStore forwards to a real file store until failSave is set, then
// rejects every Save.
type flakyStore struct {
	interfaces.SessionStore
	mu       sync.Mutex
	failSave bool
}

func (f *flakyStore) setFailSave(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSave = fail
}

func (f *flakyStore) Save(session *types.Session) error {
	f.mu.Lock()
	fail := f.failSave
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.SessionStore.Save(session)
}

func TestCreateSession(t *testing.T) {
	c, fileStore, _ := newTestCoordinator(t)

	session, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	assert.Equal(t, types.StatusWaiting, session.Status)
	assert.Equal(t, types.EditModeHostOnly, session.EditMode)
	assert.Empty(t, session.HostID)
	assert.Equal(t, "// start here", session.Code)
	assert.True(t, fileStore.Exists("ROOM1"))
}

func TestCreateSessionRejectsDuplicateRoomCode(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)

	_, err = c.CreateSession("ROOM1", defaultConfig())
	assert.ErrorIs(t, err, ErrRoomCodeTaken)
}

func TestCreateSessionRejectsSecondActiveSession(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")

	_, err = c.CreateSession("ROOM2", defaultConfig())
	assert.ErrorIs(t, err, ErrActiveSessionExists)
}

func TestCreateSessionRejectsBadRoomCode(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	_, err := c.CreateSession("../etc", defaultConfig())
	assert.ErrorIs(t, err, types.ErrInvalidRoomCode)
}

func TestJoinMissingSession(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	_, err := c.Join("GHOST1", &types.Participant{ID: "p1", Name: "Alice"})
	assert.ErrorIs(t, err, interfaces.ErrSessionNotFound)
}

func TestFirstJoinerBecomesHost(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)

	events := join(t, c, "ROOM1", "p1", "Alice")

	state := eventByName(t, events, types.EventSessionState)
	assert.Equal(t, ScopeSender, state.Scope)
	payload := state.Payload.(SessionStatePayload)
	assert.True(t, payload.IsHost)
	assert.True(t, payload.CanEdit)
	assert.Equal(t, "p1", payload.HostID)
	assert.Equal(t, "// start here", payload.Code)

	joined := eventByName(t, events, types.EventParticipantJoined)
	assert.Equal(t, ScopeOthers, joined.Scope)
}

func TestSecondJoinerIsNotHost(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")

	events := join(t, c, "ROOM1", "p2", "Bob")
	payload := eventByName(t, events, types.EventSessionState).Payload.(SessionStatePayload)
	assert.False(t, payload.IsHost)
	assert.False(t, payload.CanEdit, "host-only mode denies edit to non-hosts")
	assert.Equal(t, "p1", payload.HostID)
	assert.Len(t, payload.Participants, 2)
}

func TestConcurrentJoinsElectExactlyOneHost(t *testing.T) {
	c, fileStore, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)

	ids := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := c.Join("ROOM1", &types.Participant{ID: id, Name: "user-" + id})
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	session, err := fileStore.Load("ROOM1")
	require.NoError(t, err)
	assert.Len(t, session.Participants, len(ids))
	hosts := 0
	for _, p := range session.Participants {
		if p.IsHost {
			hosts++
			assert.Equal(t, session.HostID, p.ID)
		}
	}
	assert.Equal(t, 1, hosts, "exactly one host per room")
}

func TestJoinRespectsMaxParticipants(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	cfg := defaultConfig()
	cfg.MaxParticipants = 2
	_, err := c.CreateSession("ROOM1", cfg)
	require.NoError(t, err)

	join(t, c, "ROOM1", "p1", "Alice")
	join(t, c, "ROOM1", "p2", "Bob")

	_, err = c.Join("ROOM1", &types.Participant{ID: "p3", Name: "Carol"})
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestUpdateCodeRequiresEditRight(t *testing.T) {
	c, fileStore, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")
	join(t, c, "ROOM1", "p2", "Bob")

	_, err = c.UpdateCode("ROOM1", "p2", "alert('bob was here')")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// The stored buffer is untouched by the rejected attempt.
	session, err := fileStore.Load("ROOM1")
	require.NoError(t, err)
	assert.Equal(t, "// start here", session.Code)
}

func TestUpdateCodeByHost(t *testing.T) {
	c, fileStore, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")

	events, err := c.UpdateCode("ROOM1", "p1", "let x = 1")
	require.NoError(t, err)

	updated := eventByName(t, events, types.EventCodeUpdated)
	assert.Equal(t, ScopeOthers, updated.Scope, "sender already has the buffer")
	assert.Equal(t, "let x = 1", updated.Payload.(CodeUpdatedPayload).Code)

	session, err := fileStore.Load("ROOM1")
	require.NoError(t, err)
	assert.Equal(t, "let x = 1", session.Code)
}

func TestUpdateCodeFromUnknownParticipant(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")

	_, err = c.UpdateCode("ROOM1", "stranger", "whatever")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestToggleEditModeHostOnly(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")
	join(t, c, "ROOM1", "p2", "Bob")

	_, err = c.ToggleEditMode("ROOM1", "p2", types.EditModeCollaborative)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = c.ToggleEditMode("ROOM1", "p1", "free-for-all")
	assert.ErrorIs(t, err, ErrInvalidEditMode)
}

func TestCollaborativeModeGrantsEveryoneEdit(t *testing.T) {
	c, fileStore, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")
	join(t, c, "ROOM1", "p2", "Bob")

	events, err := c.ToggleEditMode("ROOM1", "p1", types.EditModeCollaborative)
	require.NoError(t, err)

	changed := eventByName(t, events, types.EventEditModeChanged)
	assert.Equal(t, ScopeRoom, changed.Scope)
	payload := changed.Payload.(EditModeChangedPayload)
	assert.Equal(t, types.EditModeCollaborative, payload.EditMode)
	for _, p := range payload.Participants {
		assert.True(t, p.CanEdit)
	}

	// Bob can now edit.
	_, err = c.UpdateCode("ROOM1", "p2", "bob's code")
	require.NoError(t, err)
	session, err := fileStore.Load("ROOM1")
	require.NoError(t, err)
	assert.Equal(t, "bob's code", session.Code)

	// Back to host-only revokes Bob again.
	_, err = c.ToggleEditMode("ROOM1", "p1", types.EditModeHostOnly)
	require.NoError(t, err)
	_, err = c.UpdateCode("ROOM1", "p2", "rejected")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestSetParticipantEdit(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")
	join(t, c, "ROOM1", "p2", "Bob")

	_, err = c.SetParticipantEdit("ROOM1", "p2", "p2", true)
	assert.ErrorIs(t, err, ErrPermissionDenied, "only the host grants edit rights")

	_, err = c.SetParticipantEdit("ROOM1", "p1", "ghost", true)
	assert.ErrorIs(t, err, ErrParticipantNotFound)

	events, err := c.SetParticipantEdit("ROOM1", "p1", "p2", true)
	require.NoError(t, err)
	payload := eventByName(t, events, types.EventParticipantEditChange).Payload.(ParticipantEditChangedPayload)
	assert.Equal(t, "p2", payload.ParticipantID)
	assert.True(t, payload.CanEdit)

	// Individually granted participants can edit in host-only mode.
	_, err = c.UpdateCode("ROOM1", "p2", "granted")
	assert.NoError(t, err)

	// Revoking the host is a no-op: the host always keeps edit rights.
	events, err = c.SetParticipantEdit("ROOM1", "p1", "p1", false)
	require.NoError(t, err)
	payload = eventByName(t, events, types.EventParticipantEditChange).Payload.(ParticipantEditChangedPayload)
	assert.True(t, payload.CanEdit)
}

func TestAddComment(t *testing.T) {
	c, fileStore, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")

	events, err := c.AddComment("ROOM1", &types.Comment{
		ID: "c1", Text: "nice", Author: "Alice", AuthorID: "p1",
	})
	require.NoError(t, err)

	added := eventByName(t, events, types.EventCommentAdded)
	assert.Equal(t, ScopeRoom, added.Scope, "comments go to everyone including the sender")
	comment := added.Payload.(CommentAddedPayload).Comment
	assert.Equal(t, 0, comment.Votes)
	assert.False(t, comment.Timestamp.IsZero())

	session, err := fileStore.Load("ROOM1")
	require.NoError(t, err)
	require.Len(t, session.Comments, 1)
	author := session.Participants["p1"]
	assert.Equal(t, 1, author.CommentsCount)
	assert.Equal(t, 1, author.Score, "one comment, no votes")
}

func TestDuplicateCommentIgnored(t *testing.T) {
	c, fileStore, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")

	comment := &types.Comment{ID: "c1", Text: "nice", Author: "Alice", AuthorID: "p1"}
	_, err = c.AddComment("ROOM1", comment)
	require.NoError(t, err)

	events, err := c.AddComment("ROOM1", comment)
	require.NoError(t, err, "duplicate comment ids are rejected silently")
	assert.Empty(t, events)

	session, err := fileStore.Load("ROOM1")
	require.NoError(t, err)
	assert.Len(t, session.Comments, 1)
	assert.Equal(t, 1, session.Participants["p1"].CommentsCount)
}

func TestVoteComment(t *testing.T) {
	c, fileStore, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")
	join(t, c, "ROOM1", "p2", "Bob")

	_, err = c.AddComment("ROOM1", &types.Comment{ID: "c1", Text: "nice", Author: "Alice", AuthorID: "p1"})
	require.NoError(t, err)

	events, err := c.VoteComment("ROOM1", "c1", "p2")
	require.NoError(t, err)
	payload := eventByName(t, events, types.EventCommentVoted).Payload.(CommentVotedPayload)
	assert.Equal(t, "c1", payload.CommentID)
	assert.Equal(t, 1, payload.Votes)

	session, err := fileStore.Load("ROOM1")
	require.NoError(t, err)
	comment := session.FindComment("c1")
	assert.Equal(t, 1, comment.Votes)
	assert.Len(t, comment.Voters, comment.Votes, "votes always equals voter count")
	author := session.Participants["p1"]
	assert.Equal(t, 1, author.VotesReceived)
	assert.Equal(t, 3, author.Score, "votesReceived*2 + commentsCount")
}

func TestDoubleVoteIsIdempotent(t *testing.T) {
	c, fileStore, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")
	join(t, c, "ROOM1", "p2", "Bob")
	_, err = c.AddComment("ROOM1", &types.Comment{ID: "c1", Text: "nice", Author: "Alice", AuthorID: "p1"})
	require.NoError(t, err)

	_, err = c.VoteComment("ROOM1", "c1", "p2")
	require.NoError(t, err)

	events, err := c.VoteComment("ROOM1", "c1", "p2")
	require.NoError(t, err)
	assert.Empty(t, events, "second vote from the same participant is a no-op")

	session, err := fileStore.Load("ROOM1")
	require.NoError(t, err)
	comment := session.FindComment("c1")
	assert.Equal(t, 1, comment.Votes)
	assert.Equal(t, []string{"p2"}, comment.Voters)
	assert.Equal(t, 3, session.Participants["p1"].Score)
}

func TestVoteOnUnknownCommentIsNoOp(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")

	events, err := c.VoteComment("ROOM1", "ghost", "p1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestVoteFromUnregisteredVoterIsCounted(t *testing.T) {
	c, fileStore, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")
	_, err = c.AddComment("ROOM1", &types.Comment{ID: "c1", Text: "nice", Author: "Alice", AuthorID: "p1"})
	require.NoError(t, err)

	// Voter identity is taken as supplied, not cross-checked.
	_, err = c.VoteComment("ROOM1", "c1", "someone-else")
	require.NoError(t, err)

	session, err := fileStore.Load("ROOM1")
	require.NoError(t, err)
	assert.Equal(t, 1, session.FindComment("c1").Votes)
}

func TestLeaveFlagsEmptyInsteadOfDeleting(t *testing.T) {
	c, fileStore, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")

	events, err := c.Leave("ROOM1", "p1")
	require.NoError(t, err)
	payload := eventByName(t, events, types.EventParticipantLeft).Payload.(ParticipantLeftPayload)
	assert.Equal(t, "p1", payload.ParticipantID)
	assert.Empty(t, payload.Participants)

	session, err := fileStore.Load("ROOM1")
	require.NoError(t, err)
	assert.True(t, session.IsEmpty)
	assert.Empty(t, session.HostID)
	assert.Empty(t, session.Participants)
}

func TestRejoinAfterEmptyElectsNewHost(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")
	_, err = c.Leave("ROOM1", "p1")
	require.NoError(t, err)

	events := join(t, c, "ROOM1", "p2", "Bob")
	payload := eventByName(t, events, types.EventSessionState).Payload.(SessionStatePayload)
	assert.True(t, payload.IsHost, "first joiner after the room empties becomes host")
	assert.Equal(t, "p2", payload.HostID)
}

func TestHostLeavePromotesEarliestJoiner(t *testing.T) {
	c, fileStore, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")
	time.Sleep(5 * time.Millisecond)
	join(t, c, "ROOM1", "p2", "Bob")
	time.Sleep(5 * time.Millisecond)
	join(t, c, "ROOM1", "p3", "Carol")

	_, err = c.Leave("ROOM1", "p1")
	require.NoError(t, err)

	session, err := fileStore.Load("ROOM1")
	require.NoError(t, err)
	assert.Equal(t, "p2", session.HostID)
	assert.True(t, session.Participants["p2"].IsHost)
	assert.True(t, session.Participants["p2"].CanEdit)
	assert.False(t, session.Participants["p3"].IsHost)
}

func TestRejoinRestoresLedgerCounts(t *testing.T) {
	c, fileStore, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")
	join(t, c, "ROOM1", "p2", "Bob")
	_, err = c.AddComment("ROOM1", &types.Comment{ID: "c1", Text: "nice", Author: "Bob", AuthorID: "p2"})
	require.NoError(t, err)
	_, err = c.VoteComment("ROOM1", "c1", "p1")
	require.NoError(t, err)

	_, err = c.Leave("ROOM1", "p2")
	require.NoError(t, err)
	join(t, c, "ROOM1", "p2", "Bob")

	session, err := fileStore.Load("ROOM1")
	require.NoError(t, err)
	rejoined := session.Participants["p2"]
	assert.Equal(t, 1, rejoined.CommentsCount, "counts are re-derived from the comment ledger")
	assert.Equal(t, 1, rejoined.VotesReceived)
	assert.Equal(t, 3, rejoined.Score)
}

func TestLeaveUnknownRoomOrParticipant(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	events, err := c.Leave("GHOST1", "p1")
	assert.NoError(t, err)
	assert.Empty(t, events)

	_, err = c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	events, err = c.Leave("ROOM1", "never-joined")
	assert.NoError(t, err)
	assert.Empty(t, events)
}

// TestRosterQueriesRunConcurrentlyWithMutations exercises the store's
// lock-free read path (active-session listing from API goroutines) against a
// hot join/leave loop. Run with -race: the store must never hand both sides
// the same session object.
func TestRosterQueriesRunConcurrentlyWithMutations(t *testing.T) {
	c, fileStore, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "anchor", "Anchor")

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			id := fmt.Sprintf("p%d", i%4)
			if _, err := c.Join("ROOM1", &types.Participant{ID: id, Name: "user-" + id}); err != nil {
				t.Errorf("join: %v", err)
				return
			}
			if _, err := c.Leave("ROOM1", id); err != nil {
				t.Errorf("leave: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			fileStore.ListActiveSessions()
			fileStore.HasActiveSession()
		}
	}()

	time.Sleep(200 * time.Millisecond)
	close(done)
	wg.Wait()
}

func TestFailedSaveLeavesStoredStateUntouched(t *testing.T) {
	fileStore, err := store.NewFileStore(t.TempDir(), 30*time.Minute, time.Minute, zap.NewNop())
	require.NoError(t, err)
	flaky := &flakyStore{SessionStore: fileStore}
	c := NewCoordinator(flaky, nil, zap.NewNop())

	_, err = c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")

	flaky.setFailSave(true)

	_, err = c.UpdateCode("ROOM1", "p1", "never persisted")
	require.Error(t, err)
	_, err = c.Join("ROOM1", &types.Participant{ID: "p2", Name: "Bob"})
	require.Error(t, err)
	_, err = c.AddComment("ROOM1", &types.Comment{ID: "c1", Text: "lost", Author: "Alice", AuthorID: "p1"})
	require.Error(t, err)

	// Rejected writes must not leak into what readers see.
	session, err := c.GetSession("ROOM1")
	require.NoError(t, err)
	assert.Equal(t, "// start here", session.Code)
	assert.Len(t, session.Participants, 1)
	assert.Equal(t, "p1", session.HostID)
	assert.Empty(t, session.Comments)

	// Once the store recovers, mutations land normally again.
	flaky.setFailSave(false)
	_, err = c.UpdateCode("ROOM1", "p1", "persisted")
	require.NoError(t, err)
	session, err = c.GetSession("ROOM1")
	require.NoError(t, err)
	assert.Equal(t, "persisted", session.Code)
}

func TestEndSessionDeletesAndArchives(t *testing.T) {
	c, fileStore, archive := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)
	join(t, c, "ROOM1", "p1", "Alice")
	_, err = c.AddComment("ROOM1", &types.Comment{ID: "c1", Text: "nice", Author: "Alice", AuthorID: "p1"})
	require.NoError(t, err)

	events, err := c.EndSession("ROOM1")
	require.NoError(t, err)
	ended := eventByName(t, events, types.EventSessionEnded)
	assert.Equal(t, ScopeRoom, ended.Scope)

	assert.False(t, fileStore.Exists("ROOM1"))

	require.Len(t, archive.summaries, 1)
	summary := archive.summaries[0]
	assert.Equal(t, "ROOM1", summary.RoomCode)
	assert.Equal(t, "Sprint Review", summary.SessionName)
	assert.WithinDuration(t, time.Now(), summary.EndedAt, time.Minute)
	assert.Len(t, summary.Participants, 1)
	assert.Len(t, summary.Comments, 1)
}

func TestEndSessionMissingRoom(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	_, err := c.EndSession("GHOST1")
	assert.ErrorIs(t, err, interfaces.ErrSessionNotFound)
}

// TestHostOnlyWorkflow walks the host-only -> collaborative scenario end to
// end at the coordinator level.
func TestHostOnlyWorkflow(t *testing.T) {
	c, fileStore, _ := newTestCoordinator(t)
	_, err := c.CreateSession("ROOM1", defaultConfig())
	require.NoError(t, err)

	// A joins and becomes host with edit rights.
	a := eventByName(t, join(t, c, "ROOM1", "a", "Alice"), types.EventSessionState).Payload.(SessionStatePayload)
	require.True(t, a.IsHost)
	require.True(t, a.CanEdit)

	// B joins and cannot edit.
	b := eventByName(t, join(t, c, "ROOM1", "b", "Bob"), types.EventSessionState).Payload.(SessionStatePayload)
	require.False(t, b.CanEdit)
	_, err = c.UpdateCode("ROOM1", "b", "nope")
	require.ErrorIs(t, err, ErrPermissionDenied)

	// Host switches to collaborative; B's change now lands and broadcasts.
	_, err = c.ToggleEditMode("ROOM1", "a", types.EditModeCollaborative)
	require.NoError(t, err)
	events, err := c.UpdateCode("ROOM1", "b", "bob wrote this")
	require.NoError(t, err)
	require.Equal(t, ScopeOthers, eventByName(t, events, types.EventCodeUpdated).Scope)

	session, err := fileStore.Load("ROOM1")
	require.NoError(t, err)
	require.Equal(t, "bob wrote this", session.Code)
}
