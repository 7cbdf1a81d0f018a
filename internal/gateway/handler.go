// Package gateway binds websocket connections to rooms: inbound events are
// translated into coordinator calls and the resulting broadcast
// instructions are fanned out to the room's connections. The gateway keeps
// no session state of its own.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"peerrank/internal/config"
	"peerrank/internal/room"
	"peerrank/pkg/interfaces"
	"peerrank/pkg/types"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		// Self-asserted identity model; origin checking adds nothing here.
		return true
	},
}

// Handler owns the websocket endpoint, the read loops, and event fan-out.
type Handler struct {
	registry    *Registry
	coordinator *room.Coordinator
	executor    interfaces.CodeExecutor
	cfg         *config.WebSocketConfig
	logger      *zap.Logger
}

func NewHandler(registry *Registry, coordinator *room.Coordinator, executor interfaces.CodeExecutor, cfg *config.WebSocketConfig, logger *zap.Logger) *Handler {
	return &Handler{
		registry:    registry,
		coordinator: coordinator,
		executor:    executor,
		cfg:         cfg,
		logger:      logger,
	}
}

// HandleWebSocket upgrades the request and runs the connection lifecycle.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := NewConnection(uuid.New().String(), ws, h.cfg.SendBuffer, h.cfg.WriteTimeout)
	go h.handleConnection(conn)
}

func (h *Handler) handleConnection(conn *Connection) {
	defer h.disconnect(conn)

	ws := conn.conn
	if err := ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		return
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(h.cfg.WriteTimeout)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read failed",
					zap.String("connID", conn.ID()), zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.sendError(conn, "malformed message")
			continue
		}
		h.dispatch(conn, &env)
	}
}

// disconnect unwinds a closed connection: the room index entry goes first,
// then the coordinator is told so the roster update reaches the remaining
// participants.
func (h *Handler) disconnect(conn *Connection) {
	h.registry.Remove(conn)
	_ = conn.Close()

	if !conn.Bound() {
		return
	}
	events, err := h.coordinator.Leave(conn.RoomCode(), conn.ParticipantID())
	if err != nil {
		h.logger.Warn("leave failed",
			zap.String("roomCode", conn.RoomCode()), zap.Error(err))
		return
	}
	h.fanOut(conn, events)
}

// dispatch routes one inbound envelope to the matching coordinator call.
func (h *Handler) dispatch(conn *Connection, env *Envelope) {
	switch env.Event {
	case types.EventJoinSession:
		h.handleJoin(conn, env.Data)
	case types.EventCodeChange:
		h.handleCodeChange(conn, env.Data)
	case types.EventNewComment:
		h.handleNewComment(conn, env.Data)
	case types.EventVoteComment:
		h.handleVote(conn, env.Data)
	case types.EventTyping:
		h.handleTyping(conn, env.Data)
	case types.EventExecuteCode:
		h.handleExecute(conn, env.Data)
	case types.EventToggleEditMode:
		h.handleToggleEditMode(conn, env.Data)
	case types.EventToggleParticipantEdit:
		h.handleParticipantEdit(conn, env.Data)
	case types.EventEndSession:
		h.handleEndSession(conn, env.Data)
	default:
		h.sendError(conn, "unknown event: "+env.Event)
	}
}

type joinRequest struct {
	RoomCode    string             `json:"roomCode"`
	Participant *types.Participant `json:"participant"`
}

func (h *Handler) handleJoin(conn *Connection, data json.RawMessage) {
	var req joinRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Participant == nil {
		h.sendError(conn, "malformed join request")
		return
	}

	events, err := h.coordinator.Join(req.RoomCode, req.Participant)
	if err != nil {
		// A failed join terminates the connection attempt.
		h.sendError(conn, joinErrorMessage(err))
		_ = conn.Close()
		return
	}

	conn.Bind(req.RoomCode, req.Participant.ID, req.Participant.Name)
	h.registry.Add(conn)
	h.fanOut(conn, events)
}

func joinErrorMessage(err error) string {
	if err == interfaces.ErrSessionNotFound {
		return "Session Not Found"
	}
	return err.Error()
}

type codeChangeRequest struct {
	RoomCode string `json:"roomCode"`
	Code     string `json:"code"`
}

func (h *Handler) handleCodeChange(conn *Connection, data json.RawMessage) {
	if !conn.Bound() {
		h.sendError(conn, "not joined to a session")
		return
	}
	var req codeChangeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(conn, "malformed code change")
		return
	}

	events, err := h.coordinator.UpdateCode(conn.RoomCode(), conn.ParticipantID(), req.Code)
	if err != nil {
		// Rejection acknowledgment lets the client revert optimistic state.
		h.sendError(conn, err.Error())
		return
	}
	h.fanOut(conn, events)
}

type newCommentRequest struct {
	RoomCode string         `json:"roomCode"`
	Comment  *types.Comment `json:"comment"`
}

func (h *Handler) handleNewComment(conn *Connection, data json.RawMessage) {
	if !conn.Bound() {
		h.sendError(conn, "not joined to a session")
		return
	}
	var req newCommentRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Comment == nil {
		h.sendError(conn, "malformed comment")
		return
	}

	events, err := h.coordinator.AddComment(conn.RoomCode(), req.Comment)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}
	h.fanOut(conn, events)
}

type voteRequest struct {
	RoomCode  string `json:"roomCode"`
	CommentID string `json:"commentId"`
	VoterID   string `json:"voterId"`
}

func (h *Handler) handleVote(conn *Connection, data json.RawMessage) {
	if !conn.Bound() {
		h.sendError(conn, "not joined to a session")
		return
	}
	var req voteRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(conn, "malformed vote")
		return
	}

	events, err := h.coordinator.VoteComment(conn.RoomCode(), req.CommentID, req.VoterID)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}
	h.fanOut(conn, events)
}

type typingRequest struct {
	RoomCode string `json:"roomCode"`
	IsTyping bool   `json:"isTyping"`
}

type userTypingPayload struct {
	UserID          string `json:"userId"`
	ParticipantName string `json:"participantName"`
	IsTyping        bool   `json:"isTyping"`
}

// handleTyping relays the indicator to the rest of the room. Ephemeral: no
// state is touched and nothing is persisted.
func (h *Handler) handleTyping(conn *Connection, data json.RawMessage) {
	if !conn.Bound() {
		return
	}
	var req typingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	payload := userTypingPayload{
		UserID:          conn.ParticipantID(),
		ParticipantName: conn.ParticipantName(),
		IsTyping:        req.IsTyping,
	}
	for _, peer := range h.registry.RoomConnections(conn.RoomCode()) {
		if peer.ID() == conn.ID() {
			continue
		}
		h.deliver(peer, types.EventUserTyping, payload)
	}
}

type executeRequest struct {
	RoomCode string `json:"roomCode"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

type executionResultPayload struct {
	ExecutedBy string                 `json:"executedBy"`
	Result     *types.ExecutionResult `json:"result"`
	Timestamp  string                 `json:"timestamp"`
}

// handleExecute runs the buffer in the sandbox and broadcasts the outcome.
// Execution happens on this connection's read goroutine and never touches a
// room lock, so a slow run cannot stall room mutations.
func (h *Handler) handleExecute(conn *Connection, data json.RawMessage) {
	var req executeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.deliver(conn, types.EventExecutionError, errorPayload{Error: "malformed execute request"})
		return
	}
	if !conn.Bound() {
		h.deliver(conn, types.EventExecutionError, errorPayload{Error: "not joined to a session"})
		return
	}

	result := h.executor.Execute(context.Background(), req.Code, req.Language)

	payload := executionResultPayload{
		ExecutedBy: conn.ParticipantName(),
		Result:     result,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	h.logger.Info("code executed",
		zap.String("roomCode", conn.RoomCode()),
		zap.String("executedBy", conn.ParticipantName()),
		zap.Bool("success", result.Success))

	for _, peer := range h.registry.RoomConnections(conn.RoomCode()) {
		h.deliver(peer, types.EventExecutionResult, payload)
	}
}

type toggleEditModeRequest struct {
	RoomCode string `json:"roomCode"`
	EditMode string `json:"editMode"`
}

func (h *Handler) handleToggleEditMode(conn *Connection, data json.RawMessage) {
	if !conn.Bound() {
		h.sendError(conn, "not joined to a session")
		return
	}
	var req toggleEditModeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(conn, "malformed edit mode request")
		return
	}

	events, err := h.coordinator.ToggleEditMode(conn.RoomCode(), conn.ParticipantID(), req.EditMode)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}
	h.fanOut(conn, events)
}

type participantEditRequest struct {
	RoomCode      string `json:"roomCode"`
	ParticipantID string `json:"participantId"`
	CanEdit       bool   `json:"canEdit"`
}

func (h *Handler) handleParticipantEdit(conn *Connection, data json.RawMessage) {
	if !conn.Bound() {
		h.sendError(conn, "not joined to a session")
		return
	}
	var req participantEditRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(conn, "malformed participant edit request")
		return
	}

	events, err := h.coordinator.SetParticipantEdit(conn.RoomCode(), conn.ParticipantID(), req.ParticipantID, req.CanEdit)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}
	h.fanOut(conn, events)
}

type endSessionRequest struct {
	RoomCode string `json:"roomCode"`
}

func (h *Handler) handleEndSession(conn *Connection, data json.RawMessage) {
	if !conn.Bound() {
		h.sendError(conn, "not joined to a session")
		return
	}
	var req endSessionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(conn, "malformed end session request")
		return
	}

	events, err := h.coordinator.EndSession(conn.RoomCode())
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}
	h.fanOut(conn, events)
}

type errorPayload struct {
	Error string `json:"error"`
}

func (h *Handler) sendError(conn *Connection, message string) {
	h.deliver(conn, types.EventSessionError, errorPayload{Error: message})
}

// fanOut delivers coordinator events to the connection subsets their scopes
// name. Delivery failures are per-connection: one slow or dead client never
// blocks the rest of the room.
func (h *Handler) fanOut(sender *Connection, events []room.Event) {
	for _, event := range events {
		switch event.Scope {
		case room.ScopeSender:
			h.deliver(sender, event.Name, event.Payload)
		case room.ScopeOthers:
			for _, peer := range h.registry.RoomConnections(sender.RoomCode()) {
				if peer.ID() == sender.ID() {
					continue
				}
				h.deliver(peer, event.Name, event.Payload)
			}
		case room.ScopeRoom:
			for _, peer := range h.registry.RoomConnections(sender.RoomCode()) {
				h.deliver(peer, event.Name, event.Payload)
			}
		}
	}
}

func (h *Handler) deliver(conn *Connection, event string, payload any) {
	if err := conn.Send(event, payload); err != nil {
		h.logger.Warn("event delivery failed",
			zap.String("event", event),
			zap.String("connID", conn.ID()),
			zap.Error(err))
	}
}
