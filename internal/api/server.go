// Package api is the request/response surface used outside the persistent
// websocket connection: session creation, lookups, active-session listing,
// one-shot code execution, and archived summaries.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"peerrank/internal/room"
	"peerrank/pkg/interfaces"
	"peerrank/pkg/types"
)

// RegistryStats is the slice of the gateway the API needs for /health.
type RegistryStats interface {
	Stats() map[string]int
}

type Server struct {
	coordinator *room.Coordinator
	store       interfaces.SessionStore
	executor    interfaces.CodeExecutor
	archive     interfaces.SummaryArchive
	registry    RegistryStats
	validate    *validator.Validate
	logger      *zap.Logger
	router      chi.Router
}

func NewServer(coordinator *room.Coordinator, store interfaces.SessionStore, exec interfaces.CodeExecutor, archive interfaces.SummaryArchive, registry RegistryStats, logger *zap.Logger) *Server {
	s := &Server{
		coordinator: coordinator,
		store:       store,
		executor:    exec,
		archive:     archive,
		registry:    registry,
		validate:    validator.New(),
		logger:      logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.cors)

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", s.createSession)
		r.Get("/sessions/active", s.listActiveSessions)
		r.Get("/sessions/{roomCode}", s.getSession)
		r.Post("/execute", s.executeCode)
		r.Get("/summaries/{roomCode}", s.getSummary)
	})
	r.Get("/health", s.healthCheck)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createSessionRequest struct {
	RoomCode        string `json:"roomCode" validate:"required,min=4,max=20"`
	SessionName     string `json:"sessionName" validate:"required,min=1,max=100"`
	Language        string `json:"language" validate:"required"`
	Duration        int    `json:"duration" validate:"omitempty,min=1,max=480"`
	MaxParticipants int    `json:"maxParticipants" validate:"omitempty,min=1,max=100"`
	InitialCode     string `json:"initialCode"`
}

type createSessionResponse struct {
	Success bool           `json:"success"`
	Session *types.Session `json:"session"`
}

type conflictResponse struct {
	Success       bool                     `json:"success"`
	Error         string                   `json:"error"`
	ActiveSession *types.ActiveSessionInfo `json:"activeSession,omitempty"`
}

// createSession makes a new room. A 409 carries the descriptor of the
// session already active so the client can offer to join it instead.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !types.IsValidRoomCode(req.RoomCode) {
		s.sendError(w, types.ErrInvalidRoomCode.Error(), http.StatusBadRequest)
		return
	}

	session, err := s.coordinator.CreateSession(req.RoomCode, room.SessionConfig{
		SessionName:     req.SessionName,
		Language:        req.Language,
		Duration:        req.Duration,
		MaxParticipants: req.MaxParticipants,
		InitialCode:     req.InitialCode,
	})
	if err != nil {
		switch {
		case errors.Is(err, room.ErrActiveSessionExists):
			resp := conflictResponse{Error: err.Error()}
			if active := s.store.ListActiveSessions(); len(active) > 0 {
				resp.ActiveSession = active[0]
			}
			s.sendJSON(w, http.StatusConflict, resp)
		case errors.Is(err, room.ErrRoomCodeTaken):
			s.sendError(w, err.Error(), http.StatusConflict)
		default:
			s.logger.Error("session creation failed", zap.Error(err))
			s.sendError(w, "failed to create session", http.StatusInternalServerError)
		}
		return
	}

	s.sendJSON(w, http.StatusCreated, createSessionResponse{Success: true, Session: session})
}

type sessionResponse struct {
	Success bool           `json:"success"`
	Session *types.Session `json:"session"`
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	roomCode := chi.URLParam(r, "roomCode")
	session, err := s.coordinator.GetSession(roomCode)
	if err != nil {
		s.sendError(w, "session not found", http.StatusNotFound)
		return
	}
	s.sendJSON(w, http.StatusOK, sessionResponse{Success: true, Session: session})
}

type activeSessionsResponse struct {
	Success          bool                       `json:"success"`
	ActiveSessions   []*types.ActiveSessionInfo `json:"activeSessions"`
	HasActiveSession bool                       `json:"hasActiveSession"`
}

func (s *Server) listActiveSessions(w http.ResponseWriter, _ *http.Request) {
	active := s.store.ListActiveSessions()
	if active == nil {
		active = []*types.ActiveSessionInfo{}
	}
	s.sendJSON(w, http.StatusOK, activeSessionsResponse{
		Success:          true,
		ActiveSessions:   active,
		HasActiveSession: len(active) > 0,
	})
}

type executeRequest struct {
	Code     string `json:"code" validate:"required"`
	Language string `json:"language" validate:"required"`
}

// executeCode is the one-shot execution endpoint. The result is the HTTP
// body verbatim: failures are data, so the status is 200 either way.
func (s *Server) executeCode(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.sendError(w, "code and language are required", http.StatusBadRequest)
		return
	}

	result := s.executor.Execute(r.Context(), req.Code, req.Language)
	s.sendJSON(w, http.StatusOK, result)
}

type summaryResponse struct {
	Success bool                  `json:"success"`
	Summary *types.SessionSummary `json:"summary"`
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	roomCode := chi.URLParam(r, "roomCode")
	summary, err := s.archive.GetSummary(r.Context(), roomCode)
	if err != nil {
		if errors.Is(err, interfaces.ErrSummaryNotFound) {
			s.sendError(w, "summary not found", http.StatusNotFound)
			return
		}
		s.logger.Error("summary lookup failed",
			zap.String("roomCode", roomCode), zap.Error(err))
		s.sendError(w, "failed to load summary", http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, http.StatusOK, summaryResponse{Success: true, Summary: summary})
}

type healthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Connections map[string]int `json:"connections"`
	Languages   []string       `json:"languages"`
}

func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	s.sendJSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		Timestamp:   time.Now(),
		Connections: s.registry.Stats(),
		Languages:   s.executor.SupportedLanguages(),
	})
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) sendError(w http.ResponseWriter, message string, status int) {
	s.sendJSON(w, status, errorResponse{Error: message})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("response encoding failed", zap.Error(err))
	}
}
