// Package store persists session records, one JSON file per room code.
// Records are independent: there are no cross-record transactions, and a
// record that cannot be read is treated as absent rather than an error.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"peerrank/pkg/interfaces"
	"peerrank/pkg/types"
)

// FileStore implements interfaces.SessionStore on a directory of JSON
// records with a TTL read cache in front. Writes go through a temp file and
// rename so concurrent readers never see a partial record. The cache only
// ever holds deep copies: callers get private session objects in both
// directions, so mutating a loaded session cannot leak into concurrent
// readers before the next Save.
type FileStore struct {
	dir          string
	emptyTimeout time.Duration
	cache        *gocache.Cache
	logger       *zap.Logger
}

// Compile-time interface check.
var _ interfaces.SessionStore = (*FileStore)(nil)

// NewFileStore creates the sessions directory if needed and returns a store
// sweeping empty sessions after emptyTimeout.
func NewFileStore(dir string, emptyTimeout, cacheTTL time.Duration, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory %s: %w", dir, err)
	}
	return &FileStore{
		dir:          dir,
		emptyTimeout: emptyTimeout,
		cache:        gocache.New(cacheTTL, 2*cacheTTL),
		logger:       logger,
	}, nil
}

func (s *FileStore) path(roomCode string) string {
	return filepath.Join(s.dir, roomCode+".json")
}

// Save writes the session record atomically and refreshes the cache.
func (s *FileStore) Save(session *types.Session) error {
	if session == nil || !types.IsValidRoomCode(session.RoomCode) {
		return types.ErrInvalidRoomCode
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", session.RoomCode, err)
	}

	tmp, err := os.CreateTemp(s.dir, session.RoomCode+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp record for %s: %w", session.RoomCode, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session %s: %w", session.RoomCode, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close session record %s: %w", session.RoomCode, err)
	}
	if err := os.Rename(tmpName, s.path(session.RoomCode)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to publish session record %s: %w", session.RoomCode, err)
	}

	s.cache.SetDefault(session.RoomCode, session.Clone())
	return nil
}

// Load returns the session for the room code. A missing or unreadable record
// yields interfaces.ErrSessionNotFound; corruption is logged, not propagated.
func (s *FileStore) Load(roomCode string) (*types.Session, error) {
	if !types.IsValidRoomCode(roomCode) {
		return nil, interfaces.ErrSessionNotFound
	}

	if cached, ok := s.cache.Get(roomCode); ok {
		return cached.(*types.Session).Clone(), nil
	}

	data, err := os.ReadFile(s.path(roomCode))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("session record unreadable",
				zap.String("roomCode", roomCode), zap.Error(err))
		}
		return nil, interfaces.ErrSessionNotFound
	}

	var session types.Session
	if err := json.Unmarshal(data, &session); err != nil {
		s.logger.Warn("session record corrupt",
			zap.String("roomCode", roomCode), zap.Error(err))
		return nil, interfaces.ErrSessionNotFound
	}
	if session.Participants == nil {
		session.Participants = make(map[string]*types.Participant)
	}
	if session.Comments == nil {
		session.Comments = []*types.Comment{}
	}

	s.cache.SetDefault(roomCode, session.Clone())
	return &session, nil
}

// Delete removes the record and its cache entry. Absent records are fine.
func (s *FileStore) Delete(roomCode string) error {
	if !types.IsValidRoomCode(roomCode) {
		return nil
	}
	s.cache.Delete(roomCode)
	if err := os.Remove(s.path(roomCode)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session record %s: %w", roomCode, err)
	}
	return nil
}

// Exists reports whether a record is on disk for the room code.
func (s *FileStore) Exists(roomCode string) bool {
	if !types.IsValidRoomCode(roomCode) {
		return false
	}
	if _, ok := s.cache.Get(roomCode); ok {
		return true
	}
	_, err := os.Stat(s.path(roomCode))
	return err == nil
}

// ListRoomCodes returns the room codes of every stored record.
func (s *FileStore) ListRoomCodes() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}
	codes := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		codes = append(codes, strings.TrimSuffix(name, ".json"))
	}
	return codes, nil
}

// ListActiveSessions returns descriptors for every session with at least one
// participant that is not flagged empty.
func (s *FileStore) ListActiveSessions() []*types.ActiveSessionInfo {
	codes, err := s.ListRoomCodes()
	if err != nil {
		s.logger.Warn("failed to list session records", zap.Error(err))
		return nil
	}

	var active []*types.ActiveSessionInfo
	for _, code := range codes {
		session, err := s.Load(code)
		if err != nil {
			continue
		}
		if session.IsEmpty || len(session.Participants) == 0 {
			continue
		}
		active = append(active, &types.ActiveSessionInfo{
			RoomCode:         session.RoomCode,
			ParticipantCount: len(session.Participants),
			CreatedAt:        session.CreatedAt,
			SessionName:      session.SessionName,
		})
	}
	return active
}

// HasActiveSession reports whether any session currently has participants.
func (s *FileStore) HasActiveSession() bool {
	return len(s.ListActiveSessions()) > 0
}

// Cleanup removes unreadable records, sessions empty for longer than the
// configured threshold, and legacy records with no roster at all. A failed
// delete is logged and skipped; the sweep keeps going.
func (s *FileStore) Cleanup() int {
	codes, err := s.ListRoomCodes()
	if err != nil {
		s.logger.Warn("cleanup sweep could not list records", zap.Error(err))
		return 0
	}

	now := time.Now()
	cleaned := 0
	for _, code := range codes {
		session, err := s.Load(code)
		if err != nil {
			// Unreadable record: best effort removal.
			if err := s.Delete(code); err == nil {
				cleaned++
			}
			continue
		}

		remove := false
		switch {
		case session.IsEmpty && !session.LastActivity.IsZero():
			if now.Sub(session.LastActivity) > s.emptyTimeout {
				s.logger.Info("sweeping empty session",
					zap.String("roomCode", code),
					zap.Duration("emptyFor", now.Sub(session.LastActivity)))
				remove = true
			}
		case len(session.Participants) == 0 && !session.IsEmpty:
			// Legacy record written before the empty flag existed.
			remove = true
		}

		if remove {
			if err := s.Delete(code); err != nil {
				s.logger.Warn("cleanup delete failed",
					zap.String("roomCode", code), zap.Error(err))
				continue
			}
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.Info("cleanup sweep finished", zap.Int("removed", cleaned))
	}
	return cleaned
}
