// Package archive keeps summaries of ended sessions in SQLite so the
// post-session summary view outlives the live session record, which is
// deleted when a session ends.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"peerrank/pkg/interfaces"
	"peerrank/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_summaries (
	room_code    TEXT PRIMARY KEY,
	session_name TEXT NOT NULL,
	language     TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL,
	ended_at     TIMESTAMP NOT NULL,
	roster       TEXT NOT NULL,
	comments     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_summaries_ended_at ON session_summaries(ended_at);
`

// Store implements interfaces.SummaryArchive on SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ interfaces.SummaryArchive = (*Store)(nil)

// Open opens (creating if needed) the archive database.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open summary archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply archive schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// SaveSummary upserts the summary record. Re-ending the same room replaces
// the previous summary.
func (s *Store) SaveSummary(ctx context.Context, summary *types.SessionSummary) error {
	roster, err := json.Marshal(summary.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode roster: %w", err)
	}
	comments, err := json.Marshal(summary.Comments)
	if err != nil {
		return fmt.Errorf("failed to encode comments: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_summaries
			(room_code, session_name, language, created_at, ended_at, roster, comments)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(room_code) DO UPDATE SET
			session_name = excluded.session_name,
			language     = excluded.language,
			created_at   = excluded.created_at,
			ended_at     = excluded.ended_at,
			roster       = excluded.roster,
			comments     = excluded.comments`,
		summary.RoomCode, summary.SessionName, summary.Language,
		summary.CreatedAt, summary.EndedAt, string(roster), string(comments))
	if err != nil {
		return fmt.Errorf("failed to store summary for %s: %w", summary.RoomCode, err)
	}

	s.logger.Info("session summary archived",
		zap.String("roomCode", summary.RoomCode))
	return nil
}

// GetSummary returns the archived summary for a room code.
func (s *Store) GetSummary(ctx context.Context, roomCode string) (*types.SessionSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT room_code, session_name, language, created_at, ended_at, roster, comments
		FROM session_summaries WHERE room_code = ?`, roomCode)

	var (
		summary          types.SessionSummary
		createdAt, endAt time.Time
		roster, comments string
	)
	err := row.Scan(&summary.RoomCode, &summary.SessionName, &summary.Language,
		&createdAt, &endAt, &roster, &comments)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrSummaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read summary for %s: %w", roomCode, err)
	}
	summary.CreatedAt = createdAt
	summary.EndedAt = endAt

	if err := json.Unmarshal([]byte(roster), &summary.Participants); err != nil {
		return nil, fmt.Errorf("corrupt roster in summary %s: %w", roomCode, err)
	}
	if err := json.Unmarshal([]byte(comments), &summary.Comments); err != nil {
		return nil, fmt.Errorf("corrupt comments in summary %s: %w", roomCode, err)
	}
	return &summary, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
