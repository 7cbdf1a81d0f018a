package interfaces

import (
	"context"

	"peerrank/pkg/types"
)

// SummaryArchive keeps records of ended sessions for the summary view.
// Archiving is best effort: the coordinator logs archive failures but never
// lets them block ending a session.
type SummaryArchive interface {
	SaveSummary(ctx context.Context, summary *types.SessionSummary) error

	// GetSummary returns the archived summary, or ErrSummaryNotFound.
	GetSummary(ctx context.Context, roomCode string) (*types.SessionSummary, error)

	Close() error
}
