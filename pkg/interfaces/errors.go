package interfaces

import "errors"

// Sentinel errors shared across component boundaries.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSummaryNotFound = errors.New("session summary not found")
)
