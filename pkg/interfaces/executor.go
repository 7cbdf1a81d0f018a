package interfaces

import (
	"context"

	"peerrank/pkg/types"
)

// CodeExecutor runs untrusted code in an isolated, bounded subprocess.
// Execute always yields a result: compile failures, timeouts, output-cap
// kills and spawn failures are reported inside the ExecutionResult, never
// as an error. The returned error is reserved for a nil result being
// impossible to produce, which current implementations never do.
type CodeExecutor interface {
	Execute(ctx context.Context, code, language string) *types.ExecutionResult

	// SupportedLanguages returns the registered language identifiers.
	SupportedLanguages() []string
}
