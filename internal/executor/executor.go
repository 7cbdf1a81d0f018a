// Package executor runs untrusted submitted code in an isolated, single-use
// working directory, bounded by a wall-clock timeout and an output cap. The
// contract is "always returns an ExecutionResult": every failure mode, from
// an unsupported language to a SIGKILLed runaway process, is data in the
// result, never an error to the caller.
package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"peerrank/pkg/interfaces"
	"peerrank/pkg/types"
)

// Runner executes code through registered language strategies. Invocations
// are fully isolated from each other: each gets its own working directory
// and subprocess, and nothing survives between calls.
type Runner struct {
	mu        sync.RWMutex
	languages map[string]*Language

	timeout   time.Duration
	maxOutput int64
	workRoot  string
	logger    *zap.Logger
}

var _ interfaces.CodeExecutor = (*Runner)(nil)

// NewRunner returns a runner with the builtin languages registered.
// workRoot may be empty to use the system temp directory.
func NewRunner(timeout time.Duration, maxOutput int64, workRoot string, logger *zap.Logger) *Runner {
	return &Runner{
		languages: builtinLanguages(),
		timeout:   timeout,
		maxOutput: maxOutput,
		workRoot:  workRoot,
		logger:    logger,
	}
}

// Register adds or replaces a language strategy.
func (r *Runner) Register(lang *Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.languages[lang.Name] = lang
}

// SupportedLanguages returns the registered language names, sorted.
func (r *Runner) SupportedLanguages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.languages))
	for name := range r.languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Runner) lookup(language string) (*Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.languages[normalizeLanguage(language)]
	return lang, ok
}

// Execute compiles (when the language requires it) and runs the code.
func (r *Runner) Execute(ctx context.Context, code, language string) *types.ExecutionResult {
	start := time.Now()

	lang, ok := r.lookup(language)
	if !ok {
		return &types.ExecutionResult{
			Success:       false,
			Error:         fmt.Sprintf("language %q is not supported for execution", language),
			ExecutionTime: time.Since(start).Milliseconds(),
		}
	}

	dir, err := os.MkdirTemp(r.workRoot, "peerrank-exec-")
	if err != nil {
		return &types.ExecutionResult{
			Success:       false,
			Error:         fmt.Sprintf("failed to allocate working directory: %v", err),
			ExecutionTime: time.Since(start).Milliseconds(),
		}
	}
	defer func() {
		// Cleanup failure is logged, never propagated.
		if err := os.RemoveAll(dir); err != nil {
			r.logger.Warn("failed to clean execution directory",
				zap.String("dir", dir), zap.Error(err))
		}
	}()

	src := filepath.Join(dir, lang.SourceName(code))
	if err := os.WriteFile(src, []byte(code), 0o644); err != nil {
		return &types.ExecutionResult{
			Success:       false,
			Error:         fmt.Sprintf("failed to materialize source: %v", err),
			ExecutionTime: time.Since(start).Milliseconds(),
		}
	}

	if compileArgs := r.compileArgs(lang, src); compileArgs != nil {
		compiled := r.runCommand(ctx, dir, compileArgs)
		if !compiled.succeeded() {
			// Compiler diagnostics go to the user as-is; execution is skipped.
			return &types.ExecutionResult{
				Success:       false,
				Output:        strings.TrimSpace(compiled.stdout),
				Error:         compiled.errorText(r.timeout, r.maxOutput),
				ExecutionTime: time.Since(start).Milliseconds(),
			}
		}
	}

	run := r.runCommand(ctx, dir, lang.RunArgs(src))
	return &types.ExecutionResult{
		Success:       run.succeeded(),
		Output:        strings.TrimSpace(run.stdout),
		Error:         run.errorText(r.timeout, r.maxOutput),
		ExecutionTime: time.Since(start).Milliseconds(),
	}
}

func (r *Runner) compileArgs(lang *Language, src string) []string {
	if lang.CompileArgs == nil {
		return nil
	}
	return lang.CompileArgs(src)
}

// commandResult captures one subprocess invocation.
type commandResult struct {
	stdout         string
	stderr         string
	exitCode       int
	timedOut       bool
	outputExceeded bool
	spawnErr       error
}

func (c *commandResult) succeeded() bool {
	return c.exitCode == 0 && !c.timedOut && !c.outputExceeded && c.spawnErr == nil
}

// errorText renders the failure as a user-facing message, preserving
// whatever stderr was captured for plain nonzero exits.
func (c *commandResult) errorText(timeout time.Duration, maxOutput int64) string {
	switch {
	case c.spawnErr != nil:
		return fmt.Sprintf("failed to execute: %v", c.spawnErr)
	case c.timedOut:
		return fmt.Sprintf("execution timed out (%s limit)", timeout)
	case c.outputExceeded:
		return fmt.Sprintf("output limit exceeded (%d bytes)", maxOutput)
	default:
		return strings.TrimSpace(c.stderr)
	}
}

// runCommand runs one argv in dir with stdin closed and stdout/stderr
// captured incrementally. The subprocess is killed when the wall-clock
// timeout elapses or either stream passes the output cap.
func (r *Runner) runCommand(ctx context.Context, dir string, argv []string) *commandResult {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	// Leaving Stdin nil gives the child an empty stdin.
	stdout := newCappedBuffer(r.maxOutput, cancel)
	stderr := newCappedBuffer(r.maxOutput, cancel)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Don't wait forever on descendants that inherited our pipes after the
	// direct child is gone.
	cmd.WaitDelay = 2 * time.Second

	err := cmd.Run()

	res := &commandResult{
		stdout: stdout.String(),
		stderr: stderr.String(),
	}
	switch {
	case stdout.Exceeded() || stderr.Exceeded():
		res.outputExceeded = true
	case cctx.Err() == context.DeadlineExceeded:
		res.timedOut = true
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.exitCode = exitErr.ExitCode()
		} else if !res.timedOut && !res.outputExceeded {
			res.spawnErr = err
		} else {
			res.exitCode = -1
		}
	}
	if (res.timedOut || res.outputExceeded) && res.exitCode == 0 {
		res.exitCode = -1
	}
	return res
}

// cappedBuffer accumulates subprocess output up to a byte limit. Crossing
// the limit triggers the kill callback once; writes keep succeeding so the
// copier goroutine drains the pipe instead of blocking the dying process.
type cappedBuffer struct {
	mu       sync.Mutex
	buf      strings.Builder
	limit    int64
	written  int64
	exceeded bool
	kill     context.CancelFunc
}

func newCappedBuffer(limit int64, kill context.CancelFunc) *cappedBuffer {
	return &cappedBuffer{limit: limit, kill: kill}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := b.limit - b.written
	if remaining > 0 {
		keep := int64(len(p))
		if keep > remaining {
			keep = remaining
		}
		b.buf.Write(p[:keep])
	}
	b.written += int64(len(p))
	if b.written > b.limit && !b.exceeded {
		b.exceeded = true
		b.kill()
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *cappedBuffer) Exceeded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exceeded
}
