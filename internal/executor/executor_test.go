package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// shLanguage runs the submitted text through sh so the tests do not depend
// on node, python or a JDK being installed.
func shLanguage() *Language {
	return &Language{
		Name:       "sh",
		SourceName: func(string) string { return "script.sh" },
		RunArgs:    func(src string) []string { return []string{"sh", src} },
	}
}

// shCompiledLanguage fakes a compiled language: the "compiler" is a second
// sh invocation of the same script.
func shCompiledLanguage() *Language {
	return &Language{
		Name:        "shc",
		SourceName:  func(string) string { return "build.sh" },
		CompileArgs: func(src string) []string { return []string{"sh", src} },
		RunArgs:     func(src string) []string { return []string{"sh", "-c", "echo ran"} },
	}
}

func newTestRunner(t *testing.T, timeout time.Duration, maxOutput int64) *Runner {
	t.Helper()
	r := NewRunner(timeout, maxOutput, t.TempDir(), zap.NewNop())
	r.Register(shLanguage())
	r.Register(shCompiledLanguage())
	return r
}

func TestExecuteUnsupportedLanguage(t *testing.T) {
	r := newTestRunner(t, 5*time.Second, 1<<20)

	result := r.Execute(context.Background(), "print(1)", "cobol")
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not supported")
	assert.Empty(t, result.Output)
}

func TestExecuteCapturesStdout(t *testing.T) {
	r := newTestRunner(t, 5*time.Second, 1<<20)

	result := r.Execute(context.Background(), "echo hello world", "sh")
	assert.True(t, result.Success)
	assert.Equal(t, "hello world", result.Output)
	assert.Empty(t, result.Error)
	assert.GreaterOrEqual(t, result.ExecutionTime, int64(0))
}

func TestExecuteNonzeroExit(t *testing.T) {
	r := newTestRunner(t, 5*time.Second, 1<<20)

	result := r.Execute(context.Background(), "echo partial; echo oops >&2; exit 3", "sh")
	assert.False(t, result.Success)
	assert.Equal(t, "partial", result.Output, "stdout survives a failed run")
	assert.Equal(t, "oops", result.Error)
}

func TestExecuteTimeout(t *testing.T) {
	r := newTestRunner(t, 200*time.Millisecond, 1<<20)

	start := time.Now()
	result := r.Execute(context.Background(), "sleep 10", "sh")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "timed out")
	assert.GreaterOrEqual(t, result.ExecutionTime, int64(200), "runs until the cap")
	assert.Less(t, time.Since(start), 5*time.Second, "runaway process is killed, not awaited")
}

func TestExecuteOutputCap(t *testing.T) {
	r := newTestRunner(t, 10*time.Second, 1024)

	code := "while true; do echo aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa; done"
	start := time.Now()
	result := r.Execute(context.Background(), code, "sh")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "output limit exceeded")
	assert.LessOrEqual(t, len(result.Output), 1024)
	assert.Less(t, time.Since(start), 8*time.Second, "output flood is killed before the timeout")
}

func TestExecuteCompileFailureSkipsRun(t *testing.T) {
	r := newTestRunner(t, 5*time.Second, 1<<20)

	result := r.Execute(context.Background(), "echo building >&2; exit 1", "shc")
	assert.False(t, result.Success)
	assert.Equal(t, "building", result.Error)
	assert.NotContains(t, result.Output, "ran", "run step never happens after a compile failure")
}

func TestExecuteCompileSuccessRuns(t *testing.T) {
	r := newTestRunner(t, 5*time.Second, 1<<20)

	result := r.Execute(context.Background(), "true", "shc")
	assert.True(t, result.Success)
	assert.Equal(t, "ran", result.Output)
}

func TestExecuteRespectsCallerContext(t *testing.T) {
	r := newTestRunner(t, 30*time.Second, 1<<20)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	result := r.Execute(ctx, "sleep 10", "sh")
	assert.False(t, result.Success)
}

func TestSupportedLanguagesSorted(t *testing.T) {
	r := NewRunner(time.Second, 1<<20, t.TempDir(), zap.NewNop())

	names := r.SupportedLanguages()
	assert.Equal(t, []string{"c", "cpp", "java", "javascript", "python"}, names)
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "javascript", normalizeLanguage("JS"))
	assert.Equal(t, "javascript", normalizeLanguage(" JavaScript "))
	assert.Equal(t, "python", normalizeLanguage("py"))
	assert.Equal(t, "cpp", normalizeLanguage("C++"))
	assert.Equal(t, "rust", normalizeLanguage("rust"))
}

func TestJavaClassName(t *testing.T) {
	assert.Equal(t, "HelloWorld", javaClassName("public class HelloWorld {\n}"))
	assert.Equal(t, "Main", javaClassName("class lowerCamel {}"), "no public class falls back to Main")
	assert.Equal(t, "A", javaClassName("import java.util.*;\n\npublic   class A {}"))
}

func TestCappedBufferTruncatesAndFlags(t *testing.T) {
	killed := false
	buf := newCappedBuffer(8, func() { killed = true })

	n, err := buf.Write([]byte("12345"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.False(t, buf.Exceeded())

	n, err = buf.Write([]byte("6789ab"))
	require.NoError(t, err)
	assert.Equal(t, 6, n, "writes keep succeeding so the pipe drains")
	assert.True(t, buf.Exceeded())
	assert.True(t, killed)
	assert.Equal(t, "12345678", buf.String())

	// Further writes stay truncated and do not re-trigger the kill.
	killed = false
	_, _ = buf.Write([]byte(strings.Repeat("x", 100)))
	assert.False(t, killed)
	assert.Equal(t, "12345678", buf.String())
}
