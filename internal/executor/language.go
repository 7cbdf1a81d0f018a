package executor

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Language is the execution strategy for one language identifier. Adding a
// language is a registration, not a new code path: the runner only ever
// calls these three hooks.
type Language struct {
	Name string

	// SourceName returns the filename the code is materialized as inside
	// the working directory. It may inspect the code (Java derives the
	// public class name from the source).
	SourceName func(code string) string

	// CompileArgs returns the compiler argv for the absolute source path,
	// or nil for interpreted languages.
	CompileArgs func(src string) []string

	// RunArgs returns the argv that executes the program.
	RunArgs func(src string) []string
}

// Best-effort match of the public class declaration. Not a parser: the
// first match wins and anything else falls back to Main.
var javaClassRegex = regexp.MustCompile(`public\s+class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)

func javaClassName(code string) string {
	if m := javaClassRegex.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return "Main"
}

func binaryPath(src string) string {
	return filepath.Join(filepath.Dir(src), "program")
}

func builtinLanguages() map[string]*Language {
	langs := []*Language{
		{
			Name:       "javascript",
			SourceName: func(string) string { return "script.js" },
			RunArgs:    func(src string) []string { return []string{"node", src} },
		},
		{
			Name:       "python",
			SourceName: func(string) string { return "script.py" },
			RunArgs:    func(src string) []string { return []string{"python3", src} },
		},
		{
			Name: "java",
			SourceName: func(code string) string {
				return javaClassName(code) + ".java"
			},
			CompileArgs: func(src string) []string { return []string{"javac", src} },
			RunArgs: func(src string) []string {
				class := strings.TrimSuffix(filepath.Base(src), ".java")
				return []string{"java", "-cp", filepath.Dir(src), class}
			},
		},
		{
			Name:        "cpp",
			SourceName:  func(string) string { return "program.cpp" },
			CompileArgs: func(src string) []string { return []string{"g++", "-O2", "-o", binaryPath(src), src} },
			RunArgs:     func(src string) []string { return []string{binaryPath(src)} },
		},
		{
			Name:        "c",
			SourceName:  func(string) string { return "program.c" },
			CompileArgs: func(src string) []string { return []string{"gcc", "-O2", "-o", binaryPath(src), src} },
			RunArgs:     func(src string) []string { return []string{binaryPath(src)} },
		},
	}

	m := make(map[string]*Language, len(langs))
	for _, l := range langs {
		m[l.Name] = l
	}
	return m
}

// Common aliases accepted on the wire.
var languageAliases = map[string]string{
	"js":  "javascript",
	"py":  "python",
	"c++": "cpp",
}

func normalizeLanguage(language string) string {
	name := strings.ToLower(strings.TrimSpace(language))
	if canonical, ok := languageAliases[name]; ok {
		return canonical
	}
	return name
}
