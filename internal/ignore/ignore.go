// Package ignore decides whether a path takes part in a collection run.
//
// A path is rejected when it (or any ancestor) is hidden, when the nearest
// .gitignore above it excludes it, when its base name matches an exclude
// glob, or when include globs are configured and none of them match.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// ErrBadPattern is returned by New for include or exclude globs that can
// never match.
var ErrBadPattern = errors.New("invalid glob pattern")

const gitignoreFile = ".gitignore"

// Config holds the filtering switches. It is read once by New and never
// changed afterwards.
type Config struct {
	Include          []string // base-name globs; empty means everything
	Exclude          []string // base-name globs
	RespectGitignore bool
	IgnoreHidden     bool
	Logger           *log.Logger
}

// scope is a compiled .gitignore and the directory it lives in.
type scope struct {
	dir     string
	matcher gitignore.Matcher
}

// Engine applies a Config. It memoizes .gitignore lookups per directory, so
// one Engine should serve exactly one collection run. An Engine is not safe
// for concurrent use.
type Engine struct {
	cfg    Config
	logger *log.Logger
	scopes map[string]*scope // nil value: no .gitignore at or above the key
}

// New validates the globs in cfg and returns an Engine with an empty cache.
func New(cfg Config) (*Engine, error) {
	for _, p := range cfg.Include {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: include %q", ErrBadPattern, p)
		}
	}
	for _, p := range cfg.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: exclude %q", ErrBadPattern, p)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		cfg:    cfg,
		logger: logger,
		scopes: make(map[string]*scope),
	}, nil
}

// Allowed reports whether path passes every configured filter. isDir tells
// the engine whether path names a directory; include globs only apply to
// non-directories so that directories can still be expanded. Any failure
// while checking rejects the path.
func (e *Engine) Allowed(path string, isDir bool) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		e.logger.Warn("Rejecting path that cannot be made absolute", "path", path, "error", err)
		return false
	}

	if e.cfg.IgnoreHidden && IsHidden(abs) {
		return false
	}
	if e.cfg.RespectGitignore && e.gitignored(abs, isDir) {
		return false
	}

	name := filepath.Base(abs)
	if matchAny(e.cfg.Exclude, name) {
		return false
	}
	if isDir || len(e.cfg.Include) == 0 {
		return true
	}
	return matchAny(e.cfg.Include, name)
}

// IsHidden reports whether path or any of its ancestors has a name starting
// with a dot. The "." and ".." path elements are not hidden.
func IsHidden(path string) bool {
	p := filepath.Clean(path)
	for {
		name := filepath.Base(p)
		if name != "." && name != ".." && strings.HasPrefix(name, ".") {
			return true
		}
		parent := filepath.Dir(p)
		if parent == p {
			return false
		}
		p = parent
	}
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// gitignored matches abs against the nearest .gitignore above it. Every
// directory between that .gitignore and abs is checked as well, because
// git never looks inside an ignored directory.
func (e *Engine) gitignored(abs string, isDir bool) bool {
	s := e.nearest(filepath.Dir(abs))
	if s == nil {
		return false
	}

	rel, err := filepath.Rel(s.dir, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	for i := 1; i < len(parts); i++ {
		if s.matcher.Match(parts[:i], true) {
			return true
		}
	}
	return s.matcher.Match(parts, isDir)
}

// nearest walks upward from dir to the first directory holding a readable
// .gitignore. The answer, including "none", is cached for every directory
// passed on the way.
func (e *Engine) nearest(dir string) *scope {
	if s, ok := e.scopes[dir]; ok {
		return s
	}

	var walked []string
	var found *scope
	for cur := dir; ; {
		if s, ok := e.scopes[cur]; ok {
			found = s
			break
		}
		walked = append(walked, cur)
		if s := e.load(cur); s != nil {
			found = s
			break
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}

	for _, d := range walked {
		e.scopes[d] = found
	}
	return found
}

// load compiles dir/.gitignore. Unreadable files count as absent.
func (e *Engine) load(dir string) *scope {
	path := filepath.Join(dir, gitignoreFile)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}

	lines, err := readPatterns(path)
	if err != nil {
		e.logger.Warn("Could not read .gitignore", "path", path, "error", err)
		return nil
	}

	patterns := make([]gitignore.Pattern, 0, len(lines))
	for _, line := range lines {
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	e.logger.Debug("Loaded .gitignore", "path", path, "patterns", len(patterns))
	return &scope{dir: dir, matcher: gitignore.NewMatcher(patterns)}
}

// readPatterns returns the non-blank, non-comment lines of a .gitignore.
func readPatterns(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return lines, nil
}
