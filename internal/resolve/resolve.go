// Package resolve turns path references found in text into existing,
// canonical filesystem paths.
package resolve

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrPrefixMap reports a prefix mapping that is not of the form prefix=path.
var ErrPrefixMap = errors.New("invalid prefix map, use 'prefix=path'")

// Mapping rewrites references starting with Prefix+"/" onto Base.
type Mapping struct {
	Prefix string
	Base   string // absolute
}

// ParsePrefixMap parses prefix=path pairs, keeping their order. Bases are
// made absolute against the working directory.
func ParsePrefixMap(pairs []string) ([]Mapping, error) {
	mappings := make([]Mapping, 0, len(pairs))
	for _, pair := range pairs {
		prefix, base, ok := strings.Cut(pair, "=")
		prefix = strings.TrimSpace(prefix)
		if !ok || prefix == "" || strings.ContainsRune(prefix, '/') {
			return nil, fmt.Errorf("%w: %q", ErrPrefixMap, pair)
		}
		abs, err := filepath.Abs(strings.TrimSpace(base))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrPrefixMap, pair, err)
		}
		mappings = append(mappings, Mapping{Prefix: prefix, Base: abs})
	}
	return mappings, nil
}

// Options configures a Resolver.
type Options struct {
	Mappings []Mapping
	// Root pins the base for root-relative references. When empty it is
	// computed from the first path handed to Root.
	Root   string
	Logger *log.Logger
}

// Resolver resolves references for one collection run. It is not safe for
// concurrent use.
type Resolver struct {
	mappings []Mapping
	root     string
	logger   *log.Logger
}

// New returns a Resolver for opts.
func New(opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	r := &Resolver{mappings: opts.Mappings, logger: logger}
	if opts.Root != "" {
		if root, ok := Canonical(opts.Root); ok {
			r.root = root
		} else {
			logger.Warn("Ignoring root that does not exist", "root", opts.Root)
		}
	}
	return r
}

// Root returns the run's root path. The first call fixes it: starting at
// start (or its directory, for files) it climbs while the parent exists.
func (r *Resolver) Root(start string) string {
	if r.root != "" {
		return r.root
	}

	cur, err := filepath.Abs(start)
	if err != nil {
		cur = string(filepath.Separator)
	}
	if info, err := os.Stat(cur); err != nil || !info.IsDir() {
		cur = filepath.Dir(cur)
	}
	for {
		parent := filepath.Dir(cur)
		if parent == cur || !exists(parent) {
			break
		}
		cur = parent
	}

	r.root = cur
	r.logger.Debug("Root path fixed", "root", cur)
	return cur
}

// Resolve turns raw into an existing canonical path. from is the file the
// reference was found in, or "" for references without one. Rules are tried
// in order: prefix mappings, absolute paths, paths relative to from, and
// finally paths relative to the root.
func (r *Resolver) Resolve(raw, from string) (string, bool) {
	if raw == "" || strings.ContainsRune(raw, 0) {
		return "", false
	}

	for _, m := range r.mappings {
		if rest, ok := strings.CutPrefix(raw, m.Prefix+"/"); ok {
			if p, ok := Canonical(filepath.Join(m.Base, rest)); ok {
				return p, true
			}
		}
	}

	if strings.HasPrefix(raw, "/") {
		return Canonical(raw)
	}

	start := from
	if start == "" {
		start, _ = os.Getwd()
	}
	root := r.Root(start)

	if from != "" {
		dir := filepath.Dir(from)
		if p, ok := Canonical(filepath.Join(dir, raw)); ok {
			return p, true
		}
		if isExplicitRelative(raw) {
			if p, ok := Canonical(filepath.Join(root, strings.TrimLeft(raw, "./"))); ok {
				return p, true
			}
		}
	}

	return Canonical(filepath.Join(root, raw))
}

func isExplicitRelative(raw string) bool {
	return strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../")
}

// Canonical returns the absolute, symlink-free form of path, or false when
// path does not exist.
func Canonical(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", false
	}
	return resolved, true
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
