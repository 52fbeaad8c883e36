// Package fsprovider claims local paths as records. Directories become
// containers, everything else becomes a file leaf, and instruction files
// are scanned for references to further paths.
package fsprovider

import (
	"iter"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/jadenpxrk/fileprompt/internal/extract"
	"github.com/jadenpxrk/fileprompt/internal/ignore"
	"github.com/jadenpxrk/fileprompt/internal/record"
	"github.com/jadenpxrk/fileprompt/internal/resolve"
)

// Config is fixed for the lifetime of a Provider.
type Config struct {
	Include               []string
	Exclude               []string
	InstructionExtensions []string // without the leading dot, e.g. "txt"
	PrefixMap             []resolve.Mapping
	Root                  string // optional, see resolve.Options
	RespectGitignore      bool
	IgnoreHidden          bool
	Logger                *log.Logger
}

// Provider is the filesystem record provider. Its ignore cache and root path
// belong to a single collection run, so build a new Provider per run.
type Provider struct {
	engine   *ignore.Engine
	resolver *resolve.Resolver
	exts     map[string]struct{}
	logger   *log.Logger
}

var (
	_ record.Provider  = (*Provider)(nil)
	_ record.Leaf      = (*File)(nil)
	_ record.Container = (*Dir)(nil)
)

// New builds a Provider. It fails only on invalid include/exclude globs.
func New(cfg Config) (*Provider, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	engine, err := ignore.New(ignore.Config{
		Include:          cfg.Include,
		Exclude:          cfg.Exclude,
		RespectGitignore: cfg.RespectGitignore,
		IgnoreHidden:     cfg.IgnoreHidden,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	exts := make(map[string]struct{}, len(cfg.InstructionExtensions))
	for _, ext := range cfg.InstructionExtensions {
		exts[strings.TrimPrefix(ext, ".")] = struct{}{}
	}

	return &Provider{
		engine: engine,
		resolver: resolve.New(resolve.Options{
			Mappings: cfg.PrefixMap,
			Root:     cfg.Root,
			Logger:   logger,
		}),
		exts:   exts,
		logger: logger,
	}, nil
}

// Claim accepts any existing path that passes the ignore rules. The record's
// source is the canonical absolute path, symlinks resolved.
func (p *Provider) Claim(source string) (record.Record, bool) {
	if source == "" || strings.ContainsRune(source, 0) {
		return nil, false
	}

	path, ok := resolve.Canonical(source)
	if !ok {
		p.logger.Debug("Path does not exist", "source", source)
		return nil, false
	}
	p.resolver.Root(path)

	info, err := os.Stat(path)
	if err != nil {
		p.logger.Debug("Could not stat path", "path", path, "error", err)
		return nil, false
	}
	if !p.engine.Allowed(path, info.IsDir()) {
		p.logger.Debug("Path filtered", "path", path)
		return nil, false
	}
	return p.newRecord(path, info.IsDir()), true
}

// Discover scans an instruction file for path references and yields a
// record for every reference that resolves and passes the ignore rules.
// Records from other providers and non-instruction files yield nothing.
func (p *Provider) Discover(r record.Record) iter.Seq[record.Record] {
	f, ok := r.(*File)
	if !ok || !p.IsInstruction(f.path) {
		return record.Empty
	}

	return func(yield func(record.Record) bool) {
		content, ok := f.Content()
		if !ok || content == "" {
			return
		}
		for raw := range extract.Candidates(content) {
			resolved, ok := p.resolver.Resolve(raw, f.path)
			if !ok {
				continue
			}
			found, ok := p.Claim(resolved)
			if !ok {
				continue
			}
			p.logger.Debug("Found reference", "in", f.path, "ref", raw, "path", resolved)
			if !yield(found) {
				return
			}
		}
	}
}

// IsInstruction reports whether path has one of the instruction extensions.
func (p *Provider) IsInstruction(path string) bool {
	ext := filepath.Ext(path)
	if ext == "" {
		return false
	}
	_, ok := p.exts[ext[1:]]
	return ok
}

func (p *Provider) newRecord(path string, isDir bool) record.Record {
	if isDir {
		return &Dir{path: path, p: p}
	}
	return &File{path: path, logger: p.logger}
}

// File is a leaf backed by a regular (or special) file.
type File struct {
	path   string
	logger *log.Logger
}

func (f *File) Source() string { return f.path }

// Path returns the canonical absolute path of the file.
func (f *File) Path() string { return f.path }

// Content reads the whole file. Unreadable or non-UTF-8 files report false.
func (f *File) Content() (string, bool) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		f.logger.Debug("Could not read file", "path", f.path, "error", err)
		return "", false
	}
	if !utf8.Valid(data) {
		f.logger.Debug("File is not valid UTF-8", "path", f.path)
		return "", false
	}
	return string(data), true
}

// Dir is a container backed by a directory.
type Dir struct {
	path string
	p    *Provider
}

func (d *Dir) Source() string { return d.path }

// Path returns the canonical absolute path of the directory.
func (d *Dir) Path() string { return d.path }

// Records lists the directory's immediate children that pass the ignore
// rules. Nested directories are yielded as Dir records, not descended into.
// Each call lists the directory again.
func (d *Dir) Records() iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		entries, err := os.ReadDir(d.path)
		if err != nil {
			d.p.logger.Warn("Could not list directory", "path", d.path, "error", err)
			return
		}
		for _, entry := range entries {
			entryPath := filepath.Join(d.path, entry.Name())
			child, ok := resolve.Canonical(entryPath)
			if !ok {
				d.p.logger.Debug("Skipping dangling entry", "path", entryPath)
				continue
			}
			info, err := os.Stat(child)
			if err != nil {
				d.p.logger.Debug("Could not stat entry", "path", child, "error", err)
				continue
			}
			// A symlink is filtered under its own name as well as its target's.
			if child != entryPath && !d.p.engine.Allowed(entryPath, info.IsDir()) {
				continue
			}
			if !d.p.engine.Allowed(child, info.IsDir()) {
				continue
			}
			if !yield(d.p.newRecord(child, info.IsDir())) {
				return
			}
		}
	}
}
