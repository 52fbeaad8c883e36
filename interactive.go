package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	fuzzyfinder "github.com/ktr0731/go-fuzzyfinder"

	"github.com/jadenpxrk/fileprompt/internal/fsprovider"
	"github.com/jadenpxrk/fileprompt/internal/ignore"
)

// findFunc is swapped out in tests.
var findFunc = func(candidates []string) ([]int, error) {
	return fuzzyfinder.FindMulti(
		candidates,
		func(i int) string { return candidates[i] },
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i == -1 {
				return "Select files or directories. Tab to multi-select, Enter to confirm."
			}
			info, err := os.Stat(candidates[i])
			if err != nil {
				return fmt.Sprintf("Path: %s\nError: %v", candidates[i], err)
			}
			kind := "File"
			if info.IsDir() {
				kind = "Directory"
			}
			return fmt.Sprintf("Path: %s\nType: %s\nSize: %d bytes", candidates[i], kind, info.Size())
		}),
	)
}

// interactiveCandidates walks root and lists every path the ignore rules
// allow. Filtered directories are not descended into.
func interactiveCandidates(root string, cfg fsprovider.Config) ([]string, error) {
	engine, err := ignore.New(ignore.Config{
		Include:          cfg.Include,
		Exclude:          cfg.Exclude,
		RespectGitignore: cfg.RespectGitignore,
		IgnoreHidden:     cfg.IgnoreHidden,
		Logger:           cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var candidates []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == absRoot {
			return nil
		}
		if !engine.Allowed(path, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			rel = path
		}
		candidates = append(candidates, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning for files/directories: %w", err)
	}
	return candidates, nil
}

// runInteractiveFinder lets the user pick input paths under the working
// directory. An aborted selection returns nil, nil.
func runInteractiveFinder(cfg fsprovider.Config) ([]string, error) {
	candidates, err := interactiveCandidates(".", cfg)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.New("no files or directories found to select from")
	}

	idx, err := findFunc(candidates)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			cfg.Logger.Info("Interactive selection aborted")
			return nil, nil
		}
		return nil, fmt.Errorf("fuzzy finder error: %w", err)
	}

	selected := make([]string, len(idx))
	for i, n := range idx {
		selected[i] = candidates[n]
	}
	return selected, nil
}
