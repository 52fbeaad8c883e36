// Package gitprovider claims git remote URLs by cloning them into a
// temporary directory and exposing the clone as a container.
package gitprovider

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/jadenpxrk/fileprompt/internal/record"
)

// CloneFunc clones url into dir.
type CloneFunc func(ctx context.Context, url, dir string) error

// Options configures a Provider.
type Options struct {
	// Local claims the clone directory once the clone succeeds, usually the
	// filesystem provider. It must return a container for a directory.
	Local    record.Provider
	Clone    CloneFunc // defaults to a shallow go-git clone
	Progress io.Writer // clone progress, nil for none
	TempDir  string    // parent of the clone directories, "" for os.TempDir
	Logger   *log.Logger
}

// Provider clones git URLs. Call Close to remove the clones.
type Provider struct {
	opts   Options
	logger *log.Logger
	clones []string
}

var _ record.Provider = (*Provider)(nil)

// New returns a Provider.
func New(opts Options) *Provider {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	p := &Provider{opts: opts, logger: logger}
	if p.opts.Clone == nil {
		p.opts.Clone = p.shallowClone
	}
	return p
}

// IsGitURL reports whether source looks like a git remote: a .git suffix or
// the scp-like git@ form.
func IsGitURL(source string) bool {
	return strings.HasSuffix(source, ".git") || strings.HasPrefix(source, "git@")
}

// Claim clones source when it is a git URL and returns the clone as a
// container whose source is the URL.
func (p *Provider) Claim(source string) (record.Record, bool) {
	if !IsGitURL(source) {
		return nil, false
	}
	// A local directory that merely ends in .git is not a remote.
	if info, err := os.Stat(source); err == nil && info.IsDir() {
		return nil, false
	}

	dir, err := os.MkdirTemp(p.opts.TempDir, "fileprompt-git-")
	if err != nil {
		p.logger.Warn("Could not create clone directory", "url", source, "error", err)
		return nil, false
	}

	p.logger.Info("Cloning repository", "url", source, "dir", dir)
	if err := p.opts.Clone(context.Background(), source, dir); err != nil {
		p.logger.Warn("Could not clone repository", "url", source, "error", err)
		_ = os.RemoveAll(dir)
		return nil, false
	}
	p.clones = append(p.clones, dir)

	if p.opts.Local == nil {
		p.logger.Warn("No provider for cloned files", "url", source)
		return nil, false
	}
	local, ok := p.opts.Local.Claim(dir)
	if !ok {
		p.logger.Warn("Clone was filtered out", "url", source, "dir", dir)
		return nil, false
	}
	c, ok := local.(record.Container)
	if !ok {
		return nil, false
	}
	return &Repo{url: source, dir: dir, root: c}, true
}

// Discover yields nothing: files inside a clone are handled by the local
// provider.
func (p *Provider) Discover(record.Record) iter.Seq[record.Record] {
	return record.Empty
}

// Close removes every clone made by p.
func (p *Provider) Close() error {
	var firstErr error
	for _, dir := range p.clones {
		p.logger.Debug("Removing clone", "dir", dir)
		if err := os.RemoveAll(dir); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("removing clone %s: %w", dir, err)
		}
	}
	p.clones = nil
	return firstErr
}

func (p *Provider) shallowClone(ctx context.Context, url, dir string) error {
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           url,
		Progress:      p.opts.Progress,
		ReferenceName: plumbing.HEAD,
		SingleBranch:  true,
		Depth:         1,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository '%s': %w", url, err)
	}
	return nil
}

// Repo is a cloned repository.
type Repo struct {
	url  string
	dir  string
	root record.Container
}

var _ record.Container = (*Repo)(nil)

func (r *Repo) Source() string { return r.url }

// Dir returns the local clone directory.
func (r *Repo) Dir() string { return r.dir }

// Records lists the top level of the clone.
func (r *Repo) Records() iter.Seq[record.Record] {
	return r.root.Records()
}
