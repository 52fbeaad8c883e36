// Package collector drives record providers to a fixpoint: it claims the
// input sources, expands containers, follows references discovered in
// leaves, and emits every record exactly once.
package collector

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/jadenpxrk/fileprompt/internal/record"
)

// ErrNullByte is returned for input sources containing a NUL byte.
var ErrNullByte = errors.New("invalid path containing null byte")

// Collector coordinates an ordered list of providers. Provider order decides
// which provider claims a source: the first one that accepts it wins.
type Collector struct {
	providers []record.Provider
	logger    *log.Logger
}

// New returns a Collector over providers. A nil logger uses log.Default().
func New(logger *log.Logger, providers ...record.Provider) *Collector {
	if logger == nil {
		logger = log.Default()
	}
	return &Collector{providers: providers, logger: logger}
}

// Stats describes one finished run.
type Stats struct {
	Emitted   int
	Unclaimed []string // input sources no provider accepted
}

// Stream validates sources and returns the depth-first sequence of records
// reachable from them. Every record appears once, keyed by Source. The
// visited set lives inside one iteration of the sequence, so ranging over it
// twice runs the collection twice. stats, when non-nil, is filled in as the
// sequence is consumed.
func (c *Collector) Stream(sources []string, stats *Stats) (iter.Seq[record.Record], error) {
	for _, s := range sources {
		if strings.ContainsRune(s, 0) {
			return nil, fmt.Errorf("%w: %q", ErrNullByte, s)
		}
	}

	return func(yield func(record.Record) bool) {
		run := &run{c: c, visited: make(map[string]struct{}), yield: yield}
		if stats != nil {
			*stats = Stats{}
		}
		defer func() {
			if stats != nil {
				stats.Emitted = len(run.visited)
			}
		}()

		for _, source := range sources {
			if _, seen := run.visited[source]; seen {
				continue
			}
			r, ok := c.claim(source)
			if !ok {
				c.logger.Warn("Skipping input no provider could handle", "source", source)
				if stats != nil {
					stats.Unclaimed = append(stats.Unclaimed, source)
				}
				continue
			}
			if !run.visit(r) {
				return
			}
		}
	}, nil
}

// Collect runs Stream to completion and returns the records in emission
// order.
func (c *Collector) Collect(sources []string) ([]record.Record, Stats, error) {
	var stats Stats
	seq, err := c.Stream(sources, &stats)
	if err != nil {
		return nil, stats, err
	}
	var out []record.Record
	for r := range seq {
		out = append(out, r)
	}
	return out, stats, nil
}

func (c *Collector) claim(source string) (record.Record, bool) {
	for _, p := range c.providers {
		if r, ok := p.Claim(source); ok {
			return r, true
		}
	}
	return nil, false
}

// run is the state of a single traversal.
type run struct {
	c       *Collector
	visited map[string]struct{}
	yield   func(record.Record) bool
}

// visit emits r and everything reachable from it. It returns false once the
// consumer has stopped.
func (r *run) visit(rec record.Record) bool {
	source := rec.Source()
	if _, seen := r.visited[source]; seen {
		return true
	}
	r.visited[source] = struct{}{}

	if !r.yield(rec) {
		return false
	}

	if container, ok := rec.(record.Container); ok {
		for child := range container.Records() {
			if !r.visit(child) {
				return false
			}
		}
		return true
	}

	for _, p := range r.c.providers {
		for found := range p.Discover(rec) {
			if !r.visit(found) {
				return false
			}
		}
	}
	return true
}
