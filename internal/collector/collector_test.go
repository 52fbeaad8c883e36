package collector

import (
	"iter"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jadenpxrk/fileprompt/internal/fsprovider"
	"github.com/jadenpxrk/fileprompt/internal/record"
	"github.com/jadenpxrk/fileprompt/internal/resolve"
)

// node is a record in an in-memory graph.
type node struct {
	source string
	owner  string
}

func (n node) Source() string          { return n.source }
func (n node) Content() (string, bool) { return "", true }

type group struct {
	node
	children []string
	g        *graph
}

func (c group) Records() iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for _, child := range c.children {
			if !yield(c.g.make(child)) {
				return
			}
		}
	}
}

// graph is a provider over a fixed reference graph.
type graph struct {
	name       string
	claims     map[string]bool
	refs       map[string][]string // leaf -> referenced sources
	containers map[string][]string // container -> children
	discovered []string            // leaves Discover was asked about
}

func (g *graph) make(source string) record.Record {
	if children, ok := g.containers[source]; ok {
		return group{node: node{source: source, owner: g.name}, children: children, g: g}
	}
	return node{source: source, owner: g.name}
}

func (g *graph) Claim(source string) (record.Record, bool) {
	if !g.claims[source] {
		return nil, false
	}
	return g.make(source), true
}

func (g *graph) Discover(r record.Record) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		g.discovered = append(g.discovered, r.Source())
		for _, ref := range g.refs[r.Source()] {
			if !yield(g.make(ref)) {
				return
			}
		}
	}
}

func collectSources(t *testing.T, c *Collector, inputs ...string) []string {
	t.Helper()
	records, _, err := c.Collect(inputs)
	require.NoError(t, err)
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Source())
	}
	return out
}

func TestCollect_CycleSafety(t *testing.T) {
	g := &graph{
		name:   "g",
		claims: map[string]bool{"a": true},
		refs:   map[string][]string{"a": {"b"}, "b": {"c", "a"}, "c": {"a", "b"}},
	}
	got := collectSources(t, New(nil, g), "a")
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestCollect_DedupBySource(t *testing.T) {
	g := &graph{
		name:       "g",
		claims:     map[string]bool{"root": true, "x": true},
		containers: map[string][]string{"root": {"x", "sub"}, "sub": {"x", "y"}},
		refs:       map[string][]string{"y": {"x", "root"}},
	}
	got := collectSources(t, New(nil, g), "root", "x", "root")
	assert.Equal(t, []string{"root", "x", "sub", "y"}, got)
}

func TestCollect_ContainersAreNotProbed(t *testing.T) {
	g := &graph{
		name:       "g",
		claims:     map[string]bool{"dir": true},
		containers: map[string][]string{"dir": {"f"}},
		refs:       map[string][]string{"dir": {"never"}},
	}
	got := collectSources(t, New(nil, g), "dir")
	assert.Equal(t, []string{"dir", "f"}, got)
	assert.Equal(t, []string{"f"}, g.discovered)
}

func TestCollect_FirstProviderClaims(t *testing.T) {
	first := &graph{name: "first", claims: map[string]bool{"s": true}}
	second := &graph{name: "second", claims: map[string]bool{"s": true, "t": true}}

	records, _, err := New(nil, first, second).Collect([]string{"s", "t"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "first", records[0].(node).owner)
	assert.Equal(t, "second", records[1].(node).owner)
}

func TestCollect_EveryProviderDiscovers(t *testing.T) {
	first := &graph{name: "first", claims: map[string]bool{"s": true}, refs: map[string][]string{"s": {"a"}}}
	second := &graph{name: "second", refs: map[string][]string{"s": {"b", "a"}}}

	got := collectSources(t, New(nil, first, second), "s")
	assert.Equal(t, []string{"s", "a", "b"}, got)
}

func TestCollect_UnclaimedInputsAreSkipped(t *testing.T) {
	g := &graph{name: "g", claims: map[string]bool{"ok": true}}
	records, stats, err := New(nil, g).Collect([]string{"missing", "ok"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"missing"}, stats.Unclaimed)
	assert.Equal(t, 1, stats.Emitted)
}

func TestStream_NullByteFailsFast(t *testing.T) {
	g := &graph{name: "g", claims: map[string]bool{"ok": true}}
	_, err := New(nil, g).Stream([]string{"ok", "bad\x00"}, nil)
	require.ErrorIs(t, err, ErrNullByte)

	_, _, err = New(nil, g).Collect([]string{"bad\x00"})
	require.ErrorIs(t, err, ErrNullByte)
}

func TestStream_StopsWhenConsumerStops(t *testing.T) {
	g := &graph{
		name:   "g",
		claims: map[string]bool{"a": true},
		refs:   map[string][]string{"a": {"b", "c"}, "b": {"d"}},
	}
	seq, err := New(nil, g).Stream([]string{"a"}, nil)
	require.NoError(t, err)

	var got []string
	for r := range seq {
		got = append(got, r.Source())
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

// writeTree creates files relative to a canonical temp dir.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root, ok := resolve.Canonical(t.TempDir())
	require.True(t, ok)
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newFS(t *testing.T, root string) *fsprovider.Provider {
	t.Helper()
	p, err := fsprovider.New(fsprovider.Config{
		InstructionExtensions: []string{"txt"},
		Root:                  root,
		RespectGitignore:      true,
		IgnoreHidden:          true,
	})
	require.NoError(t, err)
	return p
}

func fileSources(t *testing.T, root string, inputs ...string) []string {
	t.Helper()
	records, _, err := New(nil, newFS(t, root)).Collect(inputs)
	require.NoError(t, err)
	var out []string
	for _, r := range records {
		if _, ok := r.(record.Leaf); ok {
			out = append(out, r.Source())
		}
	}
	sort.Strings(out)
	return out
}

func TestCollect_FilesystemScenario(t *testing.T) {
	root := writeTree(t, map[string]string{
		".gitignore":             "vendor/\n",
		"src/main.py":            "print('hi')",
		"docs/readme.txt":        "Entry point: ../src/main.py\nAlso ../vendor/lib.js\n",
		"vendor/lib.js":          "lib()",
		"other/vendor_like/x.js": "x",
	})

	got := fileSources(t, root, root)
	assert.Equal(t, []string{
		filepath.Join(root, "docs", "readme.txt"),
		filepath.Join(root, "other", "vendor_like", "x.js"),
		filepath.Join(root, "src", "main.py"),
	}, got)
	for _, s := range got {
		assert.NotContains(t, s, string(filepath.Separator)+"vendor"+string(filepath.Separator))
	}
}

func TestCollect_FilesystemReferencesOnly(t *testing.T) {
	root := writeTree(t, map[string]string{
		"docs/readme.txt": "See ../src/main.py and ./notes.txt",
		"docs/notes.txt":  "Back to ./readme.txt and ../src/util.py",
		"src/main.py":     "main",
		"src/util.py":     "util",
		"src/unused.py":   "unused",
	})

	got := fileSources(t, root, filepath.Join(root, "docs", "readme.txt"))
	assert.Equal(t, []string{
		filepath.Join(root, "docs", "notes.txt"),
		filepath.Join(root, "docs", "readme.txt"),
		filepath.Join(root, "src", "main.py"),
		filepath.Join(root, "src", "util.py"),
	}, got)
}

func TestCollect_Idempotent(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.txt":       "./b.txt ./sub/c.go",
		"b.txt":       "./a.txt",
		"sub/c.go":    "package sub",
		"sub/.hidden": "x",
	})

	first := fileSources(t, root, root)
	second := fileSources(t, root, root)
	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}
