package fsprovider

import (
	"os"
	"path/filepath"
	"slices"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jadenpxrk/fileprompt/internal/record"
	"github.com/jadenpxrk/fileprompt/internal/resolve"
)

// fixture builds:
//
//	src/main.py
//	src/README.txt        (references ./main.py, src/nested/util.py, ...)
//	src/nested/util.py
//	src/nested/data.txt
//	src/test_main.py
//	src/.hidden_file.txt
//	src/.hidden_dir/inner_hidden.txt
func fixture(t *testing.T) string {
	t.Helper()
	root, ok := resolve.Canonical(t.TempDir())
	require.True(t, ok)

	files := map[string]string{
		"src/main.py":                      "print('hello')",
		"src/nested/util.py":               "def util(): pass",
		"src/nested/data.txt":              "some data",
		"src/test_main.py":                 "assert True",
		"src/.hidden_file.txt":             "hidden file",
		"src/.hidden_dir/inner_hidden.txt": "inner hidden file",
		"src/README.txt": `
        File references:
        ./main.py
        src/nested/util.py
        /absolute/path/file.txt
        ./.hidden_file.txt
        ./test_main.py
    `,
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newProvider(t *testing.T, root string) *Provider {
	t.Helper()
	p, err := New(Config{
		Include:               []string{"*.py", "*.txt"},
		Exclude:               []string{"test_*.py"},
		InstructionExtensions: []string{"txt"},
		PrefixMap:             []resolve.Mapping{{Prefix: "src", Base: filepath.Join(root, "src")}},
		Root:                  root,
		RespectGitignore:      true,
		IgnoreHidden:          true,
	})
	require.NoError(t, err)
	return p
}

func sources(seq func(func(record.Record) bool)) []string {
	var out []string
	for r := range seq {
		out = append(out, r.Source())
	}
	sort.Strings(out)
	return out
}

func TestClaim_File(t *testing.T) {
	root := fixture(t)
	p := newProvider(t, root)

	path := filepath.Join(root, "src", "main.py")
	r, ok := p.Claim(path)
	require.True(t, ok)
	f, ok := r.(*File)
	require.True(t, ok)
	assert.Equal(t, path, f.Source())

	content, ok := f.Content()
	require.True(t, ok)
	assert.Equal(t, "print('hello')", content)
}

func TestClaim_Rejects(t *testing.T) {
	root := fixture(t)
	p := newProvider(t, root)

	for _, src := range []string{
		"",
		"bad\x00path",
		"/nonexistent/path",
		filepath.Join(root, "src", ".hidden_file.txt"),
		filepath.Join(root, "src", ".hidden_dir", "inner_hidden.txt"),
		filepath.Join(root, "src", "test_main.py"),
	} {
		_, ok := p.Claim(src)
		assert.False(t, ok, "source %q", src)
	}
}

func TestDir_Records(t *testing.T) {
	root := fixture(t)
	p := newProvider(t, root)

	r, ok := p.Claim(filepath.Join(root, "src"))
	require.True(t, ok)
	dir, ok := r.(*Dir)
	require.True(t, ok)

	got := sources(dir.Records())
	assert.Equal(t, []string{
		filepath.Join(root, "src", "README.txt"),
		filepath.Join(root, "src", "main.py"),
		filepath.Join(root, "src", "nested"),
	}, got)

	// One level only, and a fresh listing per call.
	assert.Equal(t, got, sources(dir.Records()))
	for child := range dir.Records() {
		if child.Source() == filepath.Join(root, "src", "nested") {
			_, isDir := child.(*Dir)
			assert.True(t, isDir)
		}
	}
}

func TestDiscover_InstructionFile(t *testing.T) {
	root := fixture(t)
	p := newProvider(t, root)

	r, ok := p.Claim(filepath.Join(root, "src", "README.txt"))
	require.True(t, ok)

	got := sources(p.Discover(r))
	assert.Equal(t, []string{
		filepath.Join(root, "src", "main.py"),
		filepath.Join(root, "src", "nested", "util.py"),
	}, got)
}

func TestDiscover_NonInstructionFile(t *testing.T) {
	root := fixture(t)
	p := newProvider(t, root)

	r, ok := p.Claim(filepath.Join(root, "src", "main.py"))
	require.True(t, ok)
	assert.Empty(t, slices.Collect(p.Discover(r)))

	d, ok := p.Claim(filepath.Join(root, "src"))
	require.True(t, ok)
	assert.Empty(t, slices.Collect(p.Discover(d)))
}

func TestDiscover_ForeignRecord(t *testing.T) {
	p := newProvider(t, fixture(t))
	assert.Empty(t, slices.Collect(p.Discover(foreign{})))
}

type foreign struct{}

func (foreign) Source() string          { return "elsewhere.txt" }
func (foreign) Content() (string, bool) { return "./main.py", true }

func TestFile_ContentFailures(t *testing.T) {
	root := fixture(t)
	p := newProvider(t, root)

	binary := filepath.Join(root, "src", "blob.txt")
	require.NoError(t, os.WriteFile(binary, []byte{0xff, 0xfe, 0x00, 0x81}, 0o644))
	r, ok := p.Claim(binary)
	require.True(t, ok)
	_, ok = r.(*File).Content()
	assert.False(t, ok, "invalid UTF-8 must be absent")

	require.NoError(t, os.Remove(binary))
	_, ok = r.(*File).Content()
	assert.False(t, ok, "deleted file must be absent")
}

func TestDir_SymlinkCycleIsCanonical(t *testing.T) {
	root := fixture(t)
	link := filepath.Join(root, "src", "nested", "loop")
	require.NoError(t, os.Symlink(filepath.Join(root, "src"), link))

	p, err := New(Config{InstructionExtensions: []string{"txt"}, Root: root, IgnoreHidden: true})
	require.NoError(t, err)

	r, ok := p.Claim(filepath.Join(root, "src", "nested"))
	require.True(t, ok)
	got := sources(r.(*Dir).Records())
	assert.Contains(t, got, filepath.Join(root, "src"), "symlink resolves to its canonical target")
	assert.NotContains(t, got, link)
}

func TestIsInstruction(t *testing.T) {
	p, err := New(Config{InstructionExtensions: []string{"txt", ".md"}})
	require.NoError(t, err)

	assert.True(t, p.IsInstruction("/a/b.txt"))
	assert.True(t, p.IsInstruction("/a/b.md"))
	assert.False(t, p.IsInstruction("/a/b.py"))
	assert.False(t, p.IsInstruction("/a/txt"))
}
