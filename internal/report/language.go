package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LanguageInfo holds the parts of a languages.yml entry used for detection.
type LanguageInfo struct {
	Type       string   `yaml:"type"`
	Extensions []string `yaml:"extensions"`
	Filenames  []string `yaml:"filenames"`
}

// Languages maps file names and extensions to fence tags.
type Languages struct {
	extensionMap map[string]string // ".go" -> "go"
	filenameMap  map[string]string // "Makefile" -> "makefile"
}

var defaultExtensions = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".json": "json",
	".svg":  "svg",
	".html": "html",
	".css":  "css",
	".md":   "markdown",
	".yaml": "yaml",
	".yml":  "yaml",
	".sh":   "bash",
	".bash": "bash",
	".rs":   "rust",
	".go":   "go",
	".java": "java",
	".cpp":  "cpp",
	".c":    "c",
	".ts":   "typescript",
}

// DefaultLanguages returns the built-in extension table.
func DefaultLanguages() *Languages {
	l := &Languages{
		extensionMap: make(map[string]string, len(defaultExtensions)),
		filenameMap:  make(map[string]string),
	}
	for ext, lang := range defaultExtensions {
		l.extensionMap[ext] = lang
	}
	return l
}

// LoadLanguages reads a languages.yml (language name -> LanguageInfo) and
// layers it over the built-in table. Entries from the file win.
func LoadLanguages(path string) (*Languages, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading language file %s: %w", path, err)
	}

	var langs map[string]LanguageInfo
	if err := yaml.Unmarshal(data, &langs); err != nil {
		return nil, fmt.Errorf("error parsing language file %s: %w", path, err)
	}

	l := DefaultLanguages()
	for name, info := range langs {
		tag := strings.ToLower(name)
		for _, ext := range info.Extensions {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			l.extensionMap[ext] = tag
		}
		for _, fname := range info.Filenames {
			l.filenameMap[fname] = tag
		}
	}
	return l, nil
}

// FindLanguages returns the first languages.yml found in dirs, or "".
func FindLanguages(dirs ...string) string {
	for _, dir := range dirs {
		path := filepath.Join(dir, "languages.yml")
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

// Language returns the fence tag for path, or "" when unknown. Exact file
// names take precedence over extensions.
func (l *Languages) Language(path string) string {
	if l == nil {
		return ""
	}
	base := filepath.Base(path)
	if lang, ok := l.filenameMap[base]; ok {
		return lang
	}
	return l.extensionMap[strings.ToLower(filepath.Ext(base))]
}
