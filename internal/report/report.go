// Package report renders collected records as a text or PDF report: a
// project path, a source tree and the content of every file.
package report

import (
	_ "embed"
	"fmt"
	"io"
	"sort"
	"text/template"

	"github.com/charmbracelet/log"

	"github.com/jadenpxrk/fileprompt/internal/record"
)

//go:embed report.tmpl
var reportTemplate string

var tmpl = template.Must(template.New("report").Parse(reportTemplate))

// File is one rendered file.
type File struct {
	Path     string
	Language string
	Content  string
	Size     int64
	Tokens   int
}

// Summary holds aggregated information about the processed items.
type Summary struct {
	Files       int
	Bytes       int64
	Tokens      int
	CountTokens bool
	Skipped     int // inputs no provider could handle
}

// Data is everything the report templates consume.
type Data struct {
	BasePath string
	Tree     string
	Files    []File
	Summary  *Summary
}

// Build turns records into report data. Only leaves become files; they are
// sorted by path. Leaves whose content is unavailable are rendered empty.
func Build(records []record.Record, base string, langs *Languages, logger *log.Logger) Data {
	if logger == nil {
		logger = log.Default()
	}

	var files []File
	for _, r := range records {
		leaf, ok := r.(record.Leaf)
		if !ok {
			continue
		}
		content, ok := leaf.Content()
		if !ok {
			logger.Warn("Content unavailable, rendering empty", "path", leaf.Source())
		}
		files = append(files, File{
			Path:     leaf.Source(),
			Language: langs.Language(leaf.Source()),
			Content:  content,
			Size:     int64(len(content)),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	return Data{
		BasePath: base,
		Tree:     Tree(Paths(files), base),
		Files:    files,
	}
}

// Paths returns the file paths in order.
func Paths(files []File) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths
}

// Summarize fills in d.Summary from its files.
func (d *Data) Summarize(countTokens bool, skipped int) {
	s := &Summary{Files: len(d.Files), CountTokens: countTokens, Skipped: skipped}
	for _, f := range d.Files {
		s.Bytes += f.Size
		s.Tokens += f.Tokens
	}
	d.Summary = s
}

// Render writes the text report.
func Render(w io.Writer, d Data) error {
	if err := tmpl.Execute(w, d); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return nil
}
