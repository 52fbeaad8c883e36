package main

import (
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
)

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

// writeOutput sends the rendered report to its destination: a file, the
// clipboard, or stdout. A failed clipboard write falls back to stdout.
func writeOutput(stdout io.Writer, text string, opts options, logger *log.Logger) error {
	switch {
	case opts.OutputFile != "":
		if err := os.WriteFile(opts.OutputFile, []byte(text), 0o644); err != nil {
			return fmt.Errorf("writing output file %s: %w", opts.OutputFile, err)
		}
		logger.Info("Output saved", "path", opts.OutputFile)
	case opts.CopyToClipboard:
		if err := writeClipboard(text); err != nil {
			logger.Warn("Could not write to clipboard, printing instead", "error", err)
			_, err = io.WriteString(stdout, text)
			return err
		}
		logger.Info("Output copied to clipboard")
	default:
		_, err := io.WriteString(stdout, text)
		return err
	}
	return nil
}
