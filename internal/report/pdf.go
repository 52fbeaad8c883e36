package report

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth  = 210 // A4 width in mm
	pdfMargin     = 10  // mm
	pdfLineHeight = 5   // mm
	pdfFontSize   = 9
	pdfTabWidth   = 4 // spaces per tab
)

// WritePDF renders d as a syntax-highlighted PDF at path.
func WritePDF(path string, d Data) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AddPage()

	style := styles.Get("github")
	if style == nil {
		style = styles.Fallback
	}
	width := float64(pdfPageWidth - 2*pdfMargin)

	pdf.SetFont("Helvetica", "B", pdfFontSize+1)
	pdf.MultiCell(width, pdfLineHeight, "Project Path: "+d.BasePath, "", "L", false)
	pdf.Ln(pdfLineHeight / 2.0)

	pdf.SetFont("Courier", "", pdfFontSize)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(width, pdfLineHeight, treeForPDF(d.Tree), "", "L", false)

	for _, file := range d.Files {
		pdf.AddPage()

		pdf.SetFont("Helvetica", "B", pdfFontSize+1)
		pdf.SetTextColor(0, 0, 0)
		pdf.MultiCell(width, pdfLineHeight, "File: "+file.Path, "", "L", false)
		if file.Tokens > 0 {
			pdf.SetFont("Helvetica", "", pdfFontSize-1)
			pdf.MultiCell(width, pdfLineHeight, fmt.Sprintf("Tokens: %d", file.Tokens), "", "L", false)
		}
		pdf.Ln(pdfLineHeight / 2.0)
		pdf.Line(pdfMargin, pdf.GetY(), pdfPageWidth-pdfMargin, pdf.GetY())
		pdf.Ln(pdfLineHeight / 2.0)

		if err := writeHighlightedCode(pdf, style, file); err != nil {
			pdf.SetFont("Courier", "", pdfFontSize)
			pdf.SetTextColor(0, 0, 0)
			pdf.MultiCell(width, pdfLineHeight, file.Content, "", "L", false)
		}
	}

	if s := d.Summary; s != nil {
		pdf.Ln(pdfLineHeight)
		pdf.SetFont("Helvetica", "B", pdfFontSize+1)
		pdf.SetTextColor(0, 0, 0)
		pdf.MultiCell(width, pdfLineHeight, "--- Summary ---", "", "L", false)
		pdf.SetFont("Helvetica", "", pdfFontSize)
		text := fmt.Sprintf("Total files processed: %d\nTotal size: %d bytes", s.Files, s.Bytes)
		if s.CountTokens {
			text += fmt.Sprintf("\nTotal tokens: %d", s.Tokens)
		}
		pdf.MultiCell(width, pdfLineHeight, text, "", "L", false)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to save PDF to %s: %w", path, err)
	}
	return nil
}

// treeForPDF swaps the box-drawing characters for ASCII; the core PDF
// fonts are Latin-1 only.
func treeForPDF(tree string) string {
	return strings.NewReplacer("├── ", "|-- ", "└── ", "`-- ", "│   ", "|   ").Replace(tree)
}

// writeHighlightedCode tokenizes the file with chroma and writes each token
// with the style's colour.
func writeHighlightedCode(pdf *gofpdf.Fpdf, style *chroma.Style, file File) error {
	lexer := lexers.Match(file.Path)
	if lexer == nil && file.Language != "" {
		lexer = lexers.Get(file.Language)
	}
	if lexer == nil {
		lexer = lexers.Analyse(file.Content)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, file.Content)
	if err != nil {
		return fmt.Errorf("tokenization failed: %w", err)
	}

	pdf.SetFont("Courier", "", pdfFontSize)
	for token := iterator(); token != chroma.EOF; token = iterator() {
		entry := style.Get(token.Type)
		fontStyle := ""
		if entry.Bold == chroma.Yes {
			fontStyle += "B"
		}
		if entry.Italic == chroma.Yes {
			fontStyle += "I"
		}
		pdf.SetFontStyle(fontStyle)

		colour := entry.Colour
		if !colour.IsSet() {
			colour = style.Get(chroma.Text).Colour
		}
		if colour.IsSet() {
			pdf.SetTextColor(int(colour.Red()), int(colour.Green()), int(colour.Blue()))
		} else {
			pdf.SetTextColor(0, 0, 0)
		}

		pdf.Write(pdfLineHeight, strings.ReplaceAll(token.Value, "\t", strings.Repeat(" ", pdfTabWidth)))
	}
	pdf.Ln(-1)
	return pdf.Error()
}
