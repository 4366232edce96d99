package parser

import (
	"regexp"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Cells inside an extracted PDF line are separated by tabs or runs of two or
// more spaces; single spaces stay inside a cell ("Jane Doe").
var pdfCellSplit = regexp.MustCompile(`\t+| {2,}`)

// parsePDF does best-effort table extraction from PDF text. The first line
// that splits into two or more cells becomes the header; subsequent
// multi-cell lines become rows. Callers see this strategy flagged as
// low-confidence and must expect more validation failures downstream.
func parsePDF(data []byte) ([][]string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	var rows [][]string
	for page := 0; page < doc.NumPage(); page++ {
		text, err := doc.Text(page)
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			cells := splitPDFLine(line)
			if len(cells) < 2 {
				// Titles, page numbers, footers
				continue
			}
			rows = append(rows, cells)
		}
	}
	return rows, nil
}

func splitPDFLine(line string) []string {
	parts := pdfCellSplit.Split(line, -1)
	cells := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cells = append(cells, p)
		}
	}
	return cells
}
