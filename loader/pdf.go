package loader

import (
	"context"
	"fmt"
	"io"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// parsePDF extracts page-tagged items from a PDF. Runs of pipe-delimited lines
// inside a page are folded into TableRecords so tabular facts survive as cell
// grids instead of garbled prose.
func parsePDF(ctx context.Context, r io.ReaderAt, size int64) ([]Item, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", ErrCorruptDocument, err)
	}

	items := make([]Item, 0, reader.NumPage())
	for num := 1; num <= reader.NumPage(); num++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// One unreadable page does not corrupt the document.
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		items = append(items, splitPageItems(text, num)...)
	}

	return items, nil
}

// splitPageItems separates a page's text into text blocks and table records.
func splitPageItems(text string, page int) []Item {
	lines := strings.Split(text, "\n")

	var (
		items     []Item
		textBuf   []string
		tableRows [][]string
	)

	flushText := func() {
		joined := strings.TrimSpace(strings.Join(textBuf, "\n"))
		textBuf = textBuf[:0]
		if joined != "" {
			items = append(items, Item{Page: page, Text: joined})
		}
	}
	flushTable := func() {
		if len(tableRows) == 0 {
			return
		}
		rows := tableRows
		tableRows = nil
		items = append(items, Item{Page: page, Table: &TableRecord{Page: page, Cells: rows}})
	}

	for _, line := range lines {
		if cells, ok := splitTableLine(line); ok {
			flushText()
			tableRows = append(tableRows, cells)
			continue
		}
		flushTable()
		textBuf = append(textBuf, line)
	}
	flushText()
	flushTable()

	return items
}

// splitTableLine reports whether a line looks like a delimited table row and
// returns its cells. Single pipes in prose do not qualify.
func splitTableLine(line string) ([]string, bool) {
	trimmed := strings.TrimSpace(line)
	if strings.Count(trimmed, "|") < 1 || len(trimmed) < 3 {
		return nil, false
	}

	parts := strings.Split(strings.Trim(trimmed, "|"), "|")
	if len(parts) < 2 {
		return nil, false
	}

	cells := make([]string, 0, len(parts))
	for _, part := range parts {
		cells = append(cells, strings.TrimSpace(part))
	}
	return cells, true
}
