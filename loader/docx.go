package loader

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// parseDOCX walks word/document.xml in body order, emitting a text block per
// paragraph and a TableRecord per table, the same element walk the corpus of
// .docx files actually stores. No third-party DOCX parser is involved: the
// format is a zip of WordprocessingML.
func parseDOCX(ctx context.Context, r io.ReaderAt, size int64) ([]Item, error) {
	archive, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: open docx archive: %v", ErrCorruptDocument, err)
	}

	var docFile *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("%w: docx missing word/document.xml", ErrCorruptDocument)
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open word/document.xml: %v", ErrCorruptDocument, err)
	}
	defer rc.Close()

	items, err := walkDocumentXML(ctx, rc)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func walkDocumentXML(ctx context.Context, r io.Reader) ([]Item, error) {
	dec := xml.NewDecoder(r)

	var (
		items []Item
		order int
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: decode document.xml: %v", ErrCorruptDocument, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "tbl":
			order++
			cells, err := decodeTable(dec, start)
			if err != nil {
				return nil, err
			}
			if len(cells) > 0 {
				items = append(items, Item{Page: order, Table: &TableRecord{Page: order, Cells: cells}})
			}
		case "p":
			order++
			text, err := decodeParagraph(dec, start)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(text) != "" {
				items = append(items, Item{Page: order, Text: strings.TrimSpace(text)})
			}
		}
	}

	return items, nil
}

// decodeParagraph collects the character data of a w:p element.
func decodeParagraph(dec *xml.Decoder, start xml.StartElement) (string, error) {
	var sb strings.Builder
	depth := 1

	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("%w: truncated paragraph: %v", ErrCorruptDocument, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			// w:tab and w:br inside runs are whitespace in the plain text.
			if t.Name.Local == "tab" {
				sb.WriteByte('\t')
			}
			if t.Name.Local == "br" {
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			depth--
		case xml.CharData:
			sb.Write(t)
		}
	}
	return sb.String(), nil
}

// decodeTable collects a cell grid from a w:tbl element (w:tr rows, w:tc cells).
func decodeTable(dec *xml.Decoder, start xml.StartElement) ([][]string, error) {
	var (
		rows  [][]string
		row   []string
		cell  strings.Builder
		depth = 1

		inRow  bool
		cellAt int // depth at which the current w:tc opened
	)

	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated table: %v", ErrCorruptDocument, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "tr":
				if depth == 2 {
					inRow = true
					row = nil
				}
			case "tc":
				if inRow && cellAt == 0 {
					cellAt = depth
					cell.Reset()
				}
			case "tab":
				if cellAt != 0 {
					cell.WriteByte(' ')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tc":
				if cellAt == depth {
					row = append(row, strings.TrimSpace(cell.String()))
					cellAt = 0
				}
			case "tr":
				if inRow && depth == 2 {
					inRow = false
					if len(row) > 0 {
						rows = append(rows, row)
					}
				}
			}
			depth--
		case xml.CharData:
			if cellAt != 0 {
				cell.Write(t)
			}
		}
	}

	return rows, nil
}
