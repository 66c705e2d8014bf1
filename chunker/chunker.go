// Package chunker splits enriched document text into overlapping chunks and
// tags each chunk with detected entities.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/fabfab/doc-agent/loader"
)

const (
	defaultChunkSize    = 2000
	defaultChunkOverlap = 400
)

// Chunk is the unit of retrievable content.
type Chunk struct {
	ID        string
	DocID     uuid.UUID
	DocName   string
	Index     int
	Page      int
	Text      string
	Entities  []string
	FromTable bool
	Summary   bool
}

// Segment is one stretch of enriched text for a document: loader text,
// interpreted table output or the document summary, tagged with its location.
type Segment struct {
	Page      int
	Text      string
	FromTable bool
	Summary   bool
}

type Splitter struct {
	MaxSize int
	Overlap int
}

func NewSplitter(maxSize, overlap int) *Splitter {
	if maxSize <= 0 {
		maxSize = defaultChunkSize
	}
	if overlap < 0 || overlap >= maxSize {
		overlap = defaultChunkOverlap
		if overlap >= maxSize {
			overlap = maxSize / 5
		}
	}
	return &Splitter{MaxSize: maxSize, Overlap: overlap}
}

// Split produces ordered chunks for one document. Table and summary segments
// are chunked on their own so their flags stay per chunk; consecutive text
// segments are merged so overlap spans their boundaries.
func (s *Splitter) Split(doc *loader.Document, segments []Segment) []Chunk {
	var chunks []Chunk

	appendChunks := func(text string, page int, fromTable, summary bool) {
		for _, piece := range s.splitText(text) {
			idx := len(chunks)
			chunks = append(chunks, Chunk{
				ID:        fmt.Sprintf("%s:%d", doc.ID, idx),
				DocID:     doc.ID,
				DocName:   doc.Name,
				Index:     idx,
				Page:      page,
				Text:      piece,
				Entities:  DetectEntities(piece),
				FromTable: fromTable,
				Summary:   summary,
			})
		}
	}

	var (
		runTexts []string
		runPage  int
	)
	flushRun := func() {
		if len(runTexts) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(runTexts, "\n\n"))
		runTexts = runTexts[:0]
		if joined != "" {
			appendChunks(joined, runPage, false, false)
		}
	}

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if seg.FromTable || seg.Summary {
			flushRun()
			appendChunks(text, seg.Page, seg.FromTable, seg.Summary)
			continue
		}
		if len(runTexts) == 0 {
			runPage = seg.Page
		}
		runTexts = append(runTexts, text)
	}
	flushRun()

	return chunks
}

// splitText cuts text into pieces of at most MaxSize bytes where consecutive
// pieces share exactly Overlap bytes. Boundaries prefer a paragraph break,
// then a sentence end, inside a tolerance window near the limit; a hard cut
// is the last resort. Whitespace-only pieces (an interior whitespace run
// longer than MaxSize) are dropped while the scan continues past them, so no
// piece is ever empty.
func (s *Splitter) splitText(text string) []string {
	if len(text) <= s.MaxSize {
		return []string{text}
	}

	tolerance := s.MaxSize / 10
	var pieces []string

	start := 0
	for start < len(text) {
		end := start + s.MaxSize
		if end >= len(text) {
			if piece := text[start:]; strings.TrimSpace(piece) != "" {
				pieces = append(pieces, piece)
			}
			break
		}

		end = breakPoint(text, start, end, tolerance)
		if piece := text[start:end]; strings.TrimSpace(piece) != "" {
			pieces = append(pieces, piece)
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		// Overlap arithmetic works in bytes; never start a piece mid-rune.
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}

	return pieces
}

// breakPoint searches backwards from the hard limit for a semantic boundary.
func breakPoint(text string, start, limit, tolerance int) int {
	window := text[limit-tolerance : limit]

	if idx := strings.LastIndex(window, "\n\n"); idx >= 0 {
		return limit - tolerance + idx + 2
	}
	if idx := strings.LastIndex(window, ". "); idx >= 0 {
		return limit - tolerance + idx + 2
	}
	if idx := strings.LastIndex(window, "\n"); idx >= 0 {
		return limit - tolerance + idx + 1
	}
	if idx := strings.LastIndex(window, " "); idx >= 0 {
		return limit - tolerance + idx + 1
	}
	// Hard cut: back up to a rune boundary so the piece stays valid UTF-8.
	for limit > start && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return limit
}
