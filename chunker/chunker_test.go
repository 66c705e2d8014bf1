package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/fabfab/doc-agent/loader"
)

func testDoc() *loader.Document {
	return &loader.Document{
		ID:     uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		Name:   "report.pdf",
		Format: loader.FormatPDF,
	}
}

func TestSplitShortDocumentSingleChunk(t *testing.T) {
	s := NewSplitter(2000, 400)
	chunks := s.Split(testDoc(), []Segment{{Page: 3, Text: "Quarterly revenue grew modestly."}})

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Index != 0 || c.Page != 3 || c.FromTable {
		t.Errorf("unexpected chunk metadata: %+v", c)
	}
	if c.ID != c.DocID.String()+":0" {
		t.Errorf("chunk ID %q does not follow docID:index", c.ID)
	}
	if c.Text != "Quarterly revenue grew modestly." {
		t.Errorf("chunk text altered: %q", c.Text)
	}
}

func TestSplitConsecutiveChunksShareOverlap(t *testing.T) {
	s := NewSplitter(500, 100)
	text := strings.TrimSpace(strings.Repeat("The branch network expanded again this year. ", 60))
	chunks := s.Split(testDoc(), []Segment{{Page: 1, Text: text}})

	if len(chunks) < 3 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Text) > s.MaxSize {
			t.Errorf("chunk %d exceeds max size: %d", i, len(c.Text))
		}
		if i == 0 {
			continue
		}
		prev := chunks[i-1].Text
		shared := prev[len(prev)-s.Overlap:]
		if !strings.HasPrefix(c.Text, shared) {
			t.Errorf("chunk %d does not start with the previous chunk's last %d characters", i, s.Overlap)
		}
	}
}

func TestSplitMergesTextRunsAcrossSegments(t *testing.T) {
	s := NewSplitter(2000, 400)
	chunks := s.Split(testDoc(), []Segment{
		{Page: 1, Text: "First paragraph."},
		{Page: 2, Text: "Second paragraph."},
	})

	if len(chunks) != 1 {
		t.Fatalf("expected merged run in 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "First paragraph.\n\nSecond paragraph." {
		t.Errorf("unexpected merged text: %q", chunks[0].Text)
	}
	if chunks[0].Page != 1 {
		t.Errorf("merged chunk should keep the run's first page, got %d", chunks[0].Page)
	}
}

func TestSplitTableSegmentsChunkAlone(t *testing.T) {
	s := NewSplitter(2000, 400)
	chunks := s.Split(testDoc(), []Segment{
		{Page: 1, Text: "Intro text."},
		{Page: 2, Text: "North region has price equal to $10.", FromTable: true},
		{Page: 3, Text: "Closing text."},
	})

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].FromTable || !chunks[1].FromTable || chunks[2].FromTable {
		t.Errorf("from-table flags wrong: %v %v %v",
			chunks[0].FromTable, chunks[1].FromTable, chunks[2].FromTable)
	}
	if chunks[1].Page != 2 {
		t.Errorf("table chunk page = %d, want 2", chunks[1].Page)
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
	}
}

func TestSplitSkipsWhitespaceSegments(t *testing.T) {
	s := NewSplitter(2000, 400)
	chunks := s.Split(testDoc(), []Segment{
		{Page: 1, Text: "   \n\t  "},
		{Page: 2, Text: ""},
	})
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for whitespace segments, got %d", len(chunks))
	}
}

func TestSplitDropsInteriorWhitespaceRuns(t *testing.T) {
	s := NewSplitter(500, 100)
	text := "Opening." + strings.Repeat(" ", 1200) + "Closing."
	chunks := s.Split(testDoc(), []Segment{{Page: 1, Text: text}})

	if len(chunks) == 0 {
		t.Fatal("expected chunks around the whitespace run")
	}
	var sawOpening, sawClosing bool
	for i, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			t.Errorf("chunk %d is whitespace-only (%d chars)", i, len(c.Text))
		}
		if strings.Contains(c.Text, "Opening.") {
			sawOpening = true
		}
		if strings.Contains(c.Text, "Closing.") {
			sawClosing = true
		}
	}
	if !sawOpening || !sawClosing {
		t.Errorf("content on both sides of the run must survive: opening=%v closing=%v",
			sawOpening, sawClosing)
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d after dropped pieces", i, c.Index)
		}
	}
}

func TestSplitKeepsChunksValidUTF8(t *testing.T) {
	s := NewSplitter(500, 100)
	// Multi-byte runes and no ASCII separators force the hard-cut fallback.
	text := strings.Repeat("数据分析报告显示收入增长", 100)
	chunks := s.Split(testDoc(), []Segment{{Page: 1, Text: text}})

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk %d contains invalid UTF-8 at its edges", i)
		}
		if len(c.Text) > s.MaxSize {
			t.Errorf("chunk %d exceeds max size: %d", i, len(c.Text))
		}
	}
}

func TestSplitSummarySegmentChunksAlone(t *testing.T) {
	s := NewSplitter(2000, 400)
	chunks := s.Split(testDoc(), []Segment{
		{Page: 0, Text: "The document covers regional pricing.", Summary: true},
		{Page: 1, Text: "First paragraph."},
		{Page: 2, Text: "Second paragraph."},
	})

	if len(chunks) != 2 {
		t.Fatalf("expected summary chunk plus merged text run, got %d", len(chunks))
	}
	if !chunks[0].Summary || chunks[0].Index != 0 {
		t.Errorf("summary must be the first, flagged chunk: %+v", chunks[0])
	}
	if chunks[1].Summary {
		t.Error("content chunk wrongly flagged as summary")
	}
}

func TestDetectEntities(t *testing.T) {
	text := "Surya Finance reported revenue of $12.5 million in 2023, up 14% across Mumbai branches."
	entities := DetectEntities(text)

	for _, want := range []string{"$12.5 million", "14%", "2023", "Surya Finance", "Mumbai"} {
		if !containsEntity(entities, want) {
			t.Errorf("entities %v missing %q", entities, want)
		}
	}
}

func TestDetectEntitiesSkipsSentenceStarts(t *testing.T) {
	entities := DetectEntities("The report was filed. It covers two quarters.")
	for _, e := range entities {
		if e == "The" || e == "It" {
			t.Errorf("stopword %q detected as entity", e)
		}
	}
}

func TestDetectEntitiesDedupsCaseInsensitive(t *testing.T) {
	entities := DetectEntities("Mumbai office and MUMBAI branch reports.")
	count := 0
	for _, e := range entities {
		if strings.EqualFold(e, "mumbai") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected a single Mumbai entity, got %d in %v", count, entities)
	}
}

func containsEntity(entities []string, want string) bool {
	for _, e := range entities {
		if e == want {
			return true
		}
	}
	return false
}
