package loader

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		path string
		want Format
	}{
		{"report.pdf", FormatPDF},
		{"REPORT.PDF", FormatPDF},
		{"notes.docx", FormatDOCX},
		{"legacy.doc", FormatDOCX},
		{"data.txt", FormatUnknown},
		{"noextension", FormatUnknown},
	}
	for _, tc := range cases {
		if got := DetectFormat(tc.path); got != tc.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	data := []byte("plain text")
	_, err := Load(context.Background(), "data.txt", FormatUnknown, bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLoadRejectsCorruptArchive(t *testing.T) {
	data := []byte("this is not a zip archive")
	_, err := Load(context.Background(), "broken.docx", FormatDOCX, bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, ErrCorruptDocument) {
		t.Fatalf("expected ErrCorruptDocument, got %v", err)
	}
}

func TestLoadFileUnknownExtension(t *testing.T) {
	_, err := LoadFile(context.Background(), "/tmp/whatever.csv")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSplitTableLine(t *testing.T) {
	cells, ok := splitTableLine("Region | Price | Volume")
	if !ok {
		t.Fatal("expected pipe-delimited line to parse as a table row")
	}
	want := []string{"Region", "Price", "Volume"}
	if len(cells) != len(want) {
		t.Fatalf("got %d cells, want %d", len(cells), len(want))
	}
	for i := range want {
		if cells[i] != want[i] {
			t.Errorf("cell %d = %q, want %q", i, cells[i], want[i])
		}
	}

	if _, ok := splitTableLine("A sentence without any delimiter."); ok {
		t.Error("plain sentence misdetected as a table row")
	}
}

func TestSplitPageItemsFoldsTableRuns(t *testing.T) {
	text := strings.Join([]string{
		"Overview of regional pricing.",
		"Region | Price",
		"North | $10",
		"South | $12",
		"Totals are audited.",
	}, "\n")

	items := splitPageItems(text, 4)

	var tables int
	for _, item := range items {
		if !item.IsTable() {
			continue
		}
		tables++
		if item.Table.Page != 4 {
			t.Errorf("table record page = %d, want 4", item.Table.Page)
		}
		if len(item.Table.Cells) != 3 {
			t.Errorf("table rows = %d, want 3", len(item.Table.Cells))
		}
	}
	if tables != 1 {
		t.Fatalf("expected one folded table, got %d in %+v", tables, items)
	}
}
