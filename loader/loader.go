// Package loader extracts text blocks and tables from PDF and DOCX files into
// a uniform, ordered intermediate representation used by the chunker.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither PDF nor DOCX.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrCorruptDocument is returned when parsing cannot recover any content.
	ErrCorruptDocument = errors.New("corrupt document")
	// ErrExtractionFailed marks a table whose interpretation degraded to raw
	// cell text. Non-fatal: the caller keeps the fallback text.
	ErrExtractionFailed = errors.New("table extraction failed")
)

// Format enumerates supported document payload formats.
type Format string

const (
	FormatUnknown Format = ""
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
)

// DetectFormat infers a document format from the provided path's extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF
	case ".docx", ".doc":
		return FormatDOCX
	default:
		return FormatUnknown
	}
}

// TableRecord is a table's raw cell grid plus its location. It is consumed by
// the Interpreter and never persisted.
type TableRecord struct {
	Page  int
	Cells [][]string
}

// Item is one ordered element of a loaded document: either a text block or a
// table. Page is the PDF page number; for DOCX it is the body-element order.
type Item struct {
	Page  int
	Text  string
	Table *TableRecord
}

func (i Item) IsTable() bool { return i.Table != nil }

// Document is the immutable result of loading one file. It is owned by the
// ingestion pipeline and discarded after chunking.
type Document struct {
	ID     uuid.UUID
	Name   string
	Format Format
	Items  []Item
}

// Load parses a document of the declared format from r. It is a pure
// transformation: no side effects beyond reading the input.
func Load(ctx context.Context, name string, format Format, r io.ReaderAt, size int64) (*Document, error) {
	var (
		items []Item
		err   error
	)

	switch format {
	case FormatPDF:
		items, err = parsePDF(ctx, r, size)
	case FormatDOCX:
		items, err = parseDOCX(ctx, r, size)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no content recovered from %s", ErrCorruptDocument, name)
	}

	return &Document{
		ID:     uuid.New(),
		Name:   name,
		Format: format,
		Items:  items,
	}, nil
}

// LoadFile loads a document from disk, inferring the format from the extension.
func LoadFile(ctx context.Context, path string) (*Document, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	return Load(ctx, filepath.Base(path), format, f, info.Size())
}
