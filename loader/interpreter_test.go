package loader

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fabfab/doc-agent/llm"
)

type stubClient struct {
	out     string
	err     error
	prompts []string
}

var _ llm.Client = (*stubClient)(nil)

func (c *stubClient) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	if len(messages) > 0 {
		c.prompts = append(c.prompts, messages[len(messages)-1].Content)
	}
	return c.out, c.err
}

func sampleTable() TableRecord {
	return TableRecord{
		Page: 2,
		Cells: [][]string{
			{"Region", "Price"},
			{"North", "$10"},
		},
	}
}

func TestInterpretReturnsSentences(t *testing.T) {
	client := &stubClient{out: "North has Price equal to $10."}
	interp := NewInterpreter(client, nil)

	text, err := interp.Interpret(context.Background(), sampleTable())
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if text != "North has Price equal to $10." {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestInterpretFallsBackOnClientError(t *testing.T) {
	client := &stubClient{err: llm.ErrUnavailable}
	interp := NewInterpreter(client, nil)

	text, err := interp.Interpret(context.Background(), sampleTable())
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
	if text != "Region | Price\nNorth | $10" {
		t.Errorf("fallback text = %q", text)
	}
}

func TestInterpretFallsBackOnEmptyOutput(t *testing.T) {
	client := &stubClient{out: "   \n"}
	interp := NewInterpreter(client, nil)

	text, err := interp.Interpret(context.Background(), sampleTable())
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
	if text == "" {
		t.Error("fallback text must not be empty")
	}
}

func TestInterpretEmptyGrid(t *testing.T) {
	interp := NewInterpreter(&stubClient{}, nil)
	text, err := interp.Interpret(context.Background(), TableRecord{Page: 1})
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
	if text != "" {
		t.Errorf("empty grid should yield no text, got %q", text)
	}
}

func TestInterpretNoClient(t *testing.T) {
	interp := NewInterpreter(nil, nil)
	text, err := interp.Interpret(context.Background(), sampleTable())
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
	if text == "" {
		t.Error("fallback text must not be empty")
	}
}

func sampleDoc() *Document {
	table := sampleTable()
	return &Document{
		Name:   "report.docx",
		Format: FormatDOCX,
		Items: []Item{
			{Page: 1, Text: "Annual pricing report."},
			{Page: 2, Table: &table},
		},
	}
}

func TestSummarizeReturnsOverview(t *testing.T) {
	client := &stubClient{out: "The document reports regional pricing; North is priced at $10."}
	interp := NewInterpreter(client, nil)

	summary, err := interp.Summarize(context.Background(), sampleDoc())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "The document reports regional pricing; North is priced at $10." {
		t.Errorf("unexpected summary: %q", summary)
	}
}

func TestSummarizePromptIncludesTableRows(t *testing.T) {
	client := &stubClient{out: "summary"}
	interp := NewInterpreter(client, nil)

	if _, err := interp.Summarize(context.Background(), sampleDoc()); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(client.prompts) != 1 {
		t.Fatalf("expected one model call, got %d", len(client.prompts))
	}
	prompt := client.prompts[0]
	if !strings.Contains(prompt, "Annual pricing report.") {
		t.Errorf("prompt missing document text:\n%s", prompt)
	}
	if !strings.Contains(prompt, "North | $10") {
		t.Errorf("prompt missing table rows:\n%s", prompt)
	}
}

func TestSummarizeFailureIsNonFatalError(t *testing.T) {
	client := &stubClient{err: llm.ErrUnavailable}
	interp := NewInterpreter(client, nil)

	summary, err := interp.Summarize(context.Background(), sampleDoc())
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
	if summary != "" {
		t.Errorf("failed summary must yield no text, got %q", summary)
	}
}

func TestSummarizeEmptyDocument(t *testing.T) {
	interp := NewInterpreter(&stubClient{out: "x"}, nil)
	_, err := interp.Summarize(context.Background(), &Document{Name: "empty.docx"})
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestTablePromptKeyValueShape(t *testing.T) {
	prompt := tablePrompt(sampleTable())
	if !strings.Contains(prompt, "Key/value table:") {
		t.Errorf("two-column table not presented as key/value:\n%s", prompt)
	}
	if !strings.Contains(prompt, "North: $10") {
		t.Errorf("row pair missing from prompt:\n%s", prompt)
	}
}

func TestTablePromptWideShape(t *testing.T) {
	wide := TableRecord{Cells: [][]string{
		{"Region", "Price", "Volume"},
		{"North", "$10", "120"},
	}}
	prompt := tablePrompt(wide)
	if !strings.Contains(prompt, "first row is the header") {
		t.Errorf("wide table not presented with header callout:\n%s", prompt)
	}
	if !strings.Contains(prompt, "North | $10 | 120") {
		t.Errorf("wide row missing from prompt:\n%s", prompt)
	}
}
