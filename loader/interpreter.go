package loader

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/fabfab/doc-agent/llm"
)

// Interpreter converts tables into natural-language statements so their facts
// become retrievable as plain text. The completion capability is a black box;
// when it fails the raw cell text is kept verbatim so no table silently
// disappears from the corpus.
type Interpreter struct {
	llm    llm.Client
	logger *log.Logger
}

func NewInterpreter(client llm.Client, logger *log.Logger) *Interpreter {
	if logger == nil {
		logger = log.Default()
	}
	return &Interpreter{llm: client, logger: logger}
}

// Interpret returns retrievable text for the table. On capability failure or
// unusable output it returns the raw fallback text together with an error
// wrapping ErrExtractionFailed; callers log the degradation and keep the text.
func (i *Interpreter) Interpret(ctx context.Context, table TableRecord) (string, error) {
	if len(table.Cells) == 0 {
		return "", fmt.Errorf("%w: empty cell grid", ErrExtractionFailed)
	}

	fallback := rawTableText(table)
	if i.llm == nil {
		return fallback, fmt.Errorf("%w: no completion capability configured", ErrExtractionFailed)
	}

	out, err := llm.Complete(ctx, i.llm, tablePrompt(table))
	if err != nil {
		return fallback, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return fallback, fmt.Errorf("%w: capability returned no statements", ErrExtractionFailed)
	}

	return out, nil
}

const summaryInputLimit = 8000

// Summarize produces a structured overview of the whole document, indexed
// ahead of its content chunks so document-level questions retrieve it first.
// Table rows are included in raw form so figures survive into the summary.
// On capability failure the error wraps ErrExtractionFailed and the document
// is indexed without a summary; callers log and continue.
func (i *Interpreter) Summarize(ctx context.Context, doc *Document) (string, error) {
	if i.llm == nil {
		return "", fmt.Errorf("%w: no completion capability configured", ErrExtractionFailed)
	}

	var sb strings.Builder
	for _, item := range doc.Items {
		if sb.Len() >= summaryInputLimit {
			break
		}
		if item.IsTable() {
			sb.WriteString(rawTableText(*item.Table))
		} else {
			sb.WriteString(item.Text)
		}
		sb.WriteString("\n\n")
	}
	content := sb.String()
	if len(content) > summaryInputLimit {
		content = content[:summaryInputLimit]
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: document has no content to summarize", ErrExtractionFailed)
	}

	prompt := fmt.Sprintf(`Extract the key information from this document as a structured summary. Cover: what the document is about, the main facts, and every important name, amount, percentage, date and location. State facts from tables explicitly. Keep every numeric value exactly as written. Output plain sentences only.

Document:
%s`, content)

	out, err := llm.Complete(ctx, i.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: capability returned no summary", ErrExtractionFailed)
	}
	return out, nil
}

// tablePrompt shapes the grid for the model. Two-column tables are presented
// as key/value pairs, wider tables with their header row called out, mirroring
// how such tables are actually read.
func tablePrompt(table TableRecord) string {
	var sb strings.Builder
	sb.WriteString("Rewrite every fact in this table as standalone sentences. ")
	sb.WriteString("State each row/column relationship explicitly, in the form ")
	sb.WriteString("\"<row label> has <column label> equal to <cell value>\" or an equivalent plain sentence. ")
	sb.WriteString("Keep every numeric value exactly as written. Output only the sentences, one per line.\n\n")

	if width(table.Cells) == 2 {
		sb.WriteString("Key/value table:\n")
		for _, row := range table.Cells {
			if len(row) < 2 || row[0] == "" || row[1] == "" {
				continue
			}
			fmt.Fprintf(&sb, "%s: %s\n", row[0], row[1])
		}
		return sb.String()
	}

	sb.WriteString("Table (first row is the header):\n")
	for _, row := range table.Cells {
		sb.WriteString(strings.Join(row, " | "))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// rawTableText is the degraded representation: rows joined cell-by-cell.
func rawTableText(table TableRecord) string {
	lines := make([]string, 0, len(table.Cells))
	for _, row := range table.Cells {
		line := strings.TrimSpace(strings.Join(row, " | "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func width(cells [][]string) int {
	w := 0
	for _, row := range cells {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}
