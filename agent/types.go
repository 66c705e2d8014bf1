package agent

import (
	"strings"

	"github.com/fabfab/doc-agent/chunker"
	"github.com/fabfab/doc-agent/knowledge"
)

// Intent is the closed routing classification of a resolved question.
// Classification is advisory: anything unrecognized maps to IntentGeneral.
type Intent string

const (
	IntentLocation   Intent = "location"
	IntentMetric     Intent = "metric"
	IntentPricing    Intent = "pricing"
	IntentDefinition Intent = "definition"
	IntentComparison Intent = "comparison"
	IntentGeneral    Intent = "general"
	IntentOutOfScope Intent = "out_of_scope"
)

// ParseIntent maps free-form classifier output onto the closed enumeration.
func ParseIntent(raw string) Intent {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, intent := range []Intent{
		IntentLocation, IntentMetric, IntentPricing,
		IntentDefinition, IntentComparison, IntentOutOfScope,
	} {
		if strings.Contains(normalized, string(intent)) {
			return intent
		}
	}
	if strings.Contains(normalized, "quantity") || strings.Contains(normalized, "number") {
		return IntentMetric
	}
	if strings.Contains(normalized, "price") || strings.Contains(normalized, "cost") {
		return IntentPricing
	}
	return IntentGeneral
}

// RetrievalResult ties a retrieved chunk to its similarity score and the query
// variant that produced it.
type RetrievalResult struct {
	Chunk   chunker.Chunk
	Score   float64
	Variant string
}

// Verdict is the boolean-plus-reason output of the relevance check; it alone
// decides whether the turn reaches generation.
type Verdict struct {
	Relevant bool
	Reason   string
}

type Citation struct {
	Source  string
	Page    int
	ChunkID string
	Insight knowledge.DocumentInsight
}

// Answer is the sole externally observable result of one turn.
type Answer struct {
	Text       string
	Citations  []Citation
	Intent     Intent
	OutOfScope bool
}
