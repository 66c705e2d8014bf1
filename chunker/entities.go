package chunker

import (
	"regexp"
	"strings"
)

const maxEntitiesPerChunk = 16

var (
	moneyPattern   = regexp.MustCompile(`[$€£₹]\s?\d[\d,.]*(?:\s?(?:million|billion|M|B))?`)
	percentPattern = regexp.MustCompile(`\d+(?:\.\d+)?\s?%`)
	yearPattern    = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	// Capitalized token runs: "New York", "Surya Finance", acronyms like "EU".
	properPattern = regexp.MustCompile(`\b[A-Z][A-Za-z0-9&]*(?:\s+[A-Z][A-Za-z0-9&]*)*\b`)
)

// Sentence-initial words and other capitalized noise that are not entities.
var entityStopwords = map[string]struct{}{
	"The": {}, "A": {}, "An": {}, "In": {}, "On": {}, "At": {}, "Of": {},
	"For": {}, "And": {}, "Or": {}, "But": {}, "It": {}, "Its": {}, "This": {},
	"That": {}, "These": {}, "Those": {}, "We": {}, "Our": {}, "You": {},
	"Is": {}, "Are": {}, "Was": {}, "Were": {}, "To": {}, "From": {}, "With": {},
	"As": {}, "By": {}, "If": {}, "What": {}, "How": {}, "Table": {}, "Page": {},
}

// DetectEntities extracts named entities from one chunk's text: currency
// amounts, percentages, years and capitalized name runs. Used as chunk
// metadata for filtering and for the knowledge graph.
func DetectEntities(text string) []string {
	seen := make(map[string]struct{})
	entities := make([]string, 0, maxEntitiesPerChunk)

	add := func(value string) {
		value = strings.TrimSpace(value)
		if value == "" || len(entities) >= maxEntitiesPerChunk {
			return
		}
		key := strings.ToLower(value)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		entities = append(entities, value)
	}

	for _, m := range moneyPattern.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range percentPattern.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range yearPattern.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range properPattern.FindAllString(text, -1) {
		if isEntityName(m) {
			add(m)
		}
	}

	return entities
}

func isEntityName(candidate string) bool {
	words := strings.Fields(candidate)
	if len(words) == 0 {
		return false
	}
	if len(words) == 1 {
		if _, stopped := entityStopwords[words[0]]; stopped {
			return false
		}
		// Single lowercase-tailed words are usually sentence starts; keep
		// acronyms and longer proper names.
		if len(words[0]) < 2 {
			return false
		}
		return words[0] == strings.ToUpper(words[0]) || len(words[0]) >= 4
	}
	// Multi-word runs that merely start a sentence still begin with a stopword.
	if _, stopped := entityStopwords[words[0]]; stopped {
		return false
	}
	return true
}
