package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/fabfab/doc-agent/conversation"
	"github.com/fabfab/doc-agent/llm"
)

// contextualize resolves pronouns and implicit references against the session
// history, producing a standalone question. With no prior turns the raw text
// passes through unchanged; the rewrite never introduces content that is not
// traceable to the turn plus history.
func (a *Agent) contextualize(ctx context.Context, session *conversation.Session, raw string) (string, error) {
	if session == nil || session.Len() == 0 {
		return raw, nil
	}

	var history strings.Builder
	for _, turn := range session.Recent(a.opts.HistoryWindow) {
		role := "User"
		if turn.Role == conversation.RoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&history, "%s: %s\n", role, turn.Text)
	}

	prompt := fmt.Sprintf(`Given the conversation history, rewrite the current question so it is standalone and self-contained. Resolve pronouns and implicit references using the history only. Do not add information, do not answer the question. Output only the rewritten question.

Conversation history:
%s
Current question: %s

Standalone question:`, history.String(), raw)

	out, err := llm.Complete(ctx, a.llm, prompt)
	if err != nil {
		return "", err
	}

	resolved := strings.TrimSpace(strings.Trim(strings.TrimSpace(out), `"`))
	if resolved == "" {
		return raw, nil
	}
	return resolved, nil
}

// classifyIntent maps the resolved question to one Intent. Advisory only:
// classifier errors and unrecognized labels fall back to keyword matching and
// finally IntentGeneral, never a hard failure.
func (a *Agent) classifyIntent(ctx context.Context, question string) Intent {
	prompt := fmt.Sprintf(`Classify the question into exactly one category. Answer with the single category word only.

Categories: location, metric, pricing, definition, comparison, general

Question: %s

Category:`, question)

	out, err := llm.Complete(ctx, a.llm, prompt)
	if err != nil {
		a.logger.Printf("intent classification degraded to keywords: %v", err)
		return intentFromKeywords(question)
	}

	intent := ParseIntent(out)
	if intent == IntentGeneral {
		if kw := intentFromKeywords(question); kw != IntentGeneral {
			return kw
		}
	}
	return intent
}

var intentKeywords = map[Intent][]string{
	IntentLocation:   {"where", "branch", "office", "location", "address", "city"},
	IntentMetric:     {"how many", "how much", "count", "total", "number of", "revenue", "metric"},
	IntentPricing:    {"price", "cost", "fee", "charge", "rate", "interest"},
	IntentDefinition: {"what is", "what are", "define", "meaning of", "explain"},
	IntentComparison: {"compare", "versus", "vs", "difference between", "better"},
}

func intentFromKeywords(question string) Intent {
	lowered := strings.ToLower(question)
	// pricing before metric: "how much does it cost" is pricing
	for _, intent := range []Intent{IntentPricing, IntentLocation, IntentComparison, IntentMetric, IntentDefinition} {
		for _, kw := range intentKeywords[intent] {
			if strings.Contains(lowered, kw) {
				return intent
			}
		}
	}
	return IntentGeneral
}

// Domain synonym table used for deterministic variant expansion.
var domainSynonyms = map[string][]string{
	"branch":        {"office", "location", "center"},
	"loan":          {"credit", "financing", "lending"},
	"eligibility":   {"qualification", "criteria", "requirements"},
	"apply":         {"application", "request", "submit"},
	"interest rate": {"rate", "APR", "interest"},
	"cost":          {"price", "fee", "charge"},
	"revenue":       {"income", "earnings", "turnover"},
}

var variantIntentHints = map[Intent]string{
	IntentLocation:   "Prefer phrasings naming places, addresses and offices.",
	IntentMetric:     "Prefer phrasings asking for exact numbers, counts and totals.",
	IntentPricing:    "Prefer phrasings using currency, price and fee wording.",
	IntentDefinition: "Prefer phrasings asking what a term means.",
	IntentComparison: "Prefer phrasings contrasting the compared items explicitly.",
}

// reformulate expands the resolved question into ordered query variants. The
// resolved question is always the first variant; LLM rephrasings and synonym
// substitutions follow, deduplicated case- and whitespace-insensitively in
// first-seen order. The result is never empty: on capability failure the
// synonym expansion alone is used.
func (a *Agent) reformulate(ctx context.Context, question string, intent Intent) []string {
	candidates := []string{question}

	hint := variantIntentHints[intent]
	prompt := fmt.Sprintf(`Generate %d alternative phrasings of the question for document search. Use synonyms and different sentence structures; keep the meaning identical. %s
Output one phrasing per line, without numbering.

Question: %s`, a.opts.Variants, hint, question)

	out, err := llm.Complete(ctx, a.llm, prompt)
	if err != nil {
		a.logger.Printf("reformulation degraded to synonym expansion: %v", err)
	} else {
		for _, line := range strings.Split(out, "\n") {
			line = strings.TrimLeft(strings.TrimSpace(line), "0123456789.-) ")
			if len(line) > 10 {
				candidates = append(candidates, line)
			}
		}
	}

	candidates = append(candidates, expandSynonyms(question)...)

	seen := make(map[string]struct{}, len(candidates))
	variants := make([]string, 0, a.opts.Variants+1)
	for _, candidate := range candidates {
		key := strings.Join(strings.Fields(strings.ToLower(candidate)), " ")
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		variants = append(variants, candidate)
		if len(variants) == a.opts.Variants+1 {
			break
		}
	}

	return variants
}

// expandSynonyms derives variants by substituting known domain terms.
func expandSynonyms(question string) []string {
	lowered := strings.ToLower(question)
	var variants []string
	for term, synonyms := range domainSynonyms {
		idx := strings.Index(lowered, term)
		if idx < 0 {
			continue
		}
		for _, synonym := range synonyms {
			variants = append(variants, question[:idx]+synonym+question[idx+len(term):])
		}
	}
	return variants
}

var sourceRefPattern = regexp.MustCompile(`\[Source (\d+)\]`)

// generate synthesizes an answer strictly grounded in the retrieved chunks and
// attaches one citation per chunk the answer actually drew from. Citations are
// validated against the retrieval set; references to anything else are dropped.
func (a *Agent) generate(ctx context.Context, question string, intent Intent, results []RetrievalResult) (Answer, error) {
	contextBlock, used := a.buildContext(results)

	prompt := fmt.Sprintf(`Answer the question using ONLY the numbered sources below. Every claim must come from the sources; cite the sources you use inline as [Source N]. If a source does not support a claim, do not make the claim. Answer naturally and completely.

%s
Question: %s

Answer:`, contextBlock, question)

	out, err := llm.Complete(ctx, a.llm, prompt)
	if err != nil {
		return Answer{}, err
	}

	answerText := strings.TrimSpace(out)

	cited := citedIndexes(answerText, len(used))
	if len(cited) == 0 {
		// Model answered without inline markers; attribute to the sources it
		// was given rather than dropping provenance.
		for i := range used {
			cited = append(cited, i)
		}
	}

	citations := make([]Citation, 0, len(cited))
	docIDs := make([]string, 0, len(cited))
	for _, idx := range cited {
		chunk := used[idx].Chunk
		citations = append(citations, Citation{
			Source:  chunk.DocName,
			Page:    chunk.Page,
			ChunkID: chunk.ID,
		})
		docIDs = append(docIDs, chunk.DocID.String())
	}

	a.attachInsights(ctx, citations, docIDs)

	return Answer{
		Text:      answerText,
		Citations: citations,
		Intent:    intent,
	}, nil
}

// buildContext renders numbered sources, trimming to the token budget so the
// prompt stays within the model's context. Returns the block and the results
// actually included; citations may only reference those.
func (a *Agent) buildContext(results []RetrievalResult) (string, []RetrievalResult) {
	var (
		sb     strings.Builder
		used   []RetrievalResult
		budget = a.opts.ContextTokenBudget
	)

	for _, result := range results {
		block := fmt.Sprintf("[Source %d] %s (page %d)\n%s\n\n",
			len(used)+1, result.Chunk.DocName, result.Chunk.Page, result.Chunk.Text)

		cost := countTokens(block)
		if len(used) > 0 && cost > budget {
			break
		}
		budget -= cost
		sb.WriteString(block)
		used = append(used, result)
	}

	return sb.String(), used
}

// citedIndexes extracts the zero-based source indexes referenced in the
// answer, keeping only ones inside the provided set.
func citedIndexes(answer string, total int) []int {
	seen := make(map[int]struct{})
	var indexes []int
	for _, match := range sourceRefPattern.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 || n > total {
			continue
		}
		idx := n - 1
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		indexes = append(indexes, idx)
	}
	return indexes
}

func (a *Agent) attachInsights(ctx context.Context, citations []Citation, docIDs []string) {
	if a.insights == nil || len(citations) == 0 {
		return
	}

	insightMap, err := a.insights.DocumentInsights(ctx, uniqueStrings(docIDs))
	if err != nil {
		a.logger.Printf("graph insights error: %v", err)
		return
	}

	for i := range citations {
		if insight, ok := insightMap[docIDs[i]]; ok {
			citations[i].Insight = insight
		}
	}
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// countTokens measures prompt cost with the tiktoken cl100k encoding, falling
// back to a character estimate when the encoding is unavailable offline.
func countTokens(text string) int {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
