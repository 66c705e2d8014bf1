// Package agent runs the query pipeline: contextualize, classify, reformulate,
// retrieve, check relevance, then generate or refuse. The sequence is strictly
// linear with two terminal exits; only the relevance verdict picks the branch.
package agent

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/fabfab/doc-agent/conversation"
	"github.com/fabfab/doc-agent/knowledge"
	"github.com/fabfab/doc-agent/llm"
	"github.com/fabfab/doc-agent/vectorstore"
)

const (
	defaultVariants      = 4
	defaultQueryK        = 10
	defaultTopN          = 8
	defaultTokenBudget   = 3000
	defaultHistoryWindow = 6
)

type Options struct {
	Variants           int
	QueryK             int
	TopN               int
	ContextTokenBudget int
	HistoryWindow      int
}

type Agent struct {
	llm      llm.Client
	store    *vectorstore.Manager
	checker  RelevanceChecker
	insights knowledge.InsightStore
	logger   *log.Logger
	opts     Options
}

// New wires the pipeline. insights may be nil; citations then carry no graph
// enrichment.
func New(client llm.Client, store *vectorstore.Manager, checker RelevanceChecker, insights knowledge.InsightStore, logger *log.Logger, opts Options) *Agent {
	if logger == nil {
		logger = log.Default()
	}
	if opts.Variants <= 0 {
		opts.Variants = defaultVariants
	}
	if opts.QueryK <= 0 {
		opts.QueryK = defaultQueryK
	}
	if opts.TopN <= 0 {
		opts.TopN = defaultTopN
	}
	if opts.ContextTokenBudget <= 0 {
		opts.ContextTokenBudget = defaultTokenBudget
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = defaultHistoryWindow
	}

	return &Agent{
		llm:      client,
		store:    store,
		checker:  checker,
		insights: insights,
		logger:   logger,
		opts:     opts,
	}
}

// Ask answers one user turn against the indexed corpus. The session is owned
// by the caller and only read here; appending the new turns is the caller's
// responsibility. Capability and store failures surface as typed errors, never
// as a fabricated answer.
func (a *Agent) Ask(ctx context.Context, session *conversation.Session, raw string) (Answer, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Answer{}, fmt.Errorf("question cannot be empty")
	}
	if a.llm == nil {
		return Answer{}, fmt.Errorf("llm client is not configured")
	}
	if a.store == nil {
		return Answer{}, fmt.Errorf("vector store is not configured")
	}
	if a.checker == nil {
		return Answer{}, fmt.Errorf("relevance checker is not configured")
	}

	resolved, err := a.contextualize(ctx, session, raw)
	if err != nil {
		return Answer{}, fmt.Errorf("contextualize question: %w", err)
	}

	intent := a.classifyIntent(ctx, resolved)

	variants := a.reformulate(ctx, resolved, intent)

	merged, err := a.retrieve(ctx, variants)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve candidates: %w", err)
	}

	verdict, err := a.checker.Check(ctx, resolved, merged)
	if err != nil {
		return Answer{}, fmt.Errorf("check relevance: %w", err)
	}

	if !verdict.Relevant {
		a.logger.Printf("out of scope: %s", verdict.Reason)
		return a.outOfScope(intent), nil
	}

	answer, err := a.generate(ctx, resolved, intent, merged)
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}

// retrieve queries the store once per variant, fanning the calls out
// concurrently, then merges deterministically: dedup by chunk identity with
// the maximum score winning, order by score descending then chunk ID, truncate
// to TopN. The merge result does not depend on completion order.
func (a *Agent) retrieve(ctx context.Context, variants []string) ([]RetrievalResult, error) {
	type variantHits struct {
		variant string
		hits    []vectorstore.Result
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		firstErr  error
		collected = make([]variantHits, 0, len(variants))
	)

	for _, variant := range variants {
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			hits, err := a.store.Query(ctx, v, a.opts.QueryK, nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("query variant %q: %w", v, err)
				}
				return
			}
			collected = append(collected, variantHits{variant: v, hits: hits})
		}(variant)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	// Variant iteration order is fixed before merging so ties resolve the
	// same way on every run.
	sort.Slice(collected, func(i, j int) bool {
		return collected[i].variant < collected[j].variant
	})

	best := make(map[string]RetrievalResult)
	for _, vh := range collected {
		for _, hit := range vh.hits {
			prior, seen := best[hit.Chunk.ID]
			if !seen || hit.Score > prior.Score {
				best[hit.Chunk.ID] = RetrievalResult{Chunk: hit.Chunk, Score: hit.Score, Variant: vh.variant}
			}
		}
	}

	merged := make([]RetrievalResult, 0, len(best))
	for _, result := range best {
		merged = append(merged, result)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Chunk.ID < merged[j].Chunk.ID
	})

	if len(merged) > a.opts.TopN {
		merged = merged[:a.opts.TopN]
	}
	return merged, nil
}

const outOfScopeMessage = "I don't have enough information in the provided documents to answer that. " +
	"Please ask about the content of the uploaded documents."

// outOfScope is the negative terminal branch: a fixed-shape refusal, no
// citations, never an invented answer.
func (a *Agent) outOfScope(intent Intent) Answer {
	return Answer{
		Text:       outOfScopeMessage,
		Citations:  nil,
		Intent:     intent,
		OutOfScope: true,
	}
}
