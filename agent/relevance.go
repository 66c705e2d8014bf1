package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/fabfab/doc-agent/llm"
)

// RelevanceChecker gates generation: only a positive verdict lets a turn reach
// the answer stage. Implementations must be conservative; when in doubt the
// verdict is negative.
type RelevanceChecker interface {
	Check(ctx context.Context, question string, results []RetrievalResult) (Verdict, error)
}

// NewChecker builds the checker named by mode: "threshold" compares the best
// similarity score against min, "judge" delegates the call to the model.
func NewChecker(mode string, min float64, client llm.Client) (RelevanceChecker, error) {
	switch mode {
	case "threshold":
		return ThresholdChecker{Min: min}, nil
	case "judge":
		return NewJudgeChecker(client), nil
	default:
		return nil, fmt.Errorf("unknown relevance mode: %q", mode)
	}
}

// ThresholdChecker passes a turn when the best similarity score clears Min.
// It is deterministic and costs no model call.
type ThresholdChecker struct {
	Min float64
}

func (c ThresholdChecker) Check(_ context.Context, _ string, results []RetrievalResult) (Verdict, error) {
	if len(results) == 0 {
		return Verdict{Relevant: false, Reason: "no passages retrieved"}, nil
	}
	top := results[0].Score
	for _, result := range results[1:] {
		if result.Score > top {
			top = result.Score
		}
	}
	if top < c.Min {
		return Verdict{
			Relevant: false,
			Reason:   fmt.Sprintf("best score %.3f below threshold %.3f", top, c.Min),
		}, nil
	}
	return Verdict{Relevant: true, Reason: fmt.Sprintf("best score %.3f", top)}, nil
}

const (
	judgeSamples     = 3
	judgeSampleChars = 1000
)

// JudgeChecker asks the model whether the retrieved passages can answer the
// question. Only the top few passages are shown, truncated, to keep the
// judgment call cheap. A judge failure propagates; the pipeline does not guess.
type JudgeChecker struct {
	llm     llm.Client
	Samples int
}

func NewJudgeChecker(client llm.Client) *JudgeChecker {
	return &JudgeChecker{llm: client, Samples: judgeSamples}
}

func (c *JudgeChecker) Check(ctx context.Context, question string, results []RetrievalResult) (Verdict, error) {
	if len(results) == 0 {
		return Verdict{Relevant: false, Reason: "no passages retrieved"}, nil
	}

	samples := results
	if len(samples) > c.Samples {
		samples = samples[:c.Samples]
	}

	var sb strings.Builder
	for i, result := range samples {
		text := result.Chunk.Text
		if len(text) > judgeSampleChars {
			text = text[:judgeSampleChars]
		}
		fmt.Fprintf(&sb, "Passage %d:\n%s\n\n", i+1, text)
	}

	prompt := fmt.Sprintf(`Do the passages below contain information that answers the question? Reply on one line: YES or NO, then a short reason.

%sQuestion: %s

Verdict:`, sb.String(), question)

	out, err := llm.Complete(ctx, c.llm, prompt)
	if err != nil {
		return Verdict{}, fmt.Errorf("relevance judgment: %w", err)
	}

	normalized := strings.ToUpper(strings.TrimSpace(out))
	relevant := strings.HasPrefix(normalized, "YES")
	return Verdict{Relevant: relevant, Reason: strings.TrimSpace(out)}, nil
}
