package validation

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/avitoscout/orchestrator/internal/domain"
	"github.com/avitoscout/orchestrator/internal/llm"
	"github.com/avitoscout/orchestrator/internal/logging"
)

// aiResponseSchema is the json_schema the LLM is constrained to:
// {passed: [ids], rejected: [(id, reason)]}.
var aiResponseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"passed": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"rejected": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":     map[string]any{"type": "string"},
					"reason": map[string]any{"type": "string"},
				},
				"required": []string{"id", "reason"},
			},
		},
	},
	"required": []string{"passed", "rejected"},
}

type aiCandidate struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Price   float64 `json:"price"`
}

// AIStage is the optional, articulum-scoped LLM filter. It tracks
// consecutive transport/protocol failures across calls so the worker can
// exit after the third.
type AIStage struct {
	client              llm.Client
	log                 *logging.Logger
	consecutiveFailures int64
}

// ErrTooManyConsecutiveFailures signals the caller should exit(2).
var ErrTooManyConsecutiveFailures = fmt.Errorf("ai validation: three consecutive failures")

func NewAIStage(client llm.Client, log *logging.Logger) *AIStage {
	return &AIStage{client: client, log: log.With("component", "AIValidationStage")}
}

// ConsecutiveFailures reports the current streak, for supervisors that want
// to surface it in health checks.
func (a *AIStage) ConsecutiveFailures() int64 {
	return atomic.LoadInt64(&a.consecutiveFailures)
}

// Evaluate makes one LLM call for the whole articulum. On transport or
// protocol failure it returns a non-nil error; the caller must treat this
// as an articulum-scope rollback, never an item-level rejection, and must
// check errors.Is(err, ErrTooManyConsecutiveFailures) to decide whether to
// exit(2).
func (a *AIStage) Evaluate(ctx context.Context, articulum string, items []Item) ([]StageVerdict, error) {
	candidates := make([]aiCandidate, 0, len(items))
	for _, it := range items {
		title := truncate(it.Title, 100)
		snippet := truncate(it.Snippet, 200)
		price := 0.0
		if it.Price != nil {
			price = *it.Price
		}
		candidates = append(candidates, aiCandidate{ID: it.AvitoItemID, Title: title, Snippet: snippet, Price: price})
	}

	system := "You review marketplace listings against a requested part number. Respond only in the requested JSON schema."
	user := fmt.Sprintf("Part number: %s\nCandidates: %+v", articulum, candidates)

	result, err := a.client.GenerateJSON(ctx, system, user, "articulum_validation", aiResponseSchema)
	if err != nil {
		streak := atomic.AddInt64(&a.consecutiveFailures, 1)
		a.log.Warn("ai validation call failed", "articulum", articulum, "consecutive_failures", streak, "error", err)
		if streak >= 3 {
			return nil, fmt.Errorf("%w: %v", ErrTooManyConsecutiveFailures, err)
		}
		return nil, err
	}
	atomic.StoreInt64(&a.consecutiveFailures, 0)

	passedSet := make(map[string]bool)
	if passed, ok := result["passed"].([]any); ok {
		for _, p := range passed {
			if id, ok := p.(string); ok {
				passedSet[id] = true
			}
		}
	}
	rejectReasons := make(map[string]string)
	if rejected, ok := result["rejected"].([]any); ok {
		for _, r := range rejected {
			if row, ok := r.(map[string]any); ok {
				id, _ := row["id"].(string)
				reason, _ := row["reason"].(string)
				rejectReasons[id] = reason
			}
		}
	}

	out := make([]StageVerdict, 0, len(items))
	for _, it := range items {
		if passedSet[it.AvitoItemID] {
			out = append(out, StageVerdict{AvitoItemID: it.AvitoItemID, Stage: domain.StageAI, Passed: true})
			continue
		}
		reason, ok := rejectReasons[it.AvitoItemID]
		if !ok {
			reason = "no decision"
		}
		out = append(out, StageVerdict{AvitoItemID: it.AvitoItemID, Stage: domain.StageAI, Passed: false, RejectionReason: reason})
	}
	return out, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
