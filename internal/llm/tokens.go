// Package llm holds the provider-neutral request/response/token value types
// that sit between the dispatch core (internal/dispatch) and the provider
// adapters (internal/providers): LLMRequest, LLMResponse, TokenTracker, and
// ModelTokens. Both
// internal/dispatch and internal/providers depend on it, so it must not
// depend on either, to keep the adapter contract free of an import cycle.
package llm

import "github.com/llmgate/llmgate/internal/catalog"

// ModelTokens counts non-negative token usage for one model call, plus a
// snapshot of the pricing rates in effect at call time — the original
// source's exact mechanism for historically-accurate pricing: the rates are copied onto the record at
// the moment of the call, not looked up later from the (possibly since
// reconfigured) catalog.
type ModelTokens struct {
	Input int
	CachedInput int
	Output int
	ReasoningOutput int
	Total int
	Price catalog.Pricing
}

// Add returns the sum-preserving addition of two ModelTokens. The pricing
// snapshot of the receiver wins; in practice both sides carry the same
// model's rates since TokenTracker keys by model id.
func (t ModelTokens) Add(other ModelTokens) ModelTokens {
	return ModelTokens{
		Input: t.Input + other.Input,
		CachedInput: t.CachedInput + other.CachedInput,
		Output: t.Output + other.Output,
		ReasoningOutput: t.ReasoningOutput + other.ReasoningOutput,
		Total: t.Total + other.Total,
		Price: t.Price,
	}
}

// TokenTracker maps model id -> ModelTokens, summed across multiple model
// calls within one request.
type TokenTracker map[string]ModelTokens

// NewTokenTracker returns an empty tracker.
func NewTokenTracker() TokenTracker {
	return make(TokenTracker)
}

// Add accumulates tokens for a model id, summing with any existing entry.
func (t TokenTracker) Add(modelID string, tokens ModelTokens) {
	t[modelID] = t[modelID].Add(tokens)
}

// InputTokens sums input tokens across every model in the tracker.
func (t TokenTracker) InputTokens() int {
	sum := 0
	for _, mt := range t {
		sum += mt.Input
	}
	return sum
}

// CompletionTokens sums output tokens across every model in the tracker.
func (t TokenTracker) CompletionTokens() int {
	sum := 0
	for _, mt := range t {
		sum += mt.Output
	}
	return sum
}

// TotalTokens sums total tokens across every model in the tracker.
func (t TokenTracker) TotalTokens() int {
	sum := 0
	for _, mt := range t {
		sum += mt.Total
	}
	return sum
}
