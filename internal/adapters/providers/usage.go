package providers

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Usage tracks token consumption for a single call. All counts are
// non-negative; the record is synthesized once per call and never persisted.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// RawUsage carries whatever token accounting a provider reported, before
// normalization. A zero Total means the provider did not report one.
type RawUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// NormalizeUsage folds provider-reported token counts into the canonical
// shape. A reported total is trusted verbatim when positive; otherwise the
// total is the sum of input and output. Missing usage yields zeros, never
// an absent record. Negative counts clamp to zero before any arithmetic.
func NormalizeUsage(raw *RawUsage) Usage {
	if raw == nil {
		return Usage{}
	}

	in := clampTokens(raw.InputTokens)
	out := clampTokens(raw.OutputTokens)
	total := clampTokens(raw.TotalTokens)

	if total == 0 {
		total = in + out
	}

	return Usage{
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  total,
	}
}

func clampTokens(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

// EstimateCost computes the USD cost of a call from the model's per-1K
// pricing. Unknown pricing (zero rates) yields zero.
func EstimateCost(model ModelInfo, usage Usage) decimal.Decimal {
	thousand := decimal.NewFromInt(1000)

	inCost := decimal.NewFromInt(usage.InputTokens).
		Div(thousand).
		Mul(decimal.NewFromFloat(model.InputCostPer1K))
	outCost := decimal.NewFromInt(usage.OutputTokens).
		Div(thousand).
		Mul(decimal.NewFromFloat(model.OutputCostPer1K))

	return inCost.Add(outCost)
}

// ProviderUsage aggregates usage for one provider/model pair.
type ProviderUsage struct {
	Provider     string          `json:"provider"`
	Model        string          `json:"model"`
	Calls        int64           `json:"calls"`
	InputTokens  int64           `json:"input_tokens"`
	OutputTokens int64           `json:"output_tokens"`
	CostUSD      decimal.Decimal `json:"cost_usd"`
}

// UsageTracker keeps an in-memory aggregate of token and cost usage per
// provider/model. It backs the usage introspection endpoint only; nothing
// is written to durable storage.
type UsageTracker struct {
	mu    sync.Mutex
	usage map[string]*ProviderUsage
}

// NewUsageTracker creates a new tracker instance.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{usage: make(map[string]*ProviderUsage)}
}

// Record adds one call's usage, pricing it via the model info.
func (t *UsageTracker) Record(provider string, model ModelInfo, usage Usage) ProviderUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := fmt.Sprintf("%s:%s", provider, model.Name)
	entry, ok := t.usage[key]
	if !ok {
		entry = &ProviderUsage{Provider: provider, Model: model.Name, CostUSD: decimal.Zero}
		t.usage[key] = entry
	}

	entry.Calls++
	entry.InputTokens += usage.InputTokens
	entry.OutputTokens += usage.OutputTokens
	entry.CostUSD = entry.CostUSD.Add(EstimateCost(model, usage))

	return *entry
}

// Snapshot returns a copy of the current usage map.
func (t *UsageTracker) Snapshot() map[string]ProviderUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	copyMap := make(map[string]ProviderUsage, len(t.usage))
	for k, v := range t.usage {
		copyMap[k] = *v
	}

	return copyMap
}
