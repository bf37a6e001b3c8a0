package model

import (
	"fmt"
	"sync"
	"time"
)

// ModelPricing gives per-1M-token USD pricing for a model.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// defaultPricing covers the providers dag/model ships adapters for.
var defaultPricing = map[string]ModelPricing{
	"gpt-4o":                     {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":                {InputPer1M: 0.15, OutputPer1M: 0.60},
	"claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-haiku-20240307":    {InputPer1M: 0.25, OutputPer1M: 1.25},
	"gemini-1.5-pro":             {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-1.5-flash":           {InputPer1M: 0.075, OutputPer1M: 0.30},
}

// LLMCall is one recorded invocation.
type LLMCall struct {
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Timestamp    time.Time
	NodeID       string
}

// CostTracker accumulates spend across a pipeline run's TagModelCall nodes,
// adapted from the teacher's graph/cost.go.
type CostTracker struct {
	PipelineID string
	Currency   string
	Pricing    map[string]ModelPricing

	mu           sync.Mutex
	calls        []LLMCall
	totalCost    float64
	modelCosts   map[string]float64
	inputTokens  int64
	outputTokens int64
	enabled      bool
}

// NewCostTracker returns a tracker seeded with defaultPricing.
func NewCostTracker(pipelineID, currency string) *CostTracker {
	return &CostTracker{
		PipelineID: pipelineID,
		Currency:   currency,
		Pricing:    defaultPricing,
		modelCosts: make(map[string]float64),
		enabled:    true,
	}
}

// RecordLLMCall prices one invocation and folds it into the running totals.
// An unrecognized model is recorded at zero cost rather than rejected, so a
// new provider doesn't break a run before its pricing is added.
func (ct *CostTracker) RecordLLMCall(modelName string, inputTokens, outputTokens int, nodeID string) {
	if !ct.enabled {
		return
	}
	ct.mu.Lock()
	defer ct.mu.Unlock()

	pricing := ct.Pricing[modelName]
	cost := float64(inputTokens)*pricing.InputPer1M/1e6 + float64(outputTokens)*pricing.OutputPer1M/1e6

	ct.calls = append(ct.calls, LLMCall{
		Model:        modelName,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      cost,
		Timestamp:    time.Now(),
		NodeID:       nodeID,
	})
	ct.totalCost += cost
	ct.modelCosts[modelName] += cost
	ct.inputTokens += int64(inputTokens)
	ct.outputTokens += int64(outputTokens)
}

// RecordChatOut is a convenience wrapper that pulls token counts straight
// off a ChatOut, for callers wiring a ChatModel node under TagModelCall.
func (ct *CostTracker) RecordChatOut(out ChatOut, nodeID string) {
	ct.RecordLLMCall(out.Model, out.InputTokens, out.OutputTokens, nodeID)
}

// TotalCost returns the cumulative cost recorded so far.
func (ct *CostTracker) TotalCost() float64 {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.totalCost
}

// CostByModel returns a snapshot of cost attributed to each model.
func (ct *CostTracker) CostByModel() map[string]float64 {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	out := make(map[string]float64, len(ct.modelCosts))
	for k, v := range ct.modelCosts {
		out[k] = v
	}
	return out
}

// Calls returns a snapshot of every recorded invocation.
func (ct *CostTracker) Calls() []LLMCall {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	out := make([]LLMCall, len(ct.calls))
	copy(out, ct.calls)
	return out
}

func (ct *CostTracker) String() string {
	return fmt.Sprintf("<CostTracker pipeline=%q total=%.4f%s calls=%d>", ct.PipelineID, ct.TotalCost(), ct.Currency, len(ct.calls))
}
