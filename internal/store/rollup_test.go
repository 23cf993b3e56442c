package store

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vaani-ai/vaani/pkg/types"
)

func TestApplyRollup_CountsAndInvariant(t *testing.T) {
	var m types.SessionMetrics
	ApplyRollup(&m, TurnRollup{Status: types.TurnSuccessful, ASRConfidence: -1})
	ApplyRollup(&m, TurnRollup{Status: types.TurnFailed, ASRConfidence: -1})
	ApplyRollup(&m, TurnRollup{Status: types.TurnInterrupted, ASRConfidence: -1})
	ApplyRollup(&m, TurnRollup{Status: types.TurnSuccessful, ASRConfidence: -1})

	if m.TotalTurns != 4 {
		t.Errorf("total = %d, want 4", m.TotalTurns)
	}
	if m.SuccessfulTurns+m.FailedTurns+m.InterruptedTurns != m.TotalTurns {
		t.Errorf("status counts %d+%d+%d do not sum to total %d",
			m.SuccessfulTurns, m.FailedTurns, m.InterruptedTurns, m.TotalTurns)
	}
}

func TestApplyRollup_WelfordMean(t *testing.T) {
	var m types.SessionMetrics
	samples := []int64{100, 200, 600}
	for _, s := range samples {
		ApplyRollup(&m, TurnRollup{
			Status:        types.TurnSuccessful,
			Latency:       types.StageLatencies{LLMMS: s},
			ASRConfidence: -1,
		})
	}
	if math.Abs(m.MeanLLMMS-300) > 1e-9 {
		t.Errorf("mean LLM latency = %v, want 300", m.MeanLLMMS)
	}
}

func TestApplyRollup_HitCountersAndCost(t *testing.T) {
	var m types.SessionMetrics
	ApplyRollup(&m, TurnRollup{
		Status: types.TurnSuccessful, ExactHit: true, TTSHit: true,
		ASRConfidence: 0.9, CostUSD: decimal.RequireFromString("0.01"),
	})
	ApplyRollup(&m, TurnRollup{
		Status: types.TurnSuccessful, SemanticHit: true, GuardrailBlocked: true,
		ASRConfidence: 0.7, CostUSD: decimal.RequireFromString("0.02"),
	})

	if m.LLMExactHits != 1 || m.LLMSemanticHits != 1 || m.TTSHits != 1 {
		t.Errorf("hits = %d/%d/%d", m.LLMExactHits, m.LLMSemanticHits, m.TTSHits)
	}
	if m.GuardrailBlocks != 1 {
		t.Errorf("guardrail blocks = %d", m.GuardrailBlocks)
	}
	if !m.TotalCostUSD.Equal(decimal.RequireFromString("0.03")) {
		t.Errorf("total cost = %s", m.TotalCostUSD)
	}
	if math.Abs(m.MeanASRConfid-0.8) > 1e-9 {
		t.Errorf("mean confidence = %v, want 0.8", m.MeanASRConfid)
	}
}
