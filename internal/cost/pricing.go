package cost

import (
	"github.com/shopspring/decimal"

	"github.com/vaani-ai/vaani/pkg/provider/llm"
	"github.com/vaani-ai/vaani/pkg/types"
)

// Pricing tables, USD. Rates come from the providers' published price lists;
// unknown providers fall back to the most expensive known rate so costs are
// never understated.

// asrPerSecond is the transcription price per second of audio.
var asrPerSecond = map[string]decimal.Decimal{
	"sarvam": decimal.RequireFromString("0.000833"), // ₹30/hr ≈ $0.05/min
}

// translatePerChar is the translation price per input character.
var translatePerChar = map[string]decimal.Decimal{
	"sarvam": decimal.RequireFromString("0.0000025"),
}

// ttsPerChar is the synthesis price per input character.
var ttsPerChar = map[string]decimal.Decimal{
	"sarvam":     decimal.RequireFromString("0.0000150"),
	"elevenlabs": decimal.RequireFromString("0.0000300"),
}

var million = decimal.NewFromInt(1_000_000)

func rate(table map[string]decimal.Decimal, provider string) decimal.Decimal {
	if r, ok := table[provider]; ok {
		return r
	}
	max := decimal.Zero
	for _, r := range table {
		if r.GreaterThan(max) {
			max = r
		}
	}
	return max
}

// ASRCost prices a transcription: duration_ms / 1000 × per-second rate.
func ASRCost(provider string, durationMS int64) decimal.Decimal {
	seconds := decimal.NewFromInt(durationMS).Div(decimal.NewFromInt(1000))
	return seconds.Mul(rate(asrPerSecond, provider))
}

// LLMCost prices a generation from the model's per-million-token unit prices.
func LLMCost(model string, inputTokens, outputTokens int64) decimal.Decimal {
	info := llm.LookupModel(model)
	in := decimal.RequireFromString(info.InputPricePerMTok).
		Mul(decimal.NewFromInt(inputTokens)).Div(million)
	out := decimal.RequireFromString(info.OutputPricePerMTok).
		Mul(decimal.NewFromInt(outputTokens)).Div(million)
	return in.Add(out)
}

// TranslateCost prices a translation by input characters.
func TranslateCost(provider string, chars int64) decimal.Decimal {
	return decimal.NewFromInt(chars).Mul(rate(translatePerChar, provider))
}

// TTSCost prices a synthesis by input characters.
func TTSCost(provider string, chars int64) decimal.Decimal {
	return decimal.NewFromInt(chars).Mul(rate(ttsPerChar, provider))
}

// Units returns the billed unit count and unit type for a service.
func Units(service types.ServiceKind, durationMS, chars, inputTokens, outputTokens int64) (int64, types.UnitType) {
	switch service {
	case types.ServiceASR:
		return durationMS, types.UnitAudioMS
	case types.ServiceLLM:
		return inputTokens + outputTokens, types.UnitTokens
	default:
		return chars, types.UnitCharacters
	}
}
