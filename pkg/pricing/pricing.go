// Package pricing implements the Pricing & Statistics Kit (spec.md §4.G):
// per-model cost calculation and the percentile/time-decay statistics used
// by the evaluation orchestrator and optimizer.
package pricing

import (
	"regexp"
	"strings"
)

// rate is per-million-token pricing in USD.
type rate struct {
	inputPerMillion  float64
	outputPerMillion float64
	cachedPerMillion float64
}

// geminiTieredRate switches between a short- and long-context rate once
// prompt_tokens crosses longContextThreshold.
type geminiTieredRate struct {
	short               rate
	long                rate
	longContextThreshold int
}

var flatTable = map[string]rate{
	"gpt-4o":              {inputPerMillion: 2.50, outputPerMillion: 10.00, cachedPerMillion: 1.25},
	"gpt-4o-mini":         {inputPerMillion: 0.15, outputPerMillion: 0.60, cachedPerMillion: 0.075},
	"gpt-4-turbo":         {inputPerMillion: 10.00, outputPerMillion: 30.00},
	"gpt-4":               {inputPerMillion: 30.00, outputPerMillion: 60.00},
	"gpt-3.5-turbo":       {inputPerMillion: 0.50, outputPerMillion: 1.50},
	"o1":                  {inputPerMillion: 15.00, outputPerMillion: 60.00, cachedPerMillion: 7.50},
	"o1-mini":             {inputPerMillion: 1.10, outputPerMillion: 4.40, cachedPerMillion: 0.55},
	"o3-mini":             {inputPerMillion: 1.10, outputPerMillion: 4.40, cachedPerMillion: 0.55},
	"claude-3-5-sonnet":   {inputPerMillion: 3.00, outputPerMillion: 15.00, cachedPerMillion: 0.30},
	"claude-3-5-haiku":    {inputPerMillion: 0.80, outputPerMillion: 4.00, cachedPerMillion: 0.08},
	"claude-3-opus":       {inputPerMillion: 15.00, outputPerMillion: 75.00},
	"claude-3-haiku":      {inputPerMillion: 0.25, outputPerMillion: 1.25},
}

var tieredTable = map[string]geminiTieredRate{
	"gemini-1.5-pro": {
		short:                 rate{inputPerMillion: 1.25, outputPerMillion: 5.00},
		long:                  rate{inputPerMillion: 2.50, outputPerMillion: 10.00},
		longContextThreshold:  128000,
	},
	"gemini-1.5-flash": {
		short:                 rate{inputPerMillion: 0.075, outputPerMillion: 0.30},
		long:                  rate{inputPerMillion: 0.15, outputPerMillion: 0.60},
		longContextThreshold:  128000,
	},
	"gemini-2.0-flash": {
		short:                 rate{inputPerMillion: 0.10, outputPerMillion: 0.40},
		long:                  rate{inputPerMillion: 0.10, outputPerMillion: 0.40},
		longContextThreshold:  1000000,
	},
}

var providerPrefixRe = regexp.MustCompile(`^(openai|anthropic|google|gemini)/`)
var dateSuffixRe = regexp.MustCompile(`-\d{4}-\d{2}-\d{2}$|-\d{8}$|-\d{6}$`)

// NormalizeModel strips a leading provider prefix ("openai/", "anthropic/",
// …) and a trailing date suffix, per spec.md §4.G.
func NormalizeModel(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	m = providerPrefixRe.ReplaceAllString(m, "")
	m = dateSuffixRe.ReplaceAllString(m, "")
	return m
}

// CalculateCost implements `calculate_cost(model, prompt_tokens,
// completion_tokens, cached_tokens) → float?`. Returns nil for an unknown
// model.
func CalculateCost(model string, promptTokens, completionTokens, cachedTokens int) *float64 {
	normalized := NormalizeModel(model)

	if tiered, ok := tieredTable[normalized]; ok {
		r := tiered.short
		if promptTokens > tiered.longContextThreshold {
			r = tiered.long
		}
		cost := costFromRate(r, promptTokens, completionTokens, cachedTokens)
		return &cost
	}

	if r, ok := flatTable[normalized]; ok {
		cost := costFromRate(r, promptTokens, completionTokens, cachedTokens)
		return &cost
	}

	return nil
}

func costFromRate(r rate, promptTokens, completionTokens, cachedTokens int) float64 {
	billablePrompt := promptTokens - cachedTokens
	if billablePrompt < 0 {
		billablePrompt = 0
	}
	cost := float64(billablePrompt) / 1_000_000 * r.inputPerMillion
	cost += float64(completionTokens) / 1_000_000 * r.outputPerMillion
	if cachedTokens > 0 && r.cachedPerMillion > 0 {
		cost += float64(cachedTokens) / 1_000_000 * r.cachedPerMillion
	}
	return cost
}

// KnownModels lists every model name this kit has pricing for, used by the
// optimizer (§4.I) to constrain its variant-generation response schema.
func KnownModels() []string {
	models := make([]string, 0, len(flatTable)+len(tieredTable))
	for name := range flatTable {
		models = append(models, name)
	}
	for name := range tieredTable {
		models = append(models, name)
	}
	return models
}
