// Package cost estimates Gemini token usage and spend for section generation.
package cost

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// TokensPerWord converts a requested word count into expected output tokens.
const TokensPerWord = 1.3

// DefaultOutputWords is assumed when a section has no explicit word count.
const DefaultOutputWords = 1000

// GeminiPricing represents the current pricing for Gemini models
type GeminiPricing struct {
	Model                 string
	InputCostPer1MTokens  float64 // Cost per 1M input tokens in USD
	OutputCostPer1MTokens float64 // Cost per 1M output tokens in USD
	MaxRequestsPerMinute  int     // Rate limiting
}

// FallbackModel prices models missing from PricingTable.
const FallbackModel = "gemini-2.5-pro"

// PricingTable contains Gemini list pricing for prompts up to 200k tokens.
var PricingTable = map[string]GeminiPricing{
	"gemini-2.5-pro": {
		Model:                 "gemini-2.5-pro",
		InputCostPer1MTokens:  1.25,
		OutputCostPer1MTokens: 10.00,
		MaxRequestsPerMinute:  150,
	},
	"gemini-2.5-flash": {
		Model:                 "gemini-2.5-flash",
		InputCostPer1MTokens:  0.30,
		OutputCostPer1MTokens: 2.50,
		MaxRequestsPerMinute:  1000,
	},
	"gemini-2.5-flash-lite": {
		Model:                 "gemini-2.5-flash-lite",
		InputCostPer1MTokens:  0.10,
		OutputCostPer1MTokens: 0.40,
		MaxRequestsPerMinute:  4000,
	},
	"gemini-1.5-pro": {
		Model:                 "gemini-1.5-pro",
		InputCostPer1MTokens:  3.50,
		OutputCostPer1MTokens: 10.50,
		MaxRequestsPerMinute:  360,
	},
	"gemini-1.5-flash": {
		Model:                 "gemini-1.5-flash",
		InputCostPer1MTokens:  0.075,
		OutputCostPer1MTokens: 0.30,
		MaxRequestsPerMinute:  1000,
	},
}

// PricingFor returns the pricing of model, falling back to FallbackModel.
func PricingFor(model string) (GeminiPricing, bool) {
	p, ok := PricingTable[model]
	if !ok {
		return PricingTable[FallbackModel], false
	}
	return p, true
}

// EstimateTokenCount provides a rough estimation of token count for text.
// One token is taken as 3.5 characters.
func EstimateTokenCount(text string) int {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\n", " ")

	charCount := utf8.RuneCountInString(text)
	return int(math.Ceil(float64(charCount) / 3.5))
}

// OutputTokensForWords estimates output tokens for a requested word count.
func OutputTokensForWords(words int) int {
	if words <= 0 {
		words = DefaultOutputWords
	}
	return int(math.Ceil(float64(words) * TokensPerWord))
}

// GenerationEstimate is the cost of a single generation call.
type GenerationEstimate struct {
	Model        string
	PromptTokens int
	OutputTokens int
	InputCost    float64
	OutputCost   float64
	TotalCost    float64
}

// EstimateGenerationCost prices one call of model.
func EstimateGenerationCost(model string, promptTokens, outputTokens int) GenerationEstimate {
	pricing, _ := PricingFor(model)
	input := float64(promptTokens) * pricing.InputCostPer1MTokens / 1_000_000
	output := float64(outputTokens) * pricing.OutputCostPer1MTokens / 1_000_000
	return GenerationEstimate{
		Model:        model,
		PromptTokens: promptTokens,
		OutputTokens: outputTokens,
		InputCost:    input,
		OutputCost:   output,
		TotalCost:    input + output,
	}
}

// SectionPlan describes one section to be generated.
type SectionPlan struct {
	Name      string
	Prompt    string
	WordCount int
}

// PlanEstimate is the estimated spend for a set of sections.
type PlanEstimate struct {
	Model             string
	Sections          []SectionEstimate
	TotalInputTokens  int
	TotalOutputTokens int
	TotalCost         float64
	RateLimitWarning  string
	KnownModel        bool
}

// SectionEstimate pairs a section name with its generation estimate.
type SectionEstimate struct {
	Name string
	GenerationEstimate
}

// EstimatePlanCost prices every section of a plan.
func EstimatePlanCost(model string, sections []SectionPlan) *PlanEstimate {
	pricing, known := PricingFor(model)
	estimate := &PlanEstimate{
		Model:      model,
		Sections:   make([]SectionEstimate, 0, len(sections)),
		KnownModel: known,
	}

	for _, s := range sections {
		e := EstimateGenerationCost(model, EstimateTokenCount(s.Prompt), OutputTokensForWords(s.WordCount))
		estimate.Sections = append(estimate.Sections, SectionEstimate{Name: s.Name, GenerationEstimate: e})
		estimate.TotalInputTokens += e.PromptTokens
		estimate.TotalOutputTokens += e.OutputTokens
		estimate.TotalCost += e.TotalCost
	}

	if len(sections) > pricing.MaxRequestsPerMinute {
		estimate.RateLimitWarning = fmt.Sprintf(
			"Warning: %d requests may exceed rate limit of %d/min for %s",
			len(sections), pricing.MaxRequestsPerMinute, model,
		)
	}
	return estimate
}

// FormatEstimate formats the cost estimate for display
func (e *PlanEstimate) FormatEstimate() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Cost Estimation for %s\n", e.Model)
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	if !e.KnownModel {
		fmt.Fprintf(&sb, "   (unknown model, priced as %s)\n", FallbackModel)
	}
	fmt.Fprintf(&sb, "   Sections to generate: %d\n", len(e.Sections))
	fmt.Fprintf(&sb, "   Input tokens: %d\n", e.TotalInputTokens)
	fmt.Fprintf(&sb, "   Output tokens: %d\n", e.TotalOutputTokens)
	fmt.Fprintf(&sb, "   Total estimated cost: $%.6f\n", e.TotalCost)
	if e.RateLimitWarning != "" {
		fmt.Fprintf(&sb, "   %s\n", e.RateLimitWarning)
	}

	if len(e.Sections) > 0 {
		sb.WriteString("\nPer-Section Estimates:\n")
		for i, s := range e.Sections {
			fmt.Fprintf(&sb, "   %d. $%.6f - %s\n", i+1, s.TotalCost, s.Name)
		}
	}
	return sb.String()
}
