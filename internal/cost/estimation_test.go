package cost

import (
	"math"
	"strings"
	"testing"
)

func TestEstimateTokenCount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{
			name:     "empty string",
			input:    "",
			expected: 0,
		},
		{
			name:     "simple text",
			input:    "Hello world",
			expected: 4, // 11 chars / 3.5 ≈ 3.14, ceil = 4
		},
		{
			name:     "longer text",
			input:    "This is a longer piece of text that should result in more tokens.",
			expected: 19, // 65 chars / 3.5 ≈ 18.57, ceil = 19
		},
		{
			name:     "text with newlines",
			input:    "Line 1\nLine 2\nLine 3",
			expected: 6, // 20 chars / 3.5 ≈ 5.71, ceil = 6
		},
		{
			name:     "accented text",
			input:    "  Il mercato italiano cresce.  ",
			expected: 8, // 27 runes after trimming
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EstimateTokenCount(tt.input)
			if result != tt.expected {
				t.Errorf("EstimateTokenCount(%q) = %d, expected %d", tt.input, result, tt.expected)
			}
		})
	}
}

func TestOutputTokensForWords(t *testing.T) {
	if got := OutputTokensForWords(300); got != 390 {
		t.Errorf("Expected 390 tokens for 300 words, got %d", got)
	}
	if got := OutputTokensForWords(0); got != 1300 {
		t.Errorf("Expected default of 1300 tokens, got %d", got)
	}
}

func TestPricingTableValues(t *testing.T) {
	for model, pricing := range PricingTable {
		if pricing.Model != model {
			t.Errorf("Pricing key %s has model %s", model, pricing.Model)
		}
		if pricing.InputCostPer1MTokens <= 0 || pricing.OutputCostPer1MTokens <= 0 {
			t.Errorf("Pricing for %s should be positive", model)
		}
		if pricing.MaxRequestsPerMinute <= 0 {
			t.Errorf("Rate limit for %s should be positive", model)
		}
	}
	if _, ok := PricingTable[FallbackModel]; !ok {
		t.Errorf("Fallback model %s missing from pricing table", FallbackModel)
	}
}

func TestEstimateGenerationCost(t *testing.T) {
	e := EstimateGenerationCost("gemini-2.5-pro", 1_000_000, 100_000)
	if math.Abs(e.InputCost-1.25) > 1e-9 {
		t.Errorf("Expected input cost 1.25, got %f", e.InputCost)
	}
	if math.Abs(e.OutputCost-1.0) > 1e-9 {
		t.Errorf("Expected output cost 1.0, got %f", e.OutputCost)
	}
	if math.Abs(e.TotalCost-2.25) > 1e-9 {
		t.Errorf("Expected total cost 2.25, got %f", e.TotalCost)
	}
}

func TestEstimateGenerationCostUnknownModel(t *testing.T) {
	unknown := EstimateGenerationCost("gemini-99", 1000, 1000)
	fallback := EstimateGenerationCost(FallbackModel, 1000, 1000)
	if unknown.TotalCost != fallback.TotalCost {
		t.Errorf("Expected unknown model to use fallback pricing, got %f vs %f", unknown.TotalCost, fallback.TotalCost)
	}
	if unknown.Model != "gemini-99" {
		t.Errorf("Expected model name to be kept, got %s", unknown.Model)
	}
}

func TestEstimatePlanCost(t *testing.T) {
	sections := []SectionPlan{
		{Name: "Analisi di mercato", Prompt: strings.Repeat("a", 350), WordCount: 800},
		{Name: "Piano finanziario", Prompt: strings.Repeat("b", 700), WordCount: 2000},
	}

	estimate := EstimatePlanCost("gemini-2.5-flash", sections)
	if len(estimate.Sections) != 2 {
		t.Fatalf("Expected 2 section estimates, got %d", len(estimate.Sections))
	}
	if estimate.TotalInputTokens != 300 {
		t.Errorf("Expected 300 input tokens, got %d", estimate.TotalInputTokens)
	}
	if estimate.TotalOutputTokens != 1040+2600 {
		t.Errorf("Expected 3640 output tokens, got %d", estimate.TotalOutputTokens)
	}
	if !estimate.KnownModel {
		t.Error("Expected gemini-2.5-flash to be a known model")
	}
	if estimate.RateLimitWarning != "" {
		t.Errorf("Did not expect a rate limit warning, got %s", estimate.RateLimitWarning)
	}

	formatted := estimate.FormatEstimate()
	for _, want := range []string{"Cost Estimation for gemini-2.5-flash", "Sections to generate: 2", "Piano finanziario"} {
		if !strings.Contains(formatted, want) {
			t.Errorf("Expected formatted estimate to contain %q", want)
		}
	}
}

func TestRateLimitWarning(t *testing.T) {
	sections := make([]SectionPlan, 200)
	estimate := EstimatePlanCost("gemini-2.5-pro", sections)
	if estimate.RateLimitWarning == "" {
		t.Error("Expected rate limit warning for 200 requests on gemini-2.5-pro")
	}
}
