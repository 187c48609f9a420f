package llm

import (
	"math"
	"testing"

	"insurapolis-go/internal/config"
)

func TestComputeCost(t *testing.T) {
	pricing := config.LLMPricingConfig{PromptPer1K: 0.15, CompletionPer1K: 0.60}

	tests := []struct {
		name             string
		promptTokens     int
		completionTokens int
		want             float64
	}{
		{"zero usage", 0, 0, 0},
		{"prompt only", 1000, 0, 0.15},
		{"completion only", 0, 1000, 0.60},
		{"mixed", 2000, 500, 0.60},
		{"sub thousand", 100, 100, 0.075},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeCost(pricing, tt.promptTokens, tt.completionTokens)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("ComputeCost(%d, %d) = %v, want %v", tt.promptTokens, tt.completionTokens, got, tt.want)
			}
		})
	}
}

func TestComputeCostZeroPricing(t *testing.T) {
	got := ComputeCost(config.LLMPricingConfig{}, 5000, 5000)
	if got != 0 {
		t.Fatalf("ComputeCost with zero pricing = %v, want 0", got)
	}
}
