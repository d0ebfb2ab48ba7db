package llm

// modelPricing holds per-model pricing in USD per 1M tokens.
type modelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

var priceTable = map[string]modelPricing{
	"anthropic.claude-3-5-sonnet-20240620-v1:0": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"anthropic.claude-3-haiku-20240307-v1:0":    {InputPerMillion: 0.25, OutputPerMillion: 1.25},
	"claude-sonnet-4-5-20250929":                {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-haiku-4-5-20251001":                 {InputPerMillion: 0.80, OutputPerMillion: 4.00},
	"gpt-4o":                                    {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini":                               {InputPerMillion: 0.15, OutputPerMillion: 0.60},
}

// EstimateCost returns the estimated cost in USD for the given model and
// token counts, or 0 if the model is not priced.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := priceTable[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1_000_000.0*pricing.InputPerMillion +
		float64(outputTokens)/1_000_000.0*pricing.OutputPerMillion
}

// EstimateTokens approximates a token count at 4 characters per token.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}
