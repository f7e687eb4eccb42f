package estimate

// Rate is a USD price per million tokens.
type Rate struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Cost returns the USD cost of a call with the given token usage.
func Cost(inputTokens, outputTokens int, rate Rate) float64 {
	return float64(inputTokens)/1_000_000*rate.Input + float64(outputTokens)/1_000_000*rate.Output
}

// Quote is a Budget plus the projected output and price for one model.
type Quote struct {
	Budget
	Model                 string  `json:"model"`
	EstimatedOutputTokens int     `json:"estimated_output_tokens"`
	EstimatedCost         float64 `json:"estimated_cost"`
	// ExceedsLimit is set when any single request would exceed the
	// configured input ceiling.
	ExceedsLimit bool `json:"exceeds_limit"`
}

// NewQuote prices a budget. limit is the per-request input ceiling; zero
// disables the check.
func NewQuote(categories []Category, mode Mode, model string, rate Rate, limit int) Quote {
	budget := Estimate(categories, mode)
	output := EstimateOutput(budget.Total)
	quote := Quote{
		Budget:                budget,
		Model:                 model,
		EstimatedOutputTokens: output,
		EstimatedCost:         Cost(budget.Total, output, rate),
	}
	if limit > 0 {
		quote.ExceedsLimit = largestRequest(budget) > limit
	}
	return quote
}

// largestRequest returns the input size of the biggest single call the
// budget implies.
func largestRequest(budget Budget) int {
	if budget.Mode != ModeIndividual {
		return budget.Total
	}
	largest := 0
	for key, tokens := range budget.Sections {
		if key == SectionInstructions {
			continue
		}
		if tokens > largest {
			largest = tokens
		}
	}
	if largest == 0 {
		return 0
	}
	return largest + InstructionOverhead
}
