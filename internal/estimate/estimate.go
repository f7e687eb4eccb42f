package estimate

import (
	"fmt"
	"strings"
)

// Fixed overhead table, in tokens.
const (
	// InstructionOverhead is the shared prompt scaffolding sent with every call.
	InstructionOverhead = 4000
	// DocumentOverhead covers the per-document label and separator lines.
	DocumentOverhead = 50
	// OutputRatio estimates output tokens as a fraction of input tokens.
	OutputRatio = 0.5
)

// SectionInstructions is the Budget.Sections key for instruction overhead.
const SectionInstructions = "instructions"

// CategorySection returns the Budget.Sections key for a category.
func CategorySection(name string) string {
	return "category:" + name
}

// Mode selects how categories are submitted to the extraction service.
type Mode string

const (
	// ModeBatch prices the categories as one combined request that carries
	// the instruction overhead once.
	ModeBatch Mode = "batch"
	// ModeIndividual prices one request per category.
	ModeIndividual Mode = "individual"
)

// ParseMode accepts "batch" or "individual" (case-insensitive). Empty means batch.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeBatch:
		return ModeBatch, nil
	case ModeIndividual:
		return ModeIndividual, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want batch or individual)", value)
	}
}

// Category is the estimator's view of one document set: a label and the
// token count of each member document.
type Category struct {
	Name           string
	DocumentTokens []int
}

// Budget is a per-section and total input token estimate.
type Budget struct {
	Mode     Mode           `json:"mode"`
	Sections map[string]int `json:"sections"`
	Total    int            `json:"total"`
}

// Estimate computes the input token budget for categories under mode. It is
// pure: identical input yields identical output. Empty input yields a zero
// budget with no sections.
func Estimate(categories []Category, mode Mode) Budget {
	if mode != ModeIndividual {
		mode = ModeBatch
	}
	budget := Budget{Mode: mode, Sections: map[string]int{}}
	if len(categories) == 0 {
		return budget
	}

	for _, category := range categories {
		tokens := 0
		for _, count := range category.DocumentTokens {
			if count > 0 {
				tokens += count
			}
			tokens += DocumentOverhead
		}
		budget.Sections[CategorySection(category.Name)] += tokens
		budget.Total += tokens
	}

	instructions := InstructionOverhead
	if mode == ModeIndividual {
		instructions *= len(categories)
	}
	budget.Sections[SectionInstructions] = instructions
	budget.Total += instructions
	return budget
}

// EstimateOutput returns the expected output tokens for an input size.
func EstimateOutput(inputTokens int) int {
	if inputTokens <= 0 {
		return 0
	}
	return int(float64(inputTokens) * OutputRatio)
}
