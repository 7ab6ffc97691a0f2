package pipeline

import (
	"math"
	"strings"
)

// SummaryTarget returns the summary token budget for text.
func SummaryTarget(text string, cfg SummarizeConfig) int {
	words := len(strings.Fields(text))
	t := int(math.Ceil(float64(words) * cfg.TokensPerWord * cfg.Ratio))
	return min(max(t, cfg.MinLen), cfg.MaxLen)
}
