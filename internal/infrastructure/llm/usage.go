package llm

import (
	"unicode/utf8"

	"NewsDesk/internal/ports"
)

// charsPerToken is a rough average used only when a provider omits usage figures.
const charsPerToken = 4

// withEstimatedUsage fills missing token counts from prompt and completion lengths.
func withEstimatedUsage(c ports.Completion, prompt string) ports.Completion {
	if c.InputTokens <= 0 {
		c.InputTokens = estimateTokens(prompt)
	}
	if c.OutputTokens <= 0 {
		c.OutputTokens = estimateTokens(c.Text)
	}
	return c
}

func estimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	return (n + charsPerToken - 1) / charsPerToken
}
