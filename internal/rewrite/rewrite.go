// Package rewrite performs the single provider call that turns source text into news copy.
// Retries are the orchestrator's concern; this package never repeats a call.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"NewsDesk/internal/domain"
	"NewsDesk/internal/ports"
)

// ErrEmptyRewrite is returned when the provider answered but no article body remained.
var ErrEmptyRewrite = errors.New("provider returned an empty rewrite")

var subtitleExpr = regexp.MustCompile(`\[\s*(?i:subtitle|부제)\s*[:：]\s*([^\]\n]*?)\s*\]`)

// Result is the parsed rewrite. LengthRatio stays zero here; verification computes it.
type Result = domain.RewriteResult

// Stage wraps a provider for the rewrite step.
type Stage struct {
	provider ports.Provider
}

// NewStage builds the rewrite stage.
func NewStage(provider ports.Provider) *Stage {
	return &Stage{provider: provider}
}

// Rewrite makes exactly one provider call. A missing subtitle marker yields an empty subtitle,
// not an error.
func (s *Stage) Rewrite(ctx context.Context, source string) (Result, ports.Completion, error) {
	completion, err := s.provider.Generate(ctx, BuildPrompt(source))
	if err != nil {
		return Result{}, ports.Completion{}, fmt.Errorf("rewrite: %w", err)
	}

	result := ParseResponse(completion.Text)
	if result.Content == "" {
		return Result{}, completion, fmt.Errorf("rewrite: %w", ErrEmptyRewrite)
	}
	return result, completion, nil
}

// ParseResponse extracts the first subtitle marker, strips every marker from the body and
// removes code fences some models wrap their answer in.
func ParseResponse(text string) Result {
	text = stripFences(strings.TrimSpace(text))

	var subtitle string
	if m := subtitleExpr.FindStringSubmatch(text); m != nil {
		subtitle = strings.TrimSpace(m[1])
	}
	body := subtitleExpr.ReplaceAllString(text, "")

	return Result{
		Content:  strings.TrimSpace(body),
		Subtitle: subtitle,
	}
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.Contains(text[:nl], " ") {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
