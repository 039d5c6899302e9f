// Package verify checks a rewrite against its source: a local length ratio plus a second
// provider call that reports on numbers, dates, names and added content.
package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"NewsDesk/internal/domain"
	"NewsDesk/internal/grading"
	"NewsDesk/internal/infrastructure/sourcetext"
	"NewsDesk/internal/ports"
)

// ErrEmptyReport is returned when the provider answered with nothing to parse.
var ErrEmptyReport = errors.New("provider returned an empty verification report")

const reportTemplate = `You are a fact checker for a regional newsroom. Compare the REWRITE with the ORIGINAL and
answer with exactly these five lines and nothing else:

NUMBERS: MATCH | MISMATCH | UNCERTAIN
DATES: MATCH | MISMATCH | UNCERTAIN
NAMES: MATCH | MISMATCH | UNCERTAIN
ADDED: NONE | DETECTED | UNCERTAIN
NOTES: one short sentence

NUMBERS covers amounts, counts and percentages. DATES covers dates, weekdays and times.
NAMES covers people, organisations and places. ADDED is DETECTED when the rewrite states
facts, quotes or context absent from the original.

ORIGINAL:
%s

REWRITE:
%s
`

// Outcome is the verification result for one rewrite.
type Outcome struct {
	ReportText string
	Notes      string
	Findings   grading.Findings
	HasIssue   bool
	// Uncertain is set when some axis was missing or unreadable in the report.
	Uncertain   bool
	LengthRatio float64
	Grade       domain.Grade
	Report      domain.VerificationReport
}

// Stage wraps a provider for the verification step.
type Stage struct {
	provider ports.Provider
}

func NewStage(provider ports.Provider) *Stage {
	return &Stage{provider: provider}
}

// BuildPrompt renders the verification request.
func BuildPrompt(original, rewritten string) string {
	return fmt.Sprintf(reportTemplate, strings.TrimSpace(original), strings.TrimSpace(rewritten))
}

// Verify makes one provider call and grades the result. The returned completion carries the
// call's token usage even when parsing fails.
func (s *Stage) Verify(ctx context.Context, original, rewritten string) (Outcome, ports.Completion, error) {
	ratio := sourcetext.Ratio(rewritten, original)

	completion, err := s.provider.Generate(ctx, BuildPrompt(original, rewritten))
	if err != nil {
		return Outcome{}, ports.Completion{}, fmt.Errorf("verify: %w", err)
	}
	text := strings.TrimSpace(completion.Text)
	if text == "" {
		return Outcome{}, completion, fmt.Errorf("verify: %w", ErrEmptyReport)
	}

	return Evaluate(text, ratio), completion, nil
}

// Evaluate grades an already obtained report text against a length ratio.
func Evaluate(reportText string, ratio float64) Outcome {
	findings := ParseReport(reportText)
	report := grading.Report(ratio, findings)
	return Outcome{
		ReportText:  reportText,
		Notes:       NotesFrom(reportText),
		Findings:    findings,
		HasIssue:    findings.HasIssue(),
		Uncertain:   findings.Uncertain(),
		LengthRatio: ratio,
		Grade:       report.Grade,
		Report:      report,
	}
}
