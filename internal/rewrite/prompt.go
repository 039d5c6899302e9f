package rewrite

import (
	"fmt"
	"strings"

	"NewsDesk/internal/infrastructure/sourcetext"
)

// Bucket groups source texts by length; each bucket carries its own structural guidance.
type Bucket string

const (
	BucketShort  Bucket = "short"
	BucketMedium Bucket = "medium"
	BucketLong   Bucket = "long"
)

// Bucket thresholds in characters.
const (
	shortLimit  = 500
	mediumLimit = 1500
)

// BucketFor selects the length bucket for a source of n characters.
func BucketFor(n int) Bucket {
	switch {
	case n < shortLimit:
		return BucketShort
	case n < mediumLimit:
		return BucketMedium
	default:
		return BucketLong
	}
}

var bucketGuidance = map[Bucket]string{
	BucketShort: `- Write 2-3 short paragraphs.
- Lead with the single most important fact.
- Keep every fact from the source; do not pad with background.`,
	BucketMedium: `- Write 4-6 paragraphs.
- Lead paragraph: who, what, when, where.
- Follow with details in order of importance, then schedules, contacts or figures.`,
	BucketLong: `- Write 6 or more paragraphs in inverted-pyramid order.
- Group related details; keep every number, date and name from the source.
- Split long lists into separate sentences instead of dropping items.`,
}

const constraints = `NON-NEGOTIABLE RULES:
1. No speculative language ("is expected to", "may", "reportedly") unless the source uses it.
2. Do not invent or alter any number, amount, percentage, date, time, name, title or organisation.
3. Quotations must be copied verbatim from the source or left out entirely.
4. Do not add outside context, history, analysis or opinion.
5. Keep the length close to the source; do not summarise away facts.
6. Write in the same language as the source.`

const outputFormat = `OUTPUT FORMAT:
First line: [SUBTITLE: one-line subtitle built only from facts in the source]
Then a blank line, then the article body as plain paragraphs. No headline, no markdown.`

// BuildPrompt renders the deterministic rewrite prompt for source.
func BuildPrompt(source string) string {
	bucket := BucketFor(sourcetext.Length(source))

	var b strings.Builder
	b.WriteString("You are rewriting a press release or source article into publishable regional news copy.\n\n")
	b.WriteString(constraints)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "LENGTH GUIDANCE (%s source):\n%s\n\n", bucket, bucketGuidance[bucket])
	b.WriteString(outputFormat)
	b.WriteString("\n\nSOURCE TEXT:\n<<<\n")
	b.WriteString(source)
	b.WriteString("\n>>>\n")
	return b.String()
}
