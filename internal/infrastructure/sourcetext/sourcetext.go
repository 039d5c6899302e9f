// Package sourcetext turns ingested source material into the plain text the pipeline measures
// and rewrites. Lengths are counted in runes after NFC normalisation so decomposed Hangul
// does not inflate ratios.
package sourcetext

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

var (
	tagExpr         = regexp.MustCompile(`<\s*/?\s*[a-zA-Z][a-zA-Z0-9]*[^>]*>`)
	inlineSpaceExpr = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	blankLinesExpr  = regexp.MustCompile(`\n{3,}`)
)

// blockSelector lists the elements whose text becomes its own paragraph.
const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, blockquote, pre, td"

// PlainText returns raw with markup removed. Non-HTML input is only normalised.
func PlainText(raw string) (string, error) {
	if !tagExpr.MatchString(raw) {
		return Normalize(raw), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse source html: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer, header, aside, form, iframe").Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var paragraphs []string
	root.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		paragraphs = append(paragraphs, root.Text())
	}

	return Normalize(strings.Join(paragraphs, "\n\n")), nil
}

// Normalize applies NFC, unifies line endings, collapses inline whitespace and trims.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpaceExpr.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLinesExpr.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Length counts characters of s in NFC form.
func Length(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}

// Ratio returns Length(rewritten)/Length(original), or 0 when original is empty.
func Ratio(rewritten, original string) float64 {
	orig := Length(original)
	if orig == 0 {
		return 0
	}
	return float64(Length(rewritten)) / float64(orig)
}
