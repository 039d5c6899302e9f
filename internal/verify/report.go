package verify

import (
	"bufio"
	"strings"
	"unicode"

	"NewsDesk/internal/grading"
)

// axisKeys maps the report labels, including the Korean ones some models fall back to.
var axisKeys = map[string]string{
	"NUMBERS": "numbers",
	"숫자":      "numbers",
	"DATES":   "dates",
	"날짜":      "dates",
	"NAMES":   "names",
	"이름":      "names",
	"인명":      "names",
	"ADDED":   "added",
	"추가":      "added",
}

// ParseReport reads the fixed-format verification report. Labels are case-insensitive and may
// carry markdown decoration. An axis whose line is missing or unreadable is Uncertain, and the
// first line for an axis wins.
func ParseReport(text string) grading.Findings {
	seen := make(map[string]grading.Finding, 4)

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		label, value, ok := splitLine(sc.Text())
		if !ok {
			continue
		}
		axis, known := axisKeys[strings.ToUpper(label)]
		if !known {
			continue
		}
		if _, dup := seen[axis]; dup {
			continue
		}
		seen[axis] = classify(axis, value)
	}

	findings := grading.Findings{
		Numbers:   grading.FindingUncertain,
		Dates:     grading.FindingUncertain,
		Names:     grading.FindingUncertain,
		Additions: grading.FindingUncertain,
	}
	if f, ok := seen["numbers"]; ok {
		findings.Numbers = f
	}
	if f, ok := seen["dates"]; ok {
		findings.Dates = f
	}
	if f, ok := seen["names"]; ok {
		findings.Names = f
	}
	if f, ok := seen["added"]; ok {
		findings.Additions = f
	}
	return findings
}

// NotesFrom returns the NOTES line of a report, if any.
func NotesFrom(text string) string {
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		label, value, ok := splitLine(sc.Text())
		if ok && strings.EqualFold(label, "NOTES") {
			return value
		}
	}
	return ""
}

func splitLine(line string) (label, value string, ok bool) {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*#> \t")
	idx := strings.IndexAny(line, ":：")
	if idx <= 0 {
		return "", "", false
	}
	label = strings.Trim(line[:idx], "*_` \t")
	value = strings.Trim(line[idx:], ":：*_` \t")
	return label, value, label != ""
}

func classify(axis, value string) grading.Finding {
	word := strings.ToUpper(value)
	if i := strings.IndexFunc(word, func(r rune) bool { return !unicode.IsLetter(r) }); i >= 0 {
		word = word[:i]
	}

	if axis == "added" {
		switch word {
		case "NONE", "NO", "없음", "아니오", "아니요":
			return grading.FindingMatched
		case "DETECTED", "YES", "있음", "감지", "감지됨", "발견", "발견됨":
			return grading.FindingMismatched
		}
		return grading.FindingUncertain
	}

	switch word {
	case "MATCH", "MATCHED", "일치", "일치함":
		return grading.FindingMatched
	case "MISMATCH", "MISMATCHED", "불일치", "불일치함":
		return grading.FindingMismatched
	}
	return grading.FindingUncertain
}
