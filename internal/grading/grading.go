// Package grading turns a length ratio and verification findings into a letter grade and a
// publish or hold decision. It knows nothing about how findings were produced.
package grading

import "NewsDesk/internal/domain"

// Ratio thresholds of the grade table.
const (
	MinRatioPass = 0.7
	MinRatioHold = 0.5
)

// Finding is the tri-state outcome of one verification axis.
type Finding int

const (
	FindingUncertain Finding = iota
	FindingMatched
	FindingMismatched
)

func (f Finding) String() string {
	switch f {
	case FindingMatched:
		return "matched"
	case FindingMismatched:
		return "mismatched"
	default:
		return "uncertain"
	}
}

// Findings holds one Finding per axis. For Additions, Matched means nothing was added and
// Mismatched means unauthorised content was detected.
type Findings struct {
	Numbers   Finding
	Dates     Finding
	Names     Finding
	Additions Finding
}

// HasIssue reports whether any axis was flagged as mismatched.
func (f Findings) HasIssue() bool {
	return f.Numbers == FindingMismatched || f.Dates == FindingMismatched ||
		f.Names == FindingMismatched || f.Additions == FindingMismatched
}

// Uncertain reports whether any axis could not be read from the report. It does not affect the
// grade.
func (f Findings) Uncertain() bool {
	return f.Numbers == FindingUncertain || f.Dates == FindingUncertain ||
		f.Names == FindingUncertain || f.Additions == FindingUncertain
}

// Grade applies the table in order: ratio below 0.5 is D, below 0.7 is C, a numeric or date
// mismatch is C, a name mismatch or added content is B, otherwise A.
func Grade(ratio float64, f Findings) domain.Grade {
	switch {
	case ratio < MinRatioHold:
		return domain.GradeD
	case ratio < MinRatioPass:
		return domain.GradeC
	case f.Numbers == FindingMismatched || f.Dates == FindingMismatched:
		return domain.GradeC
	case f.HasIssue():
		return domain.GradeB
	default:
		return domain.GradeA
	}
}

// Decide maps a grade to the item's terminal status.
func Decide(g domain.Grade) domain.Status {
	if g.Publishable() {
		return domain.StatusPublished
	}
	return domain.StatusHeld
}

// Report flattens ratio and findings into the stored verification report.
func Report(ratio float64, f Findings) domain.VerificationReport {
	return domain.VerificationReport{
		NumbersMatch:         f.Numbers == FindingMatched,
		DatesMatch:           f.Dates == FindingMatched,
		NamesMatch:           f.Names == FindingMatched,
		AddedContentDetected: f.Additions == FindingMismatched,
		LengthRatioPass:      ratio >= MinRatioPass,
		Grade:                Grade(ratio, f),
	}
}
