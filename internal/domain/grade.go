package domain

// Grade summarizes the rewrite and verification outcome.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// Publishable reports whether the grade allows automatic publishing.
func (g Grade) Publishable() bool {
	return g == GradeA || g == GradeB
}

// RewriteResult is the parsed output of the rewrite stage.
type RewriteResult struct {
	Content     string
	Subtitle    string
	LengthRatio float64
}

// VerificationReport flattens the verification findings for storage and display.
type VerificationReport struct {
	NumbersMatch         bool
	DatesMatch           bool
	NamesMatch           bool
	AddedContentDetected bool
	LengthRatioPass      bool
	Grade                Grade
}
