package domain

import "time"

// Status enumerates the work item lifecycle. Transitions only move forward.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusHeld       Status = "held"
	StatusPublished  Status = "published"
	StatusFailed     Status = "failed"
)

// CanTransition reports whether moving from s to next keeps the lifecycle forward-only.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusPublished || next == StatusHeld || next == StatusFailed
	default:
		return false
	}
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusHeld || s == StatusFailed
}

// WorkItem is one source article or press release flowing through the pipeline.
type WorkItem struct {
	ID          string
	SourceText  string
	Region      string
	Status      Status
	Content     string
	Subtitle    string
	Grade       Grade
	LengthRatio float64
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Outcome is the single write applied to a claimed item once processing ends.
type Outcome struct {
	Status      Status
	Content     string
	Subtitle    string
	Grade       Grade
	LengthRatio float64
	Error       string
}

// ItemResult is the per-item synchronous result handed to batch triggers.
type ItemResult struct {
	ID         string  `json:"id"`
	Success    bool    `json:"success"`
	Status     Status  `json:"status"`
	Grade      Grade   `json:"grade,omitempty"`
	Error      string  `json:"error,omitempty"`
	DenialCode string  `json:"denialCode,omitempty"`
	Ratio      float64 `json:"lengthRatio,omitempty"`
}
