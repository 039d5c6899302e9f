package ports

import (
	"context"
	"time"

	"NewsDesk/internal/domain"
)

// WorkQueue exposes pending work items and accepts their status transitions.
type WorkQueue interface {
	Submit(ctx context.Context, item domain.WorkItem) (domain.WorkItem, error)
	ListPending(ctx context.Context, region string, limit int) ([]domain.WorkItem, error)
	Claim(ctx context.Context, id string) (bool, error)
	Complete(ctx context.Context, id string, outcome domain.Outcome) error
}

// UsageFilter bounds a ledger aggregation. Region is optional.
type UsageFilter struct {
	From   time.Time
	To     time.Time
	Region string
}

// UsageLedger is the append-only record of provider consumption.
type UsageLedger interface {
	Append(ctx context.Context, rec domain.UsageRecord) error
	Summarize(ctx context.Context, filter UsageFilter) (domain.UsageSummary, error)
}

// GuardConfigStore reads the fixed guard configuration key set.
type GuardConfigStore interface {
	LoadGuardConfig(ctx context.Context) (domain.GuardConfig, error)
}

// Completion is the text and token accounting returned by a single provider call.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Provider performs one synchronous text-generation call.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (Completion, error)
}

// Notifier streams batch digests to the editorial chat or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when batches execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
