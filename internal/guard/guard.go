// Package guard decides whether a provider call may be attempted for a work item. Checks run in
// a fixed order and stop at the first failure.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsDesk/internal/domain"
	"NewsDesk/internal/ports"
)

// Code classifies a guard decision.
type Code string

const (
	CodeDisabled             Code = "DISABLED"
	CodeRegionNotEnabled     Code = "REGION_NOT_ENABLED"
	CodeInputTooLong         Code = "INPUT_TOO_LONG"
	CodeDailyLimitExceeded   Code = "DAILY_LIMIT_EXCEEDED"
	CodeMonthlyLimitExceeded Code = "MONTHLY_LIMIT_EXCEEDED"
	// CodeStoreUnavailable denies because a store read failed under FailClosed.
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	// CodeFailedOpen allows despite a failed store read under FailOpen.
	CodeFailedOpen Code = "STORE_UNAVAILABLE_FAIL_OPEN"
)

// HaltsBatch reports whether a denial with this code applies to every remaining item,
// as opposed to only the item that was checked.
func (c Code) HaltsBatch() bool {
	switch c {
	case CodeDisabled, CodeDailyLimitExceeded, CodeMonthlyLimitExceeded, CodeStoreUnavailable:
		return true
	default:
		return false
	}
}

// FailurePolicy decides the outcome when configuration or ledger reads fail.
type FailurePolicy int

const (
	// FailOpen admits the request: availability is preferred over quota strictness.
	FailOpen FailurePolicy = iota
	// FailClosed denies the request with CodeStoreUnavailable.
	FailClosed
)

func (p FailurePolicy) String() string {
	if p == FailClosed {
		return "closed"
	}
	return "open"
}

// Decision is the result of CanProcess. Code is empty for a clean allow.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Code    Code   `json:"code,omitempty"`
}

// Options tune a Guard. Zero values pick the documented defaults.
type Options struct {
	TTL      time.Duration
	Policy   FailurePolicy
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

// Guard gates provider calls against GuardConfig and the usage ledger.
type Guard struct {
	cache  *ConfigCache
	ledger ports.UsageLedger
	policy FailurePolicy
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// New wires a guard. The config cache lives as long as the guard.
func New(store ports.GuardConfigStore, ledger ports.UsageLedger, opts Options) *Guard {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Guard{
		cache:  NewConfigCache(store, opts.TTL, opts.Now, opts.Logger),
		ledger: ledger,
		policy: opts.Policy,
		loc:    opts.Location,
		now:    opts.Now,
		logger: opts.Logger,
	}
}

// Invalidate drops the cached config; the next check reloads it.
func (g *Guard) Invalidate() {
	g.cache.Invalidate()
}

// Config returns the config the guard currently enforces.
func (g *Guard) Config(ctx context.Context) (domain.GuardConfig, error) {
	return g.cache.Get(ctx)
}

// Policy returns the configured failure policy.
func (g *Guard) Policy() FailurePolicy {
	return g.policy
}

// CanProcess evaluates, in order: master switch, region allow-list, input length, daily call
// budget, monthly token budget. Limits of zero or less are unlimited.
func (g *Guard) CanProcess(ctx context.Context, region string, inputLength int) Decision {
	cfg, err := g.cache.Get(ctx)
	if err != nil {
		return g.storeFailure("load guard config", err)
	}

	if !cfg.Enabled {
		return deny(CodeDisabled, "automatic rewriting is switched off")
	}
	if !cfg.RegionEnabled(region) {
		return deny(CodeRegionNotEnabled, fmt.Sprintf("region %q is not enabled", region))
	}
	if cfg.MaxInputLength > 0 && inputLength > cfg.MaxInputLength {
		return deny(CodeInputTooLong, fmt.Sprintf("input length %d exceeds %d", inputLength, cfg.MaxInputLength))
	}

	now := g.now().In(g.loc)
	if cfg.DailyCallLimit > 0 {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, g.loc)
		used, err := g.ledger.Summarize(ctx, ports.UsageFilter{From: dayStart, To: dayStart.AddDate(0, 0, 1)})
		if err != nil {
			return g.storeFailure("sum daily calls", err)
		}
		if used.Calls >= cfg.DailyCallLimit {
			return deny(CodeDailyLimitExceeded, fmt.Sprintf("daily call limit reached (%d/%d)", used.Calls, cfg.DailyCallLimit))
		}
	}

	if cfg.MonthlyTokenLimit > 0 {
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, g.loc)
		used, err := g.ledger.Summarize(ctx, ports.UsageFilter{From: monthStart, To: monthStart.AddDate(0, 1, 0)})
		if err != nil {
			return g.storeFailure("sum monthly tokens", err)
		}
		if used.Tokens >= cfg.MonthlyTokenLimit {
			return deny(CodeMonthlyLimitExceeded, fmt.Sprintf("monthly token limit reached (%d/%d)", used.Tokens, cfg.MonthlyTokenLimit))
		}
	}

	return Decision{Allowed: true}
}

func (g *Guard) storeFailure(op string, err error) Decision {
	if g.logger != nil {
		g.logger.Warn("guard store read failed", "op", op, "policy", g.policy.String(), "error", err)
	}
	reason := fmt.Sprintf("%s: %v", op, err)
	if g.policy == FailClosed {
		return deny(CodeStoreUnavailable, reason)
	}
	return Decision{Allowed: true, Code: CodeFailedOpen, Reason: reason}
}

func deny(code Code, reason string) Decision {
	return Decision{Allowed: false, Code: code, Reason: reason}
}
