package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"NewsDesk/internal/domain"
	"NewsDesk/internal/grading"
	"NewsDesk/internal/guard"
	"NewsDesk/internal/infrastructure/sourcetext"
	"NewsDesk/internal/logging"
	"NewsDesk/internal/ports"
	"NewsDesk/internal/rewrite"
	"NewsDesk/internal/verify"
)

// ErrAlreadyClaimed is reported when another run moved the item out of pending first.
var ErrAlreadyClaimed = errors.New("item already claimed by another run")

// Gate decides whether a provider call may be attempted.
type Gate interface {
	CanProcess(ctx context.Context, region string, inputLength int) guard.Decision
}

// Rewriter produces news copy from source text with one provider call.
type Rewriter interface {
	Rewrite(ctx context.Context, source string) (rewrite.Result, ports.Completion, error)
}

// Verifier checks a rewrite against its source with one provider call.
type Verifier interface {
	Verify(ctx context.Context, original, rewritten string) (verify.Outcome, ports.Completion, error)
}

// PipelineDeps wires the driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Queue    ports.WorkQueue
	Ledger   ports.UsageLedger
	Gate     Gate
	Rewriter Rewriter
	Verifier Verifier
	Notifier ports.Notifier
	// Provider names the backend in usage records.
	Provider string
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Location *time.Location
	Now      func() time.Time
}

// PipelineOptions tune batch behaviour. Zero values pick the defaults.
type PipelineOptions struct {
	BatchSize   int
	CallTimeout time.Duration
	ItemDelay   time.Duration
	Retry       RetryPolicy
}

// Defaults applied by NewPipeline.
const (
	DefaultBatchSize   = 20
	DefaultCallTimeout = 60 * time.Second
)

// BatchRequest selects the pending items of one run.
type BatchRequest struct {
	Region string `json:"region"`
	Limit  int    `json:"limit"`
}

// Pipeline drives pending work items through guard, rewrite, verify, grading and the ledger.
type Pipeline struct {
	queue    ports.WorkQueue
	ledger   ports.UsageLedger
	gate     Gate
	rewriter Rewriter
	verifier Verifier
	notifier ports.Notifier
	provider string
	logger   *slog.Logger
	tracer   trace.Tracer
	loc      *time.Location
	now      func() time.Time
	opts     PipelineOptions
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps, opts PipelineOptions) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("NewsDesk/internal/usecase")
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Provider == "" {
		deps.Provider = "unknown"
	}

	return &Pipeline{
		queue:    deps.Queue,
		ledger:   deps.Ledger,
		gate:     deps.Gate,
		rewriter: deps.Rewriter,
		verifier: deps.Verifier,
		notifier: deps.Notifier,
		provider: deps.Provider,
		logger:   deps.Logger,
		tracer:   deps.Tracer,
		loc:      deps.Location,
		now:      deps.Now,
		opts:     opts,
	}
}

// RunBatch processes pending items oldest first, one at a time. A quota or master-switch
// denial ends the batch early and leaves the remaining items pending. Cancellation of ctx
// returns the results gathered so far together with ErrCancelled.
func (p *Pipeline) RunBatch(ctx context.Context, req BatchRequest) ([]domain.ItemResult, error) {
	limit := req.Limit
	if limit <= 0 || limit > p.opts.BatchSize {
		limit = p.opts.BatchSize
	}

	items, err := p.queue.ListPending(ctx, req.Region, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	logger := p.logger.With("region", req.Region)
	logger.Info("batch started", "items", len(items))

	results := make([]domain.ItemResult, 0, len(items))
	calledProvider := false
	for _, item := range items {
		if calledProvider {
			if err := sleepContext(ctx, p.opts.ItemDelay); err != nil {
				p.publishDigest(ctx, req.Region, results)
				return results, fmt.Errorf("batch: %w: %w", ErrCancelled, err)
			}
		}
		if err := ctx.Err(); err != nil {
			p.publishDigest(ctx, req.Region, results)
			return results, fmt.Errorf("batch: %w: %w", ErrCancelled, err)
		}

		res := p.ProcessItem(ctx, item)
		results = append(results, res)
		calledProvider = res.Status != domain.StatusPending

		if code := guard.Code(res.DenialCode); code.HaltsBatch() {
			logger.Info("batch halted by guard", "code", code, "reason", res.Error)
			break
		}
		if ctx.Err() != nil {
			p.publishDigest(ctx, req.Region, results)
			return results, fmt.Errorf("batch: %w: %w", ErrCancelled, ctx.Err())
		}
	}

	logger.Info("batch finished", "processed", len(results))
	p.publishDigest(ctx, req.Region, results)
	return results, nil
}

// ProcessItem runs one item through the state machine. Guard denials and lost claims leave the
// item pending; every other path ends in exactly one terminal status write.
func (p *Pipeline) ProcessItem(ctx context.Context, item domain.WorkItem) domain.ItemResult {
	ctx, span := p.tracer.Start(ctx, "pipeline.process_item", trace.WithAttributes(
		attribute.String("item.id", item.ID),
		attribute.String("item.region", item.Region),
	))
	defer span.End()

	logger := p.logger.With("item", item.ID, "region", item.Region)
	result := domain.ItemResult{ID: item.ID, Status: domain.StatusPending}

	decision := p.gate.CanProcess(ctx, item.Region, sourcetext.Length(item.SourceText))
	if decision.Code != "" {
		span.SetAttributes(attribute.String("guard.code", string(decision.Code)))
	}
	if !decision.Allowed {
		logger.Info("guard denied item", "code", decision.Code, "reason", decision.Reason)
		result.DenialCode = string(decision.Code)
		result.Error = decision.Reason
		return result
	}

	if err := ctx.Err(); err != nil {
		result.Error = fmt.Errorf("%w: %w", ErrCancelled, err).Error()
		return result
	}

	won, err := p.queue.Claim(ctx, item.ID)
	if err != nil {
		logger.Error("claim failed", "error", err)
		result.Error = fmt.Sprintf("claim: %v", err)
		return result
	}
	if !won {
		logger.Info("item skipped", "reason", ErrAlreadyClaimed)
		result.Error = ErrAlreadyClaimed.Error()
		return result
	}

	var spent usageTally
	rewritten, err := callWithPolicy(ctx, p.opts.Retry, p.opts.CallTimeout, p.retryNotify(logger, "rewrite"),
		func(ctx context.Context) (rewrite.Result, error) {
			res, completion, err := p.rewriter.Rewrite(ctx, item.SourceText)
			if errors.Is(err, rewrite.ErrEmptyRewrite) {
				spent.add(completion)
				return res, backoff.Permanent(err)
			}
			if err == nil {
				spent.add(completion)
			}
			return res, err
		})
	if err != nil {
		p.record(ctx, logger, item, spent)
		return p.fail(ctx, span, logger, item, fmt.Errorf("rewrite: %w", err))
	}

	verified, err := callWithPolicy(ctx, p.opts.Retry, p.opts.CallTimeout, p.retryNotify(logger, "verify"),
		func(ctx context.Context) (verify.Outcome, error) {
			out, completion, err := p.verifier.Verify(ctx, item.SourceText, rewritten.Content)
			if errors.Is(err, verify.ErrEmptyReport) {
				spent.add(completion)
				return out, backoff.Permanent(err)
			}
			if err == nil {
				spent.add(completion)
			}
			return out, err
		})
	p.record(ctx, logger, item, spent)
	if err != nil {
		return p.fail(ctx, span, logger, item, fmt.Errorf("verify: %w", err))
	}

	grade := verified.Grade
	outcome := domain.Outcome{
		Status:      grading.Decide(grade),
		Content:     rewritten.Content,
		Subtitle:    rewritten.Subtitle,
		Grade:       grade,
		LengthRatio: verified.LengthRatio,
	}
	span.SetAttributes(
		attribute.String("item.grade", string(grade)),
		attribute.Float64("item.length_ratio", outcome.LengthRatio),
	)

	if err := p.queue.Complete(context.WithoutCancel(ctx), item.ID, outcome); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "complete")
		logger.Error("persist outcome failed", "error", err)
		result.Status = domain.StatusProcessing
		result.Grade = grade
		result.Error = fmt.Sprintf("complete: %v", err)
		return result
	}

	logger.Info("item processed", "status", outcome.Status, "grade", grade, "ratio", outcome.LengthRatio, "uncertain", verified.Uncertain)
	result.Success = true
	result.Status = outcome.Status
	result.Grade = grade
	result.Ratio = outcome.LengthRatio
	return result
}

// usageTally sums the provider calls that returned an answer, usable or not.
type usageTally struct {
	calls int
	usage ports.Completion
}

func (t *usageTally) add(c ports.Completion) {
	t.calls++
	t.usage.InputTokens += c.InputTokens
	t.usage.OutputTokens += c.OutputTokens
}

func (p *Pipeline) fail(ctx context.Context, span trace.Span, logger *slog.Logger, item domain.WorkItem, cause error) domain.ItemResult {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	logger.Warn("item failed", "error", cause)

	result := domain.ItemResult{ID: item.ID, Status: domain.StatusFailed, Error: cause.Error()}
	if err := p.queue.Complete(context.WithoutCancel(ctx), item.ID, domain.Outcome{
		Status: domain.StatusFailed,
		Error:  cause.Error(),
	}); err != nil {
		logger.Error("persist failure failed", "error", err)
		result.Status = domain.StatusProcessing
		result.Error = fmt.Sprintf("%s; complete: %v", cause, err)
	}
	return result
}

// record appends one ledger row even when ctx is cancelled. Append errors are only logged.
func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, item domain.WorkItem, spent usageTally) {
	if p.ledger == nil || spent.calls == 0 {
		return
	}
	now := p.now()
	rec := domain.UsageRecord{
		Date:         now.In(p.loc),
		Region:       item.Region,
		Provider:     p.provider,
		CallCount:    spent.calls,
		InputTokens:  spent.usage.InputTokens,
		OutputTokens: spent.usage.OutputTokens,
		ItemID:       item.ID,
		CreatedAt:    now.UTC(),
	}
	if err := p.ledger.Append(context.WithoutCancel(ctx), rec); err != nil {
		logger.Error("usage append failed", "error", err, "calls", spent.calls, "tokens", rec.TotalTokens())
	}
}

func (p *Pipeline) retryNotify(logger *slog.Logger, stage string) func(error, time.Duration) {
	return func(err error, next time.Duration) {
		logger.Warn("provider call failed, retrying", "stage", stage, "error", err, "backoff", next)
	}
}

func (p *Pipeline) publishDigest(ctx context.Context, region string, results []domain.ItemResult) {
	if p.notifier == nil || len(results) == 0 {
		return
	}
	message := buildDigestMessage(region, results)
	if message == "" {
		return
	}
	if err := p.notifier.PublishDigest(context.WithoutCancel(ctx), message); err != nil {
		p.logger.Warn("publish digest failed", "region", region, "error", err)
	}
}

// buildDigestMessage lists the items that reached a terminal state. Pending results are left
// out since nothing happened to them.
func buildDigestMessage(region string, results []domain.ItemResult) string {
	var b strings.Builder
	for _, r := range results {
		if r.Status == domain.StatusPending {
			continue
		}
		line := fmt.Sprintf("- %s: %s", r.ID, r.Status)
		if r.Grade != "" {
			line += fmt.Sprintf(" (grade %s, ratio %.2f)", r.Grade, r.Ratio)
		}
		if r.Error != "" {
			line += "\n  " + r.Error
		}
		b.WriteString(line + "\n")
	}
	if b.Len() == 0 {
		return ""
	}

	title := "NewsDesk batch"
	if region != "" {
		title += " [" + region + "]"
	}
	return title + "\n" + b.String()
}
