package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"NewsDesk/internal/domain"
	"NewsDesk/internal/ports"
)

var _ ports.UsageLedger = (*Store)(nil)

// Append inserts a usage record. The ledger exposes no update or delete path.
func (s *Store) Append(ctx context.Context, rec domain.UsageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	if rec.Date.IsZero() {
		rec.Date = rec.CreatedAt
	}

	query, args, err := s.sb.Insert("usage_records").
		Columns("id", "usage_date", "region", "provider", "call_count", "input_tokens", "output_tokens", "item_id", "created_at").
		Values(rec.ID, rec.Date.Format(dateLayout), rec.Region, rec.Provider, rec.CallCount, rec.InputTokens, rec.OutputTokens, rec.ItemID, rec.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build usage insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append usage: %w", err)
	}
	return nil
}

// Summarize sums calls and tokens for usage dates in [From, To), compared by calendar date
// in the location each bound carries.
func (s *Store) Summarize(ctx context.Context, filter ports.UsageFilter) (domain.UsageSummary, error) {
	builder := s.sb.Select(
		"COALESCE(SUM(call_count), 0)",
		"COALESCE(SUM(input_tokens + output_tokens), 0)",
	).From("usage_records")
	if !filter.From.IsZero() {
		builder = builder.Where(sq.GtOrEq{"usage_date": filter.From.Format(dateLayout)})
	}
	if !filter.To.IsZero() {
		builder = builder.Where(sq.Lt{"usage_date": filter.To.Format(dateLayout)})
	}
	if filter.Region != "" {
		builder = builder.Where(sq.Eq{"region": filter.Region})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return domain.UsageSummary{}, fmt.Errorf("build usage summary: %w", err)
	}

	var sum domain.UsageSummary
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&sum.Calls, &sum.Tokens); err != nil {
		return domain.UsageSummary{}, fmt.Errorf("summarize usage: %w", err)
	}
	return sum, nil
}

// UsageForItem lists the ledger rows recorded for one work item.
func (s *Store) UsageForItem(ctx context.Context, itemID string) ([]domain.UsageRecord, error) {
	query, args, err := s.sb.Select("id", "usage_date", "region", "provider", "call_count", "input_tokens", "output_tokens", "item_id", "created_at").
		From("usage_records").
		Where(sq.Eq{"item_id": itemID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build usage select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var records []domain.UsageRecord
	for rows.Next() {
		var (
			rec  domain.UsageRecord
			date string
		)
		if err := rows.Scan(&rec.ID, &date, &rec.Region, &rec.Provider, &rec.CallCount, &rec.InputTokens, &rec.OutputTokens, &rec.ItemID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		if rec.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("scan usage date: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
