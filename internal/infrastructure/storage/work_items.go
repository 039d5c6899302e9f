package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"NewsDesk/internal/domain"
	"NewsDesk/internal/ports"
)

var _ ports.WorkQueue = (*Store)(nil)

var workItemColumns = []string{
	"id", "source_text", "region", "status", "content", "subtitle",
	"grade", "length_ratio", "error", "created_at", "updated_at",
}

// Submit inserts a new pending work item. Ingestion collaborators own this path.
func (s *Store) Submit(ctx context.Context, item domain.WorkItem) (domain.WorkItem, error) {
	if strings.TrimSpace(item.SourceText) == "" {
		return domain.WorkItem{}, fmt.Errorf("submit work item: source text is empty")
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := s.now()
	item.Status = domain.StatusPending
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = now

	query, args, err := s.sb.Insert("work_items").
		Columns(workItemColumns...).
		Values(item.ID, item.SourceText, item.Region, string(item.Status), "", "", "", 0.0, "", item.CreatedAt, item.UpdatedAt).
		ToSql()
	if err != nil {
		return domain.WorkItem{}, fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return domain.WorkItem{}, fmt.Errorf("insert work item: %w", err)
	}
	return item, nil
}

// Get returns a single work item by id.
func (s *Store) Get(ctx context.Context, id string) (domain.WorkItem, error) {
	query, args, err := s.sb.Select(workItemColumns...).
		From("work_items").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.WorkItem{}, fmt.Errorf("build select: %w", err)
	}

	item, err := scanWorkItem(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WorkItem{}, ErrNotFound
	}
	if err != nil {
		return domain.WorkItem{}, fmt.Errorf("select work item: %w", err)
	}
	return item, nil
}

// ListPending returns pending items oldest first; an empty region lists every region.
func (s *Store) ListPending(ctx context.Context, region string, limit int) ([]domain.WorkItem, error) {
	builder := s.sb.Select(workItemColumns...).
		From("work_items").
		Where(sq.Eq{"status": string(domain.StatusPending)}).
		OrderBy("created_at ASC", "id ASC")
	if region != "" {
		builder = builder.Where(sq.Eq{"region": region})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}

	var items []domain.WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan work item: %w", err)
		}
		items = append(items, item)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return items, nil
}

// Claim moves a pending item to processing. It returns false when another runner got there first.
func (s *Store) Claim(ctx context.Context, id string) (bool, error) {
	query, args, err := s.sb.Update("work_items").
		Set("status", string(domain.StatusProcessing)).
		Set("updated_at", s.now()).
		Where(sq.Eq{"id": id, "status": string(domain.StatusPending)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build claim: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("claim work item %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim work item %s: %w", id, err)
	}
	return n == 1, nil
}

// Complete writes the terminal outcome of a processing item in a single statement.
func (s *Store) Complete(ctx context.Context, id string, outcome domain.Outcome) error {
	if !domain.StatusProcessing.CanTransition(outcome.Status) {
		return fmt.Errorf("complete work item %s: invalid target status %q", id, outcome.Status)
	}

	query, args, err := s.sb.Update("work_items").
		SetMap(map[string]any{
			"status":       string(outcome.Status),
			"content":      outcome.Content,
			"subtitle":     outcome.Subtitle,
			"grade":        string(outcome.Grade),
			"length_ratio": outcome.LengthRatio,
			"error":        outcome.Error,
			"updated_at":   s.now(),
		}).
		Where(sq.Eq{"id": id, "status": string(domain.StatusProcessing)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build complete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("complete work item %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete work item %s: %w", id, err)
	}
	if n != 1 {
		return fmt.Errorf("complete work item %s: %w", id, ErrConflict)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkItem(row rowScanner) (domain.WorkItem, error) {
	var (
		item   domain.WorkItem
		status string
		grade  string
	)
	err := row.Scan(
		&item.ID,
		&item.SourceText,
		&item.Region,
		&status,
		&item.Content,
		&item.Subtitle,
		&grade,
		&item.LengthRatio,
		&item.Error,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return domain.WorkItem{}, err
	}
	item.Status = domain.Status(status)
	item.Grade = domain.Grade(grade)
	return item, nil
}
