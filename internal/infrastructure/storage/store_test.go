package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"NewsDesk/internal/domain"
	"NewsDesk/internal/ports"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "newsdesk.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestListPendingOrdersOldestFirstAndFiltersRegion(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)

	for i, region := range []string{"mokpo", "gwangju", "gwangju"} {
		_, err := st.Submit(ctx, domain.WorkItem{
			ID:         []string{"c", "b", "a"}[i],
			SourceText: "source",
			Region:     region,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	all, err := st.ListPending(ctx, "", 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Fatalf("unexpected order: %+v", all)
	}

	gwangju, err := st.ListPending(ctx, "gwangju", 1)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(gwangju) != 1 || gwangju[0].ID != "b" {
		t.Fatalf("unexpected region filter result: %+v", gwangju)
	}
	if gwangju[0].Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", gwangju[0].Status)
	}
}

func TestSubmitRejectsEmptySource(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	if _, err := st.Submit(context.Background(), domain.WorkItem{Region: "mokpo"}); err == nil {
		t.Fatalf("expected error for empty source")
	}
}

func TestClaimIsAtMostOnce(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()
	item, err := st.Submit(ctx, domain.WorkItem{SourceText: "source", Region: "gwangju"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	first, err := st.Claim(ctx, item.ID)
	if err != nil || !first {
		t.Fatalf("expected first claim to succeed, got %v %v", first, err)
	}
	second, err := st.Claim(ctx, item.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second {
		t.Fatalf("expected second claim to lose")
	}

	pending, err := st.ListPending(ctx, "", 0)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("claimed item must leave the pending list")
	}
}

func TestCompleteOnlyFromProcessing(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()
	item, err := st.Submit(ctx, domain.WorkItem{SourceText: "source", Region: "gwangju"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	outcome := domain.Outcome{Status: domain.StatusPublished, Content: "copy", Subtitle: "sub", Grade: domain.GradeA, LengthRatio: 0.92}
	if err := st.Complete(ctx, item.ID, outcome); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for pending item, got %v", err)
	}

	if _, err := st.Claim(ctx, item.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := st.Complete(ctx, item.ID, domain.Outcome{Status: domain.StatusPending}); err == nil {
		t.Fatalf("expected backward transition to be rejected")
	}
	if err := st.Complete(ctx, item.ID, outcome); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := st.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusPublished || got.Grade != domain.GradeA || got.Content != "copy" || got.Subtitle != "sub" {
		t.Fatalf("unexpected stored item: %+v", got)
	}
	if got.LengthRatio < 0.919 || got.LengthRatio > 0.921 {
		t.Fatalf("unexpected ratio: %f", got.LengthRatio)
	}

	if err := st.Complete(ctx, item.ID, domain.Outcome{Status: domain.StatusFailed}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected terminal item to reject further writes, got %v", err)
	}
}

func TestGetUnknownItem(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	if _, err := st.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSummarizeByDateWindowAndRegion(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)

	records := []domain.UsageRecord{
		{Date: day, Region: "gwangju", Provider: "chatgpt", CallCount: 2, InputTokens: 100, OutputTokens: 50, ItemID: "a"},
		{Date: day, Region: "mokpo", Provider: "chatgpt", CallCount: 2, InputTokens: 10, OutputTokens: 5, ItemID: "b"},
		{Date: day.AddDate(0, 0, -1), Region: "gwangju", Provider: "chatgpt", CallCount: 1, InputTokens: 7, OutputTokens: 3, ItemID: "c"},
	}
	for _, rec := range records {
		if err := st.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	today, err := st.Summarize(ctx, ports.UsageFilter{From: day, To: day.AddDate(0, 0, 1)})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if today.Calls != 4 || today.Tokens != 165 {
		t.Fatalf("unexpected daily summary: %+v", today)
	}

	month, err := st.Summarize(ctx, ports.UsageFilter{
		From:   time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
		Region: "gwangju",
	})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if month.Calls != 3 || month.Tokens != 160 {
		t.Fatalf("unexpected monthly summary: %+v", month)
	}

	rows, err := st.UsageForItem(ctx, "a")
	if err != nil {
		t.Fatalf("usage for item: %v", err)
	}
	if len(rows) != 1 || rows[0].TotalTokens() != 150 || rows[0].Date.Format("2006-01-02") != "2026-03-03" {
		t.Fatalf("unexpected usage rows: %+v", rows)
	}
}

func TestGuardConfigRoundTrip(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()

	empty, err := st.LoadGuardConfig(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if empty.Enabled {
		t.Fatalf("empty settings must leave the guard disabled")
	}

	want := domain.GuardConfig{
		Enabled:           true,
		EnabledRegions:    []string{"gwangju", "mokpo"},
		DailyCallLimit:    40,
		MonthlyTokenLimit: 2_000_000,
		MaxInputLength:    8000,
	}
	if err := st.SaveGuardConfig(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	want.DailyCallLimit = 50
	if err := st.SaveGuardConfig(ctx, want); err != nil {
		t.Fatalf("save again: %v", err)
	}

	got, err := st.LoadGuardConfig(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.Enabled || got.DailyCallLimit != 50 || got.MonthlyTokenLimit != 2_000_000 || got.MaxInputLength != 8000 {
		t.Fatalf("unexpected config: %+v", got)
	}
	if len(got.EnabledRegions) != 2 || got.EnabledRegions[1] != "mokpo" {
		t.Fatalf("unexpected regions: %v", got.EnabledRegions)
	}
}

func TestLoadGuardConfigRejectsMalformedValue(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()
	if _, err := st.db.ExecContext(ctx, `INSERT INTO settings(name, value, updated_at) VALUES(?, ?, ?)`, SettingDailyCallLimit, "lots", time.Now().UTC()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := st.LoadGuardConfig(ctx); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), "oracle", "dsn"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestNewPicksPlaceholderFormatPerDriver(t *testing.T) {
	t.Parallel()

	tests := []struct {
		driver string
		want   string
	}{
		{driver: "sqlite", want: "SELECT id FROM work_items WHERE status = ?"},
		{driver: "postgres", want: "SELECT id FROM work_items WHERE status = $1"},
		{driver: "postgresql", want: "SELECT id FROM work_items WHERE status = $1"},
	}
	for _, tt := range tests {
		st := New(nil, tt.driver)
		query, _, err := st.sb.Select("id").From("work_items").Where("status = ?", "pending").ToSql()
		if err != nil {
			t.Fatalf("%s: build query: %v", tt.driver, err)
		}
		if query != tt.want {
			t.Fatalf("%s: query = %q, want %q", tt.driver, query, tt.want)
		}
	}
}
