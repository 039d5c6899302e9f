package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"NewsDesk/internal/domain"
	"NewsDesk/internal/guard"
	"NewsDesk/internal/infrastructure/storage"
	"NewsDesk/internal/usecase"
)

type stubBatches struct {
	got     usecase.BatchRequest
	results []domain.ItemResult
	err     error
}

func (s *stubBatches) RunBatch(_ context.Context, req usecase.BatchRequest) ([]domain.ItemResult, error) {
	s.got = req
	return s.results, s.err
}

func setupTest(t *testing.T, batches BatchRunner) (*http.ServeMux, *storage.Store) {
	t.Helper()

	st, err := storage.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	now := func() time.Time { return time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC) }
	router := NewRouter(Deps{
		Batches: batches,
		Guard:   guard.New(st, st, guard.Options{Now: now}),
		Queue:   st,
		Ledger:  st,
		Health:  st.Health,
		Now:     now,
	})
	mux := http.NewServeMux()
	router.Register(mux)
	return mux, st
}

func TestRunBatchEndpoint(t *testing.T) {
	t.Parallel()

	batches := &stubBatches{results: []domain.ItemResult{{ID: "a", Success: true, Status: domain.StatusPublished, Grade: domain.GradeA}}}
	mux, _ := setupTest(t, batches)

	req := httptest.NewRequest(http.MethodPost, "/v1/batches", bytes.NewBufferString(`{"region":"gwangju","limit":5}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}
	if batches.got.Region != "gwangju" || batches.got.Limit != 5 {
		t.Fatalf("unexpected batch request: %+v", batches.got)
	}

	var body batchResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Results) != 1 || body.Results[0].Grade != domain.GradeA {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestRunBatchCancelledReturns503(t *testing.T) {
	t.Parallel()

	mux, _ := setupTest(t, &stubBatches{err: errors.Join(usecase.ErrCancelled, context.Canceled)})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/batches", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestRunBatchRejectsBadBody(t *testing.T) {
	t.Parallel()

	mux, _ := setupTest(t, &stubBatches{})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/batches", bytes.NewBufferString(`{"limit":-1}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestSubmitItemStripsHTML(t *testing.T) {
	t.Parallel()

	mux, st := setupTest(t, &stubBatches{})
	payload := `{"html":"<html><body><article><p>광주시 발표</p><script>x()</script></article></body></html>","region":"gwangju"}`
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/items", bytes.NewBufferString(payload)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}

	var created itemResponse
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	item, err := st.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if item.SourceText != "광주시 발표" || item.Status != domain.StatusPending || created.Length != 6 {
		t.Fatalf("unexpected stored item: %+v / %+v", item, created)
	}
}

func TestSubmitItemRequiresText(t *testing.T) {
	t.Parallel()

	mux, _ := setupTest(t, &stubBatches{})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/items", bytes.NewBufferString(`{"region":"mokpo"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGuardCheckAndInvalidate(t *testing.T) {
	t.Parallel()

	mux, st := setupTest(t, &stubBatches{})
	ctx := context.Background()
	if err := st.SaveGuardConfig(ctx, domain.GuardConfig{Enabled: true, EnabledRegions: []string{"gwangju"}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	decide := func(region string) guard.Decision {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/guard/check?region="+region+"&length=100", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("unexpected status %d", rr.Code)
		}
		var d guard.Decision
		if err := json.NewDecoder(rr.Body).Decode(&d); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return d
	}

	if d := decide("mokpo"); d.Allowed || d.Code != guard.CodeRegionNotEnabled {
		t.Fatalf("expected region denial, got %+v", d)
	}

	if err := st.SaveGuardConfig(ctx, domain.GuardConfig{Enabled: false}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if d := decide("gwangju"); !d.Allowed {
		t.Fatalf("cached config must still allow gwangju, got %+v", d)
	}

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/guard/invalidate", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if d := decide("gwangju"); d.Allowed || d.Code != guard.CodeDisabled {
		t.Fatalf("expected reload after invalidate, got %+v", d)
	}
}

func TestGuardCheckRejectsBadLength(t *testing.T) {
	t.Parallel()

	mux, _ := setupTest(t, &stubBatches{})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/guard/check?length=abc", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestUsageSummary(t *testing.T) {
	t.Parallel()

	mux, st := setupTest(t, &stubBatches{})
	ctx := context.Background()
	day := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)
	for _, rec := range []domain.UsageRecord{
		{Date: day, Region: "gwangju", Provider: "chatgpt", CallCount: 2, InputTokens: 100, OutputTokens: 20, ItemID: "a"},
		{Date: day.AddDate(0, 0, -1), Region: "gwangju", Provider: "chatgpt", CallCount: 2, InputTokens: 10, OutputTokens: 5, ItemID: "b"},
		{Date: day, Region: "mokpo", Provider: "chatgpt", CallCount: 1, InputTokens: 1, OutputTokens: 1, ItemID: "c"},
	} {
		if err := st.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/usage/summary?region=gwangju", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	var got usageResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Date != "2026-03-03" || got.Today.Calls != 2 || got.Today.Tokens != 120 || got.Month.Calls != 4 || got.Month.Tokens != 135 {
		t.Fatalf("unexpected summary: %+v", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	mux, _ := setupTest(t, &stubBatches{})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}
