// Package httpapi exposes the batch trigger and guard administration endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"NewsDesk/internal/domain"
	"NewsDesk/internal/guard"
	"NewsDesk/internal/infrastructure/sourcetext"
	"NewsDesk/internal/logging"
	"NewsDesk/internal/ports"
	"NewsDesk/internal/usecase"
)

// BatchRunner runs one pending batch.
type BatchRunner interface {
	RunBatch(ctx context.Context, req usecase.BatchRequest) ([]domain.ItemResult, error)
}

// GuardAdmin is the subset of the guard the API exposes.
type GuardAdmin interface {
	CanProcess(ctx context.Context, region string, inputLength int) guard.Decision
	Invalidate()
}

// Deps wires the router.
type Deps struct {
	Batches  BatchRunner
	Guard    GuardAdmin
	Queue    ports.WorkQueue
	Ledger   ports.UsageLedger
	Health   func(context.Context) error
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

// Router builds HTTP handlers for /v1 and /healthz.
type Router struct {
	deps Deps
}

func NewRouter(deps Deps) *Router {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	return &Router{deps: deps}
}

func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/batches", r.runBatch)
	mux.HandleFunc("POST /v1/items", r.submitItem)
	mux.HandleFunc("POST /v1/guard/invalidate", r.invalidate)
	mux.HandleFunc("GET /v1/guard/check", r.check)
	mux.HandleFunc("GET /v1/usage/summary", r.usageSummary)
	mux.HandleFunc("GET /healthz", r.health)
}

type batchResponse struct {
	Results []domain.ItemResult `json:"results"`
	Error   string              `json:"error,omitempty"`
}

// runBatch processes a batch under the request context; a client disconnect cancels it.
func (r *Router) runBatch(w http.ResponseWriter, req *http.Request) {
	var body usecase.BatchRequest
	if req.ContentLength != 0 {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "invalid batch request: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	if body.Limit < 0 {
		http.Error(w, "limit must not be negative", http.StatusBadRequest)
		return
	}

	results, err := r.deps.Batches.RunBatch(req.Context(), body)
	if results == nil {
		results = []domain.ItemResult{}
	}
	if err != nil {
		r.deps.Logger.Warn("batch request ended with error", "region", body.Region, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, usecase.ErrCancelled) {
			status = http.StatusServiceUnavailable
		}
		respondJSON(w, status, batchResponse{Results: results, Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, batchResponse{Results: results})
}

type itemRequest struct {
	SourceText string `json:"sourceText"`
	HTML       string `json:"html"`
	Region     string `json:"region"`
}

type itemResponse struct {
	ID        string        `json:"id"`
	Region    string        `json:"region"`
	Status    domain.Status `json:"status"`
	Length    int           `json:"length"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (r *Router) submitItem(w http.ResponseWriter, req *http.Request) {
	var body itemRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid item: "+err.Error(), http.StatusBadRequest)
		return
	}

	raw := body.SourceText
	if raw == "" {
		raw = body.HTML
	}
	text, err := sourcetext.PlainText(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if text == "" {
		http.Error(w, "sourceText or html is required", http.StatusBadRequest)
		return
	}

	item, err := r.deps.Queue.Submit(req.Context(), domain.WorkItem{
		SourceText: text,
		Region:     strings.TrimSpace(body.Region),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, itemResponse{
		ID:        item.ID,
		Region:    item.Region,
		Status:    item.Status,
		Length:    sourcetext.Length(item.SourceText),
		CreatedAt: item.CreatedAt,
	})
}

func (r *Router) invalidate(w http.ResponseWriter, _ *http.Request) {
	r.deps.Guard.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) check(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	length := 0
	if raw := q.Get("length"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "length must be a non-negative integer", http.StatusBadRequest)
			return
		}
		length = n
	}
	respondJSON(w, http.StatusOK, r.deps.Guard.CanProcess(req.Context(), q.Get("region"), length))
}

type usageResponse struct {
	Date   string              `json:"date"`
	Region string              `json:"region,omitempty"`
	Today  domain.UsageSummary `json:"today"`
	Month  domain.UsageSummary `json:"month"`
}

func (r *Router) usageSummary(w http.ResponseWriter, req *http.Request) {
	loc := r.deps.Location
	now := r.deps.Now().In(loc)
	region := req.URL.Query().Get("region")
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)

	today, err := r.deps.Ledger.Summarize(req.Context(), ports.UsageFilter{From: day, To: day.AddDate(0, 0, 1), Region: region})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	monthly, err := r.deps.Ledger.Summarize(req.Context(), ports.UsageFilter{From: month, To: month.AddDate(0, 1, 0), Region: region})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, usageResponse{
		Date:   day.Format("2006-01-02"),
		Region: region,
		Today:  today,
		Month:  monthly,
	})
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if r.deps.Health != nil {
		if err := r.deps.Health(req.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
