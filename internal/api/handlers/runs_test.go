package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/payment-match-backend/internal/api/dto"
	"github.com/paymentops/payment-match-backend/internal/api/handlers"
	"github.com/paymentops/payment-match-backend/internal/application/batch"
	"github.com/paymentops/payment-match-backend/internal/infrastructure/storage"
)

// fakeRunner records trigger calls without running a real batch.
type fakeRunner struct {
	lastOpts batch.Options
	summary  *batch.Summary
	err      error
}

func (f *fakeRunner) Run(_ context.Context, opts batch.Options) (*batch.Summary, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

func seedRun(t *testing.T, repo *storage.MockRepository, id string) {
	t.Helper()
	run := &storage.MatchRun{ID: id, StartedAt: "2024-03-01T00:00:00Z", Limit: 50}
	require.NoError(t, repo.StartRun(context.Background(), run))
	run.Status = "completed"
	run.PaymentsFound = 3
	run.CustomerMatches = 2
	run.NoMatches = 1
	require.NoError(t, repo.CompleteRun(context.Background(), run))
}

func TestRunsHandler_List(t *testing.T) {
	t.Run("returns empty list when no runs", func(t *testing.T) {
		repo := storage.NewMockRepository()
		handler := handlers.NewRunsHandler(repo, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunListResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.Empty(t, response.Runs)
		assert.Equal(t, 0, response.Count)
	})

	t.Run("returns runs from repository", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedRun(t, repo, "run-1")
		seedRun(t, repo, "run-2")

		handler := handlers.NewRunsHandler(repo, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunListResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.Equal(t, 2, response.Count)
		assert.Len(t, response.Runs, 2)
	})
}

func TestRunsHandler_Get(t *testing.T) {
	t.Run("returns run by id", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedRun(t, repo, "run-1")

		handler := handlers.NewRunsHandler(repo, nil)

		router := chi.NewRouter()
		router.Get("/api/runs/{id}", handler.Get)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.Equal(t, "run-1", response.ID)
		assert.Equal(t, "completed", response.Status)
		assert.Equal(t, 2, response.CustomerMatches)
	})

	t.Run("returns 404 for unknown run", func(t *testing.T) {
		repo := storage.NewMockRepository()
		handler := handlers.NewRunsHandler(repo, nil)

		router := chi.NewRouter()
		router.Get("/api/runs/{id}", handler.Get)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)

		var apiErr dto.APIError
		err := json.NewDecoder(rec.Body).Decode(&apiErr)
		require.NoError(t, err)
		assert.Equal(t, dto.ErrCodeNotFound, apiErr.Code)
	})
}

func TestRunsHandler_Trigger(t *testing.T) {
	t.Run("starts a batch with request options", func(t *testing.T) {
		repo := storage.NewMockRepository()
		runner := &fakeRunner{summary: &batch.Summary{RunID: "run-9", PaymentsFound: 4, Applied: 3}}
		handler := handlers.NewRunsHandler(repo, runner)

		body := strings.NewReader(`{"limit": 25, "dry_run": true}`)
		req := httptest.NewRequest(http.MethodPost, "/api/runs", body)
		rec := httptest.NewRecorder()

		handler.Trigger(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 25, runner.lastOpts.Limit)
		assert.True(t, runner.lastOpts.DryRun)

		var summary batch.Summary
		err := json.NewDecoder(rec.Body).Decode(&summary)
		require.NoError(t, err)
		assert.Equal(t, "run-9", summary.RunID)
		assert.Equal(t, 3, summary.Applied)
	})

	t.Run("empty body uses defaults", func(t *testing.T) {
		runner := &fakeRunner{summary: &batch.Summary{RunID: "run-10"}}
		handler := handlers.NewRunsHandler(storage.NewMockRepository(), runner)

		req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
		rec := httptest.NewRecorder()

		handler.Trigger(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, runner.lastOpts.Limit)
		assert.False(t, runner.lastOpts.DryRun)
	})

	t.Run("rejects negative limit", func(t *testing.T) {
		runner := &fakeRunner{summary: &batch.Summary{}}
		handler := handlers.NewRunsHandler(storage.NewMockRepository(), runner)

		req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{"limit": -1}`))
		rec := httptest.NewRecorder()

		handler.Trigger(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("runner failure returns 500", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("batch failed")}
		handler := handlers.NewRunsHandler(storage.NewMockRepository(), runner)

		req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()

		handler.Trigger(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
