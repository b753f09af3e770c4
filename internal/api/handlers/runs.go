package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/paymentops/payment-match-backend/internal/api/dto"
	"github.com/paymentops/payment-match-backend/internal/application/batch"
	"github.com/paymentops/payment-match-backend/internal/infrastructure/storage"
)

// BatchRunner starts batch runs on behalf of the API. Implemented by
// batch.Processor.
type BatchRunner interface {
	Run(ctx context.Context, opts batch.Options) (*batch.Summary, error)
}

// RunsHandler handles match run HTTP requests.
type RunsHandler struct {
	*Base
	runner BatchRunner // nil disables the trigger endpoint
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository, runner BatchRunner) *RunsHandler {
	return &RunsHandler{
		Base:   NewBase(repo),
		runner: runner,
	}
}

// List handles GET /api/runs - returns recent match runs.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 20)

	runs, err := h.repo.ListRuns(r.Context(), limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.RunListResponse{
		Runs:  make([]dto.RunResponse, 0, len(runs)),
		Count: len(runs),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(&run))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/runs/{id} - returns a single match run by ID.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	run, err := h.repo.GetRun(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if run == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("match run"))
		return
	}

	h.WriteJSON(w, http.StatusOK, toRunResponse(run))
}

// Trigger handles POST /api/runs - starts a batch run and returns its
// summary. Runs are synchronous; batches are short.
func (h *RunsHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("batch runner"))
		return
	}

	var req dto.TriggerRunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
			return
		}
	}
	if req.Limit < 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("limit must not be negative"))
		return
	}

	summary, err := h.runner.Run(r.Context(), batch.Options{Limit: req.Limit, DryRun: req.DryRun})
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, summary)
}

// toRunResponse converts a storage MatchRun to an API response.
func toRunResponse(run *storage.MatchRun) dto.RunResponse {
	return dto.RunResponse{
		ID:               run.ID,
		StartedAt:        run.StartedAt,
		CompletedAt:      run.CompletedAt,
		Limit:            run.Limit,
		DryRun:           run.DryRun,
		PaymentsFound:    run.PaymentsFound,
		CustomerMatches:  run.CustomerMatches,
		ClientMatches:    run.ClientMatches,
		NoMatches:        run.NoMatches,
		Errors:           run.Errors,
		HighConfidence:   run.HighConfidence,
		MediumConfidence: run.MediumConfidence,
		Status:           run.Status,
	}
}
