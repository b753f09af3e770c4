package handlers

import (
	"net/http"

	"github.com/paymentops/payment-match-backend/internal/api/dto"
	"github.com/paymentops/payment-match-backend/internal/infrastructure/storage"
)

// MatchesHandler serves the match audit trail, mainly for the human
// review queue over medium and low tier matches.
type MatchesHandler struct {
	*Base
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(repo storage.Repository) *MatchesHandler {
	return &MatchesHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/matches - returns match records, filterable by
// run_id, tier and match_type.
func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := storage.MatchFilters{
		RunID:     r.URL.Query().Get("run_id"),
		Tier:      r.URL.Query().Get("tier"),
		MatchType: r.URL.Query().Get("match_type"),
		Limit:     ParseIntParam(r, "limit", 50),
		Offset:    ParseIntParam(r, "offset", 0),
	}

	records, err := h.repo.ListMatchRecords(r.Context(), filters)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.MatchListResponse{
		Matches: make([]dto.MatchRecordResponse, 0, len(records)),
		Count:   len(records),
	}
	for _, rec := range records {
		response.Matches = append(response.Matches, dto.MatchRecordResponse{
			ID:           rec.ID,
			RunID:        rec.RunID,
			PaymentID:    rec.PaymentID,
			EntityKind:   rec.EntityKind,
			EntityID:     rec.EntityID,
			MatchType:    rec.MatchType,
			Tier:         rec.Tier,
			Confidence:   rec.Confidence,
			NameScore:    rec.NameScore,
			CompanyScore: rec.CompanyScore,
			AccountScore: rec.AccountScore,
			CreatedAt:    rec.CreatedAt,
		})
	}

	h.WriteJSON(w, http.StatusOK, response)
}
