package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/payment-match-backend/internal/api/dto"
	"github.com/paymentops/payment-match-backend/internal/api/handlers"
	"github.com/paymentops/payment-match-backend/internal/infrastructure/storage"
)

func TestStatsHandler_Get(t *testing.T) {
	repo := storage.NewMockRepository()
	seedRecords(t, repo)
	handler := handlers.NewStatsHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.StatsResponse
	err := json.NewDecoder(rec.Body).Decode(&response)
	require.NoError(t, err)

	assert.Equal(t, 3, response.TotalEvaluated)
	assert.Equal(t, 2, response.Matched)
	assert.Equal(t, 1, response.Unmatched)
	assert.Equal(t, 1, response.ByType["direct_id"])
	assert.Equal(t, 1, response.ByTier["medium"])
}
