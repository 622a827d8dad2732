package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handleJSON(t *testing.T, a *Aggregator, payload map[string]any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, a.Handle(context.Background(), []byte("compliance"), raw))
}

func TestHandleCountsEvents(t *testing.T) {
	a := NewAggregator()

	handleJSON(t, a, map[string]any{
		"type":       "compliance_aggregate",
		"vocabulary": "gras",
		"critical":   true,
	})
	handleJSON(t, a, map[string]any{
		"type":       "compliance_aggregate",
		"vocabulary": "gras",
	})
	handleJSON(t, a, map[string]any{
		"type":       "snapshot_refresh",
		"vocabulary": "allergens",
		"outcome":    "stale_served",
	})

	a.mu.RLock()
	defer a.mu.RUnlock()
	assert.EqualValues(t, 2, a.byType["compliance_aggregate"])
	assert.EqualValues(t, 1, a.byType["snapshot_refresh"])
	assert.EqualValues(t, 2, a.byVocab["gras"])
	assert.EqualValues(t, 1, a.outcomes["stale_served"])
	assert.EqualValues(t, 1, a.critical)
}

func TestHandleToleratesGarbage(t *testing.T) {
	a := NewAggregator()
	// Malformed events are logged and skipped, never poison the consumer.
	assert.NoError(t, a.Handle(context.Background(), nil, []byte("{broken")))
}

func TestStatsHandler(t *testing.T) {
	a := NewAggregator()
	handleJSON(t, a, map[string]any{
		"type":       "compliance_aggregate",
		"vocabulary": "ndi+odi",
		"critical":   true,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit/stats", nil)
	rec := httptest.NewRecorder()
	a.StatsHandler()(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var payload struct {
		Since           string           `json:"since"`
		EventsByType    map[string]int64 `json:"events_by_type"`
		EventsByVocab   map[string]int64 `json:"events_by_vocab"`
		CriticalReports int64            `json:"critical_reports"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	assert.NotEmpty(t, payload.Since)
	assert.EqualValues(t, 1, payload.EventsByType["compliance_aggregate"])
	assert.EqualValues(t, 1, payload.EventsByVocab["ndi+odi"])
	assert.EqualValues(t, 1, payload.CriticalReports)
}
