package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pi-qualytics/insight-engine/pkg/models"
)

type mockRunner struct {
	outcome  *models.ExecutionOutcome
	question string
	assetID  string
	calls    int
}

func (m *mockRunner) Execute(_ context.Context, question, assetID string) *models.ExecutionOutcome {
	m.calls++
	m.question = question
	m.assetID = assetID
	return m.outcome
}

func askRequest(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	runner := &mockRunner{outcome: &models.ExecutionOutcome{Status: models.StatusSuccess}}
	return askRequestWith(t, runner, body)
}

func askRequestWith(t *testing.T, runner *mockRunner, body string) *httptest.ResponseRecorder {
	t.Helper()
	handler := NewAskHandler(runner, zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Ask(rec, req)
	return rec
}

func TestAsk_HappyPath(t *testing.T) {
	runner := &mockRunner{outcome: &models.ExecutionOutcome{
		ExecutionID: "exec-1",
		Status:      models.StatusSuccess,
		Interpretation: &models.Interpretation{
			Answer: "completeness improved 2% this week",
		},
	}}

	rec := askRequestWith(t, runner, `{"question":"how is completeness trending?","asset_id":"PI_QUALYTICS.BANKING.CUSTOMER"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "how is completeness trending?", runner.question)
	assert.Equal(t, "PI_QUALYTICS.BANKING.CUSTOMER", runner.assetID)

	var outcome models.ExecutionOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.Equal(t, models.StatusSuccess, outcome.Status)
	assert.Equal(t, "completeness improved 2% this week", outcome.Interpretation.Answer)
}

func TestAsk_PipelineFailuresAreStillHTTP200(t *testing.T) {
	runner := &mockRunner{outcome: &models.ExecutionOutcome{
		Status: models.StatusValidationError,
		Error:  "Table not found in schema: DQ_FAKE",
	}}

	rec := askRequestWith(t, runner, `{"question":"q","asset_id":"DB.SCHEMA.T"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var outcome models.ExecutionOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.Equal(t, models.StatusValidationError, outcome.Status)
}

func TestAsk_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"not json", `not json`},
		{"missing question", `{"asset_id":"DB.SCHEMA.T"}`},
		{"blank question", `{"question":"   ","asset_id":"DB.SCHEMA.T"}`},
		{"missing asset", `{"question":"q"}`},
		{"oversized question", `{"question":"` + strings.Repeat("x", 2001) + `","asset_id":"DB.SCHEMA.T"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := askRequest(t, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAsk_RejectsGet(t *testing.T) {
	runner := &mockRunner{outcome: &models.ExecutionOutcome{}}
	handler := NewAskHandler(runner, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/api/ask", nil)
	rec := httptest.NewRecorder()
	handler.Ask(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Zero(t, runner.calls)
}

type mockStats struct {
	stats *models.AuditStats
	err   error
	days  int
}

func (m *mockStats) Stats(_ context.Context, days int) (*models.AuditStats, error) {
	m.days = days
	return m.stats, m.err
}

func TestStats_DefaultsAndPassthrough(t *testing.T) {
	source := &mockStats{stats: &models.AuditStats{Days: 7, TotalRuns: 3}}
	handler := NewStatsHandler(source, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/audit/stats", nil)
	rec := httptest.NewRecorder()
	handler.Stats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, source.days)

	req = httptest.NewRequest(http.MethodGet, "/api/audit/stats?days=30", nil)
	rec = httptest.NewRecorder()
	handler.Stats(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, source.days)
}

func TestStats_RejectsBadDays(t *testing.T) {
	handler := NewStatsHandler(&mockStats{stats: &models.AuditStats{}}, zap.NewNop())

	for _, days := range []string{"0", "-1", "366", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/audit/stats?days="+days, nil)
		rec := httptest.NewRecorder()
		handler.Stats(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "days=%s", days)
	}
}

func TestStats_SourceErrorIs500(t *testing.T) {
	handler := NewStatsHandler(&mockStats{err: errors.New("warehouse down")}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/api/audit/stats", nil)
	rec := httptest.NewRecorder()
	handler.Stats(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
