package handler_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/medcompli/cme-go-api/internal/dto"
	"github.com/medcompli/cme-go-api/internal/handler"
)

type mockComplianceService struct {
	cycle      *dto.CycleResponse
	cycleErr   error
	summary    dto.CreditSummaryResponse
	history    dto.CreditHistoryResponse
	limit      dto.CategoryLimitResult
	lastWindow [2]time.Time
}

func (m *mockComplianceService) GetCurrentCycle(_ context.Context, _ string) (*dto.CycleResponse, error) {
	return m.cycle, m.cycleErr
}

func (m *mockComplianceService) StartCycle(_ context.Context, _ string, _ time.Time) (*dto.CycleResponse, error) {
	return m.cycle, m.cycleErr
}

func (m *mockComplianceService) GetCreditSummaryByType(_ context.Context, _ string, start, end time.Time) (dto.CreditSummaryResponse, error) {
	m.lastWindow = [2]time.Time{start, end}
	return m.summary, nil
}

func (m *mockComplianceService) GetCreditHistory(_ context.Context, _ string, start, end time.Time) (dto.CreditHistoryResponse, error) {
	m.lastWindow = [2]time.Time{start, end}
	return m.history, nil
}

func (m *mockComplianceService) ValidateCategoryLimit(_ context.Context, _ dto.CategoryLimitRequest) (dto.CategoryLimitResult, error) {
	return m.limit, nil
}

type mockStatisticsService struct {
	response dto.StatisticsResponse
	lastIDs  []string
}

func (m *mockStatisticsService) GetComplianceStatistics(_ context.Context, practitionerIDs []string) (dto.StatisticsResponse, error) {
	m.lastIDs = practitionerIDs
	return m.response, nil
}

func newComplianceApp(compliance *mockComplianceService, statistics *mockStatisticsService, locals map[string]interface{}) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		for key, value := range locals {
			c.Locals(key, value)
		}
		return c.Next()
	})
	h := handler.NewComplianceHandler(compliance, statistics, zerolog.New(io.Discard))
	h.Register(app.Group("/api/v1/compliance"))
	app.Post("/api/v1/compliance/statistics", h.Statistics)
	return app
}

func TestComplianceHandlerCurrentCycle(t *testing.T) {
	compliance := &mockComplianceService{cycle: &dto.CycleResponse{
		ID:              1,
		PractitionerID:  testPractitionerID,
		RequiredCredits: decimal.NewFromInt(120),
		Status:          "in_progress",
	}}
	app := newComplianceApp(compliance, &mockStatisticsService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/compliance/"+testPractitionerID+"/cycle", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool              `json:"success"`
		Data    dto.CycleResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, "in_progress", body.Data.Status)
}

func TestComplianceHandlerCurrentCycleAbsent(t *testing.T) {
	app := newComplianceApp(&mockComplianceService{}, &mockStatisticsService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/compliance/"+testPractitionerID+"/cycle", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestComplianceHandlerScopeViolation(t *testing.T) {
	app := newComplianceApp(&mockComplianceService{}, &mockStatisticsService{}, map[string]interface{}{
		"user_id":   testPractitionerID,
		"user_role": "practitioner",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/compliance/0a0a0a0a-0000-4000-8000-000000000000/cycle", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestComplianceHandlerSummaryDefaultsToCycleWindow(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2029, 12, 31, 0, 0, 0, 0, time.UTC)
	compliance := &mockComplianceService{cycle: &dto.CycleResponse{StartDate: start, EndDate: end}}
	app := newComplianceApp(compliance, &mockStatisticsService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/compliance/"+testPractitionerID+"/summary", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, start, compliance.lastWindow[0])
	require.Equal(t, end, compliance.lastWindow[1])
}

func TestComplianceHandlerSummaryRejectsBadWindow(t *testing.T) {
	app := newComplianceApp(&mockComplianceService{}, &mockStatisticsService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/compliance/"+testPractitionerID+"/summary?from=oops&to=2026-01-01T00:00:00Z", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestComplianceHandlerStatisticsCacheHeader(t *testing.T) {
	statistics := &mockStatisticsService{response: dto.StatisticsResponse{
		Total:      2,
		Classified: 2,
		Compliant:  1,
		AtRisk:     1,
		CacheHit:   true,
	}}
	app := newComplianceApp(&mockComplianceService{}, statistics, nil)

	resp := postJSON(t, app, "/api/v1/compliance/statistics", fiber.Map{
		"practitioner_ids": []string{testPractitionerID},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "true", resp.Header.Get("X-Cache-Hit"))
	require.Equal(t, []string{testPractitionerID}, statistics.lastIDs)
}
