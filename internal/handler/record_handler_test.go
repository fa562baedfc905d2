package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/medcompli/cme-go-api/internal/dto"
	"github.com/medcompli/cme-go-api/internal/handler"
	"github.com/medcompli/cme-go-api/internal/service"
)

const testPractitionerID = "1b8a9c3e-4f2d-4e8a-b7c1-2d9e8f7a6001"

type mockRecordService struct {
	createResponse dto.RecordResponse
	createErr      error
	reviewErr      error
	bulkResponse   dto.BulkReviewResponse
	lastCreate     dto.RecordCreateRequest
	lastUnitID     *uint
}

func (m *mockRecordService) Create(_ context.Context, payload dto.RecordCreateRequest, _ service.AuditActor) (dto.RecordResponse, error) {
	m.lastCreate = payload
	if m.createErr != nil {
		return dto.RecordResponse{}, m.createErr
	}
	return m.createResponse, nil
}

func (m *mockRecordService) List(_ context.Context, _ dto.RecordListRequest) (dto.RecordListResponse, error) {
	return dto.RecordListResponse{}, nil
}

func (m *mockRecordService) Get(_ context.Context, _ uint) (dto.RecordResponse, error) {
	return m.createResponse, nil
}

func (m *mockRecordService) Delete(_ context.Context, _ uint, _ string) error {
	return nil
}

func (m *mockRecordService) Review(_ context.Context, _ uint, _ dto.ReviewRequest, _ service.AuditActor) (dto.RecordResponse, error) {
	if m.reviewErr != nil {
		return dto.RecordResponse{}, m.reviewErr
	}
	return m.createResponse, nil
}

func (m *mockRecordService) Revoke(_ context.Context, _ uint, _ dto.RevokeRequest, _ service.AuditActor) (dto.RecordResponse, error) {
	if m.reviewErr != nil {
		return dto.RecordResponse{}, m.reviewErr
	}
	return m.createResponse, nil
}

func (m *mockRecordService) BulkReview(_ context.Context, _ dto.BulkReviewRequest, unitID *uint, _ service.AuditActor) (dto.BulkReviewResponse, error) {
	m.lastUnitID = unitID
	return m.bulkResponse, nil
}

func (m *mockRecordService) BulkRevoke(_ context.Context, _ dto.BulkRevokeRequest, unitID *uint, _ service.AuditActor) (dto.BulkReviewResponse, error) {
	m.lastUnitID = unitID
	return m.bulkResponse, nil
}

func newRecordApp(svc service.RecordService, locals map[string]interface{}) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		for key, value := range locals {
			c.Locals(key, value)
		}
		return c.Next()
	})
	group := app.Group("/api/v1/records")
	handler.NewRecordHandler(svc, zerolog.New(io.Discard)).Register(group, group)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestRecordHandlerCreateForcesOwnPractitionerID(t *testing.T) {
	svc := &mockRecordService{createResponse: dto.RecordResponse{ID: 1, PractitionerID: testPractitionerID}}
	app := newRecordApp(svc, map[string]interface{}{
		"user_id":   testPractitionerID,
		"user_role": "practitioner",
	})

	resp := postJSON(t, app, "/api/v1/records", fiber.Map{
		"practitioner_id": "0a0a0a0a-0000-4000-8000-000000000000",
		"activity_date":   "2026-03-01T00:00:00Z",
		"credits":         "4",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, testPractitionerID, svc.lastCreate.PractitionerID, "self-submission ignores foreign practitioner ids")
}

func TestRecordHandlerCreateUnusableEntry(t *testing.T) {
	svc := &mockRecordService{createErr: service.ErrCatalogEntryUnusable}
	app := newRecordApp(svc, nil)

	resp := postJSON(t, app, "/api/v1/records", fiber.Map{
		"practitioner_id": testPractitionerID,
		"activity_date":   "2026-03-01T00:00:00Z",
	})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRecordHandlerReviewConflict(t *testing.T) {
	svc := &mockRecordService{reviewErr: service.ErrInvalidTransition}
	app := newRecordApp(svc, map[string]interface{}{
		"user_id":   testPractitionerID,
		"user_role": "unit_admin",
	})

	resp := postJSON(t, app, "/api/v1/records/5/review", fiber.Map{"decision": "approved"})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestRecordHandlerReviewNotFound(t *testing.T) {
	svc := &mockRecordService{reviewErr: service.ErrRecordNotFound}
	app := newRecordApp(svc, nil)

	resp := postJSON(t, app, "/api/v1/records/5/review", fiber.Map{"decision": "rejected"})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRecordHandlerBulkReviewScopesUnitAdmin(t *testing.T) {
	svc := &mockRecordService{bulkResponse: dto.BulkReviewResponse{Updated: []uint{1}, Skipped: []uint{2}}}
	app := newRecordApp(svc, map[string]interface{}{
		"user_id":   testPractitionerID,
		"user_role": "unit_admin",
		"unit_id":   uint(3),
	})

	resp := postJSON(t, app, "/api/v1/records/bulk/review", fiber.Map{
		"ids":      []uint{1, 2},
		"decision": "approved",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, svc.lastUnitID)
	require.Equal(t, uint(3), *svc.lastUnitID)

	var body struct {
		Success bool                   `json:"success"`
		Data    dto.BulkReviewResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, []uint{2}, body.Data.Skipped)
}

func TestRecordHandlerBulkReviewUnscopedForDOHAdmin(t *testing.T) {
	svc := &mockRecordService{bulkResponse: dto.BulkReviewResponse{Updated: []uint{1, 2}, Skipped: []uint{}}}
	app := newRecordApp(svc, map[string]interface{}{
		"user_id":   testPractitionerID,
		"user_role": "doh_admin",
		"unit_id":   uint(3),
	})

	resp := postJSON(t, app, "/api/v1/records/bulk/review", fiber.Map{
		"ids":      []uint{1, 2},
		"decision": "approved",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Nil(t, svc.lastUnitID, "department admins review across units")
}

func TestRecordHandlerInvalidID(t *testing.T) {
	app := newRecordApp(&mockRecordService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/records/oops", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
