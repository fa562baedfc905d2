package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/medcompli/cme-go-api/internal/dto"
	"github.com/medcompli/cme-go-api/internal/models"
)

func newCatalogService(repo *fakeCatalogRepo, audit AuditRecorder) CatalogService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewCatalogService(repo, validate, audit, testLogger())
}

func TestCatalogServiceCreate(t *testing.T) {
	repo := &fakeCatalogRepo{}
	recorder := &capturingRecorder{}
	svc := newCatalogService(repo, recorder)

	created, err := svc.Create(context.Background(), dto.CatalogCreateRequest{
		Name:             "Accredited cardiology course",
		ActivityType:     "course",
		Unit:             "hours",
		ConversionRatio:  testDecimal(t, "0.5"),
		MinHours:         testDecimalPtr(t, "1"),
		MaxHours:         testDecimalPtr(t, "40"),
		EvidenceRequired: true,
	}, AuditActor{ID: testPractitioner, Role: "doh_admin"})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.Equal(t, models.CatalogStatusActive, created.Status)

	require.Len(t, recorder.events, 1)
	require.Equal(t, "catalog.created", recorder.events[0].Action)
	require.Equal(t, "catalog_entry", recorder.events[0].EntityType)
}

func TestCatalogServiceCreateRejectsNegativeRatio(t *testing.T) {
	svc := newCatalogService(&fakeCatalogRepo{}, &capturingRecorder{})

	_, err := svc.Create(context.Background(), dto.CatalogCreateRequest{
		Name:            "Bad ratio entry",
		ActivityType:    "course",
		ConversionRatio: testDecimal(t, "-0.5"),
	}, AuditActor{ID: testPractitioner, Role: "doh_admin"})
	require.ErrorIs(t, err, ErrNegativeConversionRatio)
}

func TestCatalogServiceCreateRejectsInvertedThresholds(t *testing.T) {
	svc := newCatalogService(&fakeCatalogRepo{}, &capturingRecorder{})

	_, err := svc.Create(context.Background(), dto.CatalogCreateRequest{
		Name:            "Inverted thresholds",
		ActivityType:    "conference",
		ConversionRatio: testDecimal(t, "1"),
		MinHours:        testDecimalPtr(t, "10"),
		MaxHours:        testDecimalPtr(t, "2"),
	}, AuditActor{ID: testPractitioner, Role: "doh_admin"})
	require.ErrorIs(t, err, ErrInvalidHourThresholds)
}

func TestCatalogServiceUpdateAppliesPartialPayload(t *testing.T) {
	repo := &fakeCatalogRepo{}
	svc := newCatalogService(repo, &capturingRecorder{})

	created, err := svc.Create(context.Background(), dto.CatalogCreateRequest{
		Name:            "Research supervision",
		ActivityType:    "research",
		ConversionRatio: testDecimal(t, "2"),
	}, AuditActor{ID: testPractitioner, Role: "doh_admin"})
	require.NoError(t, err)

	newRatio := testDecimal(t, "1.5")
	updated, err := svc.Update(context.Background(), created.ID, dto.CatalogUpdateRequest{
		ConversionRatio: &newRatio,
	}, AuditActor{ID: testPractitioner, Role: "doh_admin"})
	require.NoError(t, err)
	require.True(t, newRatio.Equal(updated.ConversionRatio))
	require.Equal(t, created.Name, updated.Name, "untouched fields survive partial updates")
}

func TestCatalogServiceUpdateRevalidatesConversionRule(t *testing.T) {
	repo := &fakeCatalogRepo{}
	svc := newCatalogService(repo, &capturingRecorder{})

	created, err := svc.Create(context.Background(), dto.CatalogCreateRequest{
		Name:            "Annual conference",
		ActivityType:    "conference",
		ConversionRatio: testDecimal(t, "1"),
	}, AuditActor{ID: testPractitioner, Role: "doh_admin"})
	require.NoError(t, err)

	negative := testDecimal(t, "-1")
	_, err = svc.Update(context.Background(), created.ID, dto.CatalogUpdateRequest{
		ConversionRatio: &negative,
	}, AuditActor{ID: testPractitioner, Role: "doh_admin"})
	require.ErrorIs(t, err, ErrNegativeConversionRatio)
}

func TestCatalogServiceDeleteAndRestore(t *testing.T) {
	repo := &fakeCatalogRepo{}
	recorder := &capturingRecorder{}
	svc := newCatalogService(repo, recorder)

	created, err := svc.Create(context.Background(), dto.CatalogCreateRequest{
		Name:            "Case report writing",
		ActivityType:    "report",
		ConversionRatio: testDecimal(t, "1"),
	}, AuditActor{ID: testPractitioner, Role: "doh_admin"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID, AuditActor{ID: testPractitioner, Role: "doh_admin"}))
	// Historical recomputation still resolves the entry after deletion.
	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)

	restored, err := svc.Restore(context.Background(), created.ID, AuditActor{ID: testPractitioner, Role: "doh_admin"})
	require.NoError(t, err)
	require.Nil(t, restored.DeletedAt)

	actions := make([]string, 0, len(recorder.events))
	for _, event := range recorder.events {
		actions = append(actions, event.Action)
	}
	require.Equal(t, []string{"catalog.created", "catalog.deleted", "catalog.restored"}, actions)
}

func TestCatalogServiceGetMissing(t *testing.T) {
	svc := newCatalogService(&fakeCatalogRepo{}, &capturingRecorder{})

	_, err := svc.Get(context.Background(), 999)
	require.ErrorIs(t, err, ErrCatalogEntryNotFound)
}
