package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/medcompli/cme-go-api/internal/models"
)

const (
	practitionerA = "0c9b2f1e-57f6-4f7e-9a61-3f2a46a1b001"
	practitionerB = "8f4de0aa-2a4a-4f5f-8f2a-5f1c77c2b002"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.ActivityCatalogEntry{},
		&models.ActivityRecord{},
		&models.ComplianceCycle{},
		&models.CreditRule{},
		&models.AuditLog{},
	))
	return db
}

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	require.NoError(t, err)
	return d
}

func seedRecord(t *testing.T, db *gorm.DB, practitionerID, status string, date time.Time, unitID *uint) models.ActivityRecord {
	t.Helper()
	credits := mustDecimal(t, "4")
	record := models.ActivityRecord{
		PractitionerID: practitionerID,
		Status:         status,
		ActivityDate:   date,
		Credits:        &credits,
		UnitID:         unitID,
	}
	require.NoError(t, db.Create(&record).Error)
	return record
}

func TestActivityRecordRepositoryListInWindow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRecordRepository(db)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seedRecord(t, db, practitionerA, models.RecordStatusApproved, start.AddDate(0, 2, 0), nil)
	seedRecord(t, db, practitionerA, models.RecordStatusPending, start.AddDate(1, 0, 0), nil)
	seedRecord(t, db, practitionerA, models.RecordStatusApproved, end.AddDate(0, 1, 0), nil)
	seedRecord(t, db, practitionerB, models.RecordStatusApproved, start.AddDate(0, 3, 0), nil)

	records, err := repo.ListInWindow(context.Background(), practitionerA, start, end)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, record := range records {
		require.Equal(t, practitionerA, record.PractitionerID)
		require.False(t, record.ActivityDate.Before(start))
		require.False(t, record.ActivityDate.After(end))
	}
}

func TestActivityRecordRepositoryPreloadsDeletedCatalogEntries(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRecordRepository(db)
	catalog := NewCatalogRepository(db)

	entry := models.ActivityCatalogEntry{
		Name:             "Accredited course",
		ActivityType:     models.ActivityTypeCourse,
		ConversionRatio:  mustDecimal(t, "1"),
		EvidenceRequired: true,
		Status:           models.CatalogStatusActive,
	}
	require.NoError(t, db.Create(&entry).Error)

	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	credits := mustDecimal(t, "8")
	record := models.ActivityRecord{
		PractitionerID: practitionerA,
		Status:         models.RecordStatusApproved,
		ActivityDate:   date,
		Credits:        &credits,
		CatalogEntryID: &entry.ID,
	}
	require.NoError(t, db.Create(&record).Error)

	require.NoError(t, catalog.SoftDelete(context.Background(), entry.ID))

	records, err := repo.ListInWindow(context.Background(), practitionerA, date.AddDate(0, -1, 0), date.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, records, 1)
	// The withdrawn entry still resolves, so its evidence requirement keeps
	// gating the stored credit value.
	require.NotNil(t, records[0].CatalogEntry)
	require.True(t, records[0].CatalogEntry.EvidenceRequired)

	got, err := repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CatalogEntry)
}

func TestActivityRecordRepositoryListPaginationTotal(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRecordRepository(db)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		seedRecord(t, db, practitionerA, models.RecordStatusApproved, base.AddDate(0, 0, i), nil)
	}

	// A page past the end still reports the full total.
	items, total, err := repo.List(context.Background(), RecordFilter{
		PractitionerID: practitionerA,
		Page:           5,
		PageSize:       20,
	})
	require.NoError(t, err)
	require.Equal(t, int64(30), total)
	require.Empty(t, items)

	items, total, err = repo.List(context.Background(), RecordFilter{
		PractitionerID: practitionerA,
		Page:           2,
		PageSize:       20,
	})
	require.NoError(t, err)
	require.Equal(t, int64(30), total)
	require.Len(t, items, 10)
}

func TestActivityRecordRepositoryTransitionGuarded(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRecordRepository(db)

	record := seedRecord(t, db, practitionerA, models.RecordStatusPending, time.Now(), nil)

	updated, err := repo.Transition(context.Background(), record.ID, StatusTransition{
		FromStatus: models.RecordStatusPending,
		ToStatus:   models.RecordStatusApproved,
		ReviewedBy: practitionerB,
		ReviewedAt: time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, models.RecordStatusApproved, updated.Status)
	require.NotNil(t, updated.ReviewedBy)

	// Second approval attempt finds no pending row.
	_, err = repo.Transition(context.Background(), record.ID, StatusTransition{
		FromStatus: models.RecordStatusPending,
		ToStatus:   models.RecordStatusApproved,
		ReviewedBy: practitionerB,
		ReviewedAt: time.Now(),
	})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestActivityRecordRepositoryBulkTransitionSkipsNonMatching(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRecordRepository(db)

	unit := uint(7)
	otherUnit := uint(9)
	pending := seedRecord(t, db, practitionerA, models.RecordStatusPending, time.Now(), &unit)
	approved := seedRecord(t, db, practitionerA, models.RecordStatusApproved, time.Now(), &unit)
	foreign := seedRecord(t, db, practitionerB, models.RecordStatusPending, time.Now(), &otherUnit)

	updated, err := repo.BulkTransition(context.Background(),
		[]uint{pending.ID, approved.ID, foreign.ID, 9999},
		&unit,
		StatusTransition{
			FromStatus: models.RecordStatusPending,
			ToStatus:   models.RecordStatusApproved,
			ReviewedBy: practitionerB,
			ReviewedAt: time.Now(),
		})
	require.NoError(t, err)
	require.Equal(t, []uint{pending.ID}, updated)

	var stored models.ActivityRecord
	require.NoError(t, db.First(&stored, foreign.ID).Error)
	require.Equal(t, models.RecordStatusPending, stored.Status)
}

func TestActivityRecordRepositoryDeletePendingOnly(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRecordRepository(db)

	pending := seedRecord(t, db, practitionerA, models.RecordStatusPending, time.Now(), nil)
	approved := seedRecord(t, db, practitionerA, models.RecordStatusApproved, time.Now(), nil)

	require.NoError(t, repo.DeletePending(context.Background(), pending.ID, practitionerA))
	require.ErrorIs(t, repo.DeletePending(context.Background(), approved.ID, practitionerA), gorm.ErrRecordNotFound)

	// Wrong owner cannot delete someone else's pending record.
	other := seedRecord(t, db, practitionerA, models.RecordStatusPending, time.Now(), nil)
	require.ErrorIs(t, repo.DeletePending(context.Background(), other.ID, practitionerB), gorm.ErrRecordNotFound)
}
