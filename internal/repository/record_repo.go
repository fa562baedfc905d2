package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/medcompli/cme-go-api/internal/models"
)

// RecordFilter narrows activity record queries.
type RecordFilter struct {
	Page           int
	PageSize       int
	PractitionerID string
	ActivityType   *models.ActivityType
	Status         string
	UnitID         *uint
	From           *time.Time
	To             *time.Time
}

// StatusTransition describes a conditional approval-state change. The update
// is applied as a single statement guarded by the expected current status, so
// two reviewers racing on the same record cannot both win.
type StatusTransition struct {
	FromStatus   string
	ToStatus     string
	ReviewedBy   string
	ReviewedAt   time.Time
	ReviewNote   string
	RevokeReason string
}

// ActivityRecordRepository defines data operations for submissions.
type ActivityRecordRepository interface {
	List(ctx context.Context, filter RecordFilter) ([]models.ActivityRecord, int64, error)
	ListInWindow(ctx context.Context, practitionerID string, from, to time.Time) ([]models.ActivityRecord, error)
	GetByID(ctx context.Context, id uint) (models.ActivityRecord, error)
	Create(ctx context.Context, record *models.ActivityRecord) error
	DeletePending(ctx context.Context, id uint, practitionerID string) error
	Transition(ctx context.Context, id uint, change StatusTransition) (models.ActivityRecord, error)
	BulkTransition(ctx context.Context, ids []uint, unitID *uint, change StatusTransition) ([]uint, error)
}

type activityRecordRepository struct {
	db *gorm.DB
}

// NewActivityRecordRepository constructs the record repository.
func NewActivityRecordRepository(db *gorm.DB) ActivityRecordRepository {
	return &activityRecordRepository{db: db}
}

func (r *activityRecordRepository) baseQuery(ctx context.Context) *gorm.DB {
	// Catalog entries stay resolvable past soft deletion so historical
	// records keep their conversion rules and evidence requirements.
	return r.db.WithContext(ctx).Model(&models.ActivityRecord{}).
		Preload("CatalogEntry", func(db *gorm.DB) *gorm.DB { return db.Unscoped() })
}

func (r *activityRecordRepository) List(ctx context.Context, filter RecordFilter) ([]models.ActivityRecord, int64, error) {
	query := r.baseQuery(ctx)

	if filter.PractitionerID != "" {
		query = query.Where("practitioner_id = ?", filter.PractitionerID)
	}

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if filter.UnitID != nil {
		query = query.Where("unit_id = ?", *filter.UnitID)
	}

	if filter.From != nil {
		query = query.Where("activity_date >= ?", *filter.From)
	}

	if filter.To != nil {
		query = query.Where("activity_date <= ?", *filter.To)
	}

	if filter.ActivityType != nil {
		query = query.Joins("JOIN activity_catalog_entries ON activity_catalog_entries.id = activity_records.catalog_entry_id").
			Where("activity_catalog_entries.activity_type = ?", *filter.ActivityType)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var records []models.ActivityRecord
	if err := query.Order("activity_date DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// ListInWindow returns every record for the practitioner with an activity date
// inside [from, to], catalog entries preloaded. Aggregation happens in the
// service so that credit values always route through the effective-credit
// resolver.
func (r *activityRecordRepository) ListInWindow(ctx context.Context, practitionerID string, from, to time.Time) ([]models.ActivityRecord, error) {
	var records []models.ActivityRecord
	if err := r.baseQuery(ctx).
		Where("practitioner_id = ?", practitionerID).
		Where("activity_date >= ?", from).
		Where("activity_date <= ?", to).
		Order("activity_date DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *activityRecordRepository) GetByID(ctx context.Context, id uint) (models.ActivityRecord, error) {
	var record models.ActivityRecord
	if err := r.baseQuery(ctx).First(&record, id).Error; err != nil {
		return models.ActivityRecord{}, err
	}
	return record, nil
}

func (r *activityRecordRepository) Create(ctx context.Context, record *models.ActivityRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// DeletePending removes a record only while it is still pending and owned by
// the given practitioner. Approved, rejected and revoked records are retained
// for audit.
func (r *activityRecordRepository) DeletePending(ctx context.Context, id uint, practitionerID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Where("practitioner_id = ?", practitionerID).
		Where("status = ?", models.RecordStatusPending).
		Delete(&models.ActivityRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *activityRecordRepository) transitionValues(change StatusTransition) map[string]interface{} {
	values := map[string]interface{}{
		"status":      change.ToStatus,
		"reviewed_by": change.ReviewedBy,
		"reviewed_at": change.ReviewedAt,
	}
	if change.ReviewNote != "" {
		values["review_note"] = change.ReviewNote
	}
	if change.RevokeReason != "" {
		values["revoke_reason"] = change.RevokeReason
	}
	return values
}

// Transition applies a conditional status change in one statement. Zero rows
// affected means the record was missing or no longer in the expected status.
func (r *activityRecordRepository) Transition(ctx context.Context, id uint, change StatusTransition) (models.ActivityRecord, error) {
	result := r.db.WithContext(ctx).Model(&models.ActivityRecord{}).
		Where("id = ?", id).
		Where("status = ?", change.FromStatus).
		Updates(r.transitionValues(change))
	if result.Error != nil {
		return models.ActivityRecord{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.ActivityRecord{}, gorm.ErrRecordNotFound
	}

	return r.GetByID(ctx, id)
}

// BulkTransition applies one set-based conditional update across the given
// IDs, optionally scoped to a unit, and returns the IDs actually updated.
// IDs that no longer match the precondition are silently skipped.
func (r *activityRecordRepository) BulkTransition(ctx context.Context, ids []uint, unitID *uint, change StatusTransition) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var updated []models.ActivityRecord
	query := r.db.WithContext(ctx).Model(&updated).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}}}).
		Where("id IN ?", ids).
		Where("status = ?", change.FromStatus)
	if unitID != nil {
		query = query.Where("unit_id = ?", *unitID)
	}

	if err := query.Updates(r.transitionValues(change)).Error; err != nil {
		return nil, err
	}

	updatedIDs := make([]uint, 0, len(updated))
	for _, record := range updated {
		updatedIDs = append(updatedIDs, record.ID)
	}
	return updatedIDs, nil
}
