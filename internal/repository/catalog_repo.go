package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/medcompli/cme-go-api/internal/models"
)

// CatalogFilter narrows catalog entry queries.
type CatalogFilter struct {
	Page           int
	PageSize       int
	ActivityType   *models.ActivityType
	OwnerUnitID    *uint
	Status         string
	IncludeDeleted bool
	Search         string
}

// CatalogRepository defines data operations for activity catalog entries.
type CatalogRepository interface {
	List(ctx context.Context, filter CatalogFilter) ([]models.ActivityCatalogEntry, int64, error)
	GetByID(ctx context.Context, id uint) (models.ActivityCatalogEntry, error)
	GetByIDs(ctx context.Context, ids []uint) (map[uint]models.ActivityCatalogEntry, error)
	Create(ctx context.Context, entry *models.ActivityCatalogEntry) error
	Update(ctx context.Context, entry *models.ActivityCatalogEntry) error
	SoftDelete(ctx context.Context, id uint) error
	Restore(ctx context.Context, id uint) error
}

type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository constructs the catalog repository.
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) List(ctx context.Context, filter CatalogFilter) ([]models.ActivityCatalogEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ActivityCatalogEntry{})
	if filter.IncludeDeleted {
		query = query.Unscoped()
	}

	if filter.ActivityType != nil {
		query = query.Where("activity_type = ?", *filter.ActivityType)
	}

	if filter.OwnerUnitID != nil {
		// Unit-scoped listing also sees globally available entries.
		query = query.Where("owner_unit_id = ? OR owner_unit_id IS NULL", *filter.OwnerUnitID)
	}

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if filter.Search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
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

	var entries []models.ActivityCatalogEntry
	if err := query.Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *catalogRepository) GetByID(ctx context.Context, id uint) (models.ActivityCatalogEntry, error) {
	var entry models.ActivityCatalogEntry
	// Soft-deleted entries stay resolvable for historical credit recomputation.
	if err := r.db.WithContext(ctx).Unscoped().First(&entry, id).Error; err != nil {
		return models.ActivityCatalogEntry{}, err
	}
	return entry, nil
}

func (r *catalogRepository) GetByIDs(ctx context.Context, ids []uint) (map[uint]models.ActivityCatalogEntry, error) {
	result := make(map[uint]models.ActivityCatalogEntry, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var entries []models.ActivityCatalogEntry
	if err := r.db.WithContext(ctx).Unscoped().Where("id IN ?", ids).Find(&entries).Error; err != nil {
		return nil, err
	}

	for _, entry := range entries {
		result[entry.ID] = entry
	}
	return result, nil
}

func (r *catalogRepository) Create(ctx context.Context, entry *models.ActivityCatalogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *catalogRepository) Update(ctx context.Context, entry *models.ActivityCatalogEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

func (r *catalogRepository) SoftDelete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.ActivityCatalogEntry{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *catalogRepository) Restore(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Unscoped().Model(&models.ActivityCatalogEntry{}).
		Where("id = ?", id).
		Update("deleted_at", nil)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
