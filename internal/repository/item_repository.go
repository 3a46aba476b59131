package repository

import (
	"errors"

	"github.com/orderbridge/internal/models"

	"gorm.io/gorm"
)

// ItemRepository 目录条目数据访问接口
type ItemRepository interface {
	Create(item *models.Item) error
	GetByID(tenantID, id uint) (*models.Item, error)
	GetBySKU(tenantID uint, sku string) (*models.Item, error)
	GetByEntityRef(tenantID, sourceID uint) (*models.Item, error)
	ListByIDs(tenantID uint, ids []uint) ([]models.Item, error)
	List(filter ItemListFilter) ([]models.Item, int64, error)
	WithTx(tx *gorm.DB) *GormItemRepository
}

// GormItemRepository GORM 实现
type GormItemRepository struct {
	db *gorm.DB
}

// NewItemRepository 创建目录条目仓库
func NewItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

// WithTx 绑定事务
func (r *GormItemRepository) WithTx(tx *gorm.DB) *GormItemRepository {
	if tx == nil {
		return r
	}
	return &GormItemRepository{db: tx}
}

// Create 创建目录条目
func (r *GormItemRepository) Create(item *models.Item) error {
	return r.db.Create(item).Error
}

// GetByID 按租户与 ID 获取目录条目
func (r *GormItemRepository) GetByID(tenantID, id uint) (*models.Item, error) {
	var item models.Item
	err := r.db.Where("tenant_id = ?", tenantID).First(&item, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// GetBySKU 按租户与 SKU 获取目录条目
func (r *GormItemRepository) GetBySKU(tenantID uint, sku string) (*models.Item, error) {
	var item models.Item
	err := r.db.Where("tenant_id = ? AND sku = ?", tenantID, sku).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// GetByEntityRef 按来源条目 ID 反查懒复制出的条目
func (r *GormItemRepository) GetByEntityRef(tenantID, sourceID uint) (*models.Item, error) {
	var item models.Item
	err := r.db.
		Where("tenant_id = ? AND entity_id_in_source_tenant = ?", tenantID, sourceID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ListByIDs 批量获取目录条目
func (r *GormItemRepository) ListByIDs(tenantID uint, ids []uint) ([]models.Item, error) {
	var items []models.Item
	if len(ids) == 0 {
		return items, nil
	}
	if err := r.db.Where("tenant_id = ? AND id IN ?", tenantID, ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// List 查询目录条目列表
func (r *GormItemRepository) List(filter ItemListFilter) ([]models.Item, int64, error) {
	query := r.db.Model(&models.Item{}).Where("tenant_id = ?", filter.TenantID)
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Search != "" {
		query = query.Where("title LIKE ? OR sku LIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Item
	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Order("id desc").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
