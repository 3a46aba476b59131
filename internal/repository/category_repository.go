package repository

import (
	"errors"

	"github.com/orderbridge/internal/models"

	"gorm.io/gorm"
)

// CategoryRepository 分类数据访问接口
type CategoryRepository interface {
	Create(category *models.Category) error
	GetByID(tenantID, id uint) (*models.Category, error)
	GetByName(tenantID uint, name string) (*models.Category, error)
	GetByEntityRef(tenantID, sourceID uint) (*models.Category, error)
	WithTx(tx *gorm.DB) *GormCategoryRepository
}

// GormCategoryRepository GORM 实现
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository 创建分类仓库
func NewCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCategoryRepository) WithTx(tx *gorm.DB) *GormCategoryRepository {
	if tx == nil {
		return r
	}
	return &GormCategoryRepository{db: tx}
}

// Create 创建分类
func (r *GormCategoryRepository) Create(category *models.Category) error {
	return r.db.Create(category).Error
}

// GetByID 按租户与 ID 获取分类
func (r *GormCategoryRepository) GetByID(tenantID, id uint) (*models.Category, error) {
	var category models.Category
	err := r.db.Where("tenant_id = ?", tenantID).First(&category, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

// GetByName 按租户与名称获取分类
func (r *GormCategoryRepository) GetByName(tenantID uint, name string) (*models.Category, error) {
	var category models.Category
	err := r.db.Where("tenant_id = ? AND name = ?", tenantID, name).First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

// GetByEntityRef 按来源分类 ID 反查懒复制出的分类
func (r *GormCategoryRepository) GetByEntityRef(tenantID, sourceID uint) (*models.Category, error) {
	var category models.Category
	err := r.db.
		Where("tenant_id = ? AND entity_id_in_source_tenant = ?", tenantID, sourceID).
		First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}
