package repository

import (
	"errors"

	"github.com/orderbridge/internal/models"

	"gorm.io/gorm"
)

// OrderRequestItemRepository 订单项数据访问接口
type OrderRequestItemRepository interface {
	Create(item *models.OrderRequestItem) error
	GetByID(tenantID, id uint) (*models.OrderRequestItem, error)
	GetByEntityRef(tenantID, sourceID uint) (*models.OrderRequestItem, error)
	ListByOrder(tenantID, orderRequestID uint) ([]models.OrderRequestItem, error)
	ListByIDs(tenantID uint, ids []uint) ([]models.OrderRequestItem, error)
	UpdateGuarded(tenantID, id uint, version int, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) *GormOrderRequestItemRepository
}

// GormOrderRequestItemRepository GORM 实现
type GormOrderRequestItemRepository struct {
	db *gorm.DB
}

// NewOrderRequestItemRepository 创建订单项仓库
func NewOrderRequestItemRepository(db *gorm.DB) *GormOrderRequestItemRepository {
	return &GormOrderRequestItemRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRequestItemRepository) WithTx(tx *gorm.DB) *GormOrderRequestItemRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRequestItemRepository{db: tx}
}

// Create 创建订单项
func (r *GormOrderRequestItemRepository) Create(item *models.OrderRequestItem) error {
	return r.db.Create(item).Error
}

// GetByID 按租户与 ID 获取订单项
func (r *GormOrderRequestItemRepository) GetByID(tenantID, id uint) (*models.OrderRequestItem, error) {
	var item models.OrderRequestItem
	err := r.db.Where("tenant_id = ?", tenantID).First(&item, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// GetByEntityRef 按对端订单项 ID 反查镜像订单项
func (r *GormOrderRequestItemRepository) GetByEntityRef(tenantID, sourceID uint) (*models.OrderRequestItem, error) {
	var item models.OrderRequestItem
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

// ListByOrder 获取订单的全部未删除订单项
func (r *GormOrderRequestItemRepository) ListByOrder(tenantID, orderRequestID uint) ([]models.OrderRequestItem, error) {
	var items []models.OrderRequestItem
	err := r.db.
		Where("tenant_id = ? AND order_request_id = ?", tenantID, orderRequestID).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListByIDs 批量获取订单项
func (r *GormOrderRequestItemRepository) ListByIDs(tenantID uint, ids []uint) ([]models.OrderRequestItem, error) {
	var items []models.OrderRequestItem
	if len(ids) == 0 {
		return items, nil
	}
	err := r.db.
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateGuarded 带版本守卫的更新；并发修改返回 ErrWriteConflict
func (r *GormOrderRequestItemRepository) UpdateGuarded(tenantID, id uint, version int, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["version"] = version + 1
	result := r.db.Model(&models.OrderRequestItem{}).
		Where("tenant_id = ? AND id = ? AND version = ?", tenantID, id, version).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWriteConflict
	}
	return nil
}
