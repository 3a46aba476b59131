package repository

import (
	"errors"

	"github.com/orderbridge/internal/models"

	"gorm.io/gorm"
)

// OrderRequestRepository 订单数据访问接口
type OrderRequestRepository interface {
	Create(order *models.OrderRequest, items []models.OrderRequestItem) error
	GetByID(tenantID, id uint) (*models.OrderRequest, error)
	GetByEntityRef(tenantID, sourceID uint) (*models.OrderRequest, error)
	List(filter OrderRequestListFilter) ([]models.OrderRequest, int64, error)
	UpdateGuarded(tenantID, id uint, version int, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) *GormOrderRequestRepository
}

// GormOrderRequestRepository GORM 实现
type GormOrderRequestRepository struct {
	db *gorm.DB
}

// NewOrderRequestRepository 创建订单仓库
func NewOrderRequestRepository(db *gorm.DB) *GormOrderRequestRepository {
	return &GormOrderRequestRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRequestRepository) WithTx(tx *gorm.DB) *GormOrderRequestRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRequestRepository{db: tx}
}

// Create 创建订单与订单项
func (r *GormOrderRequestRepository) Create(order *models.OrderRequest, items []models.OrderRequestItem) error {
	if err := r.db.Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderRequestID = order.ID
		items[i].TenantID = order.TenantID
	}
	if len(items) > 0 {
		if err := r.db.Create(&items).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetByID 按租户与 ID 获取订单（含订单项）
func (r *GormOrderRequestRepository) GetByID(tenantID, id uint) (*models.OrderRequest, error) {
	var order models.OrderRequest
	err := r.db.Preload("Items").
		Where("tenant_id = ?", tenantID).
		First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByEntityRef 按对端订单 ID 反查镜像订单
func (r *GormOrderRequestRepository) GetByEntityRef(tenantID, sourceID uint) (*models.OrderRequest, error) {
	var order models.OrderRequest
	err := r.db.Preload("Items").
		Where("tenant_id = ? AND entity_id_in_source_tenant = ?", tenantID, sourceID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// List 查询订单列表
func (r *GormOrderRequestRepository) List(filter OrderRequestListFilter) ([]models.OrderRequest, int64, error) {
	query := r.db.Model(&models.OrderRequest{}).Where("tenant_id = ?", filter.TenantID)

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.LeastItemStatus != "" {
		query = query.Where("least_item_status = ?", filter.LeastItemStatus)
	}
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.Search != "" {
		query = query.Where("title LIKE ?", "%"+filter.Search+"%")
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.OrderRequest
	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Preload("Items").Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateGuarded 带版本守卫的更新；并发修改返回 ErrWriteConflict
func (r *GormOrderRequestRepository) UpdateGuarded(tenantID, id uint, version int, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["version"] = version + 1
	result := r.db.Model(&models.OrderRequest{}).
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
