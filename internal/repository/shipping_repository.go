package repository

import (
	"errors"
	"time"

	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/models"

	"gorm.io/gorm"
)

// ShippingRepository 发货容器与发货事务数据访问接口
type ShippingRepository interface {
	CreateContainer(container *models.ShippingContainer) error
	GetContainerByTrackingID(tenantID uint, trackingID string) (*models.ShippingContainer, error)
	UpdateContainerStatus(tenantID uint, trackingID, status string) error
	CreateTransactions(transactions []models.ShippingTransaction) error
	ListTransactionsByTrackingID(tenantID uint, trackingID string) ([]models.ShippingTransaction, error)
	ListTransactionsByItem(tenantID, orderRequestItemID uint) ([]models.ShippingTransaction, error)
	MarkTransactionsDelivered(tenantID uint, trackingID string, deliveredAt time.Time) error
	DeleteTransactions(tenantID uint, ids []uint) error
	WithTx(tx *gorm.DB) *GormShippingRepository
}

// GormShippingRepository GORM 实现
type GormShippingRepository struct {
	db *gorm.DB
}

// NewShippingRepository 创建发货仓库
func NewShippingRepository(db *gorm.DB) *GormShippingRepository {
	return &GormShippingRepository{db: db}
}

// WithTx 绑定事务
func (r *GormShippingRepository) WithTx(tx *gorm.DB) *GormShippingRepository {
	if tx == nil {
		return r
	}
	return &GormShippingRepository{db: tx}
}

// CreateContainer 创建发货容器
func (r *GormShippingRepository) CreateContainer(container *models.ShippingContainer) error {
	return r.db.Create(container).Error
}

// GetContainerByTrackingID 按物流号获取容器
func (r *GormShippingRepository) GetContainerByTrackingID(tenantID uint, trackingID string) (*models.ShippingContainer, error) {
	var container models.ShippingContainer
	err := r.db.
		Where("tenant_id = ? AND tracking_id = ?", tenantID, trackingID).
		First(&container).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &container, nil
}

// UpdateContainerStatus 更新容器状态
func (r *GormShippingRepository) UpdateContainerStatus(tenantID uint, trackingID, status string) error {
	return r.db.Model(&models.ShippingContainer{}).
		Where("tenant_id = ? AND tracking_id = ?", tenantID, trackingID).
		Update("status", status).Error
}

// CreateTransactions 批量创建发货事务
func (r *GormShippingRepository) CreateTransactions(transactions []models.ShippingTransaction) error {
	if len(transactions) == 0 {
		return nil
	}
	return r.db.Create(&transactions).Error
}

// ListTransactionsByTrackingID 获取容器内全部发货事务
func (r *GormShippingRepository) ListTransactionsByTrackingID(tenantID uint, trackingID string) ([]models.ShippingTransaction, error) {
	var transactions []models.ShippingTransaction
	err := r.db.
		Where("tenant_id = ? AND tracking_id = ?", tenantID, trackingID).
		Order("id asc").
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// ListTransactionsByItem 获取订单项的全部发货事务
func (r *GormShippingRepository) ListTransactionsByItem(tenantID, orderRequestItemID uint) ([]models.ShippingTransaction, error) {
	var transactions []models.ShippingTransaction
	err := r.db.
		Where("tenant_id = ? AND order_request_item_id = ?", tenantID, orderRequestItemID).
		Order("id asc").
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// MarkTransactionsDelivered 将容器内在途事务置为已签收
func (r *GormShippingRepository) MarkTransactionsDelivered(tenantID uint, trackingID string, deliveredAt time.Time) error {
	return r.db.Model(&models.ShippingTransaction{}).
		Where("tenant_id = ? AND tracking_id = ? AND status = ?",
			tenantID, trackingID, constants.ShippingTransactionStatusInTransit).
		Updates(map[string]interface{}{
			"status":       constants.ShippingTransactionStatusDelivered,
			"delivered_at": deliveredAt,
		}).Error
}

// DeleteTransactions 软删除发货事务（拆包回收时使用）
func (r *GormShippingRepository) DeleteTransactions(tenantID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Delete(&models.ShippingTransaction{}).Error
}
