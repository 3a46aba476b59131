package repository

import (
	"time"

	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/models"

	"gorm.io/gorm"
)

// MoveTransactionRepository 移库事务数据访问接口
type MoveTransactionRepository interface {
	CreateBatch(transactions []models.MoveTransaction) error
	ListByItem(tenantID, orderRequestItemID uint) ([]models.MoveTransaction, error)
	CompleteByItem(tenantID, orderRequestItemID uint, completedAt time.Time) error
	MarkDeletedByItem(tenantID, orderRequestItemID uint) error
	WithTx(tx *gorm.DB) *GormMoveTransactionRepository
}

// GormMoveTransactionRepository GORM 实现
type GormMoveTransactionRepository struct {
	db *gorm.DB
}

// NewMoveTransactionRepository 创建移库事务仓库
func NewMoveTransactionRepository(db *gorm.DB) *GormMoveTransactionRepository {
	return &GormMoveTransactionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMoveTransactionRepository) WithTx(tx *gorm.DB) *GormMoveTransactionRepository {
	if tx == nil {
		return r
	}
	return &GormMoveTransactionRepository{db: tx}
}

// CreateBatch 批量创建移库事务
func (r *GormMoveTransactionRepository) CreateBatch(transactions []models.MoveTransaction) error {
	if len(transactions) == 0 {
		return nil
	}
	return r.db.Create(&transactions).Error
}

// ListByItem 获取订单项的全部移库事务
func (r *GormMoveTransactionRepository) ListByItem(tenantID, orderRequestItemID uint) ([]models.MoveTransaction, error) {
	var transactions []models.MoveTransaction
	err := r.db.
		Where("tenant_id = ? AND order_request_item_id = ?", tenantID, orderRequestItemID).
		Order("id asc").
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// CompleteByItem 将订单项的在途移库事务置为已完成
func (r *GormMoveTransactionRepository) CompleteByItem(tenantID, orderRequestItemID uint, completedAt time.Time) error {
	return r.db.Model(&models.MoveTransaction{}).
		Where("tenant_id = ? AND order_request_item_id = ? AND status = ?",
			tenantID, orderRequestItemID, constants.MoveTransactionStatusInTransit).
		Updates(map[string]interface{}{
			"status":       constants.MoveTransactionStatusCompleted,
			"completed_at": completedAt,
		}).Error
}

// MarkDeletedByItem 将订单项的在途移库事务标记为 deleted（退货、拆包时使用）
func (r *GormMoveTransactionRepository) MarkDeletedByItem(tenantID, orderRequestItemID uint) error {
	return r.db.Model(&models.MoveTransaction{}).
		Where("tenant_id = ? AND order_request_item_id = ? AND status = ?",
			tenantID, orderRequestItemID, constants.MoveTransactionStatusInTransit).
		Update("status", constants.MoveTransactionStatusDeleted).Error
}
