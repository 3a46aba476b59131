package service

import (
	"fmt"
	"time"

	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/models"
	"github.com/orderbridge/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShippingLeg 一个容器内某订单项的一笔数量
type ShippingLeg struct {
	OrderRequestItemID uint
	Quantity           int
}

// ShippingService 发货容器与发货事务
type ShippingService struct {
	shippingRepo repository.ShippingRepository
}

// NewShippingService 创建发货服务
func NewShippingService(shippingRepo repository.ShippingRepository) *ShippingService {
	return &ShippingService{shippingRepo: shippingRepo}
}

// CreateContainer 创建发货容器并登记容器内各订单项的发货事务
//
// 物流号由系统生成，一个容器对应一个物流号。
func (s *ShippingService) CreateContainer(tx *gorm.DB, tenantID, siteID uint, legs []ShippingLeg) (*models.ShippingContainer, error) {
	if len(legs) == 0 {
		return nil, fmt.Errorf("%w: shipping container needs at least one leg", ErrQuantityInvalid)
	}
	repo := s.shippingRepo.WithTx(tx)

	container := &models.ShippingContainer{
		TenantID:   tenantID,
		TrackingID: uuid.NewString(),
		SiteID:     siteID,
		Status:     constants.TrackingStatusPacked,
	}
	if err := repo.CreateContainer(container); err != nil {
		return nil, err
	}

	transactions := make([]models.ShippingTransaction, 0, len(legs))
	for _, leg := range legs {
		if leg.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d", ErrQuantityInvalid, leg.OrderRequestItemID)
		}
		transactions = append(transactions, models.ShippingTransaction{
			TenantID:           tenantID,
			TrackingID:         container.TrackingID,
			OrderRequestItemID: leg.OrderRequestItemID,
			Quantity:           leg.Quantity,
			Status:             constants.ShippingTransactionStatusInTransit,
		})
	}
	if err := repo.CreateTransactions(transactions); err != nil {
		return nil, err
	}
	return container, nil
}

// GetContainer 按物流号获取容器
func (s *ShippingService) GetContainer(tenantID uint, trackingID string) (*models.ShippingContainer, error) {
	container, err := s.shippingRepo.GetContainerByTrackingID(tenantID, trackingID)
	if err != nil {
		return nil, err
	}
	if container == nil {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, trackingID)
	}
	return container, nil
}

// ListTransactions 获取容器内全部发货事务
func (s *ShippingService) ListTransactions(tenantID uint, trackingID string) ([]models.ShippingTransaction, error) {
	return s.shippingRepo.ListTransactionsByTrackingID(tenantID, trackingID)
}

// MarkOutForDelivery 容器出库
func (s *ShippingService) MarkOutForDelivery(tx *gorm.DB, tenantID uint, trackingID string) error {
	return s.shippingRepo.WithTx(tx).UpdateContainerStatus(tenantID, trackingID, constants.TrackingStatusOutForDelivery)
}

// MarkDelivered 容器签收，在途发货事务一并置为已签收
func (s *ShippingService) MarkDelivered(tx *gorm.DB, tenantID uint, trackingID string, deliveredAt time.Time) error {
	repo := s.shippingRepo.WithTx(tx)
	if err := repo.UpdateContainerStatus(tenantID, trackingID, constants.TrackingStatusDelivered); err != nil {
		return err
	}
	return repo.MarkTransactionsDelivered(tenantID, trackingID, deliveredAt)
}

// RetireTransactionsForUnpack 拆包时回收指定订单项在这些物流号下的发货事务
func (s *ShippingService) RetireTransactionsForUnpack(tx *gorm.DB, tenantID uint, trackingIDs []string, itemIDs map[uint]bool) error {
	repo := s.shippingRepo.WithTx(tx)
	var retired []uint
	for _, trackingID := range trackingIDs {
		transactions, err := repo.ListTransactionsByTrackingID(tenantID, trackingID)
		if err != nil {
			return err
		}
		for _, transaction := range transactions {
			if itemIDs[transaction.OrderRequestItemID] {
				retired = append(retired, transaction.ID)
			}
		}
	}
	return repo.DeleteTransactions(tenantID, retired)
}
