package service

import (
	"github.com/orderbridge/internal/models"
	"github.com/orderbridge/internal/repository"
)

// MoveTransactionService 跨租户移库事务查询
//
// 写入全部由镜像层完成，这里只提供对账用的读取口。
type MoveTransactionService struct {
	moveRepo repository.MoveTransactionRepository
	itemRepo repository.OrderRequestItemRepository
}

// NewMoveTransactionService 创建移库事务服务
func NewMoveTransactionService(
	moveRepo repository.MoveTransactionRepository,
	itemRepo repository.OrderRequestItemRepository,
) *MoveTransactionService {
	return &MoveTransactionService{moveRepo: moveRepo, itemRepo: itemRepo}
}

// ListByItem 获取订单项的移库事务
func (s *MoveTransactionService) ListByItem(actor ActorContext, orderRequestItemID uint) ([]models.MoveTransaction, error) {
	item, err := s.itemRepo.GetByID(actor.TenantID, orderRequestItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return s.moveRepo.ListByItem(actor.TenantID, orderRequestItemID)
}
