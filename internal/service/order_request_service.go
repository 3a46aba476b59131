package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/orderbridge/internal/config"
	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/logger"
	"github.com/orderbridge/internal/models"
	"github.com/orderbridge/internal/queue"
	"github.com/orderbridge/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 通知事件名
const (
	EventOrderCreated  = "created"
	EventStatusChanged = "status_changed"
	EventOrderReturned = "returned"
	EventOrderUnpacked = "unpacked"
	EventOrderClosed   = "closed"
)

// OrderRequestService 订单用例编排
//
// 每个写操作在单租户事务内完成；跨租户镜像写入在本侧事务提交后单独
// 提交，不跨租户保证原子。写冲突时整个操作从头重试，每次重试重新
// 读取最新状态重算派生数据，不做子步骤级的局部重试。
type OrderRequestService struct {
	db          *gorm.DB
	cfg         *config.OrderConfig
	orderRepo   repository.OrderRequestRepository
	itemRepo    repository.OrderRequestItemRepository
	catalogRepo repository.ItemRepository
	shippingSvc *ShippingService
	mirror      *MirrorService
	queue       *queue.Client
	notifier    *NotificationService
}

// NewOrderRequestService 创建订单服务
func NewOrderRequestService(
	db *gorm.DB,
	cfg *config.OrderConfig,
	orderRepo repository.OrderRequestRepository,
	itemRepo repository.OrderRequestItemRepository,
	catalogRepo repository.ItemRepository,
	shippingSvc *ShippingService,
	mirror *MirrorService,
	queueClient *queue.Client,
	notifier *NotificationService,
) *OrderRequestService {
	return &OrderRequestService{
		db:          db,
		cfg:         cfg,
		orderRepo:   orderRepo,
		itemRepo:    itemRepo,
		catalogRepo: catalogRepo,
		shippingSvc: shippingSvc,
		mirror:      mirror,
		queue:       queueClient,
		notifier:    notifier,
	}
}

// withConflictRetry 写冲突时整体重试
//
// 有界循环而非递归：每次重试由 op 自己重新读取状态。重试耗尽后对外
// 暴露为 ErrConcurrentUpdate。
func (s *OrderRequestService) withConflictRetry(operation string, op func() error) error {
	attempts := s.cfg.ConflictRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op()
		if err == nil || !errors.Is(err, repository.ErrWriteConflict) {
			return err
		}
		logger.Warnw("order_operation_conflict_retry",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", attempts,
		)
	}
	return fmt.Errorf("%w: %s", ErrConcurrentUpdate, operation)
}

// loadOrder 加载订单与订单项
func (s *OrderRequestService) loadOrder(tenantID, orderID uint) (*models.OrderRequest, error) {
	order, err := s.orderRepo.GetByID(tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: id=%d", ErrOrderNotFound, orderID)
	}
	return order, nil
}

// ensureMutable 校验订单可写：未关闭且未被他人锁定
func (s *OrderRequestService) ensureMutable(order *models.OrderRequest, actor ActorContext, now time.Time) error {
	if order.Status == constants.OrderRequestStatusClosed {
		return fmt.Errorf("%w: id=%d", ErrOrderClosed, order.ID)
	}
	return checkBlock(order, actor, now)
}

// checkBlock 拣货锁检查，租约过期按未锁处理
func checkBlock(order *models.OrderRequest, actor ActorContext, now time.Time) error {
	if order.BlockedByID == nil || order.BlockExpiresAt == nil {
		return nil
	}
	if now.After(*order.BlockExpiresAt) {
		return nil
	}
	if *order.BlockedByID != actor.ActorID {
		return fmt.Errorf("%w: order %d", ErrOrderBlocked, order.ID)
	}
	return nil
}

// CreateOrderItemInput 创建订单时的单条订单项
type CreateOrderItemInput struct {
	ItemID    *uint  `json:"item_id"`
	Type      string `json:"type" binding:"required"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity" binding:"required"`
	Notes     string `json:"notes"`
	ProjectID *uint  `json:"project_id"`
}

// CreateOrderRequestInput 创建订单入参
type CreateOrderRequestInput struct {
	Title          string                 `json:"title" binding:"required"`
	ProjectID      *uint                  `json:"project_id"`
	ParentTenantID *uint                  `json:"parent_tenant_id"`
	Notes          string                 `json:"notes"`
	Items          []CreateOrderItemInput `json:"items" binding:"required"`
}

// Create 创建订单
//
// 指定 ParentTenantID 时创建的是跨租户订单的请求方半边，提交后在履约
// 方租户镜像一份并互相回填反向引用。
func (s *OrderRequestService) Create(actor ActorContext, input CreateOrderRequestInput) (*models.OrderRequest, error) {
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one item", ErrQuantityInvalid)
	}
	now := time.Now()

	items := make([]models.OrderRequestItem, 0, len(input.Items))
	for _, itemInput := range input.Items {
		item, err := s.buildOrderItem(actor, itemInput, now)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	order := &models.OrderRequest{
		TenantID:       actor.TenantID,
		Title:          input.Title,
		Status:         constants.OrderRequestStatusActive,
		ProjectID:      input.ProjectID,
		ParentTenantID: input.ParentTenantID,
		Notes:          input.Notes,
		Version:        1,
		CreatedByID:    actor.ActorID,
		UpdatedByID:    actor.ActorID,
	}
	if rollup, ok := CalcLeastItemStatus(items); ok {
		order.LeastItemStatus = rollup
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.orderRepo.WithTx(tx).Create(order, items)
	})
	if err != nil {
		return nil, err
	}

	if order.IsExternal() {
		// 镜像与反向引用回填可能与对端写入冲突，按整体重试语义处理
		err = s.withConflictRetry("create_external_order", func() error {
			fresh, err := s.loadOrder(actor.TenantID, order.ID)
			if err != nil {
				return err
			}
			mirror, err := s.mirror.EnsureMirrorOrder(actor, fresh, fresh.Items)
			if err != nil {
				return err
			}
			if fresh.EntityIDInSourceTenant != nil {
				return nil
			}
			return s.orderRepo.UpdateGuarded(actor.TenantID, fresh.ID, fresh.Version, map[string]interface{}{
				"entity_id_in_source_tenant": mirror.ID,
			})
		})
		if err != nil {
			return nil, err
		}
	}

	created, err := s.loadOrder(actor.TenantID, order.ID)
	if err != nil {
		return nil, err
	}
	s.notifier.OrderStatusChanged(created, EventOrderCreated)
	return created, nil
}

// buildOrderItem 由入参构造订单项，带 SKU 项从目录快照属性
func (s *OrderRequestService) buildOrderItem(actor ActorContext, input CreateOrderItemInput, now time.Time) (*models.OrderRequestItem, error) {
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrQuantityInvalid, input.Quantity)
	}
	switch input.Type {
	case constants.ItemTypeAsset, constants.ItemTypeInventory, constants.ItemTypeNoSKU:
	default:
		return nil, fmt.Errorf("%w: item type %q", ErrInvalidStatus, input.Type)
	}

	item := &models.OrderRequestItem{
		TenantID:  actor.TenantID,
		Type:      input.Type,
		Title:     input.Title,
		Quantity:  input.Quantity,
		Status:    constants.ItemStatusOpen,
		Notes:     input.Notes,
		ProjectID: input.ProjectID,
		Version:   1,
		StatusHistoryJSON: models.StatusHistory{{
			Status:    constants.ItemStatusOpen,
			At:        now,
			ActorID:   actor.ActorID,
			ActorName: actor.DisplayName,
			Reason:    constants.HistoryReasonCreated,
		}},
		UpdatedByID: actor.ActorID,
	}

	if input.Type == constants.ItemTypeNoSKU {
		return item, nil
	}
	if input.ItemID == nil {
		return nil, fmt.Errorf("%w: item_id required for type %s", ErrCatalogNotFound, input.Type)
	}
	catalogItem, err := s.catalogRepo.GetByID(actor.TenantID, *input.ItemID)
	if err != nil {
		return nil, err
	}
	if catalogItem == nil {
		return nil, fmt.Errorf("%w: id=%d", ErrCatalogNotFound, *input.ItemID)
	}
	item.ItemID = &catalogItem.ID
	item.SKU = catalogItem.SKU
	item.Title = catalogItem.Title
	item.Description = catalogItem.Description
	item.ImageURL = catalogItem.ImageURL
	item.Cost = catalogItem.EffectiveCost()
	return item, nil
}

// Get 获取订单
func (s *OrderRequestService) Get(actor ActorContext, orderID uint) (*models.OrderRequest, error) {
	return s.loadOrder(actor.TenantID, orderID)
}

// List 查询订单列表
func (s *OrderRequestService) List(filter repository.OrderRequestListFilter) ([]models.OrderRequest, int64, error) {
	return s.orderRepo.List(filter)
}

// UpdateItemStatus 直接设置订单项状态
//
// 只覆盖状态机允许直接设置的目标；打包与发运产生的状态走拣货流程。
func (s *OrderRequestService) UpdateItemStatus(actor ActorContext, orderID, itemID uint, target, note string) (*models.OrderRequest, error) {
	var notifyOrder *models.OrderRequest
	err := s.withConflictRetry("update_item_status", func() error {
		now := time.Now()
		order, err := s.loadOrder(actor.TenantID, orderID)
		if err != nil {
			return err
		}
		if err := s.ensureMutable(order, actor, now); err != nil {
			return err
		}
		item := findOrderItem(order.Items, itemID)
		if item == nil {
			return fmt.Errorf("%w: id=%d", ErrItemNotFound, itemID)
		}
		if err := checkExternalSide(order, target); err != nil {
			return err
		}

		result, err := ValidateTransition(item.StatusHistoryJSON, target)
		if err != nil {
			return err
		}
		if result == TransitionNoop {
			notifyOrder = nil
			if !order.IsExternal() {
				return nil
			}
			// noop 不代表对端已同步：上一次尝试可能在本地提交后、
			// 镜像写入前被冲突打断，按当前值把镜像补齐到一致。
			status := item.Status
			patch := MirrorPatch{
				Status:        &status,
				StatusHistory: item.StatusHistoryJSON,
				Custody:       custodyForStatus(target),
			}
			if err := s.mirror.MirrorItemUpdate(actor, order, item, patch); err != nil {
				return err
			}
			return s.syncCounterpartRollup(actor, order)
		}

		reason := note
		if reason == "" && target == constants.ItemStatusCancelled {
			reason = constants.HistoryReasonDeleted
		}
		history := append(item.StatusHistoryJSON.Clone(), models.StatusChange{
			Status:    target,
			At:        now,
			ActorID:   actor.ActorID,
			ActorName: actor.DisplayName,
			Reason:    reason,
		})

		err = s.db.Transaction(func(tx *gorm.DB) error {
			return s.itemRepo.WithTx(tx).UpdateGuarded(actor.TenantID, item.ID, item.Version, map[string]interface{}{
				"status":              target,
				"status_history_json": history,
				"updated_by_id":       actor.ActorID,
			})
		})
		if err != nil {
			return err
		}

		if order.IsExternal() {
			status := target
			patch := MirrorPatch{
				Status:        &status,
				StatusHistory: history,
				Custody:       custodyForStatus(target),
			}
			if err := s.mirror.MirrorItemUpdate(actor, order, item, patch); err != nil {
				return err
			}
			if err := s.syncCounterpartRollup(actor, order); err != nil {
				return err
			}
		}

		updated, err := s.finishMutation(actor, orderID, now)
		if err != nil {
			return err
		}
		notifyOrder = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	if notifyOrder != nil {
		s.notifier.OrderStatusChanged(notifyOrder, EventStatusChanged)
		return notifyOrder, nil
	}
	return s.loadOrder(actor.TenantID, orderID)
}

// custodyForStatus 直接设置状态对镜像侧实物交接的影响
func custodyForStatus(target string) CustodyEffect {
	switch target {
	case constants.ItemStatusDelivered:
		return CustodyDelivered
	case constants.ItemStatusReturned:
		return CustodyReversed
	default:
		return CustodyNone
	}
}

// checkExternalSide 跨租户订单的操作方向约束
//
// 签收由履约方记录并向请求方传播；取消、关闭、退货只能由请求方发起。
func checkExternalSide(order *models.OrderRequest, target string) error {
	if !order.IsExternal() {
		return nil
	}
	switch target {
	case constants.ItemStatusDelivered:
		if !order.IsParentSide() {
			return fmt.Errorf("%w: %s is recorded by the fulfilling tenant", ErrExternalOrderWrongSide, target)
		}
	case constants.ItemStatusCancelled, constants.ItemStatusClosed, constants.ItemStatusReturned:
		if !order.IsChildSide() {
			return fmt.Errorf("%w: %s is driven by the requesting tenant", ErrExternalOrderWrongSide, target)
		}
	}
	return nil
}

// UpdateItemInput 订单项编辑入参
type UpdateItemInput struct {
	Quantity *int    `json:"quantity"`
	Notes    *string `json:"notes"`
}

// UpdateItem 编辑订单项的数量与备注
func (s *OrderRequestService) UpdateItem(actor ActorContext, orderID, itemID uint, input UpdateItemInput) (*models.OrderRequest, error) {
	err := s.withConflictRetry("update_item", func() error {
		now := time.Now()
		order, err := s.loadOrder(actor.TenantID, orderID)
		if err != nil {
			return err
		}
		if err := s.ensureMutable(order, actor, now); err != nil {
			return err
		}
		item := findOrderItem(order.Items, itemID)
		if item == nil {
			return fmt.Errorf("%w: id=%d", ErrItemNotFound, itemID)
		}

		updates := map[string]interface{}{"updated_by_id": actor.ActorID}
		if input.Quantity != nil {
			if *input.Quantity <= 0 {
				return fmt.Errorf("%w: %d", ErrQuantityInvalid, *input.Quantity)
			}
			updates["quantity"] = *input.Quantity
		}
		if input.Notes != nil {
			updates["notes"] = *input.Notes
		}

		err = s.db.Transaction(func(tx *gorm.DB) error {
			return s.itemRepo.WithTx(tx).UpdateGuarded(actor.TenantID, item.ID, item.Version, updates)
		})
		if err != nil {
			return err
		}

		if order.IsExternal() {
			patch := MirrorPatch{Quantity: input.Quantity, Notes: input.Notes}
			if err := s.mirror.MirrorItemUpdate(actor, order, item, patch); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.loadOrder(actor.TenantID, orderID)
}

// Return 退货
//
// 跨租户订单在这一层拒绝退货，退货由请求方/履约方各自的半边驱动。
// 退货项按原拣货站点分容器重新发运。
func (s *OrderRequestService) Return(actor ActorContext, orderID uint, requests []ReturnRequest) (*models.OrderRequest, error) {
	var notifyOrder *models.OrderRequest
	err := s.withConflictRetry("return_items", func() error {
		now := time.Now()
		order, err := s.loadOrder(actor.TenantID, orderID)
		if err != nil {
			return err
		}
		if err := s.ensureMutable(order, actor, now); err != nil {
			return err
		}
		if order.IsExternal() {
			return fmt.Errorf("%w: order %d", ErrExternalOrderReturn, order.ID)
		}
		if len(requests) == 0 {
			return fmt.Errorf("%w: no return items", ErrQuantityInvalid)
		}

		plan, err := PlanReturn(order.Items, requests, actor, now)
		if err != nil {
			return err
		}

		err = s.db.Transaction(func(tx *gorm.DB) error {
			itemRepo := s.itemRepo.WithTx(tx)
			for _, created := range plan.Created {
				if err := itemRepo.Create(created); err != nil {
					return err
				}
			}
			if err := s.shipReturnLegs(tx, actor.TenantID, plan.Legs, now); err != nil {
				return err
			}
			for _, updated := range plan.Updated {
				if err := itemRepo.UpdateGuarded(actor.TenantID, updated.ID, updated.Version, itemPersistMap(updated)); err != nil {
					return err
				}
			}
			for _, created := range plan.Created {
				if err := itemRepo.UpdateGuarded(actor.TenantID, created.ID, created.Version, itemPersistMap(created)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		updated, err := s.finishMutation(actor, orderID, now)
		if err != nil {
			return err
		}
		notifyOrder = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.OrderStatusChanged(notifyOrder, EventOrderReturned)
	return notifyOrder, nil
}

// shipReturnLegs 按原拣货站点分组建容器发运退货腿
func (s *OrderRequestService) shipReturnLegs(tx *gorm.DB, tenantID uint, legs []ReturnLeg, now time.Time) error {
	bySite := map[uint][]ReturnLeg{}
	for _, leg := range legs {
		bySite[leg.OriginSiteID] = append(bySite[leg.OriginSiteID], leg)
	}
	for siteID, siteLegs := range bySite {
		shippingLegs := make([]ShippingLeg, 0, len(siteLegs))
		for _, leg := range siteLegs {
			shippingLegs = append(shippingLegs, ShippingLeg{
				OrderRequestItemID: leg.Item.ID,
				Quantity:           leg.Quantity,
			})
		}
		container, err := s.shippingSvc.CreateContainer(tx, tenantID, siteID, shippingLegs)
		if err != nil {
			return err
		}
		for _, leg := range siteLegs {
			leg.Item.TrackingDetailsJSON = append(leg.Item.TrackingDetailsJSON, models.TrackingDetail{
				TrackingID:  container.TrackingID,
				ContainerID: container.ID,
				SiteID:      siteID,
				Quantity:    leg.Quantity,
				Status:      constants.TrackingStatusPacked,
				UpdatedAt:   now,
			})
		}
	}
	return nil
}

// Unpack 拆包
func (s *OrderRequestService) Unpack(actor ActorContext, orderID uint, trackingIDs []string) (*models.OrderRequest, error) {
	var notifyOrder *models.OrderRequest
	err := s.withConflictRetry("unpack_items", func() error {
		now := time.Now()
		order, err := s.loadOrder(actor.TenantID, orderID)
		if err != nil {
			return err
		}
		if err := s.ensureMutable(order, actor, now); err != nil {
			return err
		}
		if len(trackingIDs) == 0 {
			return fmt.Errorf("%w: no tracking ids", ErrQuantityInvalid)
		}

		plan, err := PlanUnpack(order.Items, trackingIDs, actor, now)
		if err != nil {
			return err
		}

		err = s.db.Transaction(func(tx *gorm.DB) error {
			itemRepo := s.itemRepo.WithTx(tx)
			for _, created := range plan.Created {
				if err := itemRepo.Create(created); err != nil {
					return err
				}
			}
			for _, updated := range plan.Updated {
				if err := itemRepo.UpdateGuarded(actor.TenantID, updated.ID, updated.Version, itemPersistMap(updated)); err != nil {
					return err
				}
			}
			for _, deleted := range plan.Deleted {
				updates := itemPersistMap(deleted)
				updates["deleted_at"] = now
				updates["deleted_by_id"] = actor.ActorID
				if err := itemRepo.UpdateGuarded(actor.TenantID, deleted.ID, deleted.Version, updates); err != nil {
					return err
				}
			}

			touched := map[uint]bool{}
			for _, item := range plan.Touched() {
				touched[item.ID] = true
			}
			return s.shippingSvc.RetireTransactionsForUnpack(tx, actor.TenantID, trackingIDs, touched)
		})
		if err != nil {
			return err
		}

		if order.IsExternal() {
			if err := s.mirrorUnpack(actor, order, plan); err != nil {
				return err
			}
			if err := s.syncCounterpartRollup(actor, order); err != nil {
				return err
			}
		}

		updated, err := s.finishMutation(actor, orderID, now)
		if err != nil {
			return err
		}
		notifyOrder = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.OrderStatusChanged(notifyOrder, EventOrderUnpacked)
	return notifyOrder, nil
}

// mirrorUnpack 把拆包结果翻译到对端
//
// 拆包是镜像层唯一会作废移库事务的场景：对端的在途事务标记 deleted
// 而不是 completed。
func (s *OrderRequestService) mirrorUnpack(actor ActorContext, order *models.OrderRequest, plan *UnpackPlan) error {
	for _, updated := range plan.Updated {
		quantity := updated.Quantity
		status := updated.Status
		notes := updated.Notes
		patch := MirrorPatch{
			Quantity:      &quantity,
			Status:        &status,
			StatusHistory: updated.StatusHistoryJSON,
			Notes:         &notes,
			Custody:       CustodyReversed,
		}
		if err := s.mirror.MirrorItemUpdate(actor, order, updated, patch); err != nil {
			return err
		}
	}
	for _, deleted := range plan.Deleted {
		patch := MirrorPatch{
			StatusHistory: deleted.StatusHistoryJSON,
			Deleted:       true,
			Custody:       CustodyReversed,
		}
		if err := s.mirror.MirrorItemUpdate(actor, order, deleted, patch); err != nil {
			return err
		}
	}
	for _, created := range plan.Created {
		if _, err := s.mirror.MirrorItemCreate(actor, order, created); err != nil {
			return err
		}
	}
	return nil
}

// Block 以有界租约锁定订单用于拣货
func (s *OrderRequestService) Block(actor ActorContext, orderID uint) (*models.OrderRequest, error) {
	err := s.withConflictRetry("block_order", func() error {
		now := time.Now()
		order, err := s.loadOrder(actor.TenantID, orderID)
		if err != nil {
			return err
		}
		if order.Status == constants.OrderRequestStatusClosed {
			return fmt.Errorf("%w: id=%d", ErrOrderClosed, order.ID)
		}
		if err := checkBlock(order, actor, now); err != nil {
			return err
		}
		expiresAt := now.Add(time.Duration(s.cfg.BlockLeaseMinutes) * time.Minute)
		return s.orderRepo.UpdateGuarded(actor.TenantID, order.ID, order.Version, map[string]interface{}{
			"blocked_by_id":    actor.ActorID,
			"block_expires_at": expiresAt,
			"updated_by_id":    actor.ActorID,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.loadOrder(actor.TenantID, orderID)
}

// Unblock 释放拣货锁，仅锁持有人或管理员可释放
func (s *OrderRequestService) Unblock(actor ActorContext, orderID uint) (*models.OrderRequest, error) {
	err := s.withConflictRetry("unblock_order", func() error {
		order, err := s.loadOrder(actor.TenantID, orderID)
		if err != nil {
			return err
		}
		if order.BlockedByID == nil {
			return nil
		}
		if *order.BlockedByID != actor.ActorID && actor.Role != constants.ActorRoleAdmin {
			return fmt.Errorf("%w: order %d", ErrOrderBlocked, order.ID)
		}
		return s.orderRepo.UpdateGuarded(actor.TenantID, order.ID, order.Version, map[string]interface{}{
			"blocked_by_id":    nil,
			"block_expires_at": nil,
			"updated_by_id":    actor.ActorID,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.loadOrder(actor.TenantID, orderID)
}

// Close 手动关闭订单
func (s *OrderRequestService) Close(actor ActorContext, orderID uint) (*models.OrderRequest, error) {
	var notifyOrder *models.OrderRequest
	err := s.withConflictRetry("close_order", func() error {
		order, err := s.loadOrder(actor.TenantID, orderID)
		if err != nil {
			return err
		}
		if order.Status == constants.OrderRequestStatusClosed {
			notifyOrder = nil
			return nil
		}
		if order.IsExternal() && !order.IsChildSide() {
			return fmt.Errorf("%w: close is driven by the requesting tenant", ErrExternalOrderWrongSide)
		}
		if err := s.orderRepo.UpdateGuarded(actor.TenantID, order.ID, order.Version, map[string]interface{}{
			"status":        constants.OrderRequestStatusClosed,
			"updated_by_id": actor.ActorID,
		}); err != nil {
			return err
		}
		closed, err := s.loadOrder(actor.TenantID, orderID)
		if err != nil {
			return err
		}
		notifyOrder = closed
		return nil
	})
	if err != nil {
		return nil, err
	}
	if notifyOrder != nil {
		s.notifier.OrderStatusChanged(notifyOrder, EventOrderClosed)
		return notifyOrder, nil
	}
	return s.loadOrder(actor.TenantID, orderID)
}

// AutoClose 延迟任务回调的自动关闭
//
// ScheduleID 不一致说明预约已被覆盖，直接放弃；仍不满足关闭条件时
// 重新评估并按需再次预约。
func (s *OrderRequestService) AutoClose(tenantID, orderID uint, scheduleID string) error {
	actor := SystemActor(tenantID)
	return s.withConflictRetry("auto_close_order", func() error {
		order, err := s.orderRepo.GetByID(tenantID, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			logger.Infow("auto_close_order_missing", "order_request_id", orderID, "tenant_id", tenantID)
			return nil
		}
		if order.ScheduleID != scheduleID {
			logger.Infow("auto_close_schedule_superseded",
				"order_request_id", orderID,
				"expected_schedule_id", order.ScheduleID,
				"task_schedule_id", scheduleID,
			)
			return nil
		}
		if order.Status == constants.OrderRequestStatusClosed {
			return nil
		}

		now := time.Now()
		plan := PlanClose(activeItems(order.Items), now, s.autoCloseGrace())
		switch plan.Action {
		case CloseNow:
			if err := s.orderRepo.UpdateGuarded(tenantID, order.ID, order.Version, map[string]interface{}{
				"status":        constants.OrderRequestStatusClosed,
				"schedule_id":   "",
				"updated_by_id": actor.ActorID,
			}); err != nil {
				return err
			}
			closed, err := s.loadOrder(tenantID, orderID)
			if err != nil {
				return err
			}
			s.notifier.OrderStatusChanged(closed, EventOrderClosed)
			return nil
		case CloseSchedule:
			return s.scheduleClose(actor, order, plan.ReferenceTime)
		default:
			return s.orderRepo.UpdateGuarded(tenantID, order.ID, order.Version, map[string]interface{}{
				"schedule_id": "",
			})
		}
	})
}

// Delete 软删除订单及其订单项，订单项状态强制为 cancelled
//
// 跨租户订单不允许整单删除，请求方应逐项取消，由镜像层同步对端。
func (s *OrderRequestService) Delete(actor ActorContext, orderID uint) error {
	return s.withConflictRetry("delete_order", func() error {
		now := time.Now()
		order, err := s.loadOrder(actor.TenantID, orderID)
		if err != nil {
			return err
		}
		if order.IsExternal() {
			return fmt.Errorf("%w: cross-tenant orders cannot be deleted as a whole", ErrExternalOrderWrongSide)
		}
		if err := checkBlock(order, actor, now); err != nil {
			return err
		}

		return s.db.Transaction(func(tx *gorm.DB) error {
			itemRepo := s.itemRepo.WithTx(tx)
			for i := range order.Items {
				item := &order.Items[i]
				history := append(item.StatusHistoryJSON.Clone(), models.StatusChange{
					Status:    constants.ItemStatusCancelled,
					At:        now,
					ActorID:   actor.ActorID,
					ActorName: actor.DisplayName,
					Reason:    constants.HistoryReasonDeleted,
				})
				if err := itemRepo.UpdateGuarded(actor.TenantID, item.ID, item.Version, map[string]interface{}{
					"status":              constants.ItemStatusCancelled,
					"status_history_json": history,
					"deleted_at":          now,
					"deleted_by_id":       actor.ActorID,
				}); err != nil {
					return err
				}
			}
			return s.orderRepo.WithTx(tx).UpdateGuarded(actor.TenantID, order.ID, order.Version, map[string]interface{}{
				"deleted_at":    now,
				"deleted_by_id": actor.ActorID,
				"updated_by_id": actor.ActorID,
			})
		})
	})
}

// finishMutation 写操作提交后的统一收尾：重读、同步汇总状态、评估关闭
func (s *OrderRequestService) finishMutation(actor ActorContext, orderID uint, now time.Time) (*models.OrderRequest, error) {
	order, err := s.loadOrder(actor.TenantID, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.syncRollup(actor, order); err != nil {
		return nil, err
	}
	if err := s.evaluateClose(actor, order, now); err != nil {
		return nil, err
	}
	return s.loadOrder(actor.TenantID, orderID)
}

// syncRollup 重算并持久化订单的最低进度汇总
func (s *OrderRequestService) syncRollup(actor ActorContext, order *models.OrderRequest) error {
	rollup, ok := CalcLeastItemStatus(activeItems(order.Items))
	if !ok || rollup == order.LeastItemStatus {
		return nil
	}
	err := s.orderRepo.UpdateGuarded(order.TenantID, order.ID, order.Version, map[string]interface{}{
		"least_item_status": rollup,
	})
	if err != nil {
		return err
	}
	order.LeastItemStatus = rollup
	order.Version++
	return nil
}

// syncCounterpartRollup 镜像写入后同步对端订单的汇总状态
func (s *OrderRequestService) syncCounterpartRollup(actor ActorContext, order *models.OrderRequest) error {
	mirrorOrder, err := s.mirror.ResolveCounterpartOrder(order)
	if err != nil {
		return err
	}
	return s.syncRollup(actor.ForTenant(mirrorOrder.TenantID), mirrorOrder)
}

// evaluateClose 评估自动关闭：到期立即关闭，未到期幂等预约
func (s *OrderRequestService) evaluateClose(actor ActorContext, order *models.OrderRequest, now time.Time) error {
	if order.Status == constants.OrderRequestStatusClosed {
		return nil
	}
	plan := PlanClose(activeItems(order.Items), now, s.autoCloseGrace())
	switch plan.Action {
	case CloseNow:
		err := s.orderRepo.UpdateGuarded(order.TenantID, order.ID, order.Version, map[string]interface{}{
			"status":        constants.OrderRequestStatusClosed,
			"schedule_id":   "",
			"updated_by_id": actor.ActorID,
		})
		if err != nil {
			return err
		}
		order.Status = constants.OrderRequestStatusClosed
		order.Version++
		return nil
	case CloseSchedule:
		if order.ScheduleID != "" {
			return nil
		}
		return s.scheduleClose(actor, order, plan.ReferenceTime)
	default:
		return nil
	}
}

// scheduleClose 登记预约并投递延迟关闭任务
func (s *OrderRequestService) scheduleClose(actor ActorContext, order *models.OrderRequest, invokeAt time.Time) error {
	scheduleID := uuid.NewString()
	err := s.orderRepo.UpdateGuarded(order.TenantID, order.ID, order.Version, map[string]interface{}{
		"schedule_id": scheduleID,
	})
	if err != nil {
		return err
	}
	order.ScheduleID = scheduleID
	order.Version++
	return s.queue.ScheduleAutoClose(queue.AutoClosePayload{
		TenantID:       order.TenantID,
		OrderRequestID: order.ID,
		ScheduleID:     scheduleID,
	}, invokeAt)
}

func (s *OrderRequestService) autoCloseGrace() time.Duration {
	days := s.cfg.AutoCloseDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// findOrderItem 在订单项集合中按 ID 查找
func findOrderItem(items []models.OrderRequestItem, itemID uint) *models.OrderRequestItem {
	for i := range items {
		if items[i].ID == itemID {
			return &items[i]
		}
	}
	return nil
}

// activeItems 过滤掉已软删除的订单项
func activeItems(items []models.OrderRequestItem) []models.OrderRequestItem {
	out := make([]models.OrderRequestItem, 0, len(items))
	for _, item := range items {
		if !item.DeletedAt.Valid {
			out = append(out, item)
		}
	}
	return out
}

// itemPersistMap 订单项落库字段
func itemPersistMap(item *models.OrderRequestItem) map[string]interface{} {
	return map[string]interface{}{
		"quantity":                     item.Quantity,
		"status":                       item.Status,
		"status_history_json":          item.StatusHistoryJSON,
		"tracking_details_json":        item.TrackingDetailsJSON,
		"tracking_history_json":        item.TrackingHistoryJSON,
		"notes":                        item.Notes,
		"parent_order_request_item_id": item.ParentOrderRequestItemID,
		"updated_by_id":                item.UpdatedByID,
	}
}
