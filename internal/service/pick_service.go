package service

import (
	"context"
	"fmt"
	"time"

	"github.com/orderbridge/internal/cache"
	"github.com/orderbridge/internal/config"
	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/models"
	"github.com/orderbridge/internal/repository"

	"gorm.io/gorm"
)

// PickInput 一条拣货请求
type PickInput struct {
	ItemID   uint `json:"item_id" binding:"required"`
	SiteID   uint `json:"site_id" binding:"required"`
	Quantity int  `json:"quantity" binding:"required"`
}

// PickService 拣货、出库与签收流程
//
// packed 与 out_for_delivery 状态只能从这里产生，直接设置状态的入口
// 一律拒绝这两个目标。
type PickService struct {
	db          *gorm.DB
	cfg         *config.OrderConfig
	orderSvc    *OrderRequestService
	orderRepo   repository.OrderRequestRepository
	itemRepo    repository.OrderRequestItemRepository
	siteRepo    repository.SiteRepository
	shippingSvc *ShippingService
	mirror      *MirrorService
	notifier    *NotificationService
	cache       *cache.Cache
}

// NewPickService 创建拣货服务
func NewPickService(
	db *gorm.DB,
	cfg *config.OrderConfig,
	orderSvc *OrderRequestService,
	orderRepo repository.OrderRequestRepository,
	itemRepo repository.OrderRequestItemRepository,
	siteRepo repository.SiteRepository,
	shippingSvc *ShippingService,
	mirror *MirrorService,
	notifier *NotificationService,
	cacheClient *cache.Cache,
) *PickService {
	return &PickService{
		db:          db,
		cfg:         cfg,
		orderSvc:    orderSvc,
		orderRepo:   orderRepo,
		itemRepo:    itemRepo,
		siteRepo:    siteRepo,
		shippingSvc: shippingSvc,
		mirror:      mirror,
		notifier:    notifier,
		cache:       cacheClient,
	}
}

// pickChange 一条拣货引起的订单项变化
type pickChange struct {
	packed        *models.OrderRequestItem // 进入 packed 状态的项（原项或拆出的新项）
	original      *models.OrderRequestItem // 部分拣货时保留剩余数量的原项
	created       bool
	siteID        uint
	quantity      int
	catalogItemID *uint
}

// Pick 拣货
//
// 对每条请求扣减站点库存并把数量转入 packed：整项拣货就地转状态，
// 部分拣货拆出新项。同一站点的拣货合入一个发货容器。
func (s *PickService) Pick(actor ActorContext, orderID uint, picks []PickInput) (*models.OrderRequest, error) {
	if len(picks) == 0 {
		return nil, fmt.Errorf("%w: no picks", ErrQuantityInvalid)
	}
	var notifyOrder *models.OrderRequest
	err := s.orderSvc.withConflictRetry("pick_items", func() error {
		now := time.Now()
		order, err := s.orderSvc.loadOrder(actor.TenantID, orderID)
		if err != nil {
			return err
		}
		if err := s.orderSvc.ensureMutable(order, actor, now); err != nil {
			return err
		}

		changes, err := s.buildPickChanges(order, picks, actor, now)
		if err != nil {
			return err
		}

		err = s.db.Transaction(func(tx *gorm.DB) error {
			itemRepo := s.itemRepo.WithTx(tx)
			siteRepo := s.siteRepo.WithTx(tx)

			for _, change := range changes {
				if change.catalogItemID != nil {
					if err := siteRepo.ConsumeStock(actor.TenantID, change.siteID, *change.catalogItemID, change.quantity); err != nil {
						return err
					}
				}
				if change.created {
					if err := itemRepo.Create(change.packed); err != nil {
						return err
					}
				}
			}

			if err := s.packIntoContainers(tx, actor.TenantID, changes, now); err != nil {
				return err
			}

			for _, change := range changes {
				if err := itemRepo.UpdateGuarded(actor.TenantID, change.packed.ID, change.packed.Version, itemPersistMap(change.packed)); err != nil {
					return err
				}
				if change.original != nil {
					if err := itemRepo.UpdateGuarded(actor.TenantID, change.original.ID, change.original.Version, itemPersistMap(change.original)); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		ctx := context.Background()
		for _, change := range changes {
			if change.catalogItemID != nil {
				s.cache.InvalidateStockedSites(ctx, actor.TenantID, *change.catalogItemID)
			}
		}

		if order.IsExternal() {
			if err := s.mirrorPickChanges(actor, order, changes); err != nil {
				return err
			}
			if err := s.orderSvc.syncCounterpartRollup(actor, order); err != nil {
				return err
			}
		}

		updated, err := s.orderSvc.finishMutation(actor, orderID, now)
		if err != nil {
			return err
		}
		notifyOrder = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.OrderStatusChanged(notifyOrder, constants.HistoryReasonPicked)
	return notifyOrder, nil
}

// buildPickChanges 计算每条拣货请求引起的订单项变化
func (s *PickService) buildPickChanges(order *models.OrderRequest, picks []PickInput, actor ActorContext, now time.Time) ([]pickChange, error) {
	changes := make([]pickChange, 0, len(picks))
	for _, pick := range picks {
		item := findOrderItem(order.Items, pick.ItemID)
		if item == nil {
			return nil, fmt.Errorf("%w: id=%d", ErrItemNotFound, pick.ItemID)
		}
		if item.Status != constants.ItemStatusOpen && item.Status != constants.ItemStatusBackOrdered {
			return nil, fmt.Errorf("%w: item %d is %s, only open or back_ordered items can be picked",
				ErrInvalidTransition, item.ID, item.Status)
		}
		if pick.Quantity <= 0 || pick.Quantity > item.Quantity {
			return nil, fmt.Errorf("%w: item %d quantity %d", ErrQuantityInvalid, item.ID, pick.Quantity)
		}

		entry := models.StatusChange{
			Status:    constants.ItemStatusPacked,
			At:        now,
			ActorID:   actor.ActorID,
			ActorName: actor.DisplayName,
			Reason:    constants.HistoryReasonPicked,
		}

		if pick.Quantity == item.Quantity {
			item.Status = constants.ItemStatusPacked
			item.StatusHistoryJSON = append(item.StatusHistoryJSON.Clone(), entry)
			item.UpdatedByID = actor.ActorID
			changes = append(changes, pickChange{
				packed:        item,
				siteID:        pick.SiteID,
				quantity:      pick.Quantity,
				catalogItemID: item.ItemID,
			})
			continue
		}

		item.Quantity -= pick.Quantity
		item.UpdatedByID = actor.ActorID
		created := &models.OrderRequestItem{
			OrderRequestID:      item.OrderRequestID,
			TenantID:            item.TenantID,
			ItemID:              item.ItemID,
			Type:                item.Type,
			SKU:                 item.SKU,
			Title:               item.Title,
			Description:         item.Description,
			ImageURL:            item.ImageURL,
			Quantity:            pick.Quantity,
			Cost:                item.Cost,
			Status:              constants.ItemStatusPacked,
			StatusHistoryJSON:   append(item.StatusHistoryJSON.Clone(), entry),
			TrackingDetailsJSON: models.TrackingDetailList{},
			ProjectID:           item.ProjectID,
			Version:             1,
			UpdatedByID:         actor.ActorID,
		}
		changes = append(changes, pickChange{
			packed:        created,
			original:      item,
			created:       true,
			siteID:        pick.SiteID,
			quantity:      pick.Quantity,
			catalogItemID: item.ItemID,
		})
	}
	return changes, nil
}

// packIntoContainers 按站点分组建发货容器并登记物流腿
func (s *PickService) packIntoContainers(tx *gorm.DB, tenantID uint, changes []pickChange, now time.Time) error {
	bySite := map[uint][]pickChange{}
	for _, change := range changes {
		bySite[change.siteID] = append(bySite[change.siteID], change)
	}
	for siteID, siteChanges := range bySite {
		legs := make([]ShippingLeg, 0, len(siteChanges))
		for _, change := range siteChanges {
			legs = append(legs, ShippingLeg{
				OrderRequestItemID: change.packed.ID,
				Quantity:           change.quantity,
			})
		}
		container, err := s.shippingSvc.CreateContainer(tx, tenantID, siteID, legs)
		if err != nil {
			return err
		}
		for _, change := range siteChanges {
			change.packed.TrackingDetailsJSON = append(change.packed.TrackingDetailsJSON, models.TrackingDetail{
				TrackingID:  container.TrackingID,
				ContainerID: container.ID,
				SiteID:      siteID,
				Quantity:    change.quantity,
				Status:      constants.TrackingStatusPacked,
				UpdatedAt:   now,
			})
		}
	}
	return nil
}

// mirrorPickChanges 把拣货结果翻译到对端
func (s *PickService) mirrorPickChanges(actor ActorContext, order *models.OrderRequest, changes []pickChange) error {
	for _, change := range changes {
		if change.created {
			if _, err := s.mirror.MirrorItemCreate(actor, order, change.packed); err != nil {
				return err
			}
			if change.original != nil {
				quantity := change.original.Quantity
				patch := MirrorPatch{Quantity: &quantity}
				if err := s.mirror.MirrorItemUpdate(actor, order, change.original, patch); err != nil {
					return err
				}
			}
			continue
		}
		status := change.packed.Status
		patch := MirrorPatch{
			Status:        &status,
			StatusHistory: change.packed.StatusHistoryJSON,
		}
		if err := s.mirror.MirrorItemUpdate(actor, order, change.packed, patch); err != nil {
			return err
		}
	}
	return nil
}

// Ship 容器出库
func (s *PickService) Ship(actor ActorContext, orderID uint, trackingID string) (*models.OrderRequest, error) {
	return s.advanceContainer(actor, orderID, trackingID, constants.TrackingStatusOutForDelivery)
}

// Deliver 容器签收
func (s *PickService) Deliver(actor ActorContext, orderID uint, trackingID string) (*models.OrderRequest, error) {
	return s.advanceContainer(actor, orderID, trackingID, constants.TrackingStatusDelivered)
}

// advanceContainer 推进容器状态并带动引用它的订单项
func (s *PickService) advanceContainer(actor ActorContext, orderID uint, trackingID, targetLegStatus string) (*models.OrderRequest, error) {
	var notifyOrder *models.OrderRequest
	err := s.orderSvc.withConflictRetry("advance_container", func() error {
		now := time.Now()
		order, err := s.orderSvc.loadOrder(actor.TenantID, orderID)
		if err != nil {
			return err
		}
		if err := s.orderSvc.ensureMutable(order, actor, now); err != nil {
			return err
		}
		if _, err := s.shippingSvc.GetContainer(actor.TenantID, trackingID); err != nil {
			return err
		}

		var touched []*models.OrderRequestItem
		for i := range order.Items {
			item := &order.Items[i]
			if !item.TrackingDetailsJSON.HasTrackingID(trackingID) {
				continue
			}
			legs := item.TrackingDetailsJSON.Clone()
			for j := range legs {
				if legs[j].TrackingID == trackingID {
					legs[j].Status = targetLegStatus
					legs[j].UpdatedAt = now
				}
			}
			item.TrackingDetailsJSON = legs

			newStatus, err := StatusFromTracking(legs, item.IsReturnLeg())
			if err != nil {
				return err
			}
			if newStatus != item.Status {
				reason := constants.HistoryReasonShipped
				if targetLegStatus == constants.TrackingStatusDelivered {
					reason = ""
				}
				item.Status = newStatus
				item.StatusHistoryJSON = append(item.StatusHistoryJSON.Clone(), models.StatusChange{
					Status:    newStatus,
					At:        now,
					ActorID:   actor.ActorID,
					ActorName: actor.DisplayName,
					Reason:    reason,
				})
			}
			item.UpdatedByID = actor.ActorID
			touched = append(touched, item)
		}
		if len(touched) == 0 {
			return fmt.Errorf("%w: no items reference tracking id %s", ErrItemNotFound, trackingID)
		}

		err = s.db.Transaction(func(tx *gorm.DB) error {
			if targetLegStatus == constants.TrackingStatusDelivered {
				if err := s.shippingSvc.MarkDelivered(tx, actor.TenantID, trackingID, now); err != nil {
					return err
				}
			} else {
				if err := s.shippingSvc.MarkOutForDelivery(tx, actor.TenantID, trackingID); err != nil {
					return err
				}
			}
			itemRepo := s.itemRepo.WithTx(tx)
			for _, item := range touched {
				if err := itemRepo.UpdateGuarded(actor.TenantID, item.ID, item.Version, itemPersistMap(item)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		if order.IsExternal() {
			custody := CustodyShipped
			if targetLegStatus == constants.TrackingStatusDelivered {
				custody = CustodyDelivered
			}
			for _, item := range touched {
				status := item.Status
				patch := MirrorPatch{
					Status:        &status,
					StatusHistory: item.StatusHistoryJSON,
					Custody:       custody,
				}
				if err := s.mirror.MirrorItemUpdate(actor, order, item, patch); err != nil {
					return err
				}
			}
			if err := s.orderSvc.syncCounterpartRollup(actor, order); err != nil {
				return err
			}
		}

		updated, err := s.orderSvc.finishMutation(actor, orderID, now)
		if err != nil {
			return err
		}
		notifyOrder = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.OrderStatusChanged(notifyOrder, EventStatusChanged)
	return notifyOrder, nil
}
