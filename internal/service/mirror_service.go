package service

import (
	"fmt"
	"time"

	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/logger"
	"github.com/orderbridge/internal/models"
	"github.com/orderbridge/internal/repository"

	"gorm.io/gorm"
)

// CustodyEffect 镜像写入对实物交接的影响
type CustodyEffect int

const (
	// CustodyNone 本次变更不涉及实物交接
	CustodyNone CustodyEffect = iota
	// CustodyShipped 来源租户发运，在对端登记在途移库事务
	CustodyShipped
	// CustodyDelivered 来源租户签收，对端移库事务置为已完成
	CustodyDelivered
	// CustodyReversed 来源租户退货或拆包，对端在途移库事务作废
	CustodyReversed
)

// MirrorPatch 镜像更新补丁
//
// 每个可变字段类别在此显式列出：新增字段时必须在这里决定它的镜像
// 行为。物流与移库明细不逐字复制，通过 Custody 重新推导为对端的
// 移库事务。
type MirrorPatch struct {
	Quantity      *int
	Status        *string
	StatusHistory models.StatusHistory // nil 表示不变更
	Notes         *string
	ParentItemRef *uint // 来源租户的血缘项 ID，写入前翻译为对端 ID
	Deleted       bool  // 来源侧软删除时同步软删除对端
	Custody       CustodyEffect
}

// MirrorService 跨租户镜像
//
// 订单跨租户时以两条镜像记录表示，本服务把一侧的写入翻译为对端租户
// 的等价写入。镜像写入只在对端租户自己的事务中提交，两侧不保证原子，
// 依赖幂等重放与稳定反向引用收敛。
type MirrorService struct {
	db           *gorm.DB
	orderRepo    repository.OrderRequestRepository
	itemRepo     repository.OrderRequestItemRepository
	catalogRepo  repository.ItemRepository
	categoryRepo repository.CategoryRepository
	moveRepo     repository.MoveTransactionRepository
	tenantRepo   repository.TenantRepository
}

// NewMirrorService 创建镜像服务
func NewMirrorService(
	db *gorm.DB,
	orderRepo repository.OrderRequestRepository,
	itemRepo repository.OrderRequestItemRepository,
	catalogRepo repository.ItemRepository,
	categoryRepo repository.CategoryRepository,
	moveRepo repository.MoveTransactionRepository,
	tenantRepo repository.TenantRepository,
) *MirrorService {
	return &MirrorService{
		db:           db,
		orderRepo:    orderRepo,
		itemRepo:     itemRepo,
		catalogRepo:  catalogRepo,
		categoryRepo: categoryRepo,
		moveRepo:     moveRepo,
		tenantRepo:   tenantRepo,
	}
}

// ResolveCounterpartOrder 解析订单在对端租户的镜像
//
// 反向引用可能指向任一方向，优先走本侧携带的 EntityIDInSourceTenant，
// 否则按对端记录指回来的引用查找。找不到说明两租户视图已发散。
func (s *MirrorService) ResolveCounterpartOrder(order *models.OrderRequest) (*models.OrderRequest, error) {
	counterpartTenantID, ok := order.CounterpartTenantID()
	if !ok {
		return nil, fmt.Errorf("%w: order %d is not cross-tenant", ErrMirrorCounterpartMissing, order.ID)
	}
	if order.EntityIDInSourceTenant != nil {
		mirror, err := s.orderRepo.GetByID(counterpartTenantID, *order.EntityIDInSourceTenant)
		if err != nil {
			return nil, err
		}
		if mirror != nil {
			return mirror, nil
		}
	}
	mirror, err := s.orderRepo.GetByEntityRef(counterpartTenantID, order.ID)
	if err != nil {
		return nil, err
	}
	if mirror == nil {
		return nil, fmt.Errorf("%w: order %d tenant %d", ErrMirrorCounterpartMissing, order.ID, order.TenantID)
	}
	return mirror, nil
}

// resolveCounterpartItem 解析订单项在对端租户的镜像
func (s *MirrorService) resolveCounterpartItem(counterpartTenantID uint, item *models.OrderRequestItem) (*models.OrderRequestItem, error) {
	if item.EntityIDInSourceTenant != nil {
		mirror, err := s.itemRepo.GetByID(counterpartTenantID, *item.EntityIDInSourceTenant)
		if err != nil {
			return nil, err
		}
		if mirror != nil {
			return mirror, nil
		}
	}
	mirror, err := s.itemRepo.GetByEntityRef(counterpartTenantID, item.ID)
	if err != nil {
		return nil, err
	}
	if mirror == nil {
		return nil, fmt.Errorf("%w: item %d tenant %d", ErrMirrorCounterpartMissing, item.ID, item.TenantID)
	}
	return mirror, nil
}

// EnsureMirrorOrder 确保对端存在镜像订单，已存在时直接返回（幂等）
//
// 返回的镜像订单含已镜像的订单项。创建后调用方负责把镜像订单 ID 回填
// 到来源订单的 EntityIDInSourceTenant。
func (s *MirrorService) EnsureMirrorOrder(actor ActorContext, source *models.OrderRequest, items []models.OrderRequestItem) (*models.OrderRequest, error) {
	counterpartTenantID, ok := source.CounterpartTenantID()
	if !ok {
		return nil, fmt.Errorf("%w: order %d is not cross-tenant", ErrMirrorCounterpartMissing, source.ID)
	}

	existing, err := s.orderRepo.GetByEntityRef(counterpartTenantID, source.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	sourceID := source.ID
	mirror := &models.OrderRequest{
		TenantID:               counterpartTenantID,
		Title:                  source.Title,
		Status:                 source.Status,
		LeastItemStatus:        source.LeastItemStatus,
		EntityIDInSourceTenant: &sourceID,
		CreatedByID:            actor.ActorID,
		UpdatedByID:            actor.ActorID,
	}
	sourceTenantID := source.TenantID
	if source.IsChildSide() {
		mirror.ChildTenantID = &sourceTenantID
	} else {
		mirror.ParentTenantID = &sourceTenantID
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		itemRepo := s.itemRepo.WithTx(tx)
		if err := orderRepo.Create(mirror, nil); err != nil {
			return err
		}
		for i := range items {
			mirrored, err := s.buildMirrorItem(tx, counterpartTenantID, &items[i], actor)
			if err != nil {
				return err
			}
			mirrored.OrderRequestID = mirror.ID
			if err := itemRepo.Create(mirrored); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("mirror_order_created",
		"source_order_id", source.ID,
		"source_tenant_id", source.TenantID,
		"mirror_order_id", mirror.ID,
		"mirror_tenant_id", counterpartTenantID,
	)
	return s.orderRepo.GetByID(counterpartTenantID, mirror.ID)
}

// MirrorItemCreate 把来源订单项镜像到对端订单（幂等）
func (s *MirrorService) MirrorItemCreate(actor ActorContext, source *models.OrderRequest, item *models.OrderRequestItem) (*models.OrderRequestItem, error) {
	mirrorOrder, err := s.ResolveCounterpartOrder(source)
	if err != nil {
		return nil, err
	}

	existing, err := s.itemRepo.GetByEntityRef(mirrorOrder.TenantID, item.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	var mirrored *models.OrderRequestItem
	err = s.db.Transaction(func(tx *gorm.DB) error {
		mirrored, err = s.buildMirrorItem(tx, mirrorOrder.TenantID, item, actor)
		if err != nil {
			return err
		}
		mirrored.OrderRequestID = mirrorOrder.ID
		return s.itemRepo.WithTx(tx).Create(mirrored)
	})
	if err != nil {
		return nil, err
	}
	return mirrored, nil
}

// buildMirrorItem 构造镜像订单项
//
// 成本、SKU、标题等取对端目录条目的快照，数量、状态与历史逐字复制。
// 物流与移库明细不复制，对端独立记账。
func (s *MirrorService) buildMirrorItem(tx *gorm.DB, targetTenantID uint, item *models.OrderRequestItem, actor ActorContext) (*models.OrderRequestItem, error) {
	sourceID := item.ID
	mirrored := &models.OrderRequestItem{
		TenantID:               targetTenantID,
		Type:                   item.Type,
		Title:                  item.Title,
		Description:            item.Description,
		ImageURL:               item.ImageURL,
		SKU:                    item.SKU,
		Cost:                   item.Cost,
		Quantity:               item.Quantity,
		Status:                 item.Status,
		StatusHistoryJSON:      item.StatusHistoryJSON.Clone(),
		EntityIDInSourceTenant: &sourceID,
		UpdatedByID:            actor.ActorID,
	}

	if item.HasSKU() && item.ItemID != nil {
		catalogItem, err := s.ensureCatalogItem(tx, targetTenantID, item.TenantID, *item.ItemID)
		if err != nil {
			return nil, err
		}
		mirrored.ItemID = &catalogItem.ID
		mirrored.SKU = catalogItem.SKU
		mirrored.Title = catalogItem.Title
		mirrored.Description = catalogItem.Description
		mirrored.ImageURL = catalogItem.ImageURL
		mirrored.Cost = catalogItem.EffectiveCost()
	}
	return mirrored, nil
}

// ensureCatalogItem 懒复制目录条目到对端租户
//
// 首次在跨租户订单中出现的条目复制一份到对端，分类不存在时一并复制，
// 名称加租户限定后缀。再次出现时按反向引用直接命中。
func (s *MirrorService) ensureCatalogItem(tx *gorm.DB, targetTenantID, sourceTenantID, sourceItemID uint) (*models.Item, error) {
	catalogRepo := s.catalogRepo.WithTx(tx)

	existing, err := catalogRepo.GetByEntityRef(targetTenantID, sourceItemID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	sourceItem, err := catalogRepo.GetByID(sourceTenantID, sourceItemID)
	if err != nil {
		return nil, err
	}
	if sourceItem == nil {
		return nil, fmt.Errorf("%w: id=%d tenant=%d", ErrCatalogNotFound, sourceItemID, sourceTenantID)
	}

	var categoryID *uint
	if sourceItem.CategoryID != nil {
		category, err := s.ensureCategory(tx, targetTenantID, sourceTenantID, *sourceItem.CategoryID)
		if err != nil {
			return nil, err
		}
		categoryID = &category.ID
	}

	sourceRef := sourceItem.ID
	duplicated := &models.Item{
		TenantID:               targetTenantID,
		SKU:                    sourceItem.SKU,
		Title:                  sourceItem.Title,
		Description:            sourceItem.Description,
		ImageURL:               sourceItem.ImageURL,
		UnitCost:               sourceItem.UnitCost,
		CategoryID:             categoryID,
		EntityIDInSourceTenant: &sourceRef,
	}
	if err := catalogRepo.Create(duplicated); err != nil {
		return nil, err
	}
	logger.Infow("mirror_catalog_item_duplicated",
		"source_item_id", sourceItem.ID,
		"source_tenant_id", sourceTenantID,
		"target_item_id", duplicated.ID,
		"target_tenant_id", targetTenantID,
	)
	return duplicated, nil
}

// ensureCategory 懒复制分类到对端租户
func (s *MirrorService) ensureCategory(tx *gorm.DB, targetTenantID, sourceTenantID, sourceCategoryID uint) (*models.Category, error) {
	categoryRepo := s.categoryRepo.WithTx(tx)

	existing, err := categoryRepo.GetByEntityRef(targetTenantID, sourceCategoryID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	sourceCategory, err := categoryRepo.GetByID(sourceTenantID, sourceCategoryID)
	if err != nil {
		return nil, err
	}
	if sourceCategory == nil {
		return nil, fmt.Errorf("%w: category %d tenant %d", ErrCatalogNotFound, sourceCategoryID, sourceTenantID)
	}

	name := sourceCategory.Name
	if tenant, err := s.tenantRepo.GetByID(sourceTenantID); err == nil && tenant != nil {
		name = fmt.Sprintf("%s (%s)", sourceCategory.Name, tenant.Slug)
	}
	sourceRef := sourceCategory.ID
	duplicated := &models.Category{
		TenantID:               targetTenantID,
		Name:                   name,
		EntityIDInSourceTenant: &sourceRef,
	}
	if err := categoryRepo.Create(duplicated); err != nil {
		return nil, err
	}
	return duplicated, nil
}

// MirrorItemUpdate 把来源订单项的一次更新翻译到对端
func (s *MirrorService) MirrorItemUpdate(actor ActorContext, source *models.OrderRequest, item *models.OrderRequestItem, patch MirrorPatch) error {
	mirrorOrder, err := s.ResolveCounterpartOrder(source)
	if err != nil {
		return err
	}
	mirrorItem, err := s.resolveCounterpartItem(mirrorOrder.TenantID, item)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"updated_by_id": actor.ActorID,
	}
	if patch.Quantity != nil {
		updates["quantity"] = *patch.Quantity
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.StatusHistory != nil {
		updates["status_history_json"] = patch.StatusHistory.Clone()
	}
	if patch.Notes != nil {
		updates["notes"] = *patch.Notes
	}
	if patch.ParentItemRef != nil {
		parentID, err := s.translateParentRef(mirrorOrder.TenantID, mirrorItem, item, *patch.ParentItemRef)
		if err != nil {
			return err
		}
		updates["parent_order_request_item_id"] = parentID
	}
	if patch.Deleted {
		updates["deleted_at"] = time.Now()
		updates["deleted_by_id"] = actor.ActorID
		updates["status"] = constants.ItemStatusCancelled
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		itemRepo := s.itemRepo.WithTx(tx)
		if err := s.applyCustody(tx, mirrorOrder.TenantID, mirrorItem, patch, &updates); err != nil {
			return err
		}
		return itemRepo.UpdateGuarded(mirrorOrder.TenantID, mirrorItem.ID, mirrorItem.Version, updates)
	})
}

// translateParentRef 把来源租户的血缘引用翻译为对端 ID
//
// 来源项指向自己表示它就是退货腿，对端同样指向自己；指向其他项时按
// 反向引用查对端镜像项。
func (s *MirrorService) translateParentRef(counterpartTenantID uint, mirrorItem, sourceItem *models.OrderRequestItem, sourceParentID uint) (uint, error) {
	if sourceParentID == sourceItem.ID {
		return mirrorItem.ID, nil
	}
	mirrorParent, err := s.itemRepo.GetByEntityRef(counterpartTenantID, sourceParentID)
	if err != nil {
		return 0, err
	}
	if mirrorParent == nil {
		return 0, fmt.Errorf("%w: parent item %d", ErrMirrorCounterpartMissing, sourceParentID)
	}
	return mirrorParent.ID, nil
}

// applyCustody 把来源侧的实物交接重新推导为对端的移库事务
func (s *MirrorService) applyCustody(tx *gorm.DB, tenantID uint, mirrorItem *models.OrderRequestItem, patch MirrorPatch, updates *map[string]interface{}) error {
	moveRepo := s.moveRepo.WithTx(tx)
	now := time.Now()

	switch patch.Custody {
	case CustodyNone:
		return nil

	case CustodyShipped:
		quantity := mirrorItem.Quantity
		if patch.Quantity != nil {
			quantity = *patch.Quantity
		}
		// 同数量的在途事务已登记过说明是同一次发运的重放，不重复建账
		for _, detail := range mirrorItem.TransactionDetailsJSON {
			if detail.Status == constants.MoveTransactionStatusInTransit && detail.Quantity == quantity {
				return nil
			}
		}
		moves := []models.MoveTransaction{{
			TenantID:           tenantID,
			OrderRequestItemID: mirrorItem.ID,
			Quantity:           quantity,
			Status:             constants.MoveTransactionStatusInTransit,
		}}
		if err := moveRepo.CreateBatch(moves); err != nil {
			return err
		}
		details := append(mirrorItem.TransactionDetailsJSON, models.TransactionDetail{
			TransactionID: moves[0].ID,
			Quantity:      moves[0].Quantity,
			Status:        constants.MoveTransactionStatusInTransit,
			UpdatedAt:     now,
		})
		(*updates)["transaction_details_json"] = details
		return nil

	case CustodyDelivered:
		if err := moveRepo.CompleteByItem(tenantID, mirrorItem.ID, now); err != nil {
			return err
		}
		retired := retireTransactionLegs(mirrorItem.TransactionDetailsJSON, constants.MoveTransactionStatusCompleted, now)
		(*updates)["transaction_details_json"] = models.TransactionDetailList{}
		(*updates)["transaction_history_json"] = append(mirrorItem.TransactionHistoryJSON, retired...)
		return nil

	case CustodyReversed:
		if err := moveRepo.MarkDeletedByItem(tenantID, mirrorItem.ID); err != nil {
			return err
		}
		retired := retireTransactionLegs(mirrorItem.TransactionDetailsJSON, constants.MoveTransactionStatusDeleted, now)
		(*updates)["transaction_details_json"] = models.TransactionDetailList{}
		(*updates)["transaction_history_json"] = append(mirrorItem.TransactionHistoryJSON, retired...)
		return nil
	}
	return nil
}

// retireTransactionLegs 把活跃移库明细统一置为终态
func retireTransactionLegs(active models.TransactionDetailList, status string, now time.Time) models.TransactionDetailList {
	out := make(models.TransactionDetailList, len(active))
	copy(out, active)
	for i := range out {
		out[i].Status = status
		out[i].UpdatedAt = now
	}
	return out
}
