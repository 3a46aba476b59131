package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/orderbridge/internal/cache"
	"github.com/orderbridge/internal/config"
	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/models"
	"github.com/orderbridge/internal/queue"
	"github.com/orderbridge/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type serviceTestEnv struct {
	db     *gorm.DB
	orders *OrderRequestService
	picks  *PickService
	mirror *MirrorService
}

func newServiceTestEnv(t *testing.T) *serviceTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:order_svc_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.Tenant{},
		&models.Category{},
		&models.Item{},
		&models.Site{},
		&models.SiteStock{},
		&models.OrderRequest{},
		&models.OrderRequestItem{},
		&models.ShippingContainer{},
		&models.ShippingTransaction{},
		&models.MoveTransaction{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	orderRepo := repository.NewOrderRequestRepository(db)
	itemRepo := repository.NewOrderRequestItemRepository(db)
	catalogRepo := repository.NewItemRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	siteRepo := repository.NewSiteRepository(db)
	shippingRepo := repository.NewShippingRepository(db)
	moveRepo := repository.NewMoveTransactionRepository(db)
	tenantRepo := repository.NewTenantRepository(db)

	shippingSvc := NewShippingService(shippingRepo)
	mirror := NewMirrorService(db, orderRepo, itemRepo, catalogRepo, categoryRepo, moveRepo, tenantRepo)
	queueClient := queue.NewClient(config.QueueConfig{})
	notifier := NewNotificationService(queueClient)
	cfg := &config.OrderConfig{BlockLeaseMinutes: 30, AutoCloseDays: 30, ConflictRetries: 2}

	orders := NewOrderRequestService(db, cfg, orderRepo, itemRepo, catalogRepo, shippingSvc, mirror, queueClient, notifier)
	picks := NewPickService(db, cfg, orders, orderRepo, itemRepo, siteRepo, shippingSvc, mirror, notifier, cache.New(config.RedisConfig{}))
	return &serviceTestEnv{db: db, orders: orders, picks: picks, mirror: mirror}
}

func (e *serviceTestEnv) seedCatalogItem(t *testing.T, tenantID uint, sku string) *models.Item {
	t.Helper()
	item := &models.Item{
		TenantID: tenantID,
		SKU:      sku,
		Title:    "Office Chair",
		UnitCost: models.NewMoneyFromFloat(129.90),
	}
	if err := e.db.Create(item).Error; err != nil {
		t.Fatalf("failed to seed catalog item: %v", err)
	}
	return item
}

func (e *serviceTestEnv) seedSiteWithStock(t *testing.T, tenantID, itemID uint, onHand int) *models.Site {
	t.Helper()
	site := &models.Site{TenantID: tenantID, Name: "Central Warehouse"}
	if err := e.db.Create(site).Error; err != nil {
		t.Fatalf("failed to seed site: %v", err)
	}
	stock := &models.SiteStock{TenantID: tenantID, SiteID: site.ID, ItemID: itemID, OnHand: onHand}
	if err := e.db.Create(stock).Error; err != nil {
		t.Fatalf("failed to seed stock: %v", err)
	}
	return site
}

func (e *serviceTestEnv) onHand(t *testing.T, siteID, itemID uint) int {
	t.Helper()
	var stock models.SiteStock
	if err := e.db.Where("site_id = ? AND item_id = ?", siteID, itemID).First(&stock).Error; err != nil {
		t.Fatalf("failed to load stock: %v", err)
	}
	return stock.OnHand
}

func TestCreateOrderSnapshotsCatalog(t *testing.T) {
	env := newServiceTestEnv(t)
	actor := ActorContext{ActorID: 1, TenantID: 1, DisplayName: "admin", Role: constants.ActorRoleAdmin}
	catalog := env.seedCatalogItem(t, 1, "CHAIR-001")

	order, err := env.orders.Create(actor, CreateOrderRequestInput{
		Title: "Office refresh",
		Items: []CreateOrderItemInput{
			{Type: constants.ItemTypeInventory, ItemID: &catalog.ID, Quantity: 2},
			{Type: constants.ItemTypeNoSKU, Title: "Mystery bracket", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if order.Status != constants.OrderRequestStatusActive {
		t.Fatalf("order status = %s, want active", order.Status)
	}
	if order.LeastItemStatus != constants.ItemStatusOpen {
		t.Fatalf("least_item_status = %s, want open", order.LeastItemStatus)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}

	var snapshot *models.OrderRequestItem
	for i := range order.Items {
		if order.Items[i].Type == constants.ItemTypeInventory {
			snapshot = &order.Items[i]
		}
	}
	if snapshot == nil {
		t.Fatal("inventory item missing")
	}
	if snapshot.SKU != "CHAIR-001" || snapshot.Title != "Office Chair" {
		t.Fatalf("catalog fields not snapshotted: sku=%s title=%s", snapshot.SKU, snapshot.Title)
	}
	if snapshot.Cost.String() != "129.90" {
		t.Fatalf("cost = %s, want 129.90", snapshot.Cost.String())
	}
	last, _ := snapshot.StatusHistoryJSON.Last()
	if last.Status != constants.ItemStatusOpen || last.Reason != constants.HistoryReasonCreated {
		t.Fatalf("unexpected initial history entry: %+v", last)
	}
}

func TestCreateOrderRejectsBadItems(t *testing.T) {
	env := newServiceTestEnv(t)
	actor := ActorContext{ActorID: 1, TenantID: 1, DisplayName: "admin", Role: constants.ActorRoleAdmin}

	if _, err := env.orders.Create(actor, CreateOrderRequestInput{Title: "Empty"}); !errors.Is(err, ErrQuantityInvalid) {
		t.Fatalf("expected ErrQuantityInvalid for empty order, got %v", err)
	}

	missingID := uint(999)
	_, err := env.orders.Create(actor, CreateOrderRequestInput{
		Title: "Ghost",
		Items: []CreateOrderItemInput{{Type: constants.ItemTypeInventory, ItemID: &missingID, Quantity: 1}},
	})
	if !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected ErrCatalogNotFound, got %v", err)
	}

	_, err = env.orders.Create(actor, CreateOrderRequestInput{
		Title: "Bad type",
		Items: []CreateOrderItemInput{{Type: "virtual", Quantity: 1}},
	})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus for unknown item type, got %v", err)
	}
}

func TestUpdateItemStatusCancelClosesOrder(t *testing.T) {
	env := newServiceTestEnv(t)
	actor := ActorContext{ActorID: 1, TenantID: 1, DisplayName: "admin", Role: constants.ActorRoleAdmin}

	order, err := env.orders.Create(actor, CreateOrderRequestInput{
		Title: "Single line",
		Items: []CreateOrderItemInput{{Type: constants.ItemTypeNoSKU, Title: "Bracket", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := env.orders.UpdateItemStatus(actor, order.ID, order.Items[0].ID, constants.ItemStatusCancelled, "not needed")
	if err != nil {
		t.Fatalf("UpdateItemStatus failed: %v", err)
	}
	if updated.Items[0].Status != constants.ItemStatusCancelled {
		t.Fatalf("item status = %s, want cancelled", updated.Items[0].Status)
	}
	if updated.LeastItemStatus != constants.ItemStatusCancelled {
		t.Fatalf("least_item_status = %s, want cancelled", updated.LeastItemStatus)
	}
	// 全部订单项终结后订单立即关闭
	if updated.Status != constants.OrderRequestStatusClosed {
		t.Fatalf("order status = %s, want closed", updated.Status)
	}

	// 已关闭订单拒绝继续修改
	if _, err := env.orders.UpdateItemStatus(actor, order.ID, order.Items[0].ID, constants.ItemStatusClosed, ""); !errors.Is(err, ErrOrderClosed) {
		t.Fatalf("expected ErrOrderClosed, got %v", err)
	}
}

func TestUpdateItemStatusRejectsWorkflowStatuses(t *testing.T) {
	env := newServiceTestEnv(t)
	actor := ActorContext{ActorID: 1, TenantID: 1, DisplayName: "admin", Role: constants.ActorRoleAdmin}

	order, err := env.orders.Create(actor, CreateOrderRequestInput{
		Title: "Direct set",
		Items: []CreateOrderItemInput{{Type: constants.ItemTypeNoSKU, Title: "Bracket", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := env.orders.UpdateItemStatus(actor, order.ID, order.Items[0].ID, constants.ItemStatusPacked, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for packed, got %v", err)
	}
	if _, err := env.orders.UpdateItemStatus(actor, order.ID, order.Items[0].ID, "lost", ""); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestUpdateItemStatusNoopKeepsVersion(t *testing.T) {
	env := newServiceTestEnv(t)
	actor := ActorContext{ActorID: 1, TenantID: 1, DisplayName: "admin", Role: constants.ActorRoleAdmin}

	order, err := env.orders.Create(actor, CreateOrderRequestInput{
		Title: "Noop",
		Items: []CreateOrderItemInput{{Type: constants.ItemTypeNoSKU, Title: "Bracket", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := env.orders.UpdateItemStatus(actor, order.ID, order.Items[0].ID, constants.ItemStatusOpen, "")
	if err != nil {
		t.Fatalf("noop transition should succeed: %v", err)
	}
	if updated.Items[0].Version != order.Items[0].Version {
		t.Fatalf("noop must not bump the item version: %d -> %d", order.Items[0].Version, updated.Items[0].Version)
	}
	if len(updated.Items[0].StatusHistoryJSON) != len(order.Items[0].StatusHistoryJSON) {
		t.Fatal("noop must not append history")
	}
}

func TestBlockLeaseExcludesOtherActors(t *testing.T) {
	env := newServiceTestEnv(t)
	holder := ActorContext{ActorID: 1, TenantID: 1, DisplayName: "picker-a", Role: constants.ActorRolePicker}
	other := ActorContext{ActorID: 2, TenantID: 1, DisplayName: "picker-b", Role: constants.ActorRolePicker}
	admin := ActorContext{ActorID: 3, TenantID: 1, DisplayName: "admin", Role: constants.ActorRoleAdmin}

	order, err := env.orders.Create(holder, CreateOrderRequestInput{
		Title: "Locked",
		Items: []CreateOrderItemInput{{Type: constants.ItemTypeNoSKU, Title: "Bracket", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	blocked, err := env.orders.Block(holder, order.ID)
	if err != nil {
		t.Fatalf("Block failed: %v", err)
	}
	if blocked.BlockedByID == nil || *blocked.BlockedByID != holder.ActorID {
		t.Fatalf("block holder not recorded: %+v", blocked.BlockedByID)
	}
	if blocked.BlockExpiresAt == nil || !blocked.BlockExpiresAt.After(time.Now()) {
		t.Fatal("block lease must expire in the future")
	}

	// 他人写入被锁拒绝
	if _, err := env.orders.UpdateItemStatus(other, order.ID, order.Items[0].ID, constants.ItemStatusCancelled, ""); !errors.Is(err, ErrOrderBlocked) {
		t.Fatalf("expected ErrOrderBlocked, got %v", err)
	}
	// 他人也不能抢锁或解锁
	if _, err := env.orders.Block(other, order.ID); !errors.Is(err, ErrOrderBlocked) {
		t.Fatalf("expected ErrOrderBlocked on re-block, got %v", err)
	}
	if _, err := env.orders.Unblock(other, order.ID); !errors.Is(err, ErrOrderBlocked) {
		t.Fatalf("expected ErrOrderBlocked on foreign unblock, got %v", err)
	}

	// 锁持有人可写
	if _, err := env.orders.UpdateItemStatus(holder, order.ID, order.Items[0].ID, constants.ItemStatusBackOrdered, ""); err != nil {
		t.Fatalf("holder mutation failed: %v", err)
	}

	// 管理员可以强制解锁
	released, err := env.orders.Unblock(admin, order.ID)
	if err != nil {
		t.Fatalf("admin unblock failed: %v", err)
	}
	if released.BlockedByID != nil {
		t.Fatal("block not released")
	}
	if _, err := env.orders.UpdateItemStatus(other, order.ID, order.Items[0].ID, constants.ItemStatusCancelled, ""); err != nil {
		t.Fatalf("mutation after unblock failed: %v", err)
	}
}

func TestExpiredBlockIsIgnored(t *testing.T) {
	env := newServiceTestEnv(t)
	actor := ActorContext{ActorID: 1, TenantID: 1, DisplayName: "picker", Role: constants.ActorRolePicker}
	other := ActorContext{ActorID: 2, TenantID: 1, DisplayName: "other", Role: constants.ActorRolePicker}

	order, err := env.orders.Create(actor, CreateOrderRequestInput{
		Title: "Stale lock",
		Items: []CreateOrderItemInput{{Type: constants.ItemTypeNoSKU, Title: "Bracket", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	expired := time.Now().Add(-time.Minute)
	err = env.db.Model(&models.OrderRequest{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"blocked_by_id":    actor.ActorID,
		"block_expires_at": expired,
	}).Error
	if err != nil {
		t.Fatalf("failed to plant expired lock: %v", err)
	}

	if _, err := env.orders.UpdateItemStatus(other, order.ID, order.Items[0].ID, constants.ItemStatusBackOrdered, ""); err != nil {
		t.Fatalf("expired lock must not block writes: %v", err)
	}
}

func TestPickShipDeliverReturnLifecycle(t *testing.T) {
	env := newServiceTestEnv(t)
	actor := ActorContext{ActorID: 1, TenantID: 1, DisplayName: "picker", Role: constants.ActorRolePicker}
	catalog := env.seedCatalogItem(t, 1, "CHAIR-001")
	site := env.seedSiteWithStock(t, 1, catalog.ID, 10)

	order, err := env.orders.Create(actor, CreateOrderRequestInput{
		Title: "Lifecycle",
		Items: []CreateOrderItemInput{{Type: constants.ItemTypeInventory, ItemID: &catalog.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	itemID := order.Items[0].ID

	// 拣货
	picked, err := env.picks.Pick(actor, order.ID, []PickInput{{ItemID: itemID, SiteID: site.ID, Quantity: 2}})
	if err != nil {
		t.Fatalf("Pick failed: %v", err)
	}
	item := findOrderItem(picked.Items, itemID)
	if item.Status != constants.ItemStatusPacked {
		t.Fatalf("item status = %s, want packed", item.Status)
	}
	if len(item.TrackingDetailsJSON) != 1 {
		t.Fatalf("expected one tracking leg, got %d", len(item.TrackingDetailsJSON))
	}
	trackingID := item.TrackingDetailsJSON[0].TrackingID
	if trackingID == "" {
		t.Fatal("tracking id missing")
	}
	if got := env.onHand(t, site.ID, catalog.ID); got != 8 {
		t.Fatalf("on hand = %d, want 8", got)
	}
	if picked.LeastItemStatus != constants.ItemStatusPacked {
		t.Fatalf("least_item_status = %s, want packed", picked.LeastItemStatus)
	}

	// 出库
	shipped, err := env.picks.Ship(actor, order.ID, trackingID)
	if err != nil {
		t.Fatalf("Ship failed: %v", err)
	}
	if findOrderItem(shipped.Items, itemID).Status != constants.ItemStatusOutForDelivery {
		t.Fatal("item should be out_for_delivery after ship")
	}

	// 签收
	delivered, err := env.picks.Deliver(actor, order.ID, trackingID)
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if findOrderItem(delivered.Items, itemID).Status != constants.ItemStatusDelivered {
		t.Fatal("item should be delivered")
	}
	if delivered.LeastItemStatus != constants.ItemStatusDelivered {
		t.Fatalf("least_item_status = %s, want delivered", delivered.LeastItemStatus)
	}
	// 签收后在宽限期内，应预约自动关闭而不是立即关闭
	if delivered.Status != constants.OrderRequestStatusActive {
		t.Fatalf("order must stay active inside the grace window, got %s", delivered.Status)
	}
	if delivered.ScheduleID == "" {
		t.Fatal("auto close schedule not registered")
	}

	// 退货：整项退货重新打包发运
	returned, err := env.orders.Return(actor, order.ID, []ReturnRequest{{ItemID: itemID, Quantity: 2}})
	if err != nil {
		t.Fatalf("Return failed: %v", err)
	}
	item = findOrderItem(returned.Items, itemID)
	if item.Status != constants.ItemStatusPacked {
		t.Fatalf("returned item should be re-packed, got %s", item.Status)
	}
	if !item.IsReturnLeg() {
		t.Fatal("return lineage not set")
	}
	if len(item.TrackingDetailsJSON) != 1 {
		t.Fatalf("expected one return leg, got %d", len(item.TrackingDetailsJSON))
	}
	returnTrackingID := item.TrackingDetailsJSON[0].TrackingID
	if returnTrackingID == trackingID {
		t.Fatal("return must ship in a fresh container")
	}

	// 退货容器签收后订单项进入 returned
	final, err := env.picks.Deliver(actor, order.ID, returnTrackingID)
	if err != nil {
		t.Fatalf("Deliver of return leg failed: %v", err)
	}
	if findOrderItem(final.Items, itemID).Status != constants.ItemStatusReturned {
		t.Fatalf("item should be returned, got %s", findOrderItem(final.Items, itemID).Status)
	}
}

func TestPickRejectsOverdraw(t *testing.T) {
	env := newServiceTestEnv(t)
	actor := ActorContext{ActorID: 1, TenantID: 1, DisplayName: "picker", Role: constants.ActorRolePicker}
	catalog := env.seedCatalogItem(t, 1, "CHAIR-001")
	site := env.seedSiteWithStock(t, 1, catalog.ID, 1)

	order, err := env.orders.Create(actor, CreateOrderRequestInput{
		Title: "Overdraw",
		Items: []CreateOrderItemInput{{Type: constants.ItemTypeInventory, ItemID: &catalog.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = env.picks.Pick(actor, order.ID, []PickInput{{ItemID: order.Items[0].ID, SiteID: site.ID, Quantity: 2}})
	if !errors.Is(err, repository.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	// 失败的拣货不得扣减库存
	if got := env.onHand(t, site.ID, catalog.ID); got != 1 {
		t.Fatalf("on hand = %d, want 1", got)
	}
}

func TestPartialPickSplitsItem(t *testing.T) {
	env := newServiceTestEnv(t)
	actor := ActorContext{ActorID: 1, TenantID: 1, DisplayName: "picker", Role: constants.ActorRolePicker}
	catalog := env.seedCatalogItem(t, 1, "CHAIR-001")
	site := env.seedSiteWithStock(t, 1, catalog.ID, 10)

	order, err := env.orders.Create(actor, CreateOrderRequestInput{
		Title: "Partial pick",
		Items: []CreateOrderItemInput{{Type: constants.ItemTypeInventory, ItemID: &catalog.ID, Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	originalID := order.Items[0].ID

	picked, err := env.picks.Pick(actor, order.ID, []PickInput{{ItemID: originalID, SiteID: site.ID, Quantity: 2}})
	if err != nil {
		t.Fatalf("Pick failed: %v", err)
	}
	if len(picked.Items) != 2 {
		t.Fatalf("expected item split into 2, got %d", len(picked.Items))
	}

	total := 0
	var packed, remainder *models.OrderRequestItem
	for i := range picked.Items {
		total += picked.Items[i].Quantity
		switch picked.Items[i].Status {
		case constants.ItemStatusPacked:
			packed = &picked.Items[i]
		case constants.ItemStatusOpen:
			remainder = &picked.Items[i]
		}
	}
	if total != 5 {
		t.Fatalf("quantity not conserved, total = %d", total)
	}
	if packed == nil || packed.Quantity != 2 {
		t.Fatal("packed split item missing or wrong quantity")
	}
	if remainder == nil || remainder.ID != originalID || remainder.Quantity != 3 {
		t.Fatal("remainder must stay on the original item")
	}
	if picked.LeastItemStatus != constants.ItemStatusOpen {
		t.Fatalf("least_item_status = %s, want open", picked.LeastItemStatus)
	}
}

func TestDeleteSoftDeletesOrderAndItems(t *testing.T) {
	env := newServiceTestEnv(t)
	actor := ActorContext{ActorID: 1, TenantID: 1, DisplayName: "admin", Role: constants.ActorRoleAdmin}

	order, err := env.orders.Create(actor, CreateOrderRequestInput{
		Title: "Doomed",
		Items: []CreateOrderItemInput{{Type: constants.ItemTypeNoSKU, Title: "Bracket", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := env.orders.Delete(actor, order.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := env.orders.Get(actor, order.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("deleted order must not resolve, got %v", err)
	}

	var item models.OrderRequestItem
	if err := env.db.Unscoped().First(&item, order.Items[0].ID).Error; err != nil {
		t.Fatalf("failed to load item: %v", err)
	}
	if !item.DeletedAt.Valid || item.Status != constants.ItemStatusCancelled {
		t.Fatalf("item must be soft-deleted and cancelled, got deleted=%v status=%s", item.DeletedAt.Valid, item.Status)
	}
	if item.DeletedByID == nil || *item.DeletedByID != actor.ActorID {
		t.Fatal("deleted_by_id not recorded")
	}
}

func TestAutoCloseRespectsScheduleID(t *testing.T) {
	env := newServiceTestEnv(t)
	actor := ActorContext{ActorID: 1, TenantID: 1, DisplayName: "picker", Role: constants.ActorRolePicker}
	catalog := env.seedCatalogItem(t, 1, "CHAIR-001")
	site := env.seedSiteWithStock(t, 1, catalog.ID, 10)

	order, err := env.orders.Create(actor, CreateOrderRequestInput{
		Title: "Auto close",
		Items: []CreateOrderItemInput{{Type: constants.ItemTypeInventory, ItemID: &catalog.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	itemID := order.Items[0].ID
	if _, err := env.picks.Pick(actor, order.ID, []PickInput{{ItemID: itemID, SiteID: site.ID, Quantity: 1}}); err != nil {
		t.Fatalf("Pick failed: %v", err)
	}
	picked, err := env.orders.Get(actor, order.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	trackingID := findOrderItem(picked.Items, itemID).TrackingDetailsJSON[0].TrackingID
	delivered, err := env.picks.Deliver(actor, order.ID, trackingID)
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if delivered.ScheduleID == "" {
		t.Fatal("delivery inside grace window must register a schedule")
	}

	// 被覆盖的预约直接放弃，订单保持原状
	if err := env.orders.AutoClose(actor.TenantID, order.ID, "superseded"); err != nil {
		t.Fatalf("AutoClose with stale schedule failed: %v", err)
	}
	current, _ := env.orders.Get(actor, order.ID)
	if current.Status != constants.OrderRequestStatusActive {
		t.Fatal("stale schedule must not close the order")
	}

	// 把签收时间推回宽限期之前，正确的预约触发关闭
	var raw models.OrderRequestItem
	if err := env.db.First(&raw, itemID).Error; err != nil {
		t.Fatalf("failed to load item: %v", err)
	}
	history := raw.StatusHistoryJSON.Clone()
	for i := range history {
		history[i].At = history[i].At.Add(-31 * 24 * time.Hour)
	}
	if err := env.db.Model(&raw).Update("status_history_json", history).Error; err != nil {
		t.Fatalf("failed to age history: %v", err)
	}

	if err := env.orders.AutoClose(actor.TenantID, order.ID, delivered.ScheduleID); err != nil {
		t.Fatalf("AutoClose failed: %v", err)
	}
	closed, _ := env.orders.Get(actor, order.ID)
	if closed.Status != constants.OrderRequestStatusClosed {
		t.Fatalf("order status = %s, want closed", closed.Status)
	}
	if closed.ScheduleID != "" {
		t.Fatal("schedule id must be cleared on close")
	}
}

func TestManualCloseIsIdempotent(t *testing.T) {
	env := newServiceTestEnv(t)
	actor := ActorContext{ActorID: 1, TenantID: 1, DisplayName: "admin", Role: constants.ActorRoleAdmin}

	order, err := env.orders.Create(actor, CreateOrderRequestInput{
		Title: "Manual close",
		Items: []CreateOrderItemInput{{Type: constants.ItemTypeNoSKU, Title: "Bracket", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	closed, err := env.orders.Close(actor, order.ID)
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if closed.Status != constants.OrderRequestStatusClosed {
		t.Fatalf("order status = %s, want closed", closed.Status)
	}

	again, err := env.orders.Close(actor, order.ID)
	if err != nil {
		t.Fatalf("second Close must be a no-op: %v", err)
	}
	if again.Version != closed.Version {
		t.Fatalf("idempotent close must not bump version: %d -> %d", closed.Version, again.Version)
	}
}

func TestConcurrentUpdateSurfacesAfterRetries(t *testing.T) {
	env := newServiceTestEnv(t)

	attempts := 0
	err := env.orders.withConflictRetry("test_op", func() error {
		attempts++
		return repository.ErrWriteConflict
	})
	if !errors.Is(err, ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}
