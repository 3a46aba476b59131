package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/orderbridge/internal/constants"
	"github.com/orderbridge/internal/models"
)

func (e *serviceTestEnv) seedTenants(t *testing.T) (parent, child models.Tenant) {
	t.Helper()
	parent = models.Tenant{Name: "Acme Logistics", Slug: "acme"}
	child = models.Tenant{Name: "Globex Procurement", Slug: "globex"}
	if err := e.db.Create(&parent).Error; err != nil {
		t.Fatalf("failed to seed parent tenant: %v", err)
	}
	if err := e.db.Create(&child).Error; err != nil {
		t.Fatalf("failed to seed child tenant: %v", err)
	}
	return parent, child
}

func (e *serviceTestEnv) createExternalOrder(t *testing.T, actor ActorContext, parentTenantID uint, items []CreateOrderItemInput) *models.OrderRequest {
	t.Helper()
	order, err := e.orders.Create(actor, CreateOrderRequestInput{
		Title:          "Cross-tenant order",
		ParentTenantID: &parentTenantID,
		Items:          items,
	})
	if err != nil {
		t.Fatalf("Create external order failed: %v", err)
	}
	return order
}

func TestExternalOrderCreatesMirror(t *testing.T) {
	env := newServiceTestEnv(t)
	parent, child := env.seedTenants(t)
	actor := ActorContext{ActorID: 5, TenantID: child.ID, DisplayName: "requester", Role: constants.ActorRoleAdmin}

	category := models.Category{TenantID: child.ID, Name: "Furniture"}
	if err := env.db.Create(&category).Error; err != nil {
		t.Fatalf("failed to seed category: %v", err)
	}
	catalog := models.Item{
		TenantID:   child.ID,
		SKU:        "CHAIR-001",
		Title:      "Office Chair",
		UnitCost:   models.NewMoneyFromFloat(129.90),
		CategoryID: &category.ID,
	}
	if err := env.db.Create(&catalog).Error; err != nil {
		t.Fatalf("failed to seed catalog item: %v", err)
	}

	order := env.createExternalOrder(t, actor, parent.ID, []CreateOrderItemInput{
		{Type: constants.ItemTypeInventory, ItemID: &catalog.ID, Quantity: 2},
		{Type: constants.ItemTypeNoSKU, Title: "Mystery bracket", Quantity: 1},
	})
	if !order.IsChildSide() {
		t.Fatal("requesting side must carry ParentTenantID")
	}
	if order.EntityIDInSourceTenant == nil {
		t.Fatal("reverse reference not backfilled on the source order")
	}

	var mirror models.OrderRequest
	err := env.db.Preload("Items").
		Where("tenant_id = ? AND entity_id_in_source_tenant = ?", parent.ID, order.ID).
		First(&mirror).Error
	if err != nil {
		t.Fatalf("mirror order not found: %v", err)
	}
	if *order.EntityIDInSourceTenant != mirror.ID {
		t.Fatal("source order must reference the mirror order")
	}
	if !mirror.IsParentSide() || *mirror.ChildTenantID != child.ID {
		t.Fatal("mirror must carry ChildTenantID pointing back at the requester")
	}
	if mirror.Title != order.Title || mirror.LeastItemStatus != order.LeastItemStatus {
		t.Fatal("mirror must copy title and rollup")
	}
	if len(mirror.Items) != 2 {
		t.Fatalf("mirror items = %d, want 2", len(mirror.Items))
	}
	for _, item := range mirror.Items {
		if item.EntityIDInSourceTenant == nil {
			t.Fatal("mirror item missing reverse reference")
		}
	}

	// 目录条目与分类懒复制到履约方租户
	var copied models.Item
	err = env.db.Where("tenant_id = ? AND entity_id_in_source_tenant = ?", parent.ID, catalog.ID).
		First(&copied).Error
	if err != nil {
		t.Fatalf("catalog item not duplicated: %v", err)
	}
	if copied.SKU != catalog.SKU {
		t.Fatalf("duplicated sku = %s, want %s", copied.SKU, catalog.SKU)
	}
	var copiedCategory models.Category
	if err := env.db.First(&copiedCategory, copied.CategoryID).Error; err != nil {
		t.Fatalf("category not duplicated: %v", err)
	}
	if !strings.Contains(copiedCategory.Name, child.Slug) {
		t.Fatalf("duplicated category name %q must carry the source tenant slug", copiedCategory.Name)
	}
}

func TestEnsureMirrorOrderIsIdempotent(t *testing.T) {
	env := newServiceTestEnv(t)
	parent, child := env.seedTenants(t)
	actor := ActorContext{ActorID: 5, TenantID: child.ID, DisplayName: "requester", Role: constants.ActorRoleAdmin}

	order := env.createExternalOrder(t, actor, parent.ID, []CreateOrderItemInput{
		{Type: constants.ItemTypeNoSKU, Title: "Bracket", Quantity: 1},
	})

	fresh, err := env.orders.Get(actor, order.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	mirror, err := env.mirror.EnsureMirrorOrder(actor, fresh, fresh.Items)
	if err != nil {
		t.Fatalf("EnsureMirrorOrder failed: %v", err)
	}
	if mirror.ID != *fresh.EntityIDInSourceTenant {
		t.Fatal("replay must return the existing mirror, not create another")
	}

	var count int64
	env.db.Model(&models.OrderRequest{}).Where("tenant_id = ?", parent.ID).Count(&count)
	if count != 1 {
		t.Fatalf("mirror order count = %d, want 1", count)
	}
}

func TestExternalOrderSideRestrictions(t *testing.T) {
	env := newServiceTestEnv(t)
	parent, child := env.seedTenants(t)
	requester := ActorContext{ActorID: 5, TenantID: child.ID, DisplayName: "requester", Role: constants.ActorRoleAdmin}

	order := env.createExternalOrder(t, requester, parent.ID, []CreateOrderItemInput{
		{Type: constants.ItemTypeNoSKU, Title: "Bracket", Quantity: 1},
	})

	// 签收只能由履约方记录
	if _, err := env.orders.UpdateItemStatus(requester, order.ID, order.Items[0].ID, constants.ItemStatusDelivered, ""); !errors.Is(err, ErrExternalOrderWrongSide) {
		t.Fatalf("expected ErrExternalOrderWrongSide for child-side delivery, got %v", err)
	}

	// 取消只能由请求方发起
	fulfiller := ActorContext{ActorID: 9, TenantID: parent.ID, DisplayName: "fulfiller", Role: constants.ActorRoleAdmin}
	mirrorID := *order.EntityIDInSourceTenant
	mirror, err := env.orders.Get(fulfiller, mirrorID)
	if err != nil {
		t.Fatalf("Get mirror failed: %v", err)
	}
	if _, err := env.orders.UpdateItemStatus(fulfiller, mirror.ID, mirror.Items[0].ID, constants.ItemStatusCancelled, ""); !errors.Is(err, ErrExternalOrderWrongSide) {
		t.Fatalf("expected ErrExternalOrderWrongSide for parent-side cancel, got %v", err)
	}

	// 跨租户订单不走整单退货
	if _, err := env.orders.Return(requester, order.ID, []ReturnRequest{{ItemID: order.Items[0].ID, Quantity: 1}}); !errors.Is(err, ErrExternalOrderReturn) {
		t.Fatalf("expected ErrExternalOrderReturn, got %v", err)
	}

	// 跨租户订单不允许整单删除
	if err := env.orders.Delete(requester, order.ID); !errors.Is(err, ErrExternalOrderWrongSide) {
		t.Fatalf("expected ErrExternalOrderWrongSide for delete, got %v", err)
	}

	// 手动关闭只能由请求方发起
	if _, err := env.orders.Close(fulfiller, mirror.ID); !errors.Is(err, ErrExternalOrderWrongSide) {
		t.Fatalf("expected ErrExternalOrderWrongSide for parent-side close, got %v", err)
	}
}

func TestMirrorCustodyShipReplayIsIdempotent(t *testing.T) {
	env := newServiceTestEnv(t)
	parent, child := env.seedTenants(t)
	requester := ActorContext{ActorID: 5, TenantID: child.ID, DisplayName: "requester", Role: constants.ActorRoleAdmin}

	order := env.createExternalOrder(t, requester, parent.ID, []CreateOrderItemInput{
		{Type: constants.ItemTypeNoSKU, Title: "Bracket", Quantity: 2},
	})

	status := constants.ItemStatusOutForDelivery
	patch := MirrorPatch{Status: &status, Custody: CustodyShipped}
	for i := 0; i < 2; i++ {
		if err := env.mirror.MirrorItemUpdate(requester, order, &order.Items[0], patch); err != nil {
			t.Fatalf("MirrorItemUpdate attempt %d failed: %v", i+1, err)
		}
	}

	var count int64
	env.db.Model(&models.MoveTransaction{}).
		Where("tenant_id = ? AND status = ?", parent.ID, constants.MoveTransactionStatusInTransit).
		Count(&count)
	if count != 1 {
		t.Fatalf("in-transit move transactions after replay = %d, want 1", count)
	}

	var mirrorItem models.OrderRequestItem
	err := env.db.Where("tenant_id = ? AND entity_id_in_source_tenant = ?", parent.ID, order.Items[0].ID).
		First(&mirrorItem).Error
	if err != nil {
		t.Fatalf("mirror item not found: %v", err)
	}
	if len(mirrorItem.TransactionDetailsJSON) != 1 {
		t.Fatalf("active transaction details after replay = %d, want 1", len(mirrorItem.TransactionDetailsJSON))
	}
	if mirrorItem.TransactionDetailsJSON[0].Quantity != 2 {
		t.Fatalf("in-transit quantity = %d, want 2", mirrorItem.TransactionDetailsJSON[0].Quantity)
	}
}

func TestExternalNoopReplayReconcilesMirror(t *testing.T) {
	env := newServiceTestEnv(t)
	parent, child := env.seedTenants(t)
	requester := ActorContext{ActorID: 5, TenantID: child.ID, DisplayName: "requester", Role: constants.ActorRoleAdmin}

	order := env.createExternalOrder(t, requester, parent.ID, []CreateOrderItemInput{
		{Type: constants.ItemTypeNoSKU, Title: "Bracket", Quantity: 1},
		{Type: constants.ItemTypeNoSKU, Title: "Shelf", Quantity: 1},
	})

	if _, err := env.orders.UpdateItemStatus(requester, order.ID, order.Items[0].ID, constants.ItemStatusCancelled, "not needed"); err != nil {
		t.Fatalf("UpdateItemStatus failed: %v", err)
	}

	// 模拟镜像写入在来源侧提交后丢失
	err := env.db.Model(&models.OrderRequestItem{}).
		Where("tenant_id = ? AND entity_id_in_source_tenant = ?", parent.ID, order.Items[0].ID).
		Update("status", constants.ItemStatusOpen).Error
	if err != nil {
		t.Fatalf("failed to plant divergence: %v", err)
	}

	// 重放同一目标状态：来源侧是 noop，镜像仍要按当前值补齐
	if _, err := env.orders.UpdateItemStatus(requester, order.ID, order.Items[0].ID, constants.ItemStatusCancelled, "not needed"); err != nil {
		t.Fatalf("noop replay failed: %v", err)
	}

	var mirrorItem models.OrderRequestItem
	err = env.db.Where("tenant_id = ? AND entity_id_in_source_tenant = ?", parent.ID, order.Items[0].ID).
		First(&mirrorItem).Error
	if err != nil {
		t.Fatalf("mirror item not found: %v", err)
	}
	if mirrorItem.Status != constants.ItemStatusCancelled {
		t.Fatalf("mirror item status = %s, want cancelled after reconcile", mirrorItem.Status)
	}
	last, _ := mirrorItem.StatusHistoryJSON.Last()
	if last.Status != constants.ItemStatusCancelled {
		t.Fatal("mirror history must follow the source history")
	}
}

func TestExternalCancelPropagatesToMirror(t *testing.T) {
	env := newServiceTestEnv(t)
	parent, child := env.seedTenants(t)
	requester := ActorContext{ActorID: 5, TenantID: child.ID, DisplayName: "requester", Role: constants.ActorRoleAdmin}

	order := env.createExternalOrder(t, requester, parent.ID, []CreateOrderItemInput{
		{Type: constants.ItemTypeNoSKU, Title: "Bracket", Quantity: 1},
	})

	updated, err := env.orders.UpdateItemStatus(requester, order.ID, order.Items[0].ID, constants.ItemStatusCancelled, "changed my mind")
	if err != nil {
		t.Fatalf("UpdateItemStatus failed: %v", err)
	}
	if updated.Items[0].Status != constants.ItemStatusCancelled {
		t.Fatal("source item not cancelled")
	}
	if updated.Status != constants.OrderRequestStatusClosed {
		t.Fatal("fully cancelled source order must close")
	}

	var mirrorItem models.OrderRequestItem
	err = env.db.Where("tenant_id = ? AND entity_id_in_source_tenant = ?", parent.ID, order.Items[0].ID).
		First(&mirrorItem).Error
	if err != nil {
		t.Fatalf("mirror item not found: %v", err)
	}
	if mirrorItem.Status != constants.ItemStatusCancelled {
		t.Fatalf("mirror item status = %s, want cancelled", mirrorItem.Status)
	}
	last, _ := mirrorItem.StatusHistoryJSON.Last()
	if last.Status != constants.ItemStatusCancelled {
		t.Fatal("mirror history not propagated")
	}

	var mirror models.OrderRequest
	if err := env.db.Where("tenant_id = ? AND entity_id_in_source_tenant = ?", parent.ID, order.ID).First(&mirror).Error; err != nil {
		t.Fatalf("mirror order not found: %v", err)
	}
	if mirror.LeastItemStatus != constants.ItemStatusCancelled {
		t.Fatalf("mirror rollup = %s, want cancelled", mirror.LeastItemStatus)
	}
}
